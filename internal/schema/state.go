package schema

// WebSocketStatus is the lifecycle state of the live-update channel.
// The channel has no terminal state: disconnected and error both lead
// back to connecting on the next reconnect attempt.
type WebSocketStatus string

const (
	WSConnecting   WebSocketStatus = "connecting"
	WSConnected    WebSocketStatus = "connected"
	WSDisconnected WebSocketStatus = "disconnected"
	WSError        WebSocketStatus = "error"
)

// ConnectionState combines the two independent connectivity signals:
// network reachability and the live-update channel. Online with an
// erroring WebSocket is a valid state.
type ConnectionState struct {
	IsOnline        bool            `json:"is_online"`
	IsOfflineReady  bool            `json:"is_offline_ready"`
	WebSocketStatus WebSocketStatus `json:"websocket_status"`
}

// DisplayStatus returns the channel status with the network signal folded
// in: going offline forces a disconnected display regardless of what the
// socket believes its own state to be.
func (s ConnectionState) DisplayStatus() WebSocketStatus {
	if !s.IsOnline {
		return WSDisconnected
	}
	return s.WebSocketStatus
}

// SyncStatus is the coordinator's drain state.
type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncSyncing SyncStatus = "syncing"
)

// CurrentRequest identifies the request in flight during a drain.
type CurrentRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// SyncProgress is the transient progress of an active drain cycle.
// Completed counts attempts (success or failure), so Completed == Total
// when the drain finishes regardless of outcome.
type SyncProgress struct {
	Status    SyncStatus      `json:"status"`
	Completed int             `json:"completed"`
	Total     int             `json:"total"`
	Current   *CurrentRequest `json:"current,omitempty"`
}

// StorageQuota is a read-only snapshot of the local persistence layer.
type StorageQuota struct {
	Usage int64 `json:"usage"` // bytes used
	Quota int64 `json:"quota"` // bytes available in total
}

// Exceeded reports whether usage is at or over the configured quota.
// A zero quota means unlimited.
func (q StorageQuota) Exceeded() bool {
	return q.Quota > 0 && q.Usage >= q.Quota
}
