// Package sync provides the coordinator that drains the pending-action
// queue against the CRM API.
package sync

import (
	"context"

	"github.com/escritoriolabs/lexsync/internal/schema"
)

// ActionError records a single action's failure during a drain.
type ActionError struct {
	ActionID string `json:"action_id"`
	Err      string `json:"error"`
}

// Result is the outcome of one drain cycle.
type Result struct {
	// Success is true when every attempted action was acked.
	Success bool `json:"success"`

	// Errors collects the failures, one entry per failed action.
	Errors []ActionError `json:"errors"`

	// Attempted is the number of actions the drain tried (it can be
	// lower than the queue depth when the drain is abandoned mid-cycle).
	Attempted int `json:"attempted"`
}

// Coordinator drains the pending-action queue when connectivity allows.
//
// A drain walks the queue in FIFO order, replays each action against the
// server, removes acked items, and keeps failed items in place for a later
// attempt. Individual failures never stop the drain; only a connectivity
// loss abandons it, leaving the remaining items queued.
//
// Only one drain may be in flight at a time. A concurrent SyncNow while a
// drain is running is a no-op reported via ErrDrainInProgress; callers that
// only want the state should consult Progress instead.
type Coordinator interface {
	// SyncNow drains the queue. Triggered manually (CLI, dashboard
	// action) or automatically by the daemon on the online transition.
	SyncNow(ctx context.Context) (*Result, error)

	// Progress returns a snapshot of the active drain cycle, or an idle
	// progress when no drain is running.
	Progress() schema.SyncProgress
}
