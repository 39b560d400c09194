// Package dashboard provides the local WebSocket feed that status UIs
// subscribe to. It broadcasts connection state, drain progress, queue
// depth, storage quota, and live entity updates to every connected client.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/escritoriolabs/lexsync/internal/schema"
)

// MessageType defines the type of dashboard message.
type MessageType string

const (
	// MessageTypeConnectionStatus carries a schema.ConnectionState.
	MessageTypeConnectionStatus MessageType = "connection_status"

	// MessageTypeSyncProgress carries a schema.SyncProgress.
	MessageTypeSyncProgress MessageType = "sync_progress"

	// MessageTypeQueueUpdate carries a QueueUpdateData.
	MessageTypeQueueUpdate MessageType = "queue_update"

	// MessageTypeQuota carries a schema.StorageQuota.
	MessageTypeQuota MessageType = "quota"

	// MessageTypeEntityUpdate carries an EntityUpdateData for a contato
	// or processo changed by a live server event.
	MessageTypeEntityUpdate MessageType = "entity_update"
)

// Message represents a dashboard broadcast message.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// QueueUpdateData reports the pending-action queue depth.
type QueueUpdateData struct {
	Pending int `json:"pending"`
}

// EntityUpdateData describes an entity changed by a live server event.
type EntityUpdateData struct {
	Event  string          `json:"event"` // novo-contato, contato_atualizado, processo_atualizado
	Entity json.RawMessage `json:"entity"`
}

// Server manages WebSocket connections and broadcasts dashboard messages.
//
// Clients receive the latest connection state on connect, then every
// broadcast until they disconnect. Clients never send anything meaningful;
// the read loop exists only to notice disconnects.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	// lastState is replayed to newly connected clients so a UI opening
	// mid-session starts from the truth instead of a zero value.
	lastState   schema.ConnectionState
	lastStateMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration.
type Config struct {
	// Port to listen on (0 picks a free port).
	Port int

	// Logger for server activity (default: stderr logger).
	Logger *log.Logger
}

// NewServer creates a new dashboard WebSocket server.
func NewServer(config *Config) *Server {
	if config == nil {
		config = &Config{}
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      fmt.Sprintf(":%d", config.Port),
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}
}

// Start begins the HTTP server and WebSocket handler.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.logger.Println("Stopping dashboard")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()
	return nil
}

// Broadcast sends a message to all connected clients. Never blocks; when
// the channel is full the message is dropped, since every message type is
// a state snapshot superseded by the next one.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// BroadcastConnectionState publishes the combined connectivity signals.
// The state is also remembered and replayed to clients that connect later.
func (s *Server) BroadcastConnectionState(state schema.ConnectionState) {
	s.lastStateMu.Lock()
	s.lastState = state
	s.lastStateMu.Unlock()

	s.broadcastJSON(MessageTypeConnectionStatus, state)
}

// BroadcastSyncProgress publishes a drain progress snapshot.
func (s *Server) BroadcastSyncProgress(p schema.SyncProgress) {
	s.broadcastJSON(MessageTypeSyncProgress, p)
}

// BroadcastQueueDepth publishes the pending-action count.
func (s *Server) BroadcastQueueDepth(pending int) {
	s.broadcastJSON(MessageTypeQueueUpdate, QueueUpdateData{Pending: pending})
}

// BroadcastQuota publishes a storage usage snapshot.
func (s *Server) BroadcastQuota(q schema.StorageQuota) {
	s.broadcastJSON(MessageTypeQuota, q)
}

// BroadcastEntityUpdate publishes an entity changed by a live server event.
func (s *Server) BroadcastEntityUpdate(event string, entity json.RawMessage) {
	s.broadcastJSON(MessageTypeEntityUpdate, EntityUpdateData{Event: event, Entity: entity})
}

func (s *Server) broadcastJSON(typ MessageType, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}
	s.Broadcast(Message{Type: typ, Timestamp: time.Now(), Data: raw})
}

// broadcastLoop handles message broadcasting to all clients.
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			// Writes happen outside the read lock so a slow client
			// cannot block new connections.
			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

// handleWebSocket upgrades HTTP connections to WebSocket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // local-only server
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	// Replay the connection state so the client does not have to wait
	// for the next transition.
	s.lastStateMu.RLock()
	state := s.lastState
	s.lastStateMu.RUnlock()

	raw, _ := json.Marshal(state)
	welcome, _ := json.Marshal(Message{
		Type:      MessageTypeConnectionStatus,
		Timestamp: time.Now(),
		Data:      raw,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = conn.Write(ctx, websocket.MessageText, welcome)
	cancel()

	go s.readLoop(conn)
}

// readLoop keeps the connection alive and handles client disconnects.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		_, _, err := conn.Read(s.ctx)
		if err != nil {
			return
		}
	}
}

// removeClient safely removes a client connection.
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	clientCount := len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": clientCount,
	})
}

// handleRoot returns basic server information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>LexSync</title>
</head>
<body>
    <h1>LexSync Dashboard Feed</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Health check: <a href="/health">/health</a></p>
    <p>Connect a WebSocket client to receive connection, sync, and queue updates.</p>
</body>
</html>`, r.Host)
}

// GetAddr returns the server's listening address.
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
