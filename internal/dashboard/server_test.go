package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/escritoriolabs/lexsync/internal/schema"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()

	server := NewServer(&Config{
		Port:   0,
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })

	time.Sleep(50 * time.Millisecond)
	return server
}

func dialTestServer(t *testing.T, server *Server) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func TestNewClientReceivesConnectionState(t *testing.T) {
	server := startTestServer(t)

	server.BroadcastConnectionState(schema.ConnectionState{
		IsOnline:        true,
		WebSocketStatus: schema.WSConnected,
	})
	time.Sleep(50 * time.Millisecond)

	conn := dialTestServer(t, server)

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeConnectionStatus {
		t.Fatalf("Expected welcome type %s, got %s", MessageTypeConnectionStatus, msg.Type)
	}

	var state schema.ConnectionState
	if err := json.Unmarshal(msg.Data, &state); err != nil {
		t.Fatalf("Failed to unmarshal state: %v", err)
	}
	if !state.IsOnline || state.WebSocketStatus != schema.WSConnected {
		t.Errorf("Welcome should replay the last published state, got %+v", state)
	}
}

func TestBroadcastSyncProgress(t *testing.T) {
	server := startTestServer(t)
	conn := dialTestServer(t, server)

	// Discard the welcome message.
	readMessage(t, conn)

	server.BroadcastSyncProgress(schema.SyncProgress{
		Status:    schema.SyncSyncing,
		Completed: 2,
		Total:     5,
	})

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeSyncProgress {
		t.Fatalf("Expected %s, got %s", MessageTypeSyncProgress, msg.Type)
	}

	var progress schema.SyncProgress
	if err := json.Unmarshal(msg.Data, &progress); err != nil {
		t.Fatalf("Failed to unmarshal progress: %v", err)
	}
	if progress.Completed != 2 || progress.Total != 5 {
		t.Errorf("Expected 2/5, got %d/%d", progress.Completed, progress.Total)
	}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	server := startTestServer(t)

	conns := []*websocket.Conn{
		dialTestServer(t, server),
		dialTestServer(t, server),
		dialTestServer(t, server),
	}
	for _, conn := range conns {
		readMessage(t, conn) // welcome
	}

	if count := server.ClientCount(); count != 3 {
		t.Fatalf("Expected 3 clients, got %d", count)
	}

	server.BroadcastQueueDepth(7)

	for i, conn := range conns {
		msg := readMessage(t, conn)
		if msg.Type != MessageTypeQueueUpdate {
			t.Errorf("Client %d: expected %s, got %s", i, MessageTypeQueueUpdate, msg.Type)
			continue
		}
		var data QueueUpdateData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			t.Fatalf("Client %d: failed to unmarshal: %v", i, err)
		}
		if data.Pending != 7 {
			t.Errorf("Client %d: expected 7 pending, got %d", i, data.Pending)
		}
	}
}

func TestBroadcastEntityUpdate(t *testing.T) {
	server := startTestServer(t)
	conn := dialTestServer(t, server)
	readMessage(t, conn) // welcome

	server.BroadcastEntityUpdate("novo-contato", json.RawMessage(`{"id":"c1","nome":"Ana"}`))

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeEntityUpdate {
		t.Fatalf("Expected %s, got %s", MessageTypeEntityUpdate, msg.Type)
	}

	var data EntityUpdateData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if data.Event != "novo-contato" {
		t.Errorf("Expected novo-contato event, got %s", data.Event)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := startTestServer(t)

	resp, err := http.Get("http://" + server.GetAddr() + "/health")
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode health body: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("Expected ok status, got %s", body.Status)
	}
}
