package connectivity

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/escritoriolabs/lexsync/internal/schema"
)

// eventServer accepts WebSocket connections and replays the given frames
// on each connection, then holds the connection open.
func eventServer(t *testing.T, accepts *atomic.Int32, frames []string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		accepts.Add(1)

		ctx := r.Context()
		for _, frame := range frames {
			if err := conn.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
				return
			}
		}
		// Hold open until the client or the test goes away.
		_, _, _ = conn.Read(ctx)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func fastPolicy() Policy {
	return Policy{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond, Factor: 2}
}

func TestChannelDeliversKnownEvents(t *testing.T) {
	var accepts atomic.Int32
	srv := eventServer(t, &accepts, []string{
		`{"type":"novo-contato","data":{"id":"c1","nome":"Ana"}}`,
		`{"type":"lead_score","data":{}}`,
		`{"type":"contato_atualizado","data":{"id":"c1","nome":"Ana Souza"}}`,
		`not json`,
		`{"type":"processo_atualizado","data":{"id":"p1"}}`,
	})

	var mu sync.Mutex
	var received []EventType
	onEvent := func(e Event) {
		mu.Lock()
		received = append(received, e.Type)
		mu.Unlock()
	}

	ch := NewChannel(wsURL(srv), fastPolicy(), onEvent, nil, testLogger())
	ch.Start()
	defer ch.Stop()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) >= 3
	}, "live events never arrived")

	mu.Lock()
	defer mu.Unlock()
	want := []EventType{EventNovoContato, EventContatoAtualizado, EventProcessoAtualizado}
	for i := range want {
		if received[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, received[i], want[i])
		}
	}
}

func TestChannelStatusLifecycle(t *testing.T) {
	var accepts atomic.Int32
	srv := eventServer(t, &accepts, nil)

	var mu sync.Mutex
	var statuses []schema.WebSocketStatus
	onStatus := func(s schema.WebSocketStatus) {
		mu.Lock()
		statuses = append(statuses, s)
		mu.Unlock()
	}

	ch := NewChannel(wsURL(srv), fastPolicy(), nil, onStatus, testLogger())
	ch.Start()

	waitFor(t, func() bool { return ch.Status() == schema.WSConnected }, "never connected")
	ch.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(statuses) < 2 || statuses[0] != schema.WSConnecting || statuses[1] != schema.WSConnected {
		t.Errorf("expected connecting then connected, got %v", statuses)
	}
	if statuses[len(statuses)-1] != schema.WSDisconnected {
		t.Errorf("expected disconnected after Stop, got %v", statuses)
	}
}

func TestChannelReconnectsAfterDrop(t *testing.T) {
	var accepts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		n := accepts.Add(1)
		if n == 1 {
			// Drop the first connection immediately to force a
			// reconnect.
			_ = conn.Close(websocket.StatusGoingAway, "restarting")
			return
		}
		_, _, _ = conn.Read(r.Context())
	}))
	defer srv.Close()

	ch := NewChannel(wsURL(srv), fastPolicy(), nil, nil, testLogger())
	ch.Start()
	defer ch.Stop()

	waitFor(t, func() bool { return accepts.Load() >= 2 }, "never reconnected")
	waitFor(t, func() bool { return ch.Status() == schema.WSConnected }, "reconnect never settled")
}

func TestChannelRetriesWhileServerDown(t *testing.T) {
	// No server at all: the channel must keep cycling through
	// connecting/error without giving up.
	ch := NewChannel("ws://127.0.0.1:0", fastPolicy(), nil, nil, testLogger())
	ch.Start()
	defer ch.Stop()

	waitFor(t, func() bool {
		s := ch.Status()
		return s == schema.WSError || s == schema.WSConnecting
	}, "channel never attempted to connect")

	// Still trying after a few backoff cycles.
	time.Sleep(100 * time.Millisecond)
	if s := ch.Status(); s != schema.WSError && s != schema.WSConnecting {
		t.Errorf("channel gave up: status %s", s)
	}
}
