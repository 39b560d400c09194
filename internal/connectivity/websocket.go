package connectivity

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/escritoriolabs/lexsync/internal/schema"
)

// EventType names a live update pushed by the CRM server.
type EventType string

const (
	// EventNovoContato announces a contato created on the server.
	EventNovoContato EventType = "novo-contato"

	// EventContatoAtualizado announces a contato changed on the server.
	EventContatoAtualizado EventType = "contato_atualizado"

	// EventProcessoAtualizado announces a processo changed on the server.
	EventProcessoAtualizado EventType = "processo_atualizado"
)

// Event is one live update from the server. Data carries the full entity.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EventFunc receives decoded live events.
type EventFunc func(Event)

// StatusFunc receives channel state changes.
type StatusFunc func(schema.WebSocketStatus)

// Channel maintains the WebSocket connection to the CRM server, decodes
// live events, and reconnects with backoff when the connection drops.
//
// The channel has no terminal state: an error or disconnect always leads
// back to connecting on the next attempt, until Stop is called. Connecting
// successfully resets the backoff.
type Channel struct {
	url     string
	policy  Policy
	onEvent EventFunc
	logger  *log.Logger

	mu       sync.Mutex
	status   schema.WebSocketStatus
	onStatus StatusFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewChannel creates a live channel for the given ws:// or wss:// URL.
// onEvent and onStatus may be nil. If logger is nil, a default stderr
// logger is used.
func NewChannel(url string, policy Policy, onEvent EventFunc, onStatus StatusFunc, logger *log.Logger) *Channel {
	if policy == (Policy{}) {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[websocket] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Channel{
		url:      url,
		policy:   policy,
		onEvent:  onEvent,
		onStatus: onStatus,
		logger:   logger,
		status:   schema.WSDisconnected,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins connecting in the background. It returns immediately; use
// Status or the StatusFunc to observe progress.
func (c *Channel) Start() {
	c.wg.Add(1)
	go c.run()
}

// Stop closes the connection and halts reconnecting.
func (c *Channel) Stop() {
	c.cancel()
	c.wg.Wait()
	c.setStatus(schema.WSDisconnected)
}

// Status returns the current channel state.
func (c *Channel) Status() schema.WebSocketStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// run is the reconnect loop. One connection attempt per iteration; the
// backoff attempt counter resets after every successful connection.
func (c *Channel) run() {
	defer c.wg.Done()

	attempt := 0
	for {
		if c.ctx.Err() != nil {
			return
		}

		c.setStatus(schema.WSConnecting)

		conn, err := c.dial()
		if err != nil {
			c.setStatus(schema.WSError)
			delay := c.policy.Delay(attempt)
			attempt++
			c.logger.Printf("Connection failed (attempt %d, retrying in %s): %v", attempt, delay.Round(time.Millisecond), err)

			select {
			case <-c.ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		attempt = 0
		c.setStatus(schema.WSConnected)
		c.logger.Printf("Connected to %s", c.url)

		c.readLoop(conn)

		_ = conn.Close(websocket.StatusNormalClosure, "")
		if c.ctx.Err() != nil {
			return
		}
		c.setStatus(schema.WSDisconnected)
		c.logger.Println("Connection lost, reconnecting")
	}
}

func (c *Channel) dial() (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, c.url, nil)
	return conn, err
}

// readLoop decodes events until the connection drops or Stop is called.
func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(c.ctx)
		if err != nil {
			return
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			c.logger.Printf("Discarding malformed event: %v", err)
			continue
		}

		switch event.Type {
		case EventNovoContato, EventContatoAtualizado, EventProcessoAtualizado:
			if c.onEvent != nil {
				c.onEvent(event)
			}
		default:
			c.logger.Printf("Ignoring unknown event type: %s", event.Type)
		}
	}
}

func (c *Channel) setStatus(status schema.WebSocketStatus) {
	c.mu.Lock()
	if c.status == status {
		c.mu.Unlock()
		return
	}
	c.status = status
	c.mu.Unlock()

	if c.onStatus != nil {
		c.onStatus(status)
	}
}
