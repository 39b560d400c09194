// Package connectivity tracks the two independent signals that decide how
// the client behaves: whether the CRM API is reachable at all, and the
// state of the WebSocket live-update channel. The two are deliberately
// separate; a healthy HTTP path with a broken socket is a normal state.
package connectivity

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/escritoriolabs/lexsync/internal/rest"
)

// TransitionFunc is called whenever reachability flips, with the new value.
// It fires exactly once per transition, never for repeated probes with the
// same outcome.
type TransitionFunc func(online bool)

// Monitor probes the CRM API on an interval and reports reachability
// transitions. Any HTTP response counts as reachable, including errors:
// a 500 means the server is up, which is the signal that matters here.
type Monitor struct {
	client   *rest.Client
	interval time.Duration
	onChange TransitionFunc
	logger   *log.Logger

	mu     sync.Mutex
	online bool
	probed bool // first probe reports unconditionally

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a monitor probing via client every interval.
// onChange may be nil. If logger is nil, a default stderr logger is used.
func NewMonitor(client *rest.Client, interval time.Duration, onChange TransitionFunc, logger *log.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[connectivity] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Monitor{
		client:   client,
		interval: interval,
		onChange: onChange,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start probes once immediately, then on the configured interval until Stop.
func (m *Monitor) Start() error {
	if m.client == nil {
		return fmt.Errorf("monitor requires a client")
	}

	m.CheckNow(m.ctx)

	m.wg.Add(1)
	go m.probeLoop()
	return nil
}

// Stop halts probing. Safe to call more than once.
func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

// IsOnline returns the result of the most recent probe. Before the first
// probe completes it reports false.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// CheckNow probes immediately, outside the regular interval, and applies
// the result. Used when a failed request suggests the cached state is stale.
func (m *Monitor) CheckNow(ctx context.Context) bool {
	online := m.client.Ping(ctx) == nil
	m.apply(online)
	return online
}

func (m *Monitor) probeLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(m.ctx)
		}
	}
}

// apply records a probe result and fires the transition callback when the
// value changed. The callback runs outside the lock so it may call back
// into the monitor.
func (m *Monitor) apply(online bool) {
	m.mu.Lock()
	changed := !m.probed || online != m.online
	m.probed = true
	m.online = online
	m.mu.Unlock()

	if !changed {
		return
	}

	if online {
		m.logger.Println("API reachable")
	} else {
		m.logger.Println("API unreachable, entering offline mode")
	}

	if m.onChange != nil {
		m.onChange(online)
	}
}
