// Package daemon runs the background process that owns the local database:
// it probes connectivity, holds the live WebSocket channel, drains the
// pending-action queue, ingests spooled actions from other processes, and
// feeds the dashboard.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/escritoriolabs/lexsync/internal/connectivity"
	"github.com/escritoriolabs/lexsync/internal/dashboard"
	"github.com/escritoriolabs/lexsync/internal/queue"
	"github.com/escritoriolabs/lexsync/internal/rest"
	"github.com/escritoriolabs/lexsync/internal/schema"
	"github.com/escritoriolabs/lexsync/internal/store"
	syncer "github.com/escritoriolabs/lexsync/internal/sync"
)

// Config holds configuration for the daemon.
type Config struct {
	// ServerURL is the base URL of the CRM API.
	ServerURL string

	// WebSocketURL is the live-update endpoint. Empty disables the
	// live channel; the daemon then relies on probing alone.
	WebSocketURL string

	// SpoolDir is the outbox directory watched for action files.
	// Empty disables the spool.
	SpoolDir string

	// RequestTimeout bounds each API request.
	RequestTimeout time.Duration

	// ProbeInterval is how often reachability is checked.
	ProbeInterval time.Duration

	// FlushInterval is how often a drain is attempted while online and
	// actions are pending.
	FlushInterval time.Duration

	// QuotaInterval is how often storage usage is published.
	QuotaInterval time.Duration

	// Backoff controls live-channel reconnect delays.
	Backoff connectivity.Policy

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RequestTimeout: 10 * time.Second,
		ProbeInterval:  15 * time.Second,
		FlushInterval:  30 * time.Second,
		QuotaInterval:  time.Minute,
		Backoff:        connectivity.DefaultPolicy(),
		Logger:         log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates connectivity monitoring, queue draining, live-event
// ingestion, and dashboard broadcasting around a single store.
type Daemon struct {
	store   *store.Store
	queue   queue.Queue
	client  *rest.Client
	coord   syncer.Coordinator
	monitor *connectivity.Monitor
	channel *connectivity.Channel
	spool   *Spool
	feed    *dashboard.Server
	config  *Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon around an open store. feed may be nil to run
// without a dashboard.
func New(st *store.Store, feed *dashboard.Server, config *Config) (*Daemon, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.ServerURL == "" {
		return nil, fmt.Errorf("server URL cannot be empty")
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		store:  st,
		feed:   feed,
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}

	d.client = rest.NewClient(config.ServerURL, config.RequestTimeout)
	d.queue = queue.New(st, config.Logger, d.publishQueueDepth)
	d.monitor = connectivity.NewMonitor(d.client, config.ProbeInterval, d.onOnlineChange, config.Logger)
	d.coord = syncer.New(d.queue, d.client, d.monitor.IsOnline, d.publishSyncProgress, config.Logger)

	if config.WebSocketURL != "" {
		d.channel = connectivity.NewChannel(config.WebSocketURL, config.Backoff, d.onLiveEvent, d.onChannelStatus, config.Logger)
	}

	if config.SpoolDir != "" {
		spool, err := NewSpool(config.SpoolDir, d.queue, 0, config.Logger)
		if err != nil {
			cancel()
			return nil, err
		}
		d.spool = spool
	}

	return d, nil
}

// Start runs the daemon until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if err := d.monitor.Start(); err != nil {
		return fmt.Errorf("failed to start connectivity monitor: %w", err)
	}
	if d.channel != nil {
		d.channel.Start()
	}
	if d.spool != nil {
		if err := d.spool.Start(d.ctx); err != nil {
			return fmt.Errorf("failed to start spool: %w", err)
		}
	}

	d.publishConnectionState()
	d.publishQuota()

	d.wg.Add(2)
	go d.flushLoop()
	go d.quotaLoop()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon. The store is left open; the
// caller that opened it closes it.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if d.spool != nil {
		_ = d.spool.Stop()
	}
	if d.channel != nil {
		d.channel.Stop()
	}
	d.monitor.Stop()

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// SyncNow triggers a drain outside the regular schedule.
func (d *Daemon) SyncNow(ctx context.Context) (*syncer.Result, error) {
	return d.coord.SyncNow(ctx)
}

// ConnectionState reports the combined connectivity signals.
func (d *Daemon) ConnectionState() schema.ConnectionState {
	state := schema.ConnectionState{
		IsOnline:        d.monitor.IsOnline(),
		IsOfflineReady:  true, // the store is open, cached data is servable
		WebSocketStatus: schema.WSDisconnected,
	}
	if d.channel != nil {
		state.WebSocketStatus = d.channel.Status()
	}
	return state
}

// onOnlineChange fires once per reachability transition. Coming online
// triggers a single drain; the coordinator's single-flight guard absorbs
// any overlap with the periodic flush.
func (d *Daemon) onOnlineChange(online bool) {
	d.publishConnectionState()

	if !online {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.drain("reconnect")
	}()
}

func (d *Daemon) drain(reason string) {
	result, err := d.coord.SyncNow(d.ctx)
	if err != nil {
		if errors.Is(err, syncer.ErrDrainInProgress) {
			return
		}
		d.config.Logger.Printf("Drain (%s) failed: %v", reason, err)
		return
	}
	if len(result.Errors) > 0 {
		d.config.Logger.Printf("Drain (%s): %d attempted, %d failed", reason, result.Attempted, len(result.Errors))
	}
}

// flushLoop periodically drains the queue while online.
func (d *Daemon) flushLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			if !d.monitor.IsOnline() {
				continue
			}
			count, err := d.queue.Count(d.ctx)
			if err != nil {
				d.config.Logger.Printf("Error counting queue: %v", err)
				continue
			}
			if count == 0 {
				continue
			}
			d.drain("periodic")
		}
	}
}

// quotaLoop periodically publishes storage usage.
func (d *Daemon) quotaLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.QuotaInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.publishQuota()
		}
	}
}

// onLiveEvent applies a server push to the local cache and republishes it
// on the dashboard feed.
func (d *Daemon) onLiveEvent(event connectivity.Event) {
	switch event.Type {
	case connectivity.EventNovoContato, connectivity.EventContatoAtualizado:
		var contato schema.Contato
		if err := json.Unmarshal(event.Data, &contato); err != nil {
			d.config.Logger.Printf("Discarding malformed %s event: %v", event.Type, err)
			return
		}
		if err := d.store.UpsertContato(d.ctx, &contato); err != nil {
			d.config.Logger.Printf("Error caching contato %s: %v", contato.ID, err)
			return
		}

	case connectivity.EventProcessoAtualizado:
		var processo schema.Processo
		if err := json.Unmarshal(event.Data, &processo); err != nil {
			d.config.Logger.Printf("Discarding malformed %s event: %v", event.Type, err)
			return
		}
		if err := d.store.UpsertProcesso(d.ctx, &processo); err != nil {
			d.config.Logger.Printf("Error caching processo %s: %v", processo.ID, err)
			return
		}

	default:
		return
	}

	if d.feed != nil {
		d.feed.BroadcastEntityUpdate(string(event.Type), event.Data)
	}
}

func (d *Daemon) onChannelStatus(schema.WebSocketStatus) {
	d.publishConnectionState()
}

func (d *Daemon) publishConnectionState() {
	if d.feed != nil {
		d.feed.BroadcastConnectionState(d.ConnectionState())
	}
}

func (d *Daemon) publishQueueDepth(count int) {
	if d.feed != nil {
		d.feed.BroadcastQueueDepth(count)
	}
}

func (d *Daemon) publishSyncProgress(p schema.SyncProgress) {
	if d.feed != nil {
		d.feed.BroadcastSyncProgress(p)
	}
}

func (d *Daemon) publishQuota() {
	if d.feed == nil {
		return
	}
	q, err := d.store.QuotaContext(d.ctx)
	if err != nil {
		d.config.Logger.Printf("Error reading quota: %v", err)
		return
	}
	d.feed.BroadcastQuota(q)
}
