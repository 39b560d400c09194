package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/escritoriolabs/lexsync/internal/queue"
	"github.com/escritoriolabs/lexsync/internal/rest"
	"github.com/escritoriolabs/lexsync/internal/schema"
)

// ErrDrainInProgress is returned by SyncNow when a drain is already running.
var ErrDrainInProgress = errors.New("sync already in progress")

// ProgressFunc receives a progress snapshot after every state change during
// a drain. Used to push sync_progress messages to the dashboard. May be nil.
type ProgressFunc func(schema.SyncProgress)

// Online reports whether the network is currently reachable. The coordinator
// consults it before each action so a mid-drain connectivity drop abandons
// the cycle instead of burning retries on every remaining item.
type Online func() bool

// coordinator implements the Coordinator interface.
type coordinator struct {
	queue      queue.Queue
	client     *rest.Client
	online     Online
	onProgress ProgressFunc
	logger     *log.Logger

	mu       sync.Mutex
	syncing  bool
	progress schema.SyncProgress
}

// New creates a new Coordinator.
//
// online may be nil, in which case the network is assumed reachable and
// only per-request errors end a drain. If logger is nil, a default logger
// writing to stderr is used.
//
// Example:
//
//	coord := sync.New(q, client, monitor.IsOnline, nil, nil)
//	result, err := coord.SyncNow(ctx)
func New(q queue.Queue, client *rest.Client, online Online, onProgress ProgressFunc, logger *log.Logger) Coordinator {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &coordinator{
		queue:      q,
		client:     client,
		online:     online,
		onProgress: onProgress,
		logger:     logger,
		progress:   schema.SyncProgress{Status: schema.SyncIdle},
	}
}

// SyncNow implements Coordinator.SyncNow.
func (c *coordinator) SyncNow(ctx context.Context) (*Result, error) {
	c.mu.Lock()
	if c.syncing {
		c.mu.Unlock()
		return nil, ErrDrainInProgress
	}
	c.syncing = true
	c.mu.Unlock()

	defer func() {
		c.setProgress(schema.SyncProgress{Status: schema.SyncIdle})
		c.mu.Lock()
		c.syncing = false
		c.mu.Unlock()
	}()

	actions, err := c.queue.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue for drain: %w", err)
	}

	result := &Result{Success: true}
	total := len(actions)
	c.logger.Printf("Drain started: %d pending action(s)", total)
	c.setProgress(schema.SyncProgress{Status: schema.SyncSyncing, Total: total})

	completed := 0
	for _, action := range actions {
		if ctx.Err() != nil {
			c.logger.Printf("Drain cancelled after %d/%d", completed, total)
			result.Success = false
			return result, ctx.Err()
		}
		if c.online != nil && !c.online() {
			// Connectivity dropped mid-drain. Remaining items stay
			// queued for a future attempt.
			c.logger.Printf("Drain abandoned offline after %d/%d", completed, total)
			result.Success = false
			return result, nil
		}

		method, url, routeErr := c.client.RouteFor(action)
		if routeErr == nil {
			c.setProgress(schema.SyncProgress{
				Status:    schema.SyncSyncing,
				Completed: completed,
				Total:     total,
				Current:   &schema.CurrentRequest{Method: method, URL: url},
			})
		}

		attemptErr := routeErr
		if attemptErr == nil {
			attemptErr = c.client.Replay(ctx, action)
		}
		result.Attempted++
		completed++

		if attemptErr == nil {
			if err := c.queue.Remove(ctx, action.ID); err != nil {
				c.logger.Printf("Warning: acked action %s could not be removed: %v", action.ID, err)
			}
		} else {
			result.Success = false
			result.Errors = append(result.Errors, ActionError{ActionID: action.ID, Err: attemptErr.Error()})
			if err := c.queue.MarkFailed(ctx, action.ID, attemptErr); err != nil {
				c.logger.Printf("Warning: failed action %s could not be marked: %v", action.ID, err)
			}

			// A transport-level failure means the network path is gone;
			// stop instead of failing every remaining item in turn.
			// Routing failures are per-item and never abort.
			if routeErr == nil && isTransportError(attemptErr) {
				c.logger.Printf("Drain abandoned on network error after %d/%d: %v", completed, total, attemptErr)
				c.setProgress(schema.SyncProgress{Status: schema.SyncSyncing, Completed: completed, Total: total})
				return result, nil
			}
		}

		c.setProgress(schema.SyncProgress{Status: schema.SyncSyncing, Completed: completed, Total: total})
	}

	c.logger.Printf("Drain complete: %d attempted, %d failed", result.Attempted, len(result.Errors))
	return result, nil
}

// Progress implements Coordinator.Progress.
func (c *coordinator) Progress() schema.SyncProgress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

func (c *coordinator) setProgress(p schema.SyncProgress) {
	c.mu.Lock()
	c.progress = p
	c.mu.Unlock()

	if c.onProgress != nil {
		c.onProgress(p)
	}
}

// isTransportError distinguishes connectivity failures from server-side
// rejections. API errors and gone resources are per-item outcomes; anything
// else (dial failures, timeouts, DNS) means the network dropped.
func isTransportError(err error) bool {
	var apiErr *rest.APIError
	if errors.As(err, &apiErr) {
		return false
	}
	if errors.Is(err, rest.ErrResourceGone) {
		return false
	}
	return true
}
