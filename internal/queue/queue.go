package queue

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/escritoriolabs/lexsync/internal/schema"
	"github.com/escritoriolabs/lexsync/internal/store"
)

// Notify is invoked with the new queue depth after every change.
// Used to push pending-count badges to the dashboard. May be nil.
type Notify func(count int)

// queue implements the Queue interface over the SQLite store.
type queue struct {
	store  *store.Store
	logger *log.Logger
	notify Notify
}

// New creates a new Queue backed by the given store.
//
// The store must be opened and have its schema initialized. If logger is
// nil, a default logger writing to stderr is used. notify may be nil.
//
// Example:
//
//	st, err := store.Open(".lexsync/lexsync.db", 0)
//	if err != nil {
//	    return err
//	}
//	if err := st.InitSchema(); err != nil {
//	    return err
//	}
//	q := queue.New(st, nil, nil)
func New(st *store.Store, logger *log.Logger, notify Notify) Queue {
	if logger == nil {
		logger = log.New(os.Stderr, "[queue] ", log.LstdFlags)
	}
	return &queue{
		store:  st,
		logger: logger,
		notify: notify,
	}
}

// Enqueue implements Queue.Enqueue.
func (q *queue) Enqueue(ctx context.Context, action *schema.PendingAction) (string, error) {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}

	if err := q.store.EnqueueAction(ctx, action); err != nil {
		return "", fmt.Errorf("failed to enqueue %s %s: %w", action.Method, action.ResourceType, err)
	}

	q.logger.Printf("Enqueued %s %s (%s)", action.Method, action.ResourceType, action.ID)
	q.notifyCount(ctx)
	return action.ID, nil
}

// List implements Queue.List.
func (q *queue) List(ctx context.Context) ([]*schema.PendingAction, error) {
	actions, err := q.store.ListActions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending actions: %w", err)
	}
	return actions, nil
}

// Remove implements Queue.Remove.
func (q *queue) Remove(ctx context.Context, id string) error {
	if err := q.store.RemoveAction(ctx, id); err != nil {
		return fmt.Errorf("failed to remove action %s: %w", id, err)
	}

	q.logger.Printf("Removed action %s (acked)", id)
	q.notifyCount(ctx)
	return nil
}

// MarkFailed implements Queue.MarkFailed.
func (q *queue) MarkFailed(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := q.store.MarkActionFailed(ctx, id, msg); err != nil {
		return fmt.Errorf("failed to mark action %s failed: %w", id, err)
	}

	q.logger.Printf("Action %s failed, kept for retry: %s", id, msg)
	return nil
}

// Count implements Queue.Count.
func (q *queue) Count(ctx context.Context) (int, error) {
	count, err := q.store.CountActions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending actions: %w", err)
	}
	return count, nil
}

func (q *queue) notifyCount(ctx context.Context) {
	if q.notify == nil {
		return
	}
	count, err := q.store.CountActions(ctx)
	if err != nil {
		q.logger.Printf("Warning: failed to count actions for notify: %v", err)
		return
	}
	q.notify(count)
}
