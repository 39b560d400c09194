// Package queue provides the durable pending-action queue: every mutation
// performed while the CRM API is unreachable (or not yet acknowledged) is
// recorded here and replayed later by the sync coordinator.
package queue

import (
	"context"

	"github.com/escritoriolabs/lexsync/internal/schema"
)

// Queue is the pending-action queue contract.
//
// Ordering is strict FIFO by enqueue time and is preserved across drain
// attempts: a failed item keeps its position and is retried in place on the
// next drain. Items are removed only on a confirmed server ack.
//
// All operations are durable - the queue survives process restarts.
type Queue interface {
	// Enqueue records a mutation and returns its assigned id.
	//
	// The action's ID may be left empty; a UUID is assigned. CreatedAt
	// defaults to now. Enqueue is best-effort local persistence and is
	// exempt from the cache storage quota.
	Enqueue(ctx context.Context, action *schema.PendingAction) (string, error)

	// List returns all pending actions in FIFO enqueue order.
	List(ctx context.Context) ([]*schema.PendingAction, error)

	// Remove deletes an action after a confirmed server ack.
	// Returns store.ErrActionNotFound if the id is not queued.
	Remove(ctx context.Context, id string) error

	// MarkFailed records a failed sync attempt: the action stays queued
	// with retry_count incremented and the error message retained.
	MarkFailed(ctx context.Context, id string, cause error) error

	// Count returns the number of queued actions, for UI badges.
	Count(ctx context.Context) (int, error)
}
