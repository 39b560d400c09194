package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/escritoriolabs/lexsync/internal/schema"
)

// ErrActionNotFound is returned when a queue operation targets an id that is
// not (or no longer) in the queue.
var ErrActionNotFound = errors.New("pending action not found")

// EnqueueAction appends a pending action to the durable queue.
//
// The queue is exempt from the cache quota: a mutation made offline must
// never be dropped because cached entities filled the budget.
func (s *Store) EnqueueAction(ctx context.Context, action *schema.PendingAction) error {
	if err := action.Validate(); err != nil {
		return fmt.Errorf("invalid action: %w", err)
	}

	query := `
	INSERT INTO pending_actions (id, method, resource_type, resource_id, payload, created_at, retry_count, last_error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.conn.ExecContext(ctx, query,
		action.ID,
		action.Method,
		action.ResourceType,
		nullIfEmpty(action.ResourceID),
		nullIfEmptyBytes(action.Payload),
		action.CreatedAt.Format(time.RFC3339Nano),
		action.RetryCount,
		nullIfEmpty(action.LastError),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue action %s: %w", action.ID, err)
	}

	return nil
}

// ListActions returns all pending actions in FIFO enqueue order.
func (s *Store) ListActions(ctx context.Context) ([]*schema.PendingAction, error) {
	query := `
	SELECT id, method, resource_type, resource_id, payload, created_at, retry_count, last_error
	FROM pending_actions
	ORDER BY seq ASC
	`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending actions: %w", err)
	}
	defer rows.Close()

	return scanActions(rows)
}

// GetAction retrieves a single pending action by id.
// Returns ErrActionNotFound if it is not queued.
func (s *Store) GetAction(ctx context.Context, id string) (*schema.PendingAction, error) {
	query := `
	SELECT id, method, resource_type, resource_id, payload, created_at, retry_count, last_error
	FROM pending_actions
	WHERE id = ?
	`

	row := s.conn.QueryRowContext(ctx, query, id)
	action, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get action %s: %w", id, err)
	}
	return action, nil
}

// RemoveAction deletes an action from the queue after a confirmed server ack.
func (s *Store) RemoveAction(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, "DELETE FROM pending_actions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to remove action %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check removal of %s: %w", id, err)
	}
	if n == 0 {
		return ErrActionNotFound
	}
	return nil
}

// MarkActionFailed records a failed attempt: the action stays queued in its
// original position with retry_count incremented and last_error updated.
func (s *Store) MarkActionFailed(ctx context.Context, id string, cause string) error {
	query := `
	UPDATE pending_actions
	SET retry_count = retry_count + 1, last_error = ?
	WHERE id = ?
	`

	res, err := s.conn.ExecContext(ctx, query, cause, id)
	if err != nil {
		return fmt.Errorf("failed to mark action %s failed: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check failure mark on %s: %w", id, err)
	}
	if n == 0 {
		return ErrActionNotFound
	}
	return nil
}

// CountActions returns the number of queued actions. This feeds the
// pending-count badge on the dashboard.
func (s *Store) CountActions(ctx context.Context) (int, error) {
	var count int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM pending_actions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending actions: %w", err)
	}
	return count, nil
}

// PruneActionsBefore removes queued actions created before the cutoff.
// Returns the number of actions removed.
func (s *Store) PruneActionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		"DELETE FROM pending_actions WHERE created_at < ?",
		cutoff.Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to prune actions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned actions: %w", err)
	}
	return n, nil
}

// scanner abstracts *sql.Row and *sql.Rows for action scanning.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAction(row scanner) (*schema.PendingAction, error) {
	var action schema.PendingAction
	var resourceID, payload, lastError sql.NullString
	var createdAt string

	err := row.Scan(
		&action.ID,
		&action.Method,
		&action.ResourceType,
		&resourceID,
		&payload,
		&createdAt,
		&action.RetryCount,
		&lastError,
	)
	if err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		action.CreatedAt = t
	}
	action.ResourceID = resourceID.String
	action.LastError = lastError.String
	if payload.Valid {
		action.Payload = json.RawMessage(payload.String)
	}

	return &action, nil
}

func scanActions(rows *sql.Rows) ([]*schema.PendingAction, error) {
	var actions []*schema.PendingAction

	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		actions = append(actions, action)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating actions: %w", err)
	}

	return actions, nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullIfEmptyBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: string(b), Valid: true}
}
