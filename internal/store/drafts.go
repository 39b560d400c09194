package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrDraftNotFound is returned when a draft lookup misses.
var ErrDraftNotFound = errors.New("draft not found")

// SaveDraft persists in-progress form state under a `<form>_draft` key.
// Drafts are user data; like the queue they bypass the cache quota.
func (s *Store) SaveDraft(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return fmt.Errorf("draft key is required")
	}

	query := `
	INSERT INTO drafts (key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at
	`

	_, err := s.conn.ExecContext(ctx, query, key, string(value), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save draft %s: %w", key, err)
	}
	return nil
}

// GetDraft retrieves a saved draft. Returns ErrDraftNotFound on a miss.
func (s *Store) GetDraft(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, "SELECT value FROM drafts WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft %s: %w", key, err)
	}
	return []byte(value), nil
}

// DeleteDraft removes a draft, typically after the form submits successfully.
// Idempotent.
func (s *Store) DeleteDraft(ctx context.Context, key string) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM drafts WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete draft %s: %w", key, err)
	}
	return nil
}

// SetCursor stores an opaque sync cursor (e.g. the last seen dashboard
// metrics fetch, or the live-channel resume position).
func (s *Store) SetCursor(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO cursors (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := s.conn.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set cursor %s: %w", key, err)
	}
	return nil
}

// GetCursor retrieves a cursor value; empty string when unset.
func (s *Store) GetCursor(ctx context.Context, key string) (string, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, "SELECT value FROM cursors WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cursor %s: %w", key, err)
	}
	return value, nil
}
