package store

import (
	"context"
	"fmt"

	"github.com/escritoriolabs/lexsync/internal/schema"
)

// Quota returns a snapshot of local storage usage against the configured
// budget. Usage is computed from SQLite's page accounting so it reflects
// the live database, not the (lazily truncated) file size.
func (s *Store) Quota() (schema.StorageQuota, error) {
	return s.QuotaContext(context.Background())
}

// QuotaContext returns the storage quota snapshot with context support.
func (s *Store) QuotaContext(ctx context.Context) (schema.StorageQuota, error) {
	var pageCount, pageSize int64

	if err := s.conn.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return schema.StorageQuota{}, fmt.Errorf("failed to read page_count: %w", err)
	}
	if err := s.conn.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return schema.StorageQuota{}, fmt.Errorf("failed to read page_size: %w", err)
	}

	return schema.StorageQuota{
		Usage: pageCount * pageSize,
		Quota: s.quota,
	}, nil
}

// checkCacheQuota returns ErrQuotaExceeded when the database is at or over
// budget. Only cache writes call this; queue and draft writes never do.
func (s *Store) checkCacheQuota(ctx context.Context) error {
	q, err := s.QuotaContext(ctx)
	if err != nil {
		return err
	}
	if q.Exceeded() {
		return fmt.Errorf("refusing cache write at %d/%d bytes: %w", q.Usage, q.Quota, ErrQuotaExceeded)
	}
	return nil
}

// ClearCache drops all cached entities. Pending actions, drafts and cursors
// are untouched. This is the explicit recovery path when the quota is hit.
func (s *Store) ClearCache(ctx context.Context) error {
	for _, table := range []string{"contatos", "processos", "mensagens"} {
		if _, err := s.conn.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s cache: %w", table, err)
		}
	}
	// Return the freed pages to the OS so Quota() reflects the cleanup.
	if _, err := s.conn.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum after cache clear: %w", err)
	}
	return nil
}
