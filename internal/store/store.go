// Package store provides the embedded SQLite persistence layer for lexsync.
//
// The store backs everything the agent must keep across restarts: the
// pending-action queue, the cached contatos/processos/mensagens read models,
// form drafts, and sync cursors.
//
// The database runs in embedded mode with WAL enabled so the daemon can
// serve dashboard reads while a drain is writing.
//
// Architecture:
//   - Database file: .lexsync/lexsync.db
//   - WAL mode: concurrent readers during writes
//   - Schema: pending_actions, contatos, processos, mensagens, drafts, cursors
//   - Indexes: queue drain order (created_at), cache lookups by entity id
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrQuotaExceeded is returned by cache writes when local storage usage is at
// or over the configured quota. Pending actions and drafts are exempt: user
// data is never refused in favor of cache.
var ErrQuotaExceeded = errors.New("local storage quota exceeded")

// Store wraps the SQLite connection with lexsync-specific functionality.
type Store struct {
	conn *sql.DB
	path string

	// quota is the configured byte budget for the database file.
	// Zero means unlimited.
	quota int64
}

// Open creates a new store at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If it doesn't exist it is created along with the schema.
//
// quota is the byte budget enforced on cache writes (0 = unlimited).
//
// The caller MUST call Close() when done.
//
// Example:
//
//	st, err := store.Open(".lexsync/lexsync.db", 50<<20)
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(path string, quota int64) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	st := &Store{
		conn:  conn,
		path:  path,
		quota: quota,
	}

	// Enable WAL mode for concurrent reads
	if _, err := st.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := st.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := st.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return st, nil
}

// RawDB returns the underlying sql.DB connection.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// Idempotent - safe to call multiple times.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	schema := `
	-- Durable mutation queue. seq preserves FIFO enqueue order.
	CREATE TABLE IF NOT EXISTS pending_actions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		method TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT,
		payload TEXT,
		created_at TEXT NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	);

	-- Cached read models
	CREATE TABLE IF NOT EXISTS contatos (
		id TEXT PRIMARY KEY,
		nome TEXT NOT NULL,
		email TEXT,
		telefone TEXT,
		origem TEXT,
		status TEXT NOT NULL DEFAULT 'novo',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS processos (
		id TEXT PRIMARY KEY,
		numero TEXT NOT NULL,
		titulo TEXT NOT NULL,
		contato_id TEXT,
		status TEXT NOT NULL DEFAULT 'ativo',
		prazo TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS mensagens (
		id TEXT PRIMARY KEY,
		contato_id TEXT NOT NULL,
		conteudo TEXT NOT NULL,
		direcao TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Form drafts keyed as '<form>_draft', plus sync cursors
	CREATE TABLE IF NOT EXISTS drafts (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cursors (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	-- Indexes for common queries
	CREATE INDEX IF NOT EXISTS idx_actions_created ON pending_actions(created_at);
	CREATE INDEX IF NOT EXISTS idx_contatos_status ON contatos(status);
	CREATE INDEX IF NOT EXISTS idx_contatos_updated ON contatos(updated_at);
	CREATE INDEX IF NOT EXISTS idx_processos_status ON processos(status);
	CREATE INDEX IF NOT EXISTS idx_processos_contato ON processos(contato_id);
	CREATE INDEX IF NOT EXISTS idx_processos_prazo ON processos(prazo);
	CREATE INDEX IF NOT EXISTS idx_mensagens_contato ON mensagens(contato_id, created_at);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
