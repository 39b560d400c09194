package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/escritoriolabs/lexsync/internal/schema"
)

// ErrNotCached is returned when a cached entity lookup misses.
var ErrNotCached = errors.New("entity not in local cache")

// UpsertContato inserts or updates a cached contato.
//
// Cache writes are refused with ErrQuotaExceeded when the store is over
// budget; the caller decides whether that matters (live-channel updates
// drop the write, explicit fetches surface the error).
func (s *Store) UpsertContato(ctx context.Context, c *schema.Contato) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid contato: %w", err)
	}
	if err := s.checkCacheQuota(ctx); err != nil {
		return err
	}

	query := `
	INSERT INTO contatos (id, nome, email, telefone, origem, status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		nome = excluded.nome,
		email = excluded.email,
		telefone = excluded.telefone,
		origem = excluded.origem,
		status = excluded.status,
		updated_at = excluded.updated_at
	`

	_, err := s.conn.ExecContext(ctx, query,
		c.ID, c.Nome, c.Email, c.Telefone, c.Origem, c.Status,
		c.CreatedAt.Format(time.RFC3339),
		c.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert contato %s: %w", c.ID, err)
	}
	return nil
}

// GetContato retrieves a cached contato by id.
// Returns ErrNotCached on a miss.
func (s *Store) GetContato(ctx context.Context, id string) (*schema.Contato, error) {
	query := `
	SELECT id, nome, email, telefone, origem, status, created_at, updated_at
	FROM contatos WHERE id = ?
	`

	var c schema.Contato
	var email, telefone, origem sql.NullString
	var createdAt, updatedAt string

	err := s.conn.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Nome, &email, &telefone, &origem, &c.Status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contato %s: %w", id, err)
	}

	c.Email = email.String
	c.Telefone = telefone.String
	c.Origem = origem.String
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		c.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		c.UpdatedAt = t
	}
	return &c, nil
}

// ContatosFilter configures ListContatos.
type ContatosFilter struct {
	// Status filters by pipeline status (empty = all).
	Status string
	// Limit restricts the number of results (0 = no limit).
	Limit int
	// Offset skips the first N results (for pagination).
	Offset int
}

// ListContatos retrieves cached contatos, most recently updated first.
func (s *Store) ListContatos(ctx context.Context, filter ContatosFilter) ([]*schema.Contato, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	query := `
	SELECT id, nome, email, telefone, origem, status, created_at, updated_at
	FROM contatos
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY updated_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contatos: %w", err)
	}
	defer rows.Close()

	var contatos []*schema.Contato
	for rows.Next() {
		var c schema.Contato
		var email, telefone, origem sql.NullString
		var createdAt, updatedAt string

		if err := rows.Scan(&c.ID, &c.Nome, &email, &telefone, &origem, &c.Status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contato: %w", err)
		}
		c.Email = email.String
		c.Telefone = telefone.String
		c.Origem = origem.String
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			c.CreatedAt = t
		}
		if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			c.UpdatedAt = t
		}
		contatos = append(contatos, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contatos: %w", err)
	}
	return contatos, nil
}

// DeleteContato removes a contato (and its cached messages) from the cache.
// Idempotent: returns nil if the contato isn't cached.
func (s *Store) DeleteContato(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM mensagens WHERE contato_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete mensagens for contato %s: %w", id, err)
	}
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM contatos WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete contato %s: %w", id, err)
	}
	return nil
}

// UpsertProcesso inserts or updates a cached processo.
func (s *Store) UpsertProcesso(ctx context.Context, p *schema.Processo) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid processo: %w", err)
	}
	if err := s.checkCacheQuota(ctx); err != nil {
		return err
	}

	query := `
	INSERT INTO processos (id, numero, titulo, contato_id, status, prazo, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		numero = excluded.numero,
		titulo = excluded.titulo,
		contato_id = excluded.contato_id,
		status = excluded.status,
		prazo = excluded.prazo,
		updated_at = excluded.updated_at
	`

	_, err := s.conn.ExecContext(ctx, query,
		p.ID, p.Numero, p.Titulo, nullIfEmpty(p.ContatoID), p.Status,
		timeToNullString(p.Prazo),
		p.CreatedAt.Format(time.RFC3339),
		p.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert processo %s: %w", p.ID, err)
	}
	return nil
}

// GetProcesso retrieves a cached processo by id.
// Returns ErrNotCached on a miss.
func (s *Store) GetProcesso(ctx context.Context, id string) (*schema.Processo, error) {
	query := `
	SELECT id, numero, titulo, contato_id, status, prazo, created_at, updated_at
	FROM processos WHERE id = ?
	`

	var p schema.Processo
	var contatoID, prazo sql.NullString
	var createdAt, updatedAt string

	err := s.conn.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Numero, &p.Titulo, &contatoID, &p.Status, &prazo, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get processo %s: %w", id, err)
	}

	p.ContatoID = contatoID.String
	p.Prazo = nullStringToTime(prazo)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		p.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		p.UpdatedAt = t
	}
	return &p, nil
}

// ListProcessos retrieves cached processos, most recently updated first.
func (s *Store) ListProcessos(ctx context.Context, status string, limit int) ([]*schema.Processo, error) {
	var conditions []string
	var args []interface{}

	if status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, status)
	}

	query := `
	SELECT id, numero, titulo, contato_id, status, prazo, created_at, updated_at
	FROM processos
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY updated_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list processos: %w", err)
	}
	defer rows.Close()

	var processos []*schema.Processo
	for rows.Next() {
		var p schema.Processo
		var contatoID, prazo sql.NullString
		var createdAt, updatedAt string

		if err := rows.Scan(&p.ID, &p.Numero, &p.Titulo, &contatoID, &p.Status, &prazo, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan processo: %w", err)
		}
		p.ContatoID = contatoID.String
		p.Prazo = nullStringToTime(prazo)
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			p.CreatedAt = t
		}
		if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			p.UpdatedAt = t
		}
		processos = append(processos, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating processos: %w", err)
	}
	return processos, nil
}

// DeleteProcesso removes a processo from the cache. Idempotent.
func (s *Store) DeleteProcesso(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM processos WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete processo %s: %w", id, err)
	}
	return nil
}

// UpsertMensagens caches a batch of messages for a contato.
func (s *Store) UpsertMensagens(ctx context.Context, msgs []*schema.Mensagem) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := s.checkCacheQuota(ctx); err != nil {
		return err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO mensagens (id, contato_id, conteudo, direcao, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		conteudo = excluded.conteudo,
		direcao = excluded.direcao
	`

	for _, m := range msgs {
		if _, err := tx.ExecContext(ctx, query,
			m.ID, m.ContatoID, m.Conteudo, m.Direcao,
			m.CreatedAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("failed to upsert mensagem %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mensagens: %w", err)
	}
	return nil
}

// ListMensagens retrieves cached messages for a contato in chronological order.
func (s *Store) ListMensagens(ctx context.Context, contatoID string, limit int) ([]*schema.Mensagem, error) {
	query := `
	SELECT id, contato_id, conteudo, direcao, created_at
	FROM mensagens
	WHERE contato_id = ?
	ORDER BY created_at ASC
	`
	args := []interface{}{contatoID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list mensagens: %w", err)
	}
	defer rows.Close()

	var msgs []*schema.Mensagem
	for rows.Next() {
		var m schema.Mensagem
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ContatoID, &m.Conteudo, &m.Direcao, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan mensagem: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			m.CreatedAt = t
		}
		msgs = append(msgs, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mensagens: %w", err)
	}
	return msgs, nil
}
