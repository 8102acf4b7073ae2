package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/board-platform/services/board/internal/domain"
)

// PostgresThreadStore keeps each aggregate as one JSONB document. The
// filter and sort columns are denormalised next to it.
type PostgresThreadStore struct {
	pool *pgxpool.Pool
}

func NewPostgresThreadStore(pool *pgxpool.Pool) *PostgresThreadStore {
	return &PostgresThreadStore{pool: pool}
}

func (s *PostgresThreadStore) Create(ctx context.Context, t domain.Thread) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("%w: encode thread: %w", domain.ErrStorage, err)
	}
	const q = `INSERT INTO board_threads (id, country, language, updated, doc)
	           VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, q, t.ID, t.Country, t.Language, t.Updated, doc); err != nil {
		return fmt.Errorf("%w: insert thread: %w", domain.ErrStorage, err)
	}
	return nil
}

func (s *PostgresThreadStore) Get(ctx context.Context, id string) (domain.Thread, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM board_threads WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Thread{}, fmt.Errorf("%w: thread %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Thread{}, fmt.Errorf("%w: select thread: %w", domain.ErrStorage, err)
	}
	var t domain.Thread
	if err := json.Unmarshal(doc, &t); err != nil {
		return domain.Thread{}, fmt.Errorf("%w: decode thread %s: %w", domain.ErrStorage, id, err)
	}
	return t, nil
}

func (s *PostgresThreadStore) Save(ctx context.Context, t domain.Thread) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("%w: encode thread: %w", domain.ErrStorage, err)
	}
	const q = `UPDATE board_threads SET country = $2, language = $3, updated = $4, doc = $5
	           WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, t.ID, t.Country, t.Language, t.Updated, doc)
	return affected(tag, err, "update thread", t.ID)
}

func (s *PostgresThreadStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM board_threads WHERE id = $1`, id)
	return affected(tag, err, "delete thread", id)
}

func (s *PostgresThreadStore) List(ctx context.Context, f ListFilter) ([]domain.Thread, error) {
	limit := any(nil)
	if f.Limit > 0 {
		limit = f.Limit
	}
	const q = `SELECT doc - 'messages'
	           FROM board_threads
	           WHERE ($1 = '' OR country = $1) AND ($2 = '' OR language = $2)
	           ORDER BY updated DESC, id ASC
	           LIMIT $3 OFFSET $4`
	rows, err := s.pool.Query(ctx, q, f.Country, f.Language, limit, max(f.Offset, 0))
	if err != nil {
		return nil, fmt.Errorf("%w: list threads: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	out := []domain.Thread{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("%w: scan thread: %w", domain.ErrStorage, err)
		}
		var t domain.Thread
		if err := json.Unmarshal(doc, &t); err != nil {
			return nil, fmt.Errorf("%w: decode thread: %w", domain.ErrStorage, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list threads: %w", domain.ErrStorage, err)
	}
	return out, nil
}

func (s *PostgresThreadStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func affected(tag pgconn.CommandTag, err error, op, id string) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: thread %s", domain.ErrNotFound, id)
	}
	return nil
}
