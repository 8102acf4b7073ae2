package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/board-platform/services/board/internal/domain"
)

// PostgresVoteLedger keys board_votes by (user_id, content_id).
type PostgresVoteLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresVoteLedger(pool *pgxpool.Pool) *PostgresVoteLedger {
	return &PostgresVoteLedger{pool: pool}
}

func (l *PostgresVoteLedger) FindVote(ctx context.Context, user, content string) (domain.Vote, bool, error) {
	var v int16
	err := l.pool.QueryRow(ctx,
		`SELECT vote FROM board_votes WHERE user_id = $1 AND content_id = $2`,
		user, content).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.VoteNone, false, nil
	}
	if err != nil {
		return domain.VoteNone, false, fmt.Errorf("%w: find vote: %w", domain.ErrStorage, err)
	}
	return domain.Vote(v), true, nil
}

func (l *PostgresVoteLedger) FindVotes(ctx context.Context, user string, contentIDs []string) (map[string]domain.Vote, error) {
	out := make(map[string]domain.Vote, len(contentIDs))
	if len(contentIDs) == 0 {
		return out, nil
	}
	rows, err := l.pool.Query(ctx,
		`SELECT content_id, vote FROM board_votes WHERE user_id = $1 AND content_id = ANY($2)`,
		user, contentIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: find votes: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var v int16
		if err := rows.Scan(&id, &v); err != nil {
			return nil, fmt.Errorf("%w: scan vote: %w", domain.ErrStorage, err)
		}
		out[id] = domain.Vote(v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: find votes: %w", domain.ErrStorage, err)
	}
	return out, nil
}

func (l *PostgresVoteLedger) RecordVote(ctx context.Context, user, content string, next, previous domain.Vote) error {
	if !next.Valid() {
		return fmt.Errorf("%w: vote must be 1 or -1", domain.ErrValidation)
	}
	if previous == next {
		return nil
	}

	var err error
	if previous == domain.VoteNone {
		_, err = l.pool.Exec(ctx,
			`INSERT INTO board_votes (user_id, content_id, vote) VALUES ($1, $2, $3)
			 ON CONFLICT (user_id, content_id) DO UPDATE SET vote = EXCLUDED.vote`,
			user, content, int16(next))
	} else {
		_, err = l.pool.Exec(ctx,
			`UPDATE board_votes SET vote = $3 WHERE user_id = $1 AND content_id = $2`,
			user, content, int16(next))
	}
	if err != nil {
		return fmt.Errorf("%w: record vote: %w", domain.ErrStorage, err)
	}
	return nil
}

func (l *PostgresVoteLedger) Ping(ctx context.Context) error {
	return l.pool.Ping(ctx)
}
