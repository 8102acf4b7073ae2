package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS board_threads (
		id       TEXT PRIMARY KEY,
		country  TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		updated  TIMESTAMPTZ NOT NULL,
		doc      JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS board_threads_updated_idx ON board_threads (updated DESC, id)`,
	`CREATE INDEX IF NOT EXISTS board_threads_tags_idx ON board_threads (country, language, updated DESC)`,
	`CREATE TABLE IF NOT EXISTS board_votes (
		user_id    TEXT NOT NULL,
		content_id TEXT NOT NULL,
		vote       SMALLINT NOT NULL CHECK (vote IN (-1, 1)),
		PRIMARY KEY (user_id, content_id)
	)`,
}

// EnsurePostgresSchema creates the board tables when missing.
func EnsurePostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
