package store

import (
	"context"

	"github.com/example/board-platform/services/board/internal/domain"
)

// ListFilter selects a page of thread summaries. Empty tags match any value.
type ListFilter struct {
	Country  string
	Language string
	Offset   int
	Limit    int
}

// ThreadStore persists whole Thread aggregates. Messages and comments are
// never stored on their own: every mutation is a single Save of the root.
type ThreadStore interface {
	Create(ctx context.Context, t domain.Thread) error
	Get(ctx context.Context, id string) (domain.Thread, error)
	Save(ctx context.Context, t domain.Thread) error
	Delete(ctx context.Context, id string) error
	// List returns summaries (no messages) ordered by updated desc.
	List(ctx context.Context, f ListFilter) ([]domain.Thread, error)
	Ping(ctx context.Context) error
}
