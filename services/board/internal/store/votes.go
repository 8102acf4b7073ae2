package store

import (
	"context"

	"github.com/example/board-platform/services/board/internal/domain"
)

// VoteLedger records at most one vote per (user, content) pair. Content IDs
// are unique across threads, messages and comments.
type VoteLedger interface {
	// FindVote reports the user's stored vote on content, if any.
	FindVote(ctx context.Context, user, content string) (domain.Vote, bool, error)
	// FindVotes returns the user's votes for the given contents; missing
	// entries are absent from the map.
	FindVotes(ctx context.Context, user string, contentIDs []string) (map[string]domain.Vote, error)
	// RecordVote inserts when previous is VoteNone, updates when previous
	// differs from next and does nothing when they match.
	RecordVote(ctx context.Context, user, content string, next, previous domain.Vote) error
	Ping(ctx context.Context) error
}
