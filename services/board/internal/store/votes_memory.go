package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/board-platform/services/board/internal/domain"
)

type voteKey struct {
	user    string
	content string
}

// InMemoryVoteLedger is a development-only ledger.
type InMemoryVoteLedger struct {
	mu    sync.RWMutex
	votes map[voteKey]domain.Vote
}

func NewInMemoryVoteLedger() *InMemoryVoteLedger {
	return &InMemoryVoteLedger{votes: make(map[voteKey]domain.Vote)}
}

func (l *InMemoryVoteLedger) FindVote(_ context.Context, user, content string) (domain.Vote, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	v, ok := l.votes[voteKey{user, content}]
	return v, ok, nil
}

func (l *InMemoryVoteLedger) FindVotes(_ context.Context, user string, contentIDs []string) (map[string]domain.Vote, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]domain.Vote, len(contentIDs))
	for _, id := range contentIDs {
		if v, ok := l.votes[voteKey{user, id}]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (l *InMemoryVoteLedger) RecordVote(_ context.Context, user, content string, next, previous domain.Vote) error {
	if !next.Valid() {
		return fmt.Errorf("%w: vote must be 1 or -1", domain.ErrValidation)
	}
	if previous == next {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.votes[voteKey{user, content}] = next
	return nil
}

func (l *InMemoryVoteLedger) Ping(context.Context) error { return nil }
