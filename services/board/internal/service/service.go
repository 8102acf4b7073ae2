// Package service orchestrates board operations: it loads the thread
// aggregate, applies domain mutations, persists the aggregate in one write
// and enriches results with author profiles and the caller's votes.
package service

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/example/board-platform/services/board/internal/domain"
	"github.com/example/board-platform/services/board/internal/identity"
	"github.com/example/board-platform/services/board/internal/ledger"
	"github.com/example/board-platform/services/board/internal/store"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Caller is the authenticated user on whose behalf an operation runs.
type Caller struct {
	UserID string
	// Token is forwarded to the identity service for profile lookups.
	Token string
}

// LedgerQueue accepts vote ledger writes to be applied asynchronously.
type LedgerQueue interface {
	Enqueue(job ledger.Job)
}

// EventPublisher is the fire-and-forget activity publisher.
type EventPublisher interface {
	Publish(subject, userID string, props map[string]any)
}

type Deps struct {
	Threads   store.ThreadStore
	Votes     store.VoteLedger
	Ledger    LedgerQueue
	Directory identity.Directory
	Events    EventPublisher
	Log       *zap.Logger
	Now       func() time.Time
	NewID     func() string
}

type Service struct {
	threads   store.ThreadStore
	votes     store.VoteLedger
	ledger    LedgerQueue
	directory identity.Directory
	events    EventPublisher
	log       *zap.Logger
	now       func() time.Time
	newID     func() string
	policy    *bluemonday.Policy
}

func New(d Deps) *Service {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return &Service{
		threads:   d.Threads,
		votes:     d.Votes,
		ledger:    d.Ledger,
		directory: d.Directory,
		events:    d.Events,
		log:       d.Log,
		now:       d.Now,
		newID:     d.NewID,
		policy:    bluemonday.StrictPolicy(),
	}
}

// Ping checks both backing stores.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.threads.Ping(ctx); err != nil {
		return fmt.Errorf("threads: %w", err)
	}
	if err := s.votes.Ping(ctx); err != nil {
		return fmt.Errorf("votes: %w", err)
	}
	return nil
}

// clean strips markup and surrounding whitespace from user text. The
// policy entity-encodes what it keeps, so the result is decoded back to
// plain text before it is stored.
func (s *Service) clean(v string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(strings.TrimSpace(v))))
}

var langTag = regexp.MustCompile(`^[A-Za-z]{2}$`)

func validTag(v string) bool {
	return v == "" || langTag.MatchString(v)
}

func (s *Service) publish(subject, user string, props map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Publish(subject, user, props)
}

func (s *Service) load(ctx context.Context, threadID string) (domain.Thread, error) {
	t, err := s.threads.Get(ctx, threadID)
	if err != nil {
		return domain.Thread{}, fmt.Errorf("load thread: %w", err)
	}
	return t, nil
}

func (s *Service) save(ctx context.Context, t domain.Thread) error {
	if err := s.threads.Save(ctx, t); err != nil {
		return fmt.Errorf("save thread %s: %w", t.ID, err)
	}
	return nil
}

// ownedNode resolves target and checks that caller authored it.
func ownedNode(t *domain.Thread, target domain.Target, caller Caller) (domain.Node, error) {
	node, err := t.Node(target)
	if err != nil {
		return domain.Node{}, err
	}
	if node.Author != caller.UserID {
		return domain.Node{}, fmt.Errorf("%w: %s %s", domain.ErrNotOwner, target.Level(), node.ID)
	}
	return node, nil
}
