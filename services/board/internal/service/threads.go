package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/board-platform/internal/platform/events"
	"github.com/example/board-platform/services/board/internal/domain"
	"github.com/example/board-platform/services/board/internal/ledger"
	"github.com/example/board-platform/services/board/internal/store"
)

// ListParams filters and pages the thread listing.
type ListParams struct {
	Country  string
	Language string
	Offset   int
	Limit    int
}

// ThreadInput creates a thread. Country and Language are optional
// two-letter tags.
type ThreadInput struct {
	Title    string
	Text     string
	Country  string
	Language string
}

// Patch carries partial edits: empty fields are left unchanged. Title only
// applies to threads.
type Patch struct {
	Title string
	Text  string
}

// ListThreads returns thread summaries, most recently active first.
func (s *Service) ListThreads(ctx context.Context, caller Caller, p ListParams) ([]ThreadSummary, error) {
	if !validTag(p.Country) || !validTag(p.Language) {
		return nil, fmt.Errorf("%w: country and lang must be two-letter codes", domain.ErrValidation)
	}
	f := store.ListFilter{Country: p.Country, Language: p.Language, Offset: p.Offset, Limit: p.Limit}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}

	threads, err := s.threads.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	out := make([]ThreadSummary, 0, len(threads))
	if len(threads) == 0 {
		return out, nil
	}

	authors := make([]string, 0, len(threads))
	ids := make([]string, 0, len(threads))
	for _, t := range threads {
		authors = append(authors, t.Author)
		ids = append(ids, t.ID)
	}
	e, err := s.enrich(ctx, caller, authors, ids)
	if err != nil {
		return nil, err
	}
	for _, t := range threads {
		out = append(out, e.summary(t))
	}
	return out, nil
}

// CreateThread opens a new thread authored by caller.
func (s *Service) CreateThread(ctx context.Context, caller Caller, in ThreadInput) (ThreadView, error) {
	title, text := s.clean(in.Title), s.clean(in.Text)
	if title == "" || text == "" {
		return ThreadView{}, fmt.Errorf("%w: title and text are required", domain.ErrValidation)
	}
	if !validTag(in.Country) || !validTag(in.Language) {
		return ThreadView{}, fmt.Errorf("%w: country and language must be two-letter codes", domain.ErrValidation)
	}

	t := domain.NewThread(s.newID(), caller.UserID, title, text, in.Country, in.Language, s.now())
	if err := s.threads.Create(ctx, t); err != nil {
		return ThreadView{}, fmt.Errorf("create thread: %w", err)
	}
	s.publish(events.SubjectThreadCreated, caller.UserID, map[string]any{
		"thread_id": t.ID,
		"country":   t.Country,
		"language":  t.Language,
	})

	e, err := s.enrich(ctx, caller, []string{t.Author}, []string{t.ID})
	if err != nil {
		return ThreadView{}, err
	}
	return e.thread(t), nil
}

// GetThread returns the whole aggregate, every node decorated.
func (s *Service) GetThread(ctx context.Context, caller Caller, threadID string) (ThreadView, error) {
	t, err := s.load(ctx, threadID)
	if err != nil {
		return ThreadView{}, err
	}
	e, err := s.enrich(ctx, caller, t.AuthorIDs(), t.ContentIDs())
	if err != nil {
		return ThreadView{}, err
	}
	return e.thread(t), nil
}

// Edit applies a partial update to the node at target. Only its author
// may edit it.
func (s *Service) Edit(ctx context.Context, caller Caller, target domain.Target, p Patch) (MutationResult, error) {
	title, text := s.clean(p.Title), s.clean(p.Text)

	t, err := s.load(ctx, target.ThreadID)
	if err != nil {
		return MutationResult{}, err
	}
	if _, err := ownedNode(&t, target, caller); err != nil {
		return MutationResult{}, err
	}

	now := s.now()
	switch target.Level() {
	case domain.LevelThread:
		t.Edit(title, text, now)
	case domain.LevelMessage:
		err = t.EditMessage(target.MessageID, text, now)
	case domain.LevelComment:
		err = t.EditComment(target.MessageID, target.CommentID, text, now)
	}
	if err != nil {
		return MutationResult{}, err
	}
	if err := s.save(ctx, t); err != nil {
		return MutationResult{}, err
	}

	node, err := t.Node(target)
	if err != nil {
		return MutationResult{}, err
	}
	return s.mutationResult(ctx, caller, node)
}

// Delete removes the node at target and everything beneath it. Only its
// author may delete it. Ledger entries for removed content are kept.
func (s *Service) Delete(ctx context.Context, caller Caller, target domain.Target) (MutationResult, error) {
	t, err := s.load(ctx, target.ThreadID)
	if err != nil {
		return MutationResult{}, err
	}
	node, err := ownedNode(&t, target, caller)
	if err != nil {
		return MutationResult{}, err
	}

	switch target.Level() {
	case domain.LevelThread:
		if err := s.threads.Delete(ctx, t.ID); err != nil {
			return MutationResult{}, fmt.Errorf("delete thread %s: %w", t.ID, err)
		}
	case domain.LevelMessage:
		if err := t.RemoveMessage(target.MessageID); err != nil {
			return MutationResult{}, err
		}
		if err := s.save(ctx, t); err != nil {
			return MutationResult{}, err
		}
	case domain.LevelComment:
		if err := t.RemoveComment(target.MessageID, target.CommentID); err != nil {
			return MutationResult{}, err
		}
		if err := s.save(ctx, t); err != nil {
			return MutationResult{}, err
		}
	}

	s.publish(events.SubjectContentDeleted, caller.UserID, map[string]any{
		"thread_id":  target.ThreadID,
		"content_id": node.ID,
		"level":      target.Level().String(),
	})
	return s.mutationResult(ctx, caller, node)
}

// Vote moves the caller's vote on target to v. Repeating the current vote
// changes nothing. The ledger is updated after the aggregate is saved,
// off the request path.
func (s *Service) Vote(ctx context.Context, caller Caller, target domain.Target, v domain.Vote) (VoteResult, error) {
	if !v.Valid() {
		return VoteResult{}, fmt.Errorf("%w: vote must be 1 or -1", domain.ErrValidation)
	}
	t, err := s.load(ctx, target.ThreadID)
	if err != nil {
		return VoteResult{}, err
	}
	node, err := t.Node(target)
	if err != nil {
		return VoteResult{}, err
	}

	previous, _, err := s.votes.FindVote(ctx, caller.UserID, node.ID)
	if err != nil {
		return VoteResult{}, fmt.Errorf("find vote: %w", err)
	}
	if previous == v {
		return VoteResult{Upvotes: node.Tally.Upvotes, Downvotes: node.Tally.Downvotes, Voted: v}, nil
	}

	tally, err := t.ApplyVote(target, previous, v)
	if err != nil {
		return VoteResult{}, err
	}
	if err := s.save(ctx, t); err != nil {
		return VoteResult{}, err
	}

	if s.ledger != nil {
		s.ledger.Enqueue(ledger.Job{User: caller.UserID, Content: node.ID, Next: v, Previous: previous})
	} else {
		s.log.Warn("no ledger queue configured, vote not recorded", zap.String("content", node.ID))
	}
	s.publish(events.SubjectContentVoted, caller.UserID, map[string]any{
		"thread_id":  target.ThreadID,
		"content_id": node.ID,
		"level":      target.Level().String(),
		"vote":       int(v),
	})
	return VoteResult{Upvotes: tally.Upvotes, Downvotes: tally.Downvotes, Voted: v}, nil
}

func (s *Service) mutationResult(ctx context.Context, caller Caller, node domain.Node) (MutationResult, error) {
	voted, _, err := s.votes.FindVote(ctx, caller.UserID, node.ID)
	if err != nil {
		return MutationResult{}, fmt.Errorf("find vote: %w", err)
	}
	return MutationResult{
		ID:        node.ID,
		Upvotes:   node.Tally.Upvotes,
		Downvotes: node.Tally.Downvotes,
		Voted:     voted,
	}, nil
}
