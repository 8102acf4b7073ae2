package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/board-platform/services/board/internal/domain"
	"github.com/example/board-platform/services/board/internal/identity"
)

// CommentView is a comment decorated for the caller.
type CommentView struct {
	domain.Comment
	Author identity.Profile `json:"author"`
	Voted  domain.Vote      `json:"voted"`
	Owned  bool             `json:"owned"`
}

// MessageView is a message decorated for the caller, with its comments.
type MessageView struct {
	domain.Message
	Author   identity.Profile `json:"author"`
	Voted    domain.Vote      `json:"voted"`
	Owned    bool             `json:"owned"`
	Comments []CommentView    `json:"comments"`
}

// ThreadView is a full thread decorated for the caller.
type ThreadView struct {
	domain.Thread
	Author   identity.Profile `json:"author"`
	Voted    domain.Vote      `json:"voted"`
	Owned    bool             `json:"owned"`
	Messages []MessageView    `json:"messages"`
}

// ThreadSummary is a listed thread: no messages or comments.
type ThreadSummary struct {
	domain.Thread
	Author identity.Profile `json:"author"`
	Voted  domain.Vote      `json:"voted"`
	Owned  bool             `json:"owned"`
}

// VoteResult is the tally of a voted node and the caller's current vote.
type VoteResult struct {
	Upvotes   int         `json:"upvotes"`
	Downvotes int         `json:"downvotes"`
	Voted     domain.Vote `json:"voted"`
}

// MutationResult answers edits and deletes.
type MutationResult struct {
	ID        string      `json:"id"`
	Upvotes   int         `json:"upvotes"`
	Downvotes int         `json:"downvotes"`
	Voted     domain.Vote `json:"voted"`
}

type enrichment struct {
	caller  string
	authors map[string]identity.Profile
	votes   map[string]domain.Vote
}

// enrich performs one profile lookup and one vote lookup for the whole
// result. Identity failures abort the read.
func (s *Service) enrich(ctx context.Context, caller Caller, authorIDs, contentIDs []string) (enrichment, error) {
	e := enrichment{caller: caller.UserID}

	authors, err := s.directory.GetByIDs(ctx, authorIDs, caller.Token)
	if err != nil {
		if !errors.Is(err, domain.ErrUpstream) {
			err = fmt.Errorf("%w: %w", domain.ErrUpstream, err)
		}
		return e, fmt.Errorf("fetch authors: %w", err)
	}
	e.authors = authors

	votes, err := s.votes.FindVotes(ctx, caller.UserID, contentIDs)
	if err != nil {
		return e, fmt.Errorf("fetch votes: %w", err)
	}
	e.votes = votes
	return e, nil
}

func (e enrichment) comment(c domain.Comment) CommentView {
	return CommentView{
		Comment: c,
		Author:  e.authors[c.Author],
		Voted:   e.votes[c.ID],
		Owned:   c.Author == e.caller,
	}
}

func (e enrichment) message(m domain.Message) MessageView {
	comments := make([]CommentView, 0, len(m.Comments))
	for _, c := range m.Comments {
		comments = append(comments, e.comment(c))
	}
	return MessageView{
		Message:  m,
		Author:   e.authors[m.Author],
		Voted:    e.votes[m.ID],
		Owned:    m.Author == e.caller,
		Comments: comments,
	}
}

func (e enrichment) thread(t domain.Thread) ThreadView {
	msgs := make([]MessageView, 0, len(t.Messages))
	for _, m := range t.Messages {
		msgs = append(msgs, e.message(m))
	}
	return ThreadView{
		Thread:   t,
		Author:   e.authors[t.Author],
		Voted:    e.votes[t.ID],
		Owned:    t.Author == e.caller,
		Messages: msgs,
	}
}

func (e enrichment) summary(t domain.Thread) ThreadSummary {
	return ThreadSummary{
		Thread: t.Summary(),
		Author: e.authors[t.Author],
		Voted:  e.votes[t.ID],
		Owned:  t.Author == e.caller,
	}
}

func messageIDs(m domain.Message) (authors, contents []string) {
	authors = append(authors, m.Author)
	contents = append(contents, m.ID)
	for _, c := range m.Comments {
		authors = append(authors, c.Author)
		contents = append(contents, c.ID)
	}
	return authors, contents
}
