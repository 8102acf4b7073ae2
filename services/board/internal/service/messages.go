package service

import (
	"context"
	"fmt"

	"github.com/example/board-platform/internal/platform/events"
	"github.com/example/board-platform/services/board/internal/domain"
)

// PostMessage appends a message to a thread.
func (s *Service) PostMessage(ctx context.Context, caller Caller, threadID, text string) (MessageView, error) {
	text = s.clean(text)
	if text == "" {
		return MessageView{}, fmt.Errorf("%w: text is required", domain.ErrValidation)
	}
	t, err := s.load(ctx, threadID)
	if err != nil {
		return MessageView{}, err
	}

	m := t.AddMessage(s.newID(), caller.UserID, text, s.now())
	if err := s.save(ctx, t); err != nil {
		return MessageView{}, err
	}
	s.publish(events.SubjectMessageCreated, caller.UserID, map[string]any{
		"thread_id":  t.ID,
		"message_id": m.ID,
	})

	e, err := s.enrich(ctx, caller, []string{m.Author}, []string{m.ID})
	if err != nil {
		return MessageView{}, err
	}
	return e.message(m), nil
}

// GetMessage returns one message with its comments.
func (s *Service) GetMessage(ctx context.Context, caller Caller, threadID, messageID string) (MessageView, error) {
	t, err := s.load(ctx, threadID)
	if err != nil {
		return MessageView{}, err
	}
	m, err := t.FindMessage(messageID)
	if err != nil {
		return MessageView{}, err
	}
	authors, contents := messageIDs(*m)
	e, err := s.enrich(ctx, caller, authors, contents)
	if err != nil {
		return MessageView{}, err
	}
	return e.message(*m), nil
}

// PostComment appends a comment to a message.
func (s *Service) PostComment(ctx context.Context, caller Caller, threadID, messageID, text string) (CommentView, error) {
	text = s.clean(text)
	if text == "" {
		return CommentView{}, fmt.Errorf("%w: text is required", domain.ErrValidation)
	}
	t, err := s.load(ctx, threadID)
	if err != nil {
		return CommentView{}, err
	}

	c, err := t.AddComment(messageID, s.newID(), caller.UserID, text, s.now())
	if err != nil {
		return CommentView{}, err
	}
	if err := s.save(ctx, t); err != nil {
		return CommentView{}, err
	}
	s.publish(events.SubjectCommentCreated, caller.UserID, map[string]any{
		"thread_id":  t.ID,
		"message_id": messageID,
		"comment_id": c.ID,
	})

	e, err := s.enrich(ctx, caller, []string{c.Author}, []string{c.ID})
	if err != nil {
		return CommentView{}, err
	}
	return e.comment(c), nil
}

// GetComment returns one comment.
func (s *Service) GetComment(ctx context.Context, caller Caller, threadID, messageID, commentID string) (CommentView, error) {
	t, err := s.load(ctx, threadID)
	if err != nil {
		return CommentView{}, err
	}
	m, err := t.FindMessage(messageID)
	if err != nil {
		return CommentView{}, err
	}
	c, err := m.FindComment(commentID)
	if err != nil {
		return CommentView{}, err
	}
	e, err := s.enrich(ctx, caller, []string{c.Author}, []string{c.ID})
	if err != nil {
		return CommentView{}, err
	}
	return e.comment(*c), nil
}
