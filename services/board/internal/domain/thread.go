package domain

import (
	"fmt"
	"time"
)

// Comment is a leaf node embedded in a Message.
type Comment struct {
	ID        string    `json:"id" bson:"_id"`
	Text      string    `json:"text" bson:"text"`
	Author    string    `json:"author" bson:"author"`
	Time      time.Time `json:"time" bson:"time"`
	Upvotes   int       `json:"upvotes" bson:"upvotes"`
	Downvotes int       `json:"downvotes" bson:"downvotes"`
}

// Message is embedded in a Thread and owns its Comments.
type Message struct {
	ID             string    `json:"id" bson:"_id"`
	Text           string    `json:"text" bson:"text"`
	Author         string    `json:"author" bson:"author"`
	Time           time.Time `json:"time" bson:"time"`
	Updated        time.Time `json:"updated" bson:"updated"`
	Upvotes        int       `json:"upvotes" bson:"upvotes"`
	Downvotes      int       `json:"downvotes" bson:"downvotes"`
	CommentsNumber int       `json:"commentsNumber" bson:"commentsNumber"`
	Comments       []Comment `json:"comments" bson:"comments"`
}

// Thread is the aggregate root and the unit of storage: messages and
// comments live inside it and are always persisted together.
type Thread struct {
	ID             string    `json:"id" bson:"_id"`
	Title          string    `json:"title" bson:"title"`
	Text           string    `json:"text" bson:"text"`
	Author         string    `json:"author" bson:"author"`
	Country        string    `json:"country,omitempty" bson:"country,omitempty"`
	Language       string    `json:"language,omitempty" bson:"language,omitempty"`
	Time           time.Time `json:"time" bson:"time"`
	Updated        time.Time `json:"updated" bson:"updated"`
	Upvotes        int       `json:"upvotes" bson:"upvotes"`
	Downvotes      int       `json:"downvotes" bson:"downvotes"`
	MessagesNumber int       `json:"messagesNumber" bson:"messagesNumber"`
	CommentsNumber int       `json:"commentsNumber" bson:"commentsNumber"`
	Messages       []Message `json:"messages,omitempty" bson:"messages"`
}

// NewThread builds an empty thread authored by author.
func NewThread(id, author, title, text, country, language string, now time.Time) Thread {
	return Thread{
		ID:       id,
		Title:    title,
		Text:     text,
		Author:   author,
		Country:  country,
		Language: language,
		Time:     now,
		Updated:  now,
		Messages: []Message{},
	}
}

// Level is the depth of a content node in the hierarchy.
type Level int

const (
	LevelThread Level = iota
	LevelMessage
	LevelComment
)

func (l Level) String() string {
	switch l {
	case LevelMessage:
		return "message"
	case LevelComment:
		return "comment"
	default:
		return "thread"
	}
}

// Target addresses a node inside a thread. Empty trailing IDs select a
// shallower level.
type Target struct {
	ThreadID  string
	MessageID string
	CommentID string
}

func (t Target) Level() Level {
	switch {
	case t.CommentID != "":
		return LevelComment
	case t.MessageID != "":
		return LevelMessage
	default:
		return LevelThread
	}
}

// ContentID is the ID of the addressed node, used as the ledger key.
func (t Target) ContentID() string {
	switch t.Level() {
	case LevelComment:
		return t.CommentID
	case LevelMessage:
		return t.MessageID
	default:
		return t.ThreadID
	}
}

// Node is a flat read-only view of any addressable node.
type Node struct {
	ID     string
	Author string
	Tally  Tally
}

func (t *Thread) FindMessage(id string) (*Message, error) {
	for i := range t.Messages {
		if t.Messages[i].ID == id {
			return &t.Messages[i], nil
		}
	}
	return nil, fmt.Errorf("%w: message %s in thread %s", ErrNotFound, id, t.ID)
}

func (m *Message) FindComment(id string) (*Comment, error) {
	for i := range m.Comments {
		if m.Comments[i].ID == id {
			return &m.Comments[i], nil
		}
	}
	return nil, fmt.Errorf("%w: comment %s in message %s", ErrNotFound, id, m.ID)
}

// Node resolves target to its node view.
func (t *Thread) Node(target Target) (Node, error) {
	switch target.Level() {
	case LevelThread:
		return Node{ID: t.ID, Author: t.Author, Tally: Tally{t.Upvotes, t.Downvotes}}, nil
	case LevelMessage:
		m, err := t.FindMessage(target.MessageID)
		if err != nil {
			return Node{}, err
		}
		return Node{ID: m.ID, Author: m.Author, Tally: Tally{m.Upvotes, m.Downvotes}}, nil
	default:
		m, err := t.FindMessage(target.MessageID)
		if err != nil {
			return Node{}, err
		}
		c, err := m.FindComment(target.CommentID)
		if err != nil {
			return Node{}, err
		}
		return Node{ID: c.ID, Author: c.Author, Tally: Tally{c.Upvotes, c.Downvotes}}, nil
	}
}

// Edit replaces title and text when non-empty.
func (t *Thread) Edit(title, text string, now time.Time) {
	if title != "" {
		t.Title = title
	}
	if text != "" {
		t.Text = text
	}
	t.touch(now)
}

// EditMessage replaces the message text when non-empty and propagates the
// edit time to the thread.
func (t *Thread) EditMessage(messageID, text string, now time.Time) error {
	m, err := t.FindMessage(messageID)
	if err != nil {
		return err
	}
	if text != "" {
		m.Text = text
	}
	m.touch(now)
	t.touch(now)
	return nil
}

// EditComment replaces the comment text when non-empty. Comments carry no
// update time of their own; the edit surfaces on the message and thread.
func (t *Thread) EditComment(messageID, commentID, text string, now time.Time) error {
	m, err := t.FindMessage(messageID)
	if err != nil {
		return err
	}
	c, err := m.FindComment(commentID)
	if err != nil {
		return err
	}
	if text != "" {
		c.Text = text
	}
	m.touch(now)
	t.touch(now)
	return nil
}

// AddMessage appends a new message and returns a copy of it.
func (t *Thread) AddMessage(id, author, text string, now time.Time) Message {
	m := Message{
		ID:       id,
		Text:     text,
		Author:   author,
		Time:     now,
		Updated:  now,
		Comments: []Comment{},
	}
	t.Messages = append(t.Messages, m)
	t.MessagesNumber++
	t.touch(now)
	return m
}

// AddComment appends a new comment to a message and returns a copy of it.
func (t *Thread) AddComment(messageID, id, author, text string, now time.Time) (Comment, error) {
	m, err := t.FindMessage(messageID)
	if err != nil {
		return Comment{}, err
	}
	c := Comment{ID: id, Text: text, Author: author, Time: now}
	m.Comments = append(m.Comments, c)
	m.CommentsNumber++
	m.touch(now)
	t.CommentsNumber++
	t.touch(now)
	return c, nil
}

// RemoveMessage splices a message and every comment under it out of the thread.
func (t *Thread) RemoveMessage(messageID string) error {
	for i := range t.Messages {
		if t.Messages[i].ID != messageID {
			continue
		}
		removed := len(t.Messages[i].Comments)
		t.Messages = append(t.Messages[:i], t.Messages[i+1:]...)
		t.MessagesNumber--
		t.CommentsNumber -= removed
		return nil
	}
	return fmt.Errorf("%w: message %s in thread %s", ErrNotFound, messageID, t.ID)
}

// RemoveComment splices a comment out of its message.
func (t *Thread) RemoveComment(messageID, commentID string) error {
	m, err := t.FindMessage(messageID)
	if err != nil {
		return err
	}
	for i := range m.Comments {
		if m.Comments[i].ID != commentID {
			continue
		}
		m.Comments = append(m.Comments[:i], m.Comments[i+1:]...)
		m.CommentsNumber--
		t.CommentsNumber--
		return nil
	}
	return fmt.Errorf("%w: comment %s in message %s", ErrNotFound, commentID, messageID)
}

// ApplyVote moves the addressed node's tally from previous to next and
// returns the new tally. Ancestor tallies and update times are untouched.
func (t *Thread) ApplyVote(target Target, previous, next Vote) (Tally, error) {
	if !next.Valid() {
		return Tally{}, fmt.Errorf("%w: vote must be 1 or -1", ErrValidation)
	}
	switch target.Level() {
	case LevelThread:
		tl := Tally{t.Upvotes, t.Downvotes}.Apply(previous, next)
		t.Upvotes, t.Downvotes = tl.Upvotes, tl.Downvotes
		return tl, nil
	case LevelMessage:
		m, err := t.FindMessage(target.MessageID)
		if err != nil {
			return Tally{}, err
		}
		tl := Tally{m.Upvotes, m.Downvotes}.Apply(previous, next)
		m.Upvotes, m.Downvotes = tl.Upvotes, tl.Downvotes
		return tl, nil
	default:
		m, err := t.FindMessage(target.MessageID)
		if err != nil {
			return Tally{}, err
		}
		c, err := m.FindComment(target.CommentID)
		if err != nil {
			return Tally{}, err
		}
		tl := Tally{c.Upvotes, c.Downvotes}.Apply(previous, next)
		c.Upvotes, c.Downvotes = tl.Upvotes, tl.Downvotes
		return tl, nil
	}
}

// ContentIDs lists the thread, message and comment IDs in document order.
func (t *Thread) ContentIDs() []string {
	ids := []string{t.ID}
	for _, m := range t.Messages {
		ids = append(ids, m.ID)
		for _, c := range m.Comments {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// AuthorIDs lists distinct author IDs in document order.
func (t *Thread) AuthorIDs() []string {
	seen := map[string]struct{}{}
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; ok || id == "" {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	add(t.Author)
	for _, m := range t.Messages {
		add(m.Author)
		for _, c := range m.Comments {
			add(c.Author)
		}
	}
	return ids
}

// Summary returns a copy without messages, as served by thread listings.
func (t Thread) Summary() Thread {
	t.Messages = nil
	return t
}

// Clone returns a deep copy.
func (t Thread) Clone() Thread {
	if t.Messages == nil {
		return t
	}
	msgs := make([]Message, len(t.Messages))
	for i, m := range t.Messages {
		comments := make([]Comment, len(m.Comments))
		copy(comments, m.Comments)
		m.Comments = comments
		msgs[i] = m
	}
	t.Messages = msgs
	return t
}

// touch raises the update time to now; it never moves backwards.
func (t *Thread) touch(now time.Time) {
	if now.After(t.Updated) {
		t.Updated = now
	}
}

func (m *Message) touch(now time.Time) {
	if now.After(m.Updated) {
		m.Updated = now
	}
}
