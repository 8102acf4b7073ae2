package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/board-platform/internal/platform/events"
	"github.com/example/board-platform/services/board/internal/domain"
	"github.com/example/board-platform/services/board/internal/identity"
	"github.com/example/board-platform/services/board/internal/ledger"
	"github.com/example/board-platform/services/board/internal/store"
)

var (
	userA = Caller{UserID: "user-a", Token: "tok-a"}
	userB = Caller{UserID: "user-b", Token: "tok-b"}
	userC = Caller{UserID: "user-c", Token: "tok-c"}
)

type syncLedger struct {
	votes store.VoteLedger
	jobs  []ledger.Job
}

func (l *syncLedger) Enqueue(job ledger.Job) {
	l.jobs = append(l.jobs, job)
	_ = l.votes.RecordVote(context.Background(), job.User, job.Content, job.Next, job.Previous)
}

type fakeDirectory struct {
	calls  int
	tokens []string
	err    error
}

func (d *fakeDirectory) GetByIDs(_ context.Context, ids []string, token string) (map[string]identity.Profile, error) {
	d.calls++
	d.tokens = append(d.tokens, token)
	if d.err != nil {
		return nil, d.err
	}
	out := map[string]identity.Profile{}
	for _, id := range ids {
		if id == "ghost" {
			continue
		}
		out[id] = identity.Profile{ID: id, Username: "name-" + id}
	}
	return out, nil
}

type recordedEvent struct {
	subject string
	user    string
}

type fakeEvents struct{ got []recordedEvent }

func (e *fakeEvents) Publish(subject, user string, _ map[string]any) {
	e.got = append(e.got, recordedEvent{subject, user})
}

type fixture struct {
	svc     *Service
	threads *store.InMemoryThreadStore
	votes   *store.InMemoryVoteLedger
	ledger  *syncLedger
	dir     *fakeDirectory
	events  *fakeEvents
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		threads: store.NewInMemoryThreadStore(),
		votes:   store.NewInMemoryVoteLedger(),
		dir:     &fakeDirectory{},
		events:  &fakeEvents{},
		clock:   time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	f.ledger = &syncLedger{votes: f.votes}
	n := 0
	f.svc = New(Deps{
		Threads:   f.threads,
		Votes:     f.votes,
		Ledger:    f.ledger,
		Directory: f.dir,
		Events:    f.events,
		Now: func() time.Time {
			f.clock = f.clock.Add(time.Minute)
			return f.clock
		},
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
	return f
}

func (f *fixture) createThread(t *testing.T, c Caller) ThreadView {
	t.Helper()
	th, err := f.svc.CreateThread(context.Background(), c, ThreadInput{Title: "Hi", Text: "body", Country: "it", Language: "en"})
	require.NoError(t, err)
	return th
}

func TestRoundTrip_CreateThreadMessageComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	th := f.createThread(t, userA)
	m, err := f.svc.PostMessage(ctx, userB, th.ID, "first message")
	require.NoError(t, err)
	c, err := f.svc.PostComment(ctx, userC, th.ID, m.ID, "a comment")
	require.NoError(t, err)

	got, err := f.svc.GetThread(ctx, userA, th.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.MessagesNumber)
	assert.Equal(t, 1, got.CommentsNumber)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "first message", got.Messages[0].Text)
	assert.Equal(t, "user-b", got.Messages[0].Author.ID)
	require.Len(t, got.Messages[0].Comments, 1)
	assert.Equal(t, c.ID, got.Messages[0].Comments[0].ID)
	assert.Equal(t, "a comment", got.Messages[0].Comments[0].Text)
	assert.Equal(t, "user-c", got.Messages[0].Comments[0].Author.ID)

	assert.True(t, got.Owned)
	assert.False(t, got.Messages[0].Owned)
	assert.False(t, got.Updated.Before(got.Messages[0].Updated))

	assert.Equal(t, []recordedEvent{
		{events.SubjectThreadCreated, "user-a"},
		{events.SubjectMessageCreated, "user-b"},
		{events.SubjectCommentCreated, "user-c"},
	}, f.events.got)
}

func TestGetThread_SingleBatchedEnrichment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	th := f.createThread(t, userA)
	m, err := f.svc.PostMessage(ctx, userA, th.ID, "hello")
	require.NoError(t, err)
	_, err = f.svc.PostComment(ctx, userB, th.ID, m.ID, "reply")
	require.NoError(t, err)
	_, err = f.svc.Vote(ctx, userB, domain.Target{ThreadID: th.ID, MessageID: m.ID}, domain.VoteUp)
	require.NoError(t, err)

	f.dir.calls = 0
	got, err := f.svc.GetThread(ctx, userB, th.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, f.dir.calls)
	assert.Equal(t, "tok-b", f.dir.tokens[len(f.dir.tokens)-1])
	assert.Equal(t, domain.VoteNone, got.Voted)
	assert.Equal(t, domain.VoteUp, got.Messages[0].Voted)
	assert.True(t, got.Messages[0].Comments[0].Owned)
	assert.Equal(t, "name-user-b", got.Messages[0].Comments[0].Author.Username)
}

func TestVoteScenario_DownThenUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	th := f.createThread(t, userA)
	target := domain.Target{ThreadID: th.ID}

	res, err := f.svc.Vote(ctx, userB, target, domain.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, VoteResult{Upvotes: 0, Downvotes: 1, Voted: domain.VoteDown}, res)

	res, err = f.svc.Vote(ctx, userB, target, domain.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, VoteResult{Upvotes: 1, Downvotes: 0, Voted: domain.VoteUp}, res)

	v, ok, err := f.votes.FindVote(ctx, "user-b", th.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.VoteUp, v)

	assert.Equal(t, []ledger.Job{
		{User: "user-b", Content: th.ID, Next: domain.VoteDown, Previous: domain.VoteNone},
		{User: "user-b", Content: th.ID, Next: domain.VoteUp, Previous: domain.VoteDown},
	}, f.ledger.jobs)
}

func TestVote_RepeatIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	th := f.createThread(t, userA)
	m, err := f.svc.PostMessage(ctx, userA, th.ID, "msg")
	require.NoError(t, err)
	target := domain.Target{ThreadID: th.ID, MessageID: m.ID}

	_, err = f.svc.Vote(ctx, userB, target, domain.VoteUp)
	require.NoError(t, err)
	res, err := f.svc.Vote(ctx, userB, target, domain.VoteUp)
	require.NoError(t, err)

	assert.Equal(t, VoteResult{Upvotes: 1, Downvotes: 0, Voted: domain.VoteUp}, res)
	assert.Len(t, f.ledger.jobs, 1)

	stored, err := f.threads.Get(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Messages[0].Upvotes)
	assert.Equal(t, 0, stored.Upvotes)
}

func TestVote_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	th := f.createThread(t, userA)

	_, err := f.svc.Vote(ctx, userB, domain.Target{ThreadID: th.ID}, domain.VoteNone)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Vote(ctx, userB, domain.Target{ThreadID: th.ID, MessageID: "missing"}, domain.VoteUp)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Vote(ctx, userB, domain.Target{ThreadID: "missing"}, domain.VoteUp)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.ledger.jobs)
}

type failingSaves struct {
	*store.InMemoryThreadStore
}

func (failingSaves) Save(context.Context, domain.Thread) error {
	return fmt.Errorf("%w: disk full", domain.ErrStorage)
}

func TestVote_CommentTalliesOnlyTheComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	th := f.createThread(t, userA)
	m, err := f.svc.PostMessage(ctx, userA, th.ID, "msg")
	require.NoError(t, err)
	c, err := f.svc.PostComment(ctx, userA, th.ID, m.ID, "com")
	require.NoError(t, err)
	target := domain.Target{ThreadID: th.ID, MessageID: m.ID, CommentID: c.ID}

	res, err := f.svc.Vote(ctx, userB, target, domain.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, VoteResult{Upvotes: 0, Downvotes: 1, Voted: domain.VoteDown}, res)

	got, err := f.svc.GetThread(ctx, userB, th.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Downvotes)
	assert.Equal(t, 0, got.Messages[0].Downvotes)
	assert.Equal(t, 1, got.Messages[0].Comments[0].Downvotes)
	assert.Equal(t, domain.VoteDown, got.Messages[0].Comments[0].Voted)
	assert.Equal(t, []ledger.Job{
		{User: "user-b", Content: c.ID, Next: domain.VoteDown, Previous: domain.VoteNone},
	}, f.ledger.jobs)
}

func TestMutations_SaveFailureIsStorageErrorAndSkipsLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	th := f.createThread(t, userA)
	m, err := f.svc.PostMessage(ctx, userA, th.ID, "msg")
	require.NoError(t, err)
	c, err := f.svc.PostComment(ctx, userA, th.ID, m.ID, "com")
	require.NoError(t, err)

	broken := New(Deps{
		Threads:   failingSaves{f.threads},
		Votes:     f.votes,
		Ledger:    f.ledger,
		Directory: f.dir,
		Events:    f.events,
	})
	published := len(f.events.got)
	commentTarget := domain.Target{ThreadID: th.ID, MessageID: m.ID, CommentID: c.ID}

	_, err = broken.Vote(ctx, userB, commentTarget, domain.VoteUp)
	assert.ErrorIs(t, err, domain.ErrStorage)
	_, err = broken.Vote(ctx, userB, domain.Target{ThreadID: th.ID}, domain.VoteDown)
	assert.ErrorIs(t, err, domain.ErrStorage)
	_, err = broken.PostMessage(ctx, userB, th.ID, "lost")
	assert.ErrorIs(t, err, domain.ErrStorage)
	_, err = broken.Edit(ctx, userA, commentTarget, Patch{Text: "lost"})
	assert.ErrorIs(t, err, domain.ErrStorage)
	_, err = broken.Delete(ctx, userA, commentTarget)
	assert.ErrorIs(t, err, domain.ErrStorage)

	assert.Empty(t, f.ledger.jobs)
	assert.Len(t, f.events.got, published)

	stored, err := f.threads.Get(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Upvotes+stored.Downvotes)
	assert.Equal(t, 1, stored.MessagesNumber)
	assert.Equal(t, "com", stored.Messages[0].Comments[0].Text)
	assert.Equal(t, 0, stored.Messages[0].Comments[0].Upvotes)
}

func TestDelete_NonAuthorRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	th := f.createThread(t, userA)
	before, err := f.threads.Get(ctx, th.ID)
	require.NoError(t, err)

	_, err = f.svc.Delete(ctx, userC, domain.Target{ThreadID: th.ID})
	require.ErrorIs(t, err, domain.ErrNotOwner)

	after, err := f.threads.Get(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDelete_MessageCascadesCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	th := f.createThread(t, userA)
	m1, err := f.svc.PostMessage(ctx, userB, th.ID, "one")
	require.NoError(t, err)
	m2, err := f.svc.PostMessage(ctx, userA, th.ID, "two")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = f.svc.PostComment(ctx, userC, th.ID, m1.ID, "c")
		require.NoError(t, err)
	}
	_, err = f.svc.PostComment(ctx, userC, th.ID, m2.ID, "c")
	require.NoError(t, err)

	res, err := f.svc.Delete(ctx, userB, domain.Target{ThreadID: th.ID, MessageID: m1.ID})
	require.NoError(t, err)
	assert.Equal(t, m1.ID, res.ID)

	stored, err := f.threads.Get(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.MessagesNumber)
	assert.Equal(t, 1, stored.CommentsNumber)
	require.Len(t, stored.Messages, 1)
	assert.Equal(t, m2.ID, stored.Messages[0].ID)
}

func TestDelete_CommentAndThread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	th := f.createThread(t, userA)
	m, err := f.svc.PostMessage(ctx, userA, th.ID, "msg")
	require.NoError(t, err)
	c, err := f.svc.PostComment(ctx, userB, th.ID, m.ID, "c")
	require.NoError(t, err)

	_, err = f.svc.Delete(ctx, userA, domain.Target{ThreadID: th.ID, MessageID: m.ID, CommentID: c.ID})
	require.ErrorIs(t, err, domain.ErrNotOwner)

	_, err = f.svc.Delete(ctx, userB, domain.Target{ThreadID: th.ID, MessageID: m.ID, CommentID: c.ID})
	require.NoError(t, err)
	stored, err := f.threads.Get(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.CommentsNumber)
	assert.Equal(t, 0, stored.Messages[0].CommentsNumber)

	_, err = f.svc.Delete(ctx, userA, domain.Target{ThreadID: th.ID})
	require.NoError(t, err)
	_, err = f.threads.Get(ctx, th.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, events.SubjectContentDeleted, f.events.got[len(f.events.got)-1].subject)
}

func TestEdit_PartialUpdateAndOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	th := f.createThread(t, userA)

	_, err := f.svc.Edit(ctx, userB, domain.Target{ThreadID: th.ID}, Patch{Title: "mine now"})
	require.ErrorIs(t, err, domain.ErrNotOwner)

	res, err := f.svc.Edit(ctx, userA, domain.Target{ThreadID: th.ID}, Patch{Title: "Hello", Text: "   "})
	require.NoError(t, err)
	assert.Equal(t, th.ID, res.ID)

	stored, err := f.threads.Get(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", stored.Title)
	assert.Equal(t, "body", stored.Text)
	assert.True(t, stored.Updated.After(th.Updated))
}

func TestEdit_CommentBumpsAncestors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	th := f.createThread(t, userA)
	m, err := f.svc.PostMessage(ctx, userA, th.ID, "msg")
	require.NoError(t, err)
	c, err := f.svc.PostComment(ctx, userB, th.ID, m.ID, "typo")
	require.NoError(t, err)

	_, err = f.svc.Edit(ctx, userB, domain.Target{ThreadID: th.ID, MessageID: m.ID, CommentID: c.ID}, Patch{Text: "fixed"})
	require.NoError(t, err)

	stored, err := f.threads.Get(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, "fixed", stored.Messages[0].Comments[0].Text)
	assert.True(t, stored.Messages[0].Updated.After(c.Time))
	assert.Equal(t, stored.Messages[0].Updated, stored.Updated)
}

func TestEdit_MutationResultCarriesVote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	th := f.createThread(t, userA)
	target := domain.Target{ThreadID: th.ID}

	_, err := f.svc.Vote(ctx, userA, target, domain.VoteDown)
	require.NoError(t, err)
	res, err := f.svc.Edit(ctx, userA, target, Patch{Text: "new body"})
	require.NoError(t, err)
	assert.Equal(t, MutationResult{ID: th.ID, Upvotes: 0, Downvotes: 1, Voted: domain.VoteDown}, res)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateThread(ctx, userA, ThreadInput{Title: "", Text: "body"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.svc.CreateThread(ctx, userA, ThreadInput{Title: "<b></b>", Text: "body"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.svc.CreateThread(ctx, userA, ThreadInput{Title: "Hi", Text: "body", Country: "ITA"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	th := f.createThread(t, userA)
	_, err = f.svc.PostMessage(ctx, userA, th.ID, " ")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.svc.PostComment(ctx, userA, th.ID, "missing", "text")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreate_SanitizesMarkup(t *testing.T) {
	f := newFixture(t)
	th, err := f.svc.CreateThread(context.Background(), userA, ThreadInput{Title: "<script>x()</script>Hi", Text: "<b>bold</b> move"})
	require.NoError(t, err)
	assert.Equal(t, "Hi", th.Title)
	assert.Equal(t, "bold move", th.Text)
}

func TestRoundTrip_PlainTextKeptVerbatim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const text = `Don't & "x" a < b`

	th, err := f.svc.CreateThread(ctx, userA, ThreadInput{Title: "a < b", Text: text})
	require.NoError(t, err)
	assert.Equal(t, "a < b", th.Title)
	assert.Equal(t, text, th.Text)

	m, err := f.svc.PostMessage(ctx, userB, th.ID, text)
	require.NoError(t, err)
	assert.Equal(t, text, m.Text)
	c, err := f.svc.PostComment(ctx, userC, th.ID, m.ID, text)
	require.NoError(t, err)
	assert.Equal(t, text, c.Text)

	_, err = f.svc.Edit(ctx, userB, domain.Target{ThreadID: th.ID, MessageID: m.ID}, Patch{Text: "Tom & Jerry's"})
	require.NoError(t, err)

	got, err := f.svc.GetThread(ctx, userA, th.ID)
	require.NoError(t, err)
	assert.Equal(t, "a < b", got.Title)
	assert.Equal(t, text, got.Text)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "Tom & Jerry's", got.Messages[0].Text)
	require.Len(t, got.Messages[0].Comments, 1)
	assert.Equal(t, text, got.Messages[0].Comments[0].Text)
}

func TestList_PagingReturnsMostRecent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	older := f.createThread(t, userA)
	newer := f.createThread(t, userB)
	require.True(t, newer.Updated.After(older.Updated))

	got, err := f.svc.ListThreads(ctx, userA, ListParams{Offset: 0, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Nil(t, got[0].Thread.Messages)
	assert.False(t, got[0].Owned)

	_, err = f.svc.PostMessage(ctx, userA, older.ID, "bump")
	require.NoError(t, err)
	got, err = f.svc.ListThreads(ctx, userA, ListParams{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, older.ID, got[0].ID)
}

func TestList_FiltersAndDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createThread(t, userA)
	_, err := f.svc.CreateThread(ctx, userA, ThreadInput{Title: "Ciao", Text: "x", Country: "it", Language: "it"})
	require.NoError(t, err)

	got, err := f.svc.ListThreads(ctx, userA, ListParams{Language: "it", Offset: -3, Limit: -1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Ciao", got[0].Title)

	got, err = f.svc.ListThreads(ctx, userA, ListParams{Country: "fr"})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = f.svc.ListThreads(ctx, userA, ListParams{Country: "france"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestEnrichment_UpstreamFailureAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	th := f.createThread(t, userA)

	f.dir.err = errors.New("connection refused")
	_, err := f.svc.GetThread(ctx, userA, th.ID)
	assert.ErrorIs(t, err, domain.ErrUpstream)

	_, err = f.svc.ListThreads(ctx, userA, ListParams{})
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestEnrichment_UnknownAuthorIsEmptyObject(t *testing.T) {
	f := newFixture(t)
	ghost := Caller{UserID: "ghost"}
	th := f.createThread(t, ghost)

	got, err := f.svc.GetThread(context.Background(), userA, th.ID)
	require.NoError(t, err)

	b, err := json.Marshal(got)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, map[string]any{}, raw["author"])
	assert.Equal(t, float64(0), raw["voted"])
	assert.Equal(t, []any{}, raw["messages"])
	assert.Equal(t, float64(0), raw["messagesNumber"])
}

func TestPing(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.svc.Ping(context.Background()))
}
