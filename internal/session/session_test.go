package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shelfsync/internal/bus"
	"github.com/roach88/shelfsync/internal/connectivity"
	"github.com/roach88/shelfsync/internal/model"
	"github.com/roach88/shelfsync/internal/replay"
	"github.com/roach88/shelfsync/internal/store"
	"github.com/roach88/shelfsync/internal/vclock"
)

// manualTimer collects scheduled expiries so tests control toast lifetime.
type manualTimer struct {
	pending []func()
}

func (m *manualTimer) schedule(_ time.Duration, fn func()) func() {
	m.pending = append(m.pending, fn)
	return func() {}
}

func (m *manualTimer) fire() {
	pending := m.pending
	m.pending = nil
	for _, fn := range pending {
		fn()
	}
}

// recordingWaker counts wake requests.
type recordingWaker struct {
	wakes int
}

func (w *recordingWaker) Wake() { w.wakes++ }

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "shelfsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newController(t *testing.T, s *store.Store, b *bus.Bus, w Waker, opts ...Option) *Controller {
	t.Helper()
	base := []Option{
		WithNow(func() time.Time { return time.UnixMilli(1_000_000).UTC() }),
	}
	c, err := New(context.Background(), s, b, w, "user-1", "device-a", append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func dune() model.WatchlistItem {
	return model.WatchlistItem{ItemID: "42", Title: "Dune", ReleaseYear: 2021}
}

func TestToggle_AddIsOptimisticAndQueued(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	waker := &recordingWaker{}
	c := newController(t, s, nil, waker)

	require.NoError(t, c.Toggle(ctx, dune()))

	assert.True(t, c.IsSaved("42"))

	ops, err := s.DequeueAll(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, model.OpAdd, ops[0].Type)
	assert.Equal(t, 0, ops[0].RetryCount)
	assert.Equal(t, vclock.Clock{"device-a": 1}, ops[0].Clock)

	stored, ok, err := s.GetItem(ctx, "user-1", "42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Dune", stored.Title)
	assert.Equal(t, 1, waker.wakes)
}

func TestToggle_TwiceLeavesAddRemoveSequence(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	c := newController(t, s, nil, nil)

	require.NoError(t, c.Toggle(ctx, dune()))
	require.NoError(t, c.Toggle(ctx, dune()))

	assert.False(t, c.IsSaved("42"))

	ops, err := s.DequeueAll(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, model.OpAdd, ops[0].Type)
	assert.Equal(t, model.OpRemove, ops[1].Type)
	// The REMOVE's clock supersedes the ADD's.
	assert.Equal(t, vclock.Before, vclock.Compare(ops[0].Clock, ops[1].Clock))

	_, ok, err := s.GetItem(ctx, "user-1", "42")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestToggle_AddWhileOfflineThenDrain(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	monitor := connectivity.NewMonitor(false)
	client := &ackClient{}
	agent := replay.New(s, client, monitor, nil)

	c := newController(t, s, nil, agent)
	require.NoError(t, c.Toggle(ctx, dune()))

	assert.True(t, c.IsSaved("42"), "toggle completes instantly while offline")

	stats, err := agent.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Attempted)

	monitor.SetOnline(true)
	stats, err = agent.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Succeeded)

	n, err := s.QueueLen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, c.IsSaved("42"))
}

func TestToggle_ValidationErrorRejectedBeforeWrite(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	c := newController(t, s, nil, nil)

	bad := dune()
	bad.Title = ""
	err := c.Toggle(ctx, bad)

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, model.ErrCodeMissingField, verr.Code)

	n, qerr := s.QueueLen(ctx)
	require.NoError(t, qerr)
	assert.Equal(t, 0, n)
	assert.False(t, c.IsSaved("42"))
}

func TestUndo_RestoresOriginalAddedAt(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	timer := &manualTimer{}

	addedAt := time.UnixMilli(500_000).UTC()
	now := time.UnixMilli(1_000_000).UTC()
	c := newController(t, s, nil, nil,
		WithToastTimer(timer.schedule),
		WithNow(func() time.Time { return now }))

	seed := dune()
	seed.UserID = "user-1"
	seed.AddedAt = addedAt
	seed.UpdatedAt = addedAt
	seed.DeviceID = "device-a"
	seed.Clock = vclock.Clock{"device-a": 1}
	require.NoError(t, s.PutItem(ctx, seed))
	require.NoError(t, c.refresh(ctx))

	require.NoError(t, c.Toggle(ctx, dune())) // removes
	assert.False(t, c.IsSaved("42"))

	toast := c.Toast()
	require.NotNil(t, toast)
	assert.Equal(t, `Removed "Dune"`, toast.Message)

	require.NoError(t, toast.Undo(ctx))
	assert.True(t, c.IsSaved("42"))

	restored, ok, err := s.GetItem(ctx, "user-1", "42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, addedAt, restored.AddedAt, "undo must preserve the original AddedAt")
	// The restoration dominates the removal it reverses.
	assert.Equal(t, int64(3), restored.Clock.Counter("device-a"))
}

func TestUndo_AddRemovesAgain(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	timer := &manualTimer{}
	c := newController(t, s, nil, nil, WithToastTimer(timer.schedule))

	require.NoError(t, c.Toggle(ctx, dune()))

	toast := c.Toast()
	require.NotNil(t, toast)
	assert.Equal(t, `Added "Dune"`, toast.Message)

	require.NoError(t, toast.Undo(ctx))
	assert.False(t, c.IsSaved("42"))

	// The undo ran an ordinary removal, which shows its own toast.
	next := c.Toast()
	require.NotNil(t, next)
	assert.Equal(t, `Removed "Dune"`, next.Message)
}

func TestToast_ExpiresAfterWindow(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	timer := &manualTimer{}
	c := newController(t, s, nil, nil, WithToastTimer(timer.schedule))

	require.NoError(t, c.Toggle(ctx, dune()))
	require.NotNil(t, c.Toast())

	timer.fire()
	assert.Nil(t, c.Toast())
}

func TestBus_OtherViewRefreshesOnBroadcast(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	b := bus.New()

	a := newController(t, s, b, nil)
	other := newController(t, s, b, nil)

	require.NoError(t, a.Toggle(ctx, dune()))

	// Handlers run synchronously on the publisher's goroutine.
	assert.True(t, other.IsSaved("42"))
	assert.True(t, a.IsSaved("42"), "publisher ignores its own echo")
}

func TestList_SortedByAddedAt(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	now := time.UnixMilli(1_000_000).UTC()
	c := newController(t, s, nil, nil, WithNow(func() time.Time {
		now = now.Add(time.Second)
		return now
	}))

	require.NoError(t, c.Toggle(ctx, model.WatchlistItem{ItemID: "2", Title: "Solaris"}))
	require.NoError(t, c.Toggle(ctx, model.WatchlistItem{ItemID: "1", Title: "Stalker"}))

	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, "Solaris", list[0].Title)
	assert.Equal(t, "Stalker", list[1].Title)
}

func TestToggle_NormalizesTitle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	c := newController(t, s, nil, nil)

	decomposed := "Ame\u0301lie"
	composed := "Am\u00e9lie"
	require.NoError(t, c.Toggle(ctx, model.WatchlistItem{ItemID: "7", Title: decomposed}))

	stored, ok, err := s.GetItem(ctx, "user-1", "7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, composed, stored.Title)
}

// ackClient acknowledges every push.
type ackClient struct{}

func (ackClient) Push(context.Context, model.SyncOperation) error { return nil }
