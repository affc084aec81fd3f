// Package session implements the optimistic session controller: the per-view
// facade the presentation layer talks to.
//
// Toggle completes as soon as the durable write lands. No network call is
// made synchronously; durability and eventual replay are fully decoupled from
// the user-visible action, which behaves identically online and offline.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roach88/shelfsync/internal/bus"
	"github.com/roach88/shelfsync/internal/model"
	"github.com/roach88/shelfsync/internal/store"
	"github.com/roach88/shelfsync/internal/vclock"
)

// DefaultToastTTL is how long an undo toast stays available.
const DefaultToastTTL = 4 * time.Second

// Waker requests a replay cycle. Satisfied by *replay.Agent; nil-able for
// views that run without a local agent.
type Waker interface {
	Wake()
}

// Toast is the transient feedback value exposed to the presentation layer.
// Undo re-runs the inverse toggle; it is valid until the toast expires.
type Toast struct {
	Message string
	Undo    func(ctx context.Context) error
}

// timerFunc schedules fn after d and returns a stop function. Tests inject a
// manual variant so toast expiry is deterministic.
type timerFunc func(d time.Duration, fn func()) (stop func())

// Controller owns one view's in-memory watchlist state for a single user.
//
// The in-memory map is seeded by a fresh store read at construction and kept
// current two ways: the controller's own mutations update it directly, and a
// bus subscription re-reads the store when another view or the replay agent
// reports a change. The map is the answer to IsSaved; the store is the
// answer to everything durable.
type Controller struct {
	store    *store.Store
	bus      *bus.Bus
	waker    Waker
	userID   string
	deviceID string
	source   string

	gen      IDGenerator
	now      func() time.Time
	timer    timerFunc
	toastTTL time.Duration

	mu        sync.Mutex
	items     map[model.ItemKey]model.WatchlistItem
	toast     *Toast
	stopToast func()
	reviewSeq int64

	sub *bus.Subscription
}

// Option configures a Controller.
type Option func(*Controller)

// WithIDGenerator overrides the operation id generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(c *Controller) {
		c.gen = gen
	}
}

// WithNow overrides the controller's clock.
func WithNow(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithToastTimer overrides toast expiry scheduling.
func WithToastTimer(t timerFunc) Option {
	return func(c *Controller) {
		c.timer = t
	}
}

// WithToastTTL overrides the undo window.
func WithToastTTL(d time.Duration) Option {
	return func(c *Controller) {
		c.toastTTL = d
	}
}

// New builds a controller for one user's view, seeding its in-memory state
// with a fresh store read. The waker and bus may be nil.
func New(ctx context.Context, s *store.Store, b *bus.Bus, w Waker, userID, deviceID string, opts ...Option) (*Controller, error) {
	c := &Controller{
		store:    s,
		bus:      b,
		waker:    w,
		userID:   userID,
		deviceID: deviceID,
		gen:      UUIDv7Generator{},
		now:      time.Now,
		toastTTL: DefaultToastTTL,
		items:    make(map[model.ItemKey]model.WatchlistItem),
	}
	c.timer = func(d time.Duration, fn func()) func() {
		t := time.AfterFunc(d, fn)
		return func() { t.Stop() }
	}
	for _, opt := range opts {
		opt(c)
	}
	c.source = deviceID + "/" + c.gen.Generate()

	if err := c.refresh(ctx); err != nil {
		return nil, err
	}

	if b != nil {
		c.sub = b.Subscribe(bus.TopicWatchlistChanged, func(msg bus.Message) {
			if msg.Source == c.source || msg.UserID != c.userID {
				return
			}
			// Signal to re-read, never the payload itself.
			if err := c.refresh(context.Background()); err != nil {
				slog.Warn("view refresh after change broadcast failed", "error", err)
			}
		})
	}
	return c, nil
}

// Close detaches the controller from the bus and cancels any pending toast.
func (c *Controller) Close() {
	if c.sub != nil {
		c.sub.Unsubscribe()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearToastLocked()
}

// refresh replaces the in-memory map with the store's current records.
func (c *Controller) refresh(ctx context.Context) error {
	records, err := c.store.GetItems(ctx, c.userID)
	if err != nil {
		return fmt.Errorf("seed view state: %w", err)
	}
	items := make(map[model.ItemKey]model.WatchlistItem, len(records))
	for _, it := range records {
		items[it.Key()] = it
	}

	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
	return nil
}

// IsSaved reports whether the item is present in the view's current state.
// Pure in-memory read; never touches the store.
func (c *Controller) IsSaved(itemID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[model.ItemKey{UserID: c.userID, ItemID: itemID}]
	return ok
}

// List returns the view's current items ordered by AddedAt, then ItemID.
func (c *Controller) List() []model.WatchlistItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.WatchlistItem, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.Before(out[j].AddedAt)
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out
}

// Toast returns the current toast, or nil when none is showing.
func (c *Controller) Toast() *Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.toast
}

// Toggle flips the item's saved state.
//
// Present → removed: durable delete plus queued REMOVE in one transaction.
// Absent → added: durable put with incremented clock plus queued ADD.
// Either way the in-memory state, the change broadcast, the agent wake and
// the undo toast all happen before Toggle returns; the network is never
// touched. Storage errors surface to the caller and leave the in-memory
// state unflipped. Validation errors reject the toggle before anything is
// written.
func (c *Controller) Toggle(ctx context.Context, item model.WatchlistItem) error {
	item.UserID = c.userID
	item.Title = model.NormalizeTitle(item.Title)
	key := item.Key()

	c.mu.Lock()
	prev, present := c.items[key]
	c.mu.Unlock()

	if present {
		return c.remove(ctx, prev)
	}
	return c.add(ctx, item, time.Time{})
}

// add inserts the item. keepAddedAt, when non-zero, preserves a prior
// AddedAt so an undone removal reappears with its original timestamp.
func (c *Controller) add(ctx context.Context, item model.WatchlistItem, keepAddedAt time.Time) error {
	now := c.now().UTC()
	item.DeviceID = c.deviceID
	item.Clock = vclock.Increment(item.Clock, c.deviceID)
	item.UpdatedAt = now
	if !keepAddedAt.IsZero() {
		item.AddedAt = keepAddedAt
	} else {
		item.AddedAt = now
	}

	if err := model.ValidateItem(item); err != nil {
		return err
	}

	op := model.SyncOperation{
		ID:        c.gen.Generate(),
		Type:      model.OpAdd,
		DeviceID:  c.deviceID,
		Item:      &item,
		Clock:     item.Clock.Clone(),
		Timestamp: now,
	}
	if err := op.Validate(); err != nil {
		return err
	}

	if err := c.store.ApplyAdd(ctx, item, op); err != nil {
		slog.Error("toggle add failed", "item_id", item.ItemID, "error", err)
		return err
	}

	c.mu.Lock()
	c.items[item.Key()] = item
	c.setToastLocked(fmt.Sprintf("Added %q", item.Title), func(ctx context.Context) error {
		return c.undoAdd(ctx, item.Key())
	})
	c.mu.Unlock()

	c.announce(item.Key())
	slog.Debug("item added", "item_id", item.ItemID, "op_id", op.ID)
	return nil
}

func (c *Controller) remove(ctx context.Context, prev model.WatchlistItem) error {
	now := c.now().UTC()
	key := prev.Key()
	clock := vclock.Increment(prev.Clock, c.deviceID)

	op := model.SyncOperation{
		ID:        c.gen.Generate(),
		Type:      model.OpRemove,
		DeviceID:  c.deviceID,
		Key:       &key,
		Clock:     clock,
		Timestamp: now,
	}
	if err := op.Validate(); err != nil {
		return err
	}

	if err := c.store.ApplyRemove(ctx, key, op); err != nil {
		slog.Error("toggle remove failed", "item_id", key.ItemID, "error", err)
		return err
	}

	restored := prev.Clone()
	c.mu.Lock()
	delete(c.items, key)
	c.setToastLocked(fmt.Sprintf("Removed %q", prev.Title), func(ctx context.Context) error {
		return c.undoRemove(ctx, restored)
	})
	c.mu.Unlock()

	c.announce(key)
	slog.Debug("item removed", "item_id", key.ItemID, "op_id", op.ID)
	return nil
}

// undoAdd reverses an add while the toast is live.
func (c *Controller) undoAdd(ctx context.Context, key model.ItemKey) error {
	c.mu.Lock()
	prev, present := c.items[key]
	c.clearToastLocked()
	c.mu.Unlock()

	if !present {
		return nil
	}
	return c.remove(ctx, prev)
}

// undoRemove reverses a removal, restoring the record with its original
// AddedAt. The clock still advances: the restoration is a new version, not a
// rollback of history.
func (c *Controller) undoRemove(ctx context.Context, prev model.WatchlistItem) error {
	c.mu.Lock()
	c.clearToastLocked()
	c.mu.Unlock()

	restored := prev.Clone()
	restored.Clock = c.latestClock(ctx, prev.Key(), prev.Clock)
	return c.add(ctx, restored, prev.AddedAt)
}

// latestClock picks the freshest causal history known for the key so the
// undo's increment dominates the removal it reverses.
func (c *Controller) latestClock(ctx context.Context, key model.ItemKey, fallback vclock.Clock) vclock.Clock {
	ops, err := c.store.DequeueAll(ctx)
	if err != nil {
		return fallback
	}
	clock := fallback.Clone()
	for _, op := range ops {
		if k, ok := op.TargetKey(); ok && k == key {
			clock = vclock.Merge(clock, op.Clock)
		}
	}
	return clock
}

// announce broadcasts the change and nudges the replay agent.
func (c *Controller) announce(key model.ItemKey) {
	if c.bus != nil {
		c.bus.Publish(bus.TopicWatchlistChanged, bus.Message{
			Source: c.source,
			UserID: key.UserID,
			ItemID: key.ItemID,
		})
	}
	if c.waker != nil {
		c.waker.Wake()
	}
}

// setToastLocked installs a fresh toast, replacing any live one, and arms
// its expiry. Callers hold c.mu.
func (c *Controller) setToastLocked(message string, undo func(ctx context.Context) error) {
	c.clearToastLocked()
	t := &Toast{Message: message, Undo: undo}
	c.toast = t
	c.stopToast = c.timer(c.toastTTL, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.toast == t {
			c.toast = nil
			c.stopToast = nil
		}
	})
}

func (c *Controller) clearToastLocked() {
	if c.stopToast != nil {
		c.stopToast()
		c.stopToast = nil
	}
	c.toast = nil
}
