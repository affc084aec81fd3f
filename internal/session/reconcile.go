package session

import (
	"context"
	"log/slog"

	"github.com/roach88/shelfsync/internal/model"
	"github.com/roach88/shelfsync/internal/resolve"
	"github.com/roach88/shelfsync/internal/vclock"
)

// Reconcile merges a record version observed from the remote side into local
// state. The resolver is the sole ordering authority: whatever it picks is
// written back with the merged clock so future comparisons see the full
// causal history.
//
// Reconciliation is not a queue operation. The local record changes, but no
// replay intent is enqueued: the remote side already knows the version it
// sent, and the locally queued operations for this key stay untouched.
func (c *Controller) Reconcile(ctx context.Context, incoming model.WatchlistItem) error {
	incoming.UserID = c.userID
	incoming.Title = model.NormalizeTitle(incoming.Title)
	if err := model.ValidateItem(incoming); err != nil {
		return err
	}
	key := incoming.Key()

	local, present, err := c.store.GetItem(ctx, c.userID, key.ItemID)
	if err != nil {
		return err
	}

	if !present {
		// Local absence. If a queued REMOVE dominates the incoming version,
		// the deletion stands; otherwise existence wins and the record lands.
		absentClock := c.queuedRemovalClock(ctx, key)
		res := resolve.ResolveAgainstAbsence(incoming, absentClock, false)
		if res.Absent {
			slog.Debug("reconcile: local deletion stands", "item_id", key.ItemID)
			return nil
		}
		return c.adoptRemote(ctx, res.Winner)
	}

	res := resolve.Resolve(local, incoming)
	if res.Action == resolve.KeepLocal {
		// The local payload survives, but when the merge added history the
		// clock must be persisted so this record dominates the version it
		// just beat.
		if vclock.Compare(res.Winner.Clock, local.Clock) == vclock.After {
			local.Clock = res.Winner.Clock
			if err := c.store.PutItem(ctx, local); err != nil {
				return err
			}
			c.mu.Lock()
			c.items[key] = local
			c.mu.Unlock()
		}
		slog.Debug("reconcile: local version kept", "item_id", key.ItemID)
		return nil
	}
	return c.adoptRemote(ctx, res.Winner)
}

// ReconcileRemoval merges a deletion observed from the remote side.
func (c *Controller) ReconcileRemoval(ctx context.Context, itemID string, deletionClock vclock.Clock) error {
	key := model.ItemKey{UserID: c.userID, ItemID: itemID}

	local, present, err := c.store.GetItem(ctx, c.userID, itemID)
	if err != nil {
		return err
	}
	if !present {
		return nil
	}

	res := resolve.ResolveAgainstAbsence(local, deletionClock, true)
	if !res.Absent {
		// Existence beat the deletion; persist the merged clock.
		if err := c.store.PutItem(ctx, res.Winner); err != nil {
			return err
		}
		c.mu.Lock()
		c.items[key] = res.Winner
		c.mu.Unlock()
		slog.Debug("reconcile: record survives remote deletion", "item_id", itemID)
		return nil
	}

	if err := c.store.DeleteItem(ctx, c.userID, itemID); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	c.announce(key)
	slog.Debug("reconcile: remote deletion applied", "item_id", itemID)
	return nil
}

// adoptRemote writes the winning remote version and refreshes in-memory state.
func (c *Controller) adoptRemote(ctx context.Context, winner model.WatchlistItem) error {
	if err := c.store.PutItem(ctx, winner); err != nil {
		return err
	}
	c.mu.Lock()
	c.items[winner.Key()] = winner
	c.mu.Unlock()
	c.announce(winner.Key())
	slog.Debug("reconcile: remote version adopted", "item_id", winner.ItemID)
	return nil
}

// queuedRemovalClock merges the clocks of queued REMOVE operations for the
// key. With no tombstones in the record store, the queue is the only local
// memory of a deletion's causal position.
func (c *Controller) queuedRemovalClock(ctx context.Context, key model.ItemKey) vclock.Clock {
	clock := vclock.New()
	ops, err := c.store.DequeueAll(ctx)
	if err != nil {
		return clock
	}
	for _, op := range ops {
		if op.Type != model.OpRemove {
			continue
		}
		if k, ok := op.TargetKey(); ok && k == key {
			clock = vclock.Merge(clock, op.Clock)
		}
	}
	return clock
}
