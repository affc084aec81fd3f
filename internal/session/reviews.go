package session

import (
	"context"
	"log/slog"

	"github.com/roach88/shelfsync/internal/model"
	"github.com/roach88/shelfsync/internal/vclock"
)

// Review actions follow the toggle pattern minus the record store: reviews
// live remotely, so the local side only queues the replay intent. The queue's
// durability gives reviews the same offline guarantees as watchlist toggles.

// AddReview queues a new review for replay.
func (c *Controller) AddReview(ctx context.Context, review model.Review) error {
	review.UserID = c.userID
	return c.enqueueReview(ctx, model.OpReviewAdd, &review, nil)
}

// UpdateReview queues an edit to an existing review.
func (c *Controller) UpdateReview(ctx context.Context, review model.Review) error {
	review.UserID = c.userID
	return c.enqueueReview(ctx, model.OpReviewUpdate, &review, nil)
}

// DeleteReview queues a review deletion. Only the identifying fields matter.
func (c *Controller) DeleteReview(ctx context.Context, review model.Review) error {
	review.UserID = c.userID
	return c.enqueueReview(ctx, model.OpReviewDelete, &review, nil)
}

// VoteReview queues a helpfulness vote.
func (c *Controller) VoteReview(ctx context.Context, vote model.Vote) error {
	vote.UserID = c.userID
	return c.enqueueReview(ctx, model.OpReviewVote, nil, &vote)
}

func (c *Controller) enqueueReview(ctx context.Context, typ model.OpType, review *model.Review, vote *model.Vote) error {
	c.mu.Lock()
	c.reviewSeq++
	seq := c.reviewSeq
	c.mu.Unlock()

	op := model.SyncOperation{
		ID:       c.gen.Generate(),
		Type:     typ,
		DeviceID: c.deviceID,
		Review:   review,
		Vote:     vote,
		// Reviews have no local record carrying causal history; a per-session
		// counter still gives the remote side usable idempotency key material.
		Clock:     vclock.Clock{c.deviceID: seq},
		Timestamp: c.now().UTC(),
	}
	if err := op.Validate(); err != nil {
		return err
	}

	if err := c.store.Enqueue(ctx, op); err != nil {
		slog.Error("review enqueue failed", "type", typ, "op_id", op.ID, "error", err)
		return err
	}

	if key, ok := op.TargetKey(); ok {
		c.announce(key)
	} else if c.waker != nil {
		c.waker.Wake()
	}
	slog.Debug("review operation queued", "type", typ, "op_id", op.ID)
	return nil
}
