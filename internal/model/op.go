package model

import (
	"time"

	"github.com/roach88/shelfsync/internal/vclock"
)

// OpType discriminates the sync operation union.
type OpType string

const (
	// OpAdd replays a watchlist insertion; payload is Item.
	OpAdd OpType = "ADD"
	// OpRemove replays a watchlist removal; payload is Key.
	OpRemove OpType = "REMOVE"
	// OpReviewAdd replays a new review; payload is Review.
	OpReviewAdd OpType = "REVIEW_ADD"
	// OpReviewUpdate replays a review edit; payload is Review.
	OpReviewUpdate OpType = "REVIEW_UPDATE"
	// OpReviewDelete replays a review deletion; payload is Review (ID only).
	OpReviewDelete OpType = "REVIEW_DELETE"
	// OpReviewVote replays a helpfulness vote; payload is Vote.
	OpReviewVote OpType = "REVIEW_VOTE"
)

// Review is the payload for review operations. Delete carries only the
// identifying fields.
type Review struct {
	ReviewID string   `json:"review_id"`
	ItemID   string   `json:"item_id"`
	UserID   string   `json:"user_id"`
	Rating   *float64 `json:"rating,omitempty"`
	Body     string   `json:"body,omitempty"`
}

// Vote is the payload for review vote operations.
type Vote struct {
	ReviewID string `json:"review_id"`
	UserID   string `json:"user_id"`
	Up       bool   `json:"up"`
}

// SyncOperation is a durable replay intent, queued until the remote side
// acknowledges it.
//
// Exactly one payload field is set, selected by Type. The payload is decoded
// explicitly at the replay boundary - there is no any-typed escape hatch.
//
// Clock is the vector clock stamped at enqueue time. It is never rewritten
// when the underlying record changes again; a newer operation for the same
// key coexists in the queue instead of replacing this one.
type SyncOperation struct {
	ID       string `json:"id"`
	Type     OpType `json:"type"`
	DeviceID string `json:"device_id"`

	Item   *WatchlistItem `json:"item,omitempty"`
	Key    *ItemKey       `json:"key,omitempty"`
	Review *Review        `json:"review,omitempty"`
	Vote   *Vote          `json:"vote,omitempty"`

	Clock     vclock.Clock `json:"vector_clock"`
	Timestamp time.Time    `json:"timestamp"`

	// Retry bookkeeping, rewritten in place by the replay agent.
	RetryCount  int       `json:"retry_count"`
	LastError   string    `json:"last_error,omitempty"`
	NextRetryAt time.Time `json:"next_retry_at,omitempty"`
}

// TargetKey returns the logical record key the operation refers to, when it
// has one. Review votes target a review, not an item, and return false.
func (op SyncOperation) TargetKey() (ItemKey, bool) {
	switch {
	case op.Item != nil:
		return op.Item.Key(), true
	case op.Key != nil:
		return *op.Key, true
	case op.Review != nil:
		return ItemKey{UserID: op.Review.UserID, ItemID: op.Review.ItemID}, true
	default:
		return ItemKey{}, false
	}
}
