package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/shelfsync/internal/model"
)

// ApplyAdd atomically upserts the record and enqueues its ADD operation in a
// single transaction. This is the crash-safe variant of the non-atomic
// sequence PutItem → Enqueue: either both the confirmed record and the replay
// intent survive, or neither does.
func (s *Store) ApplyAdd(ctx context.Context, item model.WatchlistItem, op model.SyncOperation) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := putItemTx(ctx, tx, item); err != nil {
			return fmt.Errorf("apply add: %w", err)
		}
		if err := enqueueTx(ctx, tx, op); err != nil {
			return fmt.Errorf("apply add: %w", err)
		}
		return nil
	})
}

// ApplyRemove atomically deletes the record and enqueues its REMOVE
// operation. The queued operation is what survives the hard delete for
// replay purposes.
func (s *Store) ApplyRemove(ctx context.Context, key model.ItemKey, op model.SyncOperation) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM watchlist_items WHERE user_id = ? AND item_id = ?
		`, key.UserID, key.ItemID); err != nil {
			return fmt.Errorf("apply remove: %w", err)
		}
		if err := enqueueTx(ctx, tx, op); err != nil {
			return fmt.Errorf("apply remove: %w", err)
		}
		return nil
	})
}

func putItemTx(ctx context.Context, tx *sql.Tx, item model.WatchlistItem) error {
	clockJSON, err := marshalClock(item.Clock)
	if err != nil {
		return err
	}

	var rating sql.NullFloat64
	if item.Rating != nil {
		rating = sql.NullFloat64{Float64: *item.Rating, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO watchlist_items
		(user_id, item_id, title, poster_url, release_year, rating,
		 added_at, updated_at, vector_clock, device_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, item_id) DO UPDATE SET
			title        = excluded.title,
			poster_url   = excluded.poster_url,
			release_year = excluded.release_year,
			rating       = excluded.rating,
			added_at     = excluded.added_at,
			updated_at   = excluded.updated_at,
			vector_clock = excluded.vector_clock,
			device_id    = excluded.device_id
	`,
		item.UserID,
		item.ItemID,
		item.Title,
		item.PosterURL,
		item.ReleaseYear,
		rating,
		item.AddedAt.UnixMilli(),
		item.UpdatedAt.UnixMilli(),
		clockJSON,
		item.DeviceID,
	)
	return err
}

func enqueueTx(ctx context.Context, tx *sql.Tx, op model.SyncOperation) error {
	clockJSON, err := marshalClock(op.Clock)
	if err != nil {
		return err
	}
	payloadJSON, err := marshalPayload(op)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_queue
		(id, type, device_id, payload, vector_clock, timestamp, retry_count, last_error, next_retry_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, '', NULL)
	`,
		op.ID,
		string(op.Type),
		op.DeviceID,
		payloadJSON,
		clockJSON,
		op.Timestamp.UnixMilli(),
	)
	return err
}
