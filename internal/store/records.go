package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/shelfsync/internal/model"
)

// GetItems returns every confirmed record for the user, ordered by the time
// the record was first added.
func (s *Store) GetItems(ctx context.Context, userID string) ([]model.WatchlistItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, item_id, title, poster_url, release_year, rating,
		       added_at, updated_at, vector_clock, device_id
		FROM watchlist_items
		WHERE user_id = ?
		ORDER BY added_at, item_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	defer rows.Close()

	var items []model.WatchlistItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("get items: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	return items, nil
}

// GetItem returns a single record by composite key.
// Returns (zero, false, nil) when the record does not exist.
func (s *Store) GetItem(ctx context.Context, userID, itemID string) (model.WatchlistItem, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, item_id, title, poster_url, release_year, rating,
		       added_at, updated_at, vector_clock, device_id
		FROM watchlist_items
		WHERE user_id = ? AND item_id = ?
	`, userID, itemID)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return model.WatchlistItem{}, false, nil
	}
	if err != nil {
		return model.WatchlistItem{}, false, fmt.Errorf("get item: %w", err)
	}
	return item, true, nil
}

// PutItem upserts a record by composite key, fully replacing the prior
// version. No merging happens at this layer - the conflict resolver decides
// the winning version one layer up, and the single-statement upsert keeps
// the replacement atomic per key.
func (s *Store) PutItem(ctx context.Context, item model.WatchlistItem) error {
	clockJSON, err := marshalClock(item.Clock)
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}

	var rating sql.NullFloat64
	if item.Rating != nil {
		rating = sql.NullFloat64{Float64: *item.Rating, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
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
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// DeleteItem removes a record by composite key.
// Removal is a hard delete, not a tombstone - the queued REMOVE operation is
// what survives for replay purposes. Deleting a missing key is a no-op.
func (s *Store) DeleteItem(ctx context.Context, userID, itemID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM watchlist_items WHERE user_id = ? AND item_id = ?
	`, userID, itemID)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanItem.
type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (model.WatchlistItem, error) {
	var (
		item      model.WatchlistItem
		rating    sql.NullFloat64
		addedAt   int64
		updatedAt int64
		clockJSON string
	)
	err := row.Scan(
		&item.UserID,
		&item.ItemID,
		&item.Title,
		&item.PosterURL,
		&item.ReleaseYear,
		&rating,
		&addedAt,
		&updatedAt,
		&clockJSON,
		&item.DeviceID,
	)
	if err != nil {
		return model.WatchlistItem{}, err
	}

	if rating.Valid {
		r := rating.Float64
		item.Rating = &r
	}
	item.AddedAt = time.UnixMilli(addedAt).UTC()
	item.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	item.Clock, err = unmarshalClock(clockJSON)
	if err != nil {
		return model.WatchlistItem{}, err
	}
	return item, nil
}
