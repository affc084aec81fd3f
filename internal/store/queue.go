package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/shelfsync/internal/model"
)

// Enqueue appends an operation to the replay queue with a fresh retry budget.
// The operation's vector clock is the snapshot stamped at enqueue time and is
// never rewritten afterwards.
func (s *Store) Enqueue(ctx context.Context, op model.SyncOperation) error {
	clockJSON, err := marshalClock(op.Clock)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	payloadJSON, err := marshalPayload(op)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
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
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// DequeueAll returns every pending operation in enqueue order.
// The queue is not consumed by reading; the replay agent removes operations
// individually as the remote side acknowledges them.
func (s *Store) DequeueAll(ctx context.Context) ([]model.SyncOperation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, device_id, payload, vector_clock, timestamp,
		       retry_count, last_error, next_retry_at
		FROM sync_queue
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("dequeue all: %w", err)
	}
	defer rows.Close()

	var ops []model.SyncOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("dequeue all: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dequeue all: %w", err)
	}
	return ops, nil
}

// Remove deletes an operation by id. Removing a missing id is a no-op, which
// keeps a second drain cycle racing over the same operation harmless.
func (s *Store) Remove(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove operation: %w", err)
	}
	return nil
}

// Update rewrites an operation's retry metadata in place. The payload, clock
// and enqueue position are immutable once enqueued.
func (s *Store) Update(ctx context.Context, op model.SyncOperation) error {
	var nextRetry sql.NullInt64
	if !op.NextRetryAt.IsZero() {
		nextRetry = sql.NullInt64{Int64: op.NextRetryAt.UnixMilli(), Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue
		SET retry_count = ?, last_error = ?, next_retry_at = ?
		WHERE id = ?
	`,
		op.RetryCount,
		op.LastError,
		nextRetry,
		op.ID,
	)
	if err != nil {
		return fmt.Errorf("update operation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update operation: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update operation: id %q not found", op.ID)
	}
	return nil
}

// QueueLen returns the number of pending operations.
func (s *Store) QueueLen(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&count); err != nil {
		return 0, fmt.Errorf("queue len: %w", err)
	}
	return count, nil
}

func scanOperation(rows *sql.Rows) (model.SyncOperation, error) {
	var (
		op          model.SyncOperation
		typ         string
		payloadJSON string
		clockJSON   string
		timestamp   int64
		nextRetry   sql.NullInt64
	)
	err := rows.Scan(
		&op.ID,
		&typ,
		&op.DeviceID,
		&payloadJSON,
		&clockJSON,
		&timestamp,
		&op.RetryCount,
		&op.LastError,
		&nextRetry,
	)
	if err != nil {
		return model.SyncOperation{}, err
	}

	op.Type = model.OpType(typ)
	op.Timestamp = time.UnixMilli(timestamp).UTC()
	if nextRetry.Valid {
		op.NextRetryAt = time.UnixMilli(nextRetry.Int64).UTC()
	}

	op.Clock, err = unmarshalClock(clockJSON)
	if err != nil {
		return model.SyncOperation{}, err
	}
	if err := unmarshalPayload(op.Type, payloadJSON, &op); err != nil {
		return model.SyncOperation{}, err
	}
	return op, nil
}
