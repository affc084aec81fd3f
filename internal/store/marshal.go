package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/shelfsync/internal/model"
	"github.com/roach88/shelfsync/internal/vclock"
)

// marshalClock serializes a vector clock to JSON.
// encoding/json sorts map keys, so the encoding is deterministic.
func marshalClock(c vclock.Clock) (string, error) {
	if c == nil {
		c = vclock.New()
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal vector clock: %w", err)
	}
	return string(data), nil
}

// unmarshalClock deserializes a vector clock from JSON.
func unmarshalClock(data string) (vclock.Clock, error) {
	c := vclock.New()
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("unmarshal vector clock: %w", err)
	}
	return c, nil
}

// marshalPayload serializes the single payload member selected by the
// operation's type. The envelope fields (id, clock, retry metadata) live in
// their own columns; only the union member goes into the payload column.
func marshalPayload(op model.SyncOperation) (string, error) {
	var payload any
	switch op.Type {
	case model.OpAdd:
		payload = op.Item
	case model.OpRemove:
		payload = op.Key
	case model.OpReviewAdd, model.OpReviewUpdate, model.OpReviewDelete:
		payload = op.Review
	case model.OpReviewVote:
		payload = op.Vote
	default:
		return "", fmt.Errorf("marshal payload: unknown operation type %q", op.Type)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload decodes the payload column into the union member selected
// by typ. Decoding is explicit per case - the replay boundary never sees an
// untyped payload.
func unmarshalPayload(typ model.OpType, data string, op *model.SyncOperation) error {
	switch typ {
	case model.OpAdd:
		var item model.WatchlistItem
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return fmt.Errorf("unmarshal %s payload: %w", typ, err)
		}
		op.Item = &item
	case model.OpRemove:
		var key model.ItemKey
		if err := json.Unmarshal([]byte(data), &key); err != nil {
			return fmt.Errorf("unmarshal %s payload: %w", typ, err)
		}
		op.Key = &key
	case model.OpReviewAdd, model.OpReviewUpdate, model.OpReviewDelete:
		var review model.Review
		if err := json.Unmarshal([]byte(data), &review); err != nil {
			return fmt.Errorf("unmarshal %s payload: %w", typ, err)
		}
		op.Review = &review
	case model.OpReviewVote:
		var vote model.Vote
		if err := json.Unmarshal([]byte(data), &vote); err != nil {
			return fmt.Errorf("unmarshal %s payload: %w", typ, err)
		}
		op.Vote = &vote
	default:
		return fmt.Errorf("unmarshal payload: unknown operation type %q", typ)
	}
	return nil
}
