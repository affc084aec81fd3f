package model

import "fmt"

// ValidationError reports a malformed payload, rejected before it reaches
// the store or the queue.
type ValidationError struct {
	// Code identifies the error category.
	Code ValidationErrorCode

	// Field names the offending field when one is identifiable.
	Field string

	// Message is a human-readable description.
	Message string
}

// ValidationErrorCode categorizes validation errors.
type ValidationErrorCode string

const (
	// ErrCodeMissingField indicates a required field is empty.
	ErrCodeMissingField ValidationErrorCode = "MISSING_FIELD"

	// ErrCodeBadPayload indicates the payload does not match the operation type.
	ErrCodeBadPayload ValidationErrorCode = "BAD_PAYLOAD"

	// ErrCodeBadValue indicates a field value is out of range.
	ErrCodeBadValue ValidationErrorCode = "BAD_VALUE"
)

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func missing(field string) error {
	return &ValidationError{Code: ErrCodeMissingField, Field: field, Message: "must not be empty"}
}

// ValidateItem checks the shape of a watchlist record before it is persisted.
func ValidateItem(item WatchlistItem) error {
	if item.UserID == "" {
		return missing("user_id")
	}
	if item.ItemID == "" {
		return missing("item_id")
	}
	if item.Title == "" {
		return missing("title")
	}
	if item.DeviceID == "" {
		return missing("device_id")
	}
	if item.Rating != nil && (*item.Rating < 0 || *item.Rating > 10) {
		return &ValidationError{Code: ErrCodeBadValue, Field: "rating", Message: "must be between 0 and 10"}
	}
	return nil
}

// Validate checks a sync operation before enqueue: the common envelope fields
// and that exactly the payload selected by Type is present.
func (op SyncOperation) Validate() error {
	if op.ID == "" {
		return missing("id")
	}
	if op.DeviceID == "" {
		return missing("device_id")
	}
	if op.Timestamp.IsZero() {
		return missing("timestamp")
	}

	if err := op.validatePayload(); err != nil {
		return err
	}

	set := 0
	for _, present := range []bool{op.Item != nil, op.Key != nil, op.Review != nil, op.Vote != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return &ValidationError{
			Code:    ErrCodeBadPayload,
			Message: fmt.Sprintf("operation must carry exactly one payload, got %d", set),
		}
	}
	return nil
}

func (op SyncOperation) validatePayload() error {
	switch op.Type {
	case OpAdd:
		if op.Item == nil {
			return &ValidationError{Code: ErrCodeBadPayload, Field: "item", Message: "ADD requires an item payload"}
		}
		return ValidateItem(*op.Item)
	case OpRemove:
		if op.Key == nil {
			return &ValidationError{Code: ErrCodeBadPayload, Field: "key", Message: "REMOVE requires a key payload"}
		}
		if op.Key.UserID == "" {
			return missing("key.user_id")
		}
		if op.Key.ItemID == "" {
			return missing("key.item_id")
		}
		return nil
	case OpReviewAdd, OpReviewUpdate, OpReviewDelete:
		if op.Review == nil {
			return &ValidationError{Code: ErrCodeBadPayload, Field: "review", Message: string(op.Type) + " requires a review payload"}
		}
		if op.Review.ReviewID == "" {
			return missing("review.review_id")
		}
		if op.Review.UserID == "" {
			return missing("review.user_id")
		}
		return nil
	case OpReviewVote:
		if op.Vote == nil {
			return &ValidationError{Code: ErrCodeBadPayload, Field: "vote", Message: "REVIEW_VOTE requires a vote payload"}
		}
		if op.Vote.ReviewID == "" {
			return missing("vote.review_id")
		}
		if op.Vote.UserID == "" {
			return missing("vote.user_id")
		}
		return nil
	default:
		return &ValidationError{Code: ErrCodeBadPayload, Field: "type", Message: fmt.Sprintf("unknown operation type %q", op.Type)}
	}
}
