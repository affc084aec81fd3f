package harness

import (
	"context"
	"fmt"

	"github.com/roach88/shelfsync/internal/session"
	"github.com/roach88/shelfsync/internal/store"
)

// AssertionContext carries what assertions may inspect.
type AssertionContext struct {
	Ctx        context.Context
	Store      *store.Store
	Controller *session.Controller
}

// EvaluateAssertions checks every assertion against the final state and
// returns one message per failure.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		if msg := evaluate(a, actx); msg != "" {
			failures = append(failures, fmt.Sprintf("assertion %d (%s): %s", i+1, a.Type, msg))
		}
	}
	return failures
}

func evaluate(a Assertion, actx *AssertionContext) string {
	switch a.Type {
	case AssertSaved:
		if a.Saved == nil {
			return "missing 'saved' field"
		}
		got := actx.Controller.IsSaved(a.ItemID)
		if got != *a.Saved {
			return fmt.Sprintf("item %s: saved = %v, want %v", a.ItemID, got, *a.Saved)
		}

	case AssertQueueLen:
		if a.Count == nil {
			return "missing 'count' field"
		}
		got, err := actx.Store.QueueLen(actx.Ctx)
		if err != nil {
			return fmt.Sprintf("read queue length: %v", err)
		}
		if got != *a.Count {
			return fmt.Sprintf("queue length = %d, want %d", got, *a.Count)
		}

	case AssertQueueTypes:
		ops, err := actx.Store.DequeueAll(actx.Ctx)
		if err != nil {
			return fmt.Sprintf("read queue: %v", err)
		}
		if len(ops) != len(a.Types) {
			return fmt.Sprintf("queue has %d operations, want %d", len(ops), len(a.Types))
		}
		for i, op := range ops {
			if string(op.Type) != a.Types[i] {
				return fmt.Sprintf("operation %d has type %s, want %s", i+1, op.Type, a.Types[i])
			}
		}

	case AssertRecord:
		if a.Present == nil {
			return "missing 'present' field"
		}
		_, ok, err := actx.Store.GetItem(actx.Ctx, scenarioUserID, a.ItemID)
		if err != nil {
			return fmt.Sprintf("read record: %v", err)
		}
		if ok != *a.Present {
			return fmt.Sprintf("record %s: present = %v, want %v", a.ItemID, ok, *a.Present)
		}

	case AssertRetryCount:
		if a.RetryCount == nil {
			return "missing 'retry_count' field"
		}
		ops, err := actx.Store.DequeueAll(actx.Ctx)
		if err != nil {
			return fmt.Sprintf("read queue: %v", err)
		}
		for _, op := range ops {
			if op.ID == a.OpID {
				if op.RetryCount != *a.RetryCount {
					return fmt.Sprintf("operation %s: retry_count = %d, want %d", a.OpID, op.RetryCount, *a.RetryCount)
				}
				return ""
			}
		}
		return fmt.Sprintf("operation %s not found in queue", a.OpID)

	default:
		return fmt.Sprintf("unknown assertion type %q", a.Type)
	}
	return ""
}
