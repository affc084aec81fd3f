// Package replay implements the background replay agent: the long-lived
// process that drains the durable operation queue against the remote sync
// endpoint.
//
// The agent is independent of any open view. It may run with no views open
// and must never assume one is alive; views only request wakes. Correctness
// does not depend on the agent running promptly - only on it running
// eventually, which is why the queue's durability, not timing, carries the
// correctness burden.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/shelfsync/internal/bus"
	"github.com/roach88/shelfsync/internal/connectivity"
	"github.com/roach88/shelfsync/internal/model"
	"github.com/roach88/shelfsync/internal/remote"
)

// MaxRetries is the per-operation retry ceiling. An operation that has
// already failed this many times is dropped (dead-lettered) without another
// attempt. This is a deliberate data-loss boundary: the local optimistic
// state remains the user's truth even though the remote side never saw the
// mutation, so the drop is logged distinctly from ordinary failures.
const MaxRetries = 5

// backoffUnit is the base of the exponential backoff: after the k-th failure
// the next attempt is scheduled at now + 2^k * backoffUnit.
const backoffUnit = time.Second

// DefaultInterval is the periodic wake interval for the run loop.
const DefaultInterval = time.Minute

// Queue is the durable operation queue the agent drains. *store.Store
// satisfies it; tests inject failing implementations to exercise the
// infrastructure-error path.
type Queue interface {
	DequeueAll(ctx context.Context) ([]model.SyncOperation, error)
	Remove(ctx context.Context, id string) error
	Update(ctx context.Context, op model.SyncOperation) error
}

// Stats summarizes one drain cycle.
type Stats struct {
	Attempted    int // operations for which a remote call was made
	Succeeded    int // acknowledged and removed from the queue
	Failed       int // failed and rescheduled with backoff
	DeadLettered int // dropped after exhausting the retry budget
	Skipped      int // left queued untouched (offline or backing off)
}

// Agent drains the operation queue whenever triggered.
//
// Failure handling is two-level: a failure on one operation is
// converted into retry bookkeeping and never aborts the cycle, while a
// failure of the queue itself propagates out of Drain so the trigger knows
// to try again later. One poisoned operation must never block the rest of
// the queue.
type Agent struct {
	queue   Queue
	client  remote.Client
	monitor *connectivity.Monitor
	bus     *bus.Bus

	now      func() time.Time
	interval time.Duration
	wake     chan struct{} // buffered, size 1 - coalesces wake requests
}

// Option configures an Agent.
type Option func(*Agent)

// WithNow overrides the agent's clock. Used by tests for deterministic
// backoff timestamps.
func WithNow(now func() time.Time) Option {
	return func(a *Agent) {
		a.now = now
	}
}

// WithInterval overrides the periodic wake interval.
func WithInterval(d time.Duration) Option {
	return func(a *Agent) {
		a.interval = d
	}
}

// New creates an agent. The bus is optional; when present, the agent
// broadcasts on bus.TopicQueueDrained after a cycle that removed operations
// so open views can refresh their queue-status displays.
func New(queue Queue, client remote.Client, monitor *connectivity.Monitor, b *bus.Bus, opts ...Option) *Agent {
	a := &Agent{
		queue:    queue,
		client:   client,
		monitor:  monitor,
		bus:      b,
		now:      time.Now,
		interval: DefaultInterval,
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Wake requests a drain cycle. Non-blocking; multiple requests before the
// loop gets to run coalesce into one cycle.
func (a *Agent) Wake() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Run is the agent's long-lived loop. It drains once at startup (there may
// be a backlog from a previous session), then again on every explicit wake,
// every connectivity-regained transition, and every periodic tick. Run
// returns when the context is cancelled.
//
// Cycle-level errors are logged and swallowed here: the next trigger is the
// retry mechanism.
func (a *Agent) Run(ctx context.Context) error {
	sub := a.monitor.Subscribe(func(online bool) {
		if online {
			a.Wake()
		}
	})
	defer sub.Unsubscribe()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	slog.Info("replay agent starting", "interval", a.interval)
	a.drainAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("replay agent stopping: context cancelled")
			return ctx.Err()
		case <-a.wake:
			a.drainAndLog(ctx)
		case <-ticker.C:
			a.drainAndLog(ctx)
		}
	}
}

func (a *Agent) drainAndLog(ctx context.Context) {
	stats, err := a.Drain(ctx)
	if err != nil {
		slog.Error("drain cycle failed", "error", err)
		return
	}
	if stats.Attempted > 0 || stats.DeadLettered > 0 {
		slog.Info("drain cycle complete",
			"attempted", stats.Attempted,
			"succeeded", stats.Succeeded,
			"failed", stats.Failed,
			"dead_lettered", stats.DeadLettered,
			"skipped", stats.Skipped)
	}
}

// Drain runs one cycle over the queue in enqueue order.
//
// Per operation:
//  1. retry budget exhausted → drop (log and delete), no attempt
//  2. offline → leave queued untouched; the budget is not spent on attempts
//     guaranteed to fail
//  3. backoff window still open → leave queued untouched
//  4. attempt the remote call (the client enforces the per-attempt timeout)
//  5. success → remove from the queue
//  6. failure → increment RetryCount, record LastError, schedule
//     NextRetryAt = now + 2^RetryCount seconds, persist, continue
//
// Errors reading or writing the queue itself abort the cycle and propagate.
func (a *Agent) Drain(ctx context.Context) (Stats, error) {
	var stats Stats

	ops, err := a.queue.DequeueAll(ctx)
	if err != nil {
		return stats, fmt.Errorf("drain: read queue: %w", err)
	}

	now := a.now()
	for _, op := range ops {
		if op.RetryCount >= MaxRetries {
			// Deliberate data-loss boundary: local and remote are now known
			// to have diverged permanently for this operation.
			slog.Error("dropping operation: retry budget exhausted",
				"op_id", op.ID,
				"type", op.Type,
				"retry_count", op.RetryCount,
				"last_error", op.LastError)
			if err := a.queue.Remove(ctx, op.ID); err != nil {
				return stats, fmt.Errorf("drain: drop dead-lettered operation: %w", err)
			}
			stats.DeadLettered++
			continue
		}

		if !a.monitor.IsOnline() {
			stats.Skipped++
			continue
		}

		if !op.NextRetryAt.IsZero() && op.NextRetryAt.After(now) {
			stats.Skipped++
			continue
		}

		stats.Attempted++
		if err := a.client.Push(ctx, op); err != nil {
			op.RetryCount++
			op.LastError = err.Error()
			op.NextRetryAt = now.Add(time.Duration(1<<op.RetryCount) * backoffUnit)
			if uerr := a.queue.Update(ctx, op); uerr != nil {
				return stats, fmt.Errorf("drain: persist retry metadata: %w", uerr)
			}
			slog.Warn("operation replay failed",
				"op_id", op.ID,
				"type", op.Type,
				"retry_count", op.RetryCount,
				"next_retry_at", op.NextRetryAt,
				"error", err)
			stats.Failed++
			continue
		}

		if err := a.queue.Remove(ctx, op.ID); err != nil {
			return stats, fmt.Errorf("drain: remove acknowledged operation: %w", err)
		}
		slog.Debug("operation replayed", "op_id", op.ID, "type", op.Type)
		stats.Succeeded++
	}

	if stats.Succeeded > 0 && a.bus != nil {
		a.bus.Publish(bus.TopicQueueDrained, bus.Message{Source: "replay-agent"})
	}
	return stats, nil
}
