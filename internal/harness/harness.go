package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/shelfsync/internal/bus"
	"github.com/roach88/shelfsync/internal/connectivity"
	"github.com/roach88/shelfsync/internal/model"
	"github.com/roach88/shelfsync/internal/replay"
	"github.com/roach88/shelfsync/internal/session"
	"github.com/roach88/shelfsync/internal/store"
	"github.com/roach88/shelfsync/internal/testutil"
)

// Fixed identities for every scenario run. Deterministic inputs keep the
// golden traces stable.
const (
	scenarioUserID   = "user-1"
	scenarioDeviceID = "device-a"
)

// scenarioEpoch is the manual clock's starting instant.
var scenarioEpoch = time.UnixMilli(1_000_000).UTC()

// stepTick is how far the clock advances before each step executes.
const stepTick = time.Second

// TraceEvent records one executed step and the state it left behind.
type TraceEvent struct {
	Seq      int         `json:"seq"`
	Step     string      `json:"step"`
	ItemID   string      `json:"item_id,omitempty"`
	Mode     string      `json:"mode,omitempty"`
	Saved    *bool       `json:"saved,omitempty"`
	Online   *bool       `json:"online,omitempty"`
	Drain    *DrainTrace `json:"drain,omitempty"`
	QueueLen int         `json:"queue_len"`
}

// DrainTrace is the drain cycle summary embedded in the trace.
type DrainTrace struct {
	Attempted    int `json:"attempted"`
	Succeeded    int `json:"succeeded"`
	Failed       int `json:"failed"`
	DeadLettered int `json:"dead_lettered"`
	Skipped      int `json:"skipped"`
}

// Result is a scenario run: the trace plus any assertion failures.
type Result struct {
	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`
}

// Passed reports whether all assertions held.
func (r *Result) Passed() bool {
	return len(r.Errors) == 0
}

// scriptedClient is the remote stub. Mode "fail" rejects every push.
type scriptedClient struct {
	mode string
}

func (c *scriptedClient) Push(context.Context, model.SyncOperation) error {
	if c.mode == "fail" {
		return fmt.Errorf("scripted remote failure")
	}
	return nil
}

// Run executes a scenario against a fresh in-memory installation.
//
// Every run wires the full engine: store, connectivity monitor, replay agent,
// bus and session controller, with a manual clock and sequential operation
// ids so two runs of the same scenario produce byte-identical traces.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewManualClock(scenarioEpoch)
	gen := testutil.NewSeqGenerator("op")
	monitor := connectivity.NewMonitor(!scenario.StartOffline)
	client := &scriptedClient{mode: "ok"}
	b := bus.New()

	agent := replay.New(st, client, monitor, b, replay.WithNow(clock.Now))

	// Toasts never auto-expire in scenarios; undo steps decide their fate.
	frozenTimer := func(time.Duration, func()) func() { return func() {} }

	controller, err := session.New(ctx, st, b, agent, scenarioUserID, scenarioDeviceID,
		session.WithIDGenerator(gen),
		session.WithNow(clock.Now),
		session.WithToastTimer(frozenTimer),
	)
	if err != nil {
		return nil, fmt.Errorf("build session controller: %w", err)
	}
	defer controller.Close()

	result := &Result{Trace: []TraceEvent{}}
	for i, step := range scenario.Steps {
		clock.Advance(stepTick)

		event := TraceEvent{Seq: i + 1, Step: step.Do}
		switch step.Do {
		case StepToggle:
			item := model.WatchlistItem{
				ItemID:      step.ItemID,
				Title:       step.Title,
				ReleaseYear: step.Year,
				Rating:      step.Rating,
			}
			if err := controller.Toggle(ctx, item); err != nil {
				return nil, fmt.Errorf("step %d toggle: %w", i+1, err)
			}
			saved := controller.IsSaved(step.ItemID)
			event.ItemID = step.ItemID
			event.Saved = &saved

		case StepUndo:
			toast := controller.Toast()
			if toast == nil {
				return nil, fmt.Errorf("step %d undo: no toast available", i+1)
			}
			if err := toast.Undo(ctx); err != nil {
				return nil, fmt.Errorf("step %d undo: %w", i+1, err)
			}

		case StepOnline, StepOffline:
			online := step.Do == StepOnline
			monitor.SetOnline(online)
			event.Online = &online

		case StepDrain:
			stats, err := agent.Drain(ctx)
			if err != nil {
				return nil, fmt.Errorf("step %d drain: %w", i+1, err)
			}
			event.Drain = &DrainTrace{
				Attempted:    stats.Attempted,
				Succeeded:    stats.Succeeded,
				Failed:       stats.Failed,
				DeadLettered: stats.DeadLettered,
				Skipped:      stats.Skipped,
			}

		case StepRemote:
			client.mode = step.Mode
			event.Mode = step.Mode

		case StepAdvance:
			clock.Advance(time.Duration(step.Seconds) * time.Second)

		default:
			return nil, fmt.Errorf("step %d: unknown action %q", i+1, step.Do)
		}

		queueLen, err := st.QueueLen(ctx)
		if err != nil {
			return nil, fmt.Errorf("step %d: read queue length: %w", i+1, err)
		}
		event.QueueLen = queueLen
		result.Trace = append(result.Trace, event)
	}

	actx := &AssertionContext{
		Ctx:        ctx,
		Store:      st,
		Controller: controller,
	}
	result.Errors = append(result.Errors, EvaluateAssertions(scenario.Assertions, actx)...)
	return result, nil
}
