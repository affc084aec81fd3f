package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/shelfsync/internal/connectivity"
	"github.com/roach88/shelfsync/internal/remote"
	"github.com/roach88/shelfsync/internal/replay"
)

// DrainResult is the drain command's output payload.
type DrainResult struct {
	Attempted    int `json:"attempted"`
	Succeeded    int `json:"succeeded"`
	Failed       int `json:"failed"`
	DeadLettered int `json:"dead_lettered"`
	Skipped      int `json:"skipped"`
	Remaining    int `json:"remaining"`
}

func (r DrainResult) String() string {
	return fmt.Sprintf("attempted=%d succeeded=%d failed=%d dead_lettered=%d skipped=%d remaining=%d",
		r.Attempted, r.Succeeded, r.Failed, r.DeadLettered, r.Skipped, r.Remaining)
}

// NewDrainCommand creates the drain command.
func NewDrainCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Run one replay cycle and exit",
		Long: `Run a single drain cycle over the operation queue.

Each pending operation is pushed to the remote sync endpoint once; failures
are rescheduled with backoff and operations past the retry budget are
dropped. Useful for cron-style replay where no long-lived agent runs.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return drainOnce(rootOpts, cmd)
		},
	}
	return cmd
}

func drainOnce(opts *RootOptions, cmd *cobra.Command) error {
	e, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer e.close()

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	client := remote.NewHTTPClient(e.cfg.Remote.BaseURL, remote.WithTimeout(e.cfg.Timeout()))
	agent := replay.New(e.store, client, connectivity.NewMonitor(true), nil)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	stats, err := agent.Drain(ctx)
	if err != nil {
		_ = formatter.Error(ErrCodeDrain, "drain cycle failed", err.Error())
		return WrapExitError(ExitFailure, "drain cycle failed", err)
	}

	remaining, err := e.store.QueueLen(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read queue length", err)
	}

	return formatter.Success(DrainResult{
		Attempted:    stats.Attempted,
		Succeeded:    stats.Succeeded,
		Failed:       stats.Failed,
		DeadLettered: stats.DeadLettered,
		Skipped:      stats.Skipped,
		Remaining:    remaining,
	})
}
