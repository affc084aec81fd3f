package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/shelfsync/internal/bus"
	"github.com/roach88/shelfsync/internal/connectivity"
	"github.com/roach88/shelfsync/internal/remote"
	"github.com/roach88/shelfsync/internal/replay"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the replay agent",
		Long: `Start the background replay agent.

The agent drains the durable operation queue against the remote sync
endpoint: on startup, on a periodic interval, and whenever connectivity
returns. It runs until interrupted.

Example:
  shelfsync run --config ./shelfsync.yaml
  shelfsync run --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(rootOpts, cmd)
		},
	}
	return cmd
}

func runAgent(opts *RootOptions, cmd *cobra.Command) error {
	e, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer e.close()

	client := remote.NewHTTPClient(e.cfg.Remote.BaseURL, remote.WithTimeout(e.cfg.Timeout()))
	monitor := connectivity.NewMonitor(true)
	agent := replay.New(e.store, client, monitor, bus.New(),
		replay.WithInterval(e.cfg.Interval()))

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("agent starting", "db", e.cfg.Database, "remote", e.cfg.Remote.BaseURL, "device_id", e.deviceID)
	fmt.Fprintln(cmd.OutOrStdout(), "Replay agent started. Press Ctrl-C to stop.")

	if err := agent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "agent error", err)
	}

	slog.Info("agent stopped gracefully")
	return nil
}
