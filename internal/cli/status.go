package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/shelfsync/internal/model"
)

// StatusReport is the status command's output payload.
type StatusReport struct {
	UserID   string        `json:"user_id"`
	DeviceID string        `json:"device_id"`
	Items    []ItemStatus  `json:"items"`
	Queue    []QueueStatus `json:"queue"`
}

// ItemStatus is one confirmed watchlist record.
type ItemStatus struct {
	ItemID      string `json:"item_id"`
	Title       string `json:"title"`
	ReleaseYear int    `json:"release_year,omitempty"`
	AddedAt     string `json:"added_at"`
	Clock       string `json:"clock"`
}

// QueueStatus is one pending replay operation.
type QueueStatus struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	RetryCount  int    `json:"retry_count"`
	LastError   string `json:"last_error,omitempty"`
	NextRetryAt string `json:"next_retry_at,omitempty"`
}

func (r StatusReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "User:   %s\n", r.UserID)
	fmt.Fprintf(&b, "Device: %s\n", r.DeviceID)

	fmt.Fprintf(&b, "Items (%d):\n", len(r.Items))
	for _, it := range r.Items {
		year := ""
		if it.ReleaseYear != 0 {
			year = fmt.Sprintf(" (%d)", it.ReleaseYear)
		}
		fmt.Fprintf(&b, "  %s  %s%s  added=%s  clock=%s\n", it.ItemID, it.Title, year, it.AddedAt, it.Clock)
	}

	fmt.Fprintf(&b, "Queue (%d):\n", len(r.Queue))
	for _, q := range r.Queue {
		fmt.Fprintf(&b, "  %s  %s  retries=%d", q.ID, q.Type, q.RetryCount)
		if q.LastError != "" {
			fmt.Fprintf(&b, "  last_error=%q", q.LastError)
		}
		if q.NextRetryAt != "" {
			fmt.Fprintf(&b, "  next_retry_at=%s", q.NextRetryAt)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show confirmed records and pending operations",
		Long: `Show the confirmed watchlist records and the pending replay queue.

A non-empty queue means local mutations exist that the remote side has not
acknowledged yet.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(rootOpts, cmd)
		},
	}
	return cmd
}

func showStatus(opts *RootOptions, cmd *cobra.Command) error {
	e, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer e.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	items, err := e.store.GetItems(ctx, e.cfg.UserID)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read records", err)
	}
	ops, err := e.store.DequeueAll(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read queue", err)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	return formatter.Success(buildStatusReport(e.cfg.UserID, e.deviceID, items, ops))
}

func buildStatusReport(userID, deviceID string, items []model.WatchlistItem, ops []model.SyncOperation) StatusReport {
	report := StatusReport{
		UserID:   userID,
		DeviceID: deviceID,
		Items:    []ItemStatus{},
		Queue:    []QueueStatus{},
	}
	for _, it := range items {
		report.Items = append(report.Items, ItemStatus{
			ItemID:      it.ItemID,
			Title:       it.Title,
			ReleaseYear: it.ReleaseYear,
			AddedAt:     it.AddedAt.UTC().Format(time.RFC3339),
			Clock:       fmt.Sprintf("%v", it.Clock),
		})
	}
	for _, op := range ops {
		q := QueueStatus{
			ID:         op.ID,
			Type:       string(op.Type),
			RetryCount: op.RetryCount,
			LastError:  op.LastError,
		}
		if !op.NextRetryAt.IsZero() {
			q.NextRetryAt = op.NextRetryAt.UTC().Format(time.RFC3339)
		}
		report.Queue = append(report.Queue, q)
	}
	return report
}
