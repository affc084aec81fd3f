package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/shelfsync/internal/model"
	"github.com/roach88/shelfsync/internal/session"
)

// ReviewOptions holds flags for the review subcommands.
type ReviewOptions struct {
	*RootOptions
	ItemID    string
	Rating    float64
	HasRating bool
	Body      string
	Up        bool
	Down      bool
}

// ReviewResult is the review command's output payload.
type ReviewResult struct {
	ReviewID string `json:"review_id"`
	Action   string `json:"action"`
	Queued   int    `json:"queued"`
}

func (r ReviewResult) String() string {
	return fmt.Sprintf("review %s %s (%d operations queued)", r.ReviewID, r.Action, r.Queued)
}

// NewReviewCommand creates the review command group.
func NewReviewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReviewOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Queue review operations for replay",
		Long: `Queue review mutations for background replay.

Reviews live on the remote side only; the local engine durably queues the
intent and replays it like any watchlist operation.`,
	}

	add := &cobra.Command{
		Use:           "add <review-id>",
		Short:         "Queue a new review",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.HasRating = cmd.Flags().Changed("rating")
			return reviewAction(opts, args[0], "add", cmd)
		},
	}
	add.Flags().StringVar(&opts.ItemID, "item", "", "item the review is about (required)")
	add.Flags().Float64Var(&opts.Rating, "rating", 0, "rating (0-10)")
	add.Flags().StringVar(&opts.Body, "body", "", "review text")
	_ = add.MarkFlagRequired("item")

	update := &cobra.Command{
		Use:           "update <review-id>",
		Short:         "Queue a review edit",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.HasRating = cmd.Flags().Changed("rating")
			return reviewAction(opts, args[0], "update", cmd)
		},
	}
	update.Flags().StringVar(&opts.ItemID, "item", "", "item the review is about (required)")
	update.Flags().Float64Var(&opts.Rating, "rating", 0, "rating (0-10)")
	update.Flags().StringVar(&opts.Body, "body", "", "review text")
	_ = update.MarkFlagRequired("item")

	del := &cobra.Command{
		Use:           "delete <review-id>",
		Short:         "Queue a review deletion",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return reviewAction(opts, args[0], "delete", cmd)
		},
	}
	del.Flags().StringVar(&opts.ItemID, "item", "", "item the review is about")

	vote := &cobra.Command{
		Use:           "vote <review-id>",
		Short:         "Queue a helpfulness vote",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Up == opts.Down {
				return WrapExitError(ExitCommandError, "exactly one of --up or --down is required", nil)
			}
			return reviewAction(opts, args[0], "vote", cmd)
		},
	}
	vote.Flags().BoolVar(&opts.Up, "up", false, "vote helpful")
	vote.Flags().BoolVar(&opts.Down, "down", false, "vote not helpful")

	cmd.AddCommand(add, update, del, vote)
	return cmd
}

func reviewAction(opts *ReviewOptions, reviewID, action string, cmd *cobra.Command) error {
	e, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	controller, err := session.New(ctx, e.store, nil, nil, e.cfg.UserID, e.deviceID)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to build session", err)
	}
	defer controller.Close()

	review := model.Review{ReviewID: reviewID, ItemID: opts.ItemID, Body: opts.Body}
	if opts.HasRating {
		rating := opts.Rating
		review.Rating = &rating
	}

	switch action {
	case "add":
		err = controller.AddReview(ctx, review)
	case "update":
		err = controller.UpdateReview(ctx, review)
	case "delete":
		err = controller.DeleteReview(ctx, review)
	case "vote":
		err = controller.VoteReview(ctx, model.Vote{ReviewID: reviewID, Up: opts.Up})
	}
	if err != nil {
		return WrapExitError(ExitFailure, "review "+action+" failed", err)
	}

	queued, err := e.store.QueueLen(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read queue length", err)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	return formatter.Success(ReviewResult{ReviewID: reviewID, Action: action, Queued: queued})
}
