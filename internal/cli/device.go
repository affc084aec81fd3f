package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/shelfsync/internal/config"
	"github.com/roach88/shelfsync/internal/device"
)

// DeviceResult is the device command's output payload.
type DeviceResult struct {
	DeviceID string `json:"device_id"`
	Rotated  bool   `json:"rotated"`
}

func (r DeviceResult) String() string {
	if r.Rotated {
		return fmt.Sprintf("rotated device id: %s", r.DeviceID)
	}
	return r.DeviceID
}

// NewDeviceCommand creates the device command.
func NewDeviceCommand(rootOpts *RootOptions) *cobra.Command {
	var rotate bool

	cmd := &cobra.Command{
		Use:   "device",
		Short: "Show or rotate the installation's device id",
		Long: `Show the persisted device id used to attribute vector clock entries
and queued operations. --rotate generates a fresh id; existing records keep
their old clock entries.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogging(rootOpts.Verbose)

			cfg, err := config.Load(rootOpts.Config)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}

			var id string
			if rotate {
				id, err = device.Rotate(cfg.DataDir)
			} else {
				id, err = device.LoadOrCreate(cfg.DataDir)
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to resolve device id", err)
			}

			formatter := &OutputFormatter{
				Format:    rootOpts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   rootOpts.Verbose,
			}
			return formatter.Success(DeviceResult{DeviceID: id, Rotated: rotate})
		},
	}

	cmd.Flags().BoolVar(&rotate, "rotate", false, "generate a fresh device id")
	return cmd
}
