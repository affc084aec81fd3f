package cli

import (
	"log/slog"
	"os"

	"github.com/roach88/shelfsync/internal/config"
	"github.com/roach88/shelfsync/internal/device"
	"github.com/roach88/shelfsync/internal/store"
)

// env is the wiring every command shares: configuration, the open store and
// the installation's device identity.
type env struct {
	cfg      config.Config
	store    *store.Store
	deviceID string
}

// openEnv loads the configuration, opens the store and resolves the device
// id. Callers must close the returned env.
func openEnv(opts *RootOptions) (*env, error) {
	configureLogging(opts.Verbose)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	deviceID, err := device.LoadOrCreate(cfg.DataDir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to resolve device id", err)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	return &env{cfg: cfg, store: st, deviceID: deviceID}, nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// configureLogging sets the process-wide slog default. Logs go to stderr so
// they never corrupt JSON command output on stdout.
func configureLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
