package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/shelfsync/internal/device"
	"github.com/roach88/shelfsync/internal/model"
	"github.com/roach88/shelfsync/internal/store"
	"github.com/roach88/shelfsync/internal/vclock"
)

// testEnv is an on-disk installation for command tests: config file, data
// dir with a pinned device id, and a seedable database.
type testEnv struct {
	dir        string
	configPath string
	dbPath     string
}

func newTestEnv(t *testing.T, remoteURL string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	e := &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "shelfsync.yaml"),
		dbPath:     filepath.Join(dir, "shelfsync.db"),
	}

	if remoteURL == "" {
		remoteURL = "http://localhost:1"
	}
	cfg := fmt.Sprintf(`data_dir: %s
database: %s
user_id: user-1
remote:
  base_url: %s
`, dir, e.dbPath, remoteURL)
	require.NoError(t, os.WriteFile(e.configPath, []byte(cfg), 0o644))

	// Pin the device id so output is deterministic.
	require.NoError(t, os.WriteFile(filepath.Join(dir, device.FileName), []byte("device-a\n"), 0o600))
	return e
}

// seed runs fn against a freshly opened store, then closes it so the command
// under test gets its own connection.
func (e *testEnv) seed(t *testing.T, fn func(s *store.Store)) {
	t.Helper()
	s, err := store.Open(e.dbPath)
	require.NoError(t, err)
	fn(s)
	require.NoError(t, s.Close())
}

// execute runs the CLI with args and returns stdout.
func (e *testEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, "--config", e.configPath))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seedItem(t *testing.T, s *store.Store) {
	t.Helper()
	require.NoError(t, s.PutItem(context.Background(), model.WatchlistItem{
		ItemID:      "42",
		UserID:      "user-1",
		Title:       "Dune",
		ReleaseYear: 2021,
		AddedAt:     time.UnixMilli(500_000).UTC(),
		UpdatedAt:   time.UnixMilli(500_000).UTC(),
		Clock:       vclock.Clock{"device-a": 1},
		DeviceID:    "device-a",
	}))
}

func seedOp(t *testing.T, s *store.Store, id string) {
	t.Helper()
	key := model.ItemKey{UserID: "user-1", ItemID: "42"}
	require.NoError(t, s.Enqueue(context.Background(), model.SyncOperation{
		ID:        id,
		Type:      model.OpRemove,
		DeviceID:  "device-a",
		Key:       &key,
		Clock:     vclock.Clock{"device-a": 2},
		Timestamp: time.UnixMilli(600_000).UTC(),
	}))
}
