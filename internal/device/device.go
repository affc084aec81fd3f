// Package device manages the installation's persistent device identity.
//
// Every vector clock entry and every queued operation is attributed to a
// device id. The id must be stable across restarts of the same installation
// and unique across installations, so it is generated once and persisted
// next to the databases.
package device

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileName is the id file created under the data directory.
const FileName = "device-id"

// LoadOrCreate returns the installation's device id, generating and
// persisting a fresh one on first run.
func LoadOrCreate(dataDir string) (string, error) {
	path := filepath.Join(dataDir, FileName)

	raw, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(raw))
		if id == "" {
			return "", fmt.Errorf("device id file %s is empty", path)
		}
		return id, nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("read device id: %w", err)
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}

	id := uuid.Must(uuid.NewV7()).String()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return id, nil
}

// Rotate discards the persisted id and generates a new one. Existing records
// keep their old clock entries; rotation only affects attribution of future
// writes.
func Rotate(dataDir string) (string, error) {
	path := filepath.Join(dataDir, FileName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("rotate device id: %w", err)
	}
	return LoadOrCreate(dataDir)
}
