package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreate_StableAcrossCalls(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrCreate(dir)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := LoadOrCreate(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadOrCreate_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	id, err := LoadOrCreate(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	raw, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, id+"\n", string(raw))
}

func TestLoadOrCreate_EmptyFileRejected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("  \n"), 0o600))

	_, err := LoadOrCreate(dir)
	assert.Error(t, err)
}

func TestRotate_ChangesID(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrCreate(dir)
	require.NoError(t, err)

	rotated, err := Rotate(dir)
	require.NoError(t, err)
	assert.NotEqual(t, first, rotated)

	reloaded, err := LoadOrCreate(dir)
	require.NoError(t, err)
	assert.Equal(t, rotated, reloaded)
}
