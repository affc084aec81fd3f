package resolve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shelfsync/internal/model"
	"github.com/roach88/shelfsync/internal/vclock"
)

func version(deviceID string, clock vclock.Clock, updatedAt int64) model.WatchlistItem {
	return model.WatchlistItem{
		ItemID:    "42",
		UserID:    "user-1",
		Title:     "Dune",
		AddedAt:   time.UnixMilli(50).UTC(),
		UpdatedAt: time.UnixMilli(updatedAt).UTC(),
		Clock:     clock,
		DeviceID:  deviceID,
	}
}

func TestResolve_CausalDominance(t *testing.T) {
	local := version("device-a", vclock.Clock{"device-a": 1}, 100)
	remote := version("device-b", vclock.Clock{"device-a": 1, "device-b": 1}, 90)

	res := Resolve(local, remote)

	// Remote strictly dominates even though its wall clock is earlier.
	assert.Equal(t, UpdateFromRemote, res.Action)
	assert.Equal(t, "device-b", res.Winner.DeviceID)
	assert.Equal(t, vclock.Clock{"device-a": 1, "device-b": 1}, res.Winner.Clock)
}

func TestResolve_CausalDominance_LocalWins(t *testing.T) {
	local := version("device-a", vclock.Clock{"device-a": 2, "device-b": 1}, 100)
	remote := version("device-b", vclock.Clock{"device-a": 1, "device-b": 1}, 200)

	res := Resolve(local, remote)

	assert.Equal(t, KeepLocal, res.Action)
	assert.Equal(t, "device-a", res.Winner.DeviceID)
}

func TestResolve_ConcurrentWallClockTiebreak(t *testing.T) {
	// Device A's record has clock {A:1}, updatedAt=100; device B independently
	// edited, producing {B:1}, updatedAt=200. No dominance, so the later wall
	// clock wins and the merged clock carries both histories.
	local := version("device-a", vclock.Clock{"device-a": 1}, 100)
	remote := version("device-b", vclock.Clock{"device-b": 1}, 200)

	res := Resolve(local, remote)

	require.Equal(t, UpdateFromRemote, res.Action)
	assert.Equal(t, "device-b", res.Winner.DeviceID)
	assert.Equal(t, vclock.Clock{"device-a": 1, "device-b": 1}, res.Winner.Clock)
}

func TestResolve_ConcurrentDeviceTiebreak(t *testing.T) {
	// Clocks concurrent, wall clocks equal: the higher device id wins,
	// regardless of which side it sits on.
	local := version("device-a", vclock.Clock{"device-a": 1}, 100)
	remote := version("device-b", vclock.Clock{"device-b": 1}, 100)

	res := Resolve(local, remote)
	assert.Equal(t, UpdateFromRemote, res.Action)
	assert.Equal(t, "device-b", res.Winner.DeviceID)

	// Swap sides: same winner.
	res = Resolve(remote, local)
	assert.Equal(t, KeepLocal, res.Action)
	assert.Equal(t, "device-b", res.Winner.DeviceID)
}

func TestResolve_Deterministic(t *testing.T) {
	local := version("device-a", vclock.Clock{"device-a": 3, "device-b": 1}, 100)
	remote := version("device-b", vclock.Clock{"device-a": 1, "device-b": 4}, 100)

	first := Resolve(local, remote)
	second := Resolve(local, remote)

	assert.Equal(t, first.Action, second.Action)
	assert.Equal(t, first.Winner, second.Winner)
}

func TestResolve_DifferentKeysKeepLocal(t *testing.T) {
	local := version("device-a", vclock.Clock{"device-a": 1}, 100)
	remote := version("device-b", vclock.Clock{"device-b": 9}, 999)
	remote.ItemID = "77"

	res := Resolve(local, remote)

	assert.Equal(t, KeepLocal, res.Action)
	assert.Equal(t, "42", res.Winner.ItemID)
	// No merge across different keys.
	assert.Equal(t, vclock.Clock{"device-a": 1}, res.Winner.Clock)
}

func TestResolve_DoesNotMutateInputs(t *testing.T) {
	local := version("device-a", vclock.Clock{"device-a": 1}, 100)
	remote := version("device-b", vclock.Clock{"device-b": 1}, 200)

	_ = Resolve(local, remote)

	assert.Equal(t, vclock.Clock{"device-a": 1}, local.Clock)
	assert.Equal(t, vclock.Clock{"device-b": 1}, remote.Clock)
}

func TestResolveAgainstAbsence_AddBeatsConcurrentDelete(t *testing.T) {
	// Local add survives a concurrent remote delete: existence beats absence.
	present := version("device-a", vclock.Clock{"device-a": 2}, 100)
	deleteClock := vclock.Clock{"device-b": 1}

	res := ResolveAgainstAbsence(present, deleteClock, true)

	require.False(t, res.Absent)
	assert.Equal(t, KeepLocal, res.Action)
	assert.Equal(t, vclock.Clock{"device-a": 2, "device-b": 1}, res.Winner.Clock)
}

func TestResolveAgainstAbsence_DominatingDeleteWins(t *testing.T) {
	// The delete saw the add ({A:1} ⊂ {A:1,B:1}), so it supersedes it.
	present := version("device-a", vclock.Clock{"device-a": 1}, 100)
	deleteClock := vclock.Clock{"device-a": 1, "device-b": 1}

	res := ResolveAgainstAbsence(present, deleteClock, true)

	assert.True(t, res.Absent)
	assert.Equal(t, UpdateFromRemote, res.Action)
}

func TestResolveAgainstAbsence_RemotePresentLocalDeleted(t *testing.T) {
	present := version("device-b", vclock.Clock{"device-b": 2}, 100)
	localDeleteClock := vclock.Clock{"device-a": 1}

	res := ResolveAgainstAbsence(present, localDeleteClock, false)

	require.False(t, res.Absent)
	assert.Equal(t, UpdateFromRemote, res.Action, "surviving remote add should be adopted")
	assert.Equal(t, vclock.Clock{"device-a": 1, "device-b": 2}, res.Winner.Clock)
}
