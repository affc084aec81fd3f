// Package resolve merges concurrent versions of a watchlist record.
//
// Resolution is a pure function of the two versions: vector clocks decide
// causally ordered cases outright, and a fixed tiebreak chain decides
// concurrent ones. Both sides of a sync run the same function on the same
// inputs and reach the same winner.
package resolve

import (
	"github.com/roach88/shelfsync/internal/model"
	"github.com/roach88/shelfsync/internal/vclock"
)

// Action tells the caller what to do with the winning version.
type Action string

const (
	// KeepLocal means the local version wins; no store write is needed.
	KeepLocal Action = "keep_local"
	// UpdateFromRemote means the remote version wins and should replace the
	// local record.
	UpdateFromRemote Action = "update_from_remote"
)

// Resolution is the outcome of resolving two versions of one record.
type Resolution struct {
	// Winner is the surviving version. Its clock is always the merge of both
	// input clocks so causal history is preserved for future comparisons.
	// Absent is true instead when the winning side is a deletion.
	Winner model.WatchlistItem

	// Action directs the caller: keep the local record or adopt the remote.
	Action Action

	// Absent reports that the winning side is a deletion (no record).
	Absent bool
}

// Resolve merges a local and a remote version of the same record.
//
// Tiebreak chain for concurrent clocks, in order:
//  1. later UpdatedAt wins (last-write-wins on wall clock)
//  2. existence beats absence (an add beats a concurrent delete - a
//     deliberate bias toward not losing user intent)
//  3. higher DeviceID wins (fixed lexicographic rule so a fully tied pair
//     never depends on map iteration order)
//
// Records for different keys are not in conflict: Resolve keeps the local
// version unchanged. Callers dispatch per key.
func Resolve(local, remote model.WatchlistItem) Resolution {
	if local.Key() != remote.Key() {
		return Resolution{Winner: local.Clone(), Action: KeepLocal}
	}

	merged := vclock.Merge(local.Clock, remote.Clock)

	var winner model.WatchlistItem
	var action Action

	switch vclock.Compare(local.Clock, remote.Clock) {
	case vclock.Before:
		winner, action = remote, UpdateFromRemote
	case vclock.After:
		winner, action = local, KeepLocal
	default:
		if remoteWinsConcurrent(local, remote) {
			winner, action = remote, UpdateFromRemote
		} else {
			winner, action = local, KeepLocal
		}
	}

	winner = winner.Clone()
	winner.Clock = merged
	return Resolution{Winner: winner, Action: action}
}

// ResolveAgainstAbsence resolves a surviving local record against a remote
// deletion (or vice versa when localPresent is false). The concurrent
// existence-beats-absence rule applies when neither clock dominates.
func ResolveAgainstAbsence(present model.WatchlistItem, absentClock vclock.Clock, presentIsLocal bool) Resolution {
	merged := vclock.Merge(present.Clock, absentClock)

	survivorWins := true
	if vclock.Compare(present.Clock, absentClock) == vclock.Before {
		// The deletion causally supersedes the surviving version.
		survivorWins = false
	}

	if survivorWins {
		winner := present.Clone()
		winner.Clock = merged
		action := KeepLocal
		if !presentIsLocal {
			action = UpdateFromRemote
		}
		return Resolution{Winner: winner, Action: action}
	}

	action := UpdateFromRemote
	if !presentIsLocal {
		action = KeepLocal
	}
	return Resolution{Absent: true, Action: action}
}

// remoteWinsConcurrent applies the concurrent tiebreak chain.
func remoteWinsConcurrent(local, remote model.WatchlistItem) bool {
	if !remote.UpdatedAt.Equal(local.UpdatedAt) {
		return remote.UpdatedAt.After(local.UpdatedAt)
	}
	// Wall clocks tied: fall through to the deterministic device rule.
	return remote.DeviceID > local.DeviceID
}
