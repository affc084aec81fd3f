// Package vclock implements per-device vector clocks for causal ordering
// of watchlist record versions.
//
// A Clock maps device IDs to monotonically increasing counters. Two versions
// of the same record are causally ordered when one clock dominates the other;
// otherwise they are concurrent and the conflict resolver breaks the tie.
//
// All operations are pure value operations - inputs are never mutated and
// missing keys are treated as zero.
package vclock

import "maps"

// Clock is a map of deviceID to a monotonically increasing counter.
// The zero value (nil) is a valid empty clock.
type Clock map[string]int64

// Ordering is the result of comparing two clocks.
type Ordering int

const (
	// Before means a causally precedes b (every entry <=, at least one <).
	Before Ordering = iota + 1
	// After means a causally succeeds b (symmetric case).
	After
	// Concurrent means neither clock dominates the other.
	// Equal clocks compare Concurrent: equality carries no causal order,
	// so the resolver's tiebreak chain decides.
	Concurrent
)

// String returns a human-readable name for the ordering.
func (o Ordering) String() string {
	switch o {
	case Before:
		return "before"
	case After:
		return "after"
	case Concurrent:
		return "concurrent"
	default:
		return "unknown"
	}
}

// New returns an empty clock.
func New() Clock {
	return Clock{}
}

// Clone returns a deep copy of the clock.
func (c Clock) Clone() Clock {
	out := make(Clock, len(c))
	maps.Copy(out, c)
	return out
}

// Counter returns the counter for the given device, zero if absent.
func (c Clock) Counter(deviceID string) int64 {
	return c[deviceID]
}

// Increment returns a new clock with deviceID's entry incremented by one.
// All other entries are unchanged; the input is not mutated.
func Increment(c Clock, deviceID string) Clock {
	out := c.Clone()
	out[deviceID]++
	return out
}

// Merge returns a new clock containing, for every device appearing in either
// input, the maximum of the two counters. Merge is commutative, associative
// and idempotent.
func Merge(a, b Clock) Clock {
	out := a.Clone()
	for device, counter := range b {
		if counter > out[device] {
			out[device] = counter
		}
	}
	return out
}

// Compare reports the causal relationship between a and b.
//
// Before: every entry of a is <= the corresponding entry of b and at least
// one is strictly less. After is the symmetric case. Everything else,
// including equal clocks, is Concurrent.
func Compare(a, b Clock) Ordering {
	aLess, bLess := false, false

	for device, counter := range a {
		other := b[device]
		if counter < other {
			aLess = true
		} else if counter > other {
			bLess = true
		}
	}
	for device, counter := range b {
		if _, ok := a[device]; ok {
			continue // already compared above
		}
		if counter > 0 {
			aLess = true
		}
	}

	switch {
	case aLess && !bLess:
		return Before
	case bLess && !aLess:
		return After
	default:
		return Concurrent
	}
}
