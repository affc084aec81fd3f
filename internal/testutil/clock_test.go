package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock(t *testing.T) {
	start := time.UnixMilli(1_000_000).UTC()
	c := NewManualClock(start)

	assert.Equal(t, start, c.Now())
	assert.Equal(t, start, c.Now(), "clock only moves when told to")

	c.Advance(2 * time.Second)
	assert.Equal(t, start.Add(2*time.Second), c.Now())

	jump := time.UnixMilli(9_000_000).UTC()
	c.Set(jump)
	assert.Equal(t, jump, c.Now())
}

func TestSeqGenerator(t *testing.T) {
	g := NewSeqGenerator("op")
	assert.Equal(t, "op-1", g.Generate())
	assert.Equal(t, "op-2", g.Generate())
	assert.Equal(t, "op-3", g.Generate())
}
