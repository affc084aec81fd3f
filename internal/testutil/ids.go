package testutil

import (
	"fmt"
	"sync"
)

// SeqGenerator produces "op-1", "op-2", ... in order. Unlike a fixed list it
// never exhausts, so scenarios of any length stay deterministic.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SeqGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSeqGenerator creates a generator with the given id prefix.
func NewSeqGenerator(prefix string) *SeqGenerator {
	return &SeqGenerator{prefix: prefix}
}

// Generate returns the next sequential id.
func (g *SeqGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
