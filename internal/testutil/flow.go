package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDGenerator generates correlation ids "<prefix>-1", "<prefix>-2", ...
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario with a fresh SequentialIDGenerator produces byte-identical
// event logs.
//
// Implements engine.IDGenerator.
//
// Thread-safety: Generate is safe for concurrent use.
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDGenerator creates a generator. An empty prefix uses "test".
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	if prefix == "" {
		prefix = "test"
	}
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
