package testutil

import (
	"fmt"
	"sync"
)

// FixedRequestIDGenerator returns the same request id every time, so logs
// and golden traces are byte-identical across runs.
//
// Thread-safety: stateless and safe for concurrent use.
type FixedRequestIDGenerator struct {
	id string
}

// NewFixedRequestIDGenerator creates a fixed generator. An empty id becomes
// "test-request".
func NewFixedRequestIDGenerator(id string) *FixedRequestIDGenerator {
	if id == "" {
		id = "test-request"
	}
	return &FixedRequestIDGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedRequestIDGenerator) Generate() string {
	return g.id
}

// SequentialRequestIDGenerator returns prefix-1, prefix-2, ... and can be
// reset between scenario runs.
//
// Thread-safety: all methods are safe for concurrent use.
type SequentialRequestIDGenerator struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequentialRequestIDGenerator creates a generator whose first id is
// prefix-1.
func NewSequentialRequestIDGenerator(prefix string) *SequentialRequestIDGenerator {
	return &SequentialRequestIDGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialRequestIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Issued returns how many ids have been generated since the last Reset.
func (g *SequentialRequestIDGenerator) Issued() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset starts the sequence over.
func (g *SequentialRequestIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
