package testutil

import "sync"

// FixedLoadID returns the same load id every time. It satisfies
// builder.LoadIDGenerator and makes snapshots and golden output
// reproducible.
type FixedLoadID string

// Generate returns the fixed id, or "test-load-default" when empty.
func (f FixedLoadID) Generate() string {
	if f == "" {
		return "test-load-default"
	}
	return string(f)
}

// SequenceLoadID returns predetermined ids in order.
//
// Thread-safety: safe for concurrent use.
type SequenceLoadID struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewSequenceLoadID returns a generator yielding ids in order.
func NewSequenceLoadID(ids ...string) *SequenceLoadID {
	return &SequenceLoadID{ids: ids}
}

// Generate panics once every id has been handed out, so a test that
// starts more loads than expected fails loudly.
func (g *SequenceLoadID) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("SequenceLoadID: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
