package sink

import (
	"sync"

	"github.com/philipp01105/logcore/core"
)

// Memory is a sink that retains entries in memory. It keeps clones, so
// it is safe to use with engines that recycle entries. When Limit is
// reached the oldest entry is evicted.
type Memory struct {
	mu      sync.Mutex
	entries []*core.Entry
	limit   int
	failErr error
	fails   int
}

// NewMemory creates a memory sink keeping at most limit entries; a
// non-positive limit keeps everything.
func NewMemory(limit int) *Memory {
	return &Memory{limit: limit}
}

// FailNext makes the next n writes fail with err. Used to exercise the
// engine's retry and backpressure paths.
func (m *Memory) FailNext(n int, err error) {
	m.mu.Lock()
	m.fails = n
	m.failErr = err
	m.mu.Unlock()
}

// WriteEntry stores a clone of the entry.
func (m *Memory) WriteEntry(entry *core.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fails > 0 {
		m.fails--
		return m.failErr
	}
	m.entries = append(m.entries, entry.Clone())
	if m.limit > 0 && len(m.entries) > m.limit {
		m.entries = m.entries[:copy(m.entries, m.entries[1:])]
	}
	return nil
}

// Entries returns a snapshot of the stored entries.
func (m *Memory) Entries() []*core.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*core.Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns how many entries are stored.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Reset discards all stored entries.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.entries = nil
	m.mu.Unlock()
}
