package buffer

import (
	"sync/atomic"
	"time"

	"github.com/philipp01105/logcore/core"
)

// idSeq is the process-wide monotonic component of entry ids.
var idSeq uint64

// nextID combines wall-clock milliseconds with a monotonic sequence so
// ids sort roughly by time and never collide within a process.
func nextID() uint64 {
	seq := atomic.AddUint64(&idSeq, 1)
	return uint64(time.Now().UnixMilli())<<20 | (seq & (1<<20 - 1))
}

// bufferEntry wraps a core.Entry while it is owned by the priority
// queue. Ownership transfers to the flush coordinator for the duration
// of a sink call; on a retryable failure the entry returns to the head
// of the queue.
type bufferEntry struct {
	entry      *core.Entry
	id         uint64
	enqueuedAt time.Time
	priority   int
	retryCount int
}

func newBufferEntry(entry *core.Entry, priority int) *bufferEntry {
	return &bufferEntry{
		entry:      entry,
		id:         nextID(),
		enqueuedAt: core.CoarseNow(),
		priority:   priority,
	}
}

// entrySize approximates the retained bytes of a buffered entry for
// the sync-fallback memory heuristic.
func entrySize(e *core.Entry) int {
	size := 96 + len(e.Message)
	for _, f := range e.Fields {
		size += len(f.Key) + len(f.Str) + 24
	}
	for k, v := range e.Meta {
		size += len(k) + len(v) + 16
	}
	if e.Data != nil {
		size += 128
	}
	if e.Err != nil {
		size += 64
	}
	return size
}
