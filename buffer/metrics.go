package buffer

import (
	"sync"
	"sync/atomic"
	"time"
)

// stats tracks engine counters. Counts are atomics in the style of the
// handler statistics elsewhere in this library; the rolling flush-time
// average needs a read-modify-write and takes a small mutex instead.
type stats struct {
	buffered     uint64
	flushed      uint64
	dropped      uint64
	flushes      uint64
	backpressure uint64
	syncFallback uint64
	errs         uint64

	mu       sync.Mutex
	avgFlush time.Duration
}

func (s *stats) addBuffered(n uint64)     { atomic.AddUint64(&s.buffered, n) }
func (s *stats) addFlushed(n uint64)      { atomic.AddUint64(&s.flushed, n) }
func (s *stats) addDropped(n uint64)      { atomic.AddUint64(&s.dropped, n) }
func (s *stats) addBackpressure(n uint64) { atomic.AddUint64(&s.backpressure, n) }
func (s *stats) addSyncFallback(n uint64) { atomic.AddUint64(&s.syncFallback, n) }
func (s *stats) addErrors(n uint64)       { atomic.AddUint64(&s.errs, n) }

// recordFlush folds one flush duration into the rolling average:
// newAvg = (oldAvg*(n-1) + elapsed) / n.
func (s *stats) recordFlush(elapsed time.Duration) {
	n := atomic.AddUint64(&s.flushes, 1)
	s.mu.Lock()
	s.avgFlush = time.Duration((int64(s.avgFlush)*int64(n-1) + int64(elapsed)) / int64(n))
	s.mu.Unlock()
}

func (s *stats) averageFlush() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.avgFlush
}

func (s *stats) reset() {
	atomic.StoreUint64(&s.buffered, 0)
	atomic.StoreUint64(&s.flushed, 0)
	atomic.StoreUint64(&s.dropped, 0)
	atomic.StoreUint64(&s.flushes, 0)
	atomic.StoreUint64(&s.backpressure, 0)
	atomic.StoreUint64(&s.syncFallback, 0)
	atomic.StoreUint64(&s.errs, 0)
	s.mu.Lock()
	s.avgFlush = 0
	s.mu.Unlock()
}

// Snapshot is a point-in-time view of the engine's metrics. Snapshots
// stay readable after Destroy.
type Snapshot struct {
	// EntriesBuffered counts entries accepted into either buffer.
	EntriesBuffered uint64
	// EntriesFlushed counts entries successfully written to the sink,
	// including sync-fallback writes.
	EntriesFlushed uint64
	// EntriesDropped counts entries shed by capacity management or
	// abandoned after retry exhaustion.
	EntriesDropped uint64
	// FlushCount counts completed flush cycles.
	FlushCount uint64
	// AverageFlushTime is the rolling mean duration of a flush cycle.
	AverageFlushTime time.Duration
	// BufferUtilization is current occupancy over the hard capacity,
	// in [0, 1].
	BufferUtilization float64
	// BackpressureEvents counts submissions that hit the hard cap with
	// backpressure enabled.
	BackpressureEvents uint64
	// SyncFallbackEvents counts entries that bypassed buffering.
	SyncFallbackEvents uint64
	// ErrorCount counts sink failures that exhausted their retries and
	// swallowed sync-path failures.
	ErrorCount uint64
}

// Metrics returns a snapshot of the engine's counters.
func (e *Engine) Metrics() Snapshot {
	e.mu.Lock()
	occupancy := e.occupancyLocked()
	e.mu.Unlock()

	s := e.stats
	return Snapshot{
		EntriesBuffered:    atomic.LoadUint64(&s.buffered),
		EntriesFlushed:     atomic.LoadUint64(&s.flushed),
		EntriesDropped:     atomic.LoadUint64(&s.dropped),
		FlushCount:         atomic.LoadUint64(&s.flushes),
		AverageFlushTime:   s.averageFlush(),
		BufferUtilization:  float64(occupancy) / float64(e.cfg.MaxBufferSize),
		BackpressureEvents: atomic.LoadUint64(&s.backpressure),
		SyncFallbackEvents: atomic.LoadUint64(&s.syncFallback),
		ErrorCount:         atomic.LoadUint64(&s.errs),
	}
}

// ResetMetrics zeroes all counters and the rolling average.
func (e *Engine) ResetMetrics() {
	e.stats.reset()
}
