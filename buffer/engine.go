package buffer

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/philipp01105/logcore/core"
)

// ErrDestroyed is returned by Submit after Destroy. It indicates a
// programming error in the host and is the only error the engine
// surfaces to callers.
var ErrDestroyed = errors.New("buffer: engine destroyed, submissions rejected")

// Config holds configuration for the buffering engine. Zero values are
// filled with defaults by New.
type Config struct {
	// BufferSize is the soft occupancy threshold used by the
	// sync-fallback heuristic (default 1000).
	BufferSize int
	// MaxBufferSize is the hard cap that triggers backpressure or
	// dropping (default 2*BufferSize).
	MaxBufferSize int
	// FlushInterval is the periodic flush timer period (default 1s).
	FlushInterval time.Duration
	// BatchSize is the most entries drained per sink round (default 50).
	BatchSize int
	// MaxRetries bounds per-entry redelivery attempts (default 3).
	MaxRetries int
	// RetryDelay is how long a failed entry waits before re-entering
	// the queue head (default 100ms).
	RetryDelay time.Duration
	// PriorityLevels maps levels to integer priorities. Levels absent
	// from the map use their Weight.
	PriorityLevels map[core.Level]int
	// HighPriorityThreshold is the priority at or above which a
	// submission schedules an immediate flush (default: error weight).
	HighPriorityThreshold int
	// EnableBackpressure selects await/force-flush handling at the hard
	// cap instead of dropping the oldest entry.
	EnableBackpressure bool
	// SyncFallback enables the direct-to-sink bypass under pressure.
	SyncFallback bool
	// SyncThreshold is the estimated buffered-bytes level above which
	// the bypass kicks in (default 1 MiB).
	SyncThreshold int
	// SyncMode forces every submission through the bypass.
	SyncMode bool
	// RecycleEntries returns entries to the core pool once their fate
	// is settled. Enable only when producers hand over ownership on
	// Submit and the sink does not retain entries.
	RecycleEntries bool
	// Fallback is the last-resort channel for failures the engine
	// swallows (default: one line to stderr).
	Fallback func(error)
}

func (cfg Config) withDefaults() Config {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.MaxBufferSize <= 0 {
		cfg.MaxBufferSize = 2 * cfg.BufferSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if cfg.HighPriorityThreshold == 0 {
		cfg.HighPriorityThreshold = core.ErrorLevel.Weight()
	}
	if cfg.SyncThreshold <= 0 {
		cfg.SyncThreshold = 1 << 20
	}
	if cfg.Fallback == nil {
		cfg.Fallback = func(err error) {
			fmt.Fprintln(os.Stderr, "logcore/buffer:", err)
		}
	}
	return cfg
}

// Engine buffers structured entries and delivers them to a Sink. All
// buffer state is serialized behind one mutex; the sink is invoked by
// at most one flush at a time.
type Engine struct {
	cfg       Config
	sink      Sink
	batchSink BatchSink
	warnFloor int
	stats     *stats

	mu        sync.Mutex
	queue     priorityQueue
	fast      []*core.Entry
	estBytes  int
	flushDone chan struct{} // non-nil while a drain is in flight
	destroyed bool
	died      chan struct{} // closed when Destroy has fully completed

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates an engine delivering to sink and starts its periodic
// flush timer. The caller must eventually call Destroy.
func New(sink Sink, cfg Config) *Engine {
	core.StartCoarseClock()
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:   cfg,
		sink:  sink,
		stats: &stats{},
		stop:  make(chan struct{}),
	}
	e.batchSink, _ = sink.(BatchSink)
	e.warnFloor = e.priorityFor(core.WarnLevel)
	e.wg.Add(1)
	go e.run()
	return e
}

func (e *Engine) priorityFor(level core.Level) int {
	if p, ok := e.cfg.PriorityLevels[level]; ok {
		return p
	}
	return level.Weight()
}

func (e *Engine) occupancyLocked() int {
	return e.queue.len() + len(e.fast)
}

// shouldBypassLocked is the sync-fallback predicate, evaluated before
// any buffering decision.
func (e *Engine) shouldBypassLocked() bool {
	if e.cfg.SyncMode {
		return true
	}
	if e.estBytes > e.cfg.SyncThreshold {
		return true
	}
	return e.occupancyLocked()*10 > e.cfg.BufferSize*9
}

// isFastEntry is the cheap structural check deciding whether an entry
// can skip the priority machinery: nothing to serialize, nothing
// urgent.
func (e *Engine) isFastEntry(entry *core.Entry, priority int) bool {
	return entry.Data == nil && entry.Err == nil && priority < e.cfg.HighPriorityThreshold
}

// Submit accepts one entry for delivery. It returns ErrDestroyed after
// Destroy; every other failure mode is absorbed into the metrics. With
// backpressure enabled, Submit may suspend while an in-flight flush
// completes.
func (e *Engine) Submit(entry *core.Entry) error {
	if entry == nil {
		return nil
	}

	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return ErrDestroyed
	}

	if e.cfg.SyncFallback && e.shouldBypassLocked() {
		e.mu.Unlock()
		e.syncWrite(entry)
		return nil
	}

	priority := e.priorityFor(entry.Level)

	if e.occupancyLocked() >= e.cfg.MaxBufferSize {
		if e.cfg.EnableBackpressure {
			e.stats.addBackpressure(1)
			done := e.startFlushLocked()
			e.mu.Unlock()
			<-done
			e.mu.Lock()
			if e.destroyed {
				e.mu.Unlock()
				return ErrDestroyed
			}
			if e.occupancyLocked() >= e.cfg.MaxBufferSize {
				e.shedLowPriorityLocked()
			}
		} else if dropped := e.dropOneLocked(); dropped != nil {
			e.stats.addDropped(1)
			e.recycle(dropped)
		}
	}

	if e.isFastEntry(entry, priority) {
		e.fast = append(e.fast, entry)
	} else {
		e.queue.insert(newBufferEntry(entry, priority))
	}
	e.estBytes += entrySize(entry)
	e.stats.addBuffered(1)

	if priority >= e.cfg.HighPriorityThreshold {
		// Schedule a flush without holding the caller beyond that.
		e.startFlushLocked()
	}
	e.mu.Unlock()
	return nil
}

// shedLowPriorityLocked is the backpressure last resort: drop every
// entry below the warn floor. If the buffer is saturated with entries
// at or above the floor, the oldest lowest-priority entry goes instead
// so the new submission can be admitted.
func (e *Engine) shedLowPriorityLocked() {
	var victims []*core.Entry
	for _, be := range e.queue.dropBelow(e.warnFloor) {
		e.estBytes -= entrySize(be.entry)
		victims = append(victims, be.entry)
	}
	kept := e.fast[:0]
	for _, en := range e.fast {
		if e.priorityFor(en.Level) < e.warnFloor {
			e.estBytes -= entrySize(en)
			victims = append(victims, en)
		} else {
			kept = append(kept, en)
		}
	}
	e.fast = kept
	if len(victims) == 0 {
		if dropped := e.dropOneLocked(); dropped != nil {
			victims = append(victims, dropped)
		}
	}
	e.stats.addDropped(uint64(len(victims)))
	for _, en := range victims {
		e.recycle(en)
	}
}

// dropOneLocked removes a single entry to make room, preferring the
// oldest fast-buffer entry, then the oldest lowest-priority queued one.
func (e *Engine) dropOneLocked() *core.Entry {
	if len(e.fast) > 0 {
		en := e.fast[0]
		e.fast = e.fast[:copy(e.fast, e.fast[1:])]
		e.estBytes -= entrySize(en)
		return en
	}
	if be := e.queue.dropOldestLowest(); be != nil {
		e.estBytes -= entrySize(be.entry)
		return be.entry
	}
	return nil
}

// syncWrite hands an entry straight to the sink, swallowing failures
// into the error counter and the fallback channel. This path trades
// ordering and batching for guaranteed forward progress.
func (e *Engine) syncWrite(entry *core.Entry) {
	e.stats.addSyncFallback(1)
	if err := e.writeOne(entry); err != nil {
		e.stats.addErrors(1)
		e.cfg.Fallback(fmt.Errorf("sync fallback write: %w", err))
		return
	}
	e.stats.addFlushed(1)
	e.recycle(entry)
}

// writeOne invokes the sink for a single entry, converting panics into
// errors so a misbehaving sink cannot crash the host.
func (e *Engine) writeOne(entry *core.Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return e.sink.WriteEntry(entry)
}

func (e *Engine) writeBatch(entries []*core.Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return e.batchSink.WriteBatch(entries)
}

func (e *Engine) recycle(entry *core.Entry) {
	if e.cfg.RecycleEntries {
		core.PutEntry(entry)
	}
}

// run drives the periodic flush. Failures never reach the producers;
// the drain accounts for them itself.
func (e *Engine) run() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.mu.Lock()
			if !e.destroyed && e.occupancyLocked() > 0 {
				e.startFlushLocked()
			}
			e.mu.Unlock()
		case <-e.stop:
			return
		}
	}
}

// Destroy is the terminal, idempotent lifecycle operation: it stops the
// periodic timer, performs one final bounded flush, and clears all
// buffers. Entries whose retry timers are still pending when the final
// drain completes are counted as dropped rather than waited for, which
// keeps Destroy from hanging. Metrics stay readable afterwards.
func (e *Engine) Destroy() error {
	e.mu.Lock()
	if e.destroyed {
		died := e.died
		e.mu.Unlock()
		if died != nil {
			<-died
		}
		return nil
	}
	e.destroyed = true
	e.died = make(chan struct{})
	close(e.stop)
	done := e.startFlushLocked()
	e.mu.Unlock()

	e.wg.Wait()
	<-done

	e.mu.Lock()
	leftovers := make([]*core.Entry, 0, e.occupancyLocked())
	for _, be := range e.queue.items {
		leftovers = append(leftovers, be.entry)
	}
	e.queue.clear()
	leftovers = append(leftovers, e.fast...)
	e.fast = nil
	e.estBytes = 0
	died := e.died
	e.mu.Unlock()

	for _, en := range leftovers {
		e.recycle(en)
	}
	e.stats.addDropped(uint64(len(leftovers)))
	close(died)
	return nil
}
