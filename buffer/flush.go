package buffer

import (
	"fmt"
	"time"

	"github.com/philipp01105/logcore/core"
)

// Flush drains everything currently queued through the sink and waits
// for the drain to complete. Concurrent calls coalesce: while a drain
// is in flight every caller observes that same completion instead of
// starting a second one.
func (e *Engine) Flush() error {
	e.mu.Lock()
	done := e.startFlushLocked()
	e.mu.Unlock()
	<-done
	return nil
}

// startFlushLocked returns the channel closed when the current flush
// finishes, starting the drain goroutine when the engine is idle.
func (e *Engine) startFlushLocked() chan struct{} {
	if e.flushDone != nil {
		return e.flushDone
	}
	done := make(chan struct{})
	e.flushDone = done
	go e.drain(done)
	return done
}

// drain is the flushing state machine: Idle -> Flushing -> Idle. The
// fast buffer is emptied first, then the priority queue head batch by
// batch, and the elapsed time is folded into the rolling average
// whether or not individual entries failed.
func (e *Engine) drain(done chan struct{}) {
	start := time.Now()
	for {
		e.mu.Lock()
		batch := e.takeBatchLocked()
		e.mu.Unlock()
		if len(batch) == 0 {
			break
		}
		e.deliver(batch)
	}
	e.stats.recordFlush(time.Since(start))

	e.mu.Lock()
	e.flushDone = nil
	e.mu.Unlock()
	close(done)
}

// takeBatchLocked removes the next batch, converting fast-buffer
// entries into buffer entries on their way out.
func (e *Engine) takeBatchLocked() []*bufferEntry {
	n := e.cfg.BatchSize
	if len(e.fast) > 0 {
		if n > len(e.fast) {
			n = len(e.fast)
		}
		batch := make([]*bufferEntry, 0, n)
		for _, en := range e.fast[:n] {
			e.estBytes -= entrySize(en)
			batch = append(batch, newBufferEntry(en, e.priorityFor(en.Level)))
		}
		e.fast = e.fast[:copy(e.fast, e.fast[n:])]
		return batch
	}
	batch := e.queue.drainBatch(n)
	for _, be := range batch {
		e.estBytes -= entrySize(be.entry)
	}
	return batch
}

// deliver hands one batch to the sink, preferring the batch interface
// when the sink has one. A batch failure fails every entry in it.
func (e *Engine) deliver(batch []*bufferEntry) {
	if e.batchSink != nil {
		entries := make([]*core.Entry, len(batch))
		for i, be := range batch {
			entries[i] = be.entry
		}
		if err := e.writeBatch(entries); err != nil {
			for _, be := range batch {
				e.retryOrDrop(be, err)
			}
			return
		}
		e.stats.addFlushed(uint64(len(batch)))
		for _, be := range batch {
			e.recycle(be.entry)
		}
		return
	}

	for _, be := range batch {
		if err := e.writeOne(be.entry); err != nil {
			e.retryOrDrop(be, err)
			continue
		}
		e.stats.addFlushed(1)
		e.recycle(be.entry)
	}
}

// retryOrDrop schedules a failed entry for redelivery at the queue
// head after the retry delay, or settles its fate as dropped and
// errored once the bound is spent.
func (e *Engine) retryOrDrop(be *bufferEntry, err error) {
	if be.retryCount < e.cfg.MaxRetries {
		be.retryCount++
		time.AfterFunc(e.cfg.RetryDelay, func() {
			e.requeue(be)
		})
		return
	}
	e.stats.addDropped(1)
	e.stats.addErrors(1)
	e.cfg.Fallback(fmt.Errorf("entry %d dropped after %d attempts: %w", be.id, be.retryCount+1, err))
	e.recycle(be.entry)
}

// requeue returns a retried entry to the head of the queue. Retries
// that land after Destroy are accounted as dropped instead of waited
// for, which keeps the final flush bounded.
func (e *Engine) requeue(be *bufferEntry) {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		e.stats.addDropped(1)
		e.recycle(be.entry)
		return
	}
	e.queue.pushFront(be)
	e.estBytes += entrySize(be.entry)
	e.mu.Unlock()
}
