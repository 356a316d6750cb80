// Package buffer implements the asynchronous delivery engine that sits
// between log producers and a Sink.
//
// Submitted entries are classified first: structurally simple entries
// go to a lightweight fast buffer, everything else is tagged with an
// id, an enqueue timestamp, and a level-derived priority and inserted
// into a priority queue ordered so that the highest priority drains
// first, with stable FIFO order among equal priorities. A flush drains
// the fast buffer and then removes head batches from the queue, handing
// them to the sink one entry (or one batch, for batch-capable sinks) at
// a time. Failed entries are retried up to a bound after a delay,
// re-entering at the head of the queue; exhausted entries are counted
// as dropped and errored, never raised to the caller.
//
// Concurrent Flush calls coalesce onto the single in-flight drain.
// When the buffer reaches its hard capacity, the backpressure policy
// decides between forcing a flush, awaiting the in-flight one, or
// shedding entries below the warn-severity floor; with backpressure
// disabled the oldest low-priority entry is dropped instead. A sync
// fallback bypasses buffering entirely under memory or occupancy
// pressure so that the engine always makes forward progress.
//
// Destroy is the terminal lifecycle operation: it stops the periodic
// flush timer, performs one final bounded drain, and clears all state.
// Submitting to a destroyed engine fails with ErrDestroyed, the only
// error the engine ever surfaces to callers; every other failure is
// visible solely through the metrics snapshot.
package buffer
