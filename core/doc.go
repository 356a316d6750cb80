// Package core defines the shared types used across the logcore library.
//
// It provides the Level type for severity ordering, the Entry type that
// represents a single structured log event, and the Field type for
// zero-allocation structured key-value pairs. An Entry additionally
// carries an opaque Data payload and an optional error; both are
// consumed read-only by the buffering engine and are expected to have
// been put into a safe, bounded form by the producer (typically via the
// serialize package) before submission.
//
// Entry objects are pooled via sync.Pool to keep the hot path
// allocation-free. Producers get an Entry with GetEntry and the owner of
// the entry's final fate returns it with PutEntry. Ownership of a pooled
// entry transfers to whoever it is handed to; see the buffer package for
// the recycling contract on the asynchronous path.
//
// The coarse clock caches time.Now in the background so that submit-path
// timestamps cost a single atomic load instead of a clock syscall.
package core
