package buffer

import "github.com/philipp01105/logcore/core"

// Sink is the downstream collaborator that durably accepts one
// structured entry and may fail. A single engine never invokes its
// sink concurrently; entries (or batches) are written one at a time.
// When Config.RecycleEntries is set, the sink must not retain the
// entry past the WriteEntry call.
type Sink interface {
	WriteEntry(entry *core.Entry) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(entry *core.Entry) error

// WriteEntry calls f(entry).
func (f SinkFunc) WriteEntry(entry *core.Entry) error {
	return f(entry)
}

// BatchSink is an optional interface for sinks that can accept a whole
// batch in one call. The engine prefers WriteBatch when available; a
// batch failure is treated as a per-entry failure for every entry in
// the batch.
type BatchSink interface {
	Sink
	WriteBatch(entries []*core.Entry) error
}
