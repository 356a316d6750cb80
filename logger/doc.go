// Package logger is the public producer API of logcore.
//
// A Logger is immutable after construction — the engine, serializer,
// level, and default fields are set once via the Builder and never
// modified, which makes it safe for concurrent use without locking on
// the read path. Each log call builds a pooled core.Entry, puts any
// arbitrary payloads into bounded form through the serialize package
// (simple values take the fast path and are passed through untouched),
// and submits the entry to the buffer engine. Level checks happen
// before any allocation.
//
// Child loggers with extra fields are created via With, which returns
// a new Logger sharing the same engine:
//
//	reqLog := log.With(logger.String("request_id", id))
//
// The package keeps a replaceable default instance built by a thin
// factory on first use (async engine over stderr, InfoLevel); the
// package-level functions delegate to it. Hosts that care about
// delivery guarantees should build their own engine and call Close,
// which destroys the engine, during shutdown.
package logger
