// Package sink provides ready-made implementations of the buffer.Sink
// contract.
//
//   - Memory keeps entries in a bounded slice for tests and
//     inspection, with optional failure injection.
//   - Zap forwards entries to a zap.Logger.
//   - Multi fans one entry out to several child sinks, aggregating
//     their errors.
//   - RateLimited wraps a sink with a token-bucket limit; over-limit
//     writes fail so the engine's retry machinery applies.
//
// None of these sinks are safe for concurrent WriteEntry calls on
// their own; the buffer engine serializes sink invocation, which is
// the contract they are written against.
package sink
