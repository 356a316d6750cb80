// Package serialize converts arbitrary Go values into bounded,
// JSON-safe trees that are always safe to hand to a log sink.
//
// The engine walks a value recursively and enforces four bounds: a
// maximum depth, a maximum string length, a maximum element count for
// sequences, and a maximum key count for objects. Anything beyond a
// bound is replaced by an explicit sentinel or marker rather than being
// silently dropped. Cycle detection tracks the identities of the
// containers on the current traversal path only; an identity is pushed
// before descending and released on the way out even when traversal
// fails partway, so the set can never leak stale ancestors.
//
// Serialize never lets a failure escape its boundary. Panics from
// custom converters or reflection become "[ERROR: ...]" strings for the
// member that failed; a detected cycle surfaces as the
// "[CIRCULAR_REFERENCE_DETECTED]" sentinel at the top of the result and
// is counted in Result.CircularRefs.
//
// Values can opt into custom handling by implementing Tagged and
// registering a ConverterFunc for their tag. Tag dispatch is explicit;
// the engine never inspects constructor or type names to pick a
// converter.
//
// A fast path skips traversal entirely for values that cannot need
// bounding: nil, scalars, empty or small flat sequences, and small flat
// objects. The fast path is purely a latency optimization; qualifying
// values serialize to themselves under the full algorithm too.
package serialize
