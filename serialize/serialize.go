package serialize

import (
	"fmt"
	"reflect"
	"sync"
	"time"
)

// Sentinels and markers emitted in place of unserializable or
// out-of-bounds content.
const (
	// TruncatedSuffix is appended to strings cut at MaxStringLength.
	TruncatedSuffix = "...[TRUNCATED]"
	// MaxDepthSentinel replaces any container nested past MaxDepth.
	MaxDepthSentinel = "[MAX_DEPTH_EXCEEDED]"
	// CircularSentinel replaces a tree in which a traversal re-entered
	// one of its own ancestors.
	CircularSentinel = "[CIRCULAR_REFERENCE_DETECTED]"
)

// Options bounds a serialization run. The zero value gets defaults
// applied; cycle detection is on unless explicitly disabled.
type Options struct {
	// MaxDepth is the deepest container level that is descended into
	// (default 10).
	MaxDepth int
	// MaxStringLength truncates longer strings with TruncatedSuffix
	// (default 1000).
	MaxStringLength int
	// MaxArrayLength bounds slice, array, map-as-list, and set output
	// (default 100).
	MaxArrayLength int
	// MaxObjectKeys bounds struct fields and string-keyed map entries
	// (default 50).
	MaxObjectKeys int
	// IncludeUnexported also walks unexported struct fields, rendering
	// values that reflection cannot surface as scalars.
	IncludeUnexported bool
	// DisableCircularDetection turns off ancestor tracking. Only safe
	// for values known to be acyclic.
	DisableCircularDetection bool
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = 10
	}
	if o.MaxStringLength <= 0 {
		o.MaxStringLength = 1000
	}
	if o.MaxArrayLength <= 0 {
		o.MaxArrayLength = 100
	}
	if o.MaxObjectKeys <= 0 {
		o.MaxObjectKeys = 50
	}
	return o
}

// Result is the outcome of a serialization run.
type Result struct {
	// Value is the bounded, JSON-safe tree.
	Value any
	// Truncated reports whether any bound replaced or cut content.
	Truncated bool
	// CircularRefs counts cycles that were converted to sentinels.
	CircularRefs int
	// Elapsed is the wall time the run took.
	Elapsed time.Duration
	// EstimatedSize approximates the encoded byte size of Value.
	EstimatedSize int
}

// ConverterFunc turns a tagged value into its serialized form. The
// returned value is used as-is, so converters are responsible for
// keeping their output within the given bounds.
type ConverterFunc func(v any, opts Options) any

// Tagged is implemented by values that want custom serialization. The
// tag selects a converter registered on the Serializer; registered
// converters take precedence over all built-in handling.
type Tagged interface {
	TypeTag() string
}

// Serializer owns an option set and a converter registry. Serializers
// are safe for concurrent use. There is no process-wide default; hosts
// construct one (typically via New) and pass it where it is needed.
type Serializer struct {
	opts Options

	mu         sync.RWMutex
	converters map[string]ConverterFunc
}

// New creates a Serializer with the given options, filling zero values
// with defaults.
func New(opts Options) *Serializer {
	return &Serializer{
		opts:       opts.withDefaults(),
		converters: make(map[string]ConverterFunc),
	}
}

// Register installs a converter for the given type tag, replacing any
// previous converter for that tag.
func (s *Serializer) Register(tag string, fn ConverterFunc) {
	s.mu.Lock()
	s.converters[tag] = fn
	s.mu.Unlock()
}

// Unregister removes the converter for the given tag.
func (s *Serializer) Unregister(tag string) {
	s.mu.Lock()
	delete(s.converters, tag)
	s.mu.Unlock()
}

func (s *Serializer) converter(tag string) (ConverterFunc, bool) {
	s.mu.RLock()
	fn, ok := s.converters[tag]
	s.mu.RUnlock()
	return fn, ok
}

// Options returns the serializer's effective option set.
func (s *Serializer) Options() Options {
	return s.opts
}

// Serialize converts v into a bounded tree. It never panics past its
// own boundary: unexpected failures become a sentinel string in the
// result, and a detected cycle becomes CircularSentinel.
func (s *Serializer) Serialize(v any) Result {
	start := time.Now()

	if out, ok := FastPath(v, s.opts); ok {
		return Result{
			Value:         out,
			Elapsed:       time.Since(start),
			EstimatedSize: estimateScalar(out),
		}
	}

	w := &walker{opts: s.opts, ser: s}
	value := w.run(v)

	return Result{
		Value:         value,
		Truncated:     w.truncated,
		CircularRefs:  w.circular,
		Elapsed:       time.Since(start),
		EstimatedSize: w.size,
	}
}

// run executes the full traversal, converting the two internal control
// signals (cycle detection and panics) into safe output.
func (w *walker) run(v any) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprintf("[ERROR: %v]", r)
		}
	}()
	val, err := w.walk(reflect.ValueOf(v), 0)
	if err != nil {
		// Only the circular signal travels as an error; everything
		// else is handled in place.
		w.circular++
		w.truncated = true
		return CircularSentinel
	}
	return val
}

// estimateScalar approximates the encoded size of a fast-path value.
func estimateScalar(v any) int {
	switch t := v.(type) {
	case nil:
		return 4
	case string:
		return len(t) + 2
	case bool:
		return 5
	default:
		return 8
	}
}
