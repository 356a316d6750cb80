package serialize

import "reflect"

const (
	// fastSliceMax is the longest sequence the fast path accepts.
	fastSliceMax = 10
	// fastObjectMax is the most keys or fields the fast path accepts.
	fastObjectMax = 5
)

// FastPath reports whether v is structurally simple enough to skip the
// full traversal, and returns the value to emit when it is. The full
// walk normalizes representations (integers widen to int64, structs and
// maps become map[string]any); the fast path hands the input back
// unchanged. For qualifying values the two encode to the same JSON,
// which is the equivalence sinks care about; skipping the walk only
// avoids its allocation and recursion cost.
//
// Values qualify when they are nil, a predeclared scalar, a string
// within the length bound, an empty sequence, a short flat sequence, a
// small flat string-keyed map, or a small flat struct of exported
// fields. Anything that a built-in rule or a registered converter would
// reshape is rejected.
func FastPath(v any, opts Options) (any, bool) {
	opts = opts.withDefaults()

	switch t := v.(type) {
	case nil:
		return nil, true
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return t, true
	case string:
		if len(t) <= opts.MaxStringLength {
			return t, true
		}
		return nil, false
	}

	// Tagged and error values always take the full path so converter
	// and error-node handling applies.
	if _, ok := v.(Tagged); ok {
		return nil, false
	}
	if _, ok := v.(error); ok {
		return nil, false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			// Byte-buffer views get a node shape.
			return nil, false
		}
		n := rv.Len()
		if n == 0 {
			return v, true
		}
		if n > fastSliceMax || n > opts.MaxArrayLength {
			return nil, false
		}
		for i := 0; i < n; i++ {
			if !isFastScalar(rv.Index(i), opts) {
				return nil, false
			}
		}
		return v, true
	case reflect.Map:
		kt := rv.Type().Key()
		if kt.Kind() != reflect.String || kt.PkgPath() != "" {
			return nil, false
		}
		if rv.Len() > fastObjectMax || rv.Len() > opts.MaxObjectKeys {
			return nil, false
		}
		iter := rv.MapRange()
		for iter.Next() {
			if !isFastScalar(iter.Value(), opts) {
				return nil, false
			}
		}
		return v, true
	case reflect.Struct:
		t := rv.Type()
		if t.NumField() > fastObjectMax || t.NumField() > opts.MaxObjectKeys {
			return nil, false
		}
		for i := 0; i < t.NumField(); i++ {
			if !t.Field(i).IsExported() {
				return nil, false
			}
			if !isFastScalar(rv.Field(i), opts) {
				return nil, false
			}
		}
		return v, true
	default:
		return nil, false
	}
}

// isFastScalar reports whether rv is a predeclared scalar the full
// algorithm would pass through unchanged. Defined types are rejected
// because they may carry Tagged, error, or built-in special handling.
func isFastScalar(rv reflect.Value, opts Options) bool {
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return true
		}
		rv = rv.Elem()
	}
	if rv.Type().PkgPath() != "" {
		return false
	}
	switch rv.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.String:
		return rv.Len() <= opts.MaxStringLength
	default:
		return false
	}
}
