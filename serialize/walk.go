package serialize

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"time"
)

// errCircular is the internal control signal raised when a walk
// re-enters an identity that is still on the traversal path. It is
// converted to CircularSentinel at the Serialize boundary.
var errCircular = errors.New("serialize: circular reference")

// typedArrayPreview is how many leading bytes of a byte-buffer view
// are included in its node.
const typedArrayPreview = 20

type walker struct {
	opts      Options
	ser       *Serializer
	ancestors map[uintptr]struct{}
	truncated bool
	circular  int
	size      int
}

// walk serializes a single value at the given depth. The only error it
// returns is errCircular; every other failure is rendered in place.
func (w *walker) walk(v reflect.Value, depth int) (any, error) {
	if !v.IsValid() {
		w.size += 4
		return nil, nil
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			w.size += 4
			return nil, nil
		}
		return w.walk(v.Elem(), depth)
	case reflect.Pointer:
		if v.IsNil() {
			w.size += 4
			return nil, nil
		}
	}

	// Registered converters win over every built-in rule.
	if v.CanInterface() {
		iv := v.Interface()
		if tg, ok := iv.(Tagged); ok {
			if fn, found := w.ser.converter(tg.TypeTag()); found {
				return fn(iv, w.opts), nil
			}
		}

		switch t := iv.(type) {
		case time.Time:
			return w.truncString(t.Format(time.RFC3339Nano)), nil
		case time.Duration:
			return w.truncString(t.String()), nil
		case *regexp.Regexp:
			return w.truncString(t.String()), nil
		case error:
			if depth > w.opts.MaxDepth {
				w.truncated = true
				return MaxDepthSentinel, nil
			}
			return w.errorNode(t, depth), nil
		}
	}

	switch v.Kind() {
	case reflect.String:
		return w.truncString(v.String()), nil
	case reflect.Bool:
		w.size += 5
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		w.size += 8
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		w.size += 8
		return v.Uint(), nil
	case reflect.Float32, reflect.Float64:
		w.size += 8
		return v.Float(), nil
	case reflect.Complex64, reflect.Complex128:
		return w.truncString(strconv.FormatComplex(v.Complex(), 'g', -1, 128)), nil
	case reflect.Func:
		return w.funcNode(v), nil
	case reflect.Chan:
		w.size += 8
		return fmt.Sprintf("[chan %s]", v.Type().Elem()), nil
	case reflect.UnsafePointer:
		w.size += 8
		return "[unsafe.Pointer]", nil
	case reflect.Pointer:
		return w.container(depth, v.Pointer(), func() (any, error) {
			// Dereferencing does not consume a depth level; the
			// pointee's own container rule applies.
			return w.walk(v.Elem(), depth)
		})
	case reflect.Slice:
		if v.IsNil() {
			w.size += 4
			return nil, nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return w.container(depth, v.Pointer(), func() (any, error) {
				return w.typedArrayNode(v), nil
			})
		}
		return w.container(depth, v.Pointer(), func() (any, error) {
			return w.list(v, depth)
		})
	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return w.container(depth, 0, func() (any, error) {
				return w.typedArrayNode(v), nil
			})
		}
		return w.container(depth, 0, func() (any, error) {
			return w.list(v, depth)
		})
	case reflect.Map:
		if v.IsNil() {
			w.size += 4
			return nil, nil
		}
		return w.container(depth, v.Pointer(), func() (any, error) {
			switch {
			case v.Type().Key().Kind() == reflect.String:
				return w.stringMap(v, depth)
			case isEmptyStruct(v.Type().Elem()):
				return w.setNode(v, depth)
			default:
				return w.mapNode(v, depth)
			}
		})
	case reflect.Struct:
		return w.container(depth, 0, func() (any, error) {
			return w.object(v, depth)
		})
	default:
		return w.truncString(fmt.Sprintf("%v", v)), nil
	}
}

// container applies the depth bound and, for identifiable values, the
// ancestor-set discipline around fn: push the identity, descend, and
// release it on the way out no matter how the descent ends.
func (w *walker) container(depth int, id uintptr, fn func() (any, error)) (any, error) {
	if depth > w.opts.MaxDepth {
		w.truncated = true
		w.size += len(MaxDepthSentinel)
		return MaxDepthSentinel, nil
	}
	if id != 0 && !w.opts.DisableCircularDetection {
		if _, onPath := w.ancestors[id]; onPath {
			return nil, errCircular
		}
		if w.ancestors == nil {
			w.ancestors = make(map[uintptr]struct{}, 8)
		}
		w.ancestors[id] = struct{}{}
		defer delete(w.ancestors, id)
	}
	return fn()
}

// member walks a single container member, converting panics into an
// error marker for that member alone. The circular signal is not
// caught here; it must unwind to the Serialize boundary.
func (w *walker) member(v reflect.Value, depth int) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprintf("[ERROR: %v]", r)
			err = nil
		}
	}()
	return w.walk(v, depth)
}

func (w *walker) list(v reflect.Value, depth int) (any, error) {
	n := v.Len()
	limit := n
	if n > w.opts.MaxArrayLength {
		// The marker occupies the last slot so that re-serializing a
		// truncated list under the same limits is a no-op.
		limit = w.opts.MaxArrayLength - 1
	}
	out := make([]any, 0, limit+1)
	for i := 0; i < limit; i++ {
		item, err := w.member(v.Index(i), depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if n > limit {
		w.truncated = true
		marker := fmt.Sprintf("...[%d more items]", n-limit)
		w.size += len(marker)
		out = append(out, marker)
	}
	return out, nil
}

// objectKeyMarker is the key under which the truncated-keys marker is
// stored in object output.
const objectKeyMarker = "..."

func (w *walker) object(v reflect.Value, depth int) (any, error) {
	t := v.Type()
	visible := fieldCount(t, w.opts.IncludeUnexported)
	limit := visible
	if visible > w.opts.MaxObjectKeys {
		// The marker occupies the last key slot so that re-serializing
		// a truncated object under the same limits is a no-op.
		limit = w.opts.MaxObjectKeys - 1
	}
	out := make(map[string]any, limit+1)
	kept := 0
	for i := 0; i < t.NumField() && kept < limit; i++ {
		f := t.Field(i)
		if !f.IsExported() && !w.opts.IncludeUnexported {
			continue
		}
		item, err := w.member(v.Field(i), depth+1)
		if err != nil {
			return nil, err
		}
		out[f.Name] = item
		w.size += len(f.Name) + 3
		kept++
	}
	if visible > kept {
		w.truncated = true
		out[objectKeyMarker] = fmt.Sprintf("[%d more keys]", visible-kept)
	}
	return out, nil
}

// fieldCount returns how many fields of t are visible under the
// current export rules.
func fieldCount(t reflect.Type, includeUnexported bool) int {
	if includeUnexported {
		return t.NumField()
	}
	n := 0
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			n++
		}
	}
	return n
}

func (w *walker) stringMap(v reflect.Value, depth int) (any, error) {
	keys := make([]string, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		keys = append(keys, iter.Key().String())
	}
	// Sorted order keeps output deterministic across runs.
	sort.Strings(keys)

	n := len(keys)
	limit := n
	if n > w.opts.MaxObjectKeys {
		limit = w.opts.MaxObjectKeys - 1
	}
	out := make(map[string]any, limit+1)
	for _, k := range keys[:limit] {
		item, err := w.member(v.MapIndex(reflect.ValueOf(k).Convert(v.Type().Key())), depth+1)
		if err != nil {
			return nil, err
		}
		out[k] = item
		w.size += len(k) + 3
	}
	if n > limit {
		w.truncated = true
		out[objectKeyMarker] = fmt.Sprintf("[%d more keys]", n-limit)
	}
	return out, nil
}

// mapNode renders a map with non-string keys as an explicit node with
// bounded entries.
func (w *walker) mapNode(v reflect.Value, depth int) (any, error) {
	type kv struct {
		order reflect.Value
		key   string
	}
	keys := make([]kv, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k := iter.Key()
		keys = append(keys, kv{order: k, key: fmt.Sprintf("%v", k)})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].key < keys[j].key })

	n := len(keys)
	limit := n
	truncatedHere := false
	if n > w.opts.MaxArrayLength {
		limit = w.opts.MaxArrayLength
		truncatedHere = true
		w.truncated = true
	}
	entries := make([]any, 0, limit)
	for _, k := range keys[:limit] {
		key, err := w.member(k.order, depth+1)
		if err != nil {
			return nil, err
		}
		val, err := w.member(v.MapIndex(k.order), depth+1)
		if err != nil {
			return nil, err
		}
		entries = append(entries, []any{key, val})
	}
	return map[string]any{
		"type":      "map",
		"size":      n,
		"entries":   entries,
		"truncated": truncatedHere,
	}, nil
}

// setNode renders map[T]struct{} values, which Go uses as sets.
func (w *walker) setNode(v reflect.Value, depth int) (any, error) {
	type kv struct {
		order reflect.Value
		key   string
	}
	keys := make([]kv, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k := iter.Key()
		keys = append(keys, kv{order: k, key: fmt.Sprintf("%v", k)})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].key < keys[j].key })

	n := len(keys)
	limit := n
	truncatedHere := false
	if n > w.opts.MaxArrayLength {
		limit = w.opts.MaxArrayLength
		truncatedHere = true
		w.truncated = true
	}
	values := make([]any, 0, limit)
	for _, k := range keys[:limit] {
		val, err := w.member(k.order, depth+1)
		if err != nil {
			return nil, err
		}
		values = append(values, val)
	}
	return map[string]any{
		"type":      "set",
		"size":      n,
		"values":    values,
		"truncated": truncatedHere,
	}, nil
}

// typedArrayNode renders byte-buffer views with a bounded preview.
func (w *walker) typedArrayNode(v reflect.Value) any {
	n := v.Len()
	limit := n
	if n > typedArrayPreview {
		limit = typedArrayPreview
		w.truncated = true
	}
	values := make([]any, 0, limit)
	for i := 0; i < limit; i++ {
		values = append(values, v.Index(i).Uint())
	}
	w.size += limit * 4
	return map[string]any{
		"type":      "typedarray",
		"elem":      "uint8",
		"length":    n,
		"values":    values,
		"truncated": n > limit,
	}
}

func (w *walker) funcNode(v reflect.Value) any {
	if v.IsNil() {
		w.size += 4
		return nil
	}
	name := ""
	if fn := runtime.FuncForPC(v.Pointer()); fn != nil {
		name = fn.Name()
	}
	w.size += len(name) + 16
	return map[string]any{
		"type":  "function",
		"name":  name,
		"arity": v.Type().NumIn(),
	}
}

// errorNode renders an error and its cause chain. Depth bounds the
// chain so self-unwrapping errors cannot loop.
func (w *walker) errorNode(err error, depth int) any {
	if depth > w.opts.MaxDepth {
		w.truncated = true
		return MaxDepthSentinel
	}
	node := map[string]any{
		"type":    "error",
		"name":    fmt.Sprintf("%T", err),
		"message": w.truncString(err.Error()),
	}
	switch cause := err.(type) {
	case interface{ Unwrap() []error }:
		wrapped := cause.Unwrap()
		limit := len(wrapped)
		if limit > w.opts.MaxArrayLength {
			limit = w.opts.MaxArrayLength
			w.truncated = true
		}
		causes := make([]any, 0, limit)
		for _, c := range wrapped[:limit] {
			causes = append(causes, w.errorNode(c, depth+1))
		}
		if len(causes) > 0 {
			node["cause"] = causes
		}
	case interface{ Unwrap() error }:
		if c := cause.Unwrap(); c != nil {
			node["cause"] = w.errorNode(c, depth+1)
		}
	}
	return node
}

func (w *walker) truncString(s string) string {
	if len(s) > w.opts.MaxStringLength {
		w.truncated = true
		s = s[:w.opts.MaxStringLength] + TruncatedSuffix
	}
	w.size += len(s) + 2
	return s
}

// isEmptyStruct reports whether t is struct{}, the conventional element
// type for Go sets.
func isEmptyStruct(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t.NumField() == 0
}
