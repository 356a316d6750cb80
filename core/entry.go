package core

import (
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// Level represents the severity level of a log entry
type Level int8

const (
	// DebugLevel for detailed debugging information
	DebugLevel Level = iota
	// InfoLevel for general informational messages (default)
	InfoLevel
	// WarnLevel for warning messages
	WarnLevel
	// ErrorLevel for error messages
	ErrorLevel
	// FatalLevel for fatal messages (causes os.Exit(1))
	FatalLevel
	// PanicLevel for panic messages (causes panic)
	PanicLevel
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	case PanicLevel:
		return "PANIC"
	default:
		return "UNKNOWN"
	}
}

// Weight returns the numeric severity weight of the level. Weights are
// spaced ten apart so callers can slot custom priorities between the
// built-in levels when configuring the buffer engine.
func (l Level) Weight() int {
	return int(l) * 10
}

// Entry represents a single structured log event with all its metadata.
// An Entry is immutable by convention once it has been submitted.
type Entry struct {
	Time    time.Time
	Level   Level
	Message string
	// Data is an opaque structured payload. Producers are responsible
	// for bounding it (see the serialize package) before submission.
	Data any
	// Err is an optional error payload attached to the event.
	Err    error
	Fields []Field
	Meta   map[string]string
	Caller CallerInfo
}

// Clone returns a non-pooled deep-enough copy of the entry. Fields and
// Meta are copied; Data and Err are shared, which is safe because both
// are read-only after submission.
func (e *Entry) Clone() *Entry {
	c := &Entry{
		Time:    e.Time,
		Level:   e.Level,
		Message: e.Message,
		Data:    e.Data,
		Err:     e.Err,
		Caller:  e.Caller,
	}
	if len(e.Fields) > 0 {
		c.Fields = make([]Field, len(e.Fields))
		copy(c.Fields, e.Fields)
	}
	if len(e.Meta) > 0 {
		c.Meta = make(map[string]string, len(e.Meta))
		for k, v := range e.Meta {
			c.Meta[k] = v
		}
	}
	return c
}

// CallerInfo contains information about the caller
type CallerInfo struct {
	File      string
	ShortFile string
	Line      int
	Function  string
	Defined   bool
}

// entryPool is a pool of Entry objects to reduce allocations
var entryPool = sync.Pool{
	New: func() interface{} {
		return &Entry{
			Fields: make([]Field, 0, 8), // Pre-allocate for 8 fields
		}
	},
}

// GetEntry retrieves an Entry from the pool
func GetEntry() *Entry {
	e := entryPool.Get().(*Entry)
	e.Time = time.Now()
	e.Fields = e.Fields[:0]
	e.Caller = CallerInfo{}
	return e
}

// PutEntry returns an Entry to the pool
func PutEntry(e *Entry) {
	if e == nil {
		return
	}
	// Re-slice to zero length; GC handles reference cleanup
	e.Fields = e.Fields[:0]
	e.Message = ""
	e.Data = nil
	e.Err = nil
	e.Meta = nil
	e.Caller = CallerInfo{}
	entryPool.Put(e)
}

// GetCaller retrieves caller information
func GetCaller(skip int) CallerInfo {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return CallerInfo{}
	}

	fn := runtime.FuncForPC(pc)
	var funcName string
	if fn != nil {
		funcName = fn.Name()
	}

	return CallerInfo{
		File:      file,
		ShortFile: filepath.Base(file),
		Line:      line,
		Function:  funcName,
		Defined:   true,
	}
}
