package logger

import (
	"fmt"
	"os"

	"github.com/philipp01105/logcore/buffer"
	"github.com/philipp01105/logcore/core"
	"github.com/philipp01105/logcore/serialize"
)

// osExit is a variable to allow overriding os.Exit in tests
var osExit = os.Exit

// Logger is the main logging interface (immutable)
type Logger struct {
	engine        *buffer.Engine
	ser           *serialize.Serializer
	level         core.Level
	fields        []core.Field
	includeCaller bool
	callerSkip    int
}

// Builder provides a fluent API for building Logger instances
type Builder struct {
	engine        *buffer.Engine
	ser           *serialize.Serializer
	level         core.Level
	fields        []core.Field
	includeCaller bool
	callerSkip    int
}

// NewBuilder creates a new logger builder
func NewBuilder() *Builder {
	return &Builder{
		level:      core.InfoLevel, // Default level
		callerSkip: 3,              // Default skip for getCaller
	}
}

// WithEngine sets the buffering engine entries are submitted to
func (b *Builder) WithEngine(e *buffer.Engine) *Builder {
	b.engine = e
	return b
}

// WithSerializer sets the serializer used to bound arbitrary payloads
func (b *Builder) WithSerializer(s *serialize.Serializer) *Builder {
	b.ser = s
	return b
}

// WithLevel sets the log level
func (b *Builder) WithLevel(level core.Level) *Builder {
	b.level = level
	return b
}

// WithFields adds default fields to all log entries
func (b *Builder) WithFields(fields ...core.Field) *Builder {
	b.fields = append(b.fields, fields...)
	return b
}

// WithCaller enables caller information
func (b *Builder) WithCaller(enabled bool) *Builder {
	b.includeCaller = enabled
	return b
}

// Build creates the Logger instance. A serializer is constructed with
// default bounds when none was supplied.
func (b *Builder) Build() *Logger {
	ser := b.ser
	if ser == nil {
		ser = serialize.New(serialize.Options{})
	}
	return &Logger{
		engine:        b.engine,
		ser:           ser,
		level:         b.level,
		fields:        b.fields,
		includeCaller: b.includeCaller,
		callerSkip:    b.callerSkip,
	}
}

// With creates a new Logger with additional fields (immutable operation)
func (l *Logger) With(fields ...core.Field) *Logger {
	newFields := make([]core.Field, len(l.fields)+len(fields))
	copy(newFields, l.fields)
	copy(newFields[len(l.fields):], fields)

	return &Logger{
		engine:        l.engine,
		ser:           l.ser,
		level:         l.level,
		fields:        newFields,
		includeCaller: l.includeCaller,
		callerSkip:    l.callerSkip,
	}
}

// Serializer returns the serializer this logger bounds payloads with,
// so hosts can register custom converters on it.
func (l *Logger) Serializer() *serialize.Serializer {
	return l.ser
}

// Log logs a message at the specified level
func (l *Logger) Log(level core.Level, msg string, fields ...core.Field) {
	// Level check optimization - exit early BEFORE any allocations
	if level < l.level {
		return
	}

	l.log(level, msg, fields)
}

// log is the internal logging method that takes a pre-allocated slice
func (l *Logger) log(level core.Level, msg string, fields []core.Field) {
	// Engine check - exit if no engine (avoid any work)
	if l.engine == nil {
		return
	}

	// Get entry from pool AFTER level check
	entry := core.GetEntry()
	entry.Time = core.CoarseNow()
	entry.Level = level
	entry.Message = msg

	// Add logger's default fields
	for _, f := range l.fields {
		entry.Fields = append(entry.Fields, l.boundField(f))
	}

	// Add provided fields
	for _, f := range fields {
		entry.Fields = append(entry.Fields, l.boundField(f))
	}

	if l.includeCaller {
		entry.Caller = core.GetCaller(l.callerSkip)
	}

	if err := l.engine.Submit(entry); err != nil {
		// Rejected entries stay owned by the logger.
		core.PutEntry(entry)
	}
}

// boundField puts arbitrary payloads into a bounded, sink-safe form.
// Simple values qualify for the fast path and pass through untouched.
func (l *Logger) boundField(f core.Field) core.Field {
	if f.Type != core.AnyType || f.Any == nil {
		return f
	}
	if _, ok := serialize.FastPath(f.Any, l.ser.Options()); ok {
		return f
	}
	f.Any = l.ser.Serialize(f.Any).Value
	return f
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...core.Field) {
	if core.DebugLevel < l.level {
		return
	}
	l.log(core.DebugLevel, msg, fields)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...core.Field) {
	if core.InfoLevel < l.level {
		return
	}
	l.log(core.InfoLevel, msg, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...core.Field) {
	if core.WarnLevel < l.level {
		return
	}
	l.log(core.WarnLevel, msg, fields)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...core.Field) {
	if core.ErrorLevel < l.level {
		return
	}
	l.log(core.ErrorLevel, msg, fields)
}

// Fatal logs a fatal message, drains the engine, and exits the program
// with os.Exit(1)
func (l *Logger) Fatal(msg string, fields ...core.Field) {
	l.log(core.FatalLevel, msg, fields)
	l.drain()
	osExit(1)
}

// Panic logs a panic message, drains the engine, and panics
func (l *Logger) Panic(msg string, fields ...core.Field) {
	l.log(core.PanicLevel, msg, fields)
	l.drain()
	panic(msg)
}

// Debugf logs a debug message with formatting
func (l *Logger) Debugf(format string, args ...interface{}) {
	if core.DebugLevel < l.level {
		return
	}
	l.log(core.DebugLevel, fmt.Sprintf(format, args...), nil)
}

// Infof logs an info message with formatting
func (l *Logger) Infof(format string, args ...interface{}) {
	if core.InfoLevel < l.level {
		return
	}
	l.log(core.InfoLevel, fmt.Sprintf(format, args...), nil)
}

// Warnf logs a warning message with formatting
func (l *Logger) Warnf(format string, args ...interface{}) {
	if core.WarnLevel < l.level {
		return
	}
	l.log(core.WarnLevel, fmt.Sprintf(format, args...), nil)
}

// Errorf logs an error message with formatting
func (l *Logger) Errorf(format string, args ...interface{}) {
	if core.ErrorLevel < l.level {
		return
	}
	l.log(core.ErrorLevel, fmt.Sprintf(format, args...), nil)
}

// Fatalf logs a fatal message with formatting and exits the program
// with os.Exit(1)
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.log(core.FatalLevel, fmt.Sprintf(format, args...), nil)
	l.drain()
	osExit(1)
}

// Panicf logs a panic message with formatting and panics
func (l *Logger) Panicf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.log(core.PanicLevel, msg, nil)
	l.drain()
	panic(msg)
}

func (l *Logger) drain() {
	if l.engine != nil {
		_ = l.engine.Flush()
	}
}

// Close destroys the logger's engine after a final drain
func (l *Logger) Close() error {
	if l.engine != nil {
		return l.engine.Destroy()
	}
	return nil
}
