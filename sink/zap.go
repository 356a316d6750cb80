package sink

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/philipp01105/logcore/core"
)

// Zap forwards entries to a zap.Logger, letting logcore's buffering
// engine front any zap-based output stack.
type Zap struct {
	logger *zap.Logger
}

// NewZap creates a sink writing through the given zap logger.
func NewZap(logger *zap.Logger) *Zap {
	return &Zap{logger: logger}
}

// WriteEntry maps the entry onto a zap log call.
func (z *Zap) WriteEntry(entry *core.Entry) error {
	fields := make([]zap.Field, 0, len(entry.Fields)+3)
	for _, f := range entry.Fields {
		fields = append(fields, zapField(f))
	}
	if entry.Data != nil {
		fields = append(fields, zap.Any("data", entry.Data))
	}
	if entry.Err != nil {
		fields = append(fields, zap.Error(entry.Err))
	}
	for k, v := range entry.Meta {
		fields = append(fields, zap.String(k, v))
	}
	z.logger.Log(zapLevel(entry.Level), entry.Message, fields...)
	return nil
}

// Close flushes zap's own buffers.
func (z *Zap) Close() error {
	return z.logger.Sync()
}

func zapLevel(level core.Level) zapcore.Level {
	switch level {
	case core.DebugLevel:
		return zapcore.DebugLevel
	case core.InfoLevel:
		return zapcore.InfoLevel
	case core.WarnLevel:
		return zapcore.WarnLevel
	case core.ErrorLevel:
		return zapcore.ErrorLevel
	case core.FatalLevel:
		// Mapped down so the sink never terminates the process; the
		// logger facade owns exit semantics.
		return zapcore.ErrorLevel
	case core.PanicLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func zapField(f core.Field) zap.Field {
	switch f.Type {
	case core.StringType, core.ErrorType:
		return zap.String(f.Key, f.Str)
	case core.IntType, core.Int64Type:
		return zap.Int64(f.Key, f.Int64)
	case core.Float64Type:
		return zap.Float64(f.Key, f.Float64)
	case core.BoolType:
		return zap.Bool(f.Key, f.Int64 == 1)
	case core.TimeType, core.DurationType:
		return zap.String(f.Key, f.StringValue())
	default:
		return zap.Any(f.Key, f.Any)
	}
}
