package sink

import (
	"io"

	"go.uber.org/multierr"

	"github.com/philipp01105/logcore/buffer"
	"github.com/philipp01105/logcore/core"
)

// Multi fans each entry out to multiple child sinks. Every child sees
// every entry; failures are combined rather than short-circuiting, so
// one broken destination does not starve the others.
type Multi struct {
	sinks []buffer.Sink
}

// NewMulti creates a fan-out sink over the given children.
func NewMulti(sinks ...buffer.Sink) *Multi {
	return &Multi{sinks: sinks}
}

// WriteEntry writes the entry to every child, returning the combined
// error.
func (m *Multi) WriteEntry(entry *core.Entry) error {
	var err error
	for _, s := range m.sinks {
		err = multierr.Append(err, s.WriteEntry(entry))
	}
	return err
}

// WriteBatch writes the whole batch to every child. Children with a
// batch interface get it in one call.
func (m *Multi) WriteBatch(entries []*core.Entry) error {
	var err error
	for _, s := range m.sinks {
		if bs, ok := s.(buffer.BatchSink); ok {
			err = multierr.Append(err, bs.WriteBatch(entries))
			continue
		}
		for _, entry := range entries {
			err = multierr.Append(err, s.WriteEntry(entry))
		}
	}
	return err
}

// Close closes every child that is closable, combining their errors.
func (m *Multi) Close() error {
	var err error
	for _, s := range m.sinks {
		if c, ok := s.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}
