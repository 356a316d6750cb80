package sink

import (
	"errors"

	"golang.org/x/time/rate"

	"github.com/philipp01105/logcore/buffer"
	"github.com/philipp01105/logcore/core"
)

// ErrRateLimited is returned for writes that exceed the configured
// rate. The buffer engine treats it like any sink failure, so limited
// entries go through the normal retry path.
var ErrRateLimited = errors.New("sink: rate limit exceeded")

// RateLimited wraps a sink with a token bucket.
type RateLimited struct {
	next    buffer.Sink
	limiter *rate.Limiter
}

// NewRateLimited allows up to r entries per second with the given
// burst through to next.
func NewRateLimited(next buffer.Sink, r rate.Limit, burst int) *RateLimited {
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(r, burst),
	}
}

// WriteEntry forwards the entry when a token is available and fails
// with ErrRateLimited otherwise.
func (s *RateLimited) WriteEntry(entry *core.Entry) error {
	if !s.limiter.Allow() {
		return ErrRateLimited
	}
	return s.next.WriteEntry(entry)
}
