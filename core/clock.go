package core

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

// clockResolution is how often the cached time is refreshed. One
// millisecond is coarse enough to stay cheap and fine enough for
// buffer enqueue timestamps.
const clockResolution = time.Millisecond

var (
	coarseClockOnce sync.Once
	coarseNow       unsafe.Pointer // *time.Time
)

// StartCoarseClock starts the background goroutine that refreshes the
// cached time.Now value at clockResolution. It is safe to call multiple
// times; the goroutine is started exactly once and runs for the
// lifetime of the process, which is intentional because logging
// typically spans the entire application lifecycle.
func StartCoarseClock() {
	coarseClockOnce.Do(func() {
		t := time.Now()
		atomic.StorePointer(&coarseNow, unsafe.Pointer(&t))
		go func() {
			ticker := time.NewTicker(clockResolution)
			for range ticker.C {
				t := time.Now()
				atomic.StorePointer(&coarseNow, unsafe.Pointer(&t))
			}
		}()
	})
}

// CoarseNow returns the most recently cached time.Time value, falling
// back to time.Now when the coarse clock has not been started.
func CoarseNow() time.Time {
	p := atomic.LoadPointer(&coarseNow)
	if p == nil {
		return time.Now()
	}
	return *(*time.Time)(p)
}
