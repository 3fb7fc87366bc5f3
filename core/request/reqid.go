package request

import (
	"sync/atomic"
	"time"
)

// IDGenerator hands out request ids. Ids are microsecond timestamps forced to
// be strictly increasing, so they stay unique under concurrent use.
type IDGenerator struct {
	last uint64
	now  func() time.Time
}

// NewIDGenerator creates a generator backed by the wall clock.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// Next returns a fresh request id.
func (g *IDGenerator) Next() uint64 {
	for {
		last := atomic.LoadUint64(&g.last)
		next := uint64(g.now().UnixMicro())
		if next <= last {
			next = last + 1
		}
		if atomic.CompareAndSwapUint64(&g.last, last, next) {
			return next
		}
	}
}

// Floor makes every later id strictly greater than id.
func (g *IDGenerator) Floor(id uint64) {
	for {
		last := atomic.LoadUint64(&g.last)
		if id <= last {
			return
		}
		if atomic.CompareAndSwapUint64(&g.last, last, id) {
			return
		}
	}
}
