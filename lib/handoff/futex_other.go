//go:build !linux

package handoff

import (
	"sync/atomic"
	"time"
)

const pollInterval = 50 * time.Microsecond

// futexWait polls *addr until it changes or d passes.
func futexWait(addr *uint32, val uint32, d time.Duration) {
	if d <= 0 || d > pollInterval {
		d = pollInterval
	}
	if atomic.LoadUint32(addr) == val {
		time.Sleep(d)
	}
}

func futexWake(addr *uint32) {}
