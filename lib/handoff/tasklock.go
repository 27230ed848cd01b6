package handoff

import (
	"sync/atomic"
	"time"

	g_error "github.com/darmis007/hoomd-tf/lib/error"
)

// TaskLock is a pair of one-shot signals, one per direction. Each signal is a
// 32-bit generation counter: signalling increments it and waiting blocks until
// it moves past the last generation the waiter saw. There must be exactly one
// simulator goroutine (Release, Await) and one engine goroutine (Start, End).
type TaskLock struct {
	start, end uint32
	exit       uint32

	startSeen, endSeen uint32
}

// NewTaskLock returns a TaskLock with both signals cleared.
func NewTaskLock() *TaskLock { return &TaskLock{} }

// Release tells the engine that the input region has been written.
func (l *TaskLock) Release() {
	atomic.AddUint32(&l.start, 1)
	futexWake(&l.start)
}

// Await blocks until the engine calls End for the step started by the last
// Release. A zero timeout waits forever. It returns g_error.ErrClosed if the
// lock has been shut down and g_error.ErrHandoffTimeout if the timeout
// expires first.
func (l *TaskLock) Await(timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		ok := waitChange(&l.end, l.endSeen, deadline, &l.exit)
		if atomic.LoadUint32(&l.exit) != 0 {
			return g_error.ErrClosed
		} else if !ok {
			return g_error.ErrHandoffTimeout
		}
		if cur := atomic.LoadUint32(&l.end); cur != l.endSeen {
			l.endSeen = cur
			return nil
		}
	}
}

// Start blocks the engine until the next Release. It returns false once Exit
// has been called.
func (l *TaskLock) Start() bool {
	for {
		if atomic.LoadUint32(&l.exit) != 0 {
			return false
		}
		waitChange(&l.start, l.startSeen, time.Time{}, &l.exit)
		if atomic.LoadUint32(&l.exit) != 0 {
			return false
		}
		if cur := atomic.LoadUint32(&l.start); cur != l.startSeen {
			l.startSeen = cur
			return true
		}
	}
}

// End tells the simulator that the output region has been written.
func (l *TaskLock) End() {
	atomic.AddUint32(&l.end, 1)
	futexWake(&l.end)
}

// Exit shuts the lock down. Waiters on either side return.
func (l *TaskLock) Exit() {
	atomic.StoreUint32(&l.exit, 1)
	atomic.AddUint32(&l.start, 1)
	atomic.AddUint32(&l.end, 1)
	futexWake(&l.start)
	futexWake(&l.end)
}

// waitChange waits until *addr != old or *exit != 0. It returns false if the
// deadline passed first. A zero deadline never passes.
func waitChange(addr *uint32, old uint32, deadline time.Time, exit *uint32) bool {
	for atomic.LoadUint32(addr) == old && atomic.LoadUint32(exit) == 0 {
		var d time.Duration
		if !deadline.IsZero() {
			if d = time.Until(deadline); d <= 0 {
				return false
			}
		}
		futexWait(addr, old, d)
	}
	return true
}
