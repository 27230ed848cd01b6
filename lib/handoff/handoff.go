/*package handoff defines the contract between the step controller and the
external engine which turns positions into forces.

The controller only ever talks to an Engine. Two adapters are provided:
Inline runs the engine's computation directly inside OnStepStart, and Remote
forwards each step across a TaskLock to an engine running in its own
goroutine (or, with the lock words in shared memory, its own process). Either
way the same ordering holds: the input region is completely written before
the engine is told to start, and the output region is completely written
before OnStepFinish returns.
*/
package handoff

import (
	"sync/atomic"
	"time"

	"github.com/darmis007/hoomd-tf/lib/buffer"
	"github.com/darmis007/hoomd-tf/lib/nlist"
	"github.com/darmis007/hoomd-tf/lib/particles"
)

// Layout describes the regions the engine works on. It is only valid until
// the next call to OnRestart.
type Layout struct {
	N, NNeighs int
	Precision  particles.Precision
	Schema     nlist.Schema
	Mode       nlist.StorageMode

	// Input holds N position records, Output holds N force records, and
	// Neighbor holds N*NNeighs neighbor slots (it is nil if NNeighs == 0).
	Input, Output, Neighbor *buffer.Region
}

// Engine is the external party. OnRestart is called every time the regions
// are (re)allocated, including the first time, and engines must drop any
// reference to earlier regions when it is called. OnStepStart is called
// after the input is written and OnStepFinish blocks until the output is.
type Engine interface {
	OnRestart(l Layout) error
	OnStepStart(timestep int64) error
	OnStepFinish(timestep int64) error
}

// StepFunc computes one step: it reads l.Input (and l.Neighbor) and writes
// all N records of l.Output.
type StepFunc func(l Layout, timestep int64) error

// Inline is an Engine which runs its computation synchronously inside
// OnStepStart.
type Inline struct {
	Compute StepFunc
	// Restart is optional.
	Restart func(l Layout) error

	layout Layout
}

func (e *Inline) OnRestart(l Layout) error {
	e.layout = l
	if e.Restart != nil {
		return e.Restart(l)
	}
	return nil
}

func (e *Inline) OnStepStart(timestep int64) error {
	return e.Compute(e.layout, timestep)
}

func (e *Inline) OnStepFinish(timestep int64) error { return nil }

// Remote is an Engine which hands each step to another goroutine through a
// TaskLock. The other side runs Serve.
type Remote struct {
	lock    *TaskLock
	timeout time.Duration

	layout   atomic.Pointer[Layout]
	timestep atomic.Int64
	err      atomic.Pointer[error]
}

// NewRemote creates a Remote. A timeout of zero waits forever.
func NewRemote(lock *TaskLock, timeout time.Duration) *Remote {
	return &Remote{lock: lock, timeout: timeout}
}

func (r *Remote) OnRestart(l Layout) error {
	r.layout.Store(&l)
	return nil
}

func (r *Remote) OnStepStart(timestep int64) error {
	r.timestep.Store(timestep)
	r.lock.Release()
	return nil
}

func (r *Remote) OnStepFinish(timestep int64) error {
	if err := r.lock.Await(r.timeout); err != nil {
		return err
	}
	if err := r.err.Swap(nil); err != nil {
		return *err
	}
	return nil
}

// Serve runs fn once per step until Close is called. Errors returned by fn
// are reported to the simulator by the matching OnStepFinish and do not stop
// the loop.
func (r *Remote) Serve(fn StepFunc) {
	for r.lock.Start() {
		if l := r.layout.Load(); l != nil {
			if err := fn(*l, r.timestep.Load()); err != nil {
				r.err.Store(&err)
			}
		}
		r.lock.End()
	}
}

// Close tells Serve to return once it finishes its current step.
func (r *Remote) Close() { r.lock.Exit() }

// Type assertions
var (
	_ Engine = &Inline{}
	_ Engine = &Remote{}
)
