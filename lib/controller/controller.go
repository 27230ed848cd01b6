/*package controller drives the per-step exchange between the host's particle
store and an external engine.

A step moves through the states

   Ready -> Writing -> AwaitingExternal -> Reading -> Ready

and the shared regions are reallocated, in the Reallocating state, whenever
the particle count changes. Reallocation never overlaps a step: a count change
reported while a step is in flight is deferred until that step has read its
forces back.
*/
package controller

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/darmis007/hoomd-tf/lib/box"
	"github.com/darmis007/hoomd-tf/lib/buffer"
	g_error "github.com/darmis007/hoomd-tf/lib/error"
	"github.com/darmis007/hoomd-tf/lib/handoff"
	"github.com/darmis007/hoomd-tf/lib/metrics"
	"github.com/darmis007/hoomd-tf/lib/nlist"
	"github.com/darmis007/hoomd-tf/lib/particles"
	"github.com/darmis007/hoomd-tf/lib/snapshot"
)

// State is the controller's position in the step cycle.
type State int32

const (
	Uninitialized State = iota
	Ready
	Writing
	AwaitingExternal
	Reading
	Reallocating
	// Faulted is entered after an allocation failure or a lost engine. Every
	// later Step returns the error which caused it.
	Faulted
	Closed
)

var stateNames = []string{
	"Uninitialized", "Ready", "Writing", "AwaitingExternal", "Reading",
	"Reallocating", "Faulted", "Closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Controller owns the input, output and neighbor regions and runs steps.
type Controller struct {
	// mu is held for the whole of every step and every reallocation.
	mu    sync.Mutex
	state atomic.Int32
	// pending is set by count-change notifications and cleared when a
	// reallocation starts.
	pending atomic.Bool
	fault   error

	store  particles.Store
	engine handoff.Engine
	cancel func()

	// regMu guards the region pointers so accessors can be used from the
	// engine while a step holds mu.
	regMu        sync.RWMutex
	in, out, nbr *buffer.Region

	reg   *buffer.Registry
	prec  particles.Precision
	stale snapshot.StalePolicy

	list nlist.List
	box  *box.Box
	ser  *nlist.Serializer

	log     *zap.Logger
	metrics *metrics.Metrics
	hook    func(from, to State)
}

// Option configures a Controller.
type Option func(c *Controller)

// WithPrecision sets the word width of the shared regions. The default is
// particles.Float64.
func WithPrecision(p particles.Precision) Option {
	return func(c *Controller) { c.prec = p }
}

// WithNeighbors turns on neighbor mode: every step recomputes l and
// serializes it into a third region of N*nneighs slots.
func WithNeighbors(
	l nlist.List, b *box.Box, nneighs int, rcut float64, schema nlist.Schema,
) Option {
	return func(c *Controller) {
		c.list, c.box = l, b
		c.ser = &nlist.Serializer{NNeighs: nneighs, RCut: rcut, Schema: schema}
	}
}

// WithStalePolicy chooses how unwritten output records are treated. The
// default is snapshot.AcceptStale.
func WithStalePolicy(p snapshot.StalePolicy) Option {
	return func(c *Controller) { c.stale = p }
}

// WithRegistry allocates regions from reg instead of buffer.Default.
func WithRegistry(reg *buffer.Registry) Option {
	return func(c *Controller) { c.reg = reg }
}

// WithLogger logs controller events to log instead of discarding them.
func WithLogger(log *zap.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithMetrics reports step outcomes and reallocations to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithTransitionHook registers a function which is called on every state
// change. It runs with the controller locked and must not call back into it.
func WithTransitionHook(hook func(from, to State)) Option {
	return func(c *Controller) { c.hook = hook }
}

// New allocates regions for the store's current particle count, hands them
// to the engine with OnRestart and subscribes to count changes.
func New(
	store particles.Store, engine handoff.Engine, opts ...Option,
) (*Controller, error) {
	c := &Controller{
		store: store, engine: engine, reg: buffer.Default,
		prec: particles.Float64, log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.ser != nil {
		if c.ser.NNeighs <= 0 {
			return nil, fmt.Errorf("Neighbor mode needs NNeighs > 0, got %d.",
				c.ser.NNeighs)
		}
		if c.list == nil || c.box == nil {
			return nil, fmt.Errorf("Neighbor mode needs a list and a box.")
		}
		if c.list.StorageMode() == nlist.Half &&
			c.ser.Schema != nlist.SchemaIndexed {
			c.log.Warn("half neighbor list serialized without neighbor "+
				"indices; the engine cannot apply pair forces to both ends",
				zap.Stringer("schema", c.ser.Schema))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.store.N()
	if err := c.allocate(n); err != nil {
		c.log.Error("initial allocation failed", zap.Error(err))
		return nil, err
	}
	c.metrics.Reallocated(n, c.reg.MappedBytes())

	c.cancel = store.Subscribe(c)
	c.setState(Ready)
	return c, nil
}

// State returns the current state.
func (c *Controller) State() State { return State(c.state.Load()) }

func (c *Controller) setState(s State) {
	from := State(c.state.Swap(int32(s)))
	if c.hook != nil && from != s {
		c.hook(from, s)
	}
}

// OnParticleCountChanged marks the regions for reallocation. If no step is
// running the reallocation happens immediately; otherwise the running step
// performs it after reading its forces.
func (c *Controller) OnParticleCountChanged(n int) {
	c.pending.Store(true)
	if !c.mu.TryLock() {
		return
	}
	defer c.mu.Unlock()

	if c.State() == Ready && c.pending.Load() {
		c.reallocate()
	}
}

// Step runs one full exchange with the engine for the given timestep.
func (c *Controller) Step(timestep int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.State() {
	case Closed:
		return g_error.ErrClosed
	case Faulted:
		return c.fault
	}

	err := c.step(timestep)
	if err != nil {
		c.metrics.IncSteps("error")
		c.log.Error("step failed", zap.Int64("timestep", timestep),
			zap.Error(err))
		return err
	}
	c.metrics.IncSteps("ok")

	if c.pending.Load() {
		return c.reallocate()
	}
	return nil
}

func (c *Controller) step(timestep int64) error {
	if c.pending.Load() || c.in.Cap() != c.store.N() {
		if err := c.reallocate(); err != nil {
			return err
		}
	}

	c.setState(Writing)
	t0 := time.Now()
	err := snapshot.WritePositions(c.in, c.store)
	var sErr *g_error.SizeMismatchError
	if errors.As(err, &sErr) {
		// The store changed size without telling us.
		if err = c.reallocate(); err != nil {
			return err
		}
		c.setState(Writing)
		err = snapshot.WritePositions(c.in, c.store)
	}
	if err != nil {
		c.setState(Ready)
		return fmt.Errorf("Could not write positions: %w", err)
	}

	if c.ser != nil {
		if err := c.writeNeighbors(timestep); err != nil {
			c.setState(Ready)
			return err
		}
	}
	c.metrics.ObservePhase(metrics.PhaseWrite, t0)

	n := c.in.Cap()
	if n == 0 {
		c.setState(Ready)
		return nil
	}

	if c.stale == snapshot.RejectStale {
		snapshot.Poison(c.out)
	}

	c.setState(AwaitingExternal)
	t0 = time.Now()
	if err := c.external(timestep); err != nil {
		return err
	}
	c.metrics.ObservePhase(metrics.PhaseExternal, t0)

	c.setState(Reading)
	t0 = time.Now()
	err = snapshot.ReadForces(c.out, c.store, c.stale)
	c.setState(Ready)
	if errors.As(err, &sErr) {
		c.pending.Store(true)
		return fmt.Errorf("Particle count changed while the engine was "+
			"running, so forces for step %d were discarded: %w",
			timestep, err)
	} else if err != nil {
		return fmt.Errorf("Could not read forces: %w", err)
	}
	c.metrics.ObservePhase(metrics.PhaseRead, t0)

	return nil
}

func (c *Controller) writeNeighbors(timestep int64) error {
	if err := c.list.Compute(timestep); err != nil {
		return fmt.Errorf("Could not compute neighbor list: %w", err)
	}
	err := snapshot.WriteNeighbors(
		c.nbr, c.ser, c.list, c.store.Positions(), c.box,
	)
	if err != nil {
		return fmt.Errorf("Could not write neighbors: %w", err)
	}
	return nil
}

// external hands the step to the engine. Losing the engine is fatal because
// it may still be writing to the output region.
func (c *Controller) external(timestep int64) error {
	err := c.engine.OnStepStart(timestep)
	if err == nil {
		err = c.engine.OnStepFinish(timestep)
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, g_error.ErrHandoffTimeout) ||
		errors.Is(err, g_error.ErrClosed) {
		return c.faultWith(err)
	}
	c.setState(Ready)
	return fmt.Errorf("Engine failed on step %d: %w", timestep, err)
}

// reallocate replaces every region with one sized for the current particle
// count and tells the engine about it.
func (c *Controller) reallocate() error {
	c.setState(Reallocating)
	t0 := time.Now()

	n := c.store.N()
	if err := c.allocate(n); err != nil {
		return c.faultWith(err)
	}

	c.metrics.ObservePhase(metrics.PhaseReallocate, t0)
	c.metrics.Reallocated(n, c.reg.MappedBytes())
	c.log.Info("reallocated shared regions", zap.Int("particles", n))

	c.setState(Ready)
	return nil
}

// allocate releases the current regions, maps new ones for n particles and
// calls OnRestart. On failure nothing is left allocated.
func (c *Controller) allocate(n int) error {
	c.pending.Store(false)
	c.releaseAll()

	in, err := c.reg.Allocate(n, c.prec)
	if err != nil {
		return err
	}
	out, err := c.reg.Allocate(n, c.prec)
	if err != nil {
		in.Release()
		return err
	}
	var nbr *buffer.Region
	if c.ser != nil {
		if n > math.MaxInt/c.ser.NNeighs {
			in.Release()
			out.Release()
			return &g_error.AllocationError{Records: n, Err: buffer.ErrTooLarge}
		}
		if nbr, err = c.reg.Allocate(n*c.ser.NNeighs, c.prec); err != nil {
			in.Release()
			out.Release()
			return err
		}
	}

	c.regMu.Lock()
	c.in, c.out, c.nbr = in, out, nbr
	c.regMu.Unlock()

	c.log.Debug("allocated shared regions",
		zap.Int("particles", n),
		zap.Int("kB", (in.Len()+out.Len()+nbr.Len())/1024),
		zap.Uint64("input", in.Token()), zap.Uint64("output", out.Token()),
		zap.Uint64("neighbor", nbr.Token()),
	)

	if err := c.engine.OnRestart(c.Layout()); err != nil {
		c.releaseAll()
		return fmt.Errorf("Engine could not restart: %w", err)
	}
	return nil
}

func (c *Controller) releaseAll() error {
	c.regMu.Lock()
	defer c.regMu.Unlock()

	var first error
	for _, r := range []*buffer.Region{c.in, c.out, c.nbr} {
		if err := r.Release(); err != nil && first == nil {
			first = err
		}
	}
	c.in, c.out, c.nbr = nil, nil, nil
	return first
}

func (c *Controller) faultWith(err error) error {
	c.fault = fmt.Errorf("%w: %w", g_error.ErrFaulted, err)
	c.setState(Faulted)
	c.log.Error("controller faulted", zap.Error(err))
	return c.fault
}

// Close waits for any running step, releases every region and unsubscribes
// from the store. It may be called more than once.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() == Closed {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	err := c.releaseAll()
	c.setState(Closed)
	return err
}

// Layout describes the current regions.
func (c *Controller) Layout() handoff.Layout {
	c.regMu.RLock()
	defer c.regMu.RUnlock()

	l := handoff.Layout{
		N: c.in.Cap(), Precision: c.prec,
		Input: c.in, Output: c.out, Neighbor: c.nbr,
	}
	if c.ser != nil {
		l.NNeighs, l.Schema = c.ser.NNeighs, c.ser.Schema
		l.Mode = c.list.StorageMode()
	}
	return l
}

// InputBuffer returns the live input region. It is invalidated by the next
// reallocation.
func (c *Controller) InputBuffer() *buffer.Region {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	return c.in
}

// OutputBuffer returns the live output region. It is invalidated by the next
// reallocation.
func (c *Controller) OutputBuffer() *buffer.Region {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	return c.out
}

// NeighborBuffer returns the live neighbor region, or nil outside of
// neighbor mode.
func (c *Controller) NeighborBuffer() *buffer.Region {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	return c.nbr
}

// InputArray returns a copy of the input region. It copies every record and
// is only meant for debugging and tests.
func (c *Controller) InputArray() []particles.Scalar4 {
	return c.InputBuffer().Records()
}

// OutputArray returns a copy of the output region. Like InputArray it is only
// meant for debugging and tests.
func (c *Controller) OutputArray() []particles.Scalar4 {
	return c.OutputBuffer().Records()
}

// Type assertions
var _ particles.CountObserver = &Controller{}
