/*package lib contains the functions needed by the hoomdtf binary: setting up a
simulation from a config file and running it. The heavy lifting is done by
lib/'s subpackages; this package just wires them together.

A run is a small NVE integrator which stands in for the simulator. It owns a
particles.System, and every step it asks a controller.Controller for forces,
which hands positions to the configured engine through the shared regions.
*/
package lib

import (
	"encoding/binary"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/darmis007/hoomd-tf/lib/box"
	"github.com/darmis007/hoomd-tf/lib/buffer"
	"github.com/darmis007/hoomd-tf/lib/config"
	"github.com/darmis007/hoomd-tf/lib/controller"
	"github.com/darmis007/hoomd-tf/lib/dump"
	"github.com/darmis007/hoomd-tf/lib/engine"
	"github.com/darmis007/hoomd-tf/lib/handoff"
	"github.com/darmis007/hoomd-tf/lib/ic"
	"github.com/darmis007/hoomd-tf/lib/metrics"
	"github.com/darmis007/hoomd-tf/lib/nlist"
	"github.com/darmis007/hoomd-tf/lib/particles"
)

// Version is the version of the software.
var Version = "0.1.0"

// Sim is a configured simulation.
type Sim struct {
	Args       *config.Args
	System     *particles.System
	Box        *box.Box
	Registry   *buffer.Registry
	Controller *controller.Controller
	Dumper     *dump.Dumper

	log    *zap.Logger
	remote *handoff.Remote
	rng    *rand.Rand
}

// LoadIC reads or generates the initial conditions named by args.
func LoadIC(args *config.Args) (*ic.Snapshot, error) {
	switch args.IC {
	case "lattice":
		return ic.Lattice(args.LatticeWidth, args.BoxWidth, args.Jitter, args.Seed)
	case "gadget2":
		var order binary.ByteOrder = binary.LittleEndian
		if args.ICOrder == "big" {
			order = binary.BigEndian
		}
		return ic.ReadGadget2(args.ICFile, order)
	case "sheet":
		return ic.ReadSheet(args.ICFile)
	}
	return nil, fmt.Errorf("Unknown IC '%s'.", args.IC)
}

// NewStepFunc returns the force engine named by args.
func NewStepFunc(args *config.Args, b *box.Box) handoff.StepFunc {
	switch args.Engine {
	case "gravity":
		g := &engine.Gravity{
			G: args.GravityG, Mass: args.GravityMass, Eps: args.GravityEps,
		}
		return g.Compute
	default:
		lj := &engine.LJ{
			Epsilon: args.LJEpsilon, Sigma: args.LJSigma, RCut: args.RCut, Box: b,
		}
		return lj.Compute
	}
}

// NewSim sets up a simulation. m may be nil.
func NewSim(args *config.Args, log *zap.Logger, m *metrics.Metrics) (*Sim, error) {
	snap, err := LoadIC(args)
	if err != nil {
		return nil, err
	}

	s := &Sim{
		Args: args, System: particles.NewSystem(0), Box: box.Cubic(snap.L),
		Registry: buffer.NewRegistry(args.MaxMappedBytes),
		log:      log, rng: rand.New(rand.NewSource(args.Seed)),
	}
	snap.Load(s.System)
	log.Info("loaded initial conditions", zap.String("ic", args.IC),
		zap.Int("particles", snap.N()), zap.Float64("box", snap.L))

	var eng handoff.Engine
	fn := NewStepFunc(args, s.Box)
	if args.EngineMode == "remote" {
		s.remote = handoff.NewRemote(handoff.NewTaskLock(), args.Timeout)
		go s.remote.Serve(fn)
		eng = s.remote
	} else {
		eng = &handoff.Inline{Compute: fn}
	}
	if args.ManifestFile != "" {
		eng = &engine.Announce{Engine: eng, Path: args.ManifestFile}
	}

	opts := []controller.Option{
		controller.WithPrecision(args.Precision),
		controller.WithStalePolicy(args.StalePolicy),
		controller.WithRegistry(s.Registry),
		controller.WithLogger(log),
		controller.WithMetrics(m),
	}
	if args.NNeighs > 0 {
		list, err := nlist.NewCellList(s.System, s.Box, args.RCut, args.Skin,
			args.StorageMode)
		if err != nil {
			s.closeRemote()
			return nil, err
		}
		opts = append(opts, controller.WithNeighbors(
			list, s.Box, args.NNeighs, args.RCut, args.Schema))
	}

	if s.Controller, err = controller.New(s.System, eng, opts...); err != nil {
		s.closeRemote()
		return nil, err
	}

	if !args.DumpSteps.Empty() {
		s.Dumper = &dump.Dumper{
			Steps: args.DumpSteps, Pattern: args.DumpFile,
			Level: args.DumpLevel, Log: log,
		}
	}

	return s, nil
}

// Run integrates the equations of motion for args.Steps steps with velocity
// Verlet, computing forces through the controller.
func (s *Sim) Run() error {
	dt := s.Args.Dt
	if err := s.step(0); err != nil {
		return err
	}

	logEvery := max(s.Args.Steps/10, 1)
	for ts := int64(0); ts < s.Args.Steps; ts++ {
		s.kick(dt / 2)
		s.drift(dt)

		if ts+1 == s.Args.ResizeStep {
			s.resize(s.Args.ResizeTo)
		}

		if err := s.step(ts + 1); err != nil {
			return err
		}
		s.kick(dt / 2)

		if (ts+1)%logEvery == 0 {
			ke, pe := s.Energy()
			s.log.Info("step", zap.Int64("timestep", ts+1),
				zap.Int("particles", s.System.N()), zap.Float64("ke", ke),
				zap.Float64("pe", pe), zap.Float64("e", ke+pe))
		}
	}
	return nil
}

func (s *Sim) step(ts int64) error {
	if err := s.Controller.Step(ts); err != nil {
		return fmt.Errorf("Step %d failed: %w", ts, err)
	}
	if _, err := s.Dumper.Dump(ts, s.Controller.Layout()); err != nil {
		return err
	}
	return nil
}

// kick updates velocities from the current forces.
func (s *Sim) kick(dt float64) {
	f, v, m := s.System.Forces(), s.System.Velocities(), s.System.Masses()
	for i := range v {
		for dim := 0; dim < 3; dim++ {
			v[i][dim] += dt * f[i][dim] / m[i]
		}
	}
}

// drift moves particles along their velocities and wraps them into the box.
func (s *Sim) drift(dt float64) {
	pos, v := s.System.Positions(), s.System.Velocities()
	x := make([][3]float64, len(pos))
	for i := range pos {
		for dim := 0; dim < 3; dim++ {
			x[i][dim] = pos[i][dim] + dt*v[i][dim]
		}
		x[i] = s.Box.Wrap(x[i])
	}
	s.System.SetPositions(x)
}

// resize changes the particle count. New particles are placed uniformly at
// random in the box, at rest.
func (s *Sim) resize(n int) {
	old := s.System.N()
	s.System.Resize(n)
	if n <= old {
		return
	}

	pos := s.System.Positions()
	x := make([][3]float64, n)
	for i := range x {
		if i < old {
			x[i] = pos[i].Vec()
			continue
		}
		var frac [3]float64
		for dim := 0; dim < 3; dim++ {
			frac[dim] = s.rng.Float64() - 0.5
		}
		x[i] = s.Box.Coordinates(frac)
	}
	s.System.SetPositions(x)
	s.log.Info("resized system", zap.Int("from", old), zap.Int("to", n))
}

// Energy returns the kinetic energy and the potential energy reported by the
// engine in the fourth word of each force record.
func (s *Sim) Energy() (ke, pe float64) {
	f, v, m := s.System.Forces(), s.System.Velocities(), s.System.Masses()
	for i := range v {
		ke += 0.5 * m[i] * (v[i][0]*v[i][0] + v[i][1]*v[i][1] + v[i][2]*v[i][2])
		pe += f[i][3]
	}
	return ke, pe
}

func (s *Sim) closeRemote() {
	if s.remote != nil {
		s.remote.Close()
	}
}

// Close releases the shared regions and stops a remote engine.
func (s *Sim) Close() error {
	err := s.Controller.Close()
	s.closeRemote()
	return err
}
