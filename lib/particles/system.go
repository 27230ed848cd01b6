package particles

/* system.go contains System, a simple in-memory particle store. */

import (
	"sync"
)

// System is a host-side particle store with positions, velocities, forces and
// masses. Its methods are safe to call from multiple goroutines, but the
// slices it returns are not copies: they are only valid until the next
// Resize.
type System struct {
	mu    sync.Mutex
	pos   []Scalar4
	vel   [][3]float64
	force []Scalar4
	mass  []float64

	observers map[int]CountObserver
	nextObs   int
}

// NewSystem creates a System with n particles at the origin, all of type 0
// and unit mass.
func NewSystem(n int) *System {
	s := &System{observers: map[int]CountObserver{}}
	s.resize(n)
	return s
}

// N returns the number of particles.
func (s *System) N() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pos)
}

func (s *System) Positions() []Scalar4 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *System) Forces() []Scalar4 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.force
}

// Velocities returns the velocity array.
func (s *System) Velocities() [][3]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vel
}

// Masses returns the mass array.
func (s *System) Masses() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mass
}

// SetPositions overwrites the coordinates of the first len(x) particles. The
// types are left alone.
func (s *System) SetPositions(x [][3]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range x {
		if i >= len(s.pos) {
			break
		}
		s.pos[i][0], s.pos[i][1], s.pos[i][2] = x[i][0], x[i][1], x[i][2]
	}
}

// SetType sets the type tag of particle i.
func (s *System) SetType(i int, typ uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos[i][3] = TagAsScalar(typ)
}

// Resize changes the number of particles to n. Existing particles keep their
// data; new particles are placed at the origin with type 0 and unit mass.
// Observers are notified after the store has been resized, and only if the
// count actually changed.
func (s *System) Resize(n int) {
	s.mu.Lock()
	changed := n != len(s.pos)
	s.resize(n)
	obs := make([]CountObserver, 0, len(s.observers))
	for i := 0; i < s.nextObs; i++ {
		if o, ok := s.observers[i]; ok {
			obs = append(obs, o)
		}
	}
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, o := range obs {
		o.OnParticleCountChanged(n)
	}
}

func (s *System) resize(n int) {
	m := len(s.pos)
	if m > n {
		s.pos, s.vel = s.pos[:n], s.vel[:n]
		s.force, s.mass = s.force[:n], s.mass[:n]
		return
	}

	s.pos = append(s.pos, make([]Scalar4, n-m)...)
	s.vel = append(s.vel, make([][3]float64, n-m)...)
	s.force = append(s.force, make([]Scalar4, n-m)...)
	for i := m; i < n; i++ {
		s.mass = append(s.mass, 1)
	}
}

func (s *System) Subscribe(o CountObserver) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = o

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}
