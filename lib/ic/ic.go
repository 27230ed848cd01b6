/*package ic creates initial particle configurations for the bridge: uniform
lattices, Gadget-2 snapshots, and gotetra sheet files. All of them produce a
Snapshot, which can then be loaded into a particles.System.

Positions in a Snapshot are in [0, L) as they are in the files. Load moves
them into the [-L/2, L/2) convention used by box.Box.
*/
package ic

import (
	"fmt"
	"math/rand"

	"github.com/darmis007/hoomd-tf/lib/particles"
)

// Snapshot is a set of particles in a cubic box of width L.
type Snapshot struct {
	L    float64
	Mass float64

	Positions, Velocities [][3]float64
	Types                 []uint32
}

// N returns the number of particles.
func (s *Snapshot) N() int { return len(s.Positions) }

// Load resizes sys to hold the snapshot's particles and copies them in.
func (s *Snapshot) Load(sys *particles.System) {
	sys.Resize(s.N())

	x := make([][3]float64, s.N())
	for i := range x {
		for dim := 0; dim < 3; dim++ {
			x[i][dim] = s.Positions[i][dim] - s.L/2
		}
	}
	sys.SetPositions(x)

	if s.Types != nil {
		for i := range s.Types {
			sys.SetType(i, s.Types[i])
		}
	}
	if s.Velocities != nil {
		copy(sys.Velocities(), s.Velocities)
	}
	if s.Mass > 0 {
		m := sys.Masses()
		for i := range m {
			m[i] = s.Mass
		}
	}
}

// ZMajorUnigrid is a uniform grid of Width^3 cells where the index of a
// particle increases fastest along z.
type ZMajorUnigrid struct {
	Width int
}

// IndexToCell returns the grid cell of particle i.
func (g ZMajorUnigrid) IndexToCell(i int) [3]int {
	w := g.Width
	return [3]int{i / (w * w), (i / w) % w, i % w}
}

// CellToIndex is the inverse of IndexToCell.
func (g ZMajorUnigrid) CellToIndex(c [3]int) int {
	w := g.Width
	return c[2] + c[1]*w + c[0]*w*w
}

// Lattice places width^3 particles of type 0 at the centers of a
// ZMajorUnigrid filling a box of width L. Each coordinate is displaced by a
// uniform random amount in [-jitter/2, jitter/2) and wrapped back into the
// box.
func Lattice(width int, L, jitter float64, seed int64) (*Snapshot, error) {
	if width < 0 || L <= 0 {
		return nil, fmt.Errorf("Cannot make a lattice with width %d in a "+
			"box of width %g.", width, L)
	}

	g := ZMajorUnigrid{width}
	n := width * width * width
	s := &Snapshot{L: L, Mass: 1, Positions: make([][3]float64, n)}

	rng := rand.New(rand.NewSource(seed))
	dx := L / float64(width)
	for i := range s.Positions {
		c := g.IndexToCell(i)
		for dim := 0; dim < 3; dim++ {
			x := (float64(c[dim]) + 0.5) * dx
			if jitter > 0 {
				x += jitter * (rng.Float64() - 0.5)
			}
			s.Positions[i][dim] = wrap(x, L)
		}
	}

	return s, nil
}

func wrap(x, L float64) float64 {
	for x >= L {
		x -= L
	}
	for x < 0 {
		x += L
	}
	return x
}
