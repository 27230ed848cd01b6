package engine

import (
	"math"

	"github.com/phil-mansfield/gravitree"

	"github.com/darmis007/hoomd-tf/lib/handoff"
	"github.com/darmis007/hoomd-tf/lib/particles"
)

// Gravity is a Plummer-softened self-gravity engine for isolated systems of
// equal-mass particles. Forces are summed directly. Per-particle potential
// energies come from a gravitree octree.
type Gravity struct {
	G, Mass, Eps float64
}

// Compute is a handoff.StepFunc.
func (g *Gravity) Compute(l handoff.Layout, timestep int64) error {
	if l.N == 0 {
		return nil
	}

	in := newView(l.Input)
	x := make([][3]float64, l.N)
	for i := range x {
		x[i] = in.vec(i)
	}

	f := make([]particles.Scalar4, l.N)
	gm2, eps2 := g.G*g.Mass*g.Mass, g.Eps*g.Eps
	for i := range x {
		for j := i + 1; j < len(x); j++ {
			dx := [3]float64{x[j][0] - x[i][0], x[j][1] - x[i][1], x[j][2] - x[i][2]}
			r2 := dx[0]*dx[0] + dx[1]*dx[1] + dx[2]*dx[2] + eps2
			s := gm2 / (r2 * math.Sqrt(r2))
			for dim := 0; dim < 3; dim++ {
				f[i][dim] += s * dx[dim]
				f[j][dim] -= s * dx[dim]
			}
		}
	}

	pe := make([]float64, l.N)
	tree := gravitree.NewTree(x)
	tree.Potential(g.Eps, pe)

	out := newView(l.Output)
	for i := range f {
		f[i][3] = g.G * g.Mass * g.Mass * pe[i]
		out.set(i, f[i])
	}
	return nil
}
