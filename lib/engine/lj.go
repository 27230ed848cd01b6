package engine

import (
	"fmt"

	"github.com/darmis007/hoomd-tf/lib/box"
	"github.com/darmis007/hoomd-tf/lib/handoff"
	"github.com/darmis007/hoomd-tf/lib/nlist"
	"github.com/darmis007/hoomd-tf/lib/particles"
)

// LJ is a truncated (unshifted) 12-6 Lennard-Jones engine. If the layout has
// a neighbor region, pairs are taken from it. Otherwise every pair is
// compared using Box.
type LJ struct {
	Epsilon, Sigma, RCut float64
	Box                  *box.Box
}

// pair returns |F|/r and the pair energy at squared distance r2.
func (lj *LJ) pair(r2 float64) (fOverR, u float64) {
	sr2 := lj.Sigma * lj.Sigma / r2
	sr6 := sr2 * sr2 * sr2
	u = 4 * lj.Epsilon * (sr6*sr6 - sr6)
	fOverR = 24 * lj.Epsilon * (2*sr6*sr6 - sr6) / r2
	return fOverR, u
}

// Compute is a handoff.StepFunc. The fourth word of each output record is the
// particle's share of the pair energy.
func (lj *LJ) Compute(l handoff.Layout, timestep int64) error {
	f := make([]particles.Scalar4, l.N)

	var err error
	if l.Neighbor != nil && l.NNeighs > 0 {
		err = lj.fromNeighbors(l, f)
	} else {
		err = lj.allPairs(l, f)
	}
	if err != nil {
		return err
	}

	out := newView(l.Output)
	for i := range f {
		out.set(i, f[i])
	}
	return nil
}

func (lj *LJ) add(f []particles.Scalar4, i, k int, dx [3]float64, both bool) {
	r2 := dx[0]*dx[0] + dx[1]*dx[1] + dx[2]*dx[2]
	if r2 == 0 || (lj.RCut > 0 && r2 >= lj.RCut*lj.RCut) {
		return
	}
	fr, u := lj.pair(r2)

	for dim := 0; dim < 3; dim++ {
		f[i][dim] += fr * dx[dim]
	}
	f[i][3] += u / 2
	if both {
		for dim := 0; dim < 3; dim++ {
			f[k][dim] -= fr * dx[dim]
		}
		f[k][3] += u / 2
	}
}

func (lj *LJ) fromNeighbors(l handoff.Layout, f []particles.Scalar4) error {
	half := l.Mode == nlist.Half
	if half && l.Schema != nlist.SchemaIndexed {
		return fmt.Errorf("A half neighbor list needs the indexed schema " +
			"so pair forces can be applied to both particles.")
	}

	nb := newView(l.Neighbor)
	for i := 0; i < l.N; i++ {
		for s := 0; s < l.NNeighs; s++ {
			slot := i*l.NNeighs + s
			dx := nb.vec(slot)

			k := -1
			if l.Schema == nlist.SchemaIndexed {
				tag := nb.tag(slot)
				if tag == 0 {
					continue
				}
				k = int(tag) - 1
			} else if dx == [3]float64{} {
				continue
			}

			lj.add(f, i, k, dx, half)
		}
	}

	return nil
}

func (lj *LJ) allPairs(l handoff.Layout, f []particles.Scalar4) error {
	if lj.Box == nil {
		return fmt.Errorf("LJ engine needs a box when there is no " +
			"neighbor region.")
	}

	in := newView(l.Input)
	for i := 0; i < l.N; i++ {
		xi := in.vec(i)
		for k := i + 1; k < l.N; k++ {
			lj.add(f, i, k, lj.Box.Displacement(xi, in.vec(k)), true)
		}
	}
	return nil
}
