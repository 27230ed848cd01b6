package nlist

import (
	"fmt"
	"math"

	"github.com/darmis007/hoomd-tf/lib/box"
	"github.com/darmis007/hoomd-tf/lib/particles"
)

// CellList builds a neighbor list by binning particles into cells at least
// RCut + Skin wide and only comparing particles in adjacent cells. Boxes too
// small for three cells along some axis fall back to comparing every pair.
type CellList struct {
	RCut, Skin float64
	Mode       StorageMode

	store particles.PositionStore
	box   *box.Box

	nneigh, head, nlist []int
	cells               [][]int
	lastTimestep        int64
	built               bool
}

// NewCellList creates a cell list over the particles in store. The list is
// empty until the first call to Compute.
func NewCellList(
	store particles.PositionStore, b *box.Box, rcut, skin float64,
	mode StorageMode,
) (*CellList, error) {
	if rcut <= 0 || skin < 0 {
		return nil, fmt.Errorf("Invalid neighbor list radii rcut = %g, "+
			"skin = %g.", rcut, skin)
	}
	return &CellList{RCut: rcut, Skin: skin, Mode: mode, store: store, box: b}, nil
}

// SetBox changes the periodic box used by later calls to Compute.
func (c *CellList) SetBox(b *box.Box) { c.box = b }

func (c *CellList) NNeigh() []int            { return c.nneigh }
func (c *CellList) Head() []int              { return c.head }
func (c *CellList) Neighbors() []int         { return c.nlist }
func (c *CellList) StorageMode() StorageMode { return c.Mode }

// Compute rebuilds the list from the store's current positions. Calling it
// twice for the same timestep only builds once.
func (c *CellList) Compute(timestep int64) error {
	if c.built && timestep == c.lastTimestep && len(c.nneigh) == c.store.N() {
		return nil
	}

	pos := c.store.Positions()
	if err := checkPositions(pos); err != nil {
		return err
	}
	r := c.RCut + c.Skin

	ncell := [3]int{}
	dist := c.box.NearestPlaneDistance()
	brute := false
	for dim := 0; dim < 3; dim++ {
		ncell[dim] = int(math.Floor(dist[dim] / r))
		if ncell[dim] < 3 {
			brute = true
		}
	}

	var adj [][]int
	if brute {
		adj = c.allPairs(pos, r)
	} else {
		adj = c.cellPairs(pos, r, ncell)
	}

	c.nneigh, c.head, c.nlist = flatten(adj)
	c.lastTimestep, c.built = timestep, true
	return nil
}

func (c *CellList) keep(i, j int) bool {
	return i != j && (c.Mode == Full || i < j)
}

func (c *CellList) allPairs(pos []particles.Scalar4, r float64) [][]int {
	adj := make([][]int, len(pos))
	r2 := r * r
	for i := range pos {
		xi := pos[i].Vec()
		for j := range pos {
			if c.keep(i, j) && c.box.R2(xi, pos[j].Vec()) < r2 {
				adj[i] = append(adj[i], j)
			}
		}
	}
	return adj
}

func (c *CellList) cellPairs(
	pos []particles.Scalar4, r float64, ncell [3]int,
) [][]int {
	ntot := ncell[0] * ncell[1] * ncell[2]
	if len(c.cells) != ntot {
		c.cells = make([][]int, ntot)
	}
	for i := range c.cells {
		c.cells[i] = c.cells[i][:0]
	}

	idx := make([][3]int, len(pos))
	for i := range pos {
		s := c.box.Fraction(pos[i].Vec())
		for dim := 0; dim < 3; dim++ {
			u := s[dim] - math.Floor(s[dim]+0.5) + 0.5
			k := int(u * float64(ncell[dim]))
			if k >= ncell[dim] {
				k = ncell[dim] - 1
			} else if k < 0 {
				k = 0
			}
			idx[i][dim] = k
		}
		ci := cellIndex(idx[i], ncell)
		c.cells[ci] = append(c.cells[ci], i)
	}

	adj := make([][]int, len(pos))
	r2 := r * r
	for i := range pos {
		xi := pos[i].Vec()
		for dz := -1; dz <= 1; dz++ {
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nb := [3]int{
						wrapCell(idx[i][0]+dx, ncell[0]),
						wrapCell(idx[i][1]+dy, ncell[1]),
						wrapCell(idx[i][2]+dz, ncell[2]),
					}
					for _, j := range c.cells[cellIndex(nb, ncell)] {
						if c.keep(i, j) && c.box.R2(xi, pos[j].Vec()) < r2 {
							adj[i] = append(adj[i], j)
						}
					}
				}
			}
		}
	}

	return adj
}

func cellIndex(k, ncell [3]int) int {
	return k[0] + ncell[0]*(k[1]+ncell[1]*k[2])
}

func wrapCell(k, n int) int {
	if k < 0 {
		return k + n
	} else if k >= n {
		return k - n
	}
	return k
}
