/*package nlist contains the neighbor-list side of the handoff: the interface
the bridge reads neighbor lists through, a cell-list implementation of it,
and the Serializer which turns a list into periodic-corrected pair geometry.

Lists use the usual flat layout. Particle i's neighbors are

   Neighbors()[Head()[i] : Head()[i] + NNeigh()[i]]

and a Half list stores each unordered pair once, under the lower index,
while a Full list stores it under both particles.
*/
package nlist

import (
	"fmt"
	"sort"
)

// StorageMode says whether pairs are listed once or twice.
type StorageMode int

const (
	Half StorageMode = iota
	Full
)

func (m StorageMode) String() string {
	switch m {
	case Half:
		return "half"
	case Full:
		return "full"
	}
	return fmt.Sprintf("StorageMode(%d)", int(m))
}

// ParseStorageMode converts "half" or "full" to a StorageMode.
func ParseStorageMode(s string) (StorageMode, error) {
	switch s {
	case "half", "Half", "":
		return Half, nil
	case "full", "Full":
		return Full, nil
	}
	return Half, fmt.Errorf("'%s' is not a valid storage mode. Only 'half' "+
		"and 'full' are recognized.", s)
}

// List is a read-only neighbor list. Implementations own the slices they
// return; callers must not modify them.
type List interface {
	// Compute brings the list up to date for the given timestep.
	Compute(timestep int64) error
	NNeigh() []int
	Head() []int
	Neighbors() []int
	StorageMode() StorageMode
}

// Static is a List built from an explicit set of pairs. Compute does nothing.
type Static struct {
	nneigh, head, nlist []int
	mode                StorageMode
}

// FromPairs builds a Static list for n particles. Under Half each pair is
// stored once under the lower index; under Full it is stored under both.
// Duplicate pairs and self pairs are ignored.
func FromPairs(n int, mode StorageMode, pairs [][2]int) (*Static, error) {
	adj := make([][]int, n)
	seen := map[[2]int]bool{}

	for i, p := range pairs {
		a, b := p[0], p[1]
		if a < 0 || b < 0 || a >= n || b >= n {
			return nil, fmt.Errorf("Pair %d, (%d, %d), is out of range for "+
				"%d particles.", i, a, b, n)
		}
		if a == b {
			continue
		}
		if a > b {
			a, b = b, a
		}
		if seen[[2]int{a, b}] {
			continue
		}
		seen[[2]int{a, b}] = true

		adj[a] = append(adj[a], b)
		if mode == Full {
			adj[b] = append(adj[b], a)
		}
	}

	s := &Static{mode: mode}
	s.nneigh, s.head, s.nlist = flatten(adj)
	return s, nil
}

func (s *Static) Compute(timestep int64) error { return nil }
func (s *Static) NNeigh() []int               { return s.nneigh }
func (s *Static) Head() []int                 { return s.head }
func (s *Static) Neighbors() []int            { return s.nlist }
func (s *Static) StorageMode() StorageMode    { return s.mode }

// flatten converts per-particle adjacency lists into the flat layout. Each
// particle's neighbors are sorted.
func flatten(adj [][]int) (nneigh, head, nlist []int) {
	nneigh, head = make([]int, len(adj)), make([]int, len(adj))
	total := 0
	for i := range adj {
		sort.Ints(adj[i])
		head[i], nneigh[i] = total, len(adj[i])
		total += len(adj[i])
	}

	nlist = make([]int, 0, total)
	for i := range adj {
		nlist = append(nlist, adj[i]...)
	}
	return nneigh, head, nlist
}

// MaxNeighbors returns the largest per-particle neighbor count in a list.
func MaxNeighbors(l List) int {
	max := 0
	for _, n := range l.NNeigh() {
		if n > max {
			max = n
		}
	}
	return max
}

// Type assertions
var (
	_ List = &Static{}
	_ List = &CellList{}
)
