package nlist

import (
	"fmt"

	"github.com/darmis007/hoomd-tf/lib/box"
	g_error "github.com/darmis007/hoomd-tf/lib/error"
	"github.com/darmis007/hoomd-tf/lib/particles"
)

// Schema selects what goes in the fourth word of a neighbor slot.
type Schema int

const (
	// SchemaDisplacement slots hold (dx, dy, dz, type of neighbor).
	SchemaDisplacement Schema = iota
	// SchemaIndexed slots hold (dx, dy, dz, neighbor index + 1), with the
	// index packed like a type tag. A zero tag marks an empty slot. This is
	// what Half lists need, since the engine has to apply each pair force to
	// both particles.
	SchemaIndexed
)

func (s Schema) String() string {
	switch s {
	case SchemaDisplacement:
		return "displacement"
	case SchemaIndexed:
		return "indexed"
	}
	return fmt.Sprintf("Schema(%d)", int(s))
}

// ParseSchema converts "displacement" or "indexed" to a Schema.
func ParseSchema(s string) (Schema, error) {
	switch s {
	case "displacement", "":
		return SchemaDisplacement, nil
	case "indexed":
		return SchemaIndexed, nil
	}
	return SchemaDisplacement, fmt.Errorf("'%s' is not a valid neighbor "+
		"schema. Only 'displacement' and 'indexed' are recognized.", s)
}

// Entry is one neighbor pair. Dx is the minimum-image displacement
// pos[Self] - pos[Neighbor].
type Entry struct {
	Self, Neighbor         int
	Dx                     [3]float64
	SelfType, NeighborType uint32
}

// R2 returns the squared length of the displacement.
func (e *Entry) R2() float64 {
	return e.Dx[0]*e.Dx[0] + e.Dx[1]*e.Dx[1] + e.Dx[2]*e.Dx[2]
}

// Serializer converts a neighbor list into fixed-width groups of NNeighs
// records per particle.
type Serializer struct {
	NNeighs int
	// RCut, if positive, drops pairs with |dx|^2 >= RCut^2. Lists are usually
	// built with a skin, so they contain some pairs beyond the cutoff.
	RCut   float64
	Schema Schema
}

// Walk calls fn on every pair of the list in particle-index order, after
// minimum-image correction and the cutoff filter. Nothing is deduplicated or
// added: a Half list yields each pair once and a Full list yields it twice.
// Walk stops at the first error returned by fn. Non-finite positions give an
// error wrapping box.ErrNonFinite before fn is called.
func (s *Serializer) Walk(
	l List, pos []particles.Scalar4, b *box.Box, fn func(e *Entry) error,
) error {
	nneigh, head, nlist := l.NNeigh(), l.Head(), l.Neighbors()
	if len(nneigh) != len(pos) || len(head) != len(pos) {
		return &g_error.SizeMismatchError{
			Buffer: "neighbor list", Capacity: len(nneigh), Len: len(pos),
		}
	}

	if err := checkPositions(pos); err != nil {
		return err
	}

	rcut2 := s.RCut * s.RCut
	e := &Entry{}
	for i := range pos {
		xi := pos[i].Vec()
		for _, k := range nlist[head[i] : head[i]+nneigh[i]] {
			e.Self, e.Neighbor = i, k
			e.Dx = b.Displacement(xi, pos[k].Vec())
			if s.RCut > 0 && e.R2() >= rcut2 {
				continue
			}
			e.SelfType, e.NeighborType = pos[i].Type(), pos[k].Type()

			if err := fn(e); err != nil {
				return err
			}
		}
	}

	return nil
}

// checkPositions fails on the first particle with a non-finite position. A
// diverged particle has no periodic image.
func checkPositions(pos []particles.Scalar4) error {
	for i := range pos {
		if err := box.CheckFinite(pos[i].Vec()); err != nil {
			return fmt.Errorf("Particle %d has position %w", i, err)
		}
	}
	return nil
}

// Serialize walks the list and calls emit with the slot index (particle *
// NNeighs + position within the particle's group) and record of every
// occupied slot. Slots which are never emitted are expected to be zero. A
// particle with more than NNeighs retained pairs gives a
// *g_error.NeighborOverflowError.
func (s *Serializer) Serialize(
	l List, pos []particles.Scalar4, b *box.Box,
	emit func(slot int, rec particles.Scalar4),
) error {
	if s.NNeighs <= 0 {
		return fmt.Errorf("Serializer needs NNeighs > 0, got %d.", s.NNeighs)
	}

	used := 0
	prev := -1
	return s.Walk(l, pos, b, func(e *Entry) error {
		if e.Self != prev {
			prev, used = e.Self, 0
		}
		if used == s.NNeighs {
			return &g_error.NeighborOverflowError{
				Particle: e.Self, Neighbors: countRetained(s, l, pos, b, e.Self),
				Slots: s.NNeighs,
			}
		}

		rec := particles.Scalar4{e.Dx[0], e.Dx[1], e.Dx[2], 0}
		switch s.Schema {
		case SchemaDisplacement:
			rec[3] = particles.TagAsScalar(e.NeighborType)
		case SchemaIndexed:
			rec[3] = particles.TagAsScalar(uint32(e.Neighbor + 1))
		}

		emit(e.Self*s.NNeighs+used, rec)
		used++
		return nil
	})
}

// countRetained counts the pairs of particle i which survive the cutoff. It
// is only used to report overflows.
func countRetained(
	s *Serializer, l List, pos []particles.Scalar4, b *box.Box, i int,
) int {
	n := 0
	rcut2 := s.RCut * s.RCut
	head, nneigh := l.Head()[i], l.NNeigh()[i]
	for _, k := range l.Neighbors()[head : head+nneigh] {
		dx := b.Displacement(pos[i].Vec(), pos[k].Vec())
		if s.RCut <= 0 || dx[0]*dx[0]+dx[1]*dx[1]+dx[2]*dx[2] < rcut2 {
			n++
		}
	}
	return n
}
