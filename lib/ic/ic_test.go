package ic

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/darmis007/hoomd-tf/lib/eq"
	"github.com/darmis007/hoomd-tf/lib/particles"
)

func TestZMajorUnigrid(t *testing.T) {
	tests := []struct {
		width int
		i     int
		cell  [3]int
	}{
		{1, 0, [3]int{0, 0, 0}},
		{4, 1, [3]int{0, 0, 1}},
		{4, 4, [3]int{0, 1, 0}},
		{4, 16, [3]int{1, 0, 0}},
		{4, 63, [3]int{3, 3, 3}},
		{3, 14, [3]int{1, 1, 2}},
	}

	for i := range tests {
		g := ZMajorUnigrid{tests[i].width}
		cell := g.IndexToCell(tests[i].i)
		if cell != tests[i].cell {
			t.Errorf("%d) Expected index %d to be in cell %d, got %d.",
				i, tests[i].i, tests[i].cell, cell)
		}
		if idx := g.CellToIndex(cell); idx != tests[i].i {
			t.Errorf("%d) Expected cell %d to map back to %d, got %d.",
				i, cell, tests[i].i, idx)
		}
	}
}

func TestLattice(t *testing.T) {
	tests := []struct {
		width     int
		L, jitter float64
		valid     bool
	}{
		{0, 1, 0, true},
		{1, 2, 0, true},
		{4, 8, 0, true},
		{5, 10, 1.5, true},
		{-1, 1, 0, false},
		{2, 0, 0, false},
	}

	for i := range tests {
		s, err := Lattice(tests[i].width, tests[i].L, tests[i].jitter, 1)
		if !tests[i].valid {
			if err == nil {
				t.Errorf("%d) Expected an error.", i)
			}
			continue
		} else if err != nil {
			t.Errorf("%d) Lattice returned '%s'.", i, err.Error())
			continue
		}

		w := tests[i].width
		if s.N() != w*w*w {
			t.Errorf("%d) Expected %d particles, got %d.", i, w*w*w, s.N())
		}
		for j := range s.Positions {
			for dim := 0; dim < 3; dim++ {
				if x := s.Positions[j][dim]; x < 0 || x >= tests[i].L {
					t.Fatalf("%d) Particle %d is outside the box: %v.",
						i, j, s.Positions[j])
				}
			}
		}
	}

	s, _ := Lattice(2, 4, 0, 1)
	want := [][3]float64{
		{1, 1, 1}, {1, 1, 3}, {1, 3, 1}, {1, 3, 3},
		{3, 1, 1}, {3, 1, 3}, {3, 3, 1}, {3, 3, 3},
	}
	if !eq.Slices(s.Positions, want) {
		t.Errorf("Expected lattice %v, got %v.", want, s.Positions)
	}
}

func TestGadget2(t *testing.T) {
	dir := t.TempDir()
	s := &Snapshot{
		L: 10, Mass: 0.5,
		Positions:  [][3]float64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9.5}},
		Velocities: [][3]float64{{-1, 0, 1}, {0, 0, 0}, {0.25, 0.5, 0.75}},
		Types:      []uint32{1, 1, 3},
	}

	for i, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		fname := filepath.Join(dir, "snap.dat")
		if err := WriteGadget2(fname, s, order); err != nil {
			t.Fatalf("%d) WriteGadget2 returned '%s'.", i, err.Error())
		}
		got, err := ReadGadget2(fname, order)
		if err != nil {
			t.Fatalf("%d) ReadGadget2 returned '%s'.", i, err.Error())
		}

		if got.L != s.L || got.Mass != s.Mass ||
			!eq.Slices(got.Positions, s.Positions) ||
			!eq.Slices(got.Velocities, s.Velocities) ||
			!eq.Slices(got.Types, s.Types) {
			t.Errorf("%d) Expected %+v, got %+v.", i, s, got)
		}
	}

	fname := filepath.Join(dir, "snap.dat")
	if _, err := ReadGadget2(fname, binary.BigEndian); err != nil {
		t.Errorf("Expected big-endian file to be readable.")
	}
	if _, err := ReadGadget2(fname, binary.LittleEndian); err == nil {
		t.Errorf("Expected the wrong byte order to be rejected.")
	}

	bad := &Snapshot{L: 1, Positions: make([][3]float64, 2), Types: []uint32{2, 1}}
	if err := WriteGadget2(fname, bad, binary.LittleEndian); err == nil {
		t.Errorf("Expected unsorted types to be rejected.")
	}

	junk := filepath.Join(dir, "junk.dat")
	os.WriteFile(junk, []byte("not a snapshot"), 0644)
	if _, err := ReadGadget2(junk, binary.LittleEndian); err == nil {
		t.Errorf("Expected a junk file to be rejected.")
	}
}

func TestLoad(t *testing.T) {
	s := &Snapshot{
		L: 4, Mass: 2,
		Positions:  [][3]float64{{0, 1, 2}, {3.5, 2, 0}},
		Velocities: [][3]float64{{1, 1, 1}, {2, 2, 2}},
		Types:      []uint32{0, 7},
	}
	sys := particles.NewSystem(5)

	s.Load(sys)
	if sys.N() != 2 {
		t.Fatalf("Expected 2 particles after Load, got %d.", sys.N())
	}

	x := sys.Positions()
	want := [][3]float64{{-2, -1, 0}, {1.5, 0, -2}}
	if !eq.Vec64s(x, want, 0) || x[0].Type() != 0 || x[1].Type() != 7 {
		t.Errorf("Expected positions %v with types 0, 7, got %v.", want, x)
	}
	if !eq.Slices(sys.Velocities(), s.Velocities) {
		t.Errorf("Velocities were not loaded.")
	}
	if m := sys.Masses(); m[0] != 2 || m[1] != 2 {
		t.Errorf("Expected masses of 2, got %v.", m)
	}
}
