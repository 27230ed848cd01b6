package engine

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/darmis007/hoomd-tf/lib/box"
	"github.com/darmis007/hoomd-tf/lib/buffer"
	"github.com/darmis007/hoomd-tf/lib/controller"
	"github.com/darmis007/hoomd-tf/lib/handoff"
	"github.com/darmis007/hoomd-tf/lib/nlist"
	"github.com/darmis007/hoomd-tf/lib/particles"
)

func almostEq(x, y, eps float64) bool { return math.Abs(x-y) <= eps }

func TestLJPair(t *testing.T) {
	lj := &LJ{Epsilon: 1, Sigma: 1}
	tests := []struct {
		r, f, u float64
	}{
		{1, 24, 0},
		{math.Pow(2, 1.0/6), 0, -1},
	}

	for i := range tests {
		fr, u := lj.pair(tests[i].r * tests[i].r)
		if !almostEq(fr*tests[i].r, tests[i].f, 1e-12) ||
			!almostEq(u, tests[i].u, 1e-12) {
			t.Errorf("%d) Expected |F| = %g, U = %g at r = %g, got %g, %g.",
				i, tests[i].f, tests[i].u, tests[i].r, fr*tests[i].r, u)
		}
	}
}

// liquid places n^3 particles on a jittered cubic lattice filling a box of
// width L.
func liquid(n int, L float64) *particles.System {
	rng := rand.New(rand.NewSource(42))
	s := particles.NewSystem(n * n * n)
	x := make([][3]float64, 0, n*n*n)
	dx := L / float64(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				idx := [3]int{i, j, k}
				var xi [3]float64
				for dim := 0; dim < 3; dim++ {
					xi[dim] = (float64(idx[dim])+0.5)*dx - L/2 +
						0.3*(rng.Float64()-0.5)
				}
				x = append(x, xi)
			}
		}
	}
	s.SetPositions(x)
	return s
}

func runLJ(t *testing.T, s *particles.System, opts ...controller.Option) []particles.Scalar4 {
	t.Helper()
	b := box.Cubic(8)
	lj := &LJ{Epsilon: 1, Sigma: 0.5, RCut: 1.25, Box: b}
	c, err := controller.New(s, &handoff.Inline{Compute: lj.Compute}, opts...)
	if err != nil {
		t.Fatalf("controller.New returned '%s'.", err.Error())
	}
	defer c.Close()

	if err := c.Step(0); err != nil {
		t.Fatalf("Step returned '%s'.", err.Error())
	}
	return append([]particles.Scalar4{}, s.Forces()...)
}

func TestLJNeighborModes(t *testing.T) {
	s := liquid(6, 8)
	b := box.Cubic(8)

	want := runLJ(t, s)

	half, _ := nlist.NewCellList(s, b, 1.25, 0.25, nlist.Half)
	full, _ := nlist.NewCellList(s, b, 1.25, 0.25, nlist.Full)
	tests := []struct {
		name string
		opt  controller.Option
	}{
		{"half/indexed", controller.WithNeighbors(half, b, 64, 1.25, nlist.SchemaIndexed)},
		{"full/indexed", controller.WithNeighbors(full, b, 64, 1.25, nlist.SchemaIndexed)},
		{"full/displacement", controller.WithNeighbors(full, b, 64, 1.25, nlist.SchemaDisplacement)},
	}

	for i := range tests {
		got := runLJ(t, s, tests[i].opt)
		for j := range want {
			for k := 0; k < 4; k++ {
				if !almostEq(got[j][k], want[j][k], 1e-6*(1+math.Abs(want[j][k]))) {
					t.Fatalf("%d) %s: force %d = %v, expected %v.",
						i, tests[i].name, j, got[j], want[j])
				}
			}
		}
	}

	// Newton's third law
	var p [3]float64
	for i := range want {
		for dim := 0; dim < 3; dim++ {
			p[dim] += want[i][dim]
		}
	}
	for dim := 0; dim < 3; dim++ {
		if !almostEq(p[dim], 0, 1e-6) {
			t.Errorf("Expected zero net force, got %v.", p)
		}
	}
}

func TestLJHalfNeedsIndices(t *testing.T) {
	s := liquid(3, 8)
	b := box.Cubic(8)
	half, _ := nlist.NewCellList(s, b, 1.25, 0, nlist.Half)
	lj := &LJ{Epsilon: 1, Sigma: 0.5, RCut: 1.25}

	c, err := controller.New(s, &handoff.Inline{Compute: lj.Compute},
		controller.WithNeighbors(half, b, 16, 1.25, nlist.SchemaDisplacement))
	if err != nil {
		t.Fatalf("controller.New returned '%s'.", err.Error())
	}
	defer c.Close()

	if err := c.Step(0); err == nil {
		t.Errorf("Expected half/displacement layout to be rejected.")
	}
}

func TestGravity(t *testing.T) {
	s := particles.NewSystem(2)
	s.SetPositions([][3]float64{{0, 0, 0}, {2, 0, 0}})
	g := &Gravity{G: 1, Mass: 3, Eps: 0}

	c, err := controller.New(s, &handoff.Inline{Compute: g.Compute},
		controller.WithPrecision(particles.Float64))
	if err != nil {
		t.Fatalf("controller.New returned '%s'.", err.Error())
	}
	defer c.Close()

	if err := c.Step(0); err != nil {
		t.Fatalf("Step returned '%s'.", err.Error())
	}

	f := s.Forces()
	// |F| = G m^2 / r^2, attractive.
	if !almostEq(f[0][0], 9.0/4, 1e-12) || !almostEq(f[1][0], -9.0/4, 1e-12) {
		t.Errorf("Expected forces +/-2.25 along x, got %v and %v.", f[0], f[1])
	}
	if f[0][3] != f[1][3] {
		t.Errorf("Expected equal potential energies, got %g and %g.",
			f[0][3], f[1][3])
	}
}

func TestManifest(t *testing.T) {
	reg := buffer.NewRegistry(0)
	s := liquid(3, 8)
	b := box.Cubic(8)
	full, _ := nlist.NewCellList(s, b, 1.0, 0, nlist.Full)
	path := filepath.Join(t.TempDir(), "manifest.json")

	var seen handoff.Layout
	eng := &Announce{
		Engine: &handoff.Inline{
			Compute: func(handoff.Layout, int64) error { return nil },
			Restart: func(l handoff.Layout) error { seen = l; return nil },
		},
		Path: path,
	}

	c, err := controller.New(s, eng, controller.WithRegistry(reg),
		controller.WithPrecision(particles.Float32),
		controller.WithNeighbors(full, b, 8, 1.0, nlist.SchemaIndexed))
	if err != nil {
		t.Fatalf("controller.New returned '%s'.", err.Error())
	}
	defer c.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Manifest was not written: '%s'.", err.Error())
	}
	m, err := ReadManifest(data)
	if err != nil {
		t.Fatalf("ReadManifest returned '%s'.", err.Error())
	}

	if m.N != 27 || m.NNeighs != 8 || m.Precision != "float32" ||
		m.Schema != "indexed" || m.StorageMode != "full" ||
		m.Neighbor == nil || m.Neighbor.Records != 216 ||
		m.Input.RecordSize != 16 {
		t.Errorf("Unexpected manifest %+v.", m)
	}

	l, err := m.Resolve(reg)
	if err != nil {
		t.Fatalf("Resolve returned '%s'.", err.Error())
	}
	if l.Input != seen.Input || l.Output != seen.Output ||
		l.Neighbor != seen.Neighbor || l.Mode != nlist.Full {
		t.Errorf("Resolved layout does not match the one given to the engine.")
	}

	m.Input.Records++
	if _, err := m.Resolve(reg); err == nil {
		t.Errorf("Expected size disagreement to fail.")
	}
	m.Input.Records--
	m.Output.Addr += 16
	if _, err := m.Resolve(reg); err == nil {
		t.Errorf("Expected a bad address to fail.")
	}
}
