package buffer

import (
	"bytes"
	"errors"
	"math"
	"sync"
	"testing"

	g_error "github.com/darmis007/hoomd-tf/lib/error"
	"github.com/darmis007/hoomd-tf/lib/particles"
)

var counts = []int{0, 1, 2, 3, 127, 128, 129, 1000}

func TestRoundTrip(t *testing.T) {
	for _, prec := range []particles.Precision{particles.Float64, particles.Float32} {
		for i, n := range counts {
			reg := NewRegistry(0)
			r, err := reg.Allocate(n, prec)
			if err != nil {
				t.Fatalf("%d) %s Allocate(%d) returned error '%s'.",
					i, prec, n, err.Error())
			}

			if r.Cap() != n || r.Len() != n*prec.RecordSize() {
				t.Errorf("%d) %s Allocate(%d) gave Cap() = %d, Len() = %d.",
					i, prec, n, r.Cap(), r.Len())
			}

			src := make([]byte, r.Len())
			for j := range src {
				src[j] = byte(j*7 + 3)
			}
			copy(r.Bytes(), src)

			if !bytes.Equal(r.Bytes(), src) {
				t.Errorf("%d) %s round trip of %d records changed the bytes.",
					i, prec, n)
			}

			if err := r.Release(); err != nil {
				t.Errorf("%d) Release() returned error '%s'.", i, err.Error())
			}
			if reg.Live() != 0 || reg.MappedBytes() != 0 {
				t.Errorf("%d) Expected empty registry after Release(), got "+
					"%d regions and %d bytes.", i, reg.Live(), reg.MappedBytes())
			}
		}
	}
}

func TestRecords(t *testing.T) {
	in := []particles.Scalar4{
		particles.Position([3]float64{1, 2, 3}, 0),
		particles.Position([3]float64{-1, 0.5, 4}, 9),
	}

	r64, _ := Allocate(2, particles.Float64)
	defer r64.Release()
	w64 := r64.Float64s()
	for i := range in {
		copy(w64[4*i:4*i+4], in[i][:])
	}

	r32, _ := Allocate(2, particles.Float32)
	defer r32.Release()
	w32 := r32.Float32s()
	for i := range in {
		for j := 0; j < 3; j++ {
			w32[4*i+j] = float32(in[i][j])
		}
		w32[4*i+3] = particles.TagAsScalar32(in[i].Type())
	}

	for _, r := range []*Region{r64, r32} {
		out := r.Records()
		for i := range in {
			if out[i].Vec() != in[i].Vec() || out[i].Type() != in[i].Type() {
				t.Errorf("%s) Expected record %d = %v, got %v.",
					r.Precision(), i, in[i], out[i])
			}
		}
	}
}

func TestResize(t *testing.T) {
	tests := []struct{ n, m int }{
		{0, 10}, {10, 0}, {100, 150}, {150, 100}, {64, 64}, {1, 100000},
	}

	for i := range tests {
		r, err := Allocate(tests[i].n, particles.Float32)
		if err != nil {
			t.Fatalf("%d) Allocate returned error '%s'.", i, err.Error())
		}
		old := r.Token()

		r2, err := Resize(r, tests[i].m)
		if err != nil {
			t.Fatalf("%d) Resize returned error '%s'.", i, err.Error())
		}
		if r2.Cap() != tests[i].m {
			t.Errorf("%d) Expected Cap() = %d after resize, got %d.",
				i, tests[i].m, r2.Cap())
		}
		if r2.Precision() != particles.Float32 {
			t.Errorf("%d) Resize changed precision to %s.", i, r2.Precision())
		}
		if !r.Released() || r.Cap() != 0 {
			t.Errorf("%d) Old region still live after Resize.", i)
		}
		if _, err := Default.Resolve(old); err == nil {
			t.Errorf("%d) Old token %d still resolves after Resize.", i, old)
		}
		r2.Release()
	}
}

func TestReleaseIdempotent(t *testing.T) {
	var nilRegion *Region
	if err := nilRegion.Release(); err != nil {
		t.Errorf("Release() on nil region returned '%s'.", err.Error())
	}

	r, _ := Allocate(10, particles.Float64)
	for i := 0; i < 3; i++ {
		if err := r.Release(); err != nil {
			t.Errorf("%d) Release() returned '%s'.", i, err.Error())
		}
	}
	if r.Addr() != 0 || r.Bytes() != nil {
		t.Errorf("Released region still exposes its mapping.")
	}
}

func TestResolve(t *testing.T) {
	reg := NewRegistry(0)
	r, _ := reg.Allocate(16, particles.Float64)
	empty, _ := reg.Allocate(0, particles.Float64)

	if got, err := reg.Resolve(r.Token()); err != nil || got != r {
		t.Errorf("Resolve(%d) did not return the region.", r.Token())
	}
	if got, err := reg.ResolveAddr(r.Addr()); err != nil || got != r {
		t.Errorf("ResolveAddr(0x%x) did not return the region.", r.Addr())
	}
	if got, err := reg.Resolve(empty.Token()); err != nil || got != empty {
		t.Errorf("Resolve() did not return the empty region.")
	}

	addr := r.Addr()
	invalid := []struct {
		handle uint64
		addr   bool
	}{
		{0, false}, {r.Token() + 100, false},
		{0, true}, {addr + 8, true},
	}

	for i := range invalid {
		var err error
		if invalid[i].addr {
			_, err = reg.ResolveAddr(invalid[i].handle)
		} else {
			_, err = reg.Resolve(invalid[i].handle)
		}

		var hErr *g_error.InvalidHandleError
		if !errors.As(err, &hErr) {
			t.Errorf("%d) Expected InvalidHandleError for %d, got %v.",
				i, invalid[i].handle, err)
		}
	}

	r.Release()
	if _, err := reg.ResolveAddr(addr); err == nil {
		t.Errorf("ResolveAddr() accepted the address of a released region.")
	}
	if _, err := reg.Resolve(r.Token()); err == nil {
		t.Errorf("Resolve() accepted the token of a released region.")
	}
}

func TestAllocationError(t *testing.T) {
	reg := NewRegistry(pageSize())

	r, err := reg.Allocate(1, particles.Float64)
	if err != nil {
		t.Fatalf("Allocate within budget returned '%s'.", err.Error())
	}

	_, err = reg.Allocate(1, particles.Float64)
	var aErr *g_error.AllocationError
	if !errors.As(err, &aErr) {
		t.Fatalf("Expected AllocationError, got %v.", err)
	} else if !errors.Is(err, ErrBudget) {
		t.Errorf("Expected AllocationError to wrap ErrBudget.")
	}

	r.Release()
	if _, err := reg.Allocate(1, particles.Float64); err != nil {
		t.Errorf("Allocate after Release returned '%s'.", err.Error())
	}

	if _, err := reg.Allocate(-1, particles.Float64); err == nil {
		t.Errorf("Expected negative count to fail.")
	}
}

func TestAllocationTooLarge(t *testing.T) {
	tests := []struct {
		n    int
		prec particles.Precision
	}{
		{1 << 59, particles.Float64},
		{1 << 60, particles.Float32},
		{math.MaxInt, particles.Float32},
		{math.MaxInt / 32, particles.Float64},
	}

	for i := range tests {
		reg := NewRegistry(0)
		r, err := reg.Allocate(tests[i].n, tests[i].prec)
		var aErr *g_error.AllocationError
		if !errors.As(err, &aErr) || !errors.Is(err, ErrTooLarge) {
			t.Errorf("%d) Expected Allocate(%d, %s) to fail with ErrTooLarge, "+
				"got region %v and error %v.",
				i, tests[i].n, tests[i].prec, r, err)
		}
		if reg.Live() != 0 || reg.MappedBytes() != 0 {
			t.Errorf("%d) Failed Allocate left %d regions and %d bytes.",
				i, reg.Live(), reg.MappedBytes())
		}
	}
}

func TestConcurrentBudget(t *testing.T) {
	const workers = 16
	reg := NewRegistry(4 * pageSize())

	var wg sync.WaitGroup
	regions := make(chan *Region, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := reg.Allocate(1, particles.Float64)
			if err == nil {
				regions <- r
			} else if !errors.Is(err, ErrBudget) {
				t.Errorf("Expected ErrBudget, got %v.", err)
			}
		}()
	}
	wg.Wait()
	close(regions)

	n := 0
	for r := range regions {
		n++
		r.Release()
	}
	if n != 4 {
		t.Errorf("Expected exactly 4 regions within the budget, got %d.", n)
	}
	if reg.MappedBytes() != 0 || reg.Live() != 0 {
		t.Errorf("Expected nothing mapped after release, got %d bytes in %d "+
			"regions.", reg.MappedBytes(), reg.Live())
	}
}
