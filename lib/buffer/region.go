/*package buffer manages the anonymous shared-memory regions which hold the
records exchanged with the external engine.

A Region is one page-rounded MAP_SHARED mapping sized for a fixed number of
four-word records. Regions never grow in place: Resize releases the old
mapping and creates a new one, so any view taken from the old Region becomes
invalid. The contents of a new mapping should not be assumed to be zero;
writers must fill every record they expect the reader to see.

Every Region is tracked by a Registry under a 64-bit token, which is the
preferred way to hand a region to another party. addr.go holds the only code
which deals in raw addresses.
*/
package buffer

import (
	"fmt"
	"unsafe"

	g_error "github.com/darmis007/hoomd-tf/lib/error"
	"github.com/darmis007/hoomd-tf/lib/particles"
)

// Region is a shared-memory mapping holding Cap() records. A Region is owned
// by exactly one party at a time and is not safe for concurrent use.
type Region struct {
	token uint64
	n     int
	prec  particles.Precision
	// mem is the full page-rounded mapping. It is nil for empty regions and
	// after Release.
	mem      []byte
	released bool
	reg      *Registry
}

// Cap returns the number of records the region was allocated for.
func (r *Region) Cap() int {
	if r == nil || r.released {
		return 0
	}
	return r.n
}

// Precision returns the word width used by the region.
func (r *Region) Precision() particles.Precision { return r.prec }

// RecordSize returns the width of one record in bytes.
func (r *Region) RecordSize() int { return r.prec.RecordSize() }

// Len returns the number of meaningful bytes in the region, Cap() *
// RecordSize(). The mapping itself may be longer.
func (r *Region) Len() int {
	n := r.Cap()
	if n == 0 {
		return 0
	}
	return n * r.RecordSize()
}

// Token returns the registry token for the region. The zero token is never
// issued.
func (r *Region) Token() uint64 {
	if r == nil {
		return 0
	}
	return r.token
}

// Released returns true if Release has been called on the region.
func (r *Region) Released() bool { return r == nil || r.released }

// Bytes returns the first Len() bytes of the mapping. The slice aliases the
// shared memory.
func (r *Region) Bytes() []byte {
	if r.Len() == 0 {
		return nil
	}
	return r.mem[:r.Len()]
}

// Float64s returns a view of the region as 4*Cap() float64 words. It panics
// if the region does not hold float64 records. The slice aliases the shared
// memory and is invalidated by Release.
func (r *Region) Float64s() []float64 {
	if r.prec != particles.Float64 {
		panic(fmt.Sprintf("Float64s() called on %s region.", r.prec))
	}
	if r.Len() == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&r.mem[0])), 4*r.n)
}

// Float32s is the float32 analog of Float64s.
func (r *Region) Float32s() []float32 {
	if r.prec != particles.Float32 {
		panic(fmt.Sprintf("Float32s() called on %s region.", r.prec))
	}
	if r.Len() == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.mem[0])), 4*r.n)
}

// Records returns an owned copy of the region's contents, widened to
// float64. This copies every record and is meant for inspection and tests;
// hot paths should use Float64s or Float32s.
func (r *Region) Records() []particles.Scalar4 {
	out := make([]particles.Scalar4, r.Cap())
	if len(out) == 0 {
		return out
	}
	switch r.prec {
	case particles.Float64:
		w := r.Float64s()
		for i := range out {
			copy(out[i][:], w[4*i:4*i+4])
		}
	case particles.Float32:
		w := r.Float32s()
		for i := range out {
			out[i] = particles.Scalar4{
				float64(w[4*i]), float64(w[4*i+1]), float64(w[4*i+2]),
				particles.TagAsScalar(particles.ScalarAsTag32(w[4*i+3])),
			}
		}
	}
	return out
}

// Release unmaps the region and removes it from its registry. It is a no-op
// on nil or already released regions.
func (r *Region) Release() error {
	if r == nil || r.released {
		return nil
	}
	r.released = true
	if r.reg != nil {
		r.reg.unregister(r)
	}

	mem := r.mem
	r.mem = nil
	if mem == nil {
		return nil
	}
	if err := unmap(mem); err != nil {
		return fmt.Errorf("Could not release region %d: %w", r.token, err)
	}
	return nil
}

// Allocate creates a region for n records in the default registry.
func Allocate(n int, prec particles.Precision) (*Region, error) {
	return Default.Allocate(n, prec)
}

// Resize releases r and allocates a replacement with n records and the same
// precision in r's registry. It never resizes in place, even when n equals
// the current capacity. r may be nil, in which case the default registry and
// float64 records are used.
func Resize(r *Region, n int) (*Region, error) {
	reg, prec := Default, particles.Float64
	if r != nil {
		prec = r.prec
		if r.reg != nil {
			reg = r.reg
		}
	}
	if err := r.Release(); err != nil {
		return nil, err
	}
	return reg.Allocate(n, prec)
}

// pageRound rounds nBytes up to a whole number of pages.
func pageRound(nBytes int) int {
	page := pageSize()
	return ((nBytes + page - 1) / page) * page
}

func allocationError(n, nBytes int, err error) error {
	return &g_error.AllocationError{Records: n, Bytes: nBytes, Err: err}
}
