/*package snapshot copies particle state between the host store and the shared
regions: positions and neighbor geometry into the engine's input, forces back
out of its output.

None of these functions resize anything. If a region's capacity does not match
the live particle count they return a *SizeMismatchError without touching
either side, and it is up to the caller to reallocate and try again.
*/
package snapshot

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/darmis007/hoomd-tf/lib/box"
	"github.com/darmis007/hoomd-tf/lib/buffer"
	g_error "github.com/darmis007/hoomd-tf/lib/error"
	"github.com/darmis007/hoomd-tf/lib/nlist"
	"github.com/darmis007/hoomd-tf/lib/particles"
)

// StalePolicy decides what ReadForces does with records the engine did not
// write.
type StalePolicy int

const (
	// AcceptStale reads whatever the output region holds.
	AcceptStale StalePolicy = iota
	// RejectStale requires the region to have been poisoned with Poison
	// before the engine ran, and fails if any poisoned record survives.
	RejectStale
)

func (p StalePolicy) String() string {
	switch p {
	case AcceptStale:
		return "accept"
	case RejectStale:
		return "reject"
	}
	return fmt.Sprintf("StalePolicy(%d)", int(p))
}

// ParseStalePolicy converts "accept" or "reject" to a StalePolicy.
func ParseStalePolicy(s string) (StalePolicy, error) {
	switch s {
	case "accept", "":
		return AcceptStale, nil
	case "reject":
		return RejectStale, nil
	}
	return AcceptStale, fmt.Errorf("'%s' is not a valid stale-output "+
		"policy. Only 'accept' and 'reject' are recognized.", s)
}

// Sentinel NaN payloads used to mark unwritten output records. No arithmetic
// produces these exact bit patterns.
const (
	Sentinel64 uint64 = 0x7ff8deadbeef0001
	Sentinel32 uint32 = 0x7fc0beef
)

func checkCap(name string, r *buffer.Region, n int) error {
	if r.Cap() != n {
		return &g_error.SizeMismatchError{Buffer: name, Capacity: r.Cap(), Len: n}
	}
	return nil
}

// WritePositions copies every position record of store into r. Float64
// regions get a straight memory copy. Float32 regions get each coordinate
// narrowed and the type word repacked, so the tag survives exactly.
func WritePositions(r *buffer.Region, store particles.PositionStore) error {
	pos := store.Positions()
	if err := checkCap("input", r, len(pos)); err != nil {
		return err
	}
	if len(pos) == 0 {
		return nil
	}

	switch r.Precision() {
	case particles.Float64:
		copy(r.Float64s(), recordWords(pos))
	case particles.Float32:
		w := r.Float32s()
		for i := range pos {
			w[4*i] = float32(pos[i][0])
			w[4*i+1] = float32(pos[i][1])
			w[4*i+2] = float32(pos[i][2])
			w[4*i+3] = particles.TagAsScalar32(pos[i].Type())
		}
	}

	return nil
}

// WriteNeighbors serializes the neighbor list into r, which must hold
// len(pos) * ser.NNeighs records. Slots without a neighbor are zero.
func WriteNeighbors(
	r *buffer.Region, ser *nlist.Serializer, l nlist.List,
	pos []particles.Scalar4, b *box.Box,
) error {
	if err := checkCap("neighbor", r, len(pos)*ser.NNeighs); err != nil {
		return err
	}
	if r.Len() == 0 {
		return nil
	}

	clear(r.Bytes())

	var emit func(slot int, rec particles.Scalar4)
	switch r.Precision() {
	case particles.Float64:
		w := r.Float64s()
		emit = func(slot int, rec particles.Scalar4) {
			copy(w[4*slot:4*slot+4], rec[:])
		}
	case particles.Float32:
		w := r.Float32s()
		emit = func(slot int, rec particles.Scalar4) {
			w[4*slot] = float32(rec[0])
			w[4*slot+1] = float32(rec[1])
			w[4*slot+2] = float32(rec[2])
			w[4*slot+3] = particles.TagAsScalar32(rec.Type())
		}
	}

	return ser.Serialize(l, pos, b, emit)
}

// ReadForces overwrites every record of store's force array with the
// contents of r. Nothing is accumulated. The fourth word is the per-particle
// potential energy and is converted numerically. The virial is not part of
// the exchange.
func ReadForces(
	r *buffer.Region, store particles.ForceStore, policy StalePolicy,
) error {
	f := store.Forces()
	if err := checkCap("output", r, len(f)); err != nil {
		return err
	}
	if len(f) == 0 {
		return nil
	}

	if policy == RejectStale {
		if err := checkStale(r); err != nil {
			return err
		}
	}

	switch r.Precision() {
	case particles.Float64:
		copy(recordWords(f), r.Float64s())
	case particles.Float32:
		w := r.Float32s()
		for i := range f {
			f[i] = particles.Scalar4{
				float64(w[4*i]), float64(w[4*i+1]),
				float64(w[4*i+2]), float64(w[4*i+3]),
			}
		}
	}

	return nil
}

// Poison fills every word of r with the sentinel NaN for its precision, so
// that ReadForces can detect records the engine never wrote.
func Poison(r *buffer.Region) {
	switch r.Precision() {
	case particles.Float64:
		w, s := r.Float64s(), math.Float64frombits(Sentinel64)
		for i := range w {
			w[i] = s
		}
	case particles.Float32:
		w, s := r.Float32s(), math.Float32frombits(Sentinel32)
		for i := range w {
			w[i] = s
		}
	}
}

// checkStale reports records whose first word still holds the sentinel.
func checkStale(r *buffer.Region) error {
	first, unwritten := -1, 0
	switch r.Precision() {
	case particles.Float64:
		w := r.Float64s()
		for i := 0; i < r.Cap(); i++ {
			if math.Float64bits(w[4*i]) == Sentinel64 {
				if first < 0 {
					first = i
				}
				unwritten++
			}
		}
	case particles.Float32:
		w := r.Float32s()
		for i := 0; i < r.Cap(); i++ {
			if math.Float32bits(w[4*i]) == Sentinel32 {
				if first < 0 {
					first = i
				}
				unwritten++
			}
		}
	}

	if unwritten > 0 {
		return &g_error.StaleOutputError{Record: first, Unwritten: unwritten}
	}
	return nil
}

// recordWords views a record slice as a flat word slice.
func recordWords(x []particles.Scalar4) []float64 {
	return unsafe.Slice((*float64)(unsafe.Pointer(&x[0])), 4*len(x))
}
