/*package engine contains reference engines for the bridge: a Lennard-Jones
pair engine and a softened-gravity engine, along with the JSON manifest that
describes the shared regions to an engine in another process.

These are not meant to be fast. They exist so the bridge can be run and tested
end to end, and so there is a worked example of reading each region layout.
*/
package engine

import (
	"github.com/darmis007/hoomd-tf/lib/buffer"
	"github.com/darmis007/hoomd-tf/lib/particles"
)

// view gives word-level access to a region regardless of its precision.
type view struct {
	f64 []float64
	f32 []float32
}

func newView(r *buffer.Region) view {
	if r.Cap() == 0 {
		return view{}
	}
	if r.Precision() == particles.Float32 {
		return view{f32: r.Float32s()}
	}
	return view{f64: r.Float64s()}
}

func (v view) vec(i int) [3]float64 {
	if v.f32 != nil {
		return [3]float64{
			float64(v.f32[4*i]), float64(v.f32[4*i+1]), float64(v.f32[4*i+2]),
		}
	}
	return [3]float64{v.f64[4*i], v.f64[4*i+1], v.f64[4*i+2]}
}

// tag returns the fourth word of record i as a packed integer.
func (v view) tag(i int) uint32 {
	if v.f32 != nil {
		return particles.ScalarAsTag32(v.f32[4*i+3])
	}
	return particles.ScalarAsTag(v.f64[4*i+3])
}

// set writes record i with a numeric fourth word.
func (v view) set(i int, rec particles.Scalar4) {
	if v.f32 != nil {
		for j := 0; j < 4; j++ {
			v.f32[4*i+j] = float32(rec[j])
		}
		return
	}
	copy(v.f64[4*i:4*i+4], rec[:])
}
