/*package eq is a simple package for telling whether two arrays are equal to
one another. Record comparisons are bitwise, so tags and NaN sentinels stored
in the fourth word compare correctly.*/
package eq

import (
	"math"

	"github.com/darmis007/hoomd-tf/lib/particles"
)

// Slices returns true if two arrays have the same values and false otherwise.
func Slices[T comparable](x, y []T) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// Int64s returns true if two []int64 arrays are the same and false otherwise.
func Int64s(x, y []int64) bool { return Slices(x, y) }

// Bytes returns true if two []byte arrays are the same and false otherwise.
func Bytes(x, y []byte) bool { return Slices(x, y) }

// Records returns true if every word of every record in x has the same bits
// as the corresponding word in y.
func Records(x, y []particles.Scalar4) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		for j := 0; j < 4; j++ {
			if math.Float64bits(x[i][j]) != math.Float64bits(y[i][j]) {
				return false
			}
		}
	}
	return true
}

// Vec64s returns true if the first three words of each record in x are
// within eps of the vectors in y.
func Vec64s(x []particles.Scalar4, y [][3]float64, eps float64) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		for dim := 0; dim < 3; dim++ {
			if math.Abs(x[i][dim]-y[i][dim]) > eps {
				return false
			}
		}
	}
	return true
}
