/*package particles contains the per-particle records which are shared with the
external engine and the host-side store which owns them between steps.

Every record is four words wide: three coordinates and one word which either
holds a scalar (e.g. the potential energy slot of a force record) or an
integer tag (the particle type) stored by bit reinterpretation. Tags are
never converted numerically: the float which holds tag 3 is a denormal whose
low bits are 3, not the value 3.0.
*/
package particles

import (
	"fmt"
	"math"
)

// Scalar4 is a single host-side record: x, y, z and the fourth word.
type Scalar4 [4]float64

// Precision is the word width used inside the shared buffers.
type Precision int

const (
	Float64 Precision = iota
	Float32
)

// WordSize returns the size of one word in bytes.
func (p Precision) WordSize() int {
	if p == Float32 {
		return 4
	}
	return 8
}

// RecordSize returns the size of one four-word record in bytes.
func (p Precision) RecordSize() int { return 4 * p.WordSize() }

func (p Precision) String() string {
	switch p {
	case Float64:
		return "float64"
	case Float32:
		return "float32"
	}
	return fmt.Sprintf("Precision(%d)", int(p))
}

// ParsePrecision converts the strings used in config files ("float64",
// "double", "float32", "single") to a Precision.
func ParsePrecision(s string) (Precision, error) {
	switch s {
	case "float64", "double", "f64", "":
		return Float64, nil
	case "float32", "single", "f32":
		return Float32, nil
	}
	return Float64, fmt.Errorf("'%s' is not a recognized precision. Only "+
		"'float64' and 'float32' are valid.", s)
}

// TagAsScalar stores an integer tag in a float64 word by reinterpreting its
// bits. The tag occupies the low 32 bits.
func TagAsScalar(tag uint32) float64 {
	return math.Float64frombits(uint64(tag))
}

// ScalarAsTag is the inverse of TagAsScalar.
func ScalarAsTag(w float64) uint32 {
	return uint32(math.Float64bits(w))
}

// TagAsScalar32 stores an integer tag in a float32 word by reinterpreting its
// bits.
func TagAsScalar32(tag uint32) float32 { return math.Float32frombits(tag) }

// ScalarAsTag32 is the inverse of TagAsScalar32.
func ScalarAsTag32(w float32) uint32 { return math.Float32bits(w) }

// Type returns the type tag stored in a position record.
func (r Scalar4) Type() uint32 { return ScalarAsTag(r[3]) }

// Vec returns the first three words of the record.
func (r Scalar4) Vec() [3]float64 { return [3]float64{r[0], r[1], r[2]} }

// Position creates a position record with the given coordinates and type.
func Position(x [3]float64, typ uint32) Scalar4 {
	return Scalar4{x[0], x[1], x[2], TagAsScalar(typ)}
}

// PositionStore gives bulk read access to positions and types. The returned
// slice has exactly N() records and is indexed by particle index.
type PositionStore interface {
	N() int
	Positions() []Scalar4
}

// ForceStore gives bulk write access to the force accumulator. The fourth
// word of each force record is the per-particle potential energy.
type ForceStore interface {
	N() int
	Forces() []Scalar4
}

// CountObserver is notified whenever the number of particles changes.
type CountObserver interface {
	OnParticleCountChanged(n int)
}

// ObserverFunc lets an ordinary function act as a CountObserver.
type ObserverFunc func(n int)

func (f ObserverFunc) OnParticleCountChanged(n int) { f(n) }

// Store is everything the controller needs from the host's particle data.
type Store interface {
	PositionStore
	ForceStore
	// Subscribe registers an observer for particle-count changes. The
	// returned function removes it again.
	Subscribe(o CountObserver) (cancel func())
}

// Type assertions
var (
	_ Store         = &System{}
	_ CountObserver = ObserverFunc(nil)
)
