/*package box implements periodic simulation boxes: minimum-image
displacements, wrapping positions back into the box and the geometry needed to
size neighbor-list cells.

Boxes follow the usual tilt-factor convention. The lattice vectors are

   a1 = (Lx, 0, 0)
   a2 = (xy*Ly, Ly, 0)
   a3 = (xz*Lz, yz*Lz, Lz)

so a box with zero tilts is an ordinary orthorhombic box.
*/
package box

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Box is a periodic, possibly triclinic, simulation box. It is immutable.
type Box struct {
	l          [3]float64
	xy, xz, yz float64

	h, hInv *mat.Dense
}

// Cubic returns a cubic box with side length L.
func Cubic(L float64) *Box {
	b, err := New(L, L, L, 0, 0, 0)
	if err != nil {
		panic(err.Error())
	}
	return b
}

// New returns a box with the given side lengths and tilt factors.
func New(lx, ly, lz, xy, xz, yz float64) (*Box, error) {
	if lx <= 0 || ly <= 0 || lz <= 0 {
		return nil, fmt.Errorf("Box side lengths must be positive, got "+
			"(%g, %g, %g).", lx, ly, lz)
	}

	b := &Box{l: [3]float64{lx, ly, lz}, xy: xy, xz: xz, yz: yz}
	// Columns are the lattice vectors.
	b.h = mat.NewDense(3, 3, []float64{
		lx, xy * ly, xz * lz,
		0, ly, yz * lz,
		0, 0, lz,
	})
	b.hInv = &mat.Dense{}
	if err := b.hInv.Inverse(b.h); err != nil {
		return nil, fmt.Errorf("Box matrix is singular: %w", err)
	}

	return b, nil
}

// L returns the side lengths of the box.
func (b *Box) L() [3]float64 { return b.l }

// Tilts returns the xy, xz and yz tilt factors.
func (b *Box) Tilts() (xy, xz, yz float64) { return b.xy, b.xz, b.yz }

// Triclinic returns true if any tilt factor is non-zero.
func (b *Box) Triclinic() bool { return b.xy != 0 || b.xz != 0 || b.yz != 0 }

// Matrix returns a copy of the 3x3 matrix whose columns are the lattice
// vectors.
func (b *Box) Matrix() *mat.Dense { return mat.DenseCopyOf(b.h) }

// Volume returns the volume of the box.
func (b *Box) Volume() float64 { return math.Abs(mat.Det(b.h)) }

// ErrNonFinite is returned when a position or displacement has an infinite or
// NaN component.
var ErrNonFinite = errors.New("non-finite coordinate")

// CheckFinite returns an error wrapping ErrNonFinite if any component of x is
// infinite or NaN.
func CheckFinite(x [3]float64) error {
	for dim := range x {
		if math.IsInf(x[dim], 0) || math.IsNaN(x[dim]) {
			return fmt.Errorf("%v: %w", x, ErrNonFinite)
		}
	}
	return nil
}

// MinImage maps a displacement onto its shortest periodic image. Each
// component is moved by a whole number of lattice vectors until it lies in
// [-L/2, L/2], starting with a3 so that the tilt corrections of the later
// vectors never push an earlier component out of range. A displacement which
// is already corrected is returned unchanged, so MinImage is idempotent.
//
// The number of images is computed directly, so the cost does not depend on
// how far apart the two points are. A displacement with a non-finite
// component has no image and gives NaN in every component; use CheckFinite to
// turn that into an error.
func (b *Box) MinImage(d [3]float64) [3]float64 {
	if CheckFinite(d) != nil {
		nan := math.NaN()
		return [3]float64{nan, nan, nan}
	}

	lx, ly, lz := b.l[0], b.l[1], b.l[2]

	if n, r := images(d[2], lz); n != 0 {
		d[0], d[1], d[2] = d[0]-n*b.xz*lz, d[1]-n*b.yz*lz, r
	}
	if n, r := images(d[1], ly); n != 0 {
		d[0], d[1] = d[0]-n*b.xy*ly, r
	}
	if n, r := images(d[0], lx); n != 0 {
		d[0] = r
	}

	return d
}

// images returns the number of box lengths, n, which must be subtracted from x
// to bring it into [-L/2, L/2] and the exact result, r. Points already in
// range, including both edges, need none.
func images(x, L float64) (n, r float64) {
	if math.Abs(x) <= L/2 {
		return 0, x
	}
	r = math.Remainder(x, L)
	return math.Round((x - r) / L), r
}

// Displacement returns the minimum-image displacement x1 - x2.
func (b *Box) Displacement(x1, x2 [3]float64) [3]float64 {
	return b.MinImage([3]float64{x1[0] - x2[0], x1[1] - x2[1], x1[2] - x2[2]})
}

// R2 returns the squared minimum-image distance between x1 and x2.
func (b *Box) R2(x1, x2 [3]float64) float64 {
	d := b.Displacement(x1, x2)
	return d[0]*d[0] + d[1]*d[1] + d[2]*d[2]
}

// Fraction converts a position to fractional coordinates, where the box
// spans [-0.5, 0.5) in every dimension.
func (b *Box) Fraction(x [3]float64) [3]float64 {
	v := mat.NewVecDense(3, []float64{x[0], x[1], x[2]})
	s := &mat.VecDense{}
	s.MulVec(b.hInv, v)
	return [3]float64{s.AtVec(0), s.AtVec(1), s.AtVec(2)}
}

// Coordinates is the inverse of Fraction.
func (b *Box) Coordinates(s [3]float64) [3]float64 {
	v := mat.NewVecDense(3, []float64{s[0], s[1], s[2]})
	x := &mat.VecDense{}
	x.MulVec(b.h, v)
	return [3]float64{x.AtVec(0), x.AtVec(1), x.AtVec(2)}
}

// Wrap maps a position back into the box, which is centered on the origin.
func (b *Box) Wrap(x [3]float64) [3]float64 {
	s := b.Fraction(x)
	for dim := range s {
		s[dim] -= math.Floor(s[dim] + 0.5)
	}
	return b.Coordinates(s)
}

// NearestPlaneDistance returns the distance between opposite faces of the box
// along each lattice direction. For an orthorhombic box this is just L.
func (b *Box) NearestPlaneDistance() [3]float64 {
	a := [3][3]float64{}
	for j := 0; j < 3; j++ {
		for i := 0; i < 3; i++ {
			a[j][i] = b.h.At(i, j)
		}
	}

	vol := b.Volume()
	out := [3]float64{}
	for dim := 0; dim < 3; dim++ {
		c := cross(a[(dim+1)%3], a[(dim+2)%3])
		out[dim] = vol / math.Sqrt(c[0]*c[0]+c[1]*c[1]+c[2]*c[2])
	}
	return out
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}
