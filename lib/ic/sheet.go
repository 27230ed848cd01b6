package ic

import (
	"fmt"

	"github.com/phil-mansfield/gotetra/render/geom"
	"github.com/phil-mansfield/gotetra/render/io"
)

// ReadSheet reads the positions and velocities of one gotetra sheet segment.
// Sheet files store a GridWidth^3 grid whose outer shell overlaps the
// neighboring segments, so only the inner SegmentWidth^3 particles are kept.
func ReadSheet(fname string) (*Snapshot, error) {
	hd := &io.SheetHeader{}
	if err := io.ReadSheetHeaderAt(fname, hd); err != nil {
		return nil, fmt.Errorf("Could not read sheet header of %s: %w", fname, err)
	}

	gw, sw := int(hd.GridWidth), int(hd.SegmentWidth)
	if sw > gw || sw < 0 {
		return nil, fmt.Errorf("Sheet %s has segment width %d but grid "+
			"width %d.", fname, sw, gw)
	}

	xg, vg := make([]geom.Vec, gw*gw*gw), make([]geom.Vec, gw*gw*gw)
	if err := io.ReadSheetPositionsAt(fname, xg); err != nil {
		return nil, fmt.Errorf("Could not read sheet positions of %s: %w", fname, err)
	}
	if err := io.ReadSheetVelocitiesAt(fname, vg); err != nil {
		return nil, fmt.Errorf("Could not read sheet velocities of %s: %w", fname, err)
	}

	grid, seg := ZMajorUnigrid{gw}, ZMajorUnigrid{sw}
	n := sw * sw * sw
	s := &Snapshot{
		L: hd.TotalWidth, Mass: hd.Mass,
		Positions: make([][3]float64, n), Velocities: make([][3]float64, n),
	}
	for i := 0; i < n; i++ {
		ig := grid.CellToIndex(seg.IndexToCell(i))
		for dim := 0; dim < 3; dim++ {
			s.Positions[i][dim] = wrap(float64(xg[ig][dim]), s.L)
			s.Velocities[i][dim] = float64(vg[ig][dim])
		}
	}

	return s, nil
}
