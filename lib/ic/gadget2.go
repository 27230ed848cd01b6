package ic

import (
	"encoding/binary"
	"fmt"
	"os"
)

// gadget2Header has the same fields as the raw header of a Gadget-2 file.
// It is 256 bytes long.
type gadget2Header struct {
	NPart                                     [6]uint32
	Mass                                      [6]float64
	Time, Redshift                            float64
	FlagSfr, FlagFeedback                     int32
	NPartTotal                                [6]uint32
	FlagCooling, NumFiles                     int32
	BoxSize, Omega0, OmegaLambda, HubbleParam float64
	FlagStellarAge, HashTabSize               int32
	NPartTotalHW                              [6]uint32

	Padding [64]byte
}

// ReadGadget2 reads the header, positions, and velocities of a single-file
// Gadget-2 snapshot. Each particle's type is its Gadget-2 species. Any
// blocks after the velocities are ignored.
func ReadGadget2(fname string, order binary.ByteOrder) (*Snapshot, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("The file %s cannot be opened. The system "+
			"error is: \"%s\"", fname, err.Error())
	}
	defer f.Close()

	hd := &gadget2Header{}
	if err := readBlock(f, order, hd, "header"); err != nil {
		return nil, fmt.Errorf("%s is not a valid Gadget-2 file: %w", fname, err)
	}

	n := 0
	for i := range hd.NPart {
		n += int(hd.NPart[i])
	}

	x, v := make([][3]float32, n), make([][3]float32, n)
	if err := readBlock(f, order, x, "position"); err != nil {
		return nil, fmt.Errorf("Could not read %s: %w", fname, err)
	}
	if err := readBlock(f, order, v, "velocity"); err != nil {
		return nil, fmt.Errorf("Could not read %s: %w", fname, err)
	}

	s := &Snapshot{
		L: hd.BoxSize, Positions: make([][3]float64, n),
		Velocities: make([][3]float64, n), Types: make([]uint32, n),
	}
	i := 0
	for typ := range hd.NPart {
		for j := 0; j < int(hd.NPart[typ]); j++ {
			s.Types[i] = uint32(typ)
			if s.Mass == 0 {
				s.Mass = hd.Mass[typ]
			}
			i++
		}
	}
	for i := range x {
		for dim := 0; dim < 3; dim++ {
			s.Positions[i][dim] = float64(x[i][dim])
			s.Velocities[i][dim] = float64(v[i][dim])
		}
	}

	return s, nil
}

// WriteGadget2 writes s as a single-file Gadget-2 snapshot with position,
// velocity, and id blocks. Particles must be sorted by type.
func WriteGadget2(fname string, s *Snapshot, order binary.ByteOrder) error {
	hd := &gadget2Header{BoxSize: s.L, Time: 1, NumFiles: 1}
	for i := 0; i < s.N(); i++ {
		typ := uint32(0)
		if s.Types != nil {
			typ = s.Types[i]
		}
		if typ >= 6 || (i > 0 && s.Types != nil && typ < s.Types[i-1]) {
			return fmt.Errorf("Particle %d has type %d, but Gadget-2 needs "+
				"types 0 to 5 in sorted order.", i, typ)
		}
		hd.NPart[typ]++
		hd.NPartTotal[typ]++
		hd.Mass[typ] = s.Mass
	}

	x, v := make([][3]float32, s.N()), make([][3]float32, s.N())
	id := make([]uint32, s.N())
	for i := range x {
		for dim := 0; dim < 3; dim++ {
			x[i][dim] = float32(s.Positions[i][dim])
			if s.Velocities != nil {
				v[i][dim] = float32(s.Velocities[i][dim])
			}
		}
		id[i] = uint32(i)
	}

	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, block := range []interface{}{hd, x, v, id} {
		if err := writeBlock(f, order, block); err != nil {
			return err
		}
	}
	return f.Close()
}

// readBlock reads a Fortran-style block, with its leading and trailing
// uint32 sizes, into data.
func readBlock(f *os.File, order binary.ByteOrder, data interface{}, name string) error {
	want := uint32(binary.Size(data))
	head, tail := uint32(0), uint32(0)

	if err := binary.Read(f, order, &head); err != nil {
		return err
	}
	if head != want {
		return fmt.Errorf("the %s block should have %d bytes, but its "+
			"header says %d.", name, want, head)
	}
	if err := binary.Read(f, order, data); err != nil {
		return err
	}
	if err := binary.Read(f, order, &tail); err != nil {
		return err
	}
	if tail != head {
		return fmt.Errorf("the %s block's header and footer disagree: %d "+
			"and %d.", name, head, tail)
	}
	return nil
}

func writeBlock(f *os.File, order binary.ByteOrder, data interface{}) error {
	size := uint32(binary.Size(data))
	if err := binary.Write(f, order, size); err != nil {
		return err
	}
	if err := binary.Write(f, order, data); err != nil {
		return err
	}
	return binary.Write(f, order, size)
}
