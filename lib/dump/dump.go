/*package dump writes and reads compressed copies of the shared regions at
selected timesteps. A frame holds the positions handed to the engine, the
forces it wrote back, and the neighbor slots if there were any.

Each frame is its own file:

   uint32 MagicNumber
   uint32 Version
   frameHeader
   one blockHeader + zstd payload per block

Payloads are the block's records as four 64-bit floats each, widened from
float32 if needed, in the byte order named by the magic number.
*/
package dump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/DataDog/zstd"
	"go.uber.org/zap"

	"github.com/darmis007/hoomd-tf/lib/format"
	"github.com/darmis007/hoomd-tf/lib/handoff"
	"github.com/darmis007/hoomd-tf/lib/particles"
)

const (
	// MagicNumber is an arbitrary number at the start of every dump file.
	MagicNumber = 0x70f0cafe
	// ReverseMagicNumber is the magic number if read on a machine with
	// flipped endianness.
	ReverseMagicNumber = 0xfecaf070
	Version            = 1

	// DefaultLevel is the zstd compression level used when none is given.
	DefaultLevel = 1
)

// Block kinds.
const (
	positionBlock uint32 = iota
	forceBlock
	neighborBlock
)

// Frame is a copy of the regions at one timestep.
type Frame struct {
	Timestep  int64
	NNeighs   int
	Precision particles.Precision

	Positions, Forces, Neighbors []particles.Scalar4
}

// FromLayout copies the regions described by l into a new Frame.
func FromLayout(timestep int64, l handoff.Layout) *Frame {
	f := &Frame{
		Timestep: timestep, NNeighs: l.NNeighs, Precision: l.Precision,
		Positions: l.Input.Records()[:l.N],
		Forces:    l.Output.Records()[:l.N],
	}
	if l.Neighbor != nil {
		f.Neighbors = l.Neighbor.Records()
	}
	return f
}

type frameHeader struct {
	Timestep int64
	NNeighs  int64
	WordSize uint32
	NBlocks  uint32
}

type block struct {
	kind uint32
	recs []particles.Scalar4
}

type blockHeader struct {
	Kind            uint32
	Records         int64
	CompressedBytes int64
}

// Write writes f to w with the given byte order and zstd level.
func Write(w io.Writer, f *Frame, order binary.ByteOrder, level int) error {
	blocks := []block{{positionBlock, f.Positions}, {forceBlock, f.Forces}}
	if f.Neighbors != nil {
		blocks = append(blocks, block{neighborBlock, f.Neighbors})
	}

	hd := frameHeader{
		Timestep: f.Timestep, NNeighs: int64(f.NNeighs),
		WordSize: uint32(f.Precision.WordSize()), NBlocks: uint32(len(blocks)),
	}
	if err := binary.Write(w, order, uint32(MagicNumber)); err != nil {
		return err
	}
	if err := binary.Write(w, order, uint32(Version)); err != nil {
		return err
	}
	if err := binary.Write(w, order, hd); err != nil {
		return err
	}

	raw := &bytes.Buffer{}
	for _, b := range blocks {
		raw.Reset()
		if err := binary.Write(raw, order, b.recs); err != nil {
			return err
		}
		var comp []byte
		if raw.Len() > 0 {
			var err error
			comp, err = zstd.CompressLevel(nil, raw.Bytes(), level)
			if err != nil {
				return fmt.Errorf("Could not compress block %d: %w", b.kind, err)
			}
		}

		bh := blockHeader{b.kind, int64(len(b.recs)), int64(len(comp))}
		if err := binary.Write(w, order, bh); err != nil {
			return err
		}
		if _, err := w.Write(comp); err != nil {
			return err
		}
	}

	return nil
}

// Read reads a frame written by Write. The byte order is detected from the
// magic number.
func Read(r io.Reader) (*Frame, error) {
	var order binary.ByteOrder = binary.LittleEndian
	magic, version := uint32(0), uint32(0)
	if err := binary.Read(r, order, &magic); err != nil {
		return nil, err
	}
	switch magic {
	case MagicNumber:
	case ReverseMagicNumber:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("This is not a dump file: its magic number "+
			"is 0x%x.", magic)
	}
	if err := binary.Read(r, order, &version); err != nil {
		return nil, err
	}
	if version != Version {
		return nil, fmt.Errorf("Dump file has version %d, but only "+
			"version %d can be read.", version, Version)
	}

	hd := frameHeader{}
	if err := binary.Read(r, order, &hd); err != nil {
		return nil, err
	}
	f := &Frame{Timestep: hd.Timestep, NNeighs: int(hd.NNeighs)}
	switch hd.WordSize {
	case 8:
		f.Precision = particles.Float64
	case 4:
		f.Precision = particles.Float32
	default:
		return nil, fmt.Errorf("Dump file has word size %d.", hd.WordSize)
	}

	for i := uint32(0); i < hd.NBlocks; i++ {
		bh := blockHeader{}
		if err := binary.Read(r, order, &bh); err != nil {
			return nil, err
		}
		if bh.Records < 0 || bh.CompressedBytes < 0 ||
			bh.Records > math.MaxInt32 {
			return nil, fmt.Errorf("Block %d has a corrupted header.", i)
		}

		comp := make([]byte, bh.CompressedBytes)
		if _, err := io.ReadFull(r, comp); err != nil {
			return nil, err
		}
		var raw []byte
		if len(comp) > 0 {
			var err error
			raw, err = zstd.Decompress(nil, comp)
			if err != nil {
				return nil, fmt.Errorf("Could not decompress block %d: %w", i, err)
			}
		}
		if int64(len(raw)) != 32*bh.Records {
			return nil, fmt.Errorf("Block %d should hold %d records, but "+
				"decompresses to %d bytes.", i, bh.Records, len(raw))
		}

		recs := make([]particles.Scalar4, bh.Records)
		if err := binary.Read(bytes.NewReader(raw), order, recs); err != nil {
			return nil, err
		}

		switch bh.Kind {
		case positionBlock:
			f.Positions = recs
		case forceBlock:
			f.Forces = recs
		case neighborBlock:
			f.Neighbors = recs
		default:
			return nil, fmt.Errorf("Block %d has unknown kind %d.", i, bh.Kind)
		}
	}

	return f, nil
}

// ReadFile reads the frame stored in fname.
func ReadFile(fname string) (*Frame, error) {
	fp, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return Read(fp)
}

// Dumper writes a frame file for every step in Steps. Pattern is a printf
// format with a single integer verb for the timestep,
// e.g. "frames/step_%08d.dump".
type Dumper struct {
	Steps   *format.Selection
	Pattern string
	Level   int
	Order   binary.ByteOrder
	Log     *zap.Logger
}

// Wants returns true if timestep should be dumped.
func (d *Dumper) Wants(timestep int64) bool {
	return d != nil && d.Pattern != "" && d.Steps.Contains(timestep)
}

// Dump writes the regions of l if timestep is selected, and returns the name
// of the file written, or "" if nothing was.
func (d *Dumper) Dump(timestep int64, l handoff.Layout) (string, error) {
	if !d.Wants(timestep) {
		return "", nil
	}

	order, level := d.Order, d.Level
	if order == nil {
		order = binary.LittleEndian
	}
	if level == 0 {
		level = DefaultLevel
	}

	fname := fmt.Sprintf(d.Pattern, timestep)
	fp, err := os.Create(fname)
	if err != nil {
		return "", err
	}
	defer fp.Close()

	if err := Write(fp, FromLayout(timestep, l), order, level); err != nil {
		return "", fmt.Errorf("Could not write dump %s: %w", fname, err)
	}
	if d.Log != nil {
		d.Log.Debug("wrote dump", zap.Int64("timestep", timestep),
			zap.String("file", fname), zap.Int("particles", l.N))
	}
	return fname, fp.Close()
}
