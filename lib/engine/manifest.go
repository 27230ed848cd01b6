package engine

import (
	"fmt"
	"os"

	"github.com/sugawarayuuta/sonnet"

	"github.com/darmis007/hoomd-tf/lib/buffer"
	"github.com/darmis007/hoomd-tf/lib/handoff"
	"github.com/darmis007/hoomd-tf/lib/nlist"
	"github.com/darmis007/hoomd-tf/lib/particles"
)

// RegionInfo locates one region. Addr is a 64-bit base address which is only
// meaningful inside the process that made the mapping.
type RegionInfo struct {
	Token      uint64 `json:"token"`
	Addr       uint64 `json:"addr"`
	Records    int    `json:"records"`
	RecordSize int    `json:"record_size"`
}

// Manifest is the JSON description of a handoff.Layout.
type Manifest struct {
	N           int    `json:"n"`
	NNeighs     int    `json:"nneighs"`
	Precision   string `json:"precision"`
	Schema      string `json:"schema,omitempty"`
	StorageMode string `json:"storage_mode,omitempty"`

	Input    RegionInfo  `json:"input"`
	Output   RegionInfo  `json:"output"`
	Neighbor *RegionInfo `json:"neighbor,omitempty"`
}

func regionInfo(r *buffer.Region) RegionInfo {
	return RegionInfo{
		Token: r.Token(), Addr: r.Addr(), Records: r.Cap(),
		RecordSize: r.RecordSize(),
	}
}

// NewManifest describes l.
func NewManifest(l handoff.Layout) *Manifest {
	m := &Manifest{
		N: l.N, NNeighs: l.NNeighs, Precision: l.Precision.String(),
		Input: regionInfo(l.Input), Output: regionInfo(l.Output),
	}
	if l.Neighbor != nil {
		info := regionInfo(l.Neighbor)
		m.Neighbor = &info
		m.Schema, m.StorageMode = l.Schema.String(), l.Mode.String()
	}
	return m
}

// Marshal encodes the manifest as JSON.
func (m *Manifest) Marshal() ([]byte, error) { return sonnet.Marshal(m) }

// ReadManifest decodes a manifest written by Marshal.
func ReadManifest(data []byte) (*Manifest, error) {
	m := &Manifest{}
	if err := sonnet.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("Could not parse manifest: %w", err)
	}
	return m, nil
}

// Resolve turns a manifest back into a Layout using the regions in reg.
// Regions are looked up by address when one is given and by token otherwise,
// and their sizes must agree with the manifest.
func (m *Manifest) Resolve(reg *buffer.Registry) (handoff.Layout, error) {
	prec, err := particles.ParsePrecision(m.Precision)
	if err != nil {
		return handoff.Layout{}, err
	}
	l := handoff.Layout{N: m.N, NNeighs: m.NNeighs, Precision: prec}

	if l.Input, err = resolveRegion(reg, "input", m.Input); err != nil {
		return handoff.Layout{}, err
	}
	if l.Output, err = resolveRegion(reg, "output", m.Output); err != nil {
		return handoff.Layout{}, err
	}
	if m.Neighbor != nil {
		if l.Neighbor, err = resolveRegion(reg, "neighbor", *m.Neighbor); err != nil {
			return handoff.Layout{}, err
		}
		if l.Schema, err = nlist.ParseSchema(m.Schema); err != nil {
			return handoff.Layout{}, err
		}
		if l.Mode, err = nlist.ParseStorageMode(m.StorageMode); err != nil {
			return handoff.Layout{}, err
		}
	}

	return l, nil
}

func resolveRegion(
	reg *buffer.Registry, name string, info RegionInfo,
) (*buffer.Region, error) {
	var (
		r   *buffer.Region
		err error
	)
	if info.Addr != 0 {
		r, err = reg.ResolveAddr(info.Addr)
	} else {
		r, err = reg.Resolve(info.Token)
	}
	if err != nil {
		return nil, fmt.Errorf("Could not resolve %s region: %w", name, err)
	}

	if r.Cap() != info.Records || r.RecordSize() != info.RecordSize {
		return nil, fmt.Errorf("Manifest says the %s region holds %d "+
			"records of %d bytes, but it holds %d records of %d bytes.",
			name, info.Records, info.RecordSize, r.Cap(), r.RecordSize())
	}
	return r, nil
}

// Announce wraps an Engine and writes the manifest to Path every time the
// regions are reallocated, before the wrapped engine is restarted.
type Announce struct {
	handoff.Engine
	Path string
}

func (a *Announce) OnRestart(l handoff.Layout) error {
	data, err := NewManifest(l).Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(a.Path, data, 0644); err != nil {
		return fmt.Errorf("Could not write manifest: %w", err)
	}
	return a.Engine.OnRestart(l)
}
