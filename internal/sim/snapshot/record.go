package snapshot

import (
	"fmt"

	"voxelbuild.ai/internal/sim/encoding"
	"voxelbuild.ai/internal/sim/geom"
	"voxelbuild.ai/internal/sim/schematic"
)

type PaletteEntry struct {
	Kind  string            `msgpack:"kind"`
	State map[string]string `msgpack:"state,omitempty"`
}

// Record is the stored body of a snapshot.
type Record struct {
	Size    [3]int         `msgpack:"size"`
	Facing  int            `msgpack:"facing"`
	Offset  [3]int         `msgpack:"offset"`
	Bits    []uint64       `msgpack:"bits,omitempty"`
	Palette []PaletteEntry `msgpack:"palette,omitempty"`
	Width   uint8          `msgpack:"width,omitempty"`
	Indices []byte         `msgpack:"indices,omitempty"`
}

func ToRecord(s Snapshot) (Record, error) {
	m := s.Meta()
	r := Record{Size: m.Size.Array(), Facing: m.Facing, Offset: m.Offset.Array()}
	switch v := s.(type) {
	case *Template:
		r.Bits = append([]uint64(nil), v.Bits...)
	case *Blueprint:
		for _, b := range v.Palette {
			r.Palette = append(r.Palette, PaletteEntry{Kind: b.Kind(), State: b.State()})
		}
		w := encoding.WidthFor(len(v.Palette))
		raw, err := encoding.PutIndices(w, v.Indices)
		if err != nil {
			return Record{}, fmt.Errorf("blueprint indices: %w", err)
		}
		r.Width = uint8(w)
		r.Indices = raw
	default:
		return Record{}, fmt.Errorf("snapshot: unsupported %T", s)
	}
	return r, nil
}

func FromRecord(h Header, r Record, reg schematic.Registry) (Snapshot, error) {
	base := Base{Header: h, Size: geom.FromArray(r.Size), Facing: geom.NormalizeRotation(r.Facing), Offset: geom.FromArray(r.Offset)}
	if err := base.validate(); err != nil {
		return nil, err
	}
	switch h.Type {
	case TypeTemplate:
		t := &Template{Base: base, Bits: r.Bits}
		if len(t.Bits) != (t.Volume()+63)/64 {
			return nil, fmt.Errorf("template %s: %d bit words for %v", h.ID, len(t.Bits), base.Size)
		}
		return t, nil
	default:
		b := &Blueprint{Base: base}
		for i, e := range r.Palette {
			blk, err := reg.Restore(e.Kind, e.State)
			if err != nil {
				return nil, fmt.Errorf("blueprint %s palette %d: %w", h.ID, i, err)
			}
			b.Palette = append(b.Palette, blk)
		}
		if len(b.Palette) == 0 {
			return nil, fmt.Errorf("blueprint %s: empty palette", h.ID)
		}
		if w := encoding.IndexWidth(r.Width); w != encoding.WidthFor(len(b.Palette)) {
			return nil, fmt.Errorf("blueprint %s: index width %d for %d entries", h.ID, r.Width, len(b.Palette))
		}
		idx, err := encoding.Indices(encoding.IndexWidth(r.Width), r.Indices, b.Volume())
		if err != nil {
			return nil, fmt.Errorf("blueprint %s: %w", h.ID, err)
		}
		for i, v := range idx {
			if int(v) >= len(b.Palette) {
				return nil, fmt.Errorf("blueprint %s: index %d at %d out of palette", h.ID, v, i)
			}
		}
		b.Indices = idx
		return b, nil
	}
}
