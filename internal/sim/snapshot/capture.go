package snapshot

import (
	"fmt"

	"voxelbuild.ai/internal/sim/geom"
	"voxelbuild.ai/internal/sim/schematic"
)

// Region is what a capture records: the box and the origin it is stored
// relative to.
type Region struct {
	Box    geom.Box
	Origin geom.Cell
	Facing int
}

func (r Region) base(h Header) Base {
	return Base{
		Header: h,
		Size:   r.Box.Size(),
		Facing: geom.NormalizeRotation(r.Facing),
		Offset: r.Box.Min.Sub(r.Origin),
	}
}

// CaptureTemplate marks every non-empty cell of the region.
func CaptureTemplate(w schematic.World, h Header, r Region) *Template {
	t := NewTemplate(h, r.Box.Size())
	t.Base = r.base(t.Header)
	for _, c := range r.Box.Cells() {
		if !w.IsEmpty(c) {
			t.Set(c.Sub(r.Box.Min), true)
		}
	}
	return t
}

// CaptureBlueprint records the schematic of every cell of the region.
func CaptureBlueprint(ctx schematic.Context, reg schematic.Registry, h Header, r Region) (*Blueprint, error) {
	b := NewBlueprint(h, r.Box.Size())
	b.Base = r.base(b.Header)
	for _, c := range r.Box.Cells() {
		blk, err := reg.Capture(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("capture blueprint: %w", err)
		}
		b.Set(c.Sub(r.Box.Min), blk)
	}
	return b, nil
}
