package snapshot

import (
	"voxelbuild.ai/internal/sim/geom"
	"voxelbuild.ai/internal/sim/schematic"
)

// Blueprint records a schematic per cell through a deduplicated palette.
type Blueprint struct {
	Base
	Palette []schematic.Block
	Indices []uint32
}

func NewBlueprint(h Header, size geom.Cell) *Blueprint {
	h.Type = TypeBlueprint
	b := &Blueprint{Base: Base{Header: h, Size: size}}
	b.Palette = []schematic.Block{schematic.AirBlock{}}
	b.Indices = make([]uint32, b.Volume())
	return b
}

func (b *Blueprint) Meta() *Base { return &b.Base }

func (b *Blueprint) At(local geom.Cell) schematic.Block {
	return b.Palette[b.Indices[b.index(local)]]
}

// Set stores blk at local, reusing an equal palette entry when one exists.
func (b *Blueprint) Set(local geom.Cell, blk schematic.Block) {
	key := schematic.Key(blk)
	idx := -1
	for i, p := range b.Palette {
		if schematic.Key(p) == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = len(b.Palette)
		b.Palette = append(b.Palette, blk)
	}
	b.Indices[b.index(local)] = uint32(idx)
}

func (b *Blueprint) isAir(i int) bool {
	return b.Palette[b.Indices[i]].Kind() == schematic.KindAir
}

func (b *Blueprint) Info(origin geom.Cell, rot int) BuildingInfo {
	return newInfo(&b.Base, origin, rot, func(i int) bool { return !b.isAir(i) })
}
