package snapshot

import "voxelbuild.ai/internal/sim/geom"

// Template records only which cells are filled; any placeable item fills
// them.
type Template struct {
	Base
	Bits []uint64
}

func NewTemplate(h Header, size geom.Cell) *Template {
	h.Type = TypeTemplate
	t := &Template{Base: Base{Header: h, Size: size}}
	t.Bits = make([]uint64, (t.Volume()+63)/64)
	return t
}

func (t *Template) Meta() *Base { return &t.Base }

func (t *Template) has(i int) bool { return t.Bits[i/64]&(1<<(uint(i)%64)) != 0 }

func (t *Template) Has(local geom.Cell) bool { return t.has(t.index(local)) }

func (t *Template) Set(local geom.Cell, filled bool) {
	i := t.index(local)
	if filled {
		t.Bits[i/64] |= 1 << (uint(i) % 64)
	} else {
		t.Bits[i/64] &^= 1 << (uint(i) % 64)
	}
}

func (t *Template) Filled() int {
	n := 0
	for i := 0; i < t.Volume(); i++ {
		if t.has(i) {
			n++
		}
	}
	return n
}

func (t *Template) Info(origin geom.Cell, rot int) BuildingInfo {
	return newInfo(&t.Base, origin, rot, t.has)
}
