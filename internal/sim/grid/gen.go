package grid

import "voxelbuild.ai/internal/sim/geom"

// Gen describes a flat world: stone below, a few layers of dirt, and a
// deterministic sprinkle of loose blocks on the surface.
type Gen struct {
	Seed int64
	// GroundY is the first air layer.
	GroundY int
	// BoundaryR limits x and z to [-R, R]; 0 means unbounded.
	BoundaryR int
	MinY      int
	MaxY      int

	DirtDepth        int
	SprinklePermille int

	Air      uint16
	Stone    uint16
	Dirt     uint16
	Sprinkle uint16
}

func clampPermille(v int) uint64 {
	if v < 0 {
		return 0
	}
	if v > 1000 {
		return 1000
	}
	return uint64(v)
}

func (g *Grid) generate(ch *Chunk) {
	for y := 0; y < ChunkSize; y++ {
		for z := 0; z < ChunkSize; z++ {
			for x := 0; x < ChunkSize; x++ {
				c := geom.Cell{
					X: ch.Key.CX*ChunkSize + x,
					Y: ch.Key.CY*ChunkSize + y,
					Z: ch.Key.CZ*ChunkSize + z,
				}
				ch.Blocks[index(x, y, z)] = g.genBlock(c)
			}
		}
	}
}

func (g *Grid) genBlock(c geom.Cell) uint16 {
	gen := &g.gen
	if !g.InBounds(c) {
		return gen.Air
	}
	switch {
	case c.Y < gen.GroundY-gen.DirtDepth:
		return gen.Stone
	case c.Y < gen.GroundY:
		return gen.Dirt
	case c.Y == gen.GroundY:
		if geom.Hash3(gen.Seed+999, c)%1000 < clampPermille(gen.SprinklePermille) {
			return gen.Sprinkle
		}
	}
	return gen.Air
}
