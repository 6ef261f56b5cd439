// Package grid is an in-memory chunked voxel world. It serves the builder
// as its live grid and notifies subscribers of every content change.
package grid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"voxelbuild.ai/internal/sim/battery"
	"voxelbuild.ai/internal/sim/builder"
	"voxelbuild.ai/internal/sim/catalogs"
	"voxelbuild.ai/internal/sim/geom"
)

var (
	_ builder.Grid             = (*Grid)(nil)
	_ builder.ProgressReporter = (*Grid)(nil)
)

type listener struct {
	id int
	fn func(geom.Cell)
}

type Grid struct {
	cat    *catalogs.Catalogs
	gen    Gen
	chunks map[ChunkKey]*Chunk

	listeners []listener
	nextID    int
	damage    map[geom.Cell]int

	log zerolog.Logger
}

type Option func(*Grid)

func WithLogger(l zerolog.Logger) Option {
	return func(g *Grid) { g.log = l }
}

// DefaultGen resolves the usual block names against cat.
func DefaultGen(cat *catalogs.Catalogs, seed int64, groundY, sprinklePermille int) Gen {
	id := func(name string) uint16 {
		v, _ := cat.BlockID(name)
		return v
	}
	return Gen{
		Seed:             seed,
		GroundY:          groundY,
		MinY:             groundY - 64,
		MaxY:             groundY + 192,
		DirtDepth:        3,
		SprinklePermille: sprinklePermille,
		Air:              cat.AirID(),
		Stone:            id("STONE"),
		Dirt:             id("DIRT"),
		Sprinkle:         id("GRAVEL"),
	}
}

func New(cat *catalogs.Catalogs, gen Gen, opts ...Option) *Grid {
	g := &Grid{
		cat:    cat,
		gen:    gen,
		chunks: map[ChunkKey]*Chunk{},
		damage: map[geom.Cell]int{},
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Grid) Catalogs() *catalogs.Catalogs { return g.cat }

func (g *Grid) InBounds(c geom.Cell) bool {
	if c.Y < g.gen.MinY || c.Y > g.gen.MaxY {
		return false
	}
	if r := g.gen.BoundaryR; r > 0 {
		if c.X < -r || c.X > r || c.Z < -r || c.Z > r {
			return false
		}
	}
	return true
}

// ContainsBox reports whether every cell of b is in bounds.
func (g *Grid) ContainsBox(b geom.Box) bool {
	return g.InBounds(b.Min) && g.InBounds(b.Max)
}

func split(c geom.Cell) (ChunkKey, int, int, int) {
	k := ChunkKey{
		CX: geom.FloorDiv(c.X, ChunkSize),
		CY: geom.FloorDiv(c.Y, ChunkSize),
		CZ: geom.FloorDiv(c.Z, ChunkSize),
	}
	return k, geom.Mod(c.X, ChunkSize), geom.Mod(c.Y, ChunkSize), geom.Mod(c.Z, ChunkSize)
}

func (g *Grid) chunk(k ChunkKey) *Chunk {
	if ch, ok := g.chunks[k]; ok {
		return ch
	}
	ch := &Chunk{Key: k, Blocks: make([]uint16, chunkCells)}
	g.generate(ch)
	ch.dirty = true
	_ = ch.Digest()
	g.chunks[k] = ch
	return ch
}

func (g *Grid) Block(c geom.Cell) uint16 {
	if !g.InBounds(c) {
		return g.gen.Air
	}
	k, x, y, z := split(c)
	return g.chunk(k).Get(x, y, z)
}

func (g *Grid) BlockName(c geom.Cell) string {
	return g.cat.BlockName(g.Block(c))
}

// SetBlock writes id at c and notifies subscribers when the content changed.
// Out-of-bounds writes are ignored.
func (g *Grid) SetBlock(c geom.Cell, id uint16) {
	if !g.InBounds(c) {
		return
	}
	k, x, y, z := split(c)
	if !g.chunk(k).Set(x, y, z, id) {
		return
	}
	delete(g.damage, c)
	g.notify(c)
}

func (g *Grid) Set(c geom.Cell, name string) error {
	id, ok := g.cat.BlockID(name)
	if !ok {
		return fmt.Errorf("unknown block %q", name)
	}
	if !g.InBounds(c) {
		return fmt.Errorf("cell %v out of bounds", c)
	}
	g.SetBlock(c, id)
	return nil
}

// Fill sets every cell of b to name.
func (g *Grid) Fill(b geom.Box, name string) error {
	for _, c := range b.Cells() {
		if err := g.Set(c, name); err != nil {
			return err
		}
	}
	return nil
}

func (g *Grid) notify(c geom.Cell) {
	for _, l := range g.listeners {
		l.fn(c)
	}
}

// Subscribe registers fn for every content change. Listeners run in
// registration order on the goroutine that mutates the grid.
func (g *Grid) Subscribe(fn func(geom.Cell)) func() {
	id := g.nextID
	g.nextID++
	g.listeners = append(g.listeners, listener{id: id, fn: fn})
	return func() {
		for i, l := range g.listeners {
			if l.id == id {
				g.listeners = append(g.listeners[:i:i], g.listeners[i+1:]...)
				return
			}
		}
	}
}

func (g *Grid) IsEmpty(c geom.Cell) bool { return g.Block(c) == g.gen.Air }

func (g *Grid) IsFluid(c geom.Cell) bool {
	def, ok := g.cat.Block(g.BlockName(c))
	return ok && def.Fluid
}

// Resistance is the energy needed to clear c: 32 MJ per hardness step above
// -1. Empty cells cost nothing.
func (g *Grid) Resistance(c geom.Cell) uint64 {
	id := g.Block(c)
	if id == g.gen.Air {
		return 0
	}
	def, ok := g.cat.Block(g.cat.BlockName(id))
	if !ok || !def.Breakable || def.Hardness < 0 {
		return builder.Unbreakable
	}
	return uint64(float64(16*battery.MJ) * (def.Hardness + 1) * 2)
}

func (g *Grid) Destroy(c geom.Cell) {
	g.log.Debug().Stringer("pos", c).Str("block", g.BlockName(c)).Msg("destroy")
	g.SetBlock(c, g.gen.Air)
}

func (g *Grid) ReportBreakProgress(c geom.Cell, stage int) {
	if stage < 0 {
		delete(g.damage, c)
		return
	}
	g.damage[c] = stage
}

// DamageStage returns the reported break stage at c, or -1.
func (g *Grid) DamageStage(c geom.Cell) int {
	if s, ok := g.damage[c]; ok {
		return s
	}
	return -1
}

// Damage returns a copy of the reported break stages.
func (g *Grid) Damage() map[geom.Cell]int {
	out := make(map[geom.Cell]int, len(g.damage))
	for k, v := range g.damage {
		out[k] = v
	}
	return out
}

func (g *Grid) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(g.chunks))
	for k := range g.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}

// Digest hashes the loaded chunk digests in key order.
func (g *Grid) Digest() string {
	h := sha256.New()
	for _, k := range g.LoadedChunkKeys() {
		d := g.chunks[k].Digest()
		fmt.Fprintf(h, "%d,%d,%d:", k.CX, k.CY, k.CZ)
		h.Write(d[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
