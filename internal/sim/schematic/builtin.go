package schematic

import (
	"fmt"

	"voxelbuild.ai/internal/sim/catalogs"
	"voxelbuild.ai/internal/sim/geom"
	"voxelbuild.ai/internal/sim/inventory"
)

const (
	KindAir   = "air"
	KindFluid = "fluid"
	KindBlock = "block"
)

// AirBlock marks a cell that must end up empty.
type AirBlock struct{}

func (AirBlock) Kind() string                                           { return KindAir }
func (AirBlock) Init(Context, geom.Cell) error                          { return nil }
func (AirBlock) RequiredItems(*catalogs.Catalogs) []inventory.ItemStack { return nil }
func (AirBlock) CanBuild(Context, geom.Cell) bool                       { return false }
func (AirBlock) Build(Context, geom.Cell) bool                          { return false }
func (AirBlock) IsBuilt(ctx Context, pos geom.Cell) bool                { return ctx.World.IsEmpty(pos) }
func (AirBlock) State() map[string]string                               { return nil }
func (AirBlock) SetState(map[string]string) error                       { return nil }

// SolidBlock places one block, paid for with the item that places it.
type SolidBlock struct {
	Name string
}

func (b *SolidBlock) Kind() string { return KindBlock }

func (b *SolidBlock) Init(ctx Context, pos geom.Cell) error {
	b.Name = ctx.World.BlockName(pos)
	return nil
}

func (b *SolidBlock) RequiredItems(cat *catalogs.Catalogs) []inventory.ItemStack {
	item, ok := cat.ItemForBlock(b.Name)
	if !ok {
		return nil
	}
	return []inventory.ItemStack{{Item: item, Count: 1}}
}

func (b *SolidBlock) CanBuild(ctx Context, pos geom.Cell) bool { return ctx.World.IsEmpty(pos) }

func (b *SolidBlock) Build(ctx Context, pos geom.Cell) bool {
	return ctx.World.Set(pos, b.Name) == nil
}

func (b *SolidBlock) IsBuilt(ctx Context, pos geom.Cell) bool {
	return ctx.World.BlockName(pos) == b.Name
}

func (b *SolidBlock) State() map[string]string { return map[string]string{"block": b.Name} }

func (b *SolidBlock) SetState(st map[string]string) error {
	name := st["block"]
	if name == "" {
		return fmt.Errorf("missing block")
	}
	b.Name = name
	return nil
}

// FluidBlock is a fluid source, poured from its bucket. Flowing neighbours
// count as built only once they hold the same fluid.
type FluidBlock struct {
	SolidBlock
}

func (b *FluidBlock) Kind() string { return KindFluid }

func (b *FluidBlock) CanBuild(ctx Context, pos geom.Cell) bool {
	name := ctx.World.BlockName(pos)
	if name == b.Name {
		return false
	}
	if ctx.World.IsEmpty(pos) {
		return true
	}
	def, ok := ctx.Catalogs.Block(name)
	return ok && def.Fluid
}
