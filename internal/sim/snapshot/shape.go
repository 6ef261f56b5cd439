package snapshot

import (
	"voxelbuild.ai/internal/sim/builder"
	"voxelbuild.ai/internal/sim/catalogs"
	"voxelbuild.ai/internal/sim/geom"
	"voxelbuild.ai/internal/sim/inventory"
	"voxelbuild.ai/internal/sim/schematic"
)

var (
	_ builder.Shape = (*TemplateShape)(nil)
	_ builder.Shape = (*BlueprintShape)(nil)
)

// TemplateShape fills the template's cells with whatever placeable blocks
// the inventory holds and clears the rest of the region.
type TemplateShape struct {
	info     BuildingInfo
	world    schematic.World
	cat      *catalogs.Catalogs
	inv      *inventory.Inventory
	toPlace  map[geom.Cell]struct{}
	excavate bool
}

func NewTemplateShape(t *Template, origin geom.Cell, facing int, w schematic.World, cat *catalogs.Catalogs, inv *inventory.Inventory, excavate bool) *TemplateShape {
	info := t.Info(origin, t.RotationFor(facing))
	s := &TemplateShape{info: info, world: w, cat: cat, inv: inv, toPlace: make(map[geom.Cell]struct{}, len(info.ToPlace)), excavate: excavate}
	for _, c := range info.ToPlace {
		s.toPlace[c] = struct{}{}
	}
	return s
}

func (s *TemplateShape) Info() BuildingInfo { return s.info }

func (s *TemplateShape) CellsToClear() []geom.Cell { return s.info.ToBreak }
func (s *TemplateShape) CellsToPlace() []geom.Cell { return s.info.ToPlace }
func (s *TemplateShape) Box() geom.Box             { return s.info.Box }
func (s *TemplateShape) Excavates() bool           { return s.excavate }

func (s *TemplateShape) CanPlace(pos geom.Cell) bool { return s.world.IsEmpty(pos) }

// placeable accepts items that put down a solid block.
func (s *TemplateShape) placeable(item string) bool {
	block, ok := s.cat.PlaceAs(item)
	if !ok {
		return false
	}
	def, ok := s.cat.Block(block)
	return ok && def.Solid && !def.Fluid
}

func (s *TemplateShape) RequiredItems(geom.Cell) []inventory.ItemStack {
	return []inventory.ItemStack{s.inv.ExtractAny(s.placeable, 1, 1)}
}

func (s *TemplateShape) IsCorrect(pos geom.Cell) bool {
	_, ok := s.toPlace[pos]
	return ok && !s.world.IsEmpty(pos)
}

func (s *TemplateShape) Place(pos geom.Cell, items []inventory.ItemStack) bool {
	if len(items) == 0 {
		return false
	}
	block, ok := s.cat.PlaceAs(items[0].Item)
	if !ok {
		return false
	}
	return s.world.Set(pos, block) == nil
}

// BlueprintShape rebuilds every captured schematic.
type BlueprintShape struct {
	info     BuildingInfo
	ctx      schematic.Context
	inv      *inventory.Inventory
	blocks   map[geom.Cell]schematic.Block
	toPlace  []geom.Cell
	excavate bool
}

// NewBlueprintShape resolves bp at origin. Cells whose schematic needs no
// items can never be placed and are left out of the place set; the returned
// count says how many were skipped.
func NewBlueprintShape(bp *Blueprint, origin geom.Cell, facing int, ctx schematic.Context, inv *inventory.Inventory, excavate bool) (*BlueprintShape, int) {
	info := bp.Info(origin, bp.RotationFor(facing))
	s := &BlueprintShape{info: info, ctx: ctx, inv: inv, blocks: make(map[geom.Cell]schematic.Block, len(info.Local)), excavate: excavate}
	skipped := 0
	for _, w := range info.ToPlace {
		blk := bp.At(info.Local[w])
		if blk.RequiredItems(ctx.Catalogs) == nil {
			skipped++
			continue
		}
		s.blocks[w] = blk
		s.toPlace = append(s.toPlace, w)
	}
	for _, w := range info.ToBreak {
		s.blocks[w] = schematic.AirBlock{}
	}
	return s, skipped
}

func (s *BlueprintShape) Info() BuildingInfo { return s.info }

func (s *BlueprintShape) CellsToClear() []geom.Cell { return s.info.ToBreak }
func (s *BlueprintShape) CellsToPlace() []geom.Cell { return s.toPlace }
func (s *BlueprintShape) Box() geom.Box             { return s.info.Box }
func (s *BlueprintShape) Excavates() bool           { return s.excavate }

func (s *BlueprintShape) CanPlace(pos geom.Cell) bool {
	blk, ok := s.blocks[pos]
	return ok && blk.CanBuild(s.ctx, pos)
}

// RequiredItems takes every item the cell needs, or nothing when one is
// short.
func (s *BlueprintShape) RequiredItems(pos geom.Cell) []inventory.ItemStack {
	blk, ok := s.blocks[pos]
	if !ok {
		return nil
	}
	got, ok := s.inv.ExtractAll(blk.RequiredItems(s.ctx.Catalogs))
	if !ok {
		return []inventory.ItemStack{inventory.Empty}
	}
	return got
}

func (s *BlueprintShape) IsCorrect(pos geom.Cell) bool {
	blk, ok := s.blocks[pos]
	return ok && blk.IsBuilt(s.ctx, pos)
}

func (s *BlueprintShape) Place(pos geom.Cell, _ []inventory.ItemStack) bool {
	blk, ok := s.blocks[pos]
	return ok && blk.Build(s.ctx, pos)
}
