package snapshot

import (
	"testing"
	"time"

	"voxelbuild.ai/internal/sim/battery"
	"voxelbuild.ai/internal/sim/builder"
	"voxelbuild.ai/internal/sim/catalogs"
	"voxelbuild.ai/internal/sim/geom"
	"voxelbuild.ai/internal/sim/grid"
	"voxelbuild.ai/internal/sim/inventory"
	"voxelbuild.ai/internal/sim/schematic"
)

func runBuild(t *testing.T, shape builder.Shape, g *grid.Grid, inv *inventory.Inventory, origin geom.Cell) *builder.Builder {
	t.Helper()
	bat := battery.New(1 << 62)
	bat.SetStored(1 << 62)
	b, err := builder.New(builder.Config{Origin: origin}, builder.Env{Shape: shape, Grid: g, Battery: bat, Inventory: inv, Reporter: g})
	if err != nil {
		t.Fatalf("builder: %v", err)
	}
	for i := 0; i < 500; i++ {
		if b.Tick() {
			return b
		}
	}
	t.Fatalf("build did not finish")
	return nil
}

func TestBlueprintShapeBuildsDefinition(t *testing.T) {
	cat := catalogs.Builtin()
	d := &Definition{
		Name:   "arch",
		Type:   TypeBlueprint,
		Legend: map[string]string{"B": "BRICK", "G": "GLASS"},
		Layers: [][]string{{"B.B"}, {"BGB"}},
	}
	s, err := d.Build(cat, time.Now())
	if err != nil {
		t.Fatalf("definition: %v", err)
	}
	g := grid.New(cat, grid.DefaultGen(cat, 1, 0, 0))
	origin := geom.C(0, 0, 0)
	// Something in the way where the arch opening must stay empty.
	if err := g.Set(geom.C(1, 0, 0), "DIRT"); err != nil {
		t.Fatalf("set: %v", err)
	}
	inv := inventory.FromMap(map[string]int{"BRICK": 4, "GLASS": 1})
	ctx := schematic.Context{World: g, Catalogs: cat}
	shape, skipped := NewBlueprintShape(s.(*Blueprint), origin, 0, ctx, inv, true)
	if skipped != 0 {
		t.Fatalf("skipped %d cells", skipped)
	}
	runBuild(t, shape, g, inv, origin)

	want := map[geom.Cell]string{
		geom.C(0, 0, 0): "BRICK", geom.C(1, 0, 0): "AIR", geom.C(2, 0, 0): "BRICK",
		geom.C(0, 1, 0): "BRICK", geom.C(1, 1, 0): "GLASS", geom.C(2, 1, 0): "BRICK",
	}
	for c, name := range want {
		if got := g.BlockName(c); got != name {
			t.Fatalf("cell %v = %s, want %s", c, got, name)
		}
	}
	if len(inv.List()) != 0 {
		t.Fatalf("leftover items %v", inv.List())
	}
}

func TestTemplateShapeUsesAnyPlaceableItem(t *testing.T) {
	cat := catalogs.Builtin()
	tpl := NewTemplate(Header{Name: "wall"}, geom.C(3, 1, 1))
	for x := 0; x < 3; x++ {
		tpl.Set(geom.C(x, 0, 0), true)
	}
	g := grid.New(cat, grid.DefaultGen(cat, 1, 0, 0))
	inv := inventory.FromMap(map[string]int{"STICK": 5, "WATER_BUCKET": 2, "PLANK": 1, "STONE": 2})
	origin := geom.C(5, 0, 5)
	shape := NewTemplateShape(tpl, origin, 0, g, cat, inv, true)
	runBuild(t, shape, g, inv, origin)

	counts := map[string]int{}
	for x := 0; x < 3; x++ {
		counts[g.BlockName(geom.C(5+x, 0, 5))]++
	}
	if counts["PLANK"] != 1 || counts["STONE"] != 2 {
		t.Fatalf("placed %v", counts)
	}
	if inv.Count("STICK") != 5 || inv.Count("WATER_BUCKET") != 2 {
		t.Fatalf("non-placeable items consumed: %v", inv.List())
	}
}
