package schematic

import (
	"errors"
	"testing"

	"voxelbuild.ai/internal/sim/catalogs"
	"voxelbuild.ai/internal/sim/geom"
)

type mapWorld map[geom.Cell]string

func (w mapWorld) BlockName(c geom.Cell) string {
	if n, ok := w[c]; ok {
		return n
	}
	return catalogs.Air
}

func (w mapWorld) Set(c geom.Cell, name string) error {
	w[c] = name
	return nil
}

func (w mapWorld) IsEmpty(c geom.Cell) bool { return w.BlockName(c) == catalogs.Air }

func TestCaptureUsesLatestMatchingFactory(t *testing.T) {
	w := mapWorld{geom.C(0, 0, 0): "STONE", geom.C(1, 0, 0): "WATER"}
	ctx := Context{World: w, Catalogs: catalogs.Builtin()}
	reg := Builtins()

	cases := []struct {
		pos  geom.Cell
		kind string
	}{
		{geom.C(0, 0, 0), KindBlock},
		{geom.C(1, 0, 0), KindFluid},
		{geom.C(2, 0, 0), KindAir},
	}
	for _, c := range cases {
		b, err := reg.Capture(ctx, c.pos)
		if err != nil {
			t.Fatalf("capture %v: %v", c.pos, err)
		}
		if b.Kind() != c.kind {
			t.Fatalf("kind at %v = %s, want %s", c.pos, b.Kind(), c.kind)
		}
		if !b.IsBuilt(ctx, c.pos) {
			t.Fatalf("captured cell %v not built", c.pos)
		}
	}

	reg.Register(Factory{
		Name:  "glassy",
		Match: func(d catalogs.BlockDef) bool { return d.ID == "STONE" },
		New:   func() Block { return &SolidBlock{} },
	})
	f, ok := reg.Lookup(catalogs.BlockDef{ID: "STONE"})
	if !ok || f.Name != "glassy" {
		t.Fatalf("lookup = %q, %v", f.Name, ok)
	}
}

func TestSolidBlockBuild(t *testing.T) {
	w := mapWorld{}
	cat := catalogs.Builtin()
	ctx := Context{World: w, Catalogs: cat}
	b := &SolidBlock{Name: "BRICK"}
	pos := geom.C(4, 1, 4)

	items := b.RequiredItems(cat)
	if len(items) != 1 || items[0].Item != "BRICK" || items[0].Count != 1 {
		t.Fatalf("items = %+v", items)
	}
	if !b.CanBuild(ctx, pos) || !b.Build(ctx, pos) || !b.IsBuilt(ctx, pos) {
		t.Fatalf("build failed")
	}
	if b.CanBuild(ctx, pos) {
		t.Fatalf("occupied cell reported buildable")
	}
	if (&SolidBlock{Name: "BEDROCK"}).RequiredItems(cat) != nil {
		t.Fatalf("bedrock has no item")
	}
}

func TestFluidNeedsBucket(t *testing.T) {
	cat := catalogs.Builtin()
	b := &FluidBlock{SolidBlock{Name: "LAVA"}}
	items := b.RequiredItems(cat)
	if len(items) != 1 || items[0].Item != "LAVA_BUCKET" {
		t.Fatalf("items = %+v", items)
	}
	w := mapWorld{geom.C(0, 0, 0): "WATER"}
	ctx := Context{World: w, Catalogs: cat}
	if !b.CanBuild(ctx, geom.C(0, 0, 0)) {
		t.Fatalf("lava should replace water")
	}
}

func TestRestoreAndKey(t *testing.T) {
	reg := Builtins()
	b, err := reg.Restore(KindBlock, map[string]string{"block": "PLANK"})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if Key(b) != "block;block=PLANK" {
		t.Fatalf("key = %q", Key(b))
	}
	if Key(AirBlock{}) != "air" {
		t.Fatalf("air key = %q", Key(AirBlock{}))
	}
	if _, err := reg.Restore("portal", nil); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("err = %v", err)
	}
	if _, err := reg.Restore(KindBlock, nil); err == nil {
		t.Fatalf("expected missing block error")
	}
}
