package catalogs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBuiltinAirIsPaletteZero(t *testing.T) {
	c := Builtin()
	if c.AirID() != 0 || c.BlockName(0) != Air {
		t.Fatalf("AIR must be palette id 0")
	}
	if item, ok := c.ItemForBlock("WATER"); !ok || item != "WATER_BUCKET" {
		t.Fatalf("ItemForBlock(WATER)=%q,%v", item, ok)
	}
	if err := c.CheckItem("NOPE"); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
}

func TestLoadRejectsItemPlacingUnknownBlock(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "blocks.json"), []byte(`[{"id":"AIR"},{"id":"STONE","solid":true}]`), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "items.json"), []byte(`[{"id":"X","kind":"BLOCK","place_as":"MARBLE"}]`), 0o644)
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadComputesDigests(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "blocks.json"), []byte(`[{"id":"STONE","solid":true},{"id":"AIR"}]`), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "items.json"), []byte(`[{"id":"STONE","kind":"BLOCK","place_as":"STONE"}]`), 0o644)
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Blocks.DefsDigest == "" || c.Items.PaletteDigest == "" {
		t.Fatalf("missing digests")
	}
	if c.Blocks.Palette[0] != Air || c.Blocks.Palette[1] != "STONE" {
		t.Fatalf("palette=%v", c.Blocks.Palette)
	}
}
