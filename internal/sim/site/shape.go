package site

import (
	"fmt"

	"github.com/rs/zerolog"

	"voxelbuild.ai/internal/sim/builder"
	"voxelbuild.ai/internal/sim/geom"
	"voxelbuild.ai/internal/sim/grid"
	"voxelbuild.ai/internal/sim/inventory"
	"voxelbuild.ai/internal/sim/schematic"
	"voxelbuild.ai/internal/sim/snapshot"
)

// ShapeFor builds snap at origin, turned to face facing.
func ShapeFor(snap snapshot.Snapshot, origin geom.Cell, facing int, excavate bool, log zerolog.Logger) ShapeFunc {
	return func(g *grid.Grid, inv *inventory.Inventory) (builder.Shape, error) {
		switch s := snap.(type) {
		case *snapshot.Template:
			return snapshot.NewTemplateShape(s, origin, facing, g, g.Catalogs(), inv, excavate), nil
		case *snapshot.Blueprint:
			ctx := schematic.Context{World: g, Catalogs: g.Catalogs()}
			shape, skipped := snapshot.NewBlueprintShape(s, origin, facing, ctx, inv, excavate)
			if skipped > 0 {
				log.Warn().Int("skipped", skipped).Str("snapshot", s.Header.Name).Msg("blueprint cells without items are not placed")
			}
			return shape, nil
		default:
			return nil, fmt.Errorf("unsupported snapshot %T", snap)
		}
	}
}
