package builder

import (
	"math"

	"voxelbuild.ai/internal/sim/battery"
	"voxelbuild.ai/internal/sim/geom"
	"voxelbuild.ai/internal/sim/inventory"
)

// ClearTask removes the content of one cell.
type ClearTask struct {
	Pos      geom.Cell
	Progress uint64
}

// Target asks the grid every time; resistance may change while the task runs.
func (t *ClearTask) Target(g Grid) uint64 { return g.Resistance(t.Pos) }

func (t *ClearTask) AddProgress(n uint64) { t.Progress += n }

// PlaceTask fills one cell with the items captured at admission.
type PlaceTask struct {
	Pos      geom.Cell
	Progress uint64
	Items    []inventory.ItemStack
}

// Target grows with the distance from the builder origin.
func (t *PlaceTask) Target(origin geom.Cell) uint64 { return PlaceCost(t.Pos, origin) }

func (t *PlaceTask) AddProgress(n uint64) { t.Progress += n }

// PlaceCost is sqrt(distSq) * 10 MJ.
func PlaceCost(pos, origin geom.Cell) uint64 {
	return uint64(math.Sqrt(float64(pos.DistSq(origin))) * 10 * float64(battery.MJ))
}

func remaining(target, progress uint64) uint64 {
	if progress >= target {
		return 0
	}
	return target - progress
}
