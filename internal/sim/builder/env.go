package builder

import (
	"math"

	"voxelbuild.ai/internal/sim/geom"
	"voxelbuild.ai/internal/sim/inventory"
)

// Unbreakable is the resistance a grid reports for a cell that can never be
// cleared. Cells at or above it are parked instead of scheduled.
const Unbreakable uint64 = math.MaxUint64 / 2

// Grid is the live voxel grid the builder reconciles against.
type Grid interface {
	IsEmpty(pos geom.Cell) bool
	IsFluid(pos geom.Cell) bool
	// Resistance is the energy needed to clear pos. It may change between
	// calls and is never cached by the builder.
	Resistance(pos geom.Cell) uint64
	Destroy(pos geom.Cell)
	// Subscribe registers fn to be called after every content change.
	Subscribe(fn func(pos geom.Cell)) (cancel func())
}

// Shape is the target structure being built.
type Shape interface {
	CellsToClear() []geom.Cell
	CellsToPlace() []geom.Cell
	CanPlace(pos geom.Cell) bool
	// RequiredItems is called once per admission. Implementations may take
	// the items from their inventory; unused items come back through
	// Inventory.ReturnItems.
	RequiredItems(pos geom.Cell) []inventory.ItemStack
	IsCorrect(pos geom.Cell) bool
	Place(pos geom.Cell, items []inventory.ItemStack) bool
	Box() geom.Box
	// Excavates is false for shapes that never clear cells.
	Excavates() bool
}

type Battery interface {
	Extract(min, max uint64) uint64
	Add(amount uint64, simulate bool) uint64
	Stored() uint64
	Capacity() uint64
}

type Inventory interface {
	ReturnItems(items []inventory.ItemStack)
}

// ProgressReporter receives clear progress as a damage stage in [0,9], or -1
// once the cell is no longer being worked on. It has no effect on scheduling.
type ProgressReporter interface {
	ReportBreakProgress(pos geom.Cell, stage int)
}

// DestroyEvent is fired before a completed clear task mutates the grid.
type DestroyEvent struct {
	Pos      geom.Cell
	canceled bool
}

func (e *DestroyEvent) Cancel()        { e.canceled = true }
func (e *DestroyEvent) Canceled() bool { return e.canceled }

type DestroyListener func(ev *DestroyEvent)

// Env bundles the collaborators a builder works with. Reporter and Audit are
// optional.
type Env struct {
	Shape     Shape
	Grid      Grid
	Battery   Battery
	Inventory Inventory
	Reporter  ProgressReporter
	Audit     AuditSink
}
