package builder

import (
	"voxelbuild.ai/internal/sim/battery"
	"voxelbuild.ai/internal/sim/geom"
	"voxelbuild.ai/internal/sim/inventory"
)

const mj = battery.MJ

type memGrid struct {
	cells  map[geom.Cell]string
	fluids map[string]bool
	res    map[string]uint64
	subs   map[int]func(geom.Cell)
	nextID int
	stages map[geom.Cell]int
}

func newMemGrid() *memGrid {
	return &memGrid{
		cells:  map[geom.Cell]string{},
		fluids: map[string]bool{"WATER": true},
		res:    map[string]uint64{},
		subs:   map[int]func(geom.Cell){},
		stages: map[geom.Cell]int{},
	}
}

func (g *memGrid) IsEmpty(pos geom.Cell) bool { return g.cells[pos] == "" }
func (g *memGrid) IsFluid(pos geom.Cell) bool { return g.fluids[g.cells[pos]] }

func (g *memGrid) Resistance(pos geom.Cell) uint64 {
	b := g.cells[pos]
	if b == "" {
		return 0
	}
	if r, ok := g.res[b]; ok {
		return r
	}
	return mj
}

func (g *memGrid) Destroy(pos geom.Cell) { g.set(pos, "") }

func (g *memGrid) set(pos geom.Cell, block string) {
	if block == "" {
		delete(g.cells, pos)
	} else {
		g.cells[pos] = block
	}
	for _, fn := range g.subs {
		fn(pos)
	}
}

func (g *memGrid) Subscribe(fn func(geom.Cell)) func() {
	id := g.nextID
	g.nextID++
	g.subs[id] = fn
	return func() { delete(g.subs, id) }
}

func (g *memGrid) ReportBreakProgress(pos geom.Cell, stage int) { g.stages[pos] = stage }

// testShape places one block kind at every place cell, taking one item per
// cell from inv.
type testShape struct {
	g        *memGrid
	inv      *inventory.Inventory
	block    string
	clear    []geom.Cell
	place    []geom.Cell
	placeSet map[geom.Cell]bool
	noDig    bool
	fail     map[geom.Cell]int
}

func newTestShape(g *memGrid, inv *inventory.Inventory, clear, place []geom.Cell) *testShape {
	s := &testShape{g: g, inv: inv, block: "STONE", clear: clear, place: place, placeSet: map[geom.Cell]bool{}, fail: map[geom.Cell]int{}}
	for _, c := range place {
		s.placeSet[c] = true
	}
	return s
}

func (s *testShape) CellsToClear() []geom.Cell    { return s.clear }
func (s *testShape) CellsToPlace() []geom.Cell    { return s.place }
func (s *testShape) CanPlace(pos geom.Cell) bool  { return s.g.IsEmpty(pos) }
func (s *testShape) IsCorrect(pos geom.Cell) bool { return s.placeSet[pos] && s.g.cells[pos] == s.block }
func (s *testShape) Excavates() bool              { return !s.noDig }

func (s *testShape) RequiredItems(pos geom.Cell) []inventory.ItemStack {
	return []inventory.ItemStack{s.inv.Extract(s.block, 1, 1)}
}

func (s *testShape) Place(pos geom.Cell, items []inventory.ItemStack) bool {
	if s.fail[pos] > 0 {
		s.fail[pos]--
		return false
	}
	s.g.set(pos, s.block)
	return true
}

func (s *testShape) Box() geom.Box {
	all := append(append([]geom.Cell(nil), s.clear...), s.place...)
	b, _ := geom.BoxOf(all)
	return b
}

type auditRecorder struct{ entries []AuditEntry }

func (a *auditRecorder) WriteAudit(e AuditEntry) error {
	a.entries = append(a.entries, e)
	return nil
}

func (a *auditRecorder) find(action string, pos geom.Cell) (AuditEntry, bool) {
	for _, e := range a.entries {
		if e.Action == action && e.Pos == pos.Array() {
			return e, true
		}
	}
	return AuditEntry{}, false
}

type rig struct {
	g     *memGrid
	inv   *inventory.Inventory
	bat   *battery.Battery
	shape *testShape
	audit *auditRecorder
	b     *Builder
}

func newRig(capacity, stored uint64, stone int, clear, place []geom.Cell) *rig {
	g := newMemGrid()
	inv := inventory.New()
	if stone > 0 {
		inv.Insert(inventory.ItemStack{Item: "STONE", Count: stone})
	}
	bat := battery.New(capacity)
	bat.SetStored(stored)
	return &rig{g: g, inv: inv, bat: bat, shape: newTestShape(g, inv, clear, place), audit: &auditRecorder{}}
}

func (r *rig) start(cfg Config) *Builder {
	b, err := New(cfg, Env{Shape: r.shape, Grid: r.g, Battery: r.bat, Inventory: r.inv, Reporter: r.g, Audit: r.audit})
	if err != nil {
		panic(err)
	}
	r.b = b
	return b
}

func (r *rig) runUntilDone(limit int) int {
	for i := 1; i <= limit; i++ {
		if r.b.Tick() {
			return i
		}
	}
	return -1
}

func box(lo, hi geom.Cell) []geom.Cell { return geom.Box{Min: lo, Max: hi}.Cells() }
