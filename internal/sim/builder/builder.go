// Package builder reconciles a region of the voxel grid with a target shape,
// one bounded batch of work per tick.
package builder

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"voxelbuild.ai/internal/sim/geom"
	"voxelbuild.ai/internal/sim/inventory"
)

const (
	DefaultMaxActive = 64
	DefaultMaxCheck  = 40
)

type Config struct {
	// Origin is the builder's own position; place cost grows with the
	// distance from it and candidates are ordered by their height above it.
	Origin geom.Cell

	MaxActive int
	MaxCheck  int

	// CheckItem validates item names read by Decode. Nil accepts any
	// non-empty name.
	CheckItem func(item string) error

	Logger *zerolog.Logger
}

// Builder is single-threaded: every method must be called from the goroutine
// that ticks it.
type Builder struct {
	cfg       Config
	shape     Shape
	grid      Grid
	battery   Battery
	inv       Inventory
	reporter  ProgressReporter
	audit     AuditSink
	log       zerolog.Logger
	listeners []DestroyListener

	center  geom.Cell
	toPlace map[geom.Cell]struct{}
	targets []geom.Cell // to-clear ∪ to-place in first-seen order
	inTgt   map[geom.Cell]struct{}

	state        map[geom.Cell]cellState
	counts       [numStates]int
	scan         scanQueue
	pendingClear candidateQueue
	pendingPlace candidateQueue
	deferred     []geom.Cell
	activeClear  []*ClearTask
	activePlace  []*PlaceTask

	scannedOnce bool
	done        bool
	cancelled   bool
	unsubscribe func()

	leftToClear int
	leftToPlace int

	robot    mgl64.Vec3
	hasRobot bool

	auditSeq uint64
}

func New(cfg Config, env Env) (*Builder, error) {
	if env.Shape == nil || env.Grid == nil || env.Battery == nil || env.Inventory == nil {
		return nil, errors.New("builder: shape, grid, battery and inventory are required")
	}
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = DefaultMaxActive
	}
	if cfg.MaxCheck <= 0 {
		cfg.MaxCheck = DefaultMaxCheck
	}
	b := &Builder{
		cfg:      cfg,
		shape:    env.Shape,
		grid:     env.Grid,
		battery:  env.Battery,
		inv:      env.Inventory,
		reporter: env.Reporter,
		audit:    env.Audit,
		log:      zerolog.Nop(),
		center:   env.Shape.Box().Center(),
		toPlace:  map[geom.Cell]struct{}{},
		inTgt:    map[geom.Cell]struct{}{},
	}
	if cfg.Logger != nil {
		b.log = cfg.Logger.With().Str("component", "builder").Logger()
	}
	b.pendingClear.want = stateClear
	b.pendingPlace.want = statePlace

	for _, c := range env.Shape.CellsToClear() {
		b.addTarget(c)
	}
	for _, c := range env.Shape.CellsToPlace() {
		b.toPlace[c] = struct{}{}
		b.addTarget(c)
	}
	b.resetQueues()
	b.unsubscribe = b.grid.Subscribe(b.OnCellChanged)
	return b, nil
}

func (b *Builder) addTarget(c geom.Cell) {
	if _, ok := b.inTgt[c]; ok {
		return
	}
	b.inTgt[c] = struct{}{}
	b.targets = append(b.targets, c)
}

// resetQueues puts every target cell back into the scan queue.
func (b *Builder) resetQueues() {
	b.state = make(map[geom.Cell]cellState, len(b.targets))
	b.counts = [numStates]int{}
	b.scan.reset()
	b.pendingClear.reset()
	b.pendingPlace.reset()
	b.deferred = b.deferred[:0]
	b.activeClear = nil
	b.activePlace = nil
	b.scannedOnce = false
	b.done = false
	for _, c := range b.targets {
		b.enqueueScan(c)
	}
}

func (b *Builder) setState(c geom.Cell, s cellState) {
	old := b.state[c]
	if old == s {
		return
	}
	b.counts[old]--
	b.counts[s]++
	if s == stateNone {
		delete(b.state, c)
	} else {
		b.state[c] = s
	}
}

func (b *Builder) enqueueScan(c geom.Cell) {
	if b.state[c] == stateScan {
		return
	}
	b.setState(c, stateScan)
	b.scan.push(c)
}

// AddDestroyListener registers fn to observe and possibly veto every clear
// commit.
func (b *Builder) AddDestroyListener(fn DestroyListener) {
	b.listeners = append(b.listeners, fn)
}

// Tick runs one classification batch, admission and progress pass and
// reports whether the build is complete. A cancelled builder returns false.
func (b *Builder) Tick() bool {
	if b.cancelled {
		return false
	}
	b.scanBatch()
	b.admit()
	b.progressClear()
	b.progressPlace()
	b.updateRobot()
	b.refreshCounters()
	if !b.done && b.isDone() {
		b.done = true
		b.log.Debug().Msg("build complete")
	}
	return b.done
}

func (b *Builder) isDone() bool {
	if !b.scannedOnce || b.counts[stateScan] > 0 {
		return false
	}
	if b.shape.Excavates() && (len(b.activeClear) > 0 || b.counts[stateClear] > 0) {
		return false
	}
	return len(b.activePlace) == 0 && b.counts[statePlace] == 0 && b.counts[stateDeferred] == 0
}

func (b *Builder) refreshCounters() {
	b.leftToClear = b.counts[stateClear] + len(b.activeClear)
	b.leftToPlace = b.counts[statePlace] + b.counts[stateDeferred] + len(b.activePlace)
}

// Cancel refunds the progress of every active task, returns place items to
// the inventory and stops the builder. Pending cells are left as they are.
func (b *Builder) Cancel() {
	if b.cancelled {
		return
	}
	for _, t := range b.activeClear {
		refund := b.refund(t.Progress)
		b.reportBreak(t.Pos, -1)
		b.setState(t.Pos, stateNone)
		b.writeAudit(AuditEntry{Action: AuditCancel, Pos: t.Pos.Array(), Refund: refund})
	}
	for _, t := range b.activePlace {
		refund := b.refund(t.Progress)
		b.inv.ReturnItems(t.Items)
		b.setState(t.Pos, stateNone)
		b.writeAudit(AuditEntry{Action: AuditCancel, Pos: t.Pos.Array(), Refund: refund, Items: t.Items})
	}
	b.activeClear = nil
	b.activePlace = nil
	b.cancelled = true
	b.done = false
	b.hasRobot = false
	if b.unsubscribe != nil {
		b.unsubscribe()
		b.unsubscribe = nil
	}
	b.refreshCounters()
	b.log.Info().Msg("build cancelled")
}

// OnCellChanged re-arms a target cell after its content changed. Active cells
// are left alone; they are revalidated at admission.
func (b *Builder) OnCellChanged(pos geom.Cell) {
	if b.cancelled {
		return
	}
	if _, ok := b.inTgt[pos]; !ok {
		return
	}
	switch b.state[pos] {
	case stateActiveClear, stateActivePlace, stateScan:
		return
	}
	b.enqueueScan(pos)
	b.done = false
}

// refund returns amount to the battery, clamped to the free capacity.
func (b *Builder) refund(amount uint64) uint64 {
	if amount == 0 {
		return 0
	}
	room := b.battery.Capacity() - min(b.battery.Capacity(), b.battery.Stored())
	if amount > room {
		amount = room
	}
	return b.battery.Add(amount, false)
}

func (b *Builder) reportBreak(pos geom.Cell, stage int) {
	if b.reporter != nil {
		b.reporter.ReportBreakProgress(pos, stage)
	}
}

func (b *Builder) writeAudit(e AuditEntry) {
	if b.audit == nil {
		return
	}
	b.auditSeq++
	e.Seq = b.auditSeq
	if err := b.audit.WriteAudit(e); err != nil {
		b.log.Warn().Err(err).Str("action", e.Action).Msg("audit write failed")
	}
}

func (b *Builder) Done() bool { return b.done }

func (b *Builder) Cancelled() bool { return b.cancelled }

func (b *Builder) Origin() geom.Cell { return b.cfg.Origin }

func (b *Builder) LeftToClear() int { return b.leftToClear }

func (b *Builder) LeftToPlace() int { return b.leftToPlace }

// Parked counts cells waiting for a grid change before they are looked at
// again.
func (b *Builder) Parked() int { return b.counts[stateParked] }

// ActiveClear returns copies of the active clear tasks in admission order.
func (b *Builder) ActiveClear() []ClearTask {
	out := make([]ClearTask, len(b.activeClear))
	for i, t := range b.activeClear {
		out[i] = *t
	}
	return out
}

// ActivePlace returns copies of the active place tasks in admission order.
func (b *Builder) ActivePlace() []PlaceTask {
	out := make([]PlaceTask, len(b.activePlace))
	for i, t := range b.activePlace {
		out[i] = *t
		out[i].Items = append([]inventory.ItemStack(nil), t.Items...)
	}
	return out
}

// Stats is a point-in-time count of cells per scheduler state.
type Stats struct {
	Scan, PendingClear, PendingPlace int
	ActiveClear, ActivePlace         int
	Parked, Deferred                 int
}

func (b *Builder) Stats() Stats {
	return Stats{
		Scan:         b.counts[stateScan],
		PendingClear: b.counts[stateClear],
		PendingPlace: b.counts[statePlace],
		ActiveClear:  len(b.activeClear),
		ActivePlace:  len(b.activePlace),
		Parked:       b.counts[stateParked],
		Deferred:     b.counts[stateDeferred],
	}
}
