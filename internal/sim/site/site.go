// Package site runs one builder against its grid, battery and inventory on a
// fixed tick.
package site

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"voxelbuild.ai/internal/sim/battery"
	"voxelbuild.ai/internal/sim/builder"
	"voxelbuild.ai/internal/sim/geom"
	"voxelbuild.ai/internal/sim/grid"
	"voxelbuild.ai/internal/sim/inventory"
	"voxelbuild.ai/internal/sim/tuning"
)

// ErrOutOfBounds is returned by New when the shape reaches past the grid.
var ErrOutOfBounds = errors.New("site: shape extends past the grid bounds")

type Config struct {
	TickRateHz int
	// Energy amounts are in micro-MJ.
	Capacity     uint64
	InputPerTick uint64
	Initial      uint64

	Builder builder.Config
}

// ConfigFrom maps tuning onto a site config for a builder placed at origin.
func ConfigFrom(t tuning.Tuning, origin geom.Cell) Config {
	return Config{
		TickRateHz:   t.TickRateHz,
		Capacity:     t.Battery.CapacityMJ * battery.MJ,
		InputPerTick: t.Battery.InputMJPerTick * battery.MJ,
		Initial:      t.Battery.InitialMJ * battery.MJ,
		Builder: builder.Config{
			Origin:    origin,
			MaxActive: t.Builder.MaxActive,
			MaxCheck:  t.Builder.MaxCheck,
		},
	}
}

// TickSummary is what a site reports after every step.
type TickSummary struct {
	Tick        uint64 `json:"tick"`
	Stored      uint64 `json:"stored"`
	LeftToClear int    `json:"left_to_clear"`
	LeftToPlace int    `json:"left_to_place"`
	ActiveClear int    `json:"active_clear"`
	ActivePlace int    `json:"active_place"`
	Parked      int    `json:"parked"`
	Done        bool   `json:"done,omitempty"`
	Cancelled   bool   `json:"cancelled,omitempty"`
}

type TickSink interface {
	WriteTick(s TickSummary) error
}

type Option func(*Site)

// WithCheckpointSink makes Run offer a checkpoint to ch every n ticks. A
// full channel drops the checkpoint.
func WithCheckpointSink(n int, ch chan<- Checkpoint) Option {
	return func(s *Site) {
		if n > 0 {
			s.checkpointEvery = uint64(n)
			s.checkpointSink = ch
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Site) {
		s.base = l
		s.log = l.With().Str("component", "site").Logger()
	}
}

func WithTickSink(sink TickSink) Option {
	return func(s *Site) { s.tickSink = sink }
}

func WithAudit(sink builder.AuditSink) Option {
	return func(s *Site) { s.audit = sink }
}

// ShapeFunc builds the target shape once the grid and inventory exist.
type ShapeFunc func(g *grid.Grid, inv *inventory.Inventory) (builder.Shape, error)

// Site owns the grid, battery, inventory and builder. Step and the accessors
// that touch them must run on one goroutine; Run is that goroutine when it is
// used. Tick, Done and Cancelled are safe from anywhere.
type Site struct {
	cfg      Config
	grid     *grid.Grid
	bat      *battery.Battery
	inv      *inventory.Inventory
	b        *builder.Builder
	base     zerolog.Logger
	log      zerolog.Logger
	tickSink TickSink
	audit    builder.AuditSink

	tick      atomic.Uint64
	done      atomic.Bool
	cancelled atomic.Bool
	placed    atomic.Int64
	cleared   atomic.Int64

	subMu     sync.Mutex
	subs      map[uint64]chan []byte
	subClosed bool
	nextSub   atomic.Uint64

	checkpointEvery uint64
	checkpointSink  chan<- Checkpoint

	cancelReq     chan struct{}
	checkpointReq chan chan checkpointResp
	stop          chan struct{}
	stopOnce      sync.Once
	exited        chan struct{}
}

// New creates a site over g. inv is the material store the shape draws from.
func New(cfg Config, g *grid.Grid, inv *inventory.Inventory, shape ShapeFunc, opts ...Option) (*Site, error) {
	if g == nil || inv == nil || shape == nil {
		return nil, errors.New("site: grid, inventory and shape are required")
	}
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("site: tick rate %d", cfg.TickRateHz)
	}
	if cfg.Capacity == 0 {
		return nil, errors.New("site: zero battery capacity")
	}
	s := &Site{
		cfg:           cfg,
		grid:          g,
		bat:           battery.New(cfg.Capacity),
		inv:           inv,
		base:          zerolog.Nop(),
		log:           zerolog.Nop(),
		subs:          map[uint64]chan []byte{},
		cancelReq:     make(chan struct{}, 1),
		checkpointReq: make(chan chan checkpointResp),
		stop:          make(chan struct{}),
		exited:        make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.bat.SetStored(cfg.Initial)

	sh, err := shape(g, inv)
	if err != nil {
		return nil, fmt.Errorf("site: shape: %w", err)
	}
	if box := sh.Box(); !g.ContainsBox(box) {
		return nil, fmt.Errorf("%w: %v..%v", ErrOutOfBounds, box.Min, box.Max)
	}
	bcfg := cfg.Builder
	if bcfg.Logger == nil {
		l := s.base
		bcfg.Logger = &l
	}
	if bcfg.CheckItem == nil {
		bcfg.CheckItem = g.Catalogs().CheckItem
	}
	b, err := builder.New(bcfg, builder.Env{
		Shape:     sh,
		Grid:      g,
		Battery:   s.bat,
		Inventory: inv,
		Reporter:  g,
		Audit:     auditTap{s: s},
	})
	if err != nil {
		return nil, err
	}
	s.b = b
	return s, nil
}

// auditTap counts commits before forwarding to the configured sink.
type auditTap struct{ s *Site }

func (a auditTap) WriteAudit(e builder.AuditEntry) error {
	switch e.Action {
	case builder.AuditPlace:
		a.s.placed.Inc()
	case builder.AuditDestroy:
		a.s.cleared.Inc()
	}
	if a.s.audit == nil {
		return nil
	}
	return a.s.audit.WriteAudit(e)
}

// Step adds one tick of input energy, ticks the builder and publishes the
// result. It returns false once the build is done or cancelled.
func (s *Site) Step() bool {
	if s.done.Load() || s.cancelled.Load() {
		return false
	}
	s.bat.Add(s.cfg.InputPerTick, false)
	done := s.b.Tick()
	tick := s.tick.Inc()
	if done {
		s.done.Store(true)
		s.log.Info().Uint64("tick", tick).Int64("placed", s.placed.Load()).Int64("cleared", s.cleared.Load()).Msg("build complete")
	}
	if s.b.Cancelled() {
		s.cancelled.Store(true)
	}
	sum := s.Summary()
	if s.tickSink != nil {
		if err := s.tickSink.WriteTick(sum); err != nil {
			s.log.Warn().Err(err).Uint64("tick", tick).Msg("tick log write failed")
		}
	}
	s.publish(tick)
	return !done && !s.cancelled.Load()
}

// CancelNow cancels the builder on the calling goroutine.
func (s *Site) CancelNow() {
	if s.cancelled.Load() {
		return
	}
	s.b.Cancel()
	s.cancelled.Store(true)
	s.publish(s.tick.Load())
}

func (s *Site) Summary() TickSummary {
	st := s.b.Stats()
	return TickSummary{
		Tick:        s.tick.Load(),
		Stored:      s.bat.Stored(),
		LeftToClear: s.b.LeftToClear(),
		LeftToPlace: s.b.LeftToPlace(),
		ActiveClear: st.ActiveClear,
		ActivePlace: st.ActivePlace,
		Parked:      st.Parked,
		Done:        s.done.Load(),
		Cancelled:   s.cancelled.Load(),
	}
}

func (s *Site) Tick() uint64    { return s.tick.Load() }
func (s *Site) Done() bool      { return s.done.Load() }
func (s *Site) Cancelled() bool { return s.cancelled.Load() }
func (s *Site) Placed() int64   { return s.placed.Load() }
func (s *Site) Cleared() int64  { return s.cleared.Load() }

func (s *Site) Grid() *grid.Grid                { return s.grid }
func (s *Site) Battery() *battery.Battery       { return s.bat }
func (s *Site) Inventory() *inventory.Inventory { return s.inv }
func (s *Site) Builder() *builder.Builder       { return s.b }
func (s *Site) TickRateHz() int                 { return s.cfg.TickRateHz }
