package site

import (
	"context"
	"fmt"
	"time"

	"voxelbuild.ai/internal/sim/catalogs"
	"voxelbuild.ai/internal/sim/grid"
	"voxelbuild.ai/internal/sim/inventory"
)

// Checkpoint is everything needed to resume a site.
type Checkpoint struct {
	Tick      uint64           `msgpack:"tick"`
	Chunks    []grid.ChunkData `msgpack:"chunks"`
	Stored    uint64           `msgpack:"stored"`
	Inventory map[string]int   `msgpack:"inventory"`
	Builder   []byte           `msgpack:"builder"`
	Done      bool             `msgpack:"done"`
	Placed    int64            `msgpack:"placed"`
	Cleared   int64            `msgpack:"cleared"`
}

type checkpointResp struct {
	cp  Checkpoint
	err error
}

// Checkpoint captures the site on the calling goroutine.
func (s *Site) Checkpoint() (Checkpoint, error) {
	state, err := s.b.MarshalBinary()
	if err != nil {
		return Checkpoint{}, fmt.Errorf("site: builder state: %w", err)
	}
	return Checkpoint{
		Tick:      s.tick.Load(),
		Chunks:    s.grid.ExportChunks(),
		Stored:    s.bat.Stored(),
		Inventory: s.inv.Map(),
		Builder:   state,
		Done:      s.done.Load(),
		Placed:    s.placed.Load(),
		Cleared:   s.cleared.Load(),
	}, nil
}

// Restore rebuilds a site from cp. The grid is imported with gen filling
// chunks the checkpoint does not carry.
func Restore(cfg Config, cp Checkpoint, cat *catalogs.Catalogs, gen grid.Gen, shape ShapeFunc, opts ...Option) (*Site, error) {
	g, err := grid.ImportChunks(cat, gen, cp.Chunks)
	if err != nil {
		return nil, fmt.Errorf("site: restore grid: %w", err)
	}
	cfg.Initial = cp.Stored
	s, err := New(cfg, g, inventory.FromMap(cp.Inventory), shape, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.b.UnmarshalBinary(cp.Builder); err != nil {
		return nil, fmt.Errorf("site: restore builder: %w", err)
	}
	s.tick.Store(cp.Tick)
	s.done.Store(cp.Done)
	s.placed.Store(cp.Placed)
	s.cleared.Store(cp.Cleared)
	return s, nil
}

// Run steps the site at the configured tick rate until the build is done,
// cancelled, stopped or ctx ends.
func (s *Site) Run(ctx context.Context) error {
	defer close(s.exited)
	defer s.closeSubscribers()

	interval := time.Second / time.Duration(s.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info().Int("tick_rate_hz", s.cfg.TickRateHz).Int("left_to_place", s.b.LeftToPlace()).Msg("site running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case <-s.cancelReq:
			s.CancelNow()
			return nil
		case reply := <-s.checkpointReq:
			cp, err := s.Checkpoint()
			reply <- checkpointResp{cp: cp, err: err}
		case <-ticker.C:
			more := s.Step()
			s.offerCheckpoint()
			if !more {
				return nil
			}
		}
	}
}

func (s *Site) offerCheckpoint() {
	if s.checkpointSink == nil {
		return
	}
	tick := s.tick.Load()
	if tick%s.checkpointEvery != 0 && !s.done.Load() {
		return
	}
	cp, err := s.Checkpoint()
	if err != nil {
		s.log.Warn().Err(err).Uint64("tick", tick).Msg("checkpoint failed")
		return
	}
	select {
	case s.checkpointSink <- cp:
	default:
		s.log.Warn().Uint64("tick", tick).Msg("checkpoint dropped")
	}
}

// Cancel asks the running loop to cancel the build.
func (s *Site) Cancel() {
	select {
	case s.cancelReq <- struct{}{}:
	default:
	}
}

func (s *Site) Stop() { s.stopOnce.Do(func() { close(s.stop) }) }

// Exited is closed when Run returns.
func (s *Site) Exited() <-chan struct{} { return s.exited }

// RequestCheckpoint captures the site from another goroutine. Once Run has
// returned it captures directly.
func (s *Site) RequestCheckpoint(ctx context.Context) (Checkpoint, error) {
	reply := make(chan checkpointResp, 1)
	select {
	case s.checkpointReq <- reply:
	case <-s.exited:
		return s.Checkpoint()
	case <-ctx.Done():
		return Checkpoint{}, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.cp, r.err
	case <-ctx.Done():
		return Checkpoint{}, ctx.Err()
	}
}
