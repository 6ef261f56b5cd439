// Package buildrun assembles a site from config files, a build target and
// optional resume state. Both commands start builds through it.
package buildrun

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"voxelbuild.ai/internal/observerproto"
	"voxelbuild.ai/internal/persistence/snapfile"
	"voxelbuild.ai/internal/sim/catalogs"
	"voxelbuild.ai/internal/sim/geom"
	"voxelbuild.ai/internal/sim/grid"
	"voxelbuild.ai/internal/sim/inventory"
	"voxelbuild.ai/internal/sim/schematic"
	"voxelbuild.ai/internal/sim/site"
	"voxelbuild.ai/internal/sim/snapshot"
	"voxelbuild.ai/internal/sim/tuning"
)

// DefaultTemplateItem stocks template builds when no stock is given.
const DefaultTemplateItem = "STONE"

type Options struct {
	ConfigDir  string
	TuningPath string
	// Target is a definition (.json) or a snapshot file.
	Target string
	// Origin is where the builder stands; nil means (0, ground_y, 0).
	Origin *geom.Cell
	Facing int
	// Stock is the starting inventory. Nil stocks exactly what the target
	// needs.
	Stock        map[string]int
	TemplateItem string
	// Resume is a world file to continue from.
	Resume string

	// Checkpoints receives a checkpoint every snapshot_every_ticks while
	// the site runs.
	Checkpoints chan<- site.Checkpoint

	Logger zerolog.Logger
	Site   []site.Option
}

// Run is a prepared build.
type Run struct {
	Tuning   tuning.Tuning
	Catalogs *catalogs.Catalogs
	Registry schematic.Registry
	Snapshot snapshot.Snapshot
	Origin   geom.Cell
	Facing   int
	Site     *site.Site
}

func Prepare(opts Options) (*Run, error) {
	cat, err := catalogs.Load(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("load catalogs: %w", err)
	}
	tp := strings.TrimSpace(opts.TuningPath)
	if tp == "" {
		tp = filepath.Join(opts.ConfigDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) || opts.Resume == "" {
			return nil, fmt.Errorf("load tuning: %w", err)
		}
		// A resumed world carries its own tuning.
		tune = tuning.Defaults()
	}
	reg := schematic.Builtins()
	snap, err := LoadTarget(opts.Target, cat, reg)
	if err != nil {
		return nil, err
	}

	r := &Run{Tuning: tune, Catalogs: cat, Registry: reg, Snapshot: snap, Facing: geom.NormalizeRotation(opts.Facing)}
	if opts.Resume != "" {
		return r, r.resume(opts)
	}

	r.Origin = geom.C(0, tune.World.GroundY, 0)
	if opts.Origin != nil {
		r.Origin = *opts.Origin
	}
	stock := opts.Stock
	if stock == nil {
		item := opts.TemplateItem
		if item == "" {
			item = DefaultTemplateItem
		}
		if stock, err = RequiredStock(snap, cat, item); err != nil {
			return nil, err
		}
	}
	for item := range stock {
		if err := cat.CheckItem(item); err != nil {
			return nil, fmt.Errorf("stock: %w", err)
		}
	}
	gen := r.gen()
	g := grid.New(cat, gen, grid.WithLogger(opts.Logger))
	r.Site, err = site.New(r.siteConfig(), g, inventory.FromMap(stock), r.shape(opts.Logger), r.siteOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Run) resume(opts Options) error {
	w, err := snapfile.ReadWorld(opts.Resume)
	if err != nil {
		return fmt.Errorf("read world: %w", err)
	}
	meta := r.Snapshot.Meta()
	if isDefinition(opts.Target) {
		// Definitions get a fresh id on every load.
		meta.Header.ID = w.Header.SnapshotID
	} else if id := meta.Header.ID; w.Header.SnapshotID != id {
		return fmt.Errorf("world %s builds snapshot %s, target is %s", opts.Resume, w.Header.SnapshotID, id)
	}
	w.Tuning.Normalize()
	if err := w.Tuning.Validate(); err != nil {
		return fmt.Errorf("world tuning: %w", err)
	}
	r.Tuning = w.Tuning
	r.Origin = geom.FromArray(w.Origin)
	r.Facing = w.Facing
	r.Site, err = site.Restore(r.siteConfig(), w.Checkpoint, r.Catalogs, r.gen(), r.shape(opts.Logger), r.siteOptions(opts)...)
	if err != nil {
		return err
	}
	opts.Logger.Info().Str("world", opts.Resume).Uint64("tick", r.Site.Tick()).Msg("resumed")
	return nil
}

func (r *Run) gen() grid.Gen {
	t := r.Tuning.World
	gen := grid.DefaultGen(r.Catalogs, t.Seed, t.GroundY, t.SprinklePermille)
	gen.BoundaryR = t.BoundaryR
	return gen
}

func (r *Run) siteConfig() site.Config {
	return site.ConfigFrom(r.Tuning, r.Origin)
}

func (r *Run) shape(log zerolog.Logger) site.ShapeFunc {
	// Snapshot cells are laid out from the build origin, which sits on the
	// builder.
	return site.ShapeFor(r.Snapshot, r.Origin, r.Facing, r.Tuning.Excavate(), log)
}

func (r *Run) siteOptions(opts Options) []site.Option {
	out := []site.Option{site.WithLogger(opts.Logger)}
	if opts.Checkpoints != nil {
		out = append(out, site.WithCheckpointSink(r.Tuning.SnapshotEveryTicks, opts.Checkpoints))
	}
	return append(out, opts.Site...)
}

// World captures the run for a world file. It must be called on the site
// goroutine, or after Run has returned.
func (r *Run) World(cp site.Checkpoint, now time.Time) snapfile.World {
	return snapfile.World{
		Header:     snapfile.WorldHeader{SnapshotID: r.Snapshot.Meta().Header.ID, Tick: cp.Tick, Saved: now.UTC()},
		Tuning:     r.Tuning,
		Origin:     r.Origin.Array(),
		Facing:     r.Facing,
		Checkpoint: cp,
	}
}

// Params describes the build for observers.
func (r *Run) Params() observerproto.SiteParams {
	meta := r.Snapshot.Meta()
	box := r.Snapshot.Info(r.Origin, meta.RotationFor(r.Facing)).Box
	return observerproto.SiteParams{
		SnapshotID:   meta.Header.ID.String(),
		SnapshotName: meta.Header.Name,
		TickRateHz:   r.Tuning.TickRateHz,
		Origin:       r.Origin.Array(),
		Facing:       r.Facing,
		BoxMin:       box.Min.Array(),
		BoxMax:       box.Max.Array(),
		CapacityMJ:   r.Tuning.Battery.CapacityMJ,
	}
}

// LoadTarget reads a definition or a snapshot file.
func LoadTarget(path string, cat *catalogs.Catalogs, reg schematic.Registry) (snapshot.Snapshot, error) {
	if path == "" {
		return nil, errors.New("no build target")
	}
	if isDefinition(path) {
		d, err := snapshot.LoadDefinition(path)
		if err != nil {
			return nil, err
		}
		return d.Build(cat, time.Now())
	}
	s, _, err := snapfile.ReadSnapshot(path, reg)
	return s, err
}

func isDefinition(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// RequiredStock is the inventory that builds snap exactly once. Templates
// are built from templateItem.
func RequiredStock(snap snapshot.Snapshot, cat *catalogs.Catalogs, templateItem string) (map[string]int, error) {
	out := map[string]int{}
	switch s := snap.(type) {
	case *snapshot.Template:
		if err := cat.CheckItem(templateItem); err != nil {
			return nil, err
		}
		if n := s.Filled(); n > 0 {
			out[templateItem] = n
		}
	case *snapshot.Blueprint:
		for _, idx := range s.Indices {
			for _, st := range s.Palette[idx].RequiredItems(cat) {
				if !st.IsEmpty() {
					out[st.Item] += st.Count
				}
			}
		}
	default:
		return nil, fmt.Errorf("unsupported snapshot %T", snap)
	}
	return out, nil
}

// ParseStock reads "ITEM=N,ITEM=N".
func ParseStock(s string) (map[string]int, error) {
	out := map[string]int{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		item, n, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("stock %q: want ITEM=N", part)
		}
		v, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil || v < 0 {
			return nil, fmt.Errorf("stock %q: bad count", part)
		}
		out[strings.ToUpper(strings.TrimSpace(item))] += v
	}
	return out, nil
}

// ParseCell reads "x,y,z".
func ParseCell(s string) (geom.Cell, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return geom.Cell{}, fmt.Errorf("cell %q: want x,y,z", s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return geom.Cell{}, fmt.Errorf("cell %q: %w", s, err)
		}
		v[i] = n
	}
	return geom.FromArray(v), nil
}

// FormatStock renders the non-empty stacks of m sorted by item.
func FormatStock(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return strings.Join(parts, ",")
}
