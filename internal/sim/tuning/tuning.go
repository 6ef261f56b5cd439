package tuning

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"voxelbuild.ai/internal/sim/battery"
)

type Tuning struct {
	TickRateHz         int `yaml:"tick_rate_hz" toml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks" toml:"snapshot_every_ticks"`

	Builder Builder `yaml:"builder" toml:"builder"`
	Battery Battery `yaml:"battery" toml:"battery"`
	World   World   `yaml:"world" toml:"world"`
}

type Builder struct {
	MaxActive int   `yaml:"max_active" toml:"max_active"`
	MaxCheck  int   `yaml:"max_check" toml:"max_check"`
	Excavate  *bool `yaml:"excavate" toml:"excavate"`
}

type Battery struct {
	CapacityMJ     uint64 `yaml:"capacity_mj" toml:"capacity_mj"`
	InputMJPerTick uint64 `yaml:"input_mj_per_tick" toml:"input_mj_per_tick"`
	InitialMJ      uint64 `yaml:"initial_mj" toml:"initial_mj"`
}

type World struct {
	Seed             int64 `yaml:"seed" toml:"seed"`
	GroundY          int   `yaml:"ground_y" toml:"ground_y"`
	BoundaryR        int   `yaml:"boundary_r" toml:"boundary_r"`
	SprinklePermille int   `yaml:"sprinkle_permille" toml:"sprinkle_permille"`
}

func Defaults() Tuning {
	excavate := true
	return Tuning{
		TickRateHz:         20,
		SnapshotEveryTicks: 600,
		Builder:            Builder{MaxActive: 64, MaxCheck: 40, Excavate: &excavate},
		Battery:            Battery{CapacityMJ: 1000, InputMJPerTick: 40},
		World:              World{Seed: 1337, GroundY: 64, SprinklePermille: 20},
	}
}

// Normalize fills zero values with defaults.
func (t *Tuning) Normalize() {
	d := Defaults()
	if t.TickRateHz <= 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.SnapshotEveryTicks <= 0 {
		t.SnapshotEveryTicks = d.SnapshotEveryTicks
	}
	if t.Builder.MaxActive <= 0 {
		t.Builder.MaxActive = d.Builder.MaxActive
	}
	if t.Builder.MaxCheck <= 0 {
		t.Builder.MaxCheck = d.Builder.MaxCheck
	}
	if t.Builder.Excavate == nil {
		t.Builder.Excavate = d.Builder.Excavate
	}
	if t.Battery.CapacityMJ == 0 {
		t.Battery.CapacityMJ = d.Battery.CapacityMJ
	}
}

func (t Tuning) Validate() error {
	var errs []error
	if t.TickRateHz > 1000 {
		errs = append(errs, fmt.Errorf("tick_rate_hz %d above 1000", t.TickRateHz))
	}
	if t.Builder.MaxActive > 4096 {
		errs = append(errs, fmt.Errorf("builder.max_active %d above 4096", t.Builder.MaxActive))
	}
	if t.Battery.InputMJPerTick > t.Battery.CapacityMJ {
		errs = append(errs, fmt.Errorf("battery.input_mj_per_tick %d exceeds capacity %d", t.Battery.InputMJPerTick, t.Battery.CapacityMJ))
	}
	if t.Battery.InitialMJ > t.Battery.CapacityMJ {
		errs = append(errs, fmt.Errorf("battery.initial_mj %d exceeds capacity %d", t.Battery.InitialMJ, t.Battery.CapacityMJ))
	}
	if t.Battery.CapacityMJ > (1<<63)/battery.MJ {
		errs = append(errs, fmt.Errorf("battery.capacity_mj %d too large", t.Battery.CapacityMJ))
	}
	if t.World.SprinklePermille < 0 || t.World.SprinklePermille > 1000 {
		errs = append(errs, fmt.Errorf("world.sprinkle_permille %d outside [0,1000]", t.World.SprinklePermille))
	}
	return errors.Join(errs...)
}

func (t Tuning) Excavate() bool { return t.Builder.Excavate == nil || *t.Builder.Excavate }

// Load reads YAML or TOML by extension, then normalizes and validates.
func Load(path string) (Tuning, error) {
	f, err := os.Open(path)
	if err != nil {
		return Tuning{}, err
	}
	defer f.Close()
	name := filepath.Base(path)
	t, err := Decode(f, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return Tuning{}, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

// Decode parses r as format ".yaml", ".yml" or ".toml".
func Decode(r io.Reader, format string) (Tuning, error) {
	var t Tuning
	switch format {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
			return Tuning{}, err
		}
	case ".toml":
		md, err := toml.NewDecoder(r).Decode(&t)
		if err != nil {
			return Tuning{}, err
		}
		if undec := md.Undecoded(); len(undec) > 0 {
			return Tuning{}, fmt.Errorf("unknown keys %v", undec)
		}
	default:
		return Tuning{}, fmt.Errorf("unsupported config format %q", format)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return Tuning{}, err
	}
	return t, nil
}
