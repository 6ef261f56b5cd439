package schematic

import (
	"fmt"

	"voxelbuild.ai/internal/sim/catalogs"
	"voxelbuild.ai/internal/sim/geom"
)

// Factory creates schematics for the blocks its predicate accepts.
type Factory struct {
	Name  string
	Match func(def catalogs.BlockDef) bool
	New   func() Block
}

// Registry is an ordered list of factories. Later registrations take
// precedence.
type Registry struct {
	factories []Factory
}

func NewRegistry() Registry { return Registry{} }

func (r *Registry) Register(f Factory) {
	r.factories = append(r.factories, f)
}

// RegisterBuiltins adds block, fluid and air, in that order.
func (r *Registry) RegisterBuiltins() {
	r.Register(Factory{Name: KindBlock, Match: func(catalogs.BlockDef) bool { return true }, New: func() Block { return &SolidBlock{} }})
	r.Register(Factory{Name: KindFluid, Match: func(d catalogs.BlockDef) bool { return d.Fluid }, New: func() Block { return &FluidBlock{} }})
	r.Register(Factory{Name: KindAir, Match: func(d catalogs.BlockDef) bool { return d.ID == catalogs.Air }, New: func() Block { return AirBlock{} }})
}

// Builtins returns a registry holding the built-in kinds.
func Builtins() Registry {
	r := NewRegistry()
	r.RegisterBuiltins()
	return r
}

func (r Registry) Lookup(def catalogs.BlockDef) (Factory, bool) {
	for i := len(r.factories) - 1; i >= 0; i-- {
		if f := r.factories[i]; f.Match(def) {
			return f, true
		}
	}
	return Factory{}, false
}

func (r Registry) ByName(name string) (Factory, bool) {
	for i := len(r.factories) - 1; i >= 0; i-- {
		if r.factories[i].Name == name {
			return r.factories[i], true
		}
	}
	return Factory{}, false
}

// Capture builds the schematic describing the current content of pos.
func (r Registry) Capture(ctx Context, pos geom.Cell) (Block, error) {
	name := ctx.World.BlockName(pos)
	def, ok := ctx.Catalogs.Block(name)
	if !ok {
		return nil, fmt.Errorf("capture %v: unknown block %q", pos, name)
	}
	f, ok := r.Lookup(def)
	if !ok {
		return nil, fmt.Errorf("capture %v: %w for %s", pos, ErrUnknownKind, name)
	}
	b := f.New()
	if err := b.Init(ctx, pos); err != nil {
		return nil, fmt.Errorf("capture %v: %w", pos, err)
	}
	return b, nil
}

// Restore recreates a schematic from its kind and state.
func (r Registry) Restore(kind string, state map[string]string) (Block, error) {
	f, ok := r.ByName(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	b := f.New()
	if err := b.SetState(state); err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	return b, nil
}
