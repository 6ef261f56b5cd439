// Package schematic describes how a single captured cell is rebuilt.
package schematic

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"voxelbuild.ai/internal/sim/catalogs"
	"voxelbuild.ai/internal/sim/geom"
	"voxelbuild.ai/internal/sim/inventory"
)

var ErrUnknownKind = errors.New("schematic: unknown kind")

// World is the grid access schematics need.
type World interface {
	BlockName(c geom.Cell) string
	Set(c geom.Cell, name string) error
	IsEmpty(c geom.Cell) bool
}

type Context struct {
	World    World
	Catalogs *catalogs.Catalogs
}

// Block is one palette entry of a blueprint.
type Block interface {
	Kind() string
	// Init captures the content of pos.
	Init(ctx Context, pos geom.Cell) error
	// RequiredItems is what building one cell consumes. Nil means the cell
	// is never placed.
	RequiredItems(cat *catalogs.Catalogs) []inventory.ItemStack
	CanBuild(ctx Context, pos geom.Cell) bool
	Build(ctx Context, pos geom.Cell) bool
	IsBuilt(ctx Context, pos geom.Cell) bool
	State() map[string]string
	SetState(state map[string]string) error
}

// Key identifies equal palette entries.
func Key(b Block) string {
	st := b.State()
	keys := make([]string, 0, len(st))
	for k := range st {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(b.Kind())
	for _, k := range keys {
		fmt.Fprintf(&sb, ";%s=%s", k, st[k])
	}
	return sb.String()
}
