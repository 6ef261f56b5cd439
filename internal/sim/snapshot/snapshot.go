package snapshot

import (
	"fmt"

	"voxelbuild.ai/internal/sim/geom"
)

// Base is shared by every snapshot. Cells are addressed locally in
// [0, Size); Offset moves local cells relative to the build origin.
type Base struct {
	Header Header
	Size   geom.Cell
	// Facing is the quarter-turn the structure was captured with.
	Facing int
	Offset geom.Cell
}

func (b *Base) Volume() int { return b.Size.X * b.Size.Y * b.Size.Z }

func (b *Base) index(c geom.Cell) int {
	return c.X + c.Z*b.Size.X + c.Y*b.Size.X*b.Size.Z
}

func (b *Base) local(i int) geom.Cell {
	x := i % b.Size.X
	z := (i / b.Size.X) % b.Size.Z
	y := i / (b.Size.X * b.Size.Z)
	return geom.Cell{X: x, Y: y, Z: z}
}

func (b *Base) validate() error {
	if !b.Header.Type.Valid() {
		return fmt.Errorf("snapshot: bad type %q", b.Header.Type)
	}
	if b.Size.X <= 0 || b.Size.Y <= 0 || b.Size.Z <= 0 {
		return fmt.Errorf("snapshot: bad size %v", b.Size)
	}
	if b.Volume() > 1<<24 {
		return fmt.Errorf("snapshot: %v too large", b.Size)
	}
	return nil
}

// ToWorld maps a local cell to the world for a build at origin turned by
// rot quarter turns relative to the captured facing.
func (b *Base) ToWorld(origin geom.Cell, rot int, local geom.Cell) geom.Cell {
	return origin.Add(geom.Rotate(local.Add(b.Offset), geom.NormalizeRotation(rot)))
}

// Snapshot is a template or a blueprint.
type Snapshot interface {
	Meta() *Base
	// Info splits the captured region into cells to clear and cells to
	// place for a build at origin.
	Info(origin geom.Cell, rot int) BuildingInfo
}

// BuildingInfo is a snapshot resolved to world coordinates.
type BuildingInfo struct {
	Origin   geom.Cell
	Rotation int
	Box      geom.Box
	ToBreak  []geom.Cell
	ToPlace  []geom.Cell
	// Local maps each world cell back to its local cell.
	Local map[geom.Cell]geom.Cell
}

func newInfo(b *Base, origin geom.Cell, rot int, place func(i int) bool) BuildingInfo {
	info := BuildingInfo{Origin: origin, Rotation: geom.NormalizeRotation(rot), Local: make(map[geom.Cell]geom.Cell, b.Volume())}
	for i := 0; i < b.Volume(); i++ {
		l := b.local(i)
		w := b.ToWorld(origin, rot, l)
		info.Local[w] = l
		if i == 0 {
			info.Box = geom.Box{Min: w, Max: w}
		} else {
			info.Box = info.Box.Extend(w)
		}
		if place(i) {
			info.ToPlace = append(info.ToPlace, w)
		} else {
			info.ToBreak = append(info.ToBreak, w)
		}
	}
	return info
}

// RotationFor is the rotation that builds the snapshot facing facing.
func (b *Base) RotationFor(facing int) int {
	return geom.NormalizeRotation(geom.NormalizeRotation(facing) - b.Facing)
}
