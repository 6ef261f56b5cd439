package geom

import "fmt"

// Cell is an integer grid coordinate. It is a plain value and is used directly
// as a map key.
type Cell struct{ X, Y, Z int }

func C(x, y, z int) Cell { return Cell{X: x, Y: y, Z: z} }

func (c Cell) Add(o Cell) Cell { return Cell{X: c.X + o.X, Y: c.Y + o.Y, Z: c.Z + o.Z} }
func (c Cell) Sub(o Cell) Cell { return Cell{X: c.X - o.X, Y: c.Y - o.Y, Z: c.Z - o.Z} }

// DistSq is the squared euclidean distance between two cells.
func (c Cell) DistSq(o Cell) int64 {
	dx := int64(c.X - o.X)
	dy := int64(c.Y - o.Y)
	dz := int64(c.Z - o.Z)
	return dx*dx + dy*dy + dz*dz
}

// Less orders cells by X, then Y, then Z.
func (c Cell) Less(o Cell) bool {
	if c.X != o.X {
		return c.X < o.X
	}
	if c.Y != o.Y {
		return c.Y < o.Y
	}
	return c.Z < o.Z
}

func (c Cell) Array() [3]int { return [3]int{c.X, c.Y, c.Z} }

func FromArray(a [3]int) Cell { return Cell{X: a[0], Y: a[1], Z: a[2]} }

func (c Cell) String() string { return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z) }

// Box is an inclusive axis-aligned region.
type Box struct {
	Min Cell
	Max Cell
}

// BoxOf returns the smallest box holding every cell. ok is false for an empty
// slice.
func BoxOf(cells []Cell) (b Box, ok bool) {
	if len(cells) == 0 {
		return Box{}, false
	}
	b = Box{Min: cells[0], Max: cells[0]}
	for _, c := range cells[1:] {
		b = b.Extend(c)
	}
	return b, true
}

func (b Box) Extend(c Cell) Box {
	if c.X < b.Min.X {
		b.Min.X = c.X
	}
	if c.Y < b.Min.Y {
		b.Min.Y = c.Y
	}
	if c.Z < b.Min.Z {
		b.Min.Z = c.Z
	}
	if c.X > b.Max.X {
		b.Max.X = c.X
	}
	if c.Y > b.Max.Y {
		b.Max.Y = c.Y
	}
	if c.Z > b.Max.Z {
		b.Max.Z = c.Z
	}
	return b
}

func (b Box) Contains(c Cell) bool {
	return c.X >= b.Min.X && c.X <= b.Max.X &&
		c.Y >= b.Min.Y && c.Y <= b.Max.Y &&
		c.Z >= b.Min.Z && c.Z <= b.Max.Z
}

func (b Box) Size() Cell {
	return Cell{X: b.Max.X - b.Min.X + 1, Y: b.Max.Y - b.Min.Y + 1, Z: b.Max.Z - b.Min.Z + 1}
}

// Center is the integer centre of the box, rounded towards Min.
func (b Box) Center() Cell {
	return Cell{
		X: FloorDiv(b.Min.X+b.Max.X, 2),
		Y: FloorDiv(b.Min.Y+b.Max.Y, 2),
		Z: FloorDiv(b.Min.Z+b.Max.Z, 2),
	}
}

// Cells lists every cell of the box, X fastest, then Z, then Y.
func (b Box) Cells() []Cell {
	s := b.Size()
	if s.X <= 0 || s.Y <= 0 || s.Z <= 0 {
		return nil
	}
	out := make([]Cell, 0, s.X*s.Y*s.Z)
	for y := b.Min.Y; y <= b.Max.Y; y++ {
		for z := b.Min.Z; z <= b.Max.Z; z++ {
			for x := b.Min.X; x <= b.Max.X; x++ {
				out = append(out, Cell{X: x, Y: y, Z: z})
			}
		}
	}
	return out
}
