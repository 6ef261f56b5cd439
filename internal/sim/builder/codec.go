package builder

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"voxelbuild.ai/internal/sim/geom"
	"voxelbuild.ai/internal/sim/inventory"
)

var (
	ErrCorrupt     = errors.New("builder: corrupt state")
	ErrEmptyItem   = errors.New("builder: empty item stack")
	ErrUnknownItem = errors.New("builder: unknown item")
	ErrCancelled   = errors.New("builder: cancelled")
)

const maxItemsPerTask = 1 << 10

// Encode writes the active queues and the remaining-work counters. Pending
// state is not written; it is rebuilt by rescanning after Decode.
func (b *Builder) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)
	e := encoder{w: bw}
	e.i32(int32(len(b.activeClear)))
	for _, t := range b.activeClear {
		e.cell(t.Pos)
		e.i64(int64(t.Progress))
	}
	e.i32(int32(len(b.activePlace)))
	for _, t := range b.activePlace {
		e.cell(t.Pos)
		e.i64(int64(t.Progress))
		e.i32(int32(len(t.Items)))
		for _, it := range t.Items {
			e.str(it.Item)
			e.i32(int32(it.Count))
		}
	}
	e.i32(int32(b.leftToClear))
	e.i32(int32(b.leftToPlace))
	if e.err != nil {
		return fmt.Errorf("builder encode: %w", e.err)
	}
	return bw.Flush()
}

func (b *Builder) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode replaces the builder's scheduling state with the one read from r.
// The decoded tasks become active again; every other target cell is queued
// for classification. On error the builder is left unchanged.
func (b *Builder) Decode(r io.Reader) error {
	if b.cancelled {
		return ErrCancelled
	}
	d := decoder{r: bufio.NewReader(r)}
	seen := map[geom.Cell]bool{}
	checkPos := func(pos geom.Cell) error {
		if _, ok := b.inTgt[pos]; !ok {
			return fmt.Errorf("%w: task at %v outside the shape", ErrCorrupt, pos)
		}
		if seen[pos] {
			return fmt.Errorf("%w: duplicate task at %v", ErrCorrupt, pos)
		}
		seen[pos] = true
		return nil
	}

	n, err := d.count(b.cfg.MaxActive)
	if err != nil {
		return fmt.Errorf("builder decode clear tasks: %w", err)
	}
	clears := make([]*ClearTask, 0, n)
	for i := 0; i < n; i++ {
		t := &ClearTask{Pos: d.cell(), Progress: d.progress()}
		if d.err != nil {
			return fmt.Errorf("builder decode clear task %d: %w", i, d.err)
		}
		if err := checkPos(t.Pos); err != nil {
			return err
		}
		clears = append(clears, t)
	}

	n, err = d.count(b.cfg.MaxActive)
	if err != nil {
		return fmt.Errorf("builder decode place tasks: %w", err)
	}
	places := make([]*PlaceTask, 0, n)
	for i := 0; i < n; i++ {
		t := &PlaceTask{Pos: d.cell(), Progress: d.progress()}
		items, err := d.items(b.cfg.CheckItem)
		if err == nil {
			err = d.err
		}
		if err != nil {
			return fmt.Errorf("builder decode place task %d: %w", i, err)
		}
		if err := checkPos(t.Pos); err != nil {
			return err
		}
		t.Items = items
		places = append(places, t)
	}

	leftToClear := int(d.i32())
	leftToPlace := int(d.i32())
	if d.err != nil {
		return fmt.Errorf("builder decode counters: %w", d.err)
	}
	if leftToClear < 0 || leftToPlace < 0 {
		return fmt.Errorf("%w: negative counters", ErrCorrupt)
	}

	b.resetQueues()
	for _, t := range clears {
		b.setState(t.Pos, stateActiveClear)
	}
	for _, t := range places {
		b.setState(t.Pos, stateActivePlace)
	}
	b.activeClear = clears
	b.activePlace = places
	b.leftToClear = leftToClear
	b.leftToPlace = leftToPlace
	b.hasRobot = false
	return nil
}

func (b *Builder) UnmarshalBinary(data []byte) error {
	return b.Decode(bytes.NewReader(data))
}

type encoder struct {
	w   io.Writer
	buf [8]byte
	err error
}

func (e *encoder) write(p []byte) {
	if e.err == nil {
		_, e.err = e.w.Write(p)
	}
}

func (e *encoder) i32(v int32) {
	binary.BigEndian.PutUint32(e.buf[:4], uint32(v))
	e.write(e.buf[:4])
}

func (e *encoder) i64(v int64) {
	binary.BigEndian.PutUint64(e.buf[:8], uint64(v))
	e.write(e.buf[:8])
}

func (e *encoder) cell(c geom.Cell) {
	e.i32(int32(c.X))
	e.i32(int32(c.Y))
	e.i32(int32(c.Z))
}

func (e *encoder) str(s string) {
	if len(s) > math.MaxUint16 {
		e.err = fmt.Errorf("item name too long: %d bytes", len(s))
		return
	}
	binary.BigEndian.PutUint16(e.buf[:2], uint16(len(s)))
	e.write(e.buf[:2])
	e.write([]byte(s))
}

type decoder struct {
	r   io.Reader
	buf [8]byte
	err error
}

func (d *decoder) read(n int) []byte {
	if d.err != nil {
		return nil
	}
	if _, err := io.ReadFull(d.r, d.buf[:n]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		d.err = err
		return nil
	}
	return d.buf[:n]
}

func (d *decoder) i32() int32 {
	p := d.read(4)
	if p == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(p))
}

func (d *decoder) i64() int64 {
	p := d.read(8)
	if p == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(p))
}

func (d *decoder) cell() geom.Cell {
	return geom.Cell{X: int(d.i32()), Y: int(d.i32()), Z: int(d.i32())}
}

func (d *decoder) progress() uint64 {
	v := d.i64()
	if v < 0 && d.err == nil {
		d.err = fmt.Errorf("%w: negative progress", ErrCorrupt)
	}
	return uint64(v)
}

func (d *decoder) count(limit int) (int, error) {
	n := d.i32()
	if d.err != nil {
		return 0, d.err
	}
	if n < 0 || int(n) > limit {
		return 0, fmt.Errorf("%w: %d tasks, limit %d", ErrCorrupt, n, limit)
	}
	return int(n), nil
}

func (d *decoder) str() string {
	p := d.read(2)
	if p == nil {
		return ""
	}
	n := int(binary.BigEndian.Uint16(p))
	if n == 0 {
		return ""
	}
	s := make([]byte, n)
	if _, err := io.ReadFull(d.r, s); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		d.err = err
		return ""
	}
	return string(s)
}

func (d *decoder) items(check func(string) error) ([]inventory.ItemStack, error) {
	n := d.i32()
	if d.err != nil {
		return nil, d.err
	}
	if n == 0 {
		return nil, ErrEmptyItem
	}
	if n < 0 || n > maxItemsPerTask {
		return nil, fmt.Errorf("%w: %d item stacks", ErrCorrupt, n)
	}
	items := make([]inventory.ItemStack, 0, n)
	for i := int32(0); i < n; i++ {
		name := d.str()
		count := d.i32()
		if d.err != nil {
			return nil, d.err
		}
		if name == "" || count <= 0 {
			return nil, fmt.Errorf("%w: %q x%d", ErrEmptyItem, name, count)
		}
		if check != nil {
			if err := check(name); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrUnknownItem, err)
			}
		}
		items = append(items, inventory.ItemStack{Item: name, Count: int(count)})
	}
	return items, nil
}
