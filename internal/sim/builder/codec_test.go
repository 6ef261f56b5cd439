package builder

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"testing"

	"voxelbuild.ai/internal/sim/geom"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		setup func() *rig
	}{
		{
			name: "clearing",
			setup: func() *rig {
				clear := box(geom.C(0, 1, 0), geom.C(2, 1, 0))
				r := newRig(1000*mj, 30*mj, 1, clear, []geom.Cell{geom.C(0, 0, 5)})
				for _, c := range clear {
					r.g.cells[c] = "DIRT"
				}
				r.g.res["DIRT"] = 100 * mj
				return r
			},
		},
		{
			name: "placing",
			setup: func() *rig {
				place := []geom.Cell{geom.C(3, 0, 0), geom.C(0, 0, 3), geom.C(-3, 0, 0)}
				return newRig(30*mj, 30*mj, 3, nil, place)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.setup()
			src := r.start(Config{})
			src.Tick()
			if len(src.ActiveClear())+len(src.ActivePlace()) == 0 {
				t.Fatalf("fixture produced no active tasks")
			}
			data, err := src.MarshalBinary()
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}

			dst := r.start(Config{})
			if err := dst.UnmarshalBinary(data); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !reflect.DeepEqual(src.ActiveClear(), dst.ActiveClear()) {
				t.Fatalf("clear tasks: %+v vs %+v", src.ActiveClear(), dst.ActiveClear())
			}
			if !reflect.DeepEqual(src.ActivePlace(), dst.ActivePlace()) {
				t.Fatalf("place tasks: %+v vs %+v", src.ActivePlace(), dst.ActivePlace())
			}
			if src.LeftToClear() != dst.LeftToClear() || src.LeftToPlace() != dst.LeftToPlace() {
				t.Fatalf("counters: %d/%d vs %d/%d", src.LeftToClear(), src.LeftToPlace(), dst.LeftToClear(), dst.LeftToPlace())
			}
			again, err := dst.MarshalBinary()
			if err != nil {
				t.Fatalf("re-marshal: %v", err)
			}
			if !bytes.Equal(data, again) {
				t.Fatalf("re-encoded state differs")
			}
		})
	}
}

func TestDecodedBuilderFinishes(t *testing.T) {
	place := []geom.Cell{geom.C(3, 0, 0), geom.C(0, 0, 3), geom.C(-3, 0, 0)}
	r := newRig(30*mj, 30*mj, 3, nil, place)
	src := r.start(Config{})
	src.Tick()
	data, err := src.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	src.unsubscribe()

	dst := r.start(Config{})
	if err := dst.UnmarshalBinary(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for i := 0; i < 10 && !dst.Done(); i++ {
		r.bat.Add(30*mj, false)
		dst.Tick()
	}
	if !dst.Done() {
		t.Fatalf("decoded builder never finished")
	}
	for _, c := range place {
		if r.g.cells[c] != "STONE" {
			t.Fatalf("cell %v not placed", c)
		}
	}
}

func encodeRaw(fn func(e *encoder)) []byte {
	var buf bytes.Buffer
	e := encoder{w: &buf}
	fn(&e)
	return buf.Bytes()
}

func TestDecodeErrors(t *testing.T) {
	place := []geom.Cell{geom.C(3, 0, 0)}
	valid := encodeRaw(func(e *encoder) {
		e.i32(0)
		e.i32(1)
		e.cell(geom.C(3, 0, 0))
		e.i64(5)
		e.i32(1)
		e.str("STONE")
		e.i32(1)
		e.i32(0)
		e.i32(1)
	})

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, io.ErrUnexpectedEOF},
		{"truncated", valid[:len(valid)-3], io.ErrUnexpectedEOF},
		{"truncated name", valid[:30], io.ErrUnexpectedEOF},
		{"too many tasks", encodeRaw(func(e *encoder) { e.i32(DefaultMaxActive + 1) }), ErrCorrupt},
		{"negative count", encodeRaw(func(e *encoder) { e.i32(-1) }), ErrCorrupt},
		{"outside shape", encodeRaw(func(e *encoder) {
			e.i32(1)
			e.cell(geom.C(9, 9, 9))
			e.i64(0)
		}), ErrCorrupt},
		{"empty name", encodeRaw(func(e *encoder) {
			e.i32(0)
			e.i32(1)
			e.cell(geom.C(3, 0, 0))
			e.i64(0)
			e.i32(1)
			e.str("")
			e.i32(1)
		}), ErrEmptyItem},
		{"no items", encodeRaw(func(e *encoder) {
			e.i32(0)
			e.i32(1)
			e.cell(geom.C(3, 0, 0))
			e.i64(0)
			e.i32(0)
		}), ErrEmptyItem},
		{"unknown item", encodeRaw(func(e *encoder) {
			e.i32(0)
			e.i32(1)
			e.cell(geom.C(3, 0, 0))
			e.i64(0)
			e.i32(1)
			e.str("GOLD")
			e.i32(1)
		}), ErrUnknownItem},
	}
	checkItem := func(item string) error {
		if item != "STONE" {
			return fmt.Errorf("no item %q", item)
		}
		return nil
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(100*mj, 0, 0, nil, place)
			b := r.start(Config{CheckItem: checkItem})
			err := b.Decode(bytes.NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if len(b.ActivePlace()) != 0 {
				t.Fatalf("failed decode changed the builder")
			}
		})
	}

	r := newRig(100*mj, 0, 0, nil, place)
	b := r.start(Config{CheckItem: checkItem})
	if err := b.Decode(bytes.NewReader(valid)); err != nil {
		t.Fatalf("valid input: %v", err)
	}
	if got := b.ActivePlace(); len(got) != 1 || got[0].Progress != 5 || got[0].Items[0].Item != "STONE" {
		t.Fatalf("decoded = %+v", got)
	}
}
