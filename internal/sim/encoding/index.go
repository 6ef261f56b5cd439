package encoding

import (
	"fmt"
	"io"
)

// IndexWidth is the number of bytes used per palette index.
type IndexWidth uint8

const (
	Width1 IndexWidth = 1
	Width2 IndexWidth = 2
	Width3 IndexWidth = 3
	Width4 IndexWidth = 4
)

// WidthFor picks the narrowest width able to hold every index of a palette
// with n entries.
func WidthFor(n int) IndexWidth {
	switch {
	case n <= 1<<8:
		return Width1
	case n <= 1<<16:
		return Width2
	case n <= 1<<24:
		return Width3
	default:
		return Width4
	}
}

func (w IndexWidth) Valid() bool { return w >= Width1 && w <= Width4 }

// PutIndices packs indices big-endian at width w.
func PutIndices(w IndexWidth, idx []uint32) ([]byte, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("index width %d", w)
	}
	limit := uint64(1) << (8 * uint(w))
	out := make([]byte, 0, len(idx)*int(w))
	for i, v := range idx {
		if uint64(v) >= limit {
			return nil, fmt.Errorf("index %d at %d does not fit %d bytes", v, i, w)
		}
		for s := int(w) - 1; s >= 0; s-- {
			out = append(out, byte(v>>(8*uint(s))))
		}
	}
	return out, nil
}

// Indices unpacks exactly n indices of width w from raw.
func Indices(w IndexWidth, raw []byte, n int) ([]uint32, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("index width %d", w)
	}
	if len(raw) != n*int(w) {
		if len(raw) < n*int(w) {
			return nil, fmt.Errorf("indices: %w", io.ErrUnexpectedEOF)
		}
		return nil, fmt.Errorf("indices: %d trailing bytes", len(raw)-n*int(w))
	}
	out := make([]uint32, n)
	for i := range out {
		var v uint32
		for _, b := range raw[i*int(w) : (i+1)*int(w)] {
			v = v<<8 | uint32(b)
		}
		out[i] = v
	}
	return out, nil
}
