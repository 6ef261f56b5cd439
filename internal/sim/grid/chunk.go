package grid

import (
	"crypto/sha256"
	"encoding/binary"
)

const (
	ChunkSize  = 16
	chunkCells = ChunkSize * ChunkSize * ChunkSize
)

type ChunkKey struct {
	CX, CY, CZ int
}

func (k ChunkKey) less(o ChunkKey) bool {
	if k.CX != o.CX {
		return k.CX < o.CX
	}
	if k.CY != o.CY {
		return k.CY < o.CY
	}
	return k.CZ < o.CZ
}

type Chunk struct {
	Key    ChunkKey
	Blocks []uint16 // len = 16*16*16, x fastest, then z, then y

	dirty bool
	hash  [32]byte
}

func index(x, y, z int) int {
	return x + z*ChunkSize + y*ChunkSize*ChunkSize
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks[index(x, y, z)]
}

// Set reports whether the cell changed.
func (c *Chunk) Set(x, y, z int, b uint16) bool {
	i := index(x, y, z)
	if c.Blocks[i] == b {
		return false
	}
	c.Blocks[i] = b
	c.dirty = true
	return true
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}
