package grid

import (
	"encoding/hex"
	"fmt"

	"voxelbuild.ai/internal/sim/catalogs"
	"voxelbuild.ai/internal/sim/encoding"
)

// ChunkData is a chunk as stored in world files.
type ChunkData struct {
	CX     int    `msgpack:"cx"`
	CY     int    `msgpack:"cy"`
	CZ     int    `msgpack:"cz"`
	RLE    []byte `msgpack:"rle"`
	Digest string `msgpack:"digest"`
}

// ExportChunks encodes every loaded chunk in key order.
func (g *Grid) ExportChunks() []ChunkData {
	keys := g.LoadedChunkKeys()
	out := make([]ChunkData, 0, len(keys))
	for _, k := range keys {
		ch := g.chunks[k]
		d := ch.Digest()
		out = append(out, ChunkData{
			CX:     k.CX,
			CY:     k.CY,
			CZ:     k.CZ,
			RLE:    encoding.EncodeRLE(ch.Blocks),
			Digest: hex.EncodeToString(d[:]),
		})
	}
	return out
}

// ImportChunks rebuilds a grid from exported chunks. Chunks not listed are
// generated on demand as usual.
func ImportChunks(cat *catalogs.Catalogs, gen Gen, chunks []ChunkData, opts ...Option) (*Grid, error) {
	g := New(cat, gen, opts...)
	for _, cd := range chunks {
		blocks, err := encoding.DecodeRLE(cd.RLE, chunkCells)
		if err != nil {
			return nil, fmt.Errorf("chunk %d,%d,%d: %w", cd.CX, cd.CY, cd.CZ, err)
		}
		for i, id := range blocks {
			if int(id) >= len(cat.Blocks.Palette) {
				return nil, fmt.Errorf("chunk %d,%d,%d: block id %d at %d not in palette", cd.CX, cd.CY, cd.CZ, id, i)
			}
		}
		k := ChunkKey{CX: cd.CX, CY: cd.CY, CZ: cd.CZ}
		ch := &Chunk{Key: k, Blocks: blocks, dirty: true}
		d := ch.Digest()
		if cd.Digest != "" && cd.Digest != hex.EncodeToString(d[:]) {
			return nil, fmt.Errorf("chunk %d,%d,%d: digest mismatch", cd.CX, cd.CY, cd.CZ)
		}
		g.chunks[k] = ch
	}
	return g, nil
}
