package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const Air = "AIR"

var ErrUnknownItem = errors.New("unknown item")

type Catalogs struct {
	Blocks BlockCatalog
	Items  ItemCatalog

	// blockItem maps a block id to the item that places it.
	blockItem map[string]string
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

type BlockDef struct {
	ID        string  `json:"id"`
	Solid     bool    `json:"solid"`
	Breakable bool    `json:"breakable"`
	Fluid     bool    `json:"fluid,omitempty"`
	Hardness  float64 `json:"hardness"`
	DropsItem string  `json:"drops_item,omitempty"`
}

type ItemCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]ItemDef
	PaletteDigest string
	DefsDigest    string
}

type ItemDef struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"` // "BLOCK","TOOL","MATERIAL","BUCKET"
	PlaceAs string `json:"place_as,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	blocksRaw, err := os.ReadFile(filepath.Join(configDir, "blocks.json"))
	if err != nil {
		return nil, err
	}
	itemsRaw, err := os.ReadFile(filepath.Join(configDir, "items.json"))
	if err != nil {
		return nil, err
	}
	var blocks []BlockDef
	if err := json.Unmarshal(blocksRaw, &blocks); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}
	var items []ItemDef
	if err := json.Unmarshal(itemsRaw, &items); err != nil {
		return nil, fmt.Errorf("items.json: %w", err)
	}
	c, err := New(blocks, items)
	if err != nil {
		return nil, err
	}
	c.Blocks.DefsDigest = sha256Hex(blocksRaw)
	c.Items.DefsDigest = sha256Hex(itemsRaw)
	return c, nil
}

// New builds catalogs from in-memory definitions.
func New(blocks []BlockDef, items []ItemDef) (*Catalogs, error) {
	var c Catalogs
	if err := buildBlocks(blocks, &c.Blocks); err != nil {
		return nil, err
	}
	if err := buildItems(items, &c.Items); err != nil {
		return nil, err
	}
	c.blockItem = map[string]string{}
	for _, id := range c.Items.Palette {
		d := c.Items.Defs[id]
		if d.PlaceAs == "" {
			continue
		}
		if _, ok := c.Blocks.Defs[d.PlaceAs]; !ok {
			return nil, fmt.Errorf("items.json: %s places unknown block %s", d.ID, d.PlaceAs)
		}
		if _, dup := c.blockItem[d.PlaceAs]; !dup {
			c.blockItem[d.PlaceAs] = d.ID
		}
	}
	return &c, nil
}

func buildBlocks(defs []BlockDef, out *BlockCatalog) error {
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Ensure AIR exists and is palette id 0.
	if _, ok := out.Defs[Air]; !ok {
		return fmt.Errorf("blocks.json: missing AIR")
	}
	ids = append([]string{Air}, filterOut(ids, Air)...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func buildItems(defs []ItemDef, out *ItemCatalog) error {
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func (c *Catalogs) AirID() uint16 { return c.Blocks.Index[Air] }

func (c *Catalogs) BlockID(name string) (uint16, bool) {
	id, ok := c.Blocks.Index[name]
	return id, ok
}

func (c *Catalogs) BlockName(id uint16) string {
	if int(id) >= len(c.Blocks.Palette) {
		return ""
	}
	return c.Blocks.Palette[id]
}

func (c *Catalogs) Block(name string) (BlockDef, bool) {
	d, ok := c.Blocks.Defs[name]
	return d, ok
}

// ItemForBlock returns the item that places block, if any.
func (c *Catalogs) ItemForBlock(block string) (string, bool) {
	item, ok := c.blockItem[block]
	return item, ok
}

// PlaceAs returns the block an item places.
func (c *Catalogs) PlaceAs(item string) (string, bool) {
	d, ok := c.Items.Defs[item]
	if !ok || d.PlaceAs == "" {
		return "", false
	}
	return d.PlaceAs, true
}

// CheckItem validates an item name read from untrusted input.
func (c *Catalogs) CheckItem(item string) error {
	if _, ok := c.Items.Defs[item]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownItem, item)
	}
	return nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func filterOut(in []string, remove string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == remove {
			continue
		}
		out = append(out, s)
	}
	return out
}
