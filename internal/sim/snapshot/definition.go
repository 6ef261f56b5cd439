package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	jsv "github.com/santhosh-tekuri/jsonschema/v5"

	"voxelbuild.ai/internal/sim/catalogs"
	"voxelbuild.ai/internal/sim/geom"
	"voxelbuild.ai/internal/sim/schematic"
)

var ErrInvalidDefinition = errors.New("snapshot: invalid definition")

// Definition is a designer-authored structure. Layers run bottom to top;
// each layer is a list of rows along Z and each character of a row is one
// cell along X, resolved through Legend. '.' and ' ' are air.
type Definition struct {
	Name   string            `json:"name" jsonschema:"title=Name,description=Display name of the structure.,minLength=1,required"`
	Type   Type              `json:"type" jsonschema:"title=Type,enum=TEMPLATE,enum=BLUEPRINT,required"`
	Owner  string            `json:"owner,omitempty" jsonschema:"title=Owner,description=UUID of the author."`
	Facing int               `json:"facing,omitempty" jsonschema:"title=Facing,minimum=0,maximum=3"`
	Offset []int             `json:"offset,omitempty" jsonschema:"title=Offset,description=Offset of the first cell from the build origin as [x y z].,minItems=3,maxItems=3"`
	Legend map[string]string `json:"legend" jsonschema:"title=Legend,description=Block id per layer character.,required"`
	Layers [][]string        `json:"layers" jsonschema:"title=Layers,description=Rows along Z for each layer from the bottom up.,minItems=1,required"`
}

// DefinitionSchema reflects the JSON schema of Definition.
func DefinitionSchema() *jsonschema.Schema {
	r := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	s := r.ReflectFromType(reflect.TypeOf(Definition{}))
	s.Title = "Structure Definition"
	s.Description = "Layered text description of a template or blueprint."
	return s
}

var (
	compileOnce sync.Once
	compiled    *jsv.Schema
	compileErr  error
)

func definitionValidator() (*jsv.Schema, error) {
	compileOnce.Do(func() {
		raw, err := json.Marshal(DefinitionSchema())
		if err != nil {
			compileErr = err
			return
		}
		compiled, compileErr = jsv.CompileString("definition.schema.json", string(raw))
	})
	return compiled, compileErr
}

// ParseDefinition validates raw against the definition schema before
// decoding it.
func ParseDefinition(raw []byte) (*Definition, error) {
	s, err := definitionValidator()
	if err != nil {
		return nil, fmt.Errorf("definition schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	var d Definition
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	return &d, nil
}

func LoadDefinition(path string) (*Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := ParseDefinition(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

func (d *Definition) size() (geom.Cell, error) {
	size := geom.Cell{Y: len(d.Layers)}
	for y, layer := range d.Layers {
		if y == 0 {
			size.Z = len(layer)
		} else if len(layer) != size.Z {
			return geom.Cell{}, fmt.Errorf("%w: layer %d has %d rows, want %d", ErrInvalidDefinition, y, len(layer), size.Z)
		}
		for z, row := range layer {
			n := utf8.RuneCountInString(row)
			if y == 0 && z == 0 {
				size.X = n
			} else if n != size.X {
				return geom.Cell{}, fmt.Errorf("%w: layer %d row %d has %d cells, want %d", ErrInvalidDefinition, y, z, n, size.X)
			}
		}
	}
	if size.X == 0 || size.Z == 0 {
		return geom.Cell{}, fmt.Errorf("%w: empty layers", ErrInvalidDefinition)
	}
	return size, nil
}

func (d *Definition) header(now time.Time) (Header, error) {
	var owner uuid.UUID
	if d.Owner != "" {
		var err error
		if owner, err = uuid.Parse(d.Owner); err != nil {
			return Header{}, fmt.Errorf("%w: owner: %v", ErrInvalidDefinition, err)
		}
	}
	return NewHeader(owner, d.Name, d.Type, now), nil
}

// Build resolves the definition into a snapshot of its declared type.
func (d *Definition) Build(cat *catalogs.Catalogs, now time.Time) (Snapshot, error) {
	size, err := d.size()
	if err != nil {
		return nil, err
	}
	h, err := d.header(now)
	if err != nil {
		return nil, err
	}
	var offset geom.Cell
	if len(d.Offset) == 3 {
		offset = geom.Cell{X: d.Offset[0], Y: d.Offset[1], Z: d.Offset[2]}
	}

	lookup := func(ch rune) (string, error) {
		if ch == '.' || ch == ' ' {
			return catalogs.Air, nil
		}
		name, ok := d.Legend[string(ch)]
		if !ok {
			return "", fmt.Errorf("%w: no legend entry for %q", ErrInvalidDefinition, ch)
		}
		if _, ok := cat.Block(name); !ok {
			return "", fmt.Errorf("%w: unknown block %q", ErrInvalidDefinition, name)
		}
		return name, nil
	}

	switch d.Type {
	case TypeTemplate:
		t := NewTemplate(h, size)
		t.Facing = geom.NormalizeRotation(d.Facing)
		t.Offset = offset
		err := d.each(func(c geom.Cell, ch rune) error {
			name, err := lookup(ch)
			if err == nil && name != catalogs.Air {
				t.Set(c, true)
			}
			return err
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	case TypeBlueprint:
		reg := schematic.Builtins()
		b := NewBlueprint(h, size)
		b.Facing = geom.NormalizeRotation(d.Facing)
		b.Offset = offset
		err := d.each(func(c geom.Cell, ch rune) error {
			name, err := lookup(ch)
			if err != nil || name == catalogs.Air {
				return err
			}
			def, _ := cat.Block(name)
			f, ok := reg.Lookup(def)
			if !ok {
				return fmt.Errorf("%w for %s", schematic.ErrUnknownKind, name)
			}
			blk, err := reg.Restore(f.Name, map[string]string{"block": name})
			if err != nil {
				return err
			}
			b.Set(c, blk)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: type %q", ErrInvalidDefinition, d.Type)
}

func (d *Definition) each(fn func(c geom.Cell, ch rune) error) error {
	for y, layer := range d.Layers {
		for z, row := range layer {
			for x, ch := range []rune(row) {
				if err := fn(geom.Cell{X: x, Y: y, Z: z}, ch); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
