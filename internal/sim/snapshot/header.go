// Package snapshot holds captured structures (templates and blueprints) and
// the shapes that rebuild them.
package snapshot

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeTemplate  Type = "TEMPLATE"
	TypeBlueprint Type = "BLUEPRINT"
)

func (t Type) Valid() bool { return t == TypeTemplate || t == TypeBlueprint }

type Header struct {
	ID      uuid.UUID `json:"id" msgpack:"id"`
	Owner   uuid.UUID `json:"owner" msgpack:"owner"`
	Created time.Time `json:"created" msgpack:"created"`
	Name    string    `json:"name" msgpack:"name"`
	Type    Type      `json:"type" msgpack:"type"`
}

func NewHeader(owner uuid.UUID, name string, typ Type, now time.Time) Header {
	return Header{ID: uuid.New(), Owner: owner, Created: now.UTC(), Name: name, Type: typ}
}

var unsafeFileChars = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_", ";", "_",
)

// FileName is the stored file name without extension: owner, creation time,
// name and id joined by ';'.
func (h Header) FileName() string {
	name := strings.TrimSpace(h.Name)
	if name == "" {
		name = "unnamed"
	}
	parts := []string{
		h.Owner.String(),
		h.Created.UTC().Format("20060102T150405Z"),
		unsafeFileChars.Replace(name),
		h.ID.String(),
	}
	return strings.Join(parts, ";")
}
