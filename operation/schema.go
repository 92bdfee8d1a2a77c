package operation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// SchemaState is an immutable snapshot of the schema the router plans
// against. A new state replaces the old one wholesale on reload; plans
// cached under the previous state's ID are never served for the new
// one.
type SchemaState struct {
	schema *ast.Schema
	sdl    string
	id     string
}

// NewSchemaState parses sdl and returns the resulting state. The
// federationVersion is folded into the state ID so upgrading the
// composition toolchain invalidates cached plans even when the SDL
// text is unchanged.
func NewSchemaState(sdl, federationVersion string) (*SchemaState, error) {
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "supergraph.graphql", Input: sdl})
	if err != nil {
		return nil, fmt.Errorf("graphgate/operation: load schema: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(sdl))
	h.Write([]byte{0})
	h.Write([]byte(federationVersion))

	return &SchemaState{
		schema: schema,
		sdl:    sdl,
		id:     hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Schema returns the parsed schema.
func (s *SchemaState) Schema() *ast.Schema { return s.schema }

// SDL returns the schema text the state was built from.
func (s *SchemaState) SDL() string { return s.sdl }

// ID returns the state's stable identifier, a hex-encoded digest of
// the SDL and federation version.
func (s *SchemaState) ID() string { return s.id }
