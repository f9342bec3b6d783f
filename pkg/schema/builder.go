package schema

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marmos91/hotschema/pkg/source"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
)

// graphDirectives declares the directives type definitions may use to map
// GraphQL types onto the graph. They are merged into every artifact unless
// the artifact declares them itself.
const graphDirectives = `
enum RelationshipDirection {
  IN
  OUT
}

directive @relationship(type: String!, direction: RelationshipDirection!) on FIELD_DEFINITION
directive @id on FIELD_DEFINITION
directive @unique on FIELD_DEFINITION
directive @default(value: String) on FIELD_DEFINITION
directive @private on FIELD_DEFINITION
`

const graphDirectivesName = "hotschema:directives.graphql"

var graphDirectiveNames = []string{"relationship", "id", "unique", "default", "private"}

func isGraphDirectiveType(name string) bool {
	return name == "RelationshipDirection"
}

// BuildError reports why an artifact could not be turned into a schema.
type BuildError struct {
	// Source is the artifact's source descriptor
	Source string

	// Errors are the individual parse and validation failures
	Errors gqlerror.List
}

func (e *BuildError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("build schema from %s: invalid type definitions", e.Source)
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("build schema from %s: %s", e.Source, strings.Join(msgs, "; "))
}

// SDLBuilder builds schemas from GraphQL SDL.
type SDLBuilder struct {
	now func() time.Time
}

// NewSDLBuilder returns a Builder for SDL artifacts.
func NewSDLBuilder() *SDLBuilder {
	return &SDLBuilder{now: time.Now}
}

// Build implements Builder.
func (b *SDLBuilder) Build(artifact *source.Artifact) (*Schema, error) {
	if artifact == nil {
		return nil, &BuildError{Source: "<nil>", Errors: gqlerror.List{gqlerror.Errorf("no artifact")}}
	}

	input := &ast.Source{Name: artifact.Source, Input: artifact.Content}

	// Parse once on its own so syntax errors point at the artifact and so
	// we know whether it already declares the graph directives.
	doc, err := parser.ParseSchema(input)
	if err != nil {
		return nil, buildError(artifact.Source, err)
	}

	sources := []*ast.Source{input}
	if !declaresGraphDirectives(doc) {
		sources = append([]*ast.Source{{Name: graphDirectivesName, Input: graphDirectives, BuiltIn: true}}, sources...)
	}

	s, err := gqlparser.LoadSchema(sources...)
	if err != nil {
		return nil, buildError(artifact.Source, err)
	}
	if s.Query == nil {
		return nil, &BuildError{Source: artifact.Source, Errors: gqlerror.List{gqlerror.Errorf("schema has no Query type")}}
	}

	rels, err := relationships(s)
	if err != nil {
		return nil, buildError(artifact.Source, err)
	}

	now := time.Now
	if b.now != nil {
		now = b.now
	}

	return &Schema{
		AST:           s,
		Artifact:      artifact,
		BuiltAt:       now(),
		relationships: rels,
	}, nil
}

func declaresGraphDirectives(doc *ast.SchemaDocument) bool {
	for _, name := range graphDirectiveNames {
		if doc.Directives.ForName(name) != nil {
			return true
		}
	}
	return false
}

// relationships reads every @relationship directive and checks that it
// points at an object type.
func relationships(s *ast.Schema) (map[string]map[string]Relationship, error) {
	out := make(map[string]map[string]Relationship)
	var errs gqlerror.List

	for _, def := range s.Types {
		if def.BuiltIn || def.Kind != ast.Object {
			continue
		}
		for _, f := range def.Fields {
			d := f.Directives.ForName("relationship")
			if d == nil {
				continue
			}

			rel := Relationship{
				Type:      argString(d, "type"),
				Direction: Direction(argString(d, "direction")),
				Target:    f.Type.Name(),
				List:      f.Type.Elem != nil,
			}
			if rel.Type == "" {
				errs = append(errs, gqlerror.ErrorPosf(f.Position, "%s.%s: @relationship requires a type", def.Name, f.Name))
				continue
			}
			if rel.Direction != DirectionIn && rel.Direction != DirectionOut {
				errs = append(errs, gqlerror.ErrorPosf(f.Position, "%s.%s: @relationship direction must be IN or OUT", def.Name, f.Name))
				continue
			}
			if target := s.Types[rel.Target]; target == nil || target.Kind != ast.Object {
				errs = append(errs, gqlerror.ErrorPosf(f.Position, "%s.%s: @relationship target %s is not an object type", def.Name, f.Name, rel.Target))
				continue
			}

			if out[def.Name] == nil {
				out[def.Name] = make(map[string]Relationship)
			}
			out[def.Name][f.Name] = rel
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

func argString(d *ast.Directive, name string) string {
	arg := d.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return ""
	}
	return arg.Value.Raw
}

func buildError(src string, err error) *BuildError {
	var list gqlerror.List
	if errors.As(err, &list) {
		return &BuildError{Source: src, Errors: list}
	}
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		return &BuildError{Source: src, Errors: gqlerror.List{gqlErr}}
	}
	return &BuildError{Source: src, Errors: gqlerror.List{gqlerror.Wrap(err)}}
}
