// Package schema turns a fetched type definitions artifact into the
// executable schema a serving generation answers queries against.
package schema

import (
	"sort"
	"strings"
	"time"

	"github.com/marmos91/hotschema/pkg/source"
	"github.com/vektah/gqlparser/v2/ast"
)

// Builder converts an artifact into an executable schema.
type Builder interface {
	Build(artifact *source.Artifact) (*Schema, error)
}

// Direction of a relationship field, relative to the declaring type.
type Direction string

const (
	DirectionOut Direction = "OUT"
	DirectionIn  Direction = "IN"
)

// Relationship describes a field resolved by traversing graph edges.
type Relationship struct {
	// Type is the relationship type in the graph, e.g. ACTED_IN
	Type string

	Direction Direction

	// Target is the object type at the other end
	Target string

	// List reports whether the field returns a list
	List bool
}

// Schema is a validated GraphQL schema plus the graph mapping derived from
// its directives. It is immutable once built.
type Schema struct {
	// AST is the validated schema, including the built-in prelude
	AST *ast.Schema

	// Artifact is the source the schema was built from
	Artifact *source.Artifact

	// BuiltAt is when Build completed
	BuiltAt time.Time

	relationships map[string]map[string]Relationship
}

// Relationship returns the graph mapping for typeName.field, if any.
func (s *Schema) Relationship(typeName, field string) (Relationship, bool) {
	rel, ok := s.relationships[typeName][field]
	return rel, ok
}

// NodeTypes returns the user-defined object types, excluding the root
// operation types, sorted by name.
func (s *Schema) NodeTypes() []*ast.Definition {
	var defs []*ast.Definition
	for _, def := range s.AST.Types {
		if def.BuiltIn || def.Kind != ast.Object || s.isRoot(def) {
			continue
		}
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func (s *Schema) isRoot(def *ast.Definition) bool {
	return def == s.AST.Query || def == s.AST.Mutation || def == s.AST.Subscription
}

// TypeInfo summarizes one type for inspection output.
type TypeInfo struct {
	Name          string   `json:"name" yaml:"name"`
	Kind          string   `json:"kind" yaml:"kind"`
	Fields        int      `json:"fields" yaml:"fields"`
	Relationships []string `json:"relationships,omitempty" yaml:"relationships,omitempty"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Inspect lists the user-defined types with their field counts and
// relationship fields, root types first.
func (s *Schema) Inspect() []TypeInfo {
	var infos []TypeInfo
	for _, root := range []*ast.Definition{s.AST.Query, s.AST.Mutation, s.AST.Subscription} {
		if root != nil {
			infos = append(infos, s.typeInfo(root))
		}
	}

	var rest []*ast.Definition
	for _, def := range s.AST.Types {
		if def.BuiltIn || s.isRoot(def) || isGraphDirectiveType(def.Name) {
			continue
		}
		rest = append(rest, def)
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Name < rest[j].Name })
	for _, def := range rest {
		infos = append(infos, s.typeInfo(def))
	}
	return infos
}

func (s *Schema) typeInfo(def *ast.Definition) TypeInfo {
	info := TypeInfo{
		Name:        def.Name,
		Kind:        string(def.Kind),
		Description: def.Description,
	}
	switch def.Kind {
	case ast.Enum:
		info.Fields = len(def.EnumValues)
	case ast.Union:
		info.Fields = len(def.Types)
	default:
		for _, f := range def.Fields {
			if !strings.HasPrefix(f.Name, "__") {
				info.Fields++
			}
		}
	}

	for _, f := range def.Fields {
		if rel, ok := s.Relationship(def.Name, f.Name); ok {
			arrow := "-[:" + rel.Type + "]->"
			if rel.Direction == DirectionIn {
				arrow = "<-[:" + rel.Type + "]-"
			}
			info.Relationships = append(info.Relationships, f.Name+" "+arrow+" "+rel.Target)
		}
	}
	return info
}
