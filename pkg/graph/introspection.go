package graph

import (
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

// metaObject is an introspection object. field returns a leaf value, a
// metaObject, a []metaObject or nil.
type metaObject interface {
	typeName() string
	field(name string, args map[string]any) any
}

func (x *execution) completeMeta(obj metaObject, sels ast.SelectionSet, path ast.Path) *Object {
	fields := x.collectFields(sels, obj.typeName())
	out := newObject(len(fields))
	for _, f := range fields {
		if f.Name == "__typename" {
			out.Set(f.Alias, obj.typeName())
			continue
		}
		v := obj.field(f.Name, f.ArgumentMap(x.vars))
		out.Set(f.Alias, x.completeMetaValue(v, f.SelectionSet, appendPath(path, ast.PathName(f.Alias))))
	}
	return out
}

func (x *execution) completeMetaValue(v any, sels ast.SelectionSet, path ast.Path) any {
	switch v := v.(type) {
	case metaObject:
		return x.completeMeta(v, sels, path)
	case []metaObject:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = x.completeMeta(item, sels, appendPath(path, ast.PathIndex(i)))
		}
		return items
	default:
		return v
	}
}

type schemaMeta struct {
	s *ast.Schema
}

func (m *schemaMeta) typeName() string { return "__Schema" }

func (m *schemaMeta) field(name string, _ map[string]any) any {
	switch name {
	case "types":
		names := make([]string, 0, len(m.s.Types))
		for n := range m.s.Types {
			names = append(names, n)
		}
		sort.Strings(names)
		out := make([]metaObject, 0, len(names))
		for _, n := range names {
			out = append(out, &typeMeta{s: m.s, def: m.s.Types[n]})
		}
		return out
	case "queryType":
		return namedType(m.s, m.s.Query)
	case "mutationType":
		return namedType(m.s, m.s.Mutation)
	case "subscriptionType":
		return namedType(m.s, m.s.Subscription)
	case "directives":
		names := make([]string, 0, len(m.s.Directives))
		for n := range m.s.Directives {
			names = append(names, n)
		}
		sort.Strings(names)
		out := make([]metaObject, 0, len(names))
		for _, n := range names {
			out = append(out, &directiveMeta{s: m.s, d: m.s.Directives[n]})
		}
		return out
	}
	return nil
}

func namedType(s *ast.Schema, def *ast.Definition) any {
	if def == nil {
		return nil
	}
	return &typeMeta{s: s, def: def}
}

// typeRef describes t, unwrapping NON_NULL and LIST wrappers.
func typeRef(s *ast.Schema, t *ast.Type) any {
	if t == nil {
		return nil
	}
	if t.NonNull {
		inner := *t
		inner.NonNull = false
		return &wrapperMeta{s: s, kind: "NON_NULL", of: &inner}
	}
	if t.Elem != nil {
		return &wrapperMeta{s: s, kind: "LIST", of: t.Elem}
	}
	return namedType(s, s.Types[t.NamedType])
}

type wrapperMeta struct {
	s    *ast.Schema
	kind string
	of   *ast.Type
}

func (m *wrapperMeta) typeName() string { return "__Type" }

func (m *wrapperMeta) field(name string, _ map[string]any) any {
	switch name {
	case "kind":
		return m.kind
	case "ofType":
		return typeRef(m.s, m.of)
	}
	return nil
}

type typeMeta struct {
	s   *ast.Schema
	def *ast.Definition
}

func (m *typeMeta) typeName() string { return "__Type" }

func (m *typeMeta) field(name string, args map[string]any) any {
	def := m.def
	includeDeprecated, _ := args["includeDeprecated"].(bool)

	switch name {
	case "kind":
		return string(def.Kind)
	case "name":
		return def.Name
	case "description":
		return description(def.Description)
	case "fields":
		if def.Kind != ast.Object && def.Kind != ast.Interface {
			return nil
		}
		out := []metaObject{}
		for _, f := range def.Fields {
			if strings.HasPrefix(f.Name, "__") {
				continue
			}
			if deprecated(f.Directives) && !includeDeprecated {
				continue
			}
			out = append(out, &fieldMeta{s: m.s, f: f})
		}
		return out
	case "interfaces":
		if def.Kind != ast.Object && def.Kind != ast.Interface {
			return nil
		}
		out := []metaObject{}
		for _, n := range def.Interfaces {
			if iface := m.s.Types[n]; iface != nil {
				out = append(out, &typeMeta{s: m.s, def: iface})
			}
		}
		return out
	case "possibleTypes":
		if def.Kind != ast.Interface && def.Kind != ast.Union {
			return nil
		}
		out := []metaObject{}
		for _, p := range m.s.GetPossibleTypes(def) {
			out = append(out, &typeMeta{s: m.s, def: p})
		}
		return out
	case "enumValues":
		if def.Kind != ast.Enum {
			return nil
		}
		out := []metaObject{}
		for _, v := range def.EnumValues {
			if deprecated(v.Directives) && !includeDeprecated {
				continue
			}
			out = append(out, &enumValueMeta{v: v})
		}
		return out
	case "inputFields":
		if def.Kind != ast.InputObject {
			return nil
		}
		out := []metaObject{}
		for _, f := range def.Fields {
			out = append(out, &inputValueMeta{s: m.s, name: f.Name, desc: f.Description, typ: f.Type, def: f.DefaultValue, directives: f.Directives})
		}
		return out
	case "specifiedByURL", "ofType":
		return nil
	case "isOneOf":
		return false
	}
	return nil
}

type fieldMeta struct {
	s *ast.Schema
	f *ast.FieldDefinition
}

func (m *fieldMeta) typeName() string { return "__Field" }

func (m *fieldMeta) field(name string, _ map[string]any) any {
	switch name {
	case "name":
		return m.f.Name
	case "description":
		return description(m.f.Description)
	case "args":
		return arguments(m.s, m.f.Arguments)
	case "type":
		return typeRef(m.s, m.f.Type)
	case "isDeprecated":
		return deprecated(m.f.Directives)
	case "deprecationReason":
		return deprecationReason(m.f.Directives)
	}
	return nil
}

func arguments(s *ast.Schema, args ast.ArgumentDefinitionList) []metaObject {
	out := make([]metaObject, 0, len(args))
	for _, a := range args {
		out = append(out, &inputValueMeta{s: s, name: a.Name, desc: a.Description, typ: a.Type, def: a.DefaultValue, directives: a.Directives})
	}
	return out
}

type inputValueMeta struct {
	s          *ast.Schema
	name       string
	desc       string
	typ        *ast.Type
	def        *ast.Value
	directives ast.DirectiveList
}

func (m *inputValueMeta) typeName() string { return "__InputValue" }

func (m *inputValueMeta) field(name string, _ map[string]any) any {
	switch name {
	case "name":
		return m.name
	case "description":
		return description(m.desc)
	case "type":
		return typeRef(m.s, m.typ)
	case "defaultValue":
		if m.def == nil {
			return nil
		}
		return m.def.String()
	case "isDeprecated":
		return deprecated(m.directives)
	case "deprecationReason":
		return deprecationReason(m.directives)
	}
	return nil
}

type enumValueMeta struct {
	v *ast.EnumValueDefinition
}

func (m *enumValueMeta) typeName() string { return "__EnumValue" }

func (m *enumValueMeta) field(name string, _ map[string]any) any {
	switch name {
	case "name":
		return m.v.Name
	case "description":
		return description(m.v.Description)
	case "isDeprecated":
		return deprecated(m.v.Directives)
	case "deprecationReason":
		return deprecationReason(m.v.Directives)
	}
	return nil
}

type directiveMeta struct {
	s *ast.Schema
	d *ast.DirectiveDefinition
}

func (m *directiveMeta) typeName() string { return "__Directive" }

func (m *directiveMeta) field(name string, _ map[string]any) any {
	switch name {
	case "name":
		return m.d.Name
	case "description":
		return description(m.d.Description)
	case "locations":
		out := make([]any, len(m.d.Locations))
		for i, l := range m.d.Locations {
			out[i] = string(l)
		}
		return out
	case "args":
		return arguments(m.s, m.d.Arguments)
	case "isRepeatable":
		return m.d.IsRepeatable
	}
	return nil
}

func description(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deprecated(directives ast.DirectiveList) bool {
	return directives.ForName("deprecated") != nil
}

func deprecationReason(directives ast.DirectiveList) any {
	d := directives.ForName("deprecated")
	if d == nil {
		return nil
	}
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return arg.Value.Raw
	}
	return "No longer supported"
}
