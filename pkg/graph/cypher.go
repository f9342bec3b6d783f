package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/marmos91/hotschema/pkg/schema"
	"github.com/vektah/gqlparser/v2/ast"
)

// Columns every node read returns.
const (
	colID    = "id"
	colProps = "props"
)

const parentParam = "parentId"

// filterOp maps an argument suffix onto a comparison. Longer suffixes
// must come before their prefixes.
type filterOp struct {
	suffix string
	format string
}

var filterOps = []filterOp{
	{"_not_contains", "NOT %s CONTAINS %s"},
	{"_starts_with", "%s STARTS WITH %s"},
	{"_ends_with", "%s ENDS WITH %s"},
	{"_contains", "%s CONTAINS %s"},
	{"_not_in", "NOT %s IN %s"},
	{"_not", "%s <> %s"},
	{"_gte", "%s >= %s"},
	{"_lte", "%s <= %s"},
	{"_gt", "%s > %s"},
	{"_lt", "%s < %s"},
	{"_in", "%s IN %s"},
}

// quote backtick-quotes an identifier so labels, property keys and
// relationship types can never escape into the statement.
func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// statement is a single node read, either from a label or across one
// relationship hop from a parent node.
type statement struct {
	target *ast.Definition
	rel    *schema.Relationship

	where   []string
	orderBy []string
	params  map[string]any
	next    int

	skip  int64
	limit int64 // negative means unbounded
}

func newStatement(target *ast.Definition) *statement {
	return &statement{
		target: target,
		params: map[string]any{},
		limit:  -1,
	}
}

func (st *statement) param(v any) string {
	name := "p" + strconv.Itoa(st.next)
	st.next++
	st.params[name] = paramValue(v)
	return "$" + name
}

// build renders the statement and returns it with its parameters.
func (st *statement) build() (string, map[string]any) {
	var b strings.Builder
	node := "(n:" + quote(st.target.Name) + ")"
	where := st.where

	if st.rel == nil {
		b.WriteString("MATCH " + node)
	} else {
		edge := "-[:" + quote(st.rel.Type) + "]->"
		if st.rel.Direction == schema.DirectionIn {
			edge = "<-[:" + quote(st.rel.Type) + "]-"
		}
		b.WriteString("MATCH (p)" + edge + node)
		where = append([]string{"elementId(p) = $" + parentParam}, where...)
	}

	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" RETURN elementId(n) AS " + colID + ", properties(n) AS " + colProps)
	if len(st.orderBy) > 0 {
		b.WriteString(" ORDER BY " + strings.Join(st.orderBy, ", "))
	}
	if st.skip > 0 {
		b.WriteString(" SKIP $skip")
		st.params["skip"] = st.skip
	}
	if st.limit >= 0 {
		b.WriteString(" LIMIT $limit")
		st.params["limit"] = st.limit
	}
	return b.String(), st.params
}

// leafField returns the scalar or enum field of target named name.
func leafField(s *schema.Schema, target *ast.Definition, name string) *ast.FieldDefinition {
	f := target.Fields.ForName(name)
	if f == nil || strings.HasPrefix(name, "__") {
		return nil
	}
	if _, isRel := s.Relationship(target.Name, name); isRel {
		return nil
	}
	def := s.AST.Types[f.Type.Name()]
	if def == nil || (def.Kind != ast.Scalar && def.Kind != ast.Enum) {
		return nil
	}
	return f
}

// applyArgs turns field arguments into filters, ordering and paging.
func applyArgs(s *schema.Schema, st *statement, field *ast.Field, args map[string]any) error {
	for _, argDef := range field.Definition.Arguments {
		value, ok := args[argDef.Name]
		if !ok || value == nil {
			continue
		}
		if err := applyArg(s, st, argDef.Name, value); err != nil {
			return err
		}
	}
	return nil
}

func applyArg(s *schema.Schema, st *statement, name string, value any) error {
	switch name {
	case "limit", "first":
		return st.setLimit(name, value)
	case "offset", "skip":
		return st.setSkip(name, value)
	case "sort", "orderBy":
		return applySort(s, st, value)
	case "where":
		m, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("argument where must be an input object")
		}
		for _, key := range sortedKeys(m) {
			if m[key] == nil {
				continue
			}
			if err := addFilter(s, st, key, m[key]); err != nil {
				return err
			}
		}
		return nil
	case "options":
		m, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("argument options must be an input object")
		}
		for _, key := range sortedKeys(m) {
			if m[key] == nil {
				continue
			}
			switch key {
			case "limit", "offset", "sort":
				if err := applyArg(s, st, key, m[key]); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unsupported option %q", key)
			}
		}
		return nil
	}
	return addFilter(s, st, name, value)
}

func (st *statement) setLimit(name string, v any) error {
	n, ok := toInt64(v)
	if !ok || n < 0 {
		return fmt.Errorf("argument %s must be a non-negative integer", name)
	}
	st.limit = n
	return nil
}

func (st *statement) setSkip(name string, v any) error {
	n, ok := toInt64(v)
	if !ok || n < 0 {
		return fmt.Errorf("argument %s must be a non-negative integer", name)
	}
	st.skip = n
	return nil
}

// addFilter maps key, either a field name or a field name with an
// operator suffix, onto a WHERE predicate.
func addFilter(s *schema.Schema, st *statement, key string, value any) error {
	if f := leafField(s, st.target, key); f != nil {
		prop := "n." + quote(f.Name)
		if _, isList := value.([]any); isList && f.Type.Elem == nil {
			st.where = append(st.where, prop+" IN "+st.param(value))
		} else {
			st.where = append(st.where, prop+" = "+st.param(value))
		}
		return nil
	}

	lower := strings.ToLower(key)
	for _, op := range filterOps {
		if !strings.HasSuffix(lower, op.suffix) {
			continue
		}
		f := leafField(s, st.target, key[:len(key)-len(op.suffix)])
		if f == nil {
			continue
		}
		st.where = append(st.where, fmt.Sprintf(op.format, "n."+quote(f.Name), st.param(value)))
		return nil
	}
	return fmt.Errorf("argument %q does not map to a field of %s", key, st.target.Name)
}

// applySort accepts {field: ASC|DESC} or a list of them.
func applySort(s *schema.Schema, st *statement, value any) error {
	var entries []any
	switch v := value.(type) {
	case []any:
		entries = v
	case map[string]any:
		entries = []any{v}
	default:
		return fmt.Errorf("sort must be an input object or a list of them")
	}
	for _, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			return fmt.Errorf("sort entries must be input objects")
		}
		for _, key := range sortedKeys(m) {
			f := leafField(s, st.target, key)
			if f == nil {
				return fmt.Errorf("cannot sort %s by %q", st.target.Name, key)
			}
			dir, _ := m[key].(string)
			switch strings.ToUpper(dir) {
			case "ASC", "DESC":
			default:
				return fmt.Errorf("sort direction for %q must be ASC or DESC", key)
			}
			st.orderBy = append(st.orderBy, "n."+quote(f.Name)+" "+strings.ToUpper(dir))
		}
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
