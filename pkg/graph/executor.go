// Package graph executes GraphQL read queries against a property graph.
//
// Every object type of the schema maps to a node label of the same name.
// Top-level Query fields returning T or [T] read nodes labeled T, using
// their arguments as filters and paging. Object fields annotated with
// @relationship follow graph edges from the parent node. Scalar and enum
// fields read node properties.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/marmos91/hotschema/internal/logger"
	"github.com/marmos91/hotschema/internal/telemetry"
	"github.com/marmos91/hotschema/pkg/schema"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxDepth bounds how many relationship hops one query may follow.
const DefaultMaxDepth = 10

// Runner executes a read statement and returns one map per record, keyed
// by column name.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// Options tune execution.
type Options struct {
	// Introspection allows __schema and __type
	Introspection bool

	// DefaultLimit caps list fields queried without a limit. Zero means
	// unbounded.
	DefaultLimit int

	// MaxDepth bounds relationship nesting. Zero means DefaultMaxDepth.
	MaxDepth int
}

// Request is a GraphQL request as received over HTTP.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Response is a GraphQL response. Data is omitted when the request failed
// before execution, and is JSON null when a non-null root field failed.
type Response struct {
	Data   any           `json:"data,omitempty"`
	Errors gqlerror.List `json:"errors,omitempty"`
}

// Executor answers queries for one schema against one Runner. It is safe
// for concurrent use.
type Executor struct {
	schema *schema.Schema
	runner Runner
	opts   Options
}

// NewExecutor returns an executor for s reading through runner.
func NewExecutor(s *schema.Schema, runner Runner, opts Options) *Executor {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Executor{schema: s, runner: runner, opts: opts}
}

// Schema returns the schema queries are validated against.
func (e *Executor) Schema() *schema.Schema {
	return e.schema
}

// Execute validates and runs req. Failures are reported in the response,
// never as a Go error.
func (e *Executor) Execute(ctx context.Context, req Request) *Response {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanGraphQLRequest,
		trace.WithAttributes(telemetry.OperationName(req.OperationName)))
	defer span.End()

	resp := e.execute(ctx, req)
	if n := len(resp.Errors); n > 0 {
		span.SetAttributes(attribute.Int("graphql.errors", n))
		span.SetStatus(codes.Error, resp.Errors[0].Message)
	}
	return resp
}

func (e *Executor) execute(ctx context.Context, req Request) *Response {
	if strings.TrimSpace(req.Query) == "" {
		return failed(gqlerror.Errorf("must provide query string"))
	}

	doc, errs := gqlparser.LoadQuery(e.schema.AST, req.Query)
	if len(errs) > 0 {
		return &Response{Errors: errs}
	}

	op, err := selectOperation(doc, req.OperationName)
	if err != nil {
		return failed(err)
	}
	telemetry.SetAttributes(ctx, telemetry.OperationType(string(op.Operation)))

	if op.Operation != ast.Query {
		return failed(gqlerror.ErrorPosf(op.Position, "%s operations are not supported", op.Operation))
	}

	vars, verr := validator.VariableValues(e.schema.AST, op, req.Variables)
	if verr != nil {
		var gqlErr *gqlerror.Error
		if errors.As(verr, &gqlErr) {
			return failed(gqlErr)
		}
		return failed(gqlerror.Wrap(verr))
	}

	x := &execution{
		ctx:    ctx,
		schema: e.schema,
		runner: e.runner,
		opts:   e.opts,
		doc:    doc,
		vars:   vars,
	}

	rootFields := x.collectFields(op.SelectionSet, e.schema.AST.Query.Name)
	if !e.opts.Introspection {
		for _, f := range rootFields {
			if f.Name == "__schema" || f.Name == "__type" {
				return failed(gqlerror.ErrorPosf(f.Position,
					"GraphQL introspection is not allowed, but the query contained __schema or __type"))
			}
		}
	}

	data := x.executeRoot(rootFields)
	return &Response{Data: data, Errors: x.errs}
}

func failed(err *gqlerror.Error) *Response {
	return &Response{Errors: gqlerror.List{err}}
}

func selectOperation(doc *ast.QueryDocument, name string) (*ast.OperationDefinition, *gqlerror.Error) {
	if name != "" {
		op := doc.Operations.ForName(name)
		if op == nil {
			return nil, gqlerror.Errorf("Unknown operation named %q.", name)
		}
		return op, nil
	}
	switch len(doc.Operations) {
	case 0:
		return nil, gqlerror.Errorf("no operation in document")
	case 1:
		return doc.Operations[0], nil
	default:
		return nil, gqlerror.Errorf("Must provide operation name if query contains multiple operations.")
	}
}

// node is one record of a node read.
type node struct {
	id    string
	props map[string]any
}

// execution holds the state of one request.
type execution struct {
	ctx    context.Context
	schema *schema.Schema
	runner Runner
	opts   Options
	doc    *ast.QueryDocument
	vars   map[string]any
	errs   gqlerror.List
}

func (x *execution) executeRoot(fields []*ast.Field) any {
	root := x.schema.AST.Query
	data := newObject(len(fields))

	for _, f := range fields {
		path := ast.Path{ast.PathName(f.Alias)}
		switch f.Name {
		case "__typename":
			data.Set(f.Alias, root.Name)
		case "__schema":
			data.Set(f.Alias, x.completeMeta(&schemaMeta{s: x.schema.AST}, f.SelectionSet, path))
		case "__type":
			name, _ := f.ArgumentMap(x.vars)["name"].(string)
			if def := x.schema.AST.Types[name]; def != nil {
				data.Set(f.Alias, x.completeMeta(&typeMeta{s: x.schema.AST, def: def}, f.SelectionSet, path))
			} else {
				data.Set(f.Alias, nil)
			}
		default:
			v, ok := x.resolveRoot(f, path)
			if !ok {
				return json.RawMessage("null")
			}
			data.Set(f.Alias, v)
		}
	}
	return data
}

func (x *execution) resolveRoot(f *ast.Field, path ast.Path) (any, bool) {
	ret := f.Definition.Type
	target := x.schema.AST.Types[ret.Name()]
	if target == nil || target.Kind != ast.Object {
		x.addError(f, path, "Query.%s does not return a node type", f.Name)
		return nullFor(ret)
	}

	st := newStatement(target)
	if err := applyArgs(x.schema, st, f, f.ArgumentMap(x.vars)); err != nil {
		x.addError(f, path, "%v", err)
		return nullFor(ret)
	}
	nodes, err := x.fetch(st, ret)
	if err != nil {
		x.addError(f, path, "%v", err)
		return nullFor(ret)
	}
	return x.completeNodes(target, ret, nodes, f, path, 0)
}

func (x *execution) resolveRelationship(rel schema.Relationship, parent node, f *ast.Field, path ast.Path, depth int) (any, bool) {
	ret := f.Definition.Type
	if depth > x.opts.MaxDepth {
		x.addError(f, path, "query exceeds the maximum relationship depth of %d", x.opts.MaxDepth)
		return nullFor(ret)
	}

	target := x.schema.AST.Types[rel.Target]
	st := newStatement(target)
	st.rel = &rel
	if err := applyArgs(x.schema, st, f, f.ArgumentMap(x.vars)); err != nil {
		x.addError(f, path, "%v", err)
		return nullFor(ret)
	}
	st.params[parentParam] = parent.id

	nodes, err := x.fetch(st, ret)
	if err != nil {
		x.addError(f, path, "%v", err)
		return nullFor(ret)
	}
	return x.completeNodes(target, ret, nodes, f, path, depth)
}

// fetch runs st, bounding it by the shape of the field it resolves.
func (x *execution) fetch(st *statement, t *ast.Type) ([]node, error) {
	if t.Elem == nil {
		st.limit = 1
	} else if st.limit < 0 && x.opts.DefaultLimit > 0 {
		st.limit = int64(x.opts.DefaultLimit)
	}

	cypher, params := st.build()
	logger.DebugCtx(x.ctx, "Running cypher", "statement", cypher)

	rows, err := x.runner.Run(x.ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	nodes := make([]node, 0, len(rows))
	for _, row := range rows {
		n := node{props: map[string]any{}}
		n.id, _ = row[colID].(string)
		if props, ok := row[colProps].(map[string]any); ok {
			n.props = props
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (x *execution) completeNodes(target *ast.Definition, t *ast.Type, nodes []node, f *ast.Field, path ast.Path, depth int) (any, bool) {
	if t.Elem == nil {
		if len(nodes) == 0 {
			if t.NonNull {
				x.addError(f, path, "Cannot return null for non-nullable field %s.", fieldName(f))
				return nil, false
			}
			return nil, true
		}
		obj, ok := x.completeNode(target, nodes[0], f.SelectionSet, path, depth)
		if !ok {
			return nullFor(t)
		}
		return obj, true
	}

	items := make([]any, 0, len(nodes))
	for i, n := range nodes {
		obj, ok := x.completeNode(target, n, f.SelectionSet, appendPath(path, ast.PathIndex(i)), depth)
		if !ok {
			if t.Elem.NonNull {
				return nullFor(t)
			}
			items = append(items, nil)
			continue
		}
		items = append(items, obj)
	}
	return items, true
}

// completeNode projects n through sels. A false result means a non-null
// field failed and the whole object is null.
func (x *execution) completeNode(def *ast.Definition, n node, sels ast.SelectionSet, path ast.Path, depth int) (*Object, bool) {
	fields := x.collectFields(sels, def.Name)
	out := newObject(len(fields))

	for _, f := range fields {
		fp := appendPath(path, ast.PathName(f.Alias))
		if f.Name == "__typename" {
			out.Set(f.Alias, def.Name)
			continue
		}
		v, ok := x.resolveNodeField(def, n, f, fp, depth)
		if !ok {
			return nil, false
		}
		out.Set(f.Alias, v)
	}
	return out, true
}

func (x *execution) resolveNodeField(def *ast.Definition, n node, f *ast.Field, path ast.Path, depth int) (any, bool) {
	if rel, ok := x.schema.Relationship(def.Name, f.Name); ok {
		return x.resolveRelationship(rel, n, f, path, depth+1)
	}

	fd := f.Definition
	if fd.Directives.ForName("private") != nil {
		return nullFor(fd.Type)
	}

	named := x.schema.AST.Types[fd.Type.Name()]
	if named == nil || (named.Kind != ast.Scalar && named.Kind != ast.Enum) {
		x.addError(f, path, "%s.%s has no @relationship mapping", def.Name, f.Name)
		return nullFor(fd.Type)
	}

	raw, present := n.props[f.Name]
	if !present {
		raw = defaultValue(fd)
	}
	v, err := leafValue(fd.Type, raw)
	if err != nil {
		x.addError(f, path, "%s.%s: %v", def.Name, f.Name, err)
		return nullFor(fd.Type)
	}
	if v == nil && fd.Type.NonNull {
		x.addError(f, path, "Cannot return null for non-nullable field %s.%s.", def.Name, f.Name)
		return nil, false
	}
	return v, true
}

// defaultValue reads @default(value:) for a missing property.
func defaultValue(fd *ast.FieldDefinition) any {
	d := fd.Directives.ForName("default")
	if d == nil {
		return nil
	}
	arg := d.Arguments.ForName("value")
	if arg == nil || arg.Value == nil {
		return nil
	}
	raw := arg.Value.Raw
	switch fd.Type.Name() {
	case "Int":
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
		return nil
	case "Float":
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
		return nil
	case "Boolean":
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
		return nil
	}
	return raw
}

// nullFor completes a failed field of type t: a nullable field becomes
// null, a non-null one propagates to its parent.
func nullFor(t *ast.Type) (any, bool) {
	return nil, !t.NonNull
}

func fieldName(f *ast.Field) string {
	if f.ObjectDefinition != nil {
		return f.ObjectDefinition.Name + "." + f.Name
	}
	return f.Name
}

func (x *execution) addError(f *ast.Field, path ast.Path, format string, args ...any) {
	err := &gqlerror.Error{
		Message: fmt.Sprintf(format, args...),
		Path:    path,
	}
	if f.Position != nil {
		err.Locations = []gqlerror.Location{{Line: f.Position.Line, Column: f.Position.Column}}
	}
	x.errs = append(x.errs, err)
}

func appendPath(path ast.Path, el ast.PathElement) ast.Path {
	out := make(ast.Path, len(path), len(path)+1)
	copy(out, path)
	return append(out, el)
}

// collectFields flattens sels for an object of typeName, applying @skip,
// @include and fragment type conditions and merging fields that share a
// response key.
func (x *execution) collectFields(sels ast.SelectionSet, typeName string) []*ast.Field {
	var (
		order  []string
		byKey  = map[string]*ast.Field{}
		walk   func(ast.SelectionSet)
		merged = map[string]bool{}
		seen   = map[string]bool{}
	)

	walk = func(sels ast.SelectionSet) {
		for _, sel := range sels {
			switch sel := sel.(type) {
			case *ast.Field:
				if !x.included(sel.Directives) {
					continue
				}
				existing, ok := byKey[sel.Alias]
				if !ok {
					byKey[sel.Alias] = sel
					order = append(order, sel.Alias)
					continue
				}
				if !merged[sel.Alias] {
					cp := *existing
					cp.SelectionSet = append(ast.SelectionSet{}, existing.SelectionSet...)
					existing = &cp
					byKey[sel.Alias] = existing
					merged[sel.Alias] = true
				}
				existing.SelectionSet = append(existing.SelectionSet, sel.SelectionSet...)
			case *ast.InlineFragment:
				if !x.included(sel.Directives) || !x.applies(sel.TypeCondition, typeName) {
					continue
				}
				walk(sel.SelectionSet)
			case *ast.FragmentSpread:
				if !x.included(sel.Directives) || seen[sel.Name] {
					continue
				}
				def := sel.Definition
				if def == nil {
					def = x.doc.Fragments.ForName(sel.Name)
				}
				if def == nil || !x.applies(def.TypeCondition, typeName) {
					continue
				}
				seen[sel.Name] = true
				walk(def.SelectionSet)
			}
		}
	}
	walk(sels)

	fields := make([]*ast.Field, 0, len(order))
	for _, key := range order {
		fields = append(fields, byKey[key])
	}
	return fields
}

func (x *execution) included(directives ast.DirectiveList) bool {
	if d := directives.ForName("skip"); d != nil {
		if skip, _ := d.ArgumentMap(x.vars)["if"].(bool); skip {
			return false
		}
	}
	if d := directives.ForName("include"); d != nil {
		if include, _ := d.ArgumentMap(x.vars)["if"].(bool); !include {
			return false
		}
	}
	return true
}

// applies reports whether a fragment on cond applies to typeName.
func (x *execution) applies(cond, typeName string) bool {
	if cond == "" || cond == typeName {
		return true
	}
	for _, def := range x.schema.AST.PossibleTypes[cond] {
		if def.Name == typeName {
			return true
		}
	}
	return false
}
