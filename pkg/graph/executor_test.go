package graph

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/hotschema/pkg/schema"
	"github.com/marmos91/hotschema/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const moviesSDL = `
type Movie {
  title: String!
  released: Int
  genre: Genre
  tagline: String @default(value: "untitled")
  actors: [Person!]! @relationship(type: "ACTED_IN", direction: IN)
  director: Person @relationship(type: "DIRECTED", direction: IN)
}

type Person {
  name: String!
  born: Int
  movies: [Movie!]! @relationship(type: "ACTED_IN", direction: OUT)
}

enum Genre {
  DRAMA
  SCIFI
}

enum SortDirection {
  ASC
  DESC
}

input MovieWhere {
  title: String
  title_contains: String
  released_gte: Int
}

input MovieSort {
  title: SortDirection
  released: SortDirection
}

input MovieOptions {
  limit: Int
  offset: Int
  sort: [MovieSort!]
}

type Query {
  movies(where: MovieWhere, options: MovieOptions, limit: Int, offset: Int): [Movie!]!
  movie(title: String!): Movie
  people(name: String, first: Int): [Person!]!
  person(name: String!): Person!
  search(term: String): [Movie!]
}

type Mutation {
  noop: Boolean
}
`

type call struct {
	cypher string
	params map[string]any
}

type fakeRunner struct {
	mu      sync.Mutex
	calls   []call
	respond func(cypher string, params map[string]any) ([]map[string]any, error)
}

func (r *fakeRunner) Run(_ context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call{cypher: cypher, params: params})
	r.mu.Unlock()
	if r.respond == nil {
		return nil, nil
	}
	return r.respond(cypher, params)
}

func (r *fakeRunner) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func row(id string, props map[string]any) map[string]any {
	return map[string]any{colID: id, colProps: props}
}

func newExecutor(t *testing.T, runner Runner, opts Options) *Executor {
	t.Helper()
	s, err := schema.NewSDLBuilder().Build(source.NewArtifact(moviesSDL, "test", time.Now()))
	require.NoError(t, err)
	return NewExecutor(s, runner, opts)
}

func execute(t *testing.T, e *Executor, query string, vars map[string]any) (*Response, string) {
	t.Helper()
	resp := e.Execute(context.Background(), Request{Query: query, Variables: vars})
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	return resp, string(data)
}

func TestExecute_FilterAndPaging(t *testing.T) {
	runner := &fakeRunner{respond: func(string, map[string]any) ([]map[string]any, error) {
		return []map[string]any{row("m1", map[string]any{"title": "The Matrix", "released": int64(1999)})}, nil
	}}
	e := newExecutor(t, runner, Options{DefaultLimit: 100})

	_, out := execute(t, e, `{ movies(where: {title_contains: "Matrix"}, limit: 2, offset: 1) { title released } }`, nil)
	assert.JSONEq(t, `{"data":{"movies":[{"title":"The Matrix","released":1999}]}}`, out)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "MATCH (n:`Movie`) WHERE n.`title` CONTAINS $p0 RETURN elementId(n) AS id, properties(n) AS props SKIP $skip LIMIT $limit", calls[0].cypher)
	assert.Equal(t, "Matrix", calls[0].params["p0"])
	assert.Equal(t, int64(1), calls[0].params["skip"])
	assert.Equal(t, int64(2), calls[0].params["limit"])
}

func TestExecute_SortOption(t *testing.T) {
	runner := &fakeRunner{}
	e := newExecutor(t, runner, Options{})

	resp, _ := execute(t, e, `{ movies(options: {sort: [{released: DESC}], limit: 5}) { title } }`, nil)
	assert.Empty(t, resp.Errors)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].cypher, "ORDER BY n.`released` DESC")
	assert.Equal(t, int64(5), calls[0].params["limit"])
}

func TestExecute_DefaultLimitAndSingleObject(t *testing.T) {
	runner := &fakeRunner{}
	e := newExecutor(t, runner, Options{DefaultLimit: 100})

	_, out := execute(t, e, `{ people { name } movie(title: "Heat") { title } }`, nil)
	assert.JSONEq(t, `{"data":{"people":[],"movie":null}}`, out)

	calls := runner.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, int64(100), calls[0].params["limit"])
	assert.Equal(t, "MATCH (n:`Movie`) WHERE n.`title` = $p0 RETURN elementId(n) AS id, properties(n) AS props LIMIT $limit", calls[1].cypher)
	assert.Equal(t, "Heat", calls[1].params["p0"])
	assert.Equal(t, int64(1), calls[1].params["limit"])
}

func TestExecute_Relationship(t *testing.T) {
	runner := &fakeRunner{respond: func(cypher string, params map[string]any) ([]map[string]any, error) {
		if strings.Contains(cypher, "ACTED_IN") {
			return []map[string]any{
				row("p1", map[string]any{"name": "Keanu Reeves"}),
				row("p2", map[string]any{"name": "Carrie-Anne Moss"}),
			}, nil
		}
		return []map[string]any{row("m1", map[string]any{"title": "The Matrix"})}, nil
	}}
	e := newExecutor(t, runner, Options{})

	_, out := execute(t, e, `{ movie(title: "The Matrix") { title actors { name } } }`, nil)
	assert.JSONEq(t, `{"data":{"movie":{"title":"The Matrix","actors":[{"name":"Keanu Reeves"},{"name":"Carrie-Anne Moss"}]}}}`, out)

	calls := runner.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "MATCH (p)<-[:`ACTED_IN`]-(n:`Person`) WHERE elementId(p) = $parentId RETURN elementId(n) AS id, properties(n) AS props", calls[1].cypher)
	assert.Equal(t, "m1", calls[1].params["parentId"])
}

func TestExecute_Variables(t *testing.T) {
	runner := &fakeRunner{}
	e := newExecutor(t, runner, Options{})

	resp, _ := execute(t, e, `query ($t: String!) { movie(title: $t) { title } }`, map[string]any{"t": "Heat"})
	assert.Empty(t, resp.Errors)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Heat", calls[0].params["p0"])
}

func TestExecute_MissingVariable(t *testing.T) {
	runner := &fakeRunner{}
	e := newExecutor(t, runner, Options{})

	resp, _ := execute(t, e, `query ($t: String!) { movie(title: $t) { title } }`, nil)
	require.NotEmpty(t, resp.Errors)
	assert.Nil(t, resp.Data)
	assert.Empty(t, runner.Calls())
}

func TestExecute_TypenameAliasesFragments(t *testing.T) {
	runner := &fakeRunner{respond: func(string, map[string]any) ([]map[string]any, error) {
		return []map[string]any{row("m1", map[string]any{"title": "Alien", "genre": "SCIFI"})}, nil
	}}
	e := newExecutor(t, runner, Options{})

	_, out := execute(t, e, `
		{ m: movie(title: "Alien") { __typename ...F ... on Movie { kind: genre } } }
		fragment F on Movie { title }`, nil)
	assert.JSONEq(t, `{"data":{"m":{"__typename":"Movie","title":"Alien","kind":"SCIFI"}}}`, out)
}

func TestExecute_SkipInclude(t *testing.T) {
	runner := &fakeRunner{respond: func(string, map[string]any) ([]map[string]any, error) {
		return []map[string]any{row("m1", map[string]any{"title": "Alien", "released": int64(1979)})}, nil
	}}
	e := newExecutor(t, runner, Options{})

	_, out := execute(t, e, `query ($s: Boolean!) { movie(title: "Alien") { title released @skip(if: $s) genre @include(if: false) } }`,
		map[string]any{"s": true})
	assert.JSONEq(t, `{"data":{"movie":{"title":"Alien"}}}`, out)
}

func TestExecute_DefaultDirective(t *testing.T) {
	runner := &fakeRunner{respond: func(string, map[string]any) ([]map[string]any, error) {
		return []map[string]any{row("m1", map[string]any{"title": "Alien"})}, nil
	}}
	e := newExecutor(t, runner, Options{})

	_, out := execute(t, e, `{ movie(title: "Alien") { tagline } }`, nil)
	assert.JSONEq(t, `{"data":{"movie":{"tagline":"untitled"}}}`, out)
}

func TestExecute_RejectsMutations(t *testing.T) {
	runner := &fakeRunner{}
	e := newExecutor(t, runner, Options{})

	resp, out := execute(t, e, `mutation { noop }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "mutation operations are not supported", resp.Errors[0].Message)
	assert.NotContains(t, out, `"data"`)
	assert.Empty(t, runner.Calls())
}

func TestExecute_ValidationError(t *testing.T) {
	runner := &fakeRunner{}
	e := newExecutor(t, runner, Options{})

	resp, _ := execute(t, e, `{ movies { nope } }`, nil)
	require.NotEmpty(t, resp.Errors)
	assert.Contains(t, resp.Errors[0].Message, "nope")
	assert.Nil(t, resp.Data)
	assert.Empty(t, runner.Calls())

	resp, _ = execute(t, e, "  ", nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "must provide query string", resp.Errors[0].Message)
}

func TestExecute_OperationSelection(t *testing.T) {
	runner := &fakeRunner{}
	e := newExecutor(t, runner, Options{})
	doc := `query A { people { name } } query B { movies { title } }`

	resp := e.Execute(context.Background(), Request{Query: doc})
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Message, "operation name")

	resp = e.Execute(context.Background(), Request{Query: doc, OperationName: "C"})
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Message, `"C"`)

	resp = e.Execute(context.Background(), Request{Query: doc, OperationName: "B"})
	assert.Empty(t, resp.Errors)
	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].cypher, "(n:`Movie`)")
}

func TestExecute_IntrospectionDisabled(t *testing.T) {
	e := newExecutor(t, &fakeRunner{}, Options{Introspection: false})

	resp, _ := execute(t, e, `{ __schema { queryType { name } } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Message, "introspection is not allowed")

	// __typename is not introspection.
	resp, out := execute(t, e, `{ __typename }`, nil)
	assert.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"data":{"__typename":"Query"}}`, out)
}

func TestExecute_Introspection(t *testing.T) {
	e := newExecutor(t, &fakeRunner{}, Options{Introspection: true})

	resp, out := execute(t, e, `{
		__schema { queryType { name } mutationType { name } subscriptionType { name } }
		__type(name: "Movie") { kind name fields { name type { kind ofType { name } } } }
		missing: __type(name: "Nope") { name }
	}`, nil)
	require.Empty(t, resp.Errors)

	var decoded struct {
		Data struct {
			Schema struct {
				QueryType        struct{ Name string } `json:"queryType"`
				MutationType     *struct{ Name string }
				SubscriptionType *struct{ Name string }
			} `json:"__schema"`
			Type struct {
				Kind   string
				Name   string
				Fields []struct {
					Name string
					Type struct {
						Kind   string
						OfType *struct{ Name string }
					}
				}
			} `json:"__type"`
			Missing *struct{ Name string } `json:"missing"`
		}
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))

	assert.Equal(t, "Query", decoded.Data.Schema.QueryType.Name)
	require.NotNil(t, decoded.Data.Schema.MutationType)
	assert.Equal(t, "Mutation", decoded.Data.Schema.MutationType.Name)
	assert.Nil(t, decoded.Data.Schema.SubscriptionType)
	assert.Nil(t, decoded.Data.Missing)

	assert.Equal(t, "OBJECT", decoded.Data.Type.Kind)
	assert.Equal(t, "Movie", decoded.Data.Type.Name)
	require.NotEmpty(t, decoded.Data.Type.Fields)
	title := decoded.Data.Type.Fields[0]
	assert.Equal(t, "title", title.Name)
	assert.Equal(t, "NON_NULL", title.Type.Kind)
	require.NotNil(t, title.Type.OfType)
	assert.Equal(t, "String", title.Type.OfType.Name)
}

func TestExecute_IntrospectionTypesList(t *testing.T) {
	e := newExecutor(t, &fakeRunner{}, Options{Introspection: true})

	resp, out := execute(t, e, `{ __schema { types { name } directives { name locations } } }`, nil)
	require.Empty(t, resp.Errors)
	for _, name := range []string{`"Movie"`, `"Person"`, `"Genre"`, `"String"`, `"__Type"`, `"relationship"`, `"FIELD_DEFINITION"`} {
		assert.Contains(t, out, name)
	}
}

func TestExecute_NonNullRootPropagates(t *testing.T) {
	e := newExecutor(t, &fakeRunner{}, Options{})

	resp, out := execute(t, e, `{ person(name: "Nobody") { name } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "Cannot return null for non-nullable field Query.person.", resp.Errors[0].Message)
	assert.Contains(t, out, `"data":null`)
}

func TestExecute_RunnerErrorNullsField(t *testing.T) {
	runner := &fakeRunner{respond: func(string, map[string]any) ([]map[string]any, error) {
		return nil, errors.New("connection refused")
	}}
	e := newExecutor(t, runner, Options{})

	resp, out := execute(t, e, `{ movie(title: "Alien") { title } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "connection refused", resp.Errors[0].Message)
	assert.Equal(t, "movie", resp.Errors[0].Path.String())
	assert.Contains(t, out, `"data":{"movie":null}`)
}

func TestExecute_MissingNonNullProperty(t *testing.T) {
	runner := &fakeRunner{respond: func(string, map[string]any) ([]map[string]any, error) {
		return []map[string]any{row("m1", map[string]any{"released": int64(1979)})}, nil
	}}
	e := newExecutor(t, runner, Options{})

	resp, out := execute(t, e, `{ movie(title: "Alien") { title released } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "movie.title", resp.Errors[0].Path.String())
	assert.JSONEq(t, `{"movie":null}`, mustData(t, out))
}

func TestExecute_UnmappedArgument(t *testing.T) {
	runner := &fakeRunner{}
	e := newExecutor(t, runner, Options{})

	resp, out := execute(t, e, `{ search(term: "x") { title } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, `argument "term" does not map to a field of Movie`, resp.Errors[0].Message)
	assert.JSONEq(t, `{"search":null}`, mustData(t, out))
	assert.Empty(t, runner.Calls())
}

func TestExecute_MaxDepth(t *testing.T) {
	runner := &fakeRunner{respond: func(cypher string, _ map[string]any) ([]map[string]any, error) {
		if strings.Contains(cypher, "(n:`Person`)") {
			return []map[string]any{row("p1", map[string]any{"name": "Sigourney Weaver"})}, nil
		}
		return []map[string]any{row("m1", map[string]any{"title": "Alien"})}, nil
	}}
	e := newExecutor(t, runner, Options{MaxDepth: 1})

	resp, out := execute(t, e, `{ movie(title: "Alien") { actors { movies { title } } } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Message, "maximum relationship depth of 1")
	assert.JSONEq(t, `{"movie":null}`, mustData(t, out))
	assert.Len(t, runner.Calls(), 2)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "`Movie`", quote("Movie"))
	assert.Equal(t, "`we``ird`", quote("we`ird"))
}

func mustData(t *testing.T, out string) string {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &envelope))
	return string(envelope.Data)
}
