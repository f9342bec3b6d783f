package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/vektah/gqlparser/v2/ast"
)

// Object is a response object that keeps its fields in selection order.
type Object struct {
	keys   []string
	values map[string]any
}

func newObject(size int) *Object {
	return &Object{keys: make([]string, 0, size), values: make(map[string]any, size)}
}

// Set stores key, keeping the position of the first write.
func (o *Object) Set(key string, value any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the field names in order.
func (o *Object) Keys() []string {
	return o.keys
}

// MarshalJSON implements json.Marshaler.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// coerceLeaf converts a stored property into the JSON value a scalar or
// enum of the named type serializes as.
func coerceLeaf(typeName string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch typeName {
	case "Int":
		n, ok := toInt64(v)
		if !ok {
			return nil, fmt.Errorf("cannot represent %T as Int", v)
		}
		if n > math.MaxInt32 || n < math.MinInt32 {
			return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %d", n)
		}
		return n, nil
	case "Float":
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		}
		if n, ok := toInt64(v); ok {
			return float64(n), nil
		}
		return nil, fmt.Errorf("cannot represent %T as Float", v)
	case "Boolean":
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("cannot represent %T as Boolean", v)
		}
		return b, nil
	case "String", "ID":
		return stringify(v), nil
	default:
		// Enums and custom scalars pass through, temporal values as text.
		switch x := v.(type) {
		case time.Time:
			return x.Format(time.RFC3339Nano), nil
		case fmt.Stringer:
			return x.String(), nil
		}
		return v, nil
	}
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// toInt64 accepts the integer shapes that arrive from the driver, from
// parsed literals and from JSON decoded variables.
func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	}
	return 0, false
}

// leafValue converts a property that may hold a list into the shape t
// declares.
func leafValue(t *ast.Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if t.Elem == nil {
		return coerceLeaf(t.NamedType, v)
	}
	items, ok := v.([]any)
	if !ok {
		// A single stored value satisfies a list field.
		items = []any{v}
	}
	out := make([]any, len(items))
	for i, item := range items {
		c, err := leafValue(t.Elem, item)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// paramValue normalizes an argument value before it is sent as a Cypher
// parameter.
func paramValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, _ := x.Float64()
		return f
	case int:
		return int64(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = paramValue(item)
		}
		return out
	}
	return v
}
