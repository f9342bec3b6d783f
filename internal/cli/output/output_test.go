package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{input: "", want: FormatTable},
		{input: "table", want: FormatTable},
		{input: " JSON ", want: FormatJSON},
		{input: "yml", want: FormatYAML},
		{input: "yaml", want: FormatYAML},
		{input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type typeRow struct {
	Name   string `json:"name" yaml:"name"`
	Fields int    `json:"fields" yaml:"fields"`
}

type typeRows []typeRow

func (r typeRows) Headers() []string { return []string{"Type", "Fields"} }

func (r typeRows) Rows() [][]string {
	out := make([][]string, 0, len(r))
	for _, row := range r {
		out = append(out, []string{row.Name, "n/a"})
	}
	return out
}

func TestPrinter_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(typeRows{{Name: "Movie", Fields: 3}}))

	out := buf.String()
	assert.Contains(t, out, "TYPE")
	assert.Contains(t, out, "FIELDS")
	assert.Contains(t, out, "Movie")
}

func TestPrinter_TableFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(map[string]int{"types": 2}))
	assert.JSONEq(t, `{"types":2}`, buf.String())
}

func TestPrinter_JSONAndYAML(t *testing.T) {
	rows := typeRows{{Name: "Movie", Fields: 3}}

	var jsonBuf bytes.Buffer
	require.NoError(t, NewPrinter(&jsonBuf, FormatJSON, false).Print(rows))
	var decoded []typeRow
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &decoded))
	assert.Equal(t, []typeRow(rows), decoded)

	var yamlBuf bytes.Buffer
	require.NoError(t, NewPrinter(&yamlBuf, FormatYAML, false).Print(rows))
	decoded = nil
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &decoded))
	assert.Equal(t, []typeRow(rows), decoded)
}

func TestPrinter_Messages(t *testing.T) {
	var plain bytes.Buffer
	NewPrinter(&plain, FormatTable, false).Success("schema ok")
	assert.Equal(t, "schema ok\n", plain.String())

	var colored bytes.Buffer
	NewPrinter(&colored, FormatTable, true).Error("schema invalid")
	assert.Equal(t, "\033[31mschema invalid\033[0m\n", colored.String())
}

func TestPrintKeyValues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintKeyValues(&buf, [][2]string{{"Generation", "3"}, {"Source", "github:acme/api"}}))

	out := buf.String()
	assert.Contains(t, out, "Generation")
	assert.Contains(t, out, "github:acme/api")
}
