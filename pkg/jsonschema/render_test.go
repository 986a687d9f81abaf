package jsonschema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usestring/schema-harvester/pkg/format"
)

func renderJSON(t *testing.T, typ Type) string {
	t.Helper()
	data, err := json.Marshal(RenderType(typ))
	require.NoError(t, err)
	return string(data)
}

func sample() Hypothesis {
	return NewHypothesis(DefaultID, DefaultTitle, DefaultDescription)
}

func TestRenderType(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		want string
	}{
		{"null", Null(), `{"type":"null"}`},
		{"boolean", Boolean(), `{"type":"boolean"}`},
		{"integer", Integer(), `{"type":"integer"}`},
		{"number", Number(), `{"type":"number"}`},
		{"string", String(format.None), `{"type":"string"}`},
		{"date-time", String(format.DateTime), `{"type":"string","format":"date-time"}`},
		{"uuid", String(format.UUID), `{"type":"string","format":"uuid"}`},
		{"untyped array", Array(), `{"type":"array"}`},
		{"typed array", ArrayOf(Integer()), `{"type":"array","items":{"type":"integer"}}`},
		{"empty object", obj(), `{"type":"object","properties":{},"required":[]}`},
		{"object", obj("b", false, Null(), "a", true, Integer()),
			`{"type":"object","properties":{"a":{"type":"integer"},"b":{"type":"null"}},"required":["a"]}`},
		{"empty union", Any(), `{"anyOf":[]}`},
		{"singleton union", Any(Integer()), `{"anyOf":[{"type":"integer"}]}`},
		{"union in type order", Any(obj(), ArrayOf(Null()), String(format.None), Integer()),
			`{"anyOf":[{"type":"integer"},{"type":"string"},{"type":"array","items":{"type":"null"}},{"type":"object","properties":{},"required":[]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, renderJSON(t, tt.typ))
		})
	}
}

func TestRenderMetadataOnly(t *testing.T) {
	data, err := Marshal(sample())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"$id": "https:://github.com/elmarx/schema-harvester",
		"title": "Sample",
		"description": "Auto-generated schema"
	}`, string(data))
}

func TestMarshalIndentIsStable(t *testing.T) {
	h := sample().Observe(gen(t, `{"a": 1}`))

	data, err := MarshalIndent(h)
	require.NoError(t, err)

	want := `{
  "$id": "https:://github.com/elmarx/schema-harvester",
  "$schema": "http://json-schema.org/draft-07/schema#",
  "description": "Auto-generated schema",
  "properties": {
    "a": {
      "type": "integer"
    }
  },
  "required": [
    "a"
  ],
  "title": "Sample",
  "type": "object"
}`
	assert.Equal(t, want, string(data))

	again, err := MarshalIndent(sample().Observe(gen(t, `{"a": 2}`)))
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestRenderNoHTMLEscaping(t *testing.T) {
	h := NewHypothesis("https://example.com/a?b=1&c=<2>", "t", "d")
	data, err := Marshal(h)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"https://example.com/a?b=1&c=<2>"`)
}

func fold(t *testing.T, docs ...string) string {
	t.Helper()
	h := sample()
	for _, d := range docs {
		h = h.Observe(gen(t, d))
	}
	data, err := MarshalIndent(h)
	require.NoError(t, err)
	return string(data)
}

const meta = `"$id": "https:://github.com/elmarx/schema-harvester",
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "Sample",
	"description": "Auto-generated schema",`

func TestRenderEndToEnd(t *testing.T) {
	t.Run("integer and string array positions", func(t *testing.T) {
		got := fold(t, `[1]`, `["1"]`)
		assert.JSONEq(t, `{`+meta+`
			"type": "array",
			"items": {"anyOf": [{"type": "integer"}, {"type": "string"}]}
		}`, got)
	})

	t.Run("empty array stays unconstrained", func(t *testing.T) {
		assert.JSONEq(t, `{`+meta+` "type": "array"}`, fold(t, `[]`))
		assert.JSONEq(t, `{`+meta+` "type": "array"}`, fold(t, `[]`, `[]`))
		assert.JSONEq(t, `{`+meta+`
			"type": "array",
			"items": {"anyOf": [{"type": "boolean"}, {"type": "integer"}]}
		}`, fold(t, `[]`, `[1, true]`, `[]`))
	})

	t.Run("distinct objects", func(t *testing.T) {
		got := fold(t, `[
			{"name": "BatchManagementRequirement", "value": false, "inputHint": "SINGLE_LINE",
			 "label": {"de": "Batch Management Requirement", "en": "Batch Management Requirement"}},
			{"name": "Brand", "value": "MAGGI", "inputHint": "SINGLE_LINE",
			 "label": {"en": "Brand", "de": "Marke (DSD)"}}
		]`)
		assert.JSONEq(t, `{`+meta+`
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"inputHint": {"type": "string"},
					"label": {
						"type": "object",
						"properties": {"de": {"type": "string"}, "en": {"type": "string"}},
						"required": ["de", "en"]
					},
					"name": {"type": "string"},
					"value": {"anyOf": [{"type": "boolean"}, {"type": "string"}]}
				},
				"required": ["inputHint", "label", "name", "value"]
			}
		}`, got)
	})

	t.Run("single object inside mixed array", func(t *testing.T) {
		got := fold(t, `[{"value": [{"id": 1}, {"name": "irgendwas"}, "string", true, 5]}]`)
		assert.JSONEq(t, `{`+meta+`
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"value": {
						"type": "array",
						"items": {
							"anyOf": [
								{"type": "boolean"},
								{"type": "integer"},
								{"type": "string"},
								{
									"type": "object",
									"properties": {"id": {"type": "integer"}, "name": {"type": "string"}},
									"required": []
								}
							]
						}
					}
				},
				"required": ["value"]
			}
		}`, got)
	})

	t.Run("nested object union", func(t *testing.T) {
		got := fold(t, `[{"value": "some string"}, {"value": 42}, {"value": {"a": "aaa"}}, {"value": {"b": 111}}]`)
		assert.JSONEq(t, `{`+meta+`
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"value": {
						"anyOf": [
							{"type": "integer"},
							{"type": "string"},
							{
								"type": "object",
								"properties": {"a": {"type": "string"}, "b": {"type": "integer"}},
								"required": []
							}
						]
					}
				},
				"required": ["value"]
			}
		}`, got)
	})

	t.Run("formats across documents", func(t *testing.T) {
		got := fold(t, `{"at": "2023-01-01T10:00:00Z"}`, `{"at": "2023-06-01T00:00:00+02:00"}`)
		assert.JSONEq(t, `{`+meta+`
			"type": "object",
			"properties": {"at": {"type": "string", "format": "date-time"}},
			"required": ["at"]
		}`, got)

		got = fold(t, `{"at": "2023-01-01T10:00:00Z"}`, `{"at": "2023-06-01"}`)
		assert.JSONEq(t, `{`+meta+`
			"type": "object",
			"properties": {"at": {"anyOf": [
				{"type": "string", "format": "date"},
				{"type": "string", "format": "date-time"}
			]}},
			"required": ["at"]
		}`, got)

		got = fold(t, `{"at": "2023-01-01T10:00:00Z"}`, `{"at": "2023-06-01"}`, `{"at": "tomorrow"}`)
		assert.JSONEq(t, `{`+meta+`
			"type": "object",
			"properties": {"at": {"type": "string"}},
			"required": ["at"]
		}`, got)
	})
}
