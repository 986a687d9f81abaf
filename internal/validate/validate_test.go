package validate

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	schema "github.com/usestring/schema-harvester/pkg/jsonschema"
)

func decode(t *testing.T, src string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(src))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return v
}

var soundnessCorpus = []string{
	`{"id": 1, "name": "a", "tags": ["x", "y"]}`,
	`{"id": 2, "tags": [], "meta": {"created": "2023-01-01"}}`,
	`{"id": "3", "meta": {"created": "2023-01-01T10:00:00Z", "by": null}}`,
	`{"id": 4.5, "name": null, "tags": [1, "z", {"k": true}]}`,
	`{"id": "f3fa7e18-549f-4ee1-8aeb-1bb8cbf7e956", "at": "10:15:00+02:00"}`,
	`[1, 2, 3]`,
	`[[], [1], ["1"], [{"a": 1}, {"b": 2}]]`,
	`"2023-01-01"`,
	`"12:00:00Z"`,
	`"plain"`,
	`null`,
	`false`,
	`1e3`,
	`{}`,
	`[]`,
}

func compileHypothesis(t *testing.T, h schema.Hypothesis) *Schema {
	t.Helper()
	data, err := schema.MarshalIndent(h)
	require.NoError(t, err)
	s, err := Compile(data, WithFormatAssertions())
	require.NoError(t, err)
	return s
}

func TestMergedSchemaAcceptsBothDocuments(t *testing.T) {
	for _, a := range soundnessCorpus {
		for _, b := range soundnessCorpus {
			va, vb := decode(t, a), decode(t, b)
			h := schema.NewHypothesis(schema.DefaultID, schema.DefaultTitle, schema.DefaultDescription).
				ObserveValue(va).
				ObserveValue(vb)

			s := compileHypothesis(t, h)
			assert.Empty(t, s.Validate(va), "%s + %s rejects %s", a, b, a)
			assert.Empty(t, s.Validate(vb), "%s + %s rejects %s", a, b, b)
		}
	}
}

func TestFoldedSchemaAcceptsEveryDocument(t *testing.T) {
	h := schema.NewHypothesis("", "all", "")
	for _, src := range soundnessCorpus {
		h = h.ObserveValue(decode(t, src))
	}
	s := compileHypothesis(t, h)
	for _, src := range soundnessCorpus {
		assert.Empty(t, s.Validate(decode(t, src)), src)
	}
}

func TestViolations(t *testing.T) {
	h := schema.NewHypothesis("", "", "").
		ObserveValue(decode(t, `{"id": 1, "at": "2023-01-01", "tags": ["a"]}`))
	s := compileHypothesis(t, h)

	violations := s.Validate(decode(t, `{"id": "x", "at": "soon", "tags": [1]}`))
	require.Len(t, violations, 3)
	assert.Equal(t, "/at", violations[0].Path)
	assert.Equal(t, "/id", violations[1].Path)
	assert.Equal(t, "/tags/0", violations[2].Path)
	for _, v := range violations {
		assert.NotEmpty(t, v.Message)
		assert.True(t, strings.HasPrefix(v.String(), v.Path+": "))
	}

	violations = s.Validate(decode(t, `{"at": "2023-01-01", "tags": []}`))
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, "id")
}

func TestViolationPathsEscapeKeys(t *testing.T) {
	h := schema.NewHypothesis("", "", "").
		ObserveValue(decode(t, `{"a/b": 1, "m~n": {"x": true}}`))
	s := compileHypothesis(t, h)

	violations := s.Validate(decode(t, `{"a/b": "one", "m~n": {"x": 0}}`))
	require.Len(t, violations, 2)
	assert.Equal(t, "/a~1b", violations[0].Path)
	assert.Equal(t, "/m~0n/x", violations[1].Path)

	assert.Equal(t, "", pointer(nil))
	assert.Equal(t, "/~01/~1/0", pointer([]string{"~1", "/", "0"}))
}

func TestFormatsAreAnnotationsByDefault(t *testing.T) {
	h := schema.NewHypothesis("", "", "").ObserveValue("2023-01-01")
	data, err := schema.Marshal(h)
	require.NoError(t, err)

	lenient, err := Compile(data)
	require.NoError(t, err)
	assert.Empty(t, lenient.Validate("not a date"))

	strict, err := Compile(data, WithFormatAssertions())
	require.NoError(t, err)
	assert.NotEmpty(t, strict.Validate("not a date"))
}

func TestValidateBytes(t *testing.T) {
	s, err := Compile([]byte(`{"type": "object", "properties": {"a": {"type": "integer"}}, "required": ["a"]}`))
	require.NoError(t, err)

	violations, err := s.ValidateBytes([]byte(`{"a": 1}`))
	require.NoError(t, err)
	assert.Empty(t, violations)

	violations, err = s.ValidateBytes([]byte(`{"a": 1.5}`))
	require.NoError(t, err)
	assert.Len(t, violations, 1)

	_, err = s.ValidateBytes([]byte(`{`))
	assert.Error(t, err)
}

func TestCompileRejectsInvalidSchema(t *testing.T) {
	_, err := Compile([]byte(`{"type": "tuple"}`))
	assert.Error(t, err)

	_, err = Compile([]byte(`not json`))
	assert.Error(t, err)
}
