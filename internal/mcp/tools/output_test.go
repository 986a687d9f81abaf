package tools

import (
	"context"
	"encoding/json"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usestring/schema-harvester/internal/validate"
)

func TestCheckOutputBuiltinTools(t *testing.T) {
	tests := []struct {
		tool  string
		check func() error
	}{
		{"infer_schema", CheckOutput[InferSchemaOutput]},
		{"detect_format", CheckOutput[DetectFormatOutput]},
		{"validate_instance", CheckOutput[ValidateInstanceOutput]},
		{"pointer output", CheckOutput[*ValidateInstanceOutput]},
		{"untyped", CheckOutput[any]},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			assert.NoError(t, tt.check())
		})
	}
}

// Variants of the builtin outputs with the tags that keep them valid removed.
type (
	untaggedSchemaOutput struct {
		Schema  map[string]any `json:"schema"`
		Summary string         `json:"summary"`
	}
	untaggedViolationsOutput struct {
		Valid      bool                 `json:"valid"`
		Violations []validate.Violation `json:"violations"`
	}
	rawSchemaOutput struct {
		Schema json.RawMessage `json:"schema,omitempty"`
	}
	rawRevisionsOutput struct {
		Revisions []struct {
			Stream string          `json:"stream"`
			Schema json.RawMessage `json:"schema"`
		} `json:"revisions,omitzero"`
	}
	nestedSummaryOutput struct {
		Summary struct {
			Errors []string `json:"errors"`
		} `json:"summary"`
	}
)

func TestCheckOutputReportsFields(t *testing.T) {
	tests := []struct {
		name   string
		check  func() error
		paths  []string
		reason string
	}{
		{"nil map", CheckOutput[untaggedSchemaOutput], []string{"schema"}, "omitzero"},
		{"nil slice", CheckOutput[untaggedViolationsOutput], []string{"violations"}, "omitzero"},
		{"raw message", CheckOutput[rawSchemaOutput], []string{"schema"}, "map[string]any"},
		{"raw message element", CheckOutput[rawRevisionsOutput], []string{"revisions[].schema"}, "map[string]any"},
		{"nested nil slice", CheckOutput[nestedSummaryOutput], []string{"summary.errors"}, "omitzero"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.check()
			require.Error(t, err)

			var outErr *OutputError
			require.ErrorAs(t, err, &outErr)
			var paths []string
			for _, f := range outErr.Fields {
				paths = append(paths, f.Path)
				assert.Contains(t, f.Reason, tt.reason)
			}
			assert.Equal(t, tt.paths, paths)
		})
	}
}

func TestCheckOutputAllowsNilPointers(t *testing.T) {
	type lazyViolations struct {
		Violations *[]validate.Violation `json:"violations"`
	}
	assert.NoError(t, CheckOutput[lazyViolations]())
}

func TestAddToolRejectsUnencodableOutput(t *testing.T) {
	srv := sdkmcp.NewServer(&sdkmcp.Implementation{Name: "test"}, nil)
	handler := func(context.Context, *sdkmcp.CallToolRequest, InferSchemaInput) (*sdkmcp.CallToolResult, untaggedSchemaOutput, error) {
		return nil, untaggedSchemaOutput{}, nil
	}

	defer func() {
		msg, ok := recover().(string)
		require.True(t, ok, "AddTool did not panic with a message")
		assert.Contains(t, msg, `tool "draft_schema"`)
		assert.Contains(t, msg, "schema: nil map encodes as null")
	}()
	AddTool(srv, &sdkmcp.Tool{Name: "draft_schema"}, handler)
}
