package tools

import (
	"context"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/schema-harvester/internal/validate"
)

// ValidateInstanceInput is the input for validate_instance.
type ValidateInstanceInput struct {
	Schema        string `json:"schema,omitempty" jsonschema:"JSON schema document as text. Either schema or stream is required."`
	Stream        string `json:"stream,omitempty" jsonschema:"Validate against the schema stored for this stream"`
	Instance      string `json:"instance" jsonschema:"JSON document to validate"`
	AssertFormats bool   `json:"assert_formats,omitempty" jsonschema:"Treat format keywords as assertions"`
}

// ValidateInstanceOutput is the output of validate_instance.
type ValidateInstanceOutput struct {
	Valid      bool                 `json:"valid"`
	Violations []validate.Violation `json:"violations,omitzero"`
}

// ToolValidateInstance checks a document against a schema.
func ToolValidateInstance(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input ValidateInstanceInput) (*sdkmcp.CallToolResult, ValidateInstanceOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input ValidateInstanceInput) (*sdkmcp.CallToolResult, ValidateInstanceOutput, error) {
		if strings.TrimSpace(input.Instance) == "" {
			return nil, ValidateInstanceOutput{}, ErrInvalidInput("instance is required")
		}

		var doc []byte
		switch {
		case input.Schema != "" && input.Stream != "":
			return nil, ValidateInstanceOutput{}, ErrInvalidInput("schema and stream are mutually exclusive")
		case input.Schema != "":
			doc = []byte(input.Schema)
		case input.Stream != "":
			entry, err := d.StoredSchema(ctx, input.Stream)
			if err != nil {
				return nil, ValidateInstanceOutput{}, err
			}
			doc = entry.Schema
		default:
			return nil, ValidateInstanceOutput{}, ErrInvalidInput("either schema or stream is required")
		}

		var opts []validate.Option
		if input.AssertFormats {
			opts = append(opts, validate.WithFormatAssertions())
		}
		schema, err := validate.Compile(doc, opts...)
		if err != nil {
			return nil, ValidateInstanceOutput{}, wrapInvalid("invalid schema", err)
		}
		violations, err := schema.ValidateBytes([]byte(input.Instance))
		if err != nil {
			return nil, ValidateInstanceOutput{}, wrapInvalid("invalid instance", err)
		}
		return nil, ValidateInstanceOutput{Valid: len(violations) == 0, Violations: violations}, nil
	}
}
