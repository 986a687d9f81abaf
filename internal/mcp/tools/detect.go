package tools

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/schema-harvester/pkg/format"
)

// DetectFormatInput is the input for detect_format.
type DetectFormatInput struct {
	Values []string `json:"values" jsonschema:"Strings to classify"`
}

// FormatResult is the detected format of one value.
type FormatResult struct {
	Value  string `json:"value"`
	Format string `json:"format,omitempty" jsonschema:"date, time, date-time or uuid; empty when the value has no recognized format"`
}

// DetectFormatOutput is the output of detect_format.
type DetectFormatOutput struct {
	Results []FormatResult `json:"results,omitzero"`
}

// ToolDetectFormat classifies strings into the formats a schema records.
func ToolDetectFormat(_ *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input DetectFormatInput) (*sdkmcp.CallToolResult, DetectFormatOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input DetectFormatInput) (*sdkmcp.CallToolResult, DetectFormatOutput, error) {
		if len(input.Values) == 0 {
			return nil, DetectFormatOutput{}, ErrInvalidInput("values is required")
		}
		out := DetectFormatOutput{Results: make([]FormatResult, len(input.Values))}
		for i, v := range input.Values {
			out.Results[i] = FormatResult{Value: v, Format: format.Classify(v).String()}
		}
		return nil, out, nil
	}
}
