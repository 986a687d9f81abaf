package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/schema-harvester/internal/harvest"
	"github.com/usestring/schema-harvester/internal/ingest"
	"github.com/usestring/schema-harvester/internal/selector"
	"github.com/usestring/schema-harvester/pkg/jsonschema"
)

const maxReportedErrors = 20

// InferSchemaInput is the input for infer_schema.
type InferSchemaInput struct {
	Documents   []string `json:"documents,omitempty" jsonschema:"JSON documents, one per element. Either documents or ndjson is required."`
	NDJSON      string   `json:"ndjson,omitempty" jsonschema:"Newline-delimited JSON, one document per line"`
	ID          string   `json:"id,omitempty" jsonschema:"$id of the generated schema"`
	Title       string   `json:"title,omitempty" jsonschema:"title of the generated schema"`
	Description string   `json:"description,omitempty" jsonschema:"description of the generated schema"`
	Select      string   `json:"select,omitempty" jsonschema:"jq expression selecting the part of each document to describe, e.g. .data for CloudEvents"`
	Base        string   `json:"base,omitempty" jsonschema:"Stream whose stored schema is extended instead of starting empty"`
}

// InferSchemaOutput is the output of infer_schema.
type InferSchemaOutput struct {
	Schema  map[string]any `json:"schema,omitzero"`
	Summary string         `json:"summary"`
	Stats   harvest.Stats  `json:"stats"`
	Errors  []string       `json:"errors,omitzero"`
}

// ToolInferSchema folds the given documents into one JSON schema.
func ToolInferSchema(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input InferSchemaInput) (*sdkmcp.CallToolResult, InferSchemaOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input InferSchemaInput) (*sdkmcp.CallToolResult, InferSchemaOutput, error) {
		if len(input.Documents) == 0 && strings.TrimSpace(input.NDJSON) == "" {
			return nil, InferSchemaOutput{}, ErrInvalidInput("either documents or ndjson is required")
		}
		if len(input.Documents) > d.maxDocuments() {
			return nil, InferSchemaOutput{}, ErrInvalidInput(fmt.Sprintf("at most %d documents are accepted", d.maxDocuments()))
		}

		sel, err := selector.Compile(input.Select)
		if err != nil {
			return nil, InferSchemaOutput{}, wrapInvalid("invalid select expression", err)
		}

		meta := harvest.DefaultMetadata()
		opts := []harvest.Option{harvest.WithSelector(sel)}
		if input.Base != "" {
			entry, err := d.StoredSchema(ctx, input.Base)
			if err != nil {
				return nil, InferSchemaOutput{}, err
			}
			prev, err := jsonschema.Parse(entry.Schema)
			if err != nil {
				return nil, InferSchemaOutput{}, &CodedError{Code: ErrCodeInternal, Message: "stored schema is unreadable", Cause: err}
			}
			meta = harvest.Metadata{ID: prev.ID, Title: prev.Title, Description: prev.Description}
			opts = append(opts, harvest.WithHypothesis(prev))
		}
		if input.ID != "" {
			meta.ID = input.ID
		}
		if input.Title != "" {
			meta.Title = input.Title
		}
		if input.Description != "" {
			meta.Description = input.Description
		}
		h := harvest.New(meta, opts...)

		var problems []string
		report := func(format string, args ...any) {
			if len(problems) < maxReportedErrors {
				problems = append(problems, fmt.Sprintf(format, args...))
			}
		}

		for i, doc := range input.Documents {
			if _, err := h.ObservePayload([]byte(doc)); err != nil && !errors.Is(err, harvest.ErrEmptyPayload) {
				report("document %d: %v", i, err)
			}
		}

		if input.NDJSON != "" {
			r := ingest.NewReader(strings.NewReader(input.NDJSON), ingest.Lines)
			docs, err := ingest.ReadAll(r, func(err error) { report("%v", err) })
			if err != nil {
				return nil, InferSchemaOutput{}, wrapInvalid("reading ndjson", err)
			}
			if len(docs)+len(input.Documents) > d.maxDocuments() {
				return nil, InferSchemaOutput{}, ErrInvalidInput(fmt.Sprintf("at most %d documents are accepted", d.maxDocuments()))
			}
			for _, doc := range docs {
				if _, err := h.ObserveValue(doc.Value); err != nil && !errors.Is(err, harvest.ErrEmptyPayload) {
					report("line %d: %v", doc.Line, err)
				}
			}
		}

		stats := h.Stats()
		if stats.Observed == 0 && input.Base == "" {
			return nil, InferSchemaOutput{}, &CodedError{
				Code:    ErrCodeInvalidInput,
				Message: "no document could be observed: " + strings.Join(problems, "; "),
			}
		}

		hyp := h.Hypothesis()
		schema, err := toAny(jsonschema.Render(hyp))
		if err != nil {
			return nil, InferSchemaOutput{}, &CodedError{Code: ErrCodeInternal, Message: "rendering schema", Cause: err}
		}
		out := InferSchemaOutput{Schema: schema, Stats: stats, Errors: problems}
		if root, ok := hyp.Root(); ok {
			out.Summary = root.String()
		}
		return nil, out, nil
	}
}
