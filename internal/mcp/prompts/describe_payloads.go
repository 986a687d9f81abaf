package prompts

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// HandleDescribePayloads guides through inferring and checking a schema.
func HandleDescribePayloads(cfg *Config) func(ctx context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
	return func(ctx context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
		args := req.Params.Arguments

		stream := ""
		selectExpr := ""
		if args != nil {
			stream = strings.TrimSpace(args["stream"])
			switch strings.ToLower(strings.TrimSpace(args["envelope"])) {
			case "", "none":
			case "cloudevents":
				selectExpr = ".data"
			default:
				return nil, fmt.Errorf("unknown envelope %q: expected none or cloudevents", args["envelope"])
			}
		}

		var sb strings.Builder
		sb.WriteString("# Describe JSON Payloads\n\n")
		if stream != "" {
			fmt.Fprintf(&sb, "Target stream: `%s`\n\n", stream)
		}

		sb.WriteString("## 1. Collect samples\n")
		sb.WriteString("Gather as many representative payloads as possible. Fields that are missing from some samples are marked optional, so a handful of varied samples beats many identical ones.\n")

		if cfg.RegistryEnabled && stream != "" {
			fmt.Fprintf(&sb, "\nThe harvester may already track this stream. Read `harvester://schemas/%s` first and pass `base: %q` to `infer_schema` to extend it instead of starting over.\n", stream, stream)
		}

		sb.WriteString("\n## 2. Infer the schema\n")
		sb.WriteString("Call `infer_schema` with `documents` (one JSON string each) or `ndjson`")
		if selectExpr != "" {
			fmt.Fprintf(&sb, " and `select: %q` to describe the CloudEvents `data` member instead of the envelope", selectExpr)
		}
		sb.WriteString(".\n")
		if stream != "" {
			fmt.Fprintf(&sb, "Set `title: %q` and `description` so the schema is self-describing.\n", stream)
		}
		sb.WriteString("Check `errors` in the result: documents listed there were not valid JSON and did not contribute.\n")
		sb.WriteString("The `summary` field is a compact one-line view of the inferred type, e.g. `object{id:string(uuid), tags?:array[string]}`.\n")

		sb.WriteString("\n## 3. Review string formats\n")
		sb.WriteString("Strings are tagged as `date`, `time`, `date-time` or `uuid` only when every sample matched. Use `detect_format` on a few suspicious values to see why a field was left untagged.\n")

		sb.WriteString("\n## 4. Validate\n")
		sb.WriteString("Run `validate_instance` with the inferred schema and payloads that were not part of the samples. Violations point at the failing member with a JSON pointer; add those payloads as samples and infer again.\n")

		return &sdkmcp.GetPromptResult{
			Description: "Schema inference workflow",
			Messages: []*sdkmcp.PromptMessage{
				{Role: "user", Content: &sdkmcp.TextContent{Text: sb.String()}},
			},
		}, nil
	}
}
