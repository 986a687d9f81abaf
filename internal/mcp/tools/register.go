package tools

import (
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Register registers all tools with the MCP server.
func Register(srv *sdkmcp.Server, d *Deps) {
	AddTool(srv, &sdkmcp.Tool{
		Name:        "infer_schema",
		Description: "Infer a JSON schema (draft-07) from sample documents. Pass documents as JSON strings or one NDJSON blob. Strings are annotated with date, time, date-time and uuid formats; fields missing from some documents become optional. Set base to extend a schema the harvester service already stored.",
	}, ToolInferSchema(d))

	AddTool(srv, &sdkmcp.Tool{
		Name:        "detect_format",
		Description: "Classify strings as date, time, date-time (RFC 3339) or uuid, the way infer_schema does",
	}, ToolDetectFormat(d))

	AddTool(srv, &sdkmcp.Tool{
		Name:        "validate_instance",
		Description: "Validate a JSON document against a schema given as text or stored for a stream. Returns every violation with its JSON pointer.",
	}, ToolValidateInstance(d))
}
