package mcpsrv

import (
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/schema-harvester/internal/mcp/tools"
)

// AddTool registers a custom tool on srv. It panics when Out fails
// [CheckOutput], since every call of such a tool would be rejected by the
// SDK's output validation.
func AddTool[In, Out any](srv *sdkmcp.Server, t *sdkmcp.Tool, h sdkmcp.ToolHandlerFor[In, Out]) {
	tools.AddTool(srv, t, h)
}

// CheckOutput reports the fields of a tool output type that cannot match
// the schema the SDK advertises for it: nil slices and maps without
// omitzero, and json.RawMessage values. The error is a *[OutputError].
func CheckOutput[Out any]() error {
	return tools.CheckOutput[Out]()
}

// OutputError lists the offending fields of an output type.
type OutputError = tools.OutputError
