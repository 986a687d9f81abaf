// Package mcpsrv provides an extensible MCP server for the schema harvester.
//
// The server offers tools to infer JSON schemas from sample documents,
// classify string formats and validate documents. When a Redis registry is
// configured, the schemas published by the harvester service are exposed as
// harvester://schemas/{stream} resources.
//
// # Basic Usage
//
//	server, err := mcpsrv.NewServer(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer server.Close()
//	server.Run(ctx)
//
// # Extension
//
// Add custom tools using MCP SDK types directly:
//
//	import mcp "github.com/modelcontextprotocol/go-sdk/mcp"
//
//	type MyInput struct {
//	    Stream string `json:"stream"`
//	}
//
//	type MyOutput struct {
//	    Revision int `json:"revision"`
//	}
//
//	server, err := mcpsrv.NewServer(ctx,
//	    mcpsrv.WithDepsTool(&mcp.Tool{Name: "schema_revision", Description: "Latest revision of a stream"},
//	        func(d *mcpsrv.Deps) func(ctx context.Context, req *mcp.CallToolRequest, in MyInput) (*mcp.CallToolResult, MyOutput, error) {
//	            return func(ctx context.Context, req *mcp.CallToolRequest, in MyInput) (*mcp.CallToolResult, MyOutput, error) {
//	                _, rev, err := d.Schema(ctx, in.Stream)
//	                return nil, MyOutput{Revision: rev}, err
//	            }
//	        }),
//	)
//
// # Configuration
//
//	server, err := mcpsrv.NewServer(ctx,
//	    mcpsrv.WithLogLevel("debug"),
//	    mcpsrv.WithLogFile("/var/log/harvester-mcp.log"),
//	    mcpsrv.WithRedis("localhost:6379"),
//	)
package mcpsrv
