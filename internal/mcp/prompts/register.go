package prompts

import (
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Register registers all prompts with the MCP server.
func Register(srv *sdkmcp.Server, cfg *Config) {
	srv.AddPrompt(&sdkmcp.Prompt{
		Name:        "describe_payloads",
		Description: "Workflow for turning sample JSON payloads into a documented, validated schema",
		Arguments: []*sdkmcp.PromptArgument{
			{
				Name:        "stream",
				Description: "Name of the topic or stream the payloads come from",
				Required:    false,
			},
			{
				Name:        "envelope",
				Description: "Envelope wrapping the payloads: none (default) or cloudevents",
				Required:    false,
			},
		},
	}, HandleDescribePayloads(cfg))
}
