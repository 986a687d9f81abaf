package prompts

import (
	"context"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func promptText(t *testing.T, cfg *Config, args map[string]string) string {
	t.Helper()
	res, err := HandleDescribePayloads(cfg)(context.Background(), &sdkmcp.GetPromptRequest{
		Params: &sdkmcp.GetPromptParams{Name: "describe_payloads", Arguments: args},
	})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	text, ok := res.Messages[0].Content.(*sdkmcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestDescribePayloads(t *testing.T) {
	text := promptText(t, &Config{}, nil)
	assert.Contains(t, text, "`infer_schema`")
	assert.NotContains(t, text, "harvester://")
	assert.NotContains(t, text, "select")

	text = promptText(t, &Config{RegistryEnabled: true}, map[string]string{"stream": "orders", "envelope": "CloudEvents"})
	assert.Contains(t, text, "harvester://schemas/orders")
	assert.Contains(t, text, `select: ".data"`)
	assert.Contains(t, text, `title: "orders"`)
}

func TestDescribePayloadsRejectsUnknownEnvelope(t *testing.T) {
	_, err := HandleDescribePayloads(&Config{})(context.Background(), &sdkmcp.GetPromptRequest{
		Params: &sdkmcp.GetPromptParams{Arguments: map[string]string{"envelope": "avro"}},
	})
	assert.Error(t, err)
}
