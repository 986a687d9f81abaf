// Package prompts contains the MCP prompts of the schema harvester.
package prompts

// Config holds configuration needed by prompts.
type Config struct {
	// RegistryEnabled is set when harvested schemas can be read through
	// resources and the stream arguments of the tools.
	RegistryEnabled bool
}
