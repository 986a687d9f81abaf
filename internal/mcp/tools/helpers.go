// Package tools contains the MCP tools of the schema harvester.
package tools

import (
	"encoding/json"
)

// MIME type constants.
const (
	MimeJSON       = "application/json"
	MimeSchemaJSON = "application/schema+json"
)

// toAny round-trips v through JSON so it can be placed in an any-typed
// output field.
func toAny(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
