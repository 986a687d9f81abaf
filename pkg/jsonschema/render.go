package jsonschema

import (
	"bytes"
	"encoding/json"

	"github.com/usestring/schema-harvester/pkg/format"
)

// Draft07 is the meta-schema identifier written to every document.
const Draft07 = "http://json-schema.org/draft-07/schema#"

// Document is a rendered schema. encoding/json writes map keys in sorted
// order, so marshaling a Document is deterministic.
type Document map[string]any

// Render converts h into a schema document. Without a root only the metadata
// fields are present.
func Render(h Hypothesis) Document {
	doc := Document{
		"$schema":     Draft07,
		"$id":         h.ID,
		"title":       h.Title,
		"description": h.Description,
	}
	if root, ok := h.Root(); ok {
		for k, v := range RenderType(root) {
			doc[k] = v
		}
	}
	return doc
}

// RenderType converts a single Type into its schema fragment.
func RenderType(t Type) map[string]any {
	switch t.kind {
	case KindString:
		out := map[string]any{"type": "string"}
		if t.format != format.None {
			out["format"] = t.format.String()
		}
		return out
	case KindArray:
		out := map[string]any{"type": "array"}
		if t.item != nil {
			out["items"] = RenderType(*t.item)
		}
		return out
	case KindObject:
		props := make(map[string]any, len(t.fields))
		required := make([]string, 0, len(t.fields))
		for _, f := range t.fields {
			props[f.name] = RenderType(f.Type)
			if f.Required {
				required = append(required, f.name)
			}
		}
		return map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		}
	case KindAny:
		anyOf := make([]any, len(t.members))
		for i, m := range t.members {
			anyOf[i] = RenderType(m)
		}
		return map[string]any{"anyOf": anyOf}
	default:
		return map[string]any{"type": t.kind.String()}
	}
}

// MarshalIndent renders h as pretty-printed JSON with two-space indentation.
func MarshalIndent(h Hypothesis) ([]byte, error) {
	return encode(Render(h), "  ")
}

// Marshal renders h as compact JSON.
func Marshal(h Hypothesis) ([]byte, error) {
	return encode(Render(h), "")
}

func encode(doc Document, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
