package jsonschema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/usestring/schema-harvester/pkg/format"
)

// Parse reads a document produced by Render back into a Hypothesis. Only the
// subset of JSON Schema that Render emits is understood.
func Parse(data []byte) (Hypothesis, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Hypothesis{}, fmt.Errorf("decode schema document: %w", err)
	}

	var h Hypothesis
	var err error
	if h.ID, err = optionalString(doc, "$id"); err != nil {
		return Hypothesis{}, err
	}
	if h.Title, err = optionalString(doc, "title"); err != nil {
		return Hypothesis{}, err
	}
	if h.Description, err = optionalString(doc, "description"); err != nil {
		return Hypothesis{}, err
	}

	_, hasType := doc["type"]
	_, hasAnyOf := doc["anyOf"]
	if !hasType && !hasAnyOf {
		return h, nil
	}

	root, err := parseType(doc, "#")
	if err != nil {
		return Hypothesis{}, err
	}
	return h.WithRoot(root), nil
}

func optionalString(doc map[string]any, key string) (string, error) {
	v, ok := doc[key]
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: expected string, got %T", key, v)
	}
	return s, nil
}

func parseType(node map[string]any, path string) (Type, error) {
	if raw, ok := node["anyOf"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return Type{}, fmt.Errorf("%s/anyOf: expected array, got %T", path, raw)
		}
		members := make([]Type, 0, len(list))
		for i, m := range list {
			sub, ok := m.(map[string]any)
			if !ok {
				return Type{}, fmt.Errorf("%s/anyOf/%d: expected object, got %T", path, i, m)
			}
			t, err := parseType(sub, fmt.Sprintf("%s/anyOf/%d", path, i))
			if err != nil {
				return Type{}, err
			}
			members = append(members, t)
		}
		return Any(members...), nil
	}

	name, ok := node["type"].(string)
	if !ok {
		return Type{}, fmt.Errorf("%s: missing type", path)
	}

	switch name {
	case "null":
		return Null(), nil
	case "boolean":
		return Boolean(), nil
	case "integer":
		return Integer(), nil
	case "number":
		return Number(), nil
	case "string":
		if _, ok := node["format"]; !ok {
			return String(format.None), nil
		}
		s, err := optionalString(node, "format")
		if err != nil {
			return Type{}, fmt.Errorf("%s/%w", path, err)
		}
		f, ok := format.Parse(s)
		if !ok {
			return Type{}, fmt.Errorf("%s/format: unsupported format %q", path, s)
		}
		return String(f), nil
	case "array":
		raw, ok := node["items"]
		if !ok {
			return Array(), nil
		}
		sub, ok := raw.(map[string]any)
		if !ok {
			return Type{}, fmt.Errorf("%s/items: expected object, got %T", path, raw)
		}
		item, err := parseType(sub, path+"/items")
		if err != nil {
			return Type{}, err
		}
		return ArrayOf(item), nil
	case "object":
		return parseObject(node, path)
	}
	return Type{}, fmt.Errorf("%s/type: unsupported type %q", path, name)
}

func parseObject(node map[string]any, path string) (Type, error) {
	required := map[string]bool{}
	if raw, ok := node["required"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return Type{}, fmt.Errorf("%s/required: expected array, got %T", path, raw)
		}
		for _, r := range list {
			s, ok := r.(string)
			if !ok {
				return Type{}, fmt.Errorf("%s/required: expected strings, got %T", path, r)
			}
			required[s] = true
		}
	}

	rawProps, _ := node["properties"].(map[string]any)
	names := make([]string, 0, len(rawProps))
	for name := range rawProps {
		names = append(names, name)
	}
	sort.Strings(names)

	props := make(map[string]Property, len(rawProps))
	for _, name := range names {
		sub, ok := rawProps[name].(map[string]any)
		if !ok {
			return Type{}, fmt.Errorf("%s/properties/%s: expected object", path, name)
		}
		t, err := parseType(sub, path+"/properties/"+name)
		if err != nil {
			return Type{}, err
		}
		props[name] = Property{Required: required[name], Type: t}
	}
	return Object(props), nil
}
