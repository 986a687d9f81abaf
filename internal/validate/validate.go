// Package validate checks JSON instances against a harvested schema.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const resourceURL = "harvested.json"

// Violation is a single validation failure.
type Violation struct {
	Path    string `json:"path"` // JSON pointer into the instance
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// Schema is a compiled schema document.
type Schema struct {
	schema *jsonschema.Schema
}

type options struct {
	assertFormats bool
}

// Option configures Compile.
type Option func(*options)

// WithFormatAssertions makes "format" keywords fail validation instead of
// being treated as annotations.
func WithFormatAssertions() Option {
	return func(o *options) { o.assertFormats = true }
}

// Compile parses and compiles a schema document. The document's $id is
// ignored so that documents with non-resolvable identifiers still compile.
func Compile(doc []byte, opts ...Option) (*Schema, error) {
	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	return CompileValue(value, opts...)
}

// CompileValue compiles an already decoded schema document.
func CompileValue(value any, opts ...Option) (*Schema, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if m, ok := value.(map[string]any); ok {
		trimmed := make(map[string]any, len(m))
		for k, v := range m {
			if k != "$id" {
				trimmed[k] = v
			}
		}
		value = trimmed
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)
	if o.assertFormats {
		compiler.AssertFormat()
	}
	if err := compiler.AddResource(resourceURL, value); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	compiled, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return &Schema{schema: compiled}, nil
}

// Validate checks an already decoded value. Numbers may be json.Number.
// It returns nil when the value is valid.
func (s *Schema) Validate(value any) []Violation {
	err := s.schema.Validate(stdNumbers(value))
	if err == nil {
		return nil
	}

	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return []Violation{{Message: err.Error()}}
	}

	seen := map[Violation]bool{}
	var out []Violation
	collect(validationErr, seen, &out)
	if len(out) == 0 {
		out = append(out, Violation{Message: validationErr.Error()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Message < out[j].Message
	})
	return out
}

// numberLiteral matches json.Number look-alikes of other decoders.
type numberLiteral interface {
	String() string
	Float64() (float64, error)
	Int64() (int64, error)
}

// stdNumbers returns v with every numberLiteral replaced by a json.Number.
func stdNumbers(v any) any {
	switch v := v.(type) {
	case json.Number, string, bool, nil, float64:
		return v
	case numberLiteral:
		return json.Number(v.String())
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = stdNumbers(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = stdNumbers(e)
		}
		return out
	default:
		return v
	}
}

// ValidateBytes decodes data and validates it.
func (s *Schema) ValidateBytes(data []byte) ([]Violation, error) {
	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return s.Validate(value), nil
}

var printer = message.NewPrinter(language.English)

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// pointer formats an instance location as a JSON pointer; the root is "".
func pointer(tokens []string) string {
	var b strings.Builder
	for _, tok := range tokens {
		b.WriteByte('/')
		pointerEscaper.WriteString(&b, tok)
	}
	return b.String()
}

// collect gathers the leaf errors, which carry the concrete failure.
func collect(err *jsonschema.ValidationError, seen map[Violation]bool, out *[]Violation) {
	if err.ErrorKind != nil && len(err.Causes) == 0 {
		v := Violation{Message: err.ErrorKind.LocalizedString(printer)}
		v.Path = pointer(err.InstanceLocation)
		if !seen[v] && !strings.HasPrefix(v.Message, "$ref ") {
			seen[v] = true
			*out = append(*out, v)
		}
	}
	for _, cause := range err.Causes {
		collect(cause, seen, out)
	}
}
