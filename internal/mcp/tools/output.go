package tools

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// AddTool registers a tool whose output type passes CheckOutput and panics
// otherwise. A type that fails would make every call of the tool fail the
// SDK's output validation.
func AddTool[In, Out any](srv *sdkmcp.Server, t *sdkmcp.Tool, h sdkmcp.ToolHandlerFor[In, Out]) {
	if err := CheckOutput[Out](); err != nil {
		panic(fmt.Sprintf("tool %q: %v", t.Name, err))
	}
	sdkmcp.AddTool(srv, t, h)
}

// FieldProblem is one field of an output type that cannot match the schema
// advertised for it.
type FieldProblem struct {
	Path   string
	Reason string
}

// OutputError reports why an output type contradicts its inferred schema.
type OutputError struct {
	Type   reflect.Type
	Fields []FieldProblem
	// Zero holds the schema failure of the encoded zero value, if any.
	Zero error
}

func (e *OutputError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "output type %s does not match its schema", e.Type)
	for _, f := range e.Fields {
		fmt.Fprintf(&b, "\n  %s: %s", f.Path, f.Reason)
	}
	if e.Zero != nil {
		fmt.Fprintf(&b, "\n  zero value: %v", e.Zero)
	}
	return b.String()
}

var rawMessageType = reflect.TypeFor[json.RawMessage]()

// CheckOutput inspects the output type T of a tool. Nil slices and maps
// encode as null, which fails an inferred "array" or "object" unless the
// field is omitempty or omitzero. json.RawMessage is inferred as an array
// of bytes although it encodes as a document. The untyped any output and
// types the SDK cannot infer a schema for are left to the SDK.
func CheckOutput[T any]() error {
	rt := reflect.TypeFor[T]()
	if rt == reflect.TypeFor[any]() {
		return nil
	}
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}

	problems := outputFields(rt, "", true, make(map[reflect.Type]bool))
	zeroErr := validateZero(rt)
	if len(problems) == 0 && zeroErr == nil {
		return nil
	}
	return &OutputError{Type: rt, Fields: problems, Zero: zeroErr}
}

// validateZero encodes the zero value of rt and validates it against the
// schema the SDK infers.
func validateZero(rt reflect.Type) error {
	schema, err := jsonschema.ForType(rt, &jsonschema.ForOptions{})
	if err != nil {
		return nil
	}
	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return nil
	}
	data, err := json.Marshal(reflect.Zero(rt).Interface())
	if err != nil {
		return nil
	}
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	if err := resolved.Validate(&v); err != nil {
		return fmt.Errorf("%s: %w", data, err)
	}
	return nil
}

// outputFields walks t. zero is true while the walk is inside the zero
// value, where nil collections are actually encoded; below a slice or map
// only the element types matter.
func outputFields(t reflect.Type, path string, zero bool, visiting map[reflect.Type]bool) []FieldProblem {
	if t == rawMessageType {
		return []FieldProblem{{Path: path, Reason: "json.RawMessage is advertised as an array of bytes; decode it into map[string]any"}}
	}
	if visiting[t] {
		return nil
	}
	visiting[t] = true
	defer delete(visiting, t)

	switch t.Kind() {
	case reflect.Pointer:
		// A nil pointer encodes as null, which the inferred schema allows.
		return outputFields(t.Elem(), path, false, visiting)
	case reflect.Slice, reflect.Array:
		return outputFields(t.Elem(), path+"[]", false, visiting)
	case reflect.Map:
		return outputFields(t.Elem(), path+"[value]", false, visiting)
	case reflect.Struct:
	default:
		return nil
	}

	var problems []FieldProblem
	for i := range t.NumField() {
		f := t.Field(i)
		name, omit, skip := jsonField(f)
		if skip {
			continue
		}
		fieldPath := name
		if path != "" {
			fieldPath = path + "." + name
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			fieldPath = path
		}
		if zero && !omit && nilCollection(f.Type) {
			problems = append(problems, FieldProblem{
				Path:   fieldPath,
				Reason: fmt.Sprintf("nil %s encodes as null; tag it omitzero", f.Type.Kind()),
			})
		}
		problems = append(problems, outputFields(f.Type, fieldPath, zero, visiting)...)
	}
	return problems
}

// jsonField returns the encoded name of f and whether it is omitted when
// empty. skip is set for unexported and "-" fields.
func jsonField(f reflect.StructField) (name string, omit, skip bool) {
	if !f.IsExported() {
		return "", false, true
	}
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}
	for _, opt := range strings.Split(opts, ",") {
		if opt == "omitempty" || opt == "omitzero" {
			omit = true
		}
	}
	return name, omit, false
}

func nilCollection(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Map:
		return true
	case reflect.Slice:
		return t != rawMessageType
	}
	return false
}
