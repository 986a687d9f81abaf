// Package selector extracts the payload to harvest from a decoded document
// using a jq expression, e.g. ".data" for CloudEvents style envelopes.
package selector

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/itchyny/gojq"
)

// CloudEvents selects the data member of an externally tagged envelope.
const CloudEvents = ".data"

// Selector is a compiled expression. The zero value and the expression "."
// select the whole document.
type Selector struct {
	expr  string
	code  *gojq.Code
	paths *gojq.Code
}

// Compile parses and compiles expr.
func Compile(expr string) (*Selector, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == "." {
		return &Selector{expr: "."}, nil
	}

	code, err := compile(expr)
	if err != nil {
		return nil, err
	}
	// Expressions that only navigate the document are evaluated as paths so
	// the selected value keeps its original number literals.
	paths, err := compile("path(" + expr + ")")
	if err != nil {
		paths = nil
	}
	return &Selector{expr: expr, code: code, paths: paths}, nil
}

func compile(expr string) (*gojq.Code, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		var parseErr *gojq.ParseError
		if errors.As(err, &parseErr) {
			return nil, fmt.Errorf("invalid jq expression at position %d: %w", parseErr.Offset, err)
		}
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq expression: %w", err)
	}
	return code, nil
}

// String returns the expression.
func (s *Selector) String() string {
	if s == nil || s.expr == "" {
		return "."
	}
	return s.expr
}

// Identity reports whether s selects the whole document.
func (s *Selector) Identity() bool {
	return s == nil || s.code == nil
}

// Select returns the first value the expression produces for doc. The
// boolean is false when nothing was selected: no output, or null output from
// a non-identity expression.
func (s *Selector) Select(doc any) (any, bool, error) {
	if s.Identity() {
		return doc, true, nil
	}

	input := normalize(doc)

	if s.paths != nil {
		if v, ok, err := s.selectPath(doc, input); err == nil {
			return v, ok, nil
		}
	}

	iter := s.code.Run(input)
	v, ok := iter.Next()
	if !ok || v == nil {
		return nil, false, nil
	}
	if err, isErr := v.(error); isErr {
		return nil, false, fmt.Errorf("select %s: %s", s.expr, formatJQError(err))
	}
	return v, true, nil
}

var errUnsupportedPath = errors.New("unsupported path")

func (s *Selector) selectPath(doc, input any) (any, bool, error) {
	iter := s.paths.Run(input)
	p, ok := iter.Next()
	if !ok {
		return nil, false, nil
	}
	if err, isErr := p.(error); isErr {
		return nil, false, err
	}
	path, ok := p.([]any)
	if !ok {
		return nil, false, errUnsupportedPath
	}
	v, found, err := getPath(doc, path)
	if err != nil || !found || v == nil {
		return nil, false, err
	}
	return v, true, nil
}

func getPath(v any, path []any) (any, bool, error) {
	for _, step := range path {
		switch key := step.(type) {
		case string:
			m, ok := v.(map[string]any)
			if !ok {
				return nil, false, nil
			}
			if v, ok = m[key]; !ok {
				return nil, false, nil
			}
		case int:
			arr, ok := v.([]any)
			if !ok {
				return nil, false, nil
			}
			if key < 0 {
				key += len(arr)
			}
			if key < 0 || key >= len(arr) {
				return nil, false, nil
			}
			v = arr[key]
		default:
			return nil, false, errUnsupportedPath
		}
	}
	return v, true, nil
}

// normalize converts json.Number values into the numeric types gojq accepts.
func normalize(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := strconv.Atoi(string(v)); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil && strings.ContainsAny(string(v), ".eE") {
			return f
		}
		if b, ok := new(big.Int).SetString(string(v), 10); ok {
			return b
		}
		f, _ := v.Float64()
		return f
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = normalize(e)
		}
		return out
	default:
		return v
	}
}

// formatJQError adds hints to common runtime errors. gojq runtime errors are
// untyped, so the hints are picked by message.
func formatJQError(err error) string {
	var haltErr *gojq.HaltError
	if errors.As(err, &haltErr) {
		if haltErr.Value() == nil {
			return "query halted"
		}
		return fmt.Sprintf("query halted with: %v", haltErr.Value())
	}

	msg := err.Error()
	var hint string
	switch {
	case strings.Contains(msg, "cannot iterate over: null"):
		hint = " (the path may not exist in this document)"
	case strings.Contains(msg, "cannot index") && strings.Contains(msg, "with"):
		hint = " (field not found or wrong type)"
	}
	return msg + hint
}
