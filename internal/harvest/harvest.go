// Package harvest folds the payloads of one stream into a schema hypothesis.
package harvest

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"github.com/usestring/schema-harvester/internal/selector"
	"github.com/usestring/schema-harvester/pkg/jsonschema"
)

// ErrEmptyPayload is returned for payloads that carry nothing to observe:
// empty messages (tombstones) and envelopes whose selected payload is null
// or missing. It is not a failure.
var ErrEmptyPayload = errors.New("empty payload")

// DecodeError reports a payload that is not valid JSON.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "invalid json payload: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// Metadata is copied into every rendered schema.
type Metadata struct {
	ID          string
	Title       string
	Description string
}

// DefaultMetadata returns the metadata used when nothing is configured.
func DefaultMetadata() Metadata {
	return Metadata{
		ID:          jsonschema.DefaultID,
		Title:       jsonschema.DefaultTitle,
		Description: jsonschema.DefaultDescription,
	}
}

// StreamMetadata returns the metadata for a named stream, such as a topic.
func StreamMetadata(stream string) Metadata {
	return Metadata{
		ID:          jsonschema.DefaultID,
		Title:       stream,
		Description: "Auto-generated schema for " + stream,
	}
}

// Stats counts what a Harvester has seen.
type Stats struct {
	Observed int64 `json:"observed"`
	Changed  int64 `json:"changed"`
	Skipped  int64 `json:"skipped"`
	Empty    int64 `json:"empty"`
}

// Option configures a Harvester.
type Option func(*Harvester)

// WithSelector observes the part of each payload chosen by sel instead of
// the whole document.
func WithSelector(sel *selector.Selector) Option {
	return func(h *Harvester) {
		if sel != nil && !sel.Identity() {
			h.sel = sel
		}
	}
}

// WithHypothesis starts from a previously harvested hypothesis. Its root is
// kept and the metadata passed to New takes precedence.
func WithHypothesis(prev jsonschema.Hypothesis) Option {
	return func(h *Harvester) {
		if root, ok := prev.Root(); ok {
			h.hyp = h.hyp.WithRoot(root)
		}
	}
}

// Harvester is safe for concurrent use.
type Harvester struct {
	mu    sync.Mutex
	hyp   jsonschema.Hypothesis
	sel   *selector.Selector
	stats Stats
}

// New returns a Harvester that has observed nothing.
func New(meta Metadata, opts ...Option) *Harvester {
	h := &Harvester{hyp: jsonschema.NewHypothesis(meta.ID, meta.Title, meta.Description)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ObservePayload decodes one raw payload and merges it into the hypothesis.
// changed reports whether the hypothesis differs from before.
func (h *Harvester) ObservePayload(payload []byte) (bool, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		h.count(func(s *Stats) { s.Empty++ })
		return false, ErrEmptyPayload
	}

	if h.sel == nil {
		t, err := jsonschema.GenerateBytes(payload)
		if err != nil {
			h.count(func(s *Stats) { s.Skipped++ })
			return false, &DecodeError{Err: err}
		}
		return h.observe(t), nil
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		h.count(func(s *Stats) { s.Skipped++ })
		return false, &DecodeError{Err: err}
	}
	if dec.More() {
		h.count(func(s *Stats) { s.Skipped++ })
		return false, &DecodeError{Err: errors.New("unexpected data after value")}
	}
	return h.ObserveValue(v)
}

// ObserveValue merges an already decoded value, applying the selector if
// one is configured.
func (h *Harvester) ObserveValue(v any) (bool, error) {
	if h.sel != nil {
		selected, ok, err := h.sel.Select(v)
		if err != nil {
			h.count(func(s *Stats) { s.Skipped++ })
			return false, fmt.Errorf("select payload: %w", err)
		}
		if !ok {
			h.count(func(s *Stats) { s.Empty++ })
			return false, ErrEmptyPayload
		}
		v = selected
	}
	return h.observe(jsonschema.Generate(v)), nil
}

func (h *Harvester) observe(t jsonschema.Type) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := h.hyp.Observe(t)
	changed := !next.Equal(h.hyp)
	h.hyp = next
	h.stats.Observed++
	if changed {
		h.stats.Changed++
	}
	return changed
}

func (h *Harvester) count(fn func(*Stats)) {
	h.mu.Lock()
	fn(&h.stats)
	h.mu.Unlock()
}

// Hypothesis returns the current hypothesis.
func (h *Harvester) Hypothesis() jsonschema.Hypothesis {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hyp
}

// Stats returns a snapshot of the counters.
func (h *Harvester) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// Render returns the current schema as indented JSON.
func (h *Harvester) Render() ([]byte, error) {
	return jsonschema.MarshalIndent(h.Hypothesis())
}
