package jsonschema

// Default metadata used when a caller has nothing better to offer.
const (
	DefaultID          = "https:://github.com/elmarx/schema-harvester"
	DefaultTitle       = "Sample"
	DefaultDescription = "Auto-generated schema"
)

// Hypothesis is the accumulated schema of one document stream. The metadata
// is passed through to the rendered document unchanged.
//
// A Hypothesis is a value: Observe returns an updated copy and never modifies
// the receiver.
type Hypothesis struct {
	ID          string
	Title       string
	Description string

	root     Type
	observed bool
}

// NewHypothesis returns a Hypothesis that has not observed any document.
func NewHypothesis(id, title, description string) Hypothesis {
	return Hypothesis{ID: id, Title: title, Description: description}
}

// Root returns the accumulated Type. The boolean is false until the first
// document was observed.
func (h Hypothesis) Root() (Type, bool) {
	return h.root, h.observed
}

// Observe merges t into the hypothesis.
func (h Hypothesis) Observe(t Type) Hypothesis {
	if h.observed {
		h.root = Merge(h.root, t)
	} else {
		h.root = t
		h.observed = true
	}
	return h
}

// ObserveValue generates the Type of v and merges it into the hypothesis.
func (h Hypothesis) ObserveValue(v any) Hypothesis {
	return h.Observe(Generate(v))
}

// WithRoot returns a copy of h whose root is t.
func (h Hypothesis) WithRoot(t Type) Hypothesis {
	h.root = t
	h.observed = true
	return h
}

// Equal reports whether both hypotheses carry the same metadata and
// structurally equal roots.
func (h Hypothesis) Equal(o Hypothesis) bool {
	if h.ID != o.ID || h.Title != o.Title || h.Description != o.Description {
		return false
	}
	if h.observed != o.observed {
		return false
	}
	return !h.observed || Equal(h.root, o.root)
}
