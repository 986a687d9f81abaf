package jsonschema

import (
	"sort"

	"github.com/usestring/schema-harvester/pkg/format"
)

// Merge returns the least specific Type describing both a and b.
//
// Merge is commutative and idempotent. Object keys seen on one side only are
// demoted to optional, string formats survive only when both sides agree,
// and incompatible shapes are combined into a union.
func Merge(a, b Type) Type {
	switch {
	case Equal(a, b):
		return a
	case a.kind == KindString && b.kind == KindString:
		return mergeStrings(a, b)
	case a.kind == KindObject && b.kind == KindObject:
		return mergeObjects(a, b)
	case a.kind == KindArray && b.kind == KindArray:
		return mergeArrays(a, b)
	case holdsNonString(a) || holdsNonString(b):
		return Any(a, b)
	default:
		return Union(a, b)
	}
}

// holdsNonString reports whether t is a union with a member that is not a
// string. Such a union stays a union through every later merge, even when
// it is left with one member. Unions of formatted strings only describe the
// string slot and collapse like any other reduction.
func holdsNonString(t Type) bool {
	if t.kind != KindAny {
		return false
	}
	for _, m := range t.members {
		if m.kind != KindString {
			return true
		}
	}
	return false
}

// Union reduces types into the smallest union describing all of them. It is
// the one reduction used both for the elements of a single array and for
// unions built across documents. A union with a single member collapses to
// that member.
func Union(types ...Type) Type {
	var set []Type
	for _, t := range types {
		set = absorb(set, t)
	}
	if len(set) == 1 {
		return set[0]
	}
	return newAny(set)
}

func newAny(set []Type) Type {
	if set == nil {
		set = []Type{}
	}
	sort.Slice(set, func(i, j int) bool { return Compare(set[i], set[j]) < 0 })
	return Type{kind: KindAny, members: set}
}

// absorb adds t to the canonical member set. Members of t are absorbed one by
// one when t is itself a union. A member of the same kind is merged in place;
// set is never shared with an existing Type, so replacing elements is safe.
func absorb(set []Type, t Type) []Type {
	switch t.kind {
	case KindAny:
		for _, m := range t.members {
			set = absorb(set, m)
		}
		return set
	case KindString:
		return absorbString(set, t)
	}

	for i, m := range set {
		if m.kind == t.kind {
			set[i] = Merge(m, t)
			return set
		}
	}
	return append(set, t)
}

// absorbString keeps the string slot of a union either as one plain string
// or as formatted strings with pairwise distinct formats.
func absorbString(set []Type, t Type) []Type {
	hasStrings := false
	for _, m := range set {
		if m.kind != KindString {
			continue
		}
		hasStrings = true
		if m.format == format.None || m.format == t.format {
			return set
		}
	}
	if t.format != format.None || !hasStrings {
		return append(set, t)
	}

	out := set[:0]
	for _, m := range set {
		if m.kind != KindString {
			out = append(out, m)
		}
	}
	return append(out, t)
}

func mergeStrings(a, b Type) Type {
	switch {
	case a.format == b.format:
		return a
	case a.format == format.None || b.format == format.None:
		return String(format.None)
	default:
		return newAny([]Type{a, b})
	}
}

func mergeObjects(a, b Type) Type {
	fields := make([]field, 0, max(len(a.fields), len(b.fields)))
	i, j := 0, 0
	for i < len(a.fields) || j < len(b.fields) {
		switch {
		case j == len(b.fields) || (i < len(a.fields) && a.fields[i].name < b.fields[j].name):
			fields = append(fields, optional(a.fields[i]))
			i++
		case i == len(a.fields) || b.fields[j].name < a.fields[i].name:
			fields = append(fields, optional(b.fields[j]))
			j++
		default:
			fa, fb := a.fields[i], b.fields[j]
			fields = append(fields, field{
				name: fa.name,
				Property: Property{
					Required: fa.Required && fb.Required,
					Type:     Merge(fa.Type, fb.Type),
				},
			})
			i++
			j++
		}
	}
	return Type{kind: KindObject, fields: fields}
}

func optional(f field) field {
	f.Required = false
	return f
}

func mergeArrays(a, b Type) Type {
	switch {
	case a.item == nil:
		return b
	case b.item == nil:
		return a
	}
	return ArrayOf(Merge(*a.item, *b.item))
}
