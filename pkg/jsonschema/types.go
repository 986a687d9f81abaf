// Package jsonschema infers structural JSON schemas from example documents.
//
// A Type describes the shape of every JSON value observed so far. Types are
// immutable: Generate builds one from a single value, Merge combines two into
// the least specific Type describing both, and Render turns a Hypothesis into
// a draft-07 JSON Schema document.
package jsonschema

import (
	"sort"
	"strings"

	"github.com/usestring/schema-harvester/pkg/format"
)

// Kind identifies a Type variant. The declaration order is the order used
// when sorting union members.
type Kind uint8

const (
	KindNull Kind = iota
	KindBoolean
	KindInteger
	KindNumber
	KindString
	KindArray
	KindObject
	KindAny
)

var kindNames = [...]string{"null", "boolean", "integer", "number", "string", "array", "object", "any"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Type is a node of the structural type model. The zero value is Null.
type Type struct {
	kind    Kind
	format  format.Format
	item    *Type   // array element type, nil while no element was seen
	fields  []field // object properties sorted by name
	members []Type  // union members in canonical order
}

// Property describes one object key.
type Property struct {
	// Required is true while the key was present in every observed object.
	Required bool
	Type     Type
}

type field struct {
	name string
	Property
}

func Null() Type    { return Type{kind: KindNull} }
func Boolean() Type { return Type{kind: KindBoolean} }
func Integer() Type { return Type{kind: KindInteger} }
func Number() Type  { return Type{kind: KindNumber} }

// String returns a string Type refined by f.
func String(f format.Format) Type { return Type{kind: KindString, format: f} }

// Array returns an array Type with no element type yet.
func Array() Type { return Type{kind: KindArray} }

// ArrayOf returns an array Type whose elements are described by item.
func ArrayOf(item Type) Type {
	return Type{kind: KindArray, item: &item}
}

// Object returns an object Type with the given properties.
func Object(props map[string]Property) Type {
	fields := make([]field, 0, len(props))
	for name, p := range props {
		fields = append(fields, field{name: name, Property: p})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].name < fields[j].name })
	return Type{kind: KindObject, fields: fields}
}

// Any returns a union of members, canonicalised so that it holds at most one
// object, one array and one string shape. Unlike Union it never collapses, so
// Any() and Any(t) are kept as empty and singleton unions.
func Any(members ...Type) Type {
	var set []Type
	for _, m := range members {
		set = absorb(set, m)
	}
	return newAny(set)
}

// Kind returns the variant of t.
func (t Type) Kind() Kind { return t.kind }

// Format returns the string format of t. It is None for non-string kinds.
func (t Type) Format() format.Format { return t.format }

// Item returns the element type of an array. The boolean is false for
// arrays with no observed element and for non-array kinds.
func (t Type) Item() (Type, bool) {
	if t.item == nil {
		return Type{}, false
	}
	return *t.item, true
}

// Properties returns a copy of the object properties.
func (t Type) Properties() map[string]Property {
	if t.kind != KindObject {
		return nil
	}
	props := make(map[string]Property, len(t.fields))
	for _, f := range t.fields {
		props[f.name] = f.Property
	}
	return props
}

// Property looks up a single object property.
func (t Type) Property(name string) (Property, bool) {
	i := sort.Search(len(t.fields), func(i int) bool { return t.fields[i].name >= name })
	if i < len(t.fields) && t.fields[i].name == name {
		return t.fields[i].Property, true
	}
	return Property{}, false
}

// PropertyNames returns the object keys in sorted order.
func (t Type) PropertyNames() []string {
	names := make([]string, len(t.fields))
	for i, f := range t.fields {
		names[i] = f.name
	}
	return names
}

// Members returns a copy of the union members in canonical order.
func (t Type) Members() []Type {
	if t.kind != KindAny {
		return nil
	}
	return append([]Type(nil), t.members...)
}

// Equal reports structural equality.
func Equal(a, b Type) bool { return Compare(a, b) == 0 }

// Equal reports whether t and o are structurally equal.
func (t Type) Equal(o Type) bool { return Compare(t, o) == 0 }

// Compare orders Types: Null < Boolean < Integer < Number < String < Array <
// Object < Any, then by contained data. It returns -1, 0 or +1.
func Compare(a, b Type) int {
	if a.kind != b.kind {
		return cmpInt(int(a.kind), int(b.kind))
	}

	switch a.kind {
	case KindString:
		return cmpInt(int(a.format), int(b.format))
	case KindArray:
		switch {
		case a.item == nil && b.item == nil:
			return 0
		case a.item == nil:
			return -1
		case b.item == nil:
			return 1
		}
		return Compare(*a.item, *b.item)
	case KindObject:
		for i := 0; i < len(a.fields) && i < len(b.fields); i++ {
			if c := compareField(a.fields[i], b.fields[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(a.fields), len(b.fields))
	case KindAny:
		for i := 0; i < len(a.members) && i < len(b.members); i++ {
			if c := Compare(a.members[i], b.members[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(a.members), len(b.members))
	}
	return 0
}

func compareField(a, b field) int {
	if c := strings.Compare(a.name, b.name); c != 0 {
		return c
	}
	if a.Required != b.Required {
		if !a.Required {
			return -1
		}
		return 1
	}
	return Compare(a.Type, b.Type)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// String renders a compact, human-readable description such as
// "object{id:integer, name?:string}".
func (t Type) String() string {
	var sb strings.Builder
	t.describe(&sb)
	return sb.String()
}

func (t Type) describe(sb *strings.Builder) {
	switch t.kind {
	case KindString:
		sb.WriteString("string")
		if t.format != format.None {
			sb.WriteByte('(')
			sb.WriteString(t.format.String())
			sb.WriteByte(')')
		}
	case KindArray:
		sb.WriteString("array")
		if t.item != nil {
			sb.WriteByte('[')
			t.item.describe(sb)
			sb.WriteByte(']')
		}
	case KindObject:
		sb.WriteString("object{")
		for i, f := range t.fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.name)
			if !f.Required {
				sb.WriteByte('?')
			}
			sb.WriteByte(':')
			f.Type.describe(sb)
		}
		sb.WriteByte('}')
	case KindAny:
		sb.WriteString("any(")
		for i, m := range t.members {
			if i > 0 {
				sb.WriteString(" | ")
			}
			m.describe(sb)
		}
		sb.WriteByte(')')
	default:
		sb.WriteString(t.kind.String())
	}
}
