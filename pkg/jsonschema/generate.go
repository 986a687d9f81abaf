package jsonschema

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/valyala/fastjson"

	"github.com/usestring/schema-harvester/pkg/format"
)

// Generate returns the Type of a decoded JSON value. It accepts the values
// produced by encoding/json (preferably with UseNumber). Values of other Go
// types are round-tripped through encoding/json first.
func Generate(v any) Type {
	switch v := v.(type) {
	case nil:
		return Null()
	case bool:
		return Boolean()
	case json.Number:
		return numberType(string(v))
	case numberLiteral:
		return numberType(v.String())
	case float64:
		return floatType(v)
	case float32:
		return floatType(float64(v))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Integer()
	case *big.Int:
		if v.IsInt64() || v.IsUint64() {
			return Integer()
		}
		return Number()
	case string:
		return String(format.Classify(v))
	case []any:
		if len(v) == 0 {
			return Array()
		}
		items := make([]Type, len(v))
		for i, elem := range v {
			items[i] = Generate(elem)
		}
		return ArrayOf(Union(items...))
	case map[string]any:
		props := make(map[string]Property, len(v))
		for k, elem := range v {
			props[k] = Property{Required: true, Type: Generate(elem)}
		}
		return Object(props)
	case json.RawMessage:
		t, err := GenerateBytes(v)
		if err != nil {
			return Null()
		}
		return t
	default:
		return generateReflected(v)
	}
}

// numberLiteral matches json.Number look-alikes of other decoders.
type numberLiteral interface {
	String() string
	Int64() (int64, error)
	Float64() (float64, error)
}

func generateReflected(v any) Type {
	data, err := json.Marshal(v)
	if err != nil {
		return Null()
	}
	t, err := GenerateBytes(data)
	if err != nil {
		return Null()
	}
	return t
}

// numberType classifies a JSON number by its literal: anything that parses as
// a 64-bit integer is Integer, everything else (fractions, exponents, larger
// magnitudes) is Number.
func numberType(lit string) Type {
	if _, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return Integer()
	}
	if _, err := strconv.ParseUint(lit, 10, 64); err == nil {
		return Integer()
	}
	return Number()
}

func floatType(f float64) Type {
	if f == math.Trunc(f) && f >= -(1<<63) && f < 1<<63 {
		return Integer()
	}
	return Number()
}

var parserPool fastjson.ParserPool

// GenerateBytes parses one JSON document and returns its Type.
func GenerateBytes(data []byte) (Type, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return Type{}, fmt.Errorf("parse json: %w", err)
	}
	return GenerateFastJSON(v), nil
}

// GenerateFastJSON returns the Type of a fastjson value. The value is only
// read, so it may belong to a pooled parser.
func GenerateFastJSON(v *fastjson.Value) Type {
	switch v.Type() {
	case fastjson.TypeNull:
		return Null()
	case fastjson.TypeTrue, fastjson.TypeFalse:
		return Boolean()
	case fastjson.TypeNumber:
		return numberType(string(v.MarshalTo(nil)))
	case fastjson.TypeString:
		return String(format.Classify(string(v.GetStringBytes())))
	case fastjson.TypeArray:
		elems := v.GetArray()
		if len(elems) == 0 {
			return Array()
		}
		items := make([]Type, len(elems))
		for i, elem := range elems {
			items[i] = GenerateFastJSON(elem)
		}
		return ArrayOf(Union(items...))
	case fastjson.TypeObject:
		o := v.GetObject()
		props := make(map[string]Property, o.Len())
		o.Visit(func(key []byte, elem *fastjson.Value) {
			props[string(key)] = Property{Required: true, Type: GenerateFastJSON(elem)}
		})
		return Object(props)
	}
	return Null()
}
