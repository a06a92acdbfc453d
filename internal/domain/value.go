package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// ValueKind enumerates the declared value types a configuration key can carry.
type ValueKind string

const (
	KindBoolean    ValueKind = "boolean"
	KindString     ValueKind = "string"
	KindNumber     ValueKind = "number"
	KindStructured ValueKind = "structured"
)

// KnownKind reports whether k is one of the declared value kinds.
func KnownKind(k ValueKind) bool {
	switch k {
	case KindBoolean, KindString, KindNumber, KindStructured:
		return true
	}
	return false
}

// Value is a tagged variant value. Exactly one of the payload fields is
// meaningful, selected by Kind, so evaluator branches can be checked
// exhaustively against the declared key type.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Str    string
	Number float64
	Doc    json.RawMessage
}

// BoolValue creates a boolean Value.
func BoolValue(v bool) Value { return Value{Kind: KindBoolean, Bool: v} }

// StringValue creates a string Value.
func StringValue(v string) Value { return Value{Kind: KindString, Str: v} }

// NumberValue creates a numeric Value.
func NumberValue(v float64) Value { return Value{Kind: KindNumber, Number: v} }

// StructuredValue creates a structured (raw JSON document) Value.
func StructuredValue(doc json.RawMessage) Value {
	return Value{Kind: KindStructured, Doc: doc}
}

// Equal reports structural equality between two values. Structured documents
// are compared by decoded content, not raw bytes, so formatting differences
// do not count as changes.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindBoolean:
		return v.Bool == other.Bool
	case KindString:
		return v.Str == other.Str
	case KindNumber:
		return v.Number == other.Number
	case KindStructured:
		if bytes.Equal(v.Doc, other.Doc) {
			return true
		}
		var a, b interface{}
		if err := json.Unmarshal(v.Doc, &a); err != nil {
			return false
		}
		if err := json.Unmarshal(other.Doc, &b); err != nil {
			return false
		}
		return reflect.DeepEqual(a, b)
	}
	return false
}

// valueDoc is the wire form of a Value.
type valueDoc struct {
	Kind  ValueKind       `json:"kind" yaml:"kind"`
	Value json.RawMessage `json:"value" yaml:"value"`
}

/// MarshalJSON encodes the value as {"kind": ..., "value": ...}.
func (v Value) MarshalJSON() ([]byte, error) {
	var payload interface{}
	switch v.Kind {
	case KindBoolean:
		payload = v.Bool
	case KindString:
		payload = v.Str
	case KindNumber:
		payload = v.Number
	case KindStructured:
		payload = v.Doc
	default:
		return nil, fmt.Errorf("cannot marshal value of unknown kind %q", v.Kind)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueDoc{Kind: v.Kind, Value: raw})
}

// UnmarshalJSON decodes the {"kind": ..., "value": ...} wire form.
func (v *Value) UnmarshalJSON(data []byte) error {
	var doc valueDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	switch doc.Kind {
	case KindBoolean:
		var b bool
		if err := json.Unmarshal(doc.Value, &b); err != nil {
			return fmt.Errorf("boolean value: %w", err)
		}
		*v = BoolValue(b)
	case KindString:
		var s string
		if err := json.Unmarshal(doc.Value, &s); err != nil {
			return fmt.Errorf("string value: %w", err)
		}
		*v = StringValue(s)
	case KindNumber:
		var f float64
		if err := json.Unmarshal(doc.Value, &f); err != nil {
			return fmt.Errorf("number value: %w", err)
		}
		*v = NumberValue(f)
	case KindStructured:
		*v = StructuredValue(append(json.RawMessage(nil), doc.Value...))
	default:
		return fmt.Errorf("cannot unmarshal value of unknown kind %q", doc.Kind)
	}
	return nil
}

// String returns a human-readable rendering, mostly for logs and errors.
func (v Value) String() string {
	switch v.Kind {
	case KindBoolean:
		return fmt.Sprintf("%t", v.Bool)
	case KindString:
		return v.Str
	case KindNumber:
		return fmt.Sprintf("%g", v.Number)
	case KindStructured:
		return string(v.Doc)
	}
	return fmt.Sprintf("<unknown kind %s>", string(v.Kind))
}
