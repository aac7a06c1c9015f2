package parse

import (
	"bytes"
	"encoding/json"
)

// Field is a parsed value that is either present or missing. The parser
// never invents values; a Missing field is resolved by the normalizer.
type Field[T any] struct {
	value   T
	present bool
}

// Present wraps a value found in the model output.
func Present[T any](v T) Field[T] {
	return Field[T]{value: v, present: true}
}

// Missing marks a value that was absent or null.
func Missing[T any]() Field[T] {
	return Field[T]{}
}

// Get returns the value and whether it was present.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.present
}

// IsPresent reports whether the field holds a value.
func (f Field[T]) IsPresent() bool {
	return f.present
}

// Value is an undecoded JSON scalar, array, or object.
type Value = json.RawMessage

// Origin records which parsing path produced a field set.
type Origin int

const (
	// OriginJSON means the output decoded as a JSON object.
	OriginJSON Origin = iota
	// OriginScraped means fields were recovered with per-field patterns.
	OriginScraped
	// OriginUnparsed means nothing usable was recovered.
	OriginUnparsed
)

func (o Origin) String() string {
	switch o {
	case OriginJSON:
		return "json"
	case OriginScraped:
		return "scraped"
	default:
		return "unparsed"
	}
}

// object is a decoded JSON object whose members are still raw.
type object map[string]json.RawMessage

// field looks up key, treating absent and null alike.
func (o object) field(key string) Field[Value] {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return Missing[Value]()
	}
	return Present(Value(raw))
}

// sub decodes key as a nested object. ok is false when key is absent or not
// an object.
func (o object) sub(key string) (object, bool) {
	raw, ok := o[key]
	if !ok {
		return nil, false
	}
	return decodeObject(raw)
}

// list decodes key as a JSON array.
func (o object) list(key string) Field[[]Value] {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return Missing[[]Value]()
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return Missing[[]Value]()
	}
	out := make([]Value, len(items))
	for i, it := range items {
		out[i] = Value(it)
	}
	return Present(out)
}

func decodeObject(raw []byte) (object, bool) {
	var obj object
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func isNull(raw []byte) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// quoted encodes a scraped string as a JSON string value.
func quoted(s string) Field[Value] {
	b, err := json.Marshal(s)
	if err != nil {
		return Missing[Value]()
	}
	return Present(Value(b))
}
