package wire

import (
	"math"
)

// Element is a single key/value pair of a Document.
type Element struct {
	Key   string
	Value any
}

// E is shorthand for building an Element.
func E(key string, value any) Element {
	return Element{Key: key, Value: value}
}

// Document is an ordered command or reply document.
//
// Order matters: the first key of a command document is the command name.
// Supported values are nil, bool, integers, floats, string, []byte,
// Document, []any, uuid.UUID, types.Timestamp and time.Time.
type Document []Element

// Name returns the first key, which is the command name for commands.
func (d Document) Name() string {
	if len(d) == 0 {
		return ""
	}

	return d[0].Key
}

// Lookup returns the value of the first element with the given key.
func (d Document) Lookup(key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}

	return nil, false
}

// Set returns a copy of d with key set to value. An existing key keeps its
// position; a new key is appended.
func (d Document) Set(key string, value any) Document {
	out := make(Document, len(d), len(d)+1)
	copy(out, d)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = value
			return out
		}
	}

	return append(out, Element{Key: key, Value: value})
}

// String returns the string value of key.
func (d Document) String(key string) (string, bool) {
	v, ok := d.Lookup(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)

	return s, ok
}

// Int returns the integer value of key, converting from any numeric type.
func (d Document) Int(key string) (int64, bool) {
	v, ok := d.Lookup(key)
	if !ok {
		return 0, false
	}

	return toInt64(v)
}

// Doc returns the nested document value of key.
func (d Document) Doc(key string) (Document, bool) {
	v, ok := d.Lookup(key)
	if !ok {
		return nil, false
	}
	sub, ok := v.(Document)

	return sub, ok
}

// Map converts the document to a map, recursively. Key order is lost.
func (d Document) Map() map[string]any {
	m := make(map[string]any, len(d))
	for _, e := range d {
		m[e.Key] = plain(e.Value)
	}

	return m
}

func plain(v any) any {
	switch val := v.(type) {
	case Document:
		return val.Map()
	case []Document:
		out := make([]any, len(val))
		for i := range val {
			out[i] = val[i].Map()
		}

		return out
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = plain(val[i])
		}

		return out
	default:
		return v
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		//nolint:gosec // range checked above
		return int64(n), true
	case float32:
		return int64(n), float32(int64(n)) == n
	case float64:
		return int64(n), float64(int64(n)) == n
	case bool:
		if n {
			return 1, true
		}

		return 0, true
	default:
		return 0, false
	}
}
