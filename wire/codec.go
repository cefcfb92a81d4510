package wire

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/tinylib/msgp/msgp"

	"github.com/arloliu/reprise/types"
)

// maxNesting bounds document depth on decode.
const maxNesting = 100

var errTooDeep = errors.New("reprise: document nesting too deep")

// Encode serializes a document to MessagePack, keeping element order.
//
// Parameters:
//   - doc: Document to encode
//
// Returns:
//   - []byte: Encoded bytes
//   - error: Encoding error if a value type is not supported
func Encode(doc Document) ([]byte, error) {
	return appendDocument(nil, doc)
}

func appendDocument(buf []byte, doc Document) ([]byte, error) {
	if uint64(len(doc)) > math.MaxUint32 {
		return nil, errors.New("reprise: document too large to encode")
	}

	//nolint:gosec // overflow checked above
	buf = msgp.AppendMapHeader(buf, uint32(len(doc)))
	for _, e := range doc {
		buf = msgp.AppendString(buf, e.Key)

		var err error
		buf, err = appendValue(buf, e.Value)
		if err != nil {
			return nil, fmt.Errorf("reprise: failed to encode %q: %w", e.Key, err)
		}
	}

	return buf, nil
}

// appendValue encodes a single value, with special handling for nested
// documents and the extension types.
func appendValue(buf []byte, v any) ([]byte, error) {
	switch val := v.(type) {
	case Document:
		return appendDocument(buf, val)
	case []Document:
		//nolint:gosec // slice lengths fit in uint32 in practice
		buf = msgp.AppendArrayHeader(buf, uint32(len(val)))
		for _, d := range val {
			var err error
			if buf, err = appendDocument(buf, d); err != nil {
				return nil, err
			}
		}

		return buf, nil
	case []any:
		//nolint:gosec // slice lengths fit in uint32 in practice
		buf = msgp.AppendArrayHeader(buf, uint32(len(val)))
		for _, item := range val {
			var err error
			if buf, err = appendValue(buf, item); err != nil {
				return nil, err
			}
		}

		return buf, nil
	case []string:
		//nolint:gosec // slice lengths fit in uint32 in practice
		buf = msgp.AppendArrayHeader(buf, uint32(len(val)))
		for _, s := range val {
			buf = msgp.AppendString(buf, s)
		}

		return buf, nil
	case uuid.UUID:
		ext := uuidExt(val)
		return msgp.AppendExtension(buf, &ext)
	case types.Timestamp:
		ext := timestampExt(val)
		return msgp.AppendExtension(buf, &ext)
	default:
		return msgp.AppendIntf(buf, v)
	}
}

// Decode parses MessagePack bytes produced by Encode back into a Document.
//
// Integers decode as int64 or uint64, floats as float64, nested maps as
// Document and arrays as []any.
//
// Parameters:
//   - b: Encoded bytes
//
// Returns:
//   - Document: Decoded document
//   - error: Decoding error if the data is malformed
func Decode(b []byte) (Document, error) {
	doc, rest, err := readDocument(b, 0)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("reprise: %d trailing bytes after document", len(rest))
	}

	return doc, nil
}

func readDocument(b []byte, depth int) (Document, []byte, error) {
	if depth > maxNesting {
		return nil, b, errTooDeep
	}

	sz, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return nil, b, fmt.Errorf("reprise: failed to read document header: %w", err)
	}

	doc := make(Document, 0, sz)
	for i := uint32(0); i < sz; i++ {
		var key string
		key, b, err = msgp.ReadStringBytes(b)
		if err != nil {
			return nil, b, fmt.Errorf("reprise: failed to read key %d: %w", i, err)
		}

		var val any
		val, b, err = readValue(b, depth+1)
		if err != nil {
			return nil, b, fmt.Errorf("reprise: failed to decode %q: %w", key, err)
		}
		doc = append(doc, Element{Key: key, Value: val})
	}

	return doc, b, nil
}

func readValue(b []byte, depth int) (any, []byte, error) {
	switch msgp.NextType(b) {
	case msgp.MapType:
		return readDocument(b, depth)
	case msgp.ArrayType:
		if depth > maxNesting {
			return nil, b, errTooDeep
		}

		sz, rest, err := msgp.ReadArrayHeaderBytes(b)
		if err != nil {
			return nil, b, err
		}
		arr := make([]any, 0, sz)
		for i := uint32(0); i < sz; i++ {
			var item any
			item, rest, err = readValue(rest, depth+1)
			if err != nil {
				return nil, rest, err
			}
			arr = append(arr, item)
		}

		return arr, rest, nil
	default:
		val, rest, err := msgp.ReadIntfBytes(b)
		if err != nil {
			return nil, b, err
		}

		// Unwrap extensions to their public types
		switch ext := val.(type) {
		case *uuidExt:
			val = uuid.UUID(*ext)
		case *timestampExt:
			val = types.Timestamp(*ext)
		}

		return val, rest, nil
	}
}
