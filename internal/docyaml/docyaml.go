// Package docyaml converts YAML and JSON text to ordered wire documents.
//
// Command documents are order sensitive (the first key names the command),
// so they are decoded through yaml.Node, which keeps mapping order. JSON is
// valid YAML and goes through the same path.
package docyaml

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/reprise/wire"
)

// ErrNotDocument is returned when the input is not a mapping.
var ErrNotDocument = errors.New("docyaml: input is not a mapping")

// Parse decodes YAML or JSON text into a document.
//
// Parameters:
//   - data: YAML or JSON text holding a single mapping
//
// Returns:
//   - wire.Document: The mapping with its key order preserved
//   - error: Syntax error or ErrNotDocument
func Parse(data []byte) (wire.Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("docyaml: %w", err)
	}
	if root.Kind == 0 {
		return nil, ErrNotDocument
	}

	return NodeDocument(&root)
}

// NodeDocument converts a mapping node into a document.
func NodeDocument(n *yaml.Node) (wire.Document, error) {
	v, err := Value(n)
	if err != nil {
		return nil, err
	}

	doc, ok := v.(wire.Document)
	if !ok {
		return nil, ErrNotDocument
	}

	return doc, nil
}

// Value converts a node into a document value.
//
// Mappings become wire.Document, sequences []any and scalars the value
// yaml.v3 resolves for their tag.
func Value(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, ErrNotDocument
		}

		return Value(n.Content[0])
	case yaml.AliasNode:
		return Value(n.Alias)
	case yaml.MappingNode:
		doc := make(wire.Document, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := Value(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			doc = append(doc, wire.E(n.Content[i].Value, v))
		}

		return doc, nil
	case yaml.SequenceNode:
		items := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := Value(c)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}

		return items, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("docyaml: line %d: %w", n.Line, err)
		}

		return v, nil
	default:
		return nil, fmt.Errorf("docyaml: unsupported node kind %d", n.Kind)
	}
}
