package docyaml

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/reprise/wire"
)

func TestParse_KeepsOrder(t *testing.T) {
	doc, err := Parse([]byte(`{"find": "orders", "filter": {"status": "open", "total": {"$gt": 10}}, "limit": 5}`))
	require.NoError(t, err)

	require.Equal(t, "find", doc.Name())
	require.Equal(t, []string{"find", "filter", "limit"}, keys(doc))

	filter, ok := doc.Doc("filter")
	require.True(t, ok)
	require.Equal(t, []string{"status", "total"}, keys(filter))

	limit, ok := doc.Int("limit")
	require.True(t, ok)
	require.EqualValues(t, 5, limit)
}

func TestParse_YAML(t *testing.T) {
	doc, err := Parse([]byte(`
aggregate: orders
pipeline:
  - $match: {status: open}
  - $out: archive
cursor: {}
`))
	require.NoError(t, err)

	shape := wire.ShapeOf("app", doc)
	require.Equal(t, "aggregate", shape.Name)
	require.Equal(t, []string{"$match", "$out"}, shape.PipelineStages)
}

func TestParse_Scalars(t *testing.T) {
	doc, err := Parse([]byte(`{a: 1, b: 1.5, c: true, d: null, e: text}`))
	require.NoError(t, err)

	m := doc.Map()
	require.Equal(t, 1, m["a"])
	require.InEpsilon(t, 1.5, m["b"], 0.0001)
	require.Equal(t, true, m["c"])
	require.Nil(t, m["d"])
	require.Equal(t, "text", m["e"])
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte(`[1, 2]`))
	require.ErrorIs(t, err, ErrNotDocument)

	_, err = Parse([]byte(``))
	require.ErrorIs(t, err, ErrNotDocument)

	_, err = Parse([]byte(`{a: [`))
	require.Error(t, err)
}

func TestNodeDocument_Alias(t *testing.T) {
	var root yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("base: &b {n: 1}\ncopy: *b\n"), &root))

	doc, err := NodeDocument(&root)
	require.NoError(t, err)

	cp, ok := doc.Doc("copy")
	require.True(t, ok)
	n, _ := cp.Int("n")
	require.EqualValues(t, 1, n)
}

func keys(d wire.Document) []string {
	out := make([]string, 0, len(d))
	for _, e := range d {
		out = append(out, e.Key)
	}

	return out
}
