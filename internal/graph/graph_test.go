package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/annograph/internal/decode"
	"github.com/TobiSchelling/annograph/internal/entity"
)

func TestDocumentGraphFromTupleField(t *testing.T) {
	g := BuildDocumentGraph(decode.Triples("(A,导演,B);(C,出演,B)"), DefaultSizing)

	require.Len(t, g.Nodes, 3)
	require.Len(t, g.Edges, 2)

	assert.Equal(t, "A", g.Nodes[0].Label)
	assert.Equal(t, "B", g.Nodes[1].Label)
	assert.Equal(t, "C", g.Nodes[2].Label)
	assert.Equal(t, CategorySubject, g.Nodes[0].Category)
	assert.Equal(t, CategoryObject, g.Nodes[1].Category)
	assert.Equal(t, 2, g.Nodes[1].Count)
	assert.Equal(t, 36.0, g.Nodes[1].Weight)

	assert.Equal(t, Edge{Source: 0, Target: 1, Weight: 1, Label: "导演"}, g.Edges[0])
	assert.Equal(t, Edge{Source: 2, Target: 1, Weight: 1, Label: "出演"}, g.Edges[1])
}

func TestDocumentGraphEmpty(t *testing.T) {
	g := BuildDocumentGraph(nil, DefaultSizing)
	assert.NotNil(t, g.Nodes)
	assert.NotNil(t, g.Edges)
	assert.Empty(t, g.Nodes)

	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes": [], "edges": []}`, string(data))
}

func TestIdenticalTriplesMerge(t *testing.T) {
	triples := []decode.Triple{
		{Subject: "A", Predicate: "p", Object: "B"},
		{Subject: "A", Predicate: "p", Object: "B"},
		{Subject: "A", Predicate: "q", Object: "B"},
		{Subject: "A", Predicate: "p", Object: "B"},
	}
	g := BuildDocumentGraph(triples, DefaultSizing)

	require.Len(t, g.Edges, 2)
	assert.Equal(t, 3, g.Edges[0].Weight)
	assert.Equal(t, "p", g.Edges[0].Label)
	assert.Equal(t, 1, g.Edges[1].Weight)
	assert.Equal(t, "q", g.Edges[1].Label)
}

func TestEdgeWeightEqualsTripleCount(t *testing.T) {
	triples := []decode.Triple{
		{Subject: "x", Predicate: "r", Object: "y"},
		{Subject: "y", Predicate: "r", Object: "z"},
		{Subject: "x", Predicate: "r", Object: "y"},
		{Subject: "z", Predicate: "s", Object: "x"},
	}
	g := BuildDocumentGraph(triples, DefaultSizing)

	want := map[edgeKey]int{}
	for _, tr := range triples {
		want[edgeKey{tr.Subject, tr.Predicate, tr.Object}]++
	}
	total := 0
	for _, e := range g.Edges {
		s, _ := g.Node(e.Source)
		o, _ := g.Node(e.Target)
		assert.Equal(t, want[edgeKey{s.Label, e.Label, o.Label}], e.Weight)
		total += e.Weight
	}
	assert.Equal(t, len(triples), total)
	assert.Len(t, g.Edges, len(want))
}

func TestNodeCategories(t *testing.T) {
	g := BuildDocumentGraph([]decode.Triple{
		{Subject: "a", Predicate: "p", Object: "b"},
		{Subject: "b", Predicate: "p", Object: "c"},
	}, DefaultSizing)

	assert.Equal(t, CategorySubject, g.Nodes[0].Category)
	assert.Equal(t, CategoryBoth, g.Nodes[1].Category)
	assert.Equal(t, CategoryObject, g.Nodes[2].Category)
}

func TestSelfLoop(t *testing.T) {
	g := BuildDocumentGraph([]decode.Triple{{Subject: "a", Predicate: "is", Object: "a"}}, DefaultSizing)
	require.Len(t, g.Nodes, 1)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, CategoryBoth, g.Nodes[0].Category)
	assert.Equal(t, 2, g.Nodes[0].Count)
}

func TestSizingClamps(t *testing.T) {
	assert.Equal(t, 30.0, DefaultSizing.Weight(0))
	assert.Equal(t, 33.0, DefaultSizing.Weight(1))
	assert.Equal(t, 80.0, DefaultSizing.Weight(100))

	s := Sizing{Base: 10, Step: -5, Max: 50}
	assert.Equal(t, 10.0, s.Weight(3))
}

func TestCorpusGraphWeightsNonDecreasing(t *testing.T) {
	docs := [][]decode.Triple{
		{{Subject: "A", Predicate: "p", Object: "B"}},
		{{Subject: "A", Predicate: "p", Object: "B"}, {Subject: "B", Predicate: "q", Object: "C"}},
		{{Subject: "A", Predicate: "r", Object: "C"}},
	}

	prev := map[string]float64{}
	for i := 1; i <= len(docs); i++ {
		g := BuildCorpusGraph(docs[:i], DefaultSizing)
		for _, n := range g.Nodes {
			assert.GreaterOrEqual(t, n.Weight, prev[n.Label])
			assert.Positive(t, n.Weight)
			prev[n.Label] = n.Weight
		}
	}

	g := BuildCorpusGraph(docs, DefaultSizing)
	assert.Len(t, g.Nodes, 3)
	assert.Len(t, g.Edges, 3)
	assert.Equal(t, 2, g.Edges[0].Weight)
}

func registerDocs(docs [][]string) (*entity.Table, [][]entity.Handle) {
	table := entity.NewTable()
	var sets [][]entity.Handle
	for id, names := range docs {
		ms := make([]decode.Mention, len(names))
		for i, n := range names {
			ms[i] = decode.Mention{Name: n, Category: decode.Person}
		}
		sets = append(sets, table.Register(ms, id))
	}
	return table, sets
}

func TestNetworkTwoDocumentsSharingPair(t *testing.T) {
	table, sets := registerDocs([][]string{{"甲", "乙"}, {"甲", "乙"}})
	g := BuildNetwork(table, sets, NetworkOptions{})

	require.Len(t, g.Nodes, 2)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, Edge{Source: 0, Target: 1, Weight: 2}, g.Edges[0])
	assert.Equal(t, 2, g.Nodes[0].Count)
	assert.Equal(t, 2.0, g.Nodes[0].Weight)
	assert.Equal(t, "person", g.Nodes[0].Category)
}

func TestNetworkEdgeWeightEqualsSharedDocuments(t *testing.T) {
	docs := [][]string{
		{"a", "b", "c"},
		{"b", "c"},
		{"c", "a", "a"},
		{"d"},
		{},
	}
	table, sets := registerDocs(docs)
	g := BuildNetwork(table, sets, NetworkOptions{})

	for _, e := range g.Edges {
		a, _ := g.Node(e.Source)
		b, _ := g.Node(e.Target)
		shared := 0
		for _, names := range docs {
			var hasA, hasB bool
			for _, n := range names {
				hasA = hasA || n == a.Label
				hasB = hasB || n == b.Label
			}
			if hasA && hasB {
				shared++
			}
		}
		assert.Equal(t, shared, e.Weight, "%s-%s", a.Label, b.Label)
		assert.Less(t, e.Source, e.Target)
	}
	assert.Len(t, g.Edges, 3)
}

func TestNetworkManyEntitiesKeepsEveryPair(t *testing.T) {
	names := make([]string, 40)
	for i := range names {
		names[i] = string(rune('A' + i))
	}
	table, sets := registerDocs([][]string{names})
	g := BuildNetwork(table, sets, NetworkOptions{})
	assert.Len(t, g.Edges, 40*39/2)
}

func TestNetworkMinEdgeWeight(t *testing.T) {
	table, sets := registerDocs([][]string{{"a", "b"}, {"a", "b"}, {"a", "c"}})
	g := BuildNetwork(table, sets, NetworkOptions{MinEdgeWeight: 2})

	require.Len(t, g.Edges, 1)
	assert.Equal(t, 2, g.Edges[0].Weight)
	assert.Len(t, g.Nodes, 3)

	counts := CountPairs(sets)
	assert.Equal(t, 1, counts[[2]entity.Handle{0, 2}])
}

func TestNetworkEmpty(t *testing.T) {
	g := BuildNetwork(entity.NewTable(), nil, NetworkOptions{})
	assert.NotNil(t, g.Nodes)
	assert.NotNil(t, g.Edges)
	assert.Empty(t, g.Edges)
}
