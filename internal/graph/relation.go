package graph

import (
	"github.com/TobiSchelling/annograph/internal/decode"
)

// Relation node categories.
const (
	CategorySubject = "subject"
	CategoryObject  = "object"
	CategoryBoth    = "both"
)

// Sizing maps an occurrence count to a bounded display weight:
// min(Base + Count*Step, Max), never below Base.
type Sizing struct {
	Base float64
	Step float64
	Max  float64
}

// DefaultSizing grows nodes from 30 to at most 80 in steps of 3.
var DefaultSizing = Sizing{Base: 30, Step: 3, Max: 80}

// Weight returns the display weight for count occurrences.
func (s Sizing) Weight(count int) float64 {
	w := s.Base + float64(count)*s.Step
	if w > s.Max {
		w = s.Max
	}
	if w < s.Base {
		w = s.Base
	}
	return w
}

type edgeKey struct {
	subject, predicate, object string
}

// relationBuilder accumulates triples into nodes and predicate-labelled edges.
type relationBuilder struct {
	ids       map[string]int
	nodes     []Node
	asSubject []bool
	asObject  []bool
	edgeIndex map[edgeKey]int
	edges     []Edge
	sizing    Sizing
}

func newRelationBuilder(sizing Sizing) *relationBuilder {
	return &relationBuilder{
		ids:       make(map[string]int),
		edgeIndex: make(map[edgeKey]int),
		sizing:    sizing,
	}
}

func (b *relationBuilder) node(label string) int {
	if id, ok := b.ids[label]; ok {
		return id
	}
	id := len(b.nodes)
	b.ids[label] = id
	b.nodes = append(b.nodes, Node{ID: id, Label: label})
	b.asSubject = append(b.asSubject, false)
	b.asObject = append(b.asObject, false)
	return id
}

func (b *relationBuilder) add(t decode.Triple) {
	s := b.node(t.Subject)
	b.nodes[s].Count++
	b.asSubject[s] = true

	o := b.node(t.Object)
	b.nodes[o].Count++
	b.asObject[o] = true

	k := edgeKey{t.Subject, t.Predicate, t.Object}
	if i, ok := b.edgeIndex[k]; ok {
		b.edges[i].Weight++
		return
	}
	b.edgeIndex[k] = len(b.edges)
	b.edges = append(b.edges, Edge{Source: s, Target: o, Weight: 1, Label: t.Predicate})
}

func (b *relationBuilder) graph() Graph {
	g := Empty()
	for i, n := range b.nodes {
		switch {
		case b.asSubject[i] && b.asObject[i]:
			n.Category = CategoryBoth
		case b.asSubject[i]:
			n.Category = CategorySubject
		default:
			n.Category = CategoryObject
		}
		n.Weight = b.sizing.Weight(n.Count)
		g.Nodes = append(g.Nodes, n)
	}
	g.Edges = append(g.Edges, b.edges...)
	return g
}

// BuildDocumentGraph turns the triples of one document into a relation
// graph. Nodes are the distinct subject and object strings in first-seen
// order; identical triples merge into one edge whose weight is their count.
func BuildDocumentGraph(triples []decode.Triple, sizing Sizing) Graph {
	b := newRelationBuilder(sizing)
	for _, t := range triples {
		b.add(t)
	}
	return b.graph()
}

// BuildCorpusGraph folds the triples of every document, in order, into one
// relation graph.
func BuildCorpusGraph(perDocument [][]decode.Triple, sizing Sizing) Graph {
	b := newRelationBuilder(sizing)
	for _, triples := range perDocument {
		for _, t := range triples {
			b.add(t)
		}
	}
	return b.graph()
}
