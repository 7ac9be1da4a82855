package graph

import (
	"cmp"
	"slices"

	"github.com/TobiSchelling/annograph/internal/entity"
)

// Identities is the slice of the identity table the network needs.
type Identities interface {
	Identities() []entity.Identity
	Count(h entity.Handle) int
}

// NetworkOptions filters the materialized network.
type NetworkOptions struct {
	// MinEdgeWeight hides edges whose pair count is below it. Values below 1
	// are treated as 1. Counting is unaffected.
	MinEdgeWeight int
}

type pair struct {
	a, b entity.Handle
}

func canonical(x, y entity.Handle) pair {
	if x > y {
		x, y = y, x
	}
	return pair{x, y}
}

// CountPairs counts, for every unordered pair of distinct handles, the
// number of documents whose set contains both.
func CountPairs(documentSets [][]entity.Handle) map[[2]entity.Handle]int {
	counts := countPairs(documentSets)
	out := make(map[[2]entity.Handle]int, len(counts))
	for p, n := range counts {
		out[[2]entity.Handle{p.a, p.b}] = n
	}
	return out
}

func countPairs(documentSets [][]entity.Handle) map[pair]int {
	counts := make(map[pair]int)
	for _, set := range documentSets {
		handles := slices.Clone(set)
		slices.Sort(handles)
		handles = slices.Compact(handles)
		for i := 0; i < len(handles); i++ {
			for j := i + 1; j < len(handles); j++ {
				counts[canonical(handles[i], handles[j])]++
			}
		}
	}
	return counts
}

// BuildNetwork derives the co-occurrence network. There is one node per
// identity, weighted by its corpus occurrence count, and one undirected edge
// per pair of identities sharing at least one document, weighted by the
// number of shared documents. Edges are sorted by (source, target).
func BuildNetwork(ids Identities, documentSets [][]entity.Handle, opts NetworkOptions) Graph {
	minWeight := max(opts.MinEdgeWeight, 1)

	g := Empty()
	for _, id := range ids.Identities() {
		count := ids.Count(id.Handle)
		g.Nodes = append(g.Nodes, Node{
			ID:       int(id.Handle),
			Label:    id.Name,
			Category: string(id.Category),
			Weight:   float64(count),
			Count:    count,
		})
	}

	for p, n := range countPairs(documentSets) {
		if n < minWeight {
			continue
		}
		g.Edges = append(g.Edges, Edge{Source: int(p.a), Target: int(p.b), Weight: n})
	}
	slices.SortFunc(g.Edges, func(x, y Edge) int {
		if c := cmp.Compare(x.Source, y.Source); c != 0 {
			return c
		}
		return cmp.Compare(x.Target, y.Target)
	})
	return g
}
