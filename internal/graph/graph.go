// Package graph builds the node/edge structures handed to the visualization
// layer: relation graphs from subject-predicate-object triples and the
// entity co-occurrence network.
package graph

// Node is a graph vertex. Weight is the display size derived from Count.
type Node struct {
	ID       int     `json:"id"`
	Label    string  `json:"label"`
	Category string  `json:"category"`
	Weight   float64 `json:"weight"`
	Count    int     `json:"count"`
}

// Edge connects two node IDs. Relation edges are directed and labelled with
// their predicate; co-occurrence edges are undirected with Source < Target.
type Edge struct {
	Source int    `json:"source"`
	Target int    `json:"target"`
	Weight int    `json:"weight"`
	Label  string `json:"label,omitempty"`
}

// Graph is a node/edge list. Both slices are always non-nil.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Empty returns a graph with no nodes or edges.
func Empty() Graph {
	return Graph{Nodes: []Node{}, Edges: []Edge{}}
}

// Node returns the node with the given ID.
func (g Graph) Node(id int) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
