package analysis

import (
	"errors"
	"slices"
	"time"

	"github.com/TobiSchelling/annograph/internal/cluster"
	"github.com/TobiSchelling/annograph/internal/corpus"
	"github.com/TobiSchelling/annograph/internal/decode"
	"github.com/TobiSchelling/annograph/internal/entity"
	"github.com/TobiSchelling/annograph/internal/graph"
	"github.com/TobiSchelling/annograph/internal/stats"
)

// ErrNotFound is returned for a document ID outside the table.
var ErrNotFound = errors.New("document not found")

// Snapshot is the read-only result of one analysis run. Every accessor
// returns copies, so a Snapshot can be shared between goroutines.
type Snapshot struct {
	ID        string
	Version   string
	Source    string
	CreatedAt time.Time
	Steps     []StepResult

	table       *corpus.Table
	records     []decode.Record
	identities  *entity.Table
	handles     [][]entity.Handle
	corpusGraph graph.Graph
	network     graph.Graph
	engine      *stats.Engine
	summary     stats.Summary
	topics      []cluster.Topic
	opts        Options
}

// Len is the number of documents.
func (s *Snapshot) Len() int { return len(s.records) }

// Options returns the options the snapshot was built with.
func (s *Snapshot) Options() Options { return s.opts }

// Documents lists every document in ID order.
func (s *Snapshot) Documents() []corpus.Document {
	return s.table.Documents()
}

// Document returns one document.
func (s *Snapshot) Document(id int) (corpus.Document, error) {
	doc, ok := s.table.Document(id)
	if !ok {
		return corpus.Document{}, ErrNotFound
	}
	return doc, nil
}

// Record returns the decoded fields of one document.
func (s *Snapshot) Record(id int) (decode.Record, error) {
	if id < 0 || id >= len(s.records) {
		return decode.Record{}, ErrNotFound
	}
	return cloneRecord(s.records[id]), nil
}

// Triples returns the decoded triples of one document.
func (s *Snapshot) Triples(id int) ([]decode.Triple, error) {
	r, err := s.Record(id)
	if err != nil {
		return nil, err
	}
	return r.Triples, nil
}

// DocumentGraph builds the relation graph of one document. It is rebuilt on
// every call.
func (s *Snapshot) DocumentGraph(id int) (graph.Graph, error) {
	if id < 0 || id >= len(s.records) {
		return graph.Empty(), ErrNotFound
	}
	return graph.BuildDocumentGraph(s.records[id].Triples, s.opts.Sizing), nil
}

// CorpusGraph returns the relation graph over every document.
func (s *Snapshot) CorpusGraph() graph.Graph {
	return cloneGraph(s.corpusGraph)
}

// Network returns the co-occurrence network, hiding edges lighter than
// minWeight. A minWeight below 1 uses the configured default.
func (s *Snapshot) Network(minWeight int) graph.Graph {
	if minWeight < 1 {
		minWeight = max(s.opts.NetworkMinWeight, 1)
	}
	g := graph.Graph{
		Nodes: slices.Clone(s.network.Nodes),
		Edges: make([]graph.Edge, 0, len(s.network.Edges)),
	}
	for _, e := range s.network.Edges {
		if e.Weight >= minWeight {
			g.Edges = append(g.Edges, e)
		}
	}
	return g
}

// Identities lists every entity identity in handle order.
func (s *Snapshot) Identities() []entity.Identity {
	return s.identities.Identities()
}

// DocumentIdentities returns the identities mentioned by one document.
func (s *Snapshot) DocumentIdentities(id int) ([]entity.Identity, error) {
	if id < 0 || id >= len(s.handles) {
		return nil, ErrNotFound
	}
	out := make([]entity.Identity, 0, len(s.handles[id]))
	for _, h := range s.handles[id] {
		if ident, ok := s.identities.Identity(h); ok {
			out = append(out, ident)
		}
	}
	return out, nil
}

// IdentityCount is the corpus occurrence count of an identity.
func (s *Snapshot) IdentityCount(h entity.Handle) int {
	return s.identities.Count(h)
}

// Stats returns the aggregation engine.
func (s *Snapshot) Stats() *stats.Engine { return s.engine }

// Summary returns the headline counts.
func (s *Snapshot) Summary() stats.Summary { return s.summary }

// Topics returns the keyword topic clusters.
func (s *Snapshot) Topics() []cluster.Topic {
	out := make([]cluster.Topic, len(s.topics))
	for i, t := range s.topics {
		t.Keywords = slices.Clone(t.Keywords)
		t.Documents = slices.Clone(t.Documents)
		out[i] = t
	}
	return out
}

func cloneRecord(r decode.Record) decode.Record {
	r.Keywords = slices.Clone(r.Keywords)
	r.Mentions = slices.Clone(r.Mentions)
	r.Triples = slices.Clone(r.Triples)
	r.Entities.Person = slices.Clone(r.Entities.Person)
	r.Entities.Place = slices.Clone(r.Entities.Place)
	r.Entities.Organization = slices.Clone(r.Entities.Organization)
	return r
}

func cloneGraph(g graph.Graph) graph.Graph {
	return graph.Graph{Nodes: slices.Clone(g.Nodes), Edges: slices.Clone(g.Edges)}
}
