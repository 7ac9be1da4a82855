// Package analysis folds a corpus table into an immutable Snapshot: decoded
// records, the entity identity table, the corpus relation graph, the
// co-occurrence network, aggregates and topic clusters.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/annograph/internal/cluster"
	"github.com/TobiSchelling/annograph/internal/config"
	"github.com/TobiSchelling/annograph/internal/corpus"
	"github.com/TobiSchelling/annograph/internal/decode"
	"github.com/TobiSchelling/annograph/internal/entity"
	"github.com/TobiSchelling/annograph/internal/graph"
	"github.com/TobiSchelling/annograph/internal/stats"
)

// StepResult holds the result of a single analysis step.
type StepResult struct {
	Name     string
	Summary  string
	Duration time.Duration
	Err      error
}

// Options tunes an analysis run.
type Options struct {
	Stats               stats.Options
	Sizing              graph.Sizing
	NetworkMinWeight    int
	ClusterThreshold    float64
	ClusterMaxDocuments int
	LengthBuckets       int
	TopN                int
	TopicCount          int
	Workers             int
}

// DefaultOptions mirrors the embedded default configuration.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default().Analysis)
}

// OptionsFromConfig converts the analysis config section.
func OptionsFromConfig(a config.Analysis) Options {
	return Options{
		Stats:               stats.Options{SentimentHigh: a.SentimentHigh, SentimentLow: a.SentimentLow},
		Sizing:              graph.Sizing{Base: a.NodeSize.Base, Step: a.NodeSize.Step, Max: a.NodeSize.Max},
		NetworkMinWeight:    a.NetworkMinWeight,
		ClusterThreshold:    a.ClusterThreshold,
		ClusterMaxDocuments: a.ClusterMaxDocuments,
		LengthBuckets:       a.LengthBuckets,
		TopN:                a.TopN,
		TopicCount:          a.TopicCount,
		Workers:             a.Workers,
	}
}

// Recorder receives run and cache measurements.
type Recorder interface {
	RecordAnalysis(duration time.Duration, documents, identities int, err error)
	RecordCacheLookup(hit bool)
}

// Analyzer builds snapshots. It holds no per-run state and is safe for
// concurrent use.
type Analyzer struct {
	opts     Options
	decoder  *decode.Decoder
	recorder Recorder
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithDecoder replaces the default field decoder.
func WithDecoder(d *decode.Decoder) Option {
	return func(a *Analyzer) { a.decoder = d }
}

// WithRecorder reports run durations and cache lookups to r.
func WithRecorder(r Recorder) Option {
	return func(a *Analyzer) { a.recorder = r }
}

// New creates an Analyzer.
func New(opts Options, options ...Option) *Analyzer {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	a := &Analyzer{opts: opts, decoder: decode.New()}
	for _, o := range options {
		o(a)
	}
	return a
}

// Options returns the options the analyzer runs with.
func (a *Analyzer) Options() Options { return a.opts }

// Analyze folds table into a new Snapshot. Documents are decoded in
// parallel and folded in document-id order, so handle allocation does not
// depend on scheduling. The only error is ctx cancellation.
func (a *Analyzer) Analyze(ctx context.Context, table *corpus.Table) (*Snapshot, error) {
	start := time.Now()
	snap, err := a.analyze(ctx, table)
	if a.recorder != nil {
		docs, ids := 0, 0
		if snap != nil {
			docs, ids = snap.Len(), snap.identities.Len()
		}
		a.recorder.RecordAnalysis(time.Since(start), docs, ids, err)
	}
	return snap, err
}

func (a *Analyzer) analyze(ctx context.Context, table *corpus.Table) (*Snapshot, error) {
	if table == nil {
		table = corpus.Empty()
	}
	if err := a.opts.Stats.Validate(); err != nil {
		return nil, fmt.Errorf("analysis options: %w", err)
	}

	s := &Snapshot{
		ID:        uuid.NewString(),
		Version:   table.Version,
		Source:    table.Source,
		CreatedAt: time.Now(),
		table:     table,
		opts:      a.opts,
	}
	docs := table.Documents()

	// Step 1: Decode
	step := a.runStep("Decode", func() (string, error) {
		records, err := a.decodeAll(ctx, docs, table.IsRoleTable())
		if err != nil {
			return "", err
		}
		s.records = records
		return fmt.Sprintf("%d documents decoded", len(records)), nil
	})
	s.Steps = append(s.Steps, step)
	if step.Err != nil {
		return nil, step.Err
	}

	// Step 2: Normalize entities
	step = a.runStep("Normalize", func() (string, error) {
		s.identities = entity.NewTable()
		s.handles = make([][]entity.Handle, len(s.records))
		for i, r := range s.records {
			s.handles[i] = s.identities.Register(r.Mentions, r.DocumentID)
		}
		return fmt.Sprintf("%d identities", s.identities.Len()), ctx.Err()
	})
	s.Steps = append(s.Steps, step)
	if step.Err != nil {
		return nil, step.Err
	}

	// Step 3: Graphs
	step = a.runStep("Graph", func() (string, error) {
		perDoc := make([][]decode.Triple, len(s.records))
		for i, r := range s.records {
			perDoc[i] = r.Triples
		}
		s.corpusGraph = graph.BuildCorpusGraph(perDoc, a.opts.Sizing)
		s.network = graph.BuildNetwork(s.identities, s.handles, graph.NetworkOptions{MinEdgeWeight: 1})
		return fmt.Sprintf("%d relation edges, %d co-occurrence edges",
			len(s.corpusGraph.Edges), len(s.network.Edges)), ctx.Err()
	})
	s.Steps = append(s.Steps, step)
	if step.Err != nil {
		return nil, step.Err
	}

	// Step 4: Aggregate
	step = a.runStep("Aggregate", func() (string, error) {
		engine, err := stats.New(docs, s.records, a.opts.Stats)
		if err != nil {
			return "", err
		}
		s.engine = engine
		s.summary = engine.Summary()
		return fmt.Sprintf("%d keywords, %d entity mentions, %d triples",
			s.summary.Keywords, s.summary.EntityMentions, s.summary.Triples), ctx.Err()
	})
	s.Steps = append(s.Steps, step)
	if step.Err != nil {
		return nil, step.Err
	}

	// Step 5: Cluster
	step = a.runStep("Cluster", func() (string, error) {
		s.topics = cluster.Cluster(s.records, a.opts.ClusterThreshold, a.opts.ClusterMaxDocuments)
		return fmt.Sprintf("%d topics", len(s.topics)), ctx.Err()
	})
	s.Steps = append(s.Steps, step)
	if step.Err != nil {
		return nil, step.Err
	}

	log.Info("analysis complete",
		"snapshot", s.ID,
		"version", s.Version,
		"documents", s.Len(),
		"identities", s.identities.Len(),
		"topics", len(s.topics),
		"duration", time.Since(s.CreatedAt).Round(time.Millisecond))
	return s, nil
}

func (a *Analyzer) runStep(name string, fn func() (string, error)) StepResult {
	start := time.Now()
	summary, err := fn()
	r := StepResult{Name: name, Summary: summary, Duration: time.Since(start), Err: err}
	if err != nil {
		log.Error("analysis step failed", "step", name, "err", err)
	} else {
		log.Debug("analysis step", "step", name, "summary", summary, "duration", r.Duration)
	}
	return r
}

// decodeAll decodes every document on a bounded worker group. Each worker
// writes only its own slot.
func (a *Analyzer) decodeAll(ctx context.Context, docs []corpus.Document, roleTable bool) ([]decode.Record, error) {
	records := make([]decode.Record, len(docs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i := range docs {
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
			}
			records[i] = a.decoder.Document(docs[i], roleTable)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}
