package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/TobiSchelling/annograph/internal/analysis"
	"github.com/TobiSchelling/annograph/internal/corpus"
	"github.com/TobiSchelling/annograph/internal/decode"
	"github.com/TobiSchelling/annograph/internal/entity"
	"github.com/TobiSchelling/annograph/internal/report"
	"github.com/TobiSchelling/annograph/internal/stats"
)

// documentSummary is one row of the document listing.
type documentSummary struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	URL       string `json:"url"`
	Timestamp string `json:"crawl_time"`
}

// documentDetail is a document with its decoded fields.
type documentDetail struct {
	corpus.Document
	Decoded    decode.Record     `json:"decoded"`
	Identities []entity.Identity `json:"identities"`
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("writing response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// queryInt reads a positive integer query parameter, or def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return n, nil
}

// documentID parses the {id} path value; it writes a 404 and returns false
// when the ID is malformed or outside the table.
func documentID(w http.ResponseWriter, r *http.Request, snap *analysis.Snapshot) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err == nil && id >= 0 && id < snap.Len() {
		return id, true
	}
	writeError(w, http.StatusNotFound, analysis.ErrNotFound.Error())
	return 0, false
}

func (s *Server) apiDocuments(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	docs := snap.Documents()
	out := make([]documentSummary, len(docs))
	for i, d := range docs {
		out[i] = documentSummary{ID: d.ID, Title: d.Title, Author: d.Author, URL: d.URL, Timestamp: d.Timestamp}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) apiDocument(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	id, ok := documentID(w, r, snap)
	if !ok {
		return
	}
	doc, err := snap.Document(id)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	record, _ := snap.Record(id)
	identities, _ := snap.DocumentIdentities(id)
	writeJSON(w, http.StatusOK, documentDetail{Document: doc, Decoded: record, Identities: identities})
}

func (s *Server) apiDocumentTriples(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	id, ok := documentID(w, r, snap)
	if !ok {
		return
	}
	triples, err := snap.Triples(id)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, triples)
}

func (s *Server) apiDocumentGraph(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	id, ok := documentID(w, r, snap)
	if !ok {
		return
	}
	g, err := snap.DocumentGraph(id)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) apiGraph(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.CorpusGraph())
}

func (s *Server) apiNetwork(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	minWeight, err := queryInt(r, "min_weight", snap.Options().NetworkMinWeight)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap.Network(minWeight))
}

func (s *Server) apiKeywords(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	top, err := queryInt(r, "top", snap.Options().TopN)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats.Top(snap.Stats().KeywordFrequencies(), top))
}

func (s *Server) apiEntities(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	top, err := queryInt(r, "top", snap.Options().TopN)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	raw := r.URL.Query().Get("type")
	category, ok := decode.ParseFilter(raw)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown entity type %q", raw))
		return
	}
	writeJSON(w, http.StatusOK, stats.Top(snap.Stats().EntityFrequencies(category), top))
}

func (s *Server) apiSentiment(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.Stats().SentimentDistribution())
}

func (s *Server) apiLengths(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	buckets, err := queryInt(r, "buckets", snap.Options().LengthBuckets)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap.Stats().LengthHistogram(buckets))
}

func (s *Server) apiTimeline(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.Stats().TimeSeries())
}

func (s *Server) apiTopics(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	top, err := queryInt(r, "top", snap.Options().TopicCount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap.Stats().TopicDistribution(top))
}

func (s *Server) apiClusters(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.Topics())
}

func (s *Server) apiTriples(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	top, err := queryInt(r, "top", snap.Options().TopN)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap.Stats().TripleStatistics(top))
}

func (s *Server) apiSummary(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot":   snap.ID,
		"version":    snap.Version,
		"source":     snap.Source,
		"created_at": snap.CreatedAt,
		"summary":    snap.Summary(),
	})
}

func (s *Server) apiReport(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	io.WriteString(w, report.Compose(snap, 0).Markdown())
}

func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, analysis.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
