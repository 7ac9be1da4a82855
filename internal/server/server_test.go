package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/TobiSchelling/annograph/internal/analysis"
	"github.com/TobiSchelling/annograph/internal/cluster"
	"github.com/TobiSchelling/annograph/internal/corpus"
	"github.com/TobiSchelling/annograph/internal/database"
	"github.com/TobiSchelling/annograph/internal/decode"
	"github.com/TobiSchelling/annograph/internal/graph"
	"github.com/TobiSchelling/annograph/internal/metrics"
	"github.com/TobiSchelling/annograph/internal/stats"
)

const articlesCSV = `title,author,content,keywords,entities,triples,sentiment,crawl_time
测试文章1,作者1,这是**测试**文章1的内容。,"关键词1,关键词2","{""person"": [""甲"", ""乙""]}","(A,导演,B);(C,出演,B)",0.9,2023-01-01 10:00:00
测试文章2,作者2,短内容,关键词2,"{""person"": [""甲"", ""乙""], ""place"": [""北京""]}",garbage,0.5,2023-01-02 09:00:00
测试文章3,作者3,,关键词3,,"[{""subject"": ""A"", ""predicate"": ""导演"", ""object"": ""B""}]",0.1,
`

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func importArticles(t *testing.T, db *database.DB) {
	t.Helper()
	table, err := corpus.ParseCSV("articles.csv", []byte(articlesCSV))
	if err != nil {
		t.Fatalf("parsing csv: %v", err)
	}
	if _, err := db.ImportTable(context.Background(), table); err != nil {
		t.Fatalf("importing table: %v", err)
	}
}

func newTestServer(t *testing.T, db *database.DB, m *metrics.Metrics) *Server {
	t.Helper()
	cache := analysis.NewCache(analysis.New(analysis.DefaultOptions()))
	srv, err := New(cache, db, m)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
}

func TestIndexRoute(t *testing.T) {
	db := openTestDB(t)
	importArticles(t, db)
	srv := newTestServer(t, db, nil)

	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "测试文章2") {
		t.Error("expected document title in response body")
	}
	if !strings.Contains(body, `href="/documents/2"`) {
		t.Error("expected document link in response body")
	}
	if rec.Header().Get("X-Snapshot-ID") == "" {
		t.Error("expected X-Snapshot-ID header")
	}
}

func TestIndexRouteEmptyStore(t *testing.T) {
	srv := newTestServer(t, openTestDB(t), nil)

	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "annograph import") {
		t.Error("expected import hint on empty store")
	}
}

func TestDocumentRoute(t *testing.T) {
	db := openTestDB(t)
	importArticles(t, db)
	srv := newTestServer(t, db, nil)

	rec := get(t, srv, "/documents/0")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<strong>测试</strong>") {
		t.Error("expected markdown-rendered content")
	}
	if !strings.Contains(body, "导演") {
		t.Error("expected triple predicate in response")
	}

	if rec := get(t, srv, "/documents/7"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown document, got %d", rec.Code)
	}
}

func TestAnalysisRoute(t *testing.T) {
	db := openTestDB(t)
	importArticles(t, db)
	srv := newTestServer(t, db, nil)

	rec := get(t, srv, "/analysis")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "关键词2") {
		t.Error("expected keyword in analysis page")
	}
	if !strings.Contains(body, "Positive: 1") {
		t.Error("expected sentiment distribution in analysis page")
	}
}

func TestReportRoute(t *testing.T) {
	db := openTestDB(t)
	importArticles(t, db)
	srv := newTestServer(t, db, nil)

	rec := get(t, srv, "/report")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<h1>Corpus report</h1>") {
		t.Error("expected rendered report heading")
	}

	rec = get(t, srv, "/api/report")
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("expected markdown content type, got %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "# Corpus report") {
		t.Error("expected raw markdown report")
	}
}

func TestAPIDocuments(t *testing.T) {
	db := openTestDB(t)
	importArticles(t, db)
	srv := newTestServer(t, db, nil)

	rec := get(t, srv, "/api/documents")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	var docs []documentSummary
	decodeBody(t, rec, &docs)
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(docs))
	}
	if docs[1].Title != "测试文章2" {
		t.Errorf("expected 测试文章2, got %q", docs[1].Title)
	}
}

func TestAPIDocument(t *testing.T) {
	db := openTestDB(t)
	importArticles(t, db)
	srv := newTestServer(t, db, nil)

	rec := get(t, srv, "/api/documents/1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var doc struct {
		Title    string        `json:"title"`
		Triples  string        `json:"triples"`
		Decoded  decode.Record `json:"decoded"`
		Entities string        `json:"entities"`
	}
	decodeBody(t, rec, &doc)
	if doc.Triples != "garbage" {
		t.Errorf("expected raw triples preserved, got %q", doc.Triples)
	}
	if len(doc.Decoded.Triples) != 0 {
		t.Errorf("expected no decoded triples, got %v", doc.Decoded.Triples)
	}
	if len(doc.Decoded.Entities.Place) != 1 || doc.Decoded.Entities.Place[0] != "北京" {
		t.Errorf("expected place 北京, got %v", doc.Decoded.Entities.Place)
	}
}

func TestAPIUnknownDocument(t *testing.T) {
	db := openTestDB(t)
	importArticles(t, db)
	srv := newTestServer(t, db, nil)

	for _, path := range []string{
		"/api/documents/3",
		"/api/documents/-1",
		"/api/documents/abc",
		"/api/documents/99/triples",
		"/api/documents/99/graph",
	} {
		rec := get(t, srv, path)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
			continue
		}
		var body errorBody
		decodeBody(t, rec, &body)
		if body.Error == "" {
			t.Errorf("%s: expected error message", path)
		}
	}
}

func TestAPIDocumentTriplesAndGraph(t *testing.T) {
	db := openTestDB(t)
	importArticles(t, db)
	srv := newTestServer(t, db, nil)

	var triples []decode.Triple
	decodeBody(t, get(t, srv, "/api/documents/0/triples"), &triples)
	if len(triples) != 2 {
		t.Fatalf("expected 2 triples, got %d", len(triples))
	}
	if triples[0] != (decode.Triple{Subject: "A", Predicate: "导演", Object: "B"}) {
		t.Errorf("unexpected first triple %+v", triples[0])
	}

	var g graph.Graph
	decodeBody(t, get(t, srv, "/api/documents/0/graph"), &g)
	if len(g.Nodes) != 3 || len(g.Edges) != 2 {
		t.Errorf("expected 3 nodes and 2 edges, got %d and %d", len(g.Nodes), len(g.Edges))
	}

	var empty graph.Graph
	rec := get(t, srv, "/api/documents/1/graph")
	if !strings.Contains(rec.Body.String(), `"nodes":[]`) {
		t.Errorf("expected empty node list, got %s", rec.Body.String())
	}
	decodeBody(t, rec, &empty)
	if len(empty.Edges) != 0 {
		t.Errorf("expected no edges, got %d", len(empty.Edges))
	}
}

func TestAPIGraphAndNetwork(t *testing.T) {
	db := openTestDB(t)
	importArticles(t, db)
	srv := newTestServer(t, db, nil)

	var corpusGraph graph.Graph
	decodeBody(t, get(t, srv, "/api/graph"), &corpusGraph)
	if len(corpusGraph.Edges) != 2 {
		t.Fatalf("expected 2 corpus edges, got %d", len(corpusGraph.Edges))
	}
	if corpusGraph.Edges[0].Weight != 2 {
		t.Errorf("expected merged edge weight 2, got %d", corpusGraph.Edges[0].Weight)
	}

	var network graph.Graph
	decodeBody(t, get(t, srv, "/api/network"), &network)
	if len(network.Edges) != 3 {
		t.Errorf("expected 3 network edges, got %d", len(network.Edges))
	}

	decodeBody(t, get(t, srv, "/api/network?min_weight=2"), &network)
	if len(network.Edges) != 1 || network.Edges[0].Weight != 2 {
		t.Errorf("expected one edge of weight 2, got %+v", network.Edges)
	}

	if rec := get(t, srv, "/api/network?min_weight=zero"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad min_weight, got %d", rec.Code)
	}
}

func TestAPIAnalysis(t *testing.T) {
	db := openTestDB(t)
	importArticles(t, db)
	srv := newTestServer(t, db, nil)

	var keywords []stats.TermCount
	decodeBody(t, get(t, srv, "/api/analysis/keywords?top=1"), &keywords)
	if len(keywords) != 1 || keywords[0].Term != "关键词2" || keywords[0].Count != 2 {
		t.Errorf("unexpected keywords %+v", keywords)
	}

	var entities []stats.EntityCount
	decodeBody(t, get(t, srv, "/api/analysis/entities?type=LOC"), &entities)
	if len(entities) != 1 || entities[0].Name != "北京" {
		t.Errorf("unexpected place entities %+v", entities)
	}
	var unfiltered, all []stats.EntityCount
	decodeBody(t, get(t, srv, "/api/analysis/entities"), &unfiltered)
	rec := get(t, srv, "/api/analysis/entities?type=all")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for type=all, got %d", rec.Code)
	}
	decodeBody(t, rec, &all)
	if len(all) == 0 || !reflect.DeepEqual(all, unfiltered) {
		t.Errorf("type=all returned %+v, want %+v", all, unfiltered)
	}
	if rec := get(t, srv, "/api/analysis/entities?type=weapon"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown type, got %d", rec.Code)
	}

	var sentiment stats.Distribution
	decodeBody(t, get(t, srv, "/api/analysis/sentiment"), &sentiment)
	if sentiment != (stats.Distribution{Positive: 1, Neutral: 1, Negative: 1}) {
		t.Errorf("unexpected sentiment %+v", sentiment)
	}

	var lengths []stats.Bucket
	decodeBody(t, get(t, srv, "/api/analysis/lengths?buckets=2"), &lengths)
	if len(lengths) != 2 {
		t.Errorf("expected 2 buckets, got %d", len(lengths))
	}

	var timeline []stats.DateCount
	decodeBody(t, get(t, srv, "/api/analysis/timeline"), &timeline)
	if len(timeline) != 2 || timeline[0].Date != "2023-01-01" {
		t.Errorf("unexpected timeline %+v", timeline)
	}

	var topics []stats.TermCount
	decodeBody(t, get(t, srv, "/api/analysis/topics?top=1"), &topics)
	if len(topics) != 2 || topics[1].Term != stats.OtherLabel {
		t.Errorf("expected one topic plus Other, got %+v", topics)
	}

	var clusters []cluster.Topic
	decodeBody(t, get(t, srv, "/api/analysis/clusters"), &clusters)
	if len(clusters) == 0 {
		t.Error("expected at least one cluster")
	}

	var triples stats.TripleStats
	decodeBody(t, get(t, srv, "/api/analysis/triples"), &triples)
	if len(triples.Predicates) != 2 || triples.Predicates[0].Term != "导演" {
		t.Errorf("unexpected predicate stats %+v", triples.Predicates)
	}

	var summary struct {
		Snapshot string        `json:"snapshot"`
		Summary  stats.Summary `json:"summary"`
	}
	rec = get(t, srv, "/api/analysis/summary")
	decodeBody(t, rec, &summary)
	if summary.Summary.Documents != 3 {
		t.Errorf("expected 3 documents, got %d", summary.Summary.Documents)
	}
	if summary.Snapshot != rec.Header().Get("X-Snapshot-ID") {
		t.Error("expected summary snapshot to match header")
	}
}

func TestAPIEmptyStore(t *testing.T) {
	srv := newTestServer(t, openTestDB(t), nil)

	for path, want := range map[string]string{
		"/api/documents":         "[]",
		"/api/graph":             `{"nodes":[],"edges":[]}`,
		"/api/network":           `{"nodes":[],"edges":[]}`,
		"/api/analysis/keywords": "[]",
		"/api/analysis/lengths":  "[]",
		"/api/analysis/clusters": "[]",
	} {
		rec := get(t, srv, path)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
			continue
		}
		if got := strings.TrimSpace(rec.Body.String()); got != want {
			t.Errorf("%s: expected %s, got %s", path, want, got)
		}
	}
}

func TestSnapshotFollowsImports(t *testing.T) {
	db := openTestDB(t)
	srv := newTestServer(t, db, nil)

	first := get(t, srv, "/api/analysis/summary").Header().Get("X-Snapshot-ID")
	again := get(t, srv, "/api/analysis/summary").Header().Get("X-Snapshot-ID")
	if first != again {
		t.Error("expected the snapshot to be reused while the store is unchanged")
	}

	importArticles(t, db)
	rec := get(t, srv, "/api/documents")
	if rec.Header().Get("X-Snapshot-ID") == first {
		t.Error("expected a new snapshot after import")
	}
	var docs []documentSummary
	decodeBody(t, rec, &docs)
	if len(docs) != 3 {
		t.Errorf("expected 3 documents after import, got %d", len(docs))
	}
}

func TestMetricsRoute(t *testing.T) {
	db := openTestDB(t)
	importArticles(t, db)
	srv := newTestServer(t, db, metrics.New())

	get(t, srv, "/api/documents/0")
	rec := get(t, srv, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `path="GET /api/documents/{id}"`) {
		t.Error("expected request counter labelled with the route pattern")
	}
}

func TestStaticRoute(t *testing.T) {
	srv := newTestServer(t, openTestDB(t), nil)

	rec := get(t, srv, "/static/style.css")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "font-family") {
		t.Error("expected CSS content")
	}
}
