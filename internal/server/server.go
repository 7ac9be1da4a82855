package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/annograph/internal/analysis"
	"github.com/TobiSchelling/annograph/internal/metrics"
	"github.com/TobiSchelling/annograph/internal/report"
	"github.com/TobiSchelling/annograph/internal/stats"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server serves HTML pages and the JSON API over the current snapshot.
type Server struct {
	cache   *analysis.Cache
	source  analysis.Source
	metrics *metrics.Metrics
	pages   map[string]*template.Template
	mux     *http.ServeMux
}

// New creates a new Server. Every request resolves the snapshot for the
// source's current version through cache. m may be nil.
func New(cache *analysis.Cache, src analysis.Source, m *metrics.Metrics) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"percent": func(n, total int) string {
			if total == 0 {
				return "0%"
			}
			return fmt.Sprintf("%.0f%%", float64(n)*100/float64(total))
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "document.html", "analysis.html", "report.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{cache: cache, source: src, metrics: m, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	if s.metrics == nil {
		return s.mux
	}
	return s.metrics.Middleware(s.mux)
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// Pages
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /documents/{id}", s.handleDocument)
	s.mux.HandleFunc("GET /analysis", s.handleAnalysis)
	s.mux.HandleFunc("GET /report", s.handleReport)

	// API
	s.mux.HandleFunc("GET /api/documents", s.apiDocuments)
	s.mux.HandleFunc("GET /api/documents/{id}", s.apiDocument)
	s.mux.HandleFunc("GET /api/documents/{id}/triples", s.apiDocumentTriples)
	s.mux.HandleFunc("GET /api/documents/{id}/graph", s.apiDocumentGraph)
	s.mux.HandleFunc("GET /api/graph", s.apiGraph)
	s.mux.HandleFunc("GET /api/network", s.apiNetwork)
	s.mux.HandleFunc("GET /api/analysis/keywords", s.apiKeywords)
	s.mux.HandleFunc("GET /api/analysis/entities", s.apiEntities)
	s.mux.HandleFunc("GET /api/analysis/sentiment", s.apiSentiment)
	s.mux.HandleFunc("GET /api/analysis/lengths", s.apiLengths)
	s.mux.HandleFunc("GET /api/analysis/timeline", s.apiTimeline)
	s.mux.HandleFunc("GET /api/analysis/topics", s.apiTopics)
	s.mux.HandleFunc("GET /api/analysis/clusters", s.apiClusters)
	s.mux.HandleFunc("GET /api/analysis/triples", s.apiTriples)
	s.mux.HandleFunc("GET /api/analysis/summary", s.apiSummary)
	s.mux.HandleFunc("GET /api/report", s.apiReport)
}

// snapshot resolves the current snapshot, writing a 500 on failure.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (*analysis.Snapshot, bool) {
	snap, err := s.cache.Snapshot(r.Context(), s.source)
	if err != nil {
		log.Error("snapshot unavailable", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "analysis unavailable")
		return nil, false
	}
	w.Header().Set("X-Snapshot-ID", snap.ID)
	return snap, true
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	s.render(w, "index.html", map[string]any{
		"Snapshot":  snap,
		"Summary":   snap.Summary(),
		"Documents": snap.Documents(),
	})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	doc, err := snap.Document(id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	record, _ := snap.Record(id)
	identities, _ := snap.DocumentIdentities(id)

	s.render(w, "document.html", map[string]any{
		"Document":   doc,
		"Record":     record,
		"Identities": identities,
	})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	opts := snap.Options()
	engine := snap.Stats()
	s.render(w, "analysis.html", map[string]any{
		"Snapshot":  snap,
		"Summary":   snap.Summary(),
		"Sentiment": engine.SentimentDistribution(),
		"Keywords":  stats.Top(engine.KeywordFrequencies(), opts.TopN),
		"Entities":  stats.Top(engine.EntityFrequencies(""), opts.TopN),
		"Lengths":   engine.LengthHistogram(opts.LengthBuckets),
		"Timeline":  engine.TimeSeries(),
		"Topics":    snap.Topics(),
		"Triples":   engine.TripleStatistics(opts.TopN),
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	rep := report.Compose(snap, 0)
	s.render(w, "report.html", map[string]any{
		"Report":   rep,
		"Markdown": rep.Markdown(),
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Error("template not found", "template", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		log.Error("rendering template", "template", name, "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve runs the HTTP server on the given port until ctx is cancelled.
func Serve(ctx context.Context, srv *Server, port int) error {
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", "http://"+httpSrv.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
