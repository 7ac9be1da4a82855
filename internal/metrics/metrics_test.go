package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/annograph/internal/decode"
)

func TestObserveDecodeOutcomes(t *testing.T) {
	m := New()
	d := decode.New(decode.WithObserver(m))

	d.Triples("(A,导演,B)")
	d.Triples("garbage")
	d.Keywords("")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.decodeTotal.WithLabelValues("triples", "fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decodeTotal.WithLabelValues("triples", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decodeTotal.WithLabelValues("keywords", "empty")))
}

func TestRecordAnalysis(t *testing.T) {
	m := New()
	m.RecordAnalysis(time.Second, 12, 30, nil)
	m.RecordAnalysis(time.Second, 0, 0, errors.New("cancelled"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.analysisTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.analysisTotal.WithLabelValues("error")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.documents))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.identities))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := m.Middleware(mux)

	for _, path := range []string{"/api/documents/1", "/api/documents/2"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.requestTotal.WithLabelValues("GET", "GET /api/documents/{id}", "404")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.RecordCacheLookup(true)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `annograph_analysis_cache_lookups_total{result="hit"} 1`))
}
