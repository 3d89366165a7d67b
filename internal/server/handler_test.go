package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"events-scrape/internal/metrics"

	"github.com/stretchr/testify/assert"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	ok := NewHandler(metrics.New(), fakePinger{}).Routes()
	rec := get(ok, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	down := NewHandler(metrics.New(), fakePinger{err: errors.New("database is locked")}).Routes()
	assert.Equal(t, http.StatusServiceUnavailable, get(down, "/health").Code)
}

func TestStatsAndMetrics(t *testing.T) {
	m := metrics.New()
	atomic.AddInt64(&m.DocumentsWrittenTotal, 7)
	routes := NewHandler(m, nil).Routes()

	stats := get(routes, "/stats")
	assert.Equal(t, http.StatusOK, stats.Code)
	assert.Contains(t, stats.Body.String(), "documents_written_total=7\n")

	prom := get(routes, "/metrics")
	assert.Equal(t, http.StatusOK, prom.Code)
	assert.Contains(t, prom.Body.String(), "events_scrape_documents_written_total 7")
	assert.Contains(t, prom.Body.String(), "go_goroutines")
}
