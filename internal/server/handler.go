package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"events-scrape/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Pinger 는 health check 대상 (document store).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler 는 스크레이퍼 운영용 HTTP 엔드포인트.
//
//   - /health  : store 연결 확인 (orchestrator liveness)
//   - /stats   : 내부 카운터 text dump
//   - /metrics : 같은 카운터의 Prometheus exposition
type Handler struct {
	metrics  *metrics.Metrics
	store    Pinger
	registry *prometheus.Registry
}

func NewHandler(m *metrics.Metrics, store Pinger) *Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		metrics.NewCollector(m),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Handler{metrics: m, store: store, registry: reg}
}

// Routes 는 엔드포인트를 등록한 mux 를 반환한다.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/stats", h.HandleStats)
	mux.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	return mux
}

// HandleHealth
//
// store 가 응답하지 않으면 503. 사이클 실패(에러 카운트)는 health 에 반영하지 않는다.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("health check: store unreachable")
			http.Error(w, "store unreachable", http.StatusServiceUnavailable)
			return
		}
	}
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, h.metrics.String())
}

// NewHTTPServer 는 운영 엔드포인트용 서버. 응답이 짧으므로 timeout 도 짧게 둔다.
func NewHTTPServer(addr string, h *Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      h.Routes(),
		ReadTimeout:  8 * time.Second,
		WriteTimeout: 8 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
