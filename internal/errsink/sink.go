// internal/errsink/sink.go
package errsink

import (
	"context"
	"sync/atomic"
	"time"

	"events-scrape/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Report 는 외부 telemetry 로 전달되는 예외 한 건.
type Report struct {
	Time      time.Time `json:"time"`
	Instance  string    `json:"instance,omitempty"`
	ClusterID string    `json:"cluster_id,omitempty"`
	Message   string    `json:"message"`
	Error     string    `json:"error"`
}

// Forwarder 는 예외를 외부 시스템(NATS 등)으로 보낸다.
// 실패해도 파이프라인은 계속 진행하므로 에러는 Sink 가 카운트만 한다.
type Forwarder interface {
	Forward(ctx context.Context, r Report) error
}

// Sink
// ------------------------------------------------------------
// 클러스터 태스크 경계에서 잡힌 예상치 못한 에러를 모으는 곳.
//
//   - 프로세스 전체 에러 카운터 (atomic)
//   - zerolog error 로그 (cluster_id 포함)
//   - forwarder 가 있으면 telemetry 전송
//
// 여러 worker goroutine 에서 동시에 호출된다.
type Sink struct {
	metrics   *metrics.Metrics
	forwarder Forwarder
	instance  string

	count atomic.Int64
}

// New 는 forwarder 가 nil 이면 로그/카운트만 하는 Sink 를 만든다.
func New(m *metrics.Metrics, f Forwarder, instance string) *Sink {
	if m == nil {
		m = metrics.New()
	}
	return &Sink{metrics: m, forwarder: f, instance: instance}
}

func (s *Sink) Report(ctx context.Context, err error, clusterID, msg string) {
	if err == nil {
		return
	}
	s.count.Add(1)
	atomic.AddInt64(&s.metrics.ErrorsTotal, 1)

	log.Error().Err(err).Str("cluster_id", clusterID).Msg(msg)

	if s.forwarder == nil {
		return
	}
	r := Report{
		Time:      time.Now().UTC(),
		Instance:  s.instance,
		ClusterID: clusterID,
		Message:   msg,
		Error:     err.Error(),
	}
	if ferr := s.forwarder.Forward(ctx, r); ferr != nil {
		atomic.AddInt64(&s.metrics.TelemetryForwardErrorsTotal, 1)
		log.Warn().Err(ferr).Str("cluster_id", clusterID).Msg("telemetry forward failed")
	}
}

// Count 는 프로세스 시작 이후 보고된 에러 수.
func (s *Sink) Count() int64 {
	return s.count.Load()
}
