// internal/worker/manager.go
package worker

import (
	"context"
	"sync/atomic"
	"time"

	"events-scrape/internal/errsink"
	"events-scrape/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ClusterLister 는 사이클 시작 시 처리 대상 클러스터 목록을 준다. (inventory.Fetcher)
type ClusterLister interface {
	ListClusters(ctx context.Context) ([]model.Record, error)
}

// Exporter 는 변경이 있었던 사이클 뒤에 collection 전체를 내보낸다.
type Exporter interface {
	Export(ctx context.Context, runID string, collections []string) error
}

// Manager 는 스크레이프 사이클 전체 흐름을 제어한다.
//
//   - run id 발급 (uuid)
//   - 클러스터 목록 조회
//   - Pool.Process 로 클러스터별 파이프라인 실행
//   - 한 문서라도 바뀌었으면 export
//
// 클러스터 목록 조회 실패는 그 사이클만 실패 처리하고, Run 루프는 다음 주기에 재시도한다.
type Manager struct {
	lister   ClusterLister
	pool     *Pool
	exporter Exporter
	sink     *errsink.Sink

	stopping atomic.Bool
}

// NewManager 는 exporter 가 nil 이면 export 단계를 건너뛴다.
func NewManager(lister ClusterLister, pool *Pool, exporter Exporter, sink *errsink.Sink) *Manager {
	if sink == nil {
		sink = errsink.New(nil, nil, "")
	}
	return &Manager{
		lister:   lister,
		pool:     pool,
		exporter: exporter,
		sink:     sink,
	}
}

// RunOnce 는 사이클 하나를 실행한다.
// 반환 에러는 클러스터 목록 조회 실패뿐이다. 클러스터 단위 실패는 Summary.Failed 와 ErrorSink 로 집계된다.
func (m *Manager) RunOnce(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	started := time.Now()

	clusters, err := m.lister.ListClusters(ctx)
	if err != nil {
		m.sink.Report(ctx, err, "", "error while listing clusters")
		return Summary{}, err
	}

	sum := m.pool.Process(ctx, clusters)

	if sum.Changed() && m.exporter != nil {
		if m.stopping.Load() {
			log.Warn().Str("run_id", runID).Msg("shutdown in progress, export skipped")
		} else if err := m.exporter.Export(ctx, runID, model.Collections); err != nil {
			m.sink.Report(ctx, err, "", "error while exporting collections")
		}
	}

	log.Info().
		Str("run_id", runID).
		Int("clusters", len(clusters)).
		Int("processed", sum.Processed).
		Int("failed", sum.Failed).
		Int("cancelled", sum.Cancelled).
		Int("written", sum.Written).
		Int64("errors_total", m.sink.Count()).
		Dur("took", time.Since(started)).
		Msg("scrape cycle finished")

	return sum, nil
}

// Run 은 ctx 가 끝날 때까지 interval 마다 RunOnce 를 반복한다.
//
// 사이클 내부 작업은 ctx 취소와 분리된 context 로 실행한다.
// 종료 신호가 와도 진행 중인 네트워크 호출은 끝까지 가고, 정리는 Shutdown 이 담당한다.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	work := context.WithoutCancel(ctx)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scrape loop exiting")
			return
		case <-timer.C:
		}

		if _, err := m.RunOnce(work); err != nil {
			log.Warn().Err(err).Msg("scrape cycle aborted")
		}
		timer.Reset(interval)
	}
}

// Shutdown 은 pool 을 2단계로 정리한다 (pending 취소 → running 대기).
// 이후 사이클의 export 는 건너뛴다.
func (m *Manager) Shutdown() {
	m.stopping.Store(true)
	m.pool.Shutdown()
}
