// internal/worker/pool.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"events-scrape/internal/errsink"
	"events-scrape/internal/metrics"
	"events-scrape/internal/model"

	"github.com/rs/zerolog/log"
)

// ErrPoolClosed 는 Shutdown 이후 Submit 시 반환된다.
var ErrPoolClosed = errors.New("worker: pool is shut down")

// ClusterProcessor 는 클러스터 하나를 fetch → normalize → store 까지 처리한다.
// 반환하는 written 은 실패 시에도 이미 커밋된 문서 수를 포함한다.
type ClusterProcessor interface {
	Process(ctx context.Context, cluster model.Record) (written int, err error)
}

// Summary 는 Process 한 번의 집계 결과.
// 예전의 프로세스 전역 "changed" 플래그를 대신한다.
type Summary struct {
	Submitted int
	Processed int
	Failed    int
	Cancelled int
	Written   int
}

// Changed 는 이번 사이클에 문서가 하나라도 쓰였는지. export 단계의 트리거.
func (s Summary) Changed() bool {
	return s.Written > 0
}

// Pool
// ------------------------------------------------------------
// 클러스터 태스크를 최대 maxWorkers 개까지 동시에 실행한다.
//
//   - Submit: 태스크마다 Task 핸들을 만들고 slot 을 기다리는 goroutine 시작
//   - slot 확보 후 pending → running CAS 에 성공한 태스크만 실행
//   - 태스크 안의 에러 / panic 은 경계에서 잡아 ErrorSink 로 보고 (형제 태스크 영향 없음)
//
// Shutdown 은 2단계로 정리한다.
//
//  1. 새 Submit 거부 + 아직 시작하지 않은 핸들 전부 cancel
//  2. 이미 실행 중인 태스크는 끝날 때까지 기다림 (중간 abort 없음)
type Pool struct {
	processor ClusterProcessor
	sink      *errsink.Sink
	metrics   *metrics.Metrics

	slots chan struct{}

	mu     sync.Mutex
	closed bool
	tasks  map[*Task]struct{}

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewPool(maxWorkers int, processor ClusterProcessor, sink *errsink.Sink, m *metrics.Metrics) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if m == nil {
		m = metrics.New()
	}
	if sink == nil {
		sink = errsink.New(m, nil, "")
	}
	return &Pool{
		processor: processor,
		sink:      sink,
		metrics:   m,
		slots:     make(chan struct{}, maxWorkers),
		tasks:     make(map[*Task]struct{}),
		stopCh:    make(chan struct{}),
	}
}

// Submit 은 클러스터 태스크를 등록하고 핸들을 돌려준다.
// 실행 여부/결과는 핸들의 Done() 이후 State()/Result() 로 확인한다.
func (p *Pool) Submit(ctx context.Context, cluster model.Record) (*Task, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	t := newTask(cluster.ID())
	p.tasks[t] = struct{}{}
	p.wg.Add(1)
	p.mu.Unlock()

	atomic.AddInt64(&p.metrics.ClustersSubmittedTotal, 1)
	go p.run(ctx, t, cluster)
	return t, nil
}

// Process 는 클러스터마다 태스크를 제출하고, 전부 끝나거나 취소될 때까지 기다린다.
func (p *Pool) Process(ctx context.Context, clusters []model.Record) Summary {
	var sum Summary
	tasks := make([]*Task, 0, len(clusters))

	for _, c := range clusters {
		t, err := p.Submit(ctx, c)
		if err != nil {
			// 이미 shutdown 중: 시작되지 않은 태스크와 동일하게 취급
			sum.Cancelled++
			continue
		}
		tasks = append(tasks, t)
	}
	sum.Submitted = len(tasks)
	log.Info().Int("clusters", len(tasks)).Msg("clusters sent for processing")

	for _, t := range tasks {
		<-t.Done()
		written, err := t.Result()
		sum.Written += written

		switch t.State() {
		case TaskCancelled:
			sum.Cancelled++
		case TaskDone:
			if err != nil {
				sum.Failed++
			} else {
				sum.Processed++
			}
		}
	}
	return sum
}

// Shutdown 은 pending 태스크를 취소하고 running 태스크를 기다린다. 여러 번 호출해도 안전하다.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	pending := make([]*Task, 0, len(p.tasks))
	for t := range p.tasks {
		pending = append(pending, t)
	}
	p.mu.Unlock()

	cancelled := 0
	for _, t := range pending {
		if p.cancel(t) {
			cancelled++
		}
	}
	p.stopOnce.Do(func() { close(p.stopCh) })

	log.Info().Int("cancelled", cancelled).Msg("worker pool draining running tasks")
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, t *Task, cluster model.Record) {
	defer p.wg.Done()
	defer p.forget(t)

	// --- slot 대기 ---
	select {
	case p.slots <- struct{}{}:
	case <-p.stopCh:
		p.cancel(t)
		return
	case <-ctx.Done():
		p.cancel(t)
		return
	}
	defer func() { <-p.slots }()

	// slot 을 얻는 사이 Shutdown 이 먼저 cancel 했을 수 있다
	if !t.start() {
		return
	}

	written, err := p.execute(ctx, cluster)
	if err != nil {
		atomic.AddInt64(&p.metrics.ClustersFailedTotal, 1)
		p.sink.Report(ctx, err, t.ClusterID, fmt.Sprintf("error while processing cluster %s", t.ClusterID))
	} else {
		atomic.AddInt64(&p.metrics.ClustersProcessedTotal, 1)
		log.Debug().Str("cluster_id", t.ClusterID).Int("written", written).Msg("cluster stored")
	}
	t.finish(written, err)
}

// execute 는 processor 호출을 panic 경계로 감싼다.
func (p *Pool) execute(ctx context.Context, cluster model.Record) (written int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker: panic: %v\n%s", r, debug.Stack())
		}
	}()
	return p.processor.Process(ctx, cluster)
}

func (p *Pool) cancel(t *Task) bool {
	if !t.cancel() {
		return false
	}
	atomic.AddInt64(&p.metrics.ClustersCancelledTotal, 1)
	return true
}

func (p *Pool) forget(t *Task) {
	p.mu.Lock()
	delete(p.tasks, t)
	p.mu.Unlock()
}
