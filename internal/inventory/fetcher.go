// internal/inventory/fetcher.go
package inventory

import (
	"context"
	"sync/atomic"
	"time"

	"events-scrape/internal/metrics"
	"events-scrape/internal/model"

	"github.com/rs/zerolog/log"
)

// Fetcher
// ------------------------------------------------------------
// Client 호출에 RetryPolicy 를 씌운 것.
//
//   - transient 에러: backoff + jitter 로 재시도, 소진 시 마지막 에러
//   - not found    : 재시도 없이 NotFound (빈 결과)
//     enumeration 이후 상세 조회 사이에 클러스터가 삭제된 경우
//   - 그 외         : 재시도 없이 Failed
type Fetcher struct {
	client     Client
	policy     RetryPolicy
	categories []string
	metrics    *metrics.Metrics
}

func NewFetcher(client Client, policy RetryPolicy, categories []string, m *metrics.Metrics) *Fetcher {
	if m == nil {
		m = metrics.New()
	}
	f := &Fetcher{
		client:     client,
		categories: categories,
		metrics:    m,
	}

	user := policy.OnRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		atomic.AddInt64(&m.FetchRetriesTotal, 1)
		log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("inventory call failed, retrying")
		if user != nil {
			user(attempt, delay, err)
		}
	}
	f.policy = policy
	return f
}

// ListClusters 는 사이클 시작 시 처리 대상 클러스터 목록을 가져온다.
func (f *Fetcher) ListClusters(ctx context.Context) ([]model.Record, error) {
	return Retry(ctx, f.policy, f.client.ListClusters)
}

// Versions 는 전역 component version 스냅샷. (클러스터 scope 아님)
func (f *Fetcher) Versions(ctx context.Context) Result[model.Record] {
	return fetch(ctx, f, "get_versions", "", f.client.GetVersions)
}

func (f *Fetcher) Events(ctx context.Context, clusterID string) Result[[]model.Record] {
	return fetch(ctx, f, "get_events", clusterID, func(ctx context.Context) ([]model.Record, error) {
		return f.client.GetEvents(ctx, clusterID, f.categories)
	})
}

func (f *Fetcher) Hosts(ctx context.Context, clusterID string) Result[[]model.Record] {
	return fetch(ctx, f, "get_cluster_hosts", clusterID, func(ctx context.Context) ([]model.Record, error) {
		return f.client.GetClusterHosts(ctx, clusterID)
	})
}

func fetch[T any](ctx context.Context, f *Fetcher, op, clusterID string, call func(context.Context) (T, error)) Result[T] {
	v, err := Retry(ctx, f.policy, call)
	if err == nil {
		return Ok(v)
	}
	if KindOf(err) == KindNotFound {
		atomic.AddInt64(&f.metrics.FetchNotFoundTotal, 1)
		log.Debug().Str("op", op).Str("cluster_id", clusterID).Msg("inventory resource not found")
		return Missing[T]()
	}
	return Fail[T](err)
}
