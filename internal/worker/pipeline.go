// internal/worker/pipeline.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"events-scrape/internal/canonical"
	"events-scrape/internal/inventory"
	"events-scrape/internal/model"
	"events-scrape/internal/store"
)

// Pipeline 은 클러스터 하나에 대한 처리 단계를 순서대로 실행한다.
//
//  1. hosts 가 비어 있으면 inventory 에서 조회 (404 → 0 hosts)
//  2. events (카테고리 필터) + 전역 component versions 조회
//  3. component versions 저장 (content hash = id, 쓰기 시각 stamp)
//  4. cluster 저장 (canonical checksum = id, cluster_id scope)
//  5. events 저장 (event id, cluster_id scope)
//  6. enriched events 저장 (event + cluster 스냅샷 + versions, cluster_id scope)
//
// 단계 사이 롤백은 없다. 뒤 단계에서 실패해도 앞 단계에서 쓴 문서는 남는다.
type Pipeline struct {
	fetcher *inventory.Fetcher
	store   *store.ChangeAwareStore
	canon   *canonical.Canonicalizer
	now     func() time.Time
}

func NewPipeline(f *inventory.Fetcher, s *store.ChangeAwareStore, canon *canonical.Canonicalizer) *Pipeline {
	return &Pipeline{fetcher: f, store: s, canon: canon, now: time.Now}
}

func (p *Pipeline) Process(ctx context.Context, cluster model.Record) (int, error) {
	id := cluster.ID()
	if id == "" {
		return 0, errors.New("worker: cluster record without id")
	}

	// --- 1) hosts ---
	if !cluster.HasHosts() {
		hosts, err := p.fetcher.Hosts(ctx, id).Get()
		if err != nil {
			return 0, fmt.Errorf("fetch hosts: %w", err)
		}
		cluster = cluster.WithHosts(hosts)
	}

	// --- 2) events / versions ---
	events, err := p.fetcher.Events(ctx, id).Get()
	if err != nil {
		return 0, fmt.Errorf("fetch events: %w", err)
	}
	versions, err := p.fetcher.Versions(ctx).Get()
	if err != nil {
		return 0, fmt.Errorf("fetch versions: %w", err)
	}

	written := 0
	scope := store.ByCluster(id)

	// --- 3) component versions ---
	var versionDocs []model.Record
	if len(versions) > 0 {
		versionDocs = []model.Record{versions}
	}
	out, err := p.store.StoreChanges(ctx, store.Request{
		Collection: model.CollectionComponentVersions,
		Documents:  versionDocs,
		Identity:   contentHash,
		Transform:  store.AddTimestamp(p.now),
	})
	written += out.Written
	if err != nil {
		return written, err
	}

	// --- 4) cluster ---
	out, err = p.store.StoreChanges(ctx, store.Request{
		Collection:  model.CollectionClusters,
		Documents:   []model.Record{cluster},
		Identity:    p.canon.Fingerprint,
		Fingerprint: p.canon.Fingerprint,
		Scope:       scope,
	})
	written += out.Written
	if err != nil {
		return written, err
	}

	// --- 5) events ---
	out, err = p.store.StoreChanges(ctx, store.Request{
		Collection: model.CollectionEvents,
		Documents:  events,
		Identity:   canonical.EventID,
		Scope:      scope,
	})
	written += out.Written
	if err != nil {
		return written, err
	}

	// --- 6) enriched events ---
	out, err = p.store.StoreChanges(ctx, store.Request{
		Collection:  model.CollectionClusterEvents,
		Documents:   enrichEvents(cluster, versions, events),
		Identity:    canonical.EventID,
		Fingerprint: enrichedFingerprint(p.canon),
		Scope:       scope,
	})
	written += out.Written
	return written, err
}

func contentHash(r model.Record) (string, error) {
	return canonical.Hash(r)
}
