// internal/store/changes.go
package store

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"events-scrape/internal/canonical"
	"events-scrape/internal/metrics"
	"events-scrape/internal/model"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// IdentityFunc 는 후보 문서를 저장/비교 키로 매핑한다.
type IdentityFunc func(model.Record) (string, error)

// TransformFunc 는 저장 직전 body 를 가공한다 (예: 타임스탬프).
// 인자는 이미 복사된 값이므로 제자리 수정해도 된다.
type TransformFunc func(model.Record) model.Record

// Request 는 StoreChanges 한 번의 입력.
type Request struct {
	Collection string
	Documents  []model.Record
	Identity   IdentityFunc

	// Fingerprint 는 "내용이 바뀌었는가" 판단용 해시. nil 이면 canonical.Hash.
	Fingerprint IdentityFunc

	// Scope 가 있으면 현재 상태 조회와 upsert 가 모두 그 scope 안에서만 일어난다.
	Scope Scope

	Transform TransformFunc
}

// Outcome 은 StoreChanges 결과 집계.
type Outcome struct {
	Written   int
	Unchanged int
	Failed    int
}

// ChangeAwareStore
// ------------------------------------------------------------
// 현재 저장된 내용과 다른 문서만 쓰는 compare-and-store.
//
//  1. identity / fingerprint 계산 (transform 적용 전 내용 기준)
//  2. (collection, scope) 현재 상태를 한 번만 조회
//  3. fingerprint 가 다르거나 없는 문서만 upsert
//  4. upsert 실패는 모아두고 나머지 문서는 계속 시도 → 끝난 뒤 한 번에 반환
//
// 같은 입력으로 두 번 호출하면 두 번째는 쓰기가 0 건이다.
type ChangeAwareStore struct {
	backend Backend
	metrics *metrics.Metrics
	now     func() time.Time

	// known: "collection\x00scope\x00id" → 마지막으로 저장 확인된 fingerprint
	known *lru.Cache[string, string]
}

// NewChangeAwareStore 는 cacheSize > 0 이면 fingerprint LRU 를 켠다.
func NewChangeAwareStore(backend Backend, m *metrics.Metrics, cacheSize int) *ChangeAwareStore {
	if m == nil {
		m = metrics.New()
	}
	s := &ChangeAwareStore{
		backend: backend,
		metrics: m,
		now:     time.Now,
	}
	if cacheSize > 0 {
		s.known, _ = lru.New[string, string](cacheSize)
	}
	return s
}

type candidate struct {
	id          string
	fingerprint string
	doc         model.Record
}

func (s *ChangeAwareStore) StoreChanges(ctx context.Context, req Request) (Outcome, error) {
	var out Outcome
	if len(req.Documents) == 0 {
		return out, nil
	}
	if req.Identity == nil {
		return out, fmt.Errorf("store: %s: identity function is required", req.Collection)
	}
	fingerprint := req.Fingerprint
	if fingerprint == nil {
		fingerprint = hashRecord
	}

	// --- 1) identity / fingerprint ---
	cands := make([]candidate, 0, len(req.Documents))
	for _, doc := range req.Documents {
		id, err := req.Identity(doc)
		if err != nil {
			return out, fmt.Errorf("store: %s: identity: %w", req.Collection, err)
		}
		fp, err := fingerprint(doc)
		if err != nil {
			return out, fmt.Errorf("store: %s: fingerprint %s: %w", req.Collection, id, err)
		}
		cands = append(cands, candidate{id: id, fingerprint: fp, doc: doc})
	}

	// 같은 id 가 여러 번 오면 마지막 것만 남긴다 (첫 등장 위치 유지).
	// 버려진 후보는 unchanged 로 센다.
	cands, dropped := collapseByID(cands)
	out.Unchanged += dropped

	scopeKey := req.Scope.Key()

	// --- 2) 모든 후보가 이미 저장 확인된 상태면 조회 생략 ---
	if s.allKnown(req.Collection, scopeKey, cands) {
		atomic.AddInt64(&s.metrics.DedupCacheHitsTotal, 1)
		out.Unchanged += len(cands)
		atomic.AddInt64(&s.metrics.DocumentsUnchangedTotal, int64(out.Unchanged))
		return out, nil
	}

	current, err := s.backend.Current(ctx, req.Collection, req.Scope)
	if err != nil {
		return out, err
	}

	// --- 3) 바뀐 문서만 upsert ---
	var errs []error
	for _, c := range cands {
		if stored, ok := current[c.id]; ok && stored.Fingerprint == c.fingerprint {
			s.remember(req.Collection, scopeKey, c)
			out.Unchanged++
			continue
		}

		body := c.doc.Clone()
		if req.Transform != nil {
			body = req.Transform(body)
		}
		doc := model.Document{
			Collection:  req.Collection,
			Scope:       scopeKey,
			ID:          c.id,
			Fingerprint: c.fingerprint,
			Body:        body,
			WrittenAt:   s.now(),
		}
		if err := s.backend.Upsert(ctx, doc); err != nil {
			// 4) best-effort: 실패해도 나머지 문서는 계속 시도
			out.Failed++
			errs = append(errs, err)
			log.Warn().Err(err).Str("collection", req.Collection).Str("id", c.id).Msg("document upsert failed")
			continue
		}
		s.remember(req.Collection, scopeKey, c)
		out.Written++
	}

	atomic.AddInt64(&s.metrics.DocumentsWrittenTotal, int64(out.Written))
	atomic.AddInt64(&s.metrics.DocumentsUnchangedTotal, int64(out.Unchanged))
	atomic.AddInt64(&s.metrics.DocumentWriteErrorsTotal, int64(out.Failed))

	if len(errs) > 0 {
		return out, fmt.Errorf("store: %s: %d of %d writes failed: %w",
			req.Collection, len(errs), len(cands), errors.Join(errs...))
	}
	return out, nil
}

func collapseByID(cands []candidate) ([]candidate, int) {
	slot := make(map[string]int, len(cands))
	out := make([]candidate, 0, len(cands))
	for _, c := range cands {
		if i, dup := slot[c.id]; dup {
			out[i] = c
			continue
		}
		slot[c.id] = len(out)
		out = append(out, c)
	}
	return out, len(cands) - len(out)
}

func (s *ChangeAwareStore) allKnown(collection, scopeKey string, cands []candidate) bool {
	if s.known == nil {
		return false
	}
	for _, c := range cands {
		fp, ok := s.known.Get(cacheKey(collection, scopeKey, c.id))
		if !ok || fp != c.fingerprint {
			return false
		}
	}
	return true
}

func (s *ChangeAwareStore) remember(collection, scopeKey string, c candidate) {
	if s.known != nil {
		s.known.Add(cacheKey(collection, scopeKey, c.id), c.fingerprint)
	}
}

func cacheKey(collection, scopeKey, id string) string {
	return collection + "\x00" + scopeKey + "\x00" + id
}

func hashRecord(r model.Record) (string, error) {
	return canonical.Hash(r)
}

// AddTimestamp 는 쓰기 시각(UTC, RFC3339 nano)을 body 에 찍는 transform.
// fingerprint 는 transform 전 내용으로 계산되므로 변경 감지에 영향이 없다.
func AddTimestamp(now func() time.Time) TransformFunc {
	if now == nil {
		now = time.Now
	}
	return func(r model.Record) model.Record {
		r[model.FieldTimestamp] = now().UTC().Format(time.RFC3339Nano)
		return r
	}
}
