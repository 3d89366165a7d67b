package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"events-scrape/internal/metrics"
	"events-scrape/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingBackend 는 Upsert 호출 수를 세고, 지정된 id 의 쓰기를 실패시킨다.
type countingBackend struct {
	Backend
	upserts atomic.Int64
	lookups atomic.Int64
	failIDs map[string]bool
}

func (b *countingBackend) Current(ctx context.Context, collection string, scope Scope) (map[string]model.Document, error) {
	b.lookups.Add(1)
	return b.Backend.Current(ctx, collection, scope)
}

func (b *countingBackend) Upsert(ctx context.Context, doc model.Document) error {
	b.upserts.Add(1)
	if b.failIDs[doc.ID] {
		return errors.New("disk full")
	}
	return b.Backend.Upsert(ctx, doc)
}

func byID(r model.Record) (string, error) { return r.ID(), nil }

func events(n int, clusterID string) []model.Record {
	out := make([]model.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.Record{
			"id":         clusterID + "-" + string(rune('a'+i)),
			"cluster_id": clusterID,
			"message":    "event",
		})
	}
	return out
}

func TestStoreChanges_SecondCallWritesNothing(t *testing.T) {
	backend := &countingBackend{Backend: openTestBackend(t)}
	s := NewChangeAwareStore(backend, nil, 0)
	req := Request{
		Collection: model.CollectionEvents,
		Documents:  events(5, "c1"),
		Identity:   byID,
		Scope:      ByCluster("c1"),
	}

	first, err := s.StoreChanges(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Written)

	second, err := s.StoreChanges(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Written)
	assert.Equal(t, 5, second.Unchanged)
	assert.Equal(t, int64(5), backend.upserts.Load())
}

func TestStoreChanges_ChangedContentIsRewritten(t *testing.T) {
	backend := &countingBackend{Backend: openTestBackend(t)}
	s := NewChangeAwareStore(backend, nil, 0)
	docs := events(2, "c1")
	req := Request{Collection: model.CollectionEvents, Documents: docs, Identity: byID, Scope: ByCluster("c1")}

	_, err := s.StoreChanges(context.Background(), req)
	require.NoError(t, err)

	changed := []model.Record{docs[0], docs[1].Clone()}
	changed[1]["message"] = "updated"
	req.Documents = changed

	out, err := s.StoreChanges(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Written)
	assert.Equal(t, 1, out.Unchanged)

	cur, err := backend.Current(context.Background(), model.CollectionEvents, ByCluster("c1"))
	require.NoError(t, err)
	assert.Len(t, cur, 2)
	assert.Equal(t, "updated", cur[changed[1].ID()].Body["message"])
}

func TestStoreChanges_ScopeNeverCrossesClusters(t *testing.T) {
	backend := &countingBackend{Backend: openTestBackend(t)}
	s := NewChangeAwareStore(backend, nil, 0)
	ctx := context.Background()

	sameID := func(model.Record) (string, error) { return "collision", nil }

	_, err := s.StoreChanges(ctx, Request{
		Collection: model.CollectionClusters,
		Documents:  []model.Record{{"id": "c1", "status": "ready"}},
		Identity:   sameID,
		Scope:      ByCluster("c1"),
	})
	require.NoError(t, err)

	// 같은 identity, 다른 scope, 같은 내용 → 그래도 써야 한다.
	out, err := s.StoreChanges(ctx, Request{
		Collection: model.CollectionClusters,
		Documents:  []model.Record{{"id": "c1", "status": "ready"}},
		Identity:   sameID,
		Scope:      ByCluster("c2"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Written)

	c1, err := backend.Count(ctx, model.CollectionClusters, ByCluster("c1"))
	require.NoError(t, err)
	c2, err := backend.Count(ctx, model.CollectionClusters, ByCluster("c2"))
	require.NoError(t, err)
	assert.Equal(t, 1, c1)
	assert.Equal(t, 1, c2)
}

func TestStoreChanges_BestEffortContinuation(t *testing.T) {
	m := metrics.New()
	backend := &countingBackend{Backend: openTestBackend(t), failIDs: map[string]bool{"c1-b": true}}
	s := NewChangeAwareStore(backend, m, 0)

	out, err := s.StoreChanges(context.Background(), Request{
		Collection: model.CollectionEvents,
		Documents:  events(4, "c1"),
		Identity:   byID,
		Scope:      ByCluster("c1"),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 3, out.Written)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, int64(4), backend.upserts.Load())
	assert.Equal(t, int64(1), atomic.LoadInt64(&m.DocumentWriteErrorsTotal))

	// 실패한 문서는 다음 호출에서 다시 시도된다.
	backend.failIDs = nil
	out, err = s.StoreChanges(context.Background(), Request{
		Collection: model.CollectionEvents,
		Documents:  events(4, "c1"),
		Identity:   byID,
		Scope:      ByCluster("c1"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Written)
}

func TestStoreChanges_TransformDoesNotAffectChangeDetection(t *testing.T) {
	backend := &countingBackend{Backend: openTestBackend(t)}
	s := NewChangeAwareStore(backend, nil, 0)
	ctx := context.Background()

	tick := time.Date(2022, 3, 8, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { tick = tick.Add(time.Minute); return tick }

	versions := model.Record{"assisted-installer": "quay.io/ai:v2.1", "discovery-agent": "quay.io/agent:v2.1"}
	req := Request{
		Collection: model.CollectionComponentVersions,
		Documents:  []model.Record{versions},
		Identity:   hashRecord,
		Transform:  AddTimestamp(clock),
	}

	out, err := s.StoreChanges(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Written)
	_, stamped := versions[model.FieldTimestamp]
	assert.False(t, stamped, "caller record must not be mutated")

	out, err = s.StoreChanges(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Written)

	var bodies []model.Record
	require.NoError(t, backend.Scan(ctx, model.CollectionComponentVersions, func(d model.Document) error {
		bodies = append(bodies, d.Body)
		return nil
	}))
	require.Len(t, bodies, 1)
	assert.Equal(t, "2022-03-08T10:01:00Z", bodies[0][model.FieldTimestamp])
}

func TestStoreChanges_DuplicateCandidatesWrittenOnce(t *testing.T) {
	backend := &countingBackend{Backend: openTestBackend(t)}
	s := NewChangeAwareStore(backend, nil, 0)

	ev := model.Record{"id": "e1", "message": "dup"}
	out, err := s.StoreChanges(context.Background(), Request{
		Collection: model.CollectionEvents,
		Documents:  []model.Record{ev, ev.Clone()},
		Identity:   byID,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Written)
	assert.Equal(t, 1, out.Unchanged)
}

func TestStoreChanges_DuplicateIDsSettleOnLastCandidate(t *testing.T) {
	backend := &countingBackend{Backend: openTestBackend(t)}
	s := NewChangeAwareStore(backend, nil, 0)
	req := Request{
		Collection: model.CollectionEvents,
		Documents: []model.Record{
			{"id": "e1", "props": "a"},
			{"id": "e1", "props": "b"},
		},
		Identity: byID,
	}

	out, err := s.StoreChanges(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Written)
	assert.Equal(t, 1, out.Unchanged)

	// 같은 입력 반복 → 더 이상 쓰지 않는다
	for i := 0; i < 3; i++ {
		out, err = s.StoreChanges(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 0, out.Written, "call %d", i+2)
		assert.Equal(t, 2, out.Unchanged, "call %d", i+2)
	}
	assert.Equal(t, int64(1), backend.upserts.Load())

	cur, err := backend.Current(context.Background(), model.CollectionEvents, Scope{})
	require.NoError(t, err)
	require.Contains(t, cur, "e1")
	assert.Equal(t, "b", cur["e1"].Body["props"], "last candidate wins")
}

func TestStoreChanges_CacheSkipsLookup(t *testing.T) {
	m := metrics.New()
	backend := &countingBackend{Backend: openTestBackend(t)}
	s := NewChangeAwareStore(backend, m, 128)
	req := Request{Collection: model.CollectionEvents, Documents: events(3, "c1"), Identity: byID, Scope: ByCluster("c1")}

	_, err := s.StoreChanges(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, int64(1), backend.lookups.Load())

	out, err := s.StoreChanges(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Unchanged)
	assert.Equal(t, int64(1), backend.lookups.Load(), "second call answered from cache")
	assert.Equal(t, int64(1), atomic.LoadInt64(&m.DedupCacheHitsTotal))
}

func TestStoreChanges_RequiresIdentity(t *testing.T) {
	s := NewChangeAwareStore(openTestBackend(t), nil, 0)
	_, err := s.StoreChanges(context.Background(), Request{
		Collection: model.CollectionEvents,
		Documents:  []model.Record{{"id": "x"}},
	})
	assert.Error(t, err)
}
