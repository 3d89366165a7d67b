package store

import (
	"context"
	"testing"
	"time"

	"events-scrape/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestBackend 는 테스트마다 독립된 in-memory DB 를 연다.
func openTestBackend(t *testing.T) *SQLiteBackend {
	t.Helper()
	b, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestSQLiteBackend_UpsertCurrentCount(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()
	scope := ByCluster("c1")

	require.NoError(t, b.Ping(ctx))
	require.NoError(t, b.Upsert(ctx, model.Document{
		Collection: model.CollectionEvents, Scope: scope.Key(), ID: "e1",
		Fingerprint: "fp1", Body: model.Record{"message": "first"},
	}))
	require.NoError(t, b.Upsert(ctx, model.Document{
		Collection: model.CollectionEvents, Scope: scope.Key(), ID: "e1",
		Fingerprint: "fp2", Body: model.Record{"message": "second"}, WrittenAt: time.UnixMilli(1000),
	}))

	cur, err := b.Current(ctx, model.CollectionEvents, scope)
	require.NoError(t, err)
	require.Len(t, cur, 1)
	assert.Equal(t, "fp2", cur["e1"].Fingerprint)
	assert.Equal(t, "second", cur["e1"].Body["message"])
	assert.Equal(t, int64(1000), cur["e1"].WrittenAt.UnixMilli())

	n, err := b.Count(ctx, model.CollectionEvents, Scope{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = b.Count(ctx, model.CollectionEvents, ByCluster("other"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLiteBackend_ScopesAreIsolated(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	for _, cid := range []string{"c1", "c2"} {
		require.NoError(t, b.Upsert(ctx, model.Document{
			Collection: model.CollectionClusters, Scope: ByCluster(cid).Key(), ID: "same-id",
			Fingerprint: "fp-" + cid, Body: model.Record{"id": cid},
		}))
	}

	cur, err := b.Current(ctx, model.CollectionClusters, ByCluster("c2"))
	require.NoError(t, err)
	require.Len(t, cur, 1)
	assert.Equal(t, "fp-c2", cur["same-id"].Fingerprint)

	unscoped, err := b.Current(ctx, model.CollectionClusters, Scope{})
	require.NoError(t, err)
	assert.Empty(t, unscoped)
}

func TestSQLiteBackend_Scan(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	for i, id := range []string{"b", "a", "c"} {
		require.NoError(t, b.Upsert(ctx, model.Document{
			Collection: model.CollectionEvents, ID: id, Fingerprint: id,
			Body: model.Record{"n": i}, WrittenAt: time.UnixMilli(int64(100 + i)),
		}))
	}

	var ids []string
	err := b.Scan(ctx, model.CollectionEvents, func(d model.Document) error {
		ids = append(ids, d.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, ids)
}
