// internal/store/backend.go
package store

import (
	"context"

	"events-scrape/internal/model"
)

// Scope 는 compare-and-store 비교 범위를 제한하는 필터.
// 예: cluster_id = <id>. zero 값은 "scope 없음".
type Scope struct {
	Field string
	Value string
}

// ByCluster 는 cluster_id scope.
func ByCluster(clusterID string) Scope {
	return Scope{Field: model.FieldClusterID, Value: clusterID}
}

func (s Scope) IsZero() bool {
	return s.Field == "" && s.Value == ""
}

// Key 는 저장용 scope 문자열. scope 없음은 "".
func (s Scope) Key() string {
	if s.IsZero() {
		return ""
	}
	return s.Field + "=" + s.Value
}

// Backend 는 document store 계약.
//
//   - Count  : (collection, scope) 문서 수
//   - Current: (collection, scope) 의 현재 저장 상태 (id → 문서)
//   - Upsert : (collection, scope, id) 키로 덮어쓰기
//   - Scan   : collection 전체 순회 (export 용)
//
// 여러 worker 가 동시에 호출하므로 구현체는 goroutine-safe 해야 한다.
type Backend interface {
	Count(ctx context.Context, collection string, scope Scope) (int, error)
	Current(ctx context.Context, collection string, scope Scope) (map[string]model.Document, error)
	Upsert(ctx context.Context, doc model.Document) error
	Scan(ctx context.Context, collection string, fn func(model.Document) error) error
}
