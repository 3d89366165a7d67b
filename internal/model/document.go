// internal/model/document.go
package model

import "time"

// document store 컬렉션 이름
const (
	CollectionClusters          = ".clusters"
	CollectionEvents            = ".events"
	CollectionComponentVersions = ".component_versions"

	// CollectionClusterEvents: 이벤트마다 cluster 스냅샷 / versions 를 붙인 문서
	CollectionClusterEvents = ".cluster_events"
)

// Collections 는 export 대상 컬렉션 목록 (고정 순서).
var Collections = []string{
	CollectionComponentVersions,
	CollectionClusters,
	CollectionEvents,
	CollectionClusterEvents,
}

// Document
// ------------------------------------------------------------
// document store 에 저장되는 단위.
// (Collection, Scope, ID) 조합당 보이는 Body 는 최대 하나.
//
// Fingerprint 는 transform(타임스탬프 등) 적용 전 내용의 해시이며
// 다음 사이클에서 "내용이 바뀌었는가" 판단에 쓰인다.
type Document struct {
	Collection  string    `json:"collection"`
	Scope       string    `json:"scope,omitempty"`
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	Body        Record    `json:"body"`
	WrittenAt   time.Time `json:"written_at"`
}
