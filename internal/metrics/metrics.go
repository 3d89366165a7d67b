package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics 는 스크레이퍼 상태를 나타내는 카운터 모음이다.
// 모든 필드는 sync/atomic 으로만 읽고 쓴다.
type Metrics struct {
	// ======================
	// 클러스터(태스크) 레벨 지표
	// ======================

	// ClustersSubmittedTotal
	// - worker pool 에 제출된 클러스터 태스크 수.
	ClustersSubmittedTotal int64

	// ClustersProcessedTotal
	// - fetch → normalize → store 까지 끝까지 성공한 클러스터 수.
	ClustersProcessedTotal int64

	// ClustersFailedTotal
	// - 태스크 경계에서 에러(또는 panic)로 중단된 클러스터 수.
	// - ErrorsTotal 과 달리 클러스터 단위로만 센다.
	ClustersFailedTotal int64

	// ClustersCancelledTotal
	// - shutdown 시점에 아직 시작하지 않아 취소된 태스크 수.
	ClustersCancelledTotal int64

	// ErrorsTotal
	// - ErrorSink 로 보고된 예상치 못한 에러 수.
	// - 0 보다 크면 사이클은 끝났어도 외부 알림 대상이다.
	ErrorsTotal int64

	// ======================
	// Inventory fetch 지표
	// ======================

	// FetchRetriesTotal
	// - transient 에러로 인해 수행된 "재시도" 횟수 (첫 시도 제외).
	FetchRetriesTotal int64

	// FetchNotFoundTotal
	// - 404 로 인해 빈 결과로 대체된 호출 수 (삭제된 클러스터).
	FetchNotFoundTotal int64

	// ======================
	// Document store 지표
	// ======================

	// DocumentsWrittenTotal
	// - 내용이 바뀌어 실제 upsert 된 문서 수.
	DocumentsWrittenTotal int64

	// DocumentsUnchangedTotal
	// - 저장된 내용과 동일해서 건너뛴 문서 수.
	DocumentsUnchangedTotal int64

	// DocumentWriteErrorsTotal
	// - upsert 실패 수. 배치의 나머지 문서는 계속 시도된다.
	DocumentWriteErrorsTotal int64

	// DedupCacheHitsTotal
	// - fingerprint LRU 로 store 조회 자체를 생략한 배치 수.
	DedupCacheHitsTotal int64

	// ======================
	// Export / S3 지표
	// ======================

	ExportObjectsTotal   int64 // 업로드 성공한 오브젝트 수
	ExportDocumentsTotal int64 // 업로드된 오브젝트에 포함된 문서 수
	S3PutErrorsTotal     int64 // PutObject 실패 시도 횟수 (retry 마다 증가)

	// ======================
	// Spool (로컬 재업로드 대기열) 지표
	// ======================

	SpoolFilesCurrent      int64 // gauge
	SpoolSizeBytes         int64 // gauge
	SpoolFilesExpiredTotal int64 // TTL/용량 정책으로 삭제된 파일 수
	SpoolReuploadedTotal   int64 // 재업로드 성공 파일 수

	// ======================
	// Telemetry
	// ======================

	TelemetryForwardErrorsTotal int64 // 예외 telemetry 전송 실패 수
}

func New() *Metrics {
	return &Metrics{}
}

// snapshot 은 이름 → (값, gauge 여부) 목록을 고정된 순서로 반환한다.
// String() 과 Prometheus collector 가 같은 목록을 공유한다.
func (m *Metrics) snapshot() []sample {
	return []sample{
		{"clusters_submitted_total", atomic.LoadInt64(&m.ClustersSubmittedTotal), false},
		{"clusters_processed_total", atomic.LoadInt64(&m.ClustersProcessedTotal), false},
		{"clusters_failed_total", atomic.LoadInt64(&m.ClustersFailedTotal), false},
		{"clusters_cancelled_total", atomic.LoadInt64(&m.ClustersCancelledTotal), false},
		{"errors_total", atomic.LoadInt64(&m.ErrorsTotal), false},

		{"fetch_retries_total", atomic.LoadInt64(&m.FetchRetriesTotal), false},
		{"fetch_not_found_total", atomic.LoadInt64(&m.FetchNotFoundTotal), false},

		{"documents_written_total", atomic.LoadInt64(&m.DocumentsWrittenTotal), false},
		{"documents_unchanged_total", atomic.LoadInt64(&m.DocumentsUnchangedTotal), false},
		{"document_write_errors_total", atomic.LoadInt64(&m.DocumentWriteErrorsTotal), false},
		{"dedup_cache_hits_total", atomic.LoadInt64(&m.DedupCacheHitsTotal), false},

		{"export_objects_total", atomic.LoadInt64(&m.ExportObjectsTotal), false},
		{"export_documents_total", atomic.LoadInt64(&m.ExportDocumentsTotal), false},
		{"s3_put_errors_total", atomic.LoadInt64(&m.S3PutErrorsTotal), false},

		{"spool_files_current", atomic.LoadInt64(&m.SpoolFilesCurrent), true},
		{"spool_size_bytes", atomic.LoadInt64(&m.SpoolSizeBytes), true},
		{"spool_files_expired_total", atomic.LoadInt64(&m.SpoolFilesExpiredTotal), false},
		{"spool_reuploaded_total", atomic.LoadInt64(&m.SpoolReuploadedTotal), false},

		{"telemetry_forward_errors_total", atomic.LoadInt64(&m.TelemetryForwardErrorsTotal), false},
	}
}

type sample struct {
	name  string
	value int64
	gauge bool
}

func (m *Metrics) String() string {
	var sb strings.Builder
	sb.Grow(512)

	for _, s := range m.snapshot() {
		fmt.Fprintf(&sb, "%s=%d\n", s.name, s.value)
	}
	return sb.String()
}
