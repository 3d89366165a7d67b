// internal/export/keys.go
package export

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// 파일명 규칙:
//
//	<unix>_<runid>_<counter>.jsonl.gz
//
// 예:
//
//	1646733600_3f9c7a1e-6b2d-4c55-9d0e-7e1a2b3c4d5e_000042.jsonl.gz
//
// 문자열 정렬 = 시간 정렬이므로 spool 재업로드 순서(오래된 것 먼저)에 그대로 쓴다.
var globalCounter uint64

// NextCounter 는 goroutine-safe 순번. 1e6 에서 0 으로 돌아간다.
func NextCounter() uint64 {
	return atomic.AddUint64(&globalCounter, 1) % 1_000_000
}

func NewFilename(now time.Time, runID string) string {
	return fmt.Sprintf("%d_%s_%06d.jsonl.gz", now.Unix(), runID, NextCounter())
}

// BuildKey
//
//	<prefix>/<collection>/<YYYY-MM-DD>/<filename>
//
// 날짜는 UTC 기준. prefix 가 비어 있으면 collection 부터 시작한다.
func BuildKey(prefix, collection string, now time.Time, filename string) string {
	return path.Join(prefix, collection, now.UTC().Format("2006-01-02"), filename)
}

// unixFromFilename 은 파일명 prefix 의 Unix seconds 를 파싱한다.
func unixFromFilename(name string) (int64, bool) {
	idx := strings.IndexByte(name, '_')
	if idx <= 0 {
		return 0, false
	}
	sec, err := strconv.ParseInt(name[:idx], 10, 64)
	if err != nil || sec <= 0 {
		return 0, false
	}
	return sec, true
}
