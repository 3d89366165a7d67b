// internal/export/encoder.go
package export

import (
	"bytes"
	"time"

	"events-scrape/internal/model"
	"events-scrape/internal/pool"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// Line 은 export 오브젝트의 JSONL 한 줄.
// 검색엔진 bulk 포맷과 비슷하게 메타 필드는 '_' prefix 로 둔다.
type Line struct {
	ID        string       `json:"_id"`
	Scope     string       `json:"_scope,omitempty"`
	WrittenAt time.Time    `json:"_written_at"`
	Source    model.Record `json:"_source"`
}

// Encoder 는 문서 목록을 JSONL → gzip 으로 직렬화한다.
//
//   - goccy/go-json encoder 를 gzip writer 에 직결
//   - bytes.Buffer / gzip.Writer 는 pool 에서 재사용
//   - 결과는 새 []byte 로 복사해 호출자에게 소유권을 넘긴다
type Encoder struct{}

func NewEncoder() *Encoder {
	return &Encoder{}
}

func (e *Encoder) EncodeJSONLGZ(docs []model.Document) ([]byte, error) {
	// 1) 결과 버퍼 / gzip writer 를 pool 에서 가져온다
	buf := pool.BufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	gz := pool.GzipPool.Get().(*gzip.Writer)
	gz.Reset(buf)

	// 2) 문서마다 한 줄씩 인코딩
	enc := json.NewEncoder(gz)
	for _, d := range docs {
		line := Line{ID: d.ID, Scope: d.Scope, WrittenAt: d.WrittenAt.UTC(), Source: d.Body}
		if err := enc.Encode(line); err != nil {
			_ = gz.Close()
			pool.GzipPool.Put(gz)
			pool.PutBuffer(buf)
			return nil, err
		}
	}

	// 3) gzip footer flush
	if err := gz.Close(); err != nil {
		pool.GzipPool.Put(gz)
		pool.PutBuffer(buf)
		return nil, err
	}
	pool.GzipPool.Put(gz)

	// 4) pool 버퍼는 재사용되므로 복사본을 반환
	raw := buf.Bytes()
	data := make([]byte, len(raw))
	copy(data, raw)
	pool.PutBuffer(buf)

	return data, nil
}
