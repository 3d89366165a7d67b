package pool

import (
	"bytes"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// ---------------------------------------------------------------
// Pool 구성 목적
//
// 스크레이퍼는 사이클마다 클러스터 수 × (hosts, events, versions)
// 만큼 inventory 응답을 읽고, export 때는 collection 전체를
// JSONL + gzip 으로 다시 직렬화한다.
//
// 아래 Pool 들은 그 두 구간의 버퍼 / gzip.Writer 할당을 재사용한다.
// ---------------------------------------------------------------

var (
	// BodyPool:
	//   - inventory 응답 body 를 읽어 두는 버퍼
	//   - 초기 용량 64KB (이벤트 목록 한 페이지 정도)
	//   - MaxBodyCap 보다 커진 버퍼는 재사용하지 않음
	BodyPool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 0, 64*1024))
		},
	}

	// BufferPool:
	//   - export 시 gzip 결과를 담는 임시 버퍼
	//   - 초기 용량 256KB
	//   - MaxBufferCap 초과 버퍼는 풀에 넣지 않음
	BufferPool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 0, 256*1024))
		},
	}

	// GzipPool:
	//   - gzip.Writer 재사용 (매번 new 하면 비용 매우 큼)
	//   - BestSpeed: export 는 사이클 안에서 끝나야 하므로 속도 우선
	GzipPool = sync.Pool{
		New: func() any {
			w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
			return w
		},
	}
)

const (
	// Pool 에 되돌려줄 최대 용량. 이보다 큰 버퍼는 GC 에게 맡긴다.
	MaxBodyCap   = 4 * 1024 * 1024  // 4MB
	MaxBufferCap = 16 * 1024 * 1024 // 16MB
)

// GetBody 는 비어 있는 body 버퍼를 꺼낸다.
func GetBody() *bytes.Buffer {
	buf := BodyPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBody:
//   - BodyPool 에 buf 를 반환할지 결정.
//   - 대형 클러스터 응답으로 커진 버퍼를 계속 들고 있지 않도록 MaxBodyCap 으로 제한.
func PutBody(buf *bytes.Buffer) {
	if buf.Cap() <= MaxBodyCap {
		buf.Reset()
		BodyPool.Put(buf)
	}
}

// PutBuffer:
//   - gzip 결과 버퍼 반환
//   - MaxBufferCap 이하만 재사용
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() <= MaxBufferCap {
		buf.Reset()
		BufferPool.Put(buf)
	}
}
