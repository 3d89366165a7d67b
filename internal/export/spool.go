// internal/export/spool.go
package export

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"events-scrape/internal/metrics"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
)

const metaSuffix = ".meta.json"

// Uploader 는 Spool / Exporter 가 쓰는 업로드 계약. (*S3Uploader)
type Uploader interface {
	UploadBytes(ctx context.Context, key string, body []byte) error
	UploadFile(ctx context.Context, key string, f io.ReadSeeker, size int64) error
}

// spoolMeta 는 data 파일 옆 .meta.json 에 기록된다.
type spoolMeta struct {
	Key       string `json:"key"`
	Documents int    `json:"documents"`
}

// SpoolOptions 는 spool 보존 정책.
type SpoolOptions struct {
	Dir          string
	MaxAge       time.Duration // 0 이면 TTL 없음
	MaxSizeBytes int64         // 0 이면 용량 제한 없음

	// InvalidPrefix 는 gzip/JSON 검증에 실패한 파일을 올릴 key prefix.
	InvalidPrefix string
}

// Spool
// ------------------------------------------------------------
// 업로드에 실패한 export 오브젝트를 로컬 디스크에 보관하고,
// 다음 export 때 오래된 것부터 다시 올린다.
//
//   - TTL 판단은 파일명 prefix 의 Unix timestamp 기준
//   - 용량 초과 시 가장 오래된 파일부터 삭제
//   - 원래 S3 key 는 .meta.json 에 보관
type Spool struct {
	opts     SpoolOptions
	uploader Uploader
	metrics  *metrics.Metrics
	now      func() time.Time

	// Save / Drain 이 같은 디렉토리를 다루므로 직렬화한다
	mu        sync.Mutex
	sizeBytes int64
}

// NewSpool 은 디렉토리를 만들고, 기존 파일을 스캔해 크기/개수 gauge 를 복원한다.
// data 없이 남은 meta 파일(orphan)은 이때 정리한다.
func NewSpool(opts SpoolOptions, uploader Uploader, m *metrics.Metrics) (*Spool, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: spool dir %s: %w", opts.Dir, err)
	}
	if m == nil {
		m = metrics.New()
	}
	s := &Spool{opts: opts, uploader: uploader, metrics: m, now: time.Now}

	entries, err := os.ReadDir(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("export: spool scan %s: %w", opts.Dir, err)
	}

	var total, count int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, metaSuffix) {
			dataName := strings.TrimSuffix(name, metaSuffix)
			if _, err := os.Stat(filepath.Join(opts.Dir, dataName)); errors.Is(err, os.ErrNotExist) {
				_ = os.Remove(filepath.Join(opts.Dir, name))
			}
			continue
		}
		if info, err := e.Info(); err == nil {
			total += info.Size()
			count++
		}
	}

	s.sizeBytes = total
	atomic.StoreInt64(&m.SpoolSizeBytes, total)
	atomic.StoreInt64(&m.SpoolFilesCurrent, count)
	return s, nil
}

// Save 는 업로드 실패한 오브젝트를 보관한다.
// 용량 정책상 공간을 만들 수 없으면 버리고 ErrSpoolFull 을 반환한다.
func (s *Spool) Save(key string, data []byte, documents int) error {
	if len(data) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	size := int64(len(data))
	if !s.ensureCapacity(size) {
		log.Error().Str("key", key).Int64("bytes", size).Int("documents", documents).Msg("spool full, object dropped")
		return ErrSpoolFull
	}

	name := path.Base(key)
	dataPath := filepath.Join(s.opts.Dir, name)

	if err := os.WriteFile(dataPath, data, 0o600); err != nil {
		return fmt.Errorf("export: spool write %s: %w", name, err)
	}
	meta, err := json.Marshal(spoolMeta{Key: key, Documents: documents})
	if err != nil {
		return err
	}
	if err := os.WriteFile(dataPath+metaSuffix, meta, 0o600); err != nil {
		_ = os.Remove(dataPath)
		return fmt.Errorf("export: spool meta %s: %w", name, err)
	}

	s.sizeBytes += size
	atomic.AddInt64(&s.metrics.SpoolSizeBytes, size)
	atomic.AddInt64(&s.metrics.SpoolFilesCurrent, 1)

	log.Warn().Str("key", key).Int("documents", documents).Msg("export object spooled for retry")
	return nil
}

// ErrSpoolFull 은 용량 정책 때문에 오브젝트를 보관하지 못했을 때.
var ErrSpoolFull = errors.New("export: spool full")

// Drain 은 spool 파일을 오래된 것부터 재업로드한다.
// 업로드가 한 번 실패하면 (S3 장애로 보고) 남은 파일은 다음 export 로 미룬다.
// 반환값은 재업로드에 성공한 파일 수.
func (s *Spool) Drain(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	uploaded := 0
	for _, name := range s.listOldestFirst() {
		if err := ctx.Err(); err != nil {
			return uploaded, err
		}
		ok, err := s.processOne(ctx, name)
		if err != nil {
			return uploaded, err
		}
		if ok {
			uploaded++
		}
	}
	return uploaded, nil
}

// processOne 은 파일 하나를 TTL 검사 후 재업로드한다.
// (true, nil) = 업로드 후 삭제, (false, nil) = 만료/유실로 정리, err = 업로드 실패.
func (s *Spool) processOne(ctx context.Context, name string) (bool, error) {
	dataPath := filepath.Join(s.opts.Dir, name)
	metaPath := dataPath + metaSuffix

	info, err := os.Stat(dataPath)
	if err != nil {
		_ = os.Remove(metaPath)
		return false, nil
	}
	size := info.Size()

	// --- TTL ---
	if s.opts.MaxAge > 0 {
		if sec, ok := unixFromFilename(name); ok {
			age := s.now().Sub(time.Unix(sec, 0))
			if age > s.opts.MaxAge {
				s.remove(name, size)
				atomic.AddInt64(&s.metrics.SpoolFilesExpiredTotal, 1)
				log.Info().Str("file", name).Dur("age", age).Msg("spool file expired")
				return false, nil
			}
		}
	}

	f, err := os.Open(dataPath)
	if err != nil {
		return false, fmt.Errorf("export: spool open %s: %w", name, err)
	}
	defer f.Close()

	key := s.keyFor(name, metaPath, validate(f, size))
	if err := s.uploader.UploadFile(ctx, key, f, size); err != nil {
		return false, fmt.Errorf("export: spool reupload %s: %w", key, err)
	}

	s.remove(name, size)
	atomic.AddInt64(&s.metrics.SpoolReuploadedTotal, 1)
	log.Info().Str("key", key).Msg("spooled object reuploaded")
	return true, nil
}

// keyFor 는 원래 key 를 meta 에서 읽는다.
// 파일이 깨졌거나 meta 가 없으면 InvalidPrefix 아래로 보낸다.
func (s *Spool) keyFor(name, metaPath string, valid bool) string {
	if valid {
		if raw, err := os.ReadFile(metaPath); err == nil {
			var m spoolMeta
			if json.Unmarshal(raw, &m) == nil && m.Key != "" {
				return m.Key
			}
		}
	}
	return path.Join(s.opts.InvalidPrefix, name)
}

// ensureCapacity 는 MaxSizeBytes 를 넘지 않도록 오래된 파일부터 삭제한다.
// 더 지울 파일이 없으면 false.
func (s *Spool) ensureCapacity(incoming int64) bool {
	limit := s.opts.MaxSizeBytes
	if limit <= 0 {
		return true
	}
	if incoming > limit {
		return false
	}
	for s.sizeBytes+incoming > limit {
		files := s.listOldestFirst()
		if len(files) == 0 {
			return false
		}
		oldest := files[0]
		var size int64
		if info, err := os.Stat(filepath.Join(s.opts.Dir, oldest)); err == nil {
			size = info.Size()
		}
		s.remove(oldest, size)
		atomic.AddInt64(&s.metrics.SpoolFilesExpiredTotal, 1)
		log.Warn().Str("file", oldest).Msg("spool capacity reached, oldest file removed")
	}
	return true
}

func (s *Spool) remove(name string, size int64) {
	dataPath := filepath.Join(s.opts.Dir, name)
	_ = os.Remove(dataPath)
	_ = os.Remove(dataPath + metaSuffix)

	s.sizeBytes -= size
	atomic.AddInt64(&s.metrics.SpoolSizeBytes, -size)
	atomic.AddInt64(&s.metrics.SpoolFilesCurrent, -1)
}

// listOldestFirst 는 data 파일명을 정렬해 돌려준다.
// ReadDir 순서는 보장되지 않으므로 반드시 정렬한다 (파일명 정렬 = 시간 정렬).
func (s *Spool) listOldestFirst() []string {
	entries, err := os.ReadDir(s.opts.Dir)
	if err != nil {
		return nil
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasSuffix(name, metaSuffix) || name == "" || name[0] == '.' {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)
	return files
}

// validate 는 gzip 을 풀어 첫 JSONL 라인이 유효한 JSON 인지 검사한다.
func validate(f *os.File, size int64) bool {
	if size <= 0 {
		return false
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		return false
	}
	defer gz.Close()

	line, err := bufio.NewReader(gz).ReadBytes('\n')
	if err != nil && err != io.EOF {
		return false
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return false
	}
	var tmp map[string]any
	return json.Unmarshal(line, &tmp) == nil
}
