// internal/export/exporter.go
package export

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync/atomic"
	"time"

	"events-scrape/internal/metrics"
	"events-scrape/internal/model"

	"github.com/rs/zerolog/log"
)

// Scanner 는 collection 전체를 순회한다. (store.Backend)
type Scanner interface {
	Scan(ctx context.Context, collection string, fn func(model.Document) error) error
}

// Exporter
// ------------------------------------------------------------
// 변경이 있었던 사이클 뒤에 collection 마다 오브젝트 1개를 만든다.
//
//  1. spool 에 남은 이전 실패분을 먼저 재업로드
//  2. collection 전체 scan → JSONL + gzip
//  3. S3 업로드, 실패하면 spool 에 보관 (다음 export 에서 재시도)
//
// 한 collection 실패가 다른 collection export 를 막지 않는다.
type Exporter struct {
	scanner  Scanner
	uploader Uploader
	spool    *Spool
	encoder  *Encoder
	prefix   string
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewExporter 는 spool 이 nil 이면 업로드 실패분을 보관하지 않는다.
func NewExporter(scanner Scanner, uploader Uploader, spool *Spool, prefix string, m *metrics.Metrics) *Exporter {
	if m == nil {
		m = metrics.New()
	}
	return &Exporter{
		scanner:  scanner,
		uploader: uploader,
		spool:    spool,
		encoder:  NewEncoder(),
		prefix:   prefix,
		metrics:  m,
		now:      time.Now,
	}
}

func (e *Exporter) Export(ctx context.Context, runID string, collections []string) error {
	// --- 1) spool drain ---
	if e.spool != nil {
		n, err := e.spool.Drain(ctx)
		if err != nil {
			log.Warn().Err(err).Int("reuploaded", n).Msg("spool drain stopped")
		} else if n > 0 {
			log.Info().Int("reuploaded", n).Msg("spool drained")
		}
	}

	var errs []error
	for _, c := range collections {
		if err := e.exportCollection(ctx, runID, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Exporter) exportCollection(ctx context.Context, runID, collection string) error {
	// --- 2) scan + encode ---
	var docs []model.Document
	if err := e.scanner.Scan(ctx, collection, func(d model.Document) error {
		docs = append(docs, d)
		return nil
	}); err != nil {
		return fmt.Errorf("export: scan %s: %w", collection, err)
	}
	if len(docs) == 0 {
		return nil
	}

	data, err := e.encoder.EncodeJSONLGZ(docs)
	if err != nil {
		return fmt.Errorf("export: encode %s: %w", collection, err)
	}

	now := e.now()
	key := BuildKey(e.prefix, collection, now, NewFilename(now, runID))

	// --- 3) upload / spool ---
	if err := e.uploader.UploadBytes(ctx, key, data); err != nil {
		if e.spool == nil {
			return fmt.Errorf("export: upload %s: %w", key, err)
		}
		if serr := e.spool.Save(key, data, len(docs)); serr != nil {
			return fmt.Errorf("export: upload %s: %w", key, errors.Join(err, serr))
		}
		return nil
	}

	atomic.AddInt64(&e.metrics.ExportObjectsTotal, 1)
	atomic.AddInt64(&e.metrics.ExportDocumentsTotal, int64(len(docs)))
	log.Info().Str("key", key).Int("documents", len(docs)).Msg("collection exported")
	return nil
}

// InvalidPrefix 는 검증 실패한 spool 파일을 올릴 기본 위치.
func InvalidPrefix(prefix string) string {
	return path.Join(prefix, "_invalid")
}
