// internal/export/s3_uploader.go
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"events-scrape/internal/config"
	"events-scrape/internal/metrics"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfgLib "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// PutObjectAPI 는 *s3.Client 중 업로더가 쓰는 부분. 테스트에서 fake 로 교체한다.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader 는 export 오브젝트 업로드를 담당한다.
//
//   - 메모리 바이트 업로드 (UploadBytes)
//   - spool 파일 업로드 (UploadFile)
//
// SDK 내부 retry 는 끄고, 여기서 시도 횟수 / backoff 를 직접 제어한다.
type S3Uploader struct {
	client  PutObjectAPI
	bucket  string
	timeout time.Duration
	retries int
	metrics *metrics.Metrics

	backoff    time.Duration
	maxBackoff time.Duration
}

// NewS3Uploader 는 AWS 기본 credential chain 으로 client 를 만든다.
// S3Endpoint 가 있으면 minio 같은 S3 호환 스토리지로 path-style 접근한다.
func NewS3Uploader(ctx context.Context, cfg config.Config, m *metrics.Metrics) (*S3Uploader, error) {
	awsCfg, err := awsCfgLib.LoadDefaultConfig(ctx, awsCfgLib.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("export: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.RetryMaxAttempts = 0
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Uploader(client, cfg.S3Bucket, cfg.S3Timeout, cfg.S3AppRetries, m), nil
}

func newS3Uploader(client PutObjectAPI, bucket string, timeout time.Duration, retries int, m *metrics.Metrics) *S3Uploader {
	if retries < 1 {
		retries = 1
	}
	if m == nil {
		m = metrics.New()
	}
	return &S3Uploader{
		client:     client,
		bucket:     bucket,
		timeout:    timeout,
		retries:    retries,
		metrics:    m,
		backoff:    200 * time.Millisecond,
		maxBackoff: 2 * time.Second,
	}
}

// UploadBytes 는 gzip+JSONL 바이트를 업로드한다.
// body reader 는 시도마다 새로 만든다.
func (u *S3Uploader) UploadBytes(ctx context.Context, key string, body []byte) error {
	return u.withRetry(ctx, key, func() error {
		return u.putObject(ctx, key, bytes.NewReader(body), int64(len(body)))
	})
}

// UploadFile 은 spool 파일을 업로드한다. 재시도 전에 Seek(0) 으로 되감는다.
func (u *S3Uploader) UploadFile(ctx context.Context, key string, f io.ReadSeeker, size int64) error {
	return u.withRetry(ctx, key, func() error {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		return u.putObject(ctx, key, f, size)
	})
}

func (u *S3Uploader) withRetry(ctx context.Context, key string, put func() error) error {
	var lastErr error
	backoff := u.backoff

	for attempt := 1; attempt <= u.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := put()
		if err == nil {
			return nil
		}
		lastErr = err
		atomic.AddInt64(&u.metrics.S3PutErrorsTotal, 1)
		log.Warn().Err(err).Str("key", key).Int("attempt", attempt).Msg("s3 put failed")

		if attempt == u.retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > u.maxBackoff {
				backoff = u.maxBackoff
			}
		}
	}
	return lastErr
}

// putObject 는 PutObject 1회 호출. 시도마다 S3Timeout 을 적용한다.
func (u *S3Uploader) putObject(ctx context.Context, key string, body io.Reader, size int64) error {
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(u.bucket),
		Key:             aws.String(key),
		Body:            body,
		ContentLength:   aws.Int64(size),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("gzip"),
	})
	return err
}
