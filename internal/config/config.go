// internal/config/config.go
package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config
//
// 스크레이퍼 실행 시 필요한 모든 환경 변수 값을 보관하는 구조체.
// 모든 값은 프로세스 시작 시점에 Load() 에 의해 초기화되며,
// 이후에는 변경되지 않는 불변(read-only) 설정들이다.
type Config struct {

	// ---------------------------
	// 서비스 식별자 / 로깅
	// ---------------------------

	ServiceName string // 로그에 붙는 서비스 이름 (예: events-scrape)
	InstanceID  string // 프로세스 고유 ID (호스트명 기반, 실패 시 랜덤 hex)
	LogLevel    string // zerolog 레벨 (debug/info/warn/error)
	LogPretty   bool   // true 면 ConsoleWriter, false 면 JSON
	LogSampleN  uint32 // Debug/Info 샘플링 비율 (1/N), 0·1 이면 샘플링 없음
	HTTPAddr    string // 운영용 HTTP(/health, /metrics) bind 주소

	// ---------------------------
	// Inventory API
	// ---------------------------

	InventoryURL     string        // assisted inventory API base URL
	InventoryToken   string        // Bearer 토큰 (없으면 헤더 생략)
	InventoryTimeout time.Duration // 단일 HTTP 호출 timeout

	// ---------------------------
	// 스크레이프 파이프라인
	// ---------------------------

	MaxWorkers          int           // 동시에 처리하는 클러스터 수
	EventCategories     []string      // 이벤트 조회 시 카테고리 필터
	ClusterIgnoreFields []string      // 클러스터 checksum 계산 시 제외할 경로 (a.b.c, * 허용)
	ScrapeInterval      time.Duration // run 모드에서 사이클 간 간격

	// ---------------------------
	// Retry 정책 (inventory 호출)
	// ---------------------------

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RetryJitter    time.Duration

	// ---------------------------
	// Document store
	// ---------------------------

	StorePath      string // SQLite 파일 경로 (":memory:" 가능)
	DedupCacheSize int    // fingerprint LRU 크기, 0 이면 비활성

	// ---------------------------
	// S3 export
	// ---------------------------
	// S3Bucket 이 비어 있으면 export 단계 자체를 건너뛴다.
	// SDK retry 는 코드에서 0 으로 고정하고 S3AppRetries 만 사용한다.

	S3Bucket     string
	S3Prefix     string
	S3Endpoint   string // minio 등 S3 호환 endpoint (path-style)
	AWSRegion    string
	S3Timeout    time.Duration
	S3AppRetries int

	// ---------------------------
	// 로컬 spool (export 업로드 실패분)
	// ---------------------------

	SpoolDir          string
	SpoolMaxAge       time.Duration
	SpoolMaxSizeBytes int64

	// ---------------------------
	// 예외 telemetry (NATS)
	// ---------------------------

	NATSURL           string // 비어 있으면 forward 하지 않는다
	NATSErrorsSubject string
}

// ExportEnabled 는 S3 export 단계 활성 여부.
func (c Config) ExportEnabled() bool {
	return c.S3Bucket != ""
}

// Load
//
// 환경 변수 기반으로 Config 값을 초기화한다.
// 필수 env 가 비어있으면 즉시 프로세스를 종료(fail-fast).
func Load() Config {
	return Config{
		ServiceName: envOr("SERVICE_NAME", "events-scrape"),
		InstanceID:  fallbackInstanceID(),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		LogPretty:   envBoolOr("LOG_PRETTY", false),
		LogSampleN:  uint32(envIntOr("LOG_SAMPLE_N", 0)),
		HTTPAddr:    envOr("HTTP_ADDR", ":8080"),

		InventoryURL:     must("INVENTORY_URL"),
		InventoryToken:   os.Getenv("INVENTORY_TOKEN"),
		InventoryTimeout: envDurOr("INVENTORY_TIMEOUT", 30*time.Second),

		MaxWorkers:          envIntOr("MAX_WORKERS", 5),
		EventCategories:     envListOr("EVENT_CATEGORIES", []string{"user", "metrics"}),
		ClusterIgnoreFields: envListOr("CLUSTER_EVENTS_IGNORE_FIELDS", nil),
		ScrapeInterval:      envDurOr("SCRAPE_INTERVAL", 5*time.Minute),

		RetryAttempts:  envIntOr("RETRY_ATTEMPTS", 3),
		RetryBaseDelay: envDurOr("RETRY_BASE_DELAY", time.Second),
		RetryMaxDelay:  envDurOr("RETRY_MAX_DELAY", 4*time.Second),
		RetryJitter:    envDurOr("RETRY_JITTER", time.Second),

		StorePath:      must("STORE_PATH"),
		DedupCacheSize: envIntOr("DEDUP_CACHE_SIZE", 10000),

		S3Bucket:     os.Getenv("S3_BUCKET"),
		S3Prefix:     os.Getenv("S3_PREFIX"),
		S3Endpoint:   os.Getenv("S3_ENDPOINT"),
		AWSRegion:    envOr("AWS_REGION", "us-east-1"),
		S3Timeout:    envDurOr("S3_TIMEOUT", 10*time.Second),
		S3AppRetries: envIntOr("S3_APP_RETRIES", 3),

		SpoolDir:          envOr("SPOOL_DIR", "/tmp/events-scrape-spool"),
		SpoolMaxAge:       envDurOr("SPOOL_MAX_AGE", 72*time.Hour),
		SpoolMaxSizeBytes: envInt64Or("SPOOL_MAX_SIZE_BYTES", 512<<20),

		NATSURL:           os.Getenv("NATS_URL"),
		NATSErrorsSubject: envOr("NATS_ERRORS_SUBJECT", "events-scrape.errors"),
	}
}

// must / mustInt / mustInt64 / mustDur
//
// 필수 환경변수가 없거나 형식이 잘못되면 즉시 로그 출력 후 종료(fail-fast).
func must(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("missing required env: %s", key)
	}
	return v
}

func mustInt(key string) int {
	v := must(key)
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int env %s=%q: %v", key, v, err)
	}
	return n
}

func mustInt64(key string) int64 {
	v := must(key)
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Fatalf("invalid int64 env %s=%q: %v", key, v, err)
	}
	return n
}

func mustDur(key string) time.Duration {
	v := must(key)
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration env %s=%q: %v", key, v, err)
	}
	return d
}

// envOr / envIntOr / envInt64Or / envDurOr / envBoolOr / envListOr
//
// 선택 환경변수. 비어 있으면 기본값을 쓰고,
// 값이 있는데 형식이 틀리면 must* 와 동일하게 fail-fast.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if os.Getenv(key) == "" {
		return def
	}
	return mustInt(key)
}

func envInt64Or(key string, def int64) int64 {
	if os.Getenv(key) == "" {
		return def
	}
	return mustInt64(key)
}

func envDurOr(key string, def time.Duration) time.Duration {
	if os.Getenv(key) == "" {
		return def
	}
	return mustDur(key)
}

func envBoolOr(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("invalid bool env %s=%q: %v", key, v, err)
	}
	return b
}

// envListOr 는 "a, b,,c" → [a b c] 로 파싱한다.
func envListOr(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// fallbackInstanceID
//
// 이 스크레이퍼 인스턴스를 식별하는 고유 값.
//   - 기본: hostname (pod 이름 형태로 고유)
//   - fallback: 12자리 랜덤 hex
func fallbackInstanceID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	var b [6]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
