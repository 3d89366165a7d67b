// internal/logger/log.go
package logger

import (
	"io"
	"os"
	"strings"

	"events-scrape/internal/config"

	stdlog "log"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Init
//
// 프로세스 시작 시 한 번만 호출한다.
// New() 로 만든 로거를 전역 zerolog 로거로 교체하고,
// 표준 라이브러리 log 출력도 zerolog 로 돌린다.
//
// 사용 예:
//
//	logger.Init(cfg)
//	log.Info().Str("cluster_id", id).Msg("cluster stored")
func Init(cfg config.Config) {
	var w io.Writer = os.Stdout
	if cfg.LogPretty {
		// 로컬 개발: 색상 + 시간만 표시
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	zlog.Logger = New(cfg, w)

	// zerolog 가 시간을 찍으므로 표준 log 의 prefix 는 제거
	stdlog.SetFlags(0)
	stdlog.SetOutput(zlog.Logger)
}

// New
//
// 설정에 맞는 zerolog.Logger 를 만든다. (출력 대상은 호출자가 결정)
//
//  1. 레벨: LOG_LEVEL 파싱 실패 시 info
//  2. 공통 필드: service / instance
//  3. 샘플링: LOG_SAMPLE_N > 1 이면 Debug/Info 만 1/N 기록
//     Warn/Error 는 샘플링하지 않는다. 클러스터 실패 로그는 전부 남아야 한다.
func New(cfg config.Config, w io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel))); err == nil && cfg.LogLevel != "" {
		level = l
	}
	zerolog.SetGlobalLevel(level)

	base := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("instance", cfg.InstanceID).
		Logger()

	if cfg.LogSampleN > 1 {
		return base.Sample(&zerolog.LevelSampler{
			DebugSampler: &zerolog.BasicSampler{N: cfg.LogSampleN},
			InfoSampler:  &zerolog.BasicSampler{N: cfg.LogSampleN},
		})
	}
	return base
}
