package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"events-scrape/internal/canonical"
	"events-scrape/internal/config"
	"events-scrape/internal/errsink"
	"events-scrape/internal/export"
	"events-scrape/internal/inventory"
	"events-scrape/internal/logger"
	"events-scrape/internal/metrics"
	"events-scrape/internal/server"
	"events-scrape/internal/store"
	"events-scrape/internal/worker"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("events-scrape terminated")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "events-scrape",
		Short: "Scrape cluster events from the assisted inventory API",
		Long: `events-scrape periodically reads clusters, hosts, events and component
versions from the assisted inventory API and stores only the documents that
changed since the previous cycle. Changed cycles are exported to S3.

Commands:
  run    Scrape every SCRAPE_INTERVAL until SIGTERM / SIGINT
  once   Run a single scrape cycle and exit`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newOnceCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape continuously until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if interval > 0 {
				cfg.ScrapeInterval = interval
			}
			return runLoop(cfg)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "override SCRAPE_INTERVAL")
	return cmd
}

func newOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single scrape cycle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(config.Load())
		},
	}
}

// app 은 한 프로세스에서 공유하는 컴포넌트 묶음.
type app struct {
	cfg     config.Config
	metrics *metrics.Metrics
	backend *store.SQLiteBackend
	sink    *errsink.Sink
	manager *worker.Manager

	closers []func() error
}

// ====================================================================
// 컴포넌트 조립
// ====================================================================
//
// 순서:
//  1. document store (열기 + Ping). 실패하면 프로세스 전체를 중단한다.
//  2. 예외 telemetry (NATS, 선택). 연결 실패는 경고 후 로그만 남긴다.
//  3. inventory client + retry 정책 + fetcher
//  4. change-aware store / canonicalizer / worker pool
//  5. S3 export (S3_BUCKET 이 있을 때만)
// ====================================================================
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New()}

	// --- 1) store ---
	backend, err := store.OpenSQLite(ctx, cfg.StorePath)
	if err != nil {
		return nil, err
	}
	a.backend = backend
	a.closers = append(a.closers, backend.Close)
	if err := backend.Ping(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("store unreachable: %w", err)
	}

	// --- 2) telemetry ---
	var fwd errsink.Forwarder
	if cfg.NATSURL != "" {
		nf, err := errsink.DialNATS(cfg.NATSURL, cfg.NATSErrorsSubject, cfg.ServiceName+"-"+cfg.InstanceID)
		if err != nil {
			log.Warn().Err(err).Msg("exception telemetry disabled")
		} else {
			fwd = nf
			a.closers = append(a.closers, nf.Close)
		}
	}
	a.sink = errsink.New(a.metrics, fwd, cfg.InstanceID)

	// --- 3) inventory ---
	policy := inventory.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.RetryAttempts
	policy.BaseDelay = cfg.RetryBaseDelay
	policy.MaxDelay = cfg.RetryMaxDelay
	policy.Jitter = cfg.RetryJitter

	client := inventory.NewHTTPClient(cfg.InventoryURL, cfg.InventoryToken, cfg.InventoryTimeout)
	fetcher := inventory.NewFetcher(client, policy, cfg.EventCategories, a.metrics)

	// --- 4) pipeline ---
	canon := canonical.New(canonical.ParseFieldMask(cfg.ClusterIgnoreFields))
	changes := store.NewChangeAwareStore(backend, a.metrics, cfg.DedupCacheSize)
	pool := worker.NewPool(cfg.MaxWorkers, worker.NewPipeline(fetcher, changes, canon), a.sink, a.metrics)

	// --- 5) export ---
	var exp worker.Exporter
	if cfg.ExportEnabled() {
		uploader, err := export.NewS3Uploader(ctx, cfg, a.metrics)
		if err != nil {
			a.close()
			return nil, err
		}
		spool, err := export.NewSpool(export.SpoolOptions{
			Dir:           cfg.SpoolDir,
			MaxAge:        cfg.SpoolMaxAge,
			MaxSizeBytes:  cfg.SpoolMaxSizeBytes,
			InvalidPrefix: export.InvalidPrefix(cfg.S3Prefix),
		}, uploader, a.metrics)
		if err != nil {
			a.close()
			return nil, err
		}
		exp = export.NewExporter(backend, uploader, spool, cfg.S3Prefix, a.metrics)
	} else {
		log.Info().Msg("S3_BUCKET not set, export disabled")
	}

	a.manager = worker.NewManager(fetcher, pool, exp, a.sink)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}

// ====================================================================
// run: 주기 실행 + graceful shutdown
// ====================================================================
//
// SIGTERM / SIGINT 수신 시:
//  1. 스크레이프 루프 중단 (다음 사이클 시작 안 함)
//  2. worker pool 2단계 종료: 대기 태스크 취소 → 실행 중 태스크 완료 대기
//  3. 운영 HTTP 서버 종료
//  4. store / telemetry 연결 정리
// ====================================================================
func runLoop(cfg config.Config) error {
	logger.Init(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	srv := server.NewHTTPServer(cfg.HTTPAddr, server.NewHandler(a.metrics, a.backend))
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("ops server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ops server terminated")
		}
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		a.manager.Run(ctx, cfg.ScrapeInterval)
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	// 1), 2)
	a.manager.Shutdown()
	<-loopDone

	// 3)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("ops server shutdown")
	}

	log.Info().Int64("errors_total", a.sink.Count()).Msg("shutdown complete")
	return nil
}

// runOnce 는 사이클 하나만 실행한다.
// 클러스터 단위 에러가 있어도 종료 코드는 0 이고, 에러 수는 로그로 남긴다.
func runOnce(cfg config.Config) error {
	logger.Init(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	// 신호가 오면 대기 태스크만 취소하고 실행 중인 태스크는 끝까지 간다
	go func() {
		<-ctx.Done()
		a.manager.Shutdown()
	}()

	sum, err := a.manager.RunOnce(context.WithoutCancel(ctx))
	if err != nil {
		log.Error().Err(err).Msg("scrape cycle aborted")
	}

	log.Info().
		Int("processed", sum.Processed).
		Int("failed", sum.Failed).
		Int("cancelled", sum.Cancelled).
		Int("written", sum.Written).
		Int64("errors_total", a.sink.Count()).
		Msg("single cycle complete")
	return nil
}
