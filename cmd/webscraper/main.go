// Package main runs the web-scraper service: HTTP API, scheduler, and the
// crawl engine behind them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gcpstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/api"
	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/clock/system"
	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/config"
	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/converter/markdown"
	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/engine"
	collyfetcher "github.com/giorgikuloshvili-boop/Web-Scraper/internal/fetcher/colly"
	idgen "github.com/giorgikuloshvili-boop/Web-Scraper/internal/id/uuid"
	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/logging"
	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/metrics"
	goqueryparser "github.com/giorgikuloshvili-boop/Web-Scraper/internal/parser/goquery"
	pubsubpublisher "github.com/giorgikuloshvili-boop/Web-Scraper/internal/publisher/pubsub"
	registrymemory "github.com/giorgikuloshvili-boop/Web-Scraper/internal/registry/memory"
	registrypostgres "github.com/giorgikuloshvili-boop/Web-Scraper/internal/registry/postgres"
	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/scheduler"
	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/scraper"
	storagefs "github.com/giorgikuloshvili-boop/Web-Scraper/internal/storage/fs"
	storagegcs "github.com/giorgikuloshvili-boop/Web-Scraper/internal/storage/gcs"
	storagememory "github.com/giorgikuloshvili-boop/Web-Scraper/internal/storage/memory"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	clock := system.New()
	ids := idgen.New()

	registry, closeRegistry, err := buildRegistry(ctx, cfg, clock, ids)
	if err != nil {
		return err
	}
	defer closeRegistry()

	store, err := buildStorage(ctx, cfg)
	if err != nil {
		return err
	}

	publisher, stopPublisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer stopPublisher()

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Scraper.UserAgent,
		Timeout:       cfg.FetchTimeout(),
		RespectRobots: cfg.Scraper.RespectRobots,
	})
	retry := scraper.NewExponentialRetryPolicy(cfg.BackoffInitial(), cfg.BackoffMax())
	eng := engine.New(fetcher, goqueryparser.New(), markdown.New(), store, retry, logger.Named("engine"))

	sched := scheduler.New(registry, eng, publisher, clock, scheduler.Config{
		Enabled:  cfg.Schedule.Enabled,
		Time:     cfg.Schedule.Time,
		Timezone: cfg.Schedule.Timezone,
		Defaults: scraper.JobParameters{
			URL:           cfg.Scraper.TargetURL,
			MaxDepth:      cfg.Scraper.MaxDepth,
			Concurrency:   cfg.Scraper.Concurrency,
			RetryAttempts: cfg.Scraper.RetryAttempts,
		},
		Topic: cfg.PubSub.TopicName,
	}, logger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	apiServer := api.NewServer(registry, sched, cfg, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("http server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	sched.Stop()
	logger.Info("shutdown complete")
	return nil
}

func buildRegistry(
	ctx context.Context,
	cfg config.Config,
	clock scraper.Clock,
	ids scraper.IDGenerator,
) (scraper.JobRegistry, func(), error) {
	switch cfg.Registry.Provider {
	case "postgres":
		reg, err := registrypostgres.New(ctx, registrypostgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
		}, clock, ids)
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres registry: %w", err)
		}
		return reg, reg.Close, nil
	default:
		return registrymemory.New(clock, ids), func() {}, nil
	}
}

func buildStorage(ctx context.Context, cfg config.Config) (scraper.Storage, error) {
	switch cfg.Storage.Provider {
	case "gcs":
		client, err := gcpstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		return storagegcs.New(client, storagegcs.Config{
			Bucket: cfg.Storage.GCSBucket,
			Prefix: cfg.Storage.Prefix,
		})
	case "memory":
		return storagememory.New(), nil
	default:
		store, err := storagefs.New(storagefs.Config{
			BaseDir: cfg.Storage.BaseDir,
			Prefix:  cfg.Storage.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("init fs storage: %w", err)
		}
		return store, nil
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (scraper.Publisher, func(), error) {
	if cfg.PubSub.TopicName == "" {
		return nil, func() {}, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("init pubsub client: %w", err)
	}
	pub := pubsubpublisher.New(client)
	return pub, pub.Stop, nil
}
