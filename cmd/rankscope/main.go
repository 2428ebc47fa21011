// Package main wires together the search visibility analysis service.
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
	"cloud.google.com/go/storage"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/rankscope/rankscope/internal/api"
	"github.com/rankscope/rankscope/internal/clock/system"
	"github.com/rankscope/rankscope/internal/config"
	collyfetcher "github.com/rankscope/rankscope/internal/fetcher/colly"
	headlessfetcher "github.com/rankscope/rankscope/internal/fetcher/headless"
	"github.com/rankscope/rankscope/internal/fetcher/serpapi"
	"github.com/rankscope/rankscope/internal/hash/sha256"
	"github.com/rankscope/rankscope/internal/headless/detector"
	"github.com/rankscope/rankscope/internal/id/uuid"
	"github.com/rankscope/rankscope/internal/jobs"
	"github.com/rankscope/rankscope/internal/logging"
	"github.com/rankscope/rankscope/internal/pipeline"
	"github.com/rankscope/rankscope/internal/policy/ratelimit"
	memorypublisher "github.com/rankscope/rankscope/internal/publisher/memory"
	pubsubpublisher "github.com/rankscope/rankscope/internal/publisher/pubsub"
	"github.com/rankscope/rankscope/internal/reasoner/gemini"
	"github.com/rankscope/rankscope/internal/seo"
	"github.com/rankscope/rankscope/internal/storage/gcs"
	"github.com/rankscope/rankscope/internal/storage/local"
	memorystorage "github.com/rankscope/rankscope/internal/storage/memory"
	"github.com/rankscope/rankscope/internal/storage/postgres"
	"github.com/rankscope/rankscope/internal/telemetry"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := telemetry.InitTracerProvider(ctx, "rankscope"); err != nil {
		logger.Warn("tracer init failed", zap.Error(err))
	}

	store, pinger, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}

	blobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal("blob store init failed", zap.Error(err))
	}

	publisher := buildPublisher(ctx, cfg, logger)

	hasher := sha256.New()
	clk := system.New()
	idGen := uuid.NewUUIDGenerator()

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Fetch.RateRPS,
		DefaultBurst: cfg.Fetch.RateBurst,
	})
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Fetch.UserAgent,
		RespectRobots: cfg.Fetch.RespectRobots,
		Timeout:       time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
	}, limiter)

	var headless seo.PageFetcher = headlessfetcher.NewNoop()
	if cfg.Headless.Enabled {
		chromeFetcher, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Fetch.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			logger.Warn("headless fetcher init failed", zap.Error(err))
		} else {
			defer chromeFetcher.Close()
			headless = chromeFetcher
		}
	}

	var search seo.SearchClient = serpapi.NewNoop()
	if cfg.Search.Endpoint != "" {
		client, err := serpapi.NewClient(serpapi.Config{
			Endpoint: cfg.Search.Endpoint,
			APIKey:   cfg.Search.APIKey,
			Engine:   cfg.Search.Engine,
			Timeout:  time.Duration(cfg.Search.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			logger.Fatal("search client init failed", zap.Error(err))
		}
		search = client
	} else {
		logger.Warn("search.endpoint not set, SERP jobs will fail")
	}

	var reasoner seo.Reasoner = gemini.NewNoop()
	if cfg.Gemini.APIKey != "" {
		client, err := gemini.New(ctx, gemini.Config{
			APIKey:     cfg.Gemini.APIKey,
			Model:      cfg.Gemini.Model,
			MaxQueries: cfg.Gemini.MaxQueries,
		})
		if err != nil {
			logger.Fatal("reasoner init failed", zap.Error(err))
		}
		defer client.Close() //nolint:errcheck
		reasoner = client
	} else {
		logger.Warn("gemini.api_key not set, AI jobs will fail")
	}

	pipe := pipeline.New(pipeline.Deps{
		Store:    store,
		Blobs:    blobs,
		Fetcher:  fetcher,
		Headless: headless,
		Detector: detector.NewHeuristic(cfg.Headless.PromotionThresh),
		Search:   search,
		Reasoner: reasoner,
		Hasher:   hasher,
		Clock:    clk,
		IDGen:    idGen,
		Logger:   logger.Named("pipeline"),
	})

	scheduler := jobs.NewScheduler(store, clk, idGen, jobs.SchedulerConfig{
		SerpRecheckEvery:       cfg.SerpRecheckEvery(),
		CompetitorRecheckEvery: cfg.CompetitorRecheckEvery(),
		ReportEvery:            cfg.ReportEvery(),
	}, logger.Named("scheduler"))

	processor := jobs.NewProcessor(store, jobs.ProcessorConfig{
		BatchSize:      cfg.Jobs.BatchSize,
		Workers:        cfg.Jobs.Workers,
		HandlerTimeout: cfg.HandlerTimeout(),
		EventTopic:     cfg.Jobs.EventTopic,
	}, logger.Named("processor"))
	processor.SetPublisher(publisher)
	processor.SetObserver(telemetry.NewJobObserver())
	pipe.RegisterAll(processor)

	apiServer := api.NewServer(store, scheduler, processor, pipe, pinger, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var c *cron.Cron
	if cfg.Scheduler.Cron != "" {
		c = cron.New()
		_, err := c.AddFunc(cfg.Scheduler.Cron, func() {
			if _, err := scheduler.SchedulePeriodicJobs(ctx); err != nil {
				logger.Error("scheduled pass failed", zap.Error(err))
			}
			if _, err := processor.ProcessJobQueue(ctx); err != nil {
				logger.Error("processing pass failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Fatal("invalid cron expression", zap.String("cron", cfg.Scheduler.Cron), zap.Error(err))
		}
		c.Start()
		logger.Info("in-process scheduler started", zap.String("cron", cfg.Scheduler.Cron))
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	if c != nil {
		<-c.Stop().Done()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// buildStore prefers Postgres and falls back to the in-memory store when no
// DSN is configured (local development only).
func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (seo.Store, api.Pinger, error) {
	if cfg.DB.DSN == "" {
		logger.Warn("db.dsn not set, using in-memory store")
		return memorystorage.NewStore(), nil, nil
	}
	store, err := postgres.NewStore(ctx, postgres.StoreConfig{
		DSN:      cfg.DB.DSN,
		MaxConns: int32(cfg.DB.MaxConns),
		MinConns: int32(cfg.DB.MinConns),
	})
	if err != nil {
		return nil, nil, err
	}
	return store, store, nil
}

func buildBlobStore(ctx context.Context, cfg config.Config) (seo.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		return gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
	default:
		return local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
	}
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) seo.Publisher {
	if cfg.PubSub.ProjectID == "" {
		logger.Warn("pubsub.project_id not set, using in-memory publisher")
		return memorypublisher.New()
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		logger.Warn("pubsub client init failed, using in-memory publisher", zap.Error(err))
		return memorypublisher.New()
	}
	return pubsubpublisher.New(client)
}
