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

	"datalens/internal/clients"
	"datalens/internal/config"
	"datalens/internal/handlers"
	"datalens/internal/ingest"
	"datalens/internal/middleware"
	"datalens/internal/repository"
	"datalens/internal/service"
	"datalens/internal/worker"
	"datalens/pkg/database"
	"datalens/pkg/logger"
	"datalens/pkg/redis"
	"datalens/pkg/storage"
	"datalens/pkg/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
)

const version = "1.0.0"

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg := config.Load()

	logMode := "production"
	if cfg.App.Debug {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Init(ctx, log, telemetry.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "datalens",
		Environment: cfg.App.Environment,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})

	db, err := database.Connect(database.Config{DSN: cfg.DSN(), Debug: cfg.App.Debug}, log)
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("failed to run migrations", "error", err)
	}

	redisClient, err := redis.Connect(redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, log)
	if err != nil {
		log.Fatal("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	blobStore, memStore, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open object store", "provider", cfg.Storage.Provider, "error", err)
	}
	defer closeStore()

	llm, err := openLLM(ctx, cfg)
	if err != nil {
		log.Fatal("failed to build model client", "provider", cfg.LLM.Provider, "error", err)
	}
	log.Info("model client ready", "model", llm.Name())

	// Repositories
	datasetRepo := repository.NewDatasetRepository(db)
	insightRepo := repository.NewInsightRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	// Services
	ingestService := service.NewIngestService(
		datasetRepo,
		insightRepo,
		cacheRepo,
		clients.NewFileClient(cfg.Ingest.MaxFileBytes, cfg.Ingest.FetchTimeout),
		llm,
		service.IngestConfig{
			Parse: ingest.Options{
				CSVMaxDataLines: cfg.Ingest.CSVMaxDataLines,
				JSONMaxRows:     cfg.Ingest.JSONMaxRows,
			},
			SampleRows: cfg.Ingest.SampleRows,
			MaxTokens:  cfg.LLM.MaxTokens,
		},
		log,
	)
	datasetService := service.NewDatasetService(datasetRepo, cacheRepo, blobStore, ingestService, cfg.Ingest.MaxFileBytes, log)
	insightService := service.NewInsightService(insightRepo, cacheRepo, log)
	systemService := service.NewSystemService(
		datasetRepo,
		insightRepo,
		cacheRepo,
		func(ctx context.Context) (map[string]string, error) { return redis.GetStats(ctx, redisClient) },
		cfg.Workers.StaleAfter,
		log,
	)

	// Workers
	scheduler := worker.NewScheduler(log)
	if cfg.Workers.StaleMonitorEnabled {
		scheduler.AddWorker(worker.NewStaleDatasetWorker(
			datasetRepo,
			cacheRepo,
			cfg.Workers.StaleMonitorInterval,
			cfg.Workers.StaleAfter,
			log,
		))
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.App.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("datalens"))
	r.Use(middleware.CORS())
	r.Use(middleware.RequestLogger(log))

	if !cfg.App.Debug {
		limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
		go pruneLimiter(ctx, limiter, log)
		r.Use(middleware.IPRateLimitMiddleware(limiter, log))
	}

	h := handlers.Handlers{
		Process:  handlers.NewProcessHandler(ingestService, log),
		Datasets: handlers.NewDatasetHandler(datasetService, cfg.Ingest.MaxFileBytes, log),
		Insights: handlers.NewInsightHandler(datasetService, insightService, log),
		System: handlers.NewSystemHandler(systemService, map[string]handlers.Pinger{
			"database": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		}, version, log),
	}
	if memStore != nil {
		h.Objects = handlers.NewObjectHandler(memStore)
	}
	handlers.RegisterRoutes(r, h, middleware.AuthConfig{
		JWTSecret:      cfg.Auth.JWTSecret,
		ServiceRoleKey: cfg.Auth.ServiceRoleKey,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Ingest.FetchTimeout + cfg.LLM.Timeout + time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.App.Port, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracer shutdown failed", "error", err)
	}

	log.Info("server exited")
}

// openStore builds the configured blob store. The memory store is also returned on
// its own so its objects can be served over HTTP.
func openStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, *storage.MemoryStore, func(), error) {
	noop := func() {}
	switch cfg.Storage.Provider {
	case "gcs":
		endpoint := ""
		if cfg.Storage.EmulatorHost != "" {
			endpoint = "http://" + cfg.Storage.EmulatorHost
		}
		store, err := storage.NewGCSStore(ctx, storage.GCSConfig{
			Bucket:        cfg.Storage.Bucket,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
			Endpoint:      endpoint,
		})
		if err != nil {
			return nil, nil, noop, err
		}
		return store, nil, func() { _ = store.Close() }, nil
	case "memory":
		base := cfg.Storage.PublicBaseURL
		if base == "" {
			base = "http://localhost:" + cfg.App.Port + "/files"
		}
		store := storage.NewMemoryStore(cfg.Storage.Bucket, base)
		return store, store, noop, nil
	default:
		store, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:      cfg.Storage.Endpoint,
			Region:        cfg.Storage.Region,
			AccessKey:     cfg.Storage.AccessKey,
			SecretKey:     cfg.Storage.SecretKey,
			Bucket:        cfg.Storage.Bucket,
			UseSSL:        cfg.Storage.UseSSL,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			return nil, nil, noop, err
		}
		return store, nil, noop, nil
	}
}

func openLLM(ctx context.Context, cfg *config.Config) (clients.LLMClient, error) {
	switch cfg.LLM.Provider {
	case "gemini":
		return clients.NewGeminiClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
	default:
		return clients.NewOpenAIClient(clients.OpenAIConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		}), nil
	}
}

func pruneLimiter(ctx context.Context, limiter *middleware.IPRateLimiter, log *logger.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := limiter.Prune(now); removed > 0 {
				log.Debug("pruned idle rate limiters", "removed", removed, "remaining", limiter.Size())
			}
		}
	}
}
