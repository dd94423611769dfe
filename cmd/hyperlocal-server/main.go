package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "go.uber.org/automaxprocs"

	"github.com/afrojuju1/hyperlocal/internal/config"
	"github.com/afrojuju1/hyperlocal/internal/creative"
	"github.com/afrojuju1/hyperlocal/internal/httpapi"
	"github.com/afrojuju1/hyperlocal/internal/imagegen"
	"github.com/afrojuju1/hyperlocal/internal/llm"
	"github.com/afrojuju1/hyperlocal/internal/platform/auth"
	"github.com/afrojuju1/hyperlocal/internal/platform/env"
	"github.com/afrojuju1/hyperlocal/internal/platform/httpserver"
	"github.com/afrojuju1/hyperlocal/internal/platform/objectstore"
	"github.com/afrojuju1/hyperlocal/internal/platform/postgres"
	repopg "github.com/afrojuju1/hyperlocal/internal/repo/postgres"
	"github.com/afrojuju1/hyperlocal/internal/storage"
)

const service = "hyperlocal-server"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("HYPERLOCAL_HTTP_ADDR", ":8080")
	shutdownTimeout, err := env.Duration("HYPERLOCAL_SHUTDOWN_TIMEOUT", 15*time.Second)
	if err != nil {
		logger.Error("invalid environment", "error", err)
		os.Exit(2)
	}

	cfg, err := config.RuntimeFromEnv()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	models := config.ModelsFromEnv()

	llmHTTP := &http.Client{Timeout: cfg.LLMTimeout}
	text, err := llm.New(llm.Options{
		BaseURL:           cfg.LLMBaseURL,
		APIKey:            cfg.LLMAPIKey,
		HTTPClient:        llmHTTP,
		Logger:            logger,
		RequestsPerMinute: cfg.LLMRequestsPerMinute,
	})
	if err != nil {
		logger.Error("llm client init failed", "error", err)
		os.Exit(2)
	}
	vision := text
	if cfg.VisionURL() != cfg.LLMBaseURL {
		vision, err = llm.New(llm.Options{
			BaseURL:           cfg.VisionURL(),
			APIKey:            cfg.LLMAPIKey,
			HTTPClient:        llmHTTP,
			Logger:            logger,
			RequestsPerMinute: cfg.LLMRequestsPerMinute,
		})
		if err != nil {
			logger.Error("vision client init failed", "error", err)
			os.Exit(2)
		}
	}

	generator, err := imagegen.NewFromConfig(cfg)
	if err != nil {
		logger.Error("image generator init failed", "provider", string(cfg.ImageProvider), "error", err)
		os.Exit(2)
	}

	readiness := httpapi.ReadinessChecks(cfg)

	var gateway creative.Gateway
	if cfg.PersistEnabled {
		dbCfg, err := postgres.ConfigFromEnv()
		if err != nil {
			logger.Error("invalid database configuration", "error", err)
			os.Exit(2)
		}
		db, err := postgres.Open(ctx, dbCfg)
		if err != nil {
			logger.Error("database unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		gateway = repopg.NewGateway(db)

		readiness = append(readiness, httpserver.ReadinessCheck{
			Name: "postgres",
			Check: func(ctx context.Context) error {
				pingCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
				defer cancel()
				return db.PingContext(pingCtx)
			},
		})
	}

	var uploader creative.Uploader
	if cfg.StorageEnabled {
		storeCfg, err := objectstore.ConfigFromEnv()
		if err != nil {
			logger.Error("invalid object storage configuration", "error", err)
			os.Exit(2)
		}
		store, err := storage.NewStore(storeCfg)
		if err != nil {
			logger.Error("object storage init failed", "error", err)
			os.Exit(1)
		}
		bucketCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = store.EnsureBucket(bucketCtx)
		cancel()
		if err != nil {
			logger.Error("object storage unavailable", "error", err)
			os.Exit(1)
		}
		uploader = store
	}

	pipeline, err := creative.NewPipeline(creative.PipelineOptions{
		Config:    cfg,
		Models:    models,
		Text:      text,
		Vision:    vision,
		Generator: generator,
		Storage:   uploader,
		Gateway:   gateway,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("pipeline init failed", "error", err)
		os.Exit(2)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz(service))
	mux.HandleFunc("/readyz", httpserver.ReadyzWithChecks(service, readiness...))

	api := httpapi.New(logger, pipeline, cfg.MaxConcurrentRuns)

	var apiHandler http.Handler = apiMux(api)
	authenticator, err := buildAuthenticator(ctx)
	if err != nil {
		logger.Error("auth init failed", "error", err)
		os.Exit(2)
	}
	if authenticator != nil {
		apiHandler = auth.Middleware{Logger: logger, Authenticator: authenticator}.Wrap(apiHandler)
	}
	mux.Handle("/generate", apiHandler)

	handler := httpserver.Wrap(logger, service, mux)
	if err := httpserver.Run(ctx, logger, httpserver.Config{
		Service:         service,
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}, handler); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func apiMux(api *httpapi.API) *http.ServeMux {
	mux := http.NewServeMux()
	api.Register(mux)
	return mux
}

func buildAuthenticator(ctx context.Context) (auth.Authenticator, error) {
	cfg, err := auth.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	switch cfg.Mode {
	case auth.ModeOIDC:
		return auth.NewOIDCAuthenticator(ctx, cfg)
	case auth.ModeToken:
		return auth.NewStaticTokenAuthenticator(cfg)
	default:
		return nil, nil
	}
}
