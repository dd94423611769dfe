package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
	"gopkg.in/yaml.v3"

	"github.com/afrojuju1/hyperlocal/internal/config"
	"github.com/afrojuju1/hyperlocal/internal/creative"
	"github.com/afrojuju1/hyperlocal/internal/domain"
	"github.com/afrojuju1/hyperlocal/internal/httpapi"
	"github.com/afrojuju1/hyperlocal/internal/imagegen"
	"github.com/afrojuju1/hyperlocal/internal/llm"
	"github.com/afrojuju1/hyperlocal/internal/platform/objectstore"
	"github.com/afrojuju1/hyperlocal/internal/platform/postgres"
	repopg "github.com/afrojuju1/hyperlocal/internal/repo/postgres"
	"github.com/afrojuju1/hyperlocal/internal/storage"
)

var (
	briefPath     string
	allowFallback bool
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:           "hyperlocal",
	Short:         "Generate local-business flyer creatives from a campaign brief",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the full creative pipeline for one brief",
	Long: `Run the full creative pipeline for one brief: brand style, copy
variants, image generation with OCR quality control, and a run manifest
written to the output directory.

The brief file may be YAML or JSON.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe the configured model and image backends",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	generateCmd.Flags().StringVarP(&briefPath, "brief", "f", "", "path to the brief file (YAML or JSON)")
	generateCmd.Flags().BoolVar(&allowFallback, "fallback-copy", false, "fill missing copy variants with deterministic fallback copy")
	_ = generateCmd.MarkFlagRequired("brief")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	rootCmd.AddCommand(generateCmd, checkCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := newLogger()

	brief, err := loadBrief(briefPath)
	if err != nil {
		return err
	}
	if err := brief.Validate(); err != nil {
		return fmt.Errorf("invalid brief: %w", err)
	}

	cfg, err := config.RuntimeFromEnv()
	if err != nil {
		return err
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
		return err
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
			return err
		}
	}

	generator, err := imagegen.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	var gateway creative.Gateway
	if cfg.PersistEnabled {
		dbCfg, err := postgres.ConfigFromEnv()
		if err != nil {
			return err
		}
		db, err := postgres.Open(ctx, dbCfg)
		if err != nil {
			return fmt.Errorf("database unavailable: %w", err)
		}
		defer db.Close()
		gateway = repopg.NewGateway(db)
	}

	var uploader creative.Uploader
	if cfg.StorageEnabled {
		storeCfg, err := objectstore.ConfigFromEnv()
		if err != nil {
			return err
		}
		store, err := storage.NewStore(storeCfg)
		if err != nil {
			return err
		}
		bucketCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = store.EnsureBucket(bucketCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("object storage unavailable: %w", err)
		}
		uploader = store
	}

	pipeline, err := creative.NewPipeline(creative.PipelineOptions{
		Config:            cfg,
		Models:            models,
		Text:              text,
		Vision:            vision,
		Generator:         generator,
		Storage:           uploader,
		Gateway:           gateway,
		Logger:            logger,
		AllowCopyFallback: allowFallback,
	})
	if err != nil {
		return err
	}

	result, err := pipeline.Run(ctx, brief)
	if err != nil {
		return err
	}

	fmt.Printf("Run complete: %s\n", result.OutputDir)
	for _, v := range result.Variants {
		status := "QC passed"
		if !v.QCPassed {
			status = "QC failed"
		}
		fmt.Printf("  variant %02d  %s  %s\n", v.Index, status, v.ImagePath)
	}
	return nil
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.RuntimeFromEnv()
	if err != nil {
		return err
	}

	failed := 0
	for _, check := range httpapi.ReadinessChecks(cfg) {
		start := time.Now()
		err := check.Check(ctx)
		elapsed := time.Since(start).Round(time.Millisecond)
		if err != nil {
			failed++
			fmt.Printf("FAIL  %-12s %v (%s)\n", check.Name, err, elapsed)
			continue
		}
		fmt.Printf("ok    %-12s (%s)\n", check.Name, elapsed)
	}
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func loadBrief(path string) (domain.CreativeBrief, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.CreativeBrief{}, fmt.Errorf("read brief: %w", err)
	}

	var brief domain.CreativeBrief
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(raw, &brief); err != nil {
			return domain.CreativeBrief{}, fmt.Errorf("parse brief: %w", err)
		}
	default:
		if err := yaml.Unmarshal(raw, &brief); err != nil {
			return domain.CreativeBrief{}, fmt.Errorf("parse brief: %w", err)
		}
	}
	return brief, nil
}
