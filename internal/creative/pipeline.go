package creative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/afrojuju1/hyperlocal/internal/config"
	"github.com/afrojuju1/hyperlocal/internal/domain"
	"github.com/afrojuju1/hyperlocal/internal/imagegen"
)

// Uploader pushes a finished image to remote storage and returns the public
// reference. When absent, the local path is the reference used downstream.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}

// Gateway persists run and variant records. Each call is one atomic update;
// the pipeline holds only identifiers, never the persisted state itself.
type Gateway interface {
	CreateRun(ctx context.Context, run domain.RunRecord) error
	UpdateRunStyle(ctx context.Context, runID string, style domain.BrandStyle) error
	UpdateRunStatus(ctx context.Context, runID string, status domain.RunStatus, message string) error
	CreateVariant(ctx context.Context, variant domain.VariantRecord) error
	UpdateVariantImage(ctx context.Context, variantID, imageURL string) error
	UpdateVariantQC(ctx context.Context, variantID string, passed bool, text string, score *float64) error
}

// noopGateway keeps the run flow identical when persistence is disabled.
type noopGateway struct{}

func (noopGateway) CreateRun(context.Context, domain.RunRecord) error { return nil }
func (noopGateway) UpdateRunStyle(context.Context, string, domain.BrandStyle) error {
	return nil
}
func (noopGateway) UpdateRunStatus(context.Context, string, domain.RunStatus, string) error {
	return nil
}
func (noopGateway) CreateVariant(context.Context, domain.VariantRecord) error { return nil }
func (noopGateway) UpdateVariantImage(context.Context, string, string) error  { return nil }
func (noopGateway) UpdateVariantQC(context.Context, string, bool, string, *float64) error {
	return nil
}

type PipelineOptions struct {
	Config    config.Runtime
	Models    config.Models
	Text      TextModel
	Vision    VisionModel
	Generator imagegen.Generator
	Storage   Uploader // optional
	Gateway   Gateway  // optional
	Logger    *slog.Logger

	AllowCopyFallback bool
}

// Pipeline runs one brief end to end: style, copy, prompts, images with QC,
// manifest, terminal status. All steps are strictly sequential; no state is
// shared across runs.
type Pipeline struct {
	cfg       config.Runtime
	models    config.Models
	vision    VisionModel
	generator imagegen.Generator
	copygen   *CopyGenerator
	styles    *StyleResolver
	storage   Uploader
	gateway   Gateway
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	if opts.Generator == nil {
		return nil, errors.New("image generator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	copygen, err := NewCopyGenerator(CopyGeneratorOptions{
		Text:          opts.Text,
		Model:         opts.Models.TextModel,
		Logger:        logger,
		AllowFallback: opts.AllowCopyFallback,
	})
	if err != nil {
		return nil, err
	}
	styles, err := NewStyleResolver(StyleResolverOptions{
		Text:   opts.Text,
		Vision: opts.Vision,
		Models: opts.Models,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	gateway := opts.Gateway
	if gateway == nil {
		gateway = noopGateway{}
	}

	return &Pipeline{
		cfg:       opts.Config,
		models:    opts.Models,
		vision:    opts.Vision,
		generator: opts.Generator,
		copygen:   copygen,
		styles:    styles,
		storage:   opts.Storage,
		gateway:   gateway,
		logger:    logger,
		sleep:     sleepContext,
	}, nil
}

// Run executes the full pipeline for one brief. Any error past run creation
// flips the run to FAILED with the error message and is returned to the
// caller; variant records already written stay as they are.
func (p *Pipeline) Run(ctx context.Context, brief domain.CreativeBrief) (domain.RunResult, error) {
	if err := brief.Validate(); err != nil {
		return domain.RunResult{}, err
	}

	runID := uuid.NewString()
	now := time.Now().UTC()
	record := domain.RunRecord{
		ID:         runID,
		CampaignID: brief.CampaignID,
		Status:     domain.RunStatusRunning,
		Brief:      brief,
		ModelVersions: map[string]string{
			"text_model":   p.models.TextModel,
			"vision_model": p.models.VisionModel,
			"image_model":  p.cfg.ImageModel,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.gateway.CreateRun(ctx, record); err != nil {
		return domain.RunResult{}, fmt.Errorf("create run record: %w", err)
	}
	p.logger.Info("run started", "run_id", runID, "business", brief.BusinessName())

	result, err := p.execute(ctx, runID, brief)
	if err != nil {
		if gerr := p.gateway.UpdateRunStatus(ctx, runID, domain.RunStatusFailed, err.Error()); gerr != nil {
			p.logger.Error("failed to record run failure", "run_id", runID, "error", gerr)
		}
		p.logger.Error("run failed", "run_id", runID, "error", err)
		return domain.RunResult{}, err
	}

	if err := p.gateway.UpdateRunStatus(ctx, runID, domain.RunStatusComplete, ""); err != nil {
		return result, fmt.Errorf("record run completion: %w", err)
	}
	p.logger.Info("run complete", "run_id", runID, "variants", len(result.Variants))
	return result, nil
}

func (p *Pipeline) execute(ctx context.Context, runID string, brief domain.CreativeBrief) (domain.RunResult, error) {
	style, err := p.styles.Resolve(ctx, brief)
	if err != nil {
		return domain.RunResult{}, err
	}
	if err := p.gateway.UpdateRunStyle(ctx, runID, style); err != nil {
		return domain.RunResult{}, fmt.Errorf("record run style: %w", err)
	}

	variants, err := p.copygen.Generate(ctx, brief, style, p.cfg.Variants)
	if err != nil {
		return domain.RunResult{}, err
	}
	packages := BuildPromptPackages(brief, style, variants)

	runDir := filepath.Join(p.cfg.OutputDir, "flyer_runs", time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return domain.RunResult{}, fmt.Errorf("create run directory: %w", err)
	}

	images, err := p.generateImages(ctx, runID, brief, packages, runDir)
	if err != nil {
		return domain.RunResult{}, err
	}

	result := domain.RunResult{
		Brief:      brief,
		BrandStyle: style,
		Variants:   images,
		OutputDir:  runDir,
	}
	if err := writeRunManifest(runDir, result); err != nil {
		return domain.RunResult{}, err
	}
	return result, nil
}

func (p *Pipeline) generateImages(ctx context.Context, runID string, brief domain.CreativeBrief, packages []domain.PromptPackage, runDir string) ([]domain.ImageVariant, error) {
	required := RequiredDetails(brief)
	variants := make([]domain.ImageVariant, 0, len(packages))

	// Seeds advance by the variant count between attempts, so no two
	// renders in a run share a seed.
	seedStep := len(packages)

	for i, pkg := range packages {
		idx := i + 1
		imagePath := filepath.Join(runDir, fmt.Sprintf("variant_%02d.png", idx))

		variantID := uuid.NewString()
		now := time.Now().UTC()
		err := p.gateway.CreateVariant(ctx, domain.VariantRecord{
			ID:             variantID,
			RunID:          runID,
			Index:          idx,
			Copy:           pkg.CopyVariant,
			PromptText:     pkg.ImagePrompt,
			NegativePrompt: pkg.NegativePrompt,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return nil, fmt.Errorf("create variant record: %w", err)
		}

		qcPassed, qcText, err := p.generateWithQC(ctx, pkg, required, imagePath, p.cfg.ImageSeed+idx, seedStep)
		if err != nil {
			return nil, err
		}

		imageURL := imagePath
		if p.storage != nil {
			url, err := p.storage.Upload(ctx, imagePath, imageObjectKey(runID, idx))
			if err != nil {
				return nil, fmt.Errorf("upload variant image: %w", err)
			}
			imageURL = url
		}

		if err := p.gateway.UpdateVariantImage(ctx, variantID, imageURL); err != nil {
			return nil, fmt.Errorf("record variant image: %w", err)
		}
		if err := p.gateway.UpdateVariantQC(ctx, variantID, qcPassed, qcText, nil); err != nil {
			return nil, fmt.Errorf("record variant qc: %w", err)
		}

		variants = append(variants, domain.ImageVariant{
			Index:     idx,
			Prompt:    pkg,
			ImagePath: imageURL,
			QCPassed:  qcPassed,
			QCText:    qcText,
		})
	}
	return variants, nil
}

// generateWithQC drives the bounded generate-then-verify loop for one
// variant. Backend failures are retried and end the run only when the final
// attempt fails; a QC miss on the final attempt is recorded, not raised.
// Every attempt renders with a distinct seed; a deterministic backend never
// replays a rejected image.
func (p *Pipeline) generateWithQC(ctx context.Context, pkg domain.PromptPackage, required []string, imagePath string, seed, seedStep int) (bool, string, error) {
	expected := append(pkg.CopyVariant.ExpectedPhrases(), required...)

	var qcText string
	maxAttempts := p.cfg.MaxImageAttempts
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		_, err := p.generator.Generate(ctx, imagegen.Request{
			Prompt:         pkg.ImagePrompt,
			NegativePrompt: pkg.NegativePrompt,
			OutputPath:     imagePath,
			Seed:           seed + (attempt-1)*seedStep,
		})
		if err != nil {
			if attempt == maxAttempts {
				return false, qcText, err
			}
			p.logger.Warn("image generation failed, retrying", "attempt", attempt, "error", err)
			if serr := p.sleep(ctx, p.cfg.QCRetryDelay); serr != nil {
				return false, qcText, serr
			}
			continue
		}

		if !p.cfg.QCEnabled {
			return true, "qc disabled", nil
		}

		text, err := ExtractImageText(ctx, p.vision, p.models.VisionModel, imagePath)
		if err != nil {
			return false, qcText, fmt.Errorf("qc text extraction: %w", err)
		}
		qcText = text

		if ValidateText(expected, qcText) {
			return true, qcText, nil
		}
		p.logger.Info("qc rejected image", "attempt", attempt, "path", imagePath)
		if attempt < maxAttempts {
			if serr := p.sleep(ctx, p.cfg.QCRetryDelay); serr != nil {
				return false, qcText, serr
			}
		}
	}
	// Attempts exhausted: keep the variant with the last OCR text so
	// operators can review the failure.
	return false, qcText, nil
}

func imageObjectKey(runID string, index int) string {
	return fmt.Sprintf("creative_runs/%s/variant_%02d.png", runID, index)
}

func writeRunManifest(runDir string, result domain.RunResult) error {
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "run.json"), encoded, 0o644); err != nil {
		return fmt.Errorf("write run manifest: %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
