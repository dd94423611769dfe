package creative

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afrojuju1/hyperlocal/internal/config"
	"github.com/afrojuju1/hyperlocal/internal/domain"
	"github.com/afrojuju1/hyperlocal/internal/imagegen"
)

type fakeGenerator struct {
	requests []imagegen.Request
	err      error
}

func (f *fakeGenerator) Generate(_ context.Context, req imagegen.Request) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return req.OutputPath, nil
}

type fakeUploader struct {
	keys []string
}

func (f *fakeUploader) Upload(_ context.Context, _ string, key string) (string, error) {
	f.keys = append(f.keys, key)
	return "https://cdn.example.com/" + key, nil
}

type statusUpdate struct {
	runID   string
	status  domain.RunStatus
	message string
}

type qcUpdate struct {
	passed bool
	text   string
}

type recordingGateway struct {
	runs     []domain.RunRecord
	styles   map[string]domain.BrandStyle
	statuses []statusUpdate
	variants []domain.VariantRecord
	images   map[string]string
	qc       map[string]qcUpdate
}

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{
		styles: map[string]domain.BrandStyle{},
		images: map[string]string{},
		qc:     map[string]qcUpdate{},
	}
}

func (g *recordingGateway) CreateRun(_ context.Context, run domain.RunRecord) error {
	g.runs = append(g.runs, run)
	return nil
}

func (g *recordingGateway) UpdateRunStyle(_ context.Context, runID string, style domain.BrandStyle) error {
	g.styles[runID] = style
	return nil
}

func (g *recordingGateway) UpdateRunStatus(_ context.Context, runID string, status domain.RunStatus, message string) error {
	g.statuses = append(g.statuses, statusUpdate{runID: runID, status: status, message: message})
	return nil
}

func (g *recordingGateway) CreateVariant(_ context.Context, variant domain.VariantRecord) error {
	g.variants = append(g.variants, variant)
	return nil
}

func (g *recordingGateway) UpdateVariantImage(_ context.Context, variantID, imageURL string) error {
	g.images[variantID] = imageURL
	return nil
}

func (g *recordingGateway) UpdateVariantQC(_ context.Context, variantID string, passed bool, text string, _ *float64) error {
	g.qc[variantID] = qcUpdate{passed: passed, text: text}
	return nil
}

const styleJSON = `{"palette": ["mango orange"], "style_keywords": ["fresh"],
	"layout_guidance": "Big open center.", "typography_guidance": "Rounded sans."}`

// passingOCR contains every copy field plus the brief's business name and
// phone, so QC passes on substring matches alone.
const passingOCR = "BOGO Fridays\nTwo smoothies, one price\n" +
	"Grab a friend and split the good stuff at Rio Smoothies every Friday.\n" +
	"Visit Today\nWhile supplies last\nRio Smoothies\n(512) 555-0142"

func pipelineText() *fakeText {
	return &fakeText{handler: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "brand designer"):
			return styleJSON, nil
		case strings.Contains(prompt, "direct-response copywriter"):
			return `[` + compliantVariantJSON + `]`, nil
		}
		return "", errors.New("unexpected prompt: " + prompt)
	}}
}

type pipelineFixture struct {
	pipeline  *Pipeline
	text      *fakeText
	vision    *fakeVision
	generator *fakeGenerator
	gateway   *recordingGateway
}

func newTestPipeline(t *testing.T, mutate func(*PipelineOptions)) *pipelineFixture {
	t.Helper()
	fx := &pipelineFixture{
		text:      pipelineText(),
		vision:    &fakeVision{handler: func(string, []string) (string, error) { return passingOCR, nil }},
		generator: &fakeGenerator{},
		gateway:   newRecordingGateway(),
	}
	opts := PipelineOptions{
		Config: config.Runtime{
			OutputDir:        t.TempDir(),
			Variants:         1,
			MaxImageAttempts: 3,
			QCEnabled:        true,
			ImageModel:       "gpt-image-1",
		},
		Models:    config.Models{TextModel: "qwen2.5:7b", VisionModel: "llama3.2-vision:latest"},
		Text:      fx.text,
		Vision:    fx.vision,
		Generator: fx.generator,
		Gateway:   fx.gateway,
	}
	if mutate != nil {
		mutate(&opts)
	}
	pipeline, err := NewPipeline(opts)
	require.NoError(t, err)
	fx.pipeline = pipeline
	return fx
}

func TestRunHappyPath(t *testing.T) {
	fx := newTestPipeline(t, nil)

	result, err := fx.pipeline.Run(context.Background(), testBrief())
	require.NoError(t, err)
	require.Len(t, result.Variants, 1)

	variant := result.Variants[0]
	assert.Equal(t, 1, variant.Index)
	assert.True(t, variant.QCPassed)
	assert.Equal(t, passingOCR, variant.QCText)
	assert.True(t, strings.HasSuffix(variant.ImagePath, "variant_01.png"))
	assert.Equal(t, []string{"mango orange"}, result.BrandStyle.Palette)

	// One image request, one OCR call.
	assert.Len(t, fx.generator.requests, 1)
	assert.Equal(t, 1, fx.vision.calls)
	assert.Contains(t, fx.generator.requests[0].NegativePrompt, "Avoid any text")

	// Run record lifecycle: created RUNNING, style recorded, one COMPLETE.
	require.Len(t, fx.gateway.runs, 1)
	run := fx.gateway.runs[0]
	assert.Equal(t, domain.RunStatusRunning, run.Status)
	assert.Equal(t, "qwen2.5:7b", run.ModelVersions["text_model"])
	assert.Contains(t, fx.gateway.styles, run.ID)
	require.Len(t, fx.gateway.statuses, 1)
	assert.Equal(t, domain.RunStatusComplete, fx.gateway.statuses[0].status)

	// Variant record created before generation, then patched twice.
	require.Len(t, fx.gateway.variants, 1)
	record := fx.gateway.variants[0]
	assert.Equal(t, run.ID, record.RunID)
	assert.Equal(t, 1, record.Index)
	assert.Equal(t, "BOGO Fridays", record.Copy.Headline)
	assert.Equal(t, variant.ImagePath, fx.gateway.images[record.ID])
	assert.True(t, fx.gateway.qc[record.ID].passed)

	// Durable manifest sits next to the image.
	manifest, err := os.ReadFile(filepath.Join(result.OutputDir, "run.json"))
	require.NoError(t, err)
	assert.Contains(t, string(manifest), "BOGO Fridays")
}

func TestRunQCFailureIsNotRunFailure(t *testing.T) {
	ocrByAttempt := []string{"nothing legible", "still nothing", "third attempt text"}
	fx := newTestPipeline(t, nil)
	fx.vision.handler = func(string, []string) (string, error) {
		return ocrByAttempt[fx.vision.calls-1], nil
	}

	result, err := fx.pipeline.Run(context.Background(), testBrief())
	require.NoError(t, err)
	require.Len(t, result.Variants, 1)

	variant := result.Variants[0]
	assert.False(t, variant.QCPassed)
	assert.Equal(t, "third attempt text", variant.QCText)
	assert.Len(t, fx.generator.requests, 3)
	assert.Equal(t, 3, fx.vision.calls)

	// The run itself still completes.
	require.Len(t, fx.gateway.statuses, 1)
	assert.Equal(t, domain.RunStatusComplete, fx.gateway.statuses[0].status)
	require.Len(t, fx.gateway.variants, 1)
	qc := fx.gateway.qc[fx.gateway.variants[0].ID]
	assert.False(t, qc.passed)
	assert.Equal(t, "third attempt text", qc.text)
}

func TestRunSeedsDistinctAcrossVariantsAndRetries(t *testing.T) {
	fx := newTestPipeline(t, func(opts *PipelineOptions) {
		opts.Config.Variants = 2
		opts.Config.MaxImageAttempts = 2
		opts.Config.ImageSeed = 42
	})
	fx.text.handler = func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "brand designer"):
			return styleJSON, nil
		case strings.Contains(prompt, "direct-response copywriter"):
			return `[` + compliantVariantJSON + `,` + compliantVariantJSON + `]`, nil
		}
		return "", errors.New("unexpected prompt: " + prompt)
	}
	fx.vision.handler = func(string, []string) (string, error) { return "nothing legible", nil }

	_, err := fx.pipeline.Run(context.Background(), testBrief())
	require.NoError(t, err)

	// Two variants, two QC attempts each: four renders, no seed reused.
	require.Len(t, fx.generator.requests, 4)
	seeds := make([]int, 0, len(fx.generator.requests))
	for _, req := range fx.generator.requests {
		seeds = append(seeds, req.Seed)
	}
	assert.Equal(t, []int{43, 45, 44, 46}, seeds)
}

func TestRunBackendFailureFailsRun(t *testing.T) {
	fx := newTestPipeline(t, nil)
	fx.generator.err = &imagegen.GenerationError{Provider: "sdxl", Err: errors.New("connection timed out")}

	_, err := fx.pipeline.Run(context.Background(), testBrief())
	require.Error(t, err)
	assert.Len(t, fx.generator.requests, 3)

	require.Len(t, fx.gateway.statuses, 1)
	update := fx.gateway.statuses[0]
	assert.Equal(t, domain.RunStatusFailed, update.status)
	assert.Contains(t, update.message, "connection timed out")
}

func TestRunQCDisabled(t *testing.T) {
	fx := newTestPipeline(t, func(opts *PipelineOptions) {
		opts.Config.QCEnabled = false
	})

	result, err := fx.pipeline.Run(context.Background(), testBrief())
	require.NoError(t, err)
	require.Len(t, result.Variants, 1)
	assert.True(t, result.Variants[0].QCPassed)
	assert.Equal(t, "qc disabled", result.Variants[0].QCText)
	assert.Equal(t, 0, fx.vision.calls)
}

func TestRunUploadsToStorage(t *testing.T) {
	uploader := &fakeUploader{}
	fx := newTestPipeline(t, func(opts *PipelineOptions) {
		opts.Storage = uploader
	})

	result, err := fx.pipeline.Run(context.Background(), testBrief())
	require.NoError(t, err)
	require.Len(t, result.Variants, 1)

	runID := fx.gateway.runs[0].ID
	require.Len(t, uploader.keys, 1)
	assert.Equal(t, "creative_runs/"+runID+"/variant_01.png", uploader.keys[0])
	assert.Equal(t, "https://cdn.example.com/"+uploader.keys[0], result.Variants[0].ImagePath)
	assert.Equal(t, result.Variants[0].ImagePath, fx.gateway.images[fx.gateway.variants[0].ID])
}

func TestRunInvalidBriefRejectedBeforeRunRecord(t *testing.T) {
	fx := newTestPipeline(t, nil)
	_, err := fx.pipeline.Run(context.Background(), domain.CreativeBrief{})
	require.Error(t, err)
	assert.Empty(t, fx.gateway.runs)
	assert.Empty(t, fx.generator.requests)
}

func TestRunWithoutGateway(t *testing.T) {
	fx := newTestPipeline(t, func(opts *PipelineOptions) {
		opts.Gateway = nil
	})

	result, err := fx.pipeline.Run(context.Background(), testBrief())
	require.NoError(t, err)
	assert.Len(t, result.Variants, 1)
}
