package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afrojuju1/hyperlocal/internal/config"
	"github.com/afrojuju1/hyperlocal/internal/domain"
)

type fakeRunner struct {
	result domain.RunResult
	err    error
	briefs []domain.CreativeBrief
}

func (f *fakeRunner) Run(_ context.Context, brief domain.CreativeBrief) (domain.RunResult, error) {
	f.briefs = append(f.briefs, brief)
	if f.err != nil {
		return domain.RunResult{}, f.err
	}
	return f.result, nil
}

func newTestMux(runner Runner) *http.ServeMux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	New(logger, runner, 2).Register(mux)
	return mux
}

const briefJSON = `{
	"business_details": {"name": "Rio Smoothies", "phone": "(512) 555-0142"},
	"product": "Mango smoothies",
	"offer": "BOGO Fridays",
	"tone": "upbeat",
	"cta": "Visit Today"
}`

func TestGenerateReturnsRunResult(t *testing.T) {
	runner := &fakeRunner{result: domain.RunResult{OutputDir: "output/flyer_runs/x"}}
	mux := newTestMux(runner)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(briefJSON)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "output/flyer_runs/x")
	require.Len(t, runner.briefs, 1)
	assert.Equal(t, "Rio Smoothies", runner.briefs[0].BusinessDetails.Name)
}

func TestGenerateRejectsInvalidJSON(t *testing.T) {
	mux := newTestMux(&fakeRunner{})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader("{nope")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_json")
}

func TestGenerateRejectsInvalidBrief(t *testing.T) {
	mux := newTestMux(&fakeRunner{})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"product": "x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_brief")
}

func TestGenerateMapsRunErrorTo500(t *testing.T) {
	mux := newTestMux(&fakeRunner{err: errors.New("image backend timed out")})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(briefJSON)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "run_failed")
}

func TestSDXLOptionsURL(t *testing.T) {
	assert.Equal(t, "http://localhost:7860/sdapi/v1/options",
		sdxlOptionsURL("http://localhost:7860/sdapi/v1/txt2img"))
	assert.Equal(t, "http://gpu-box/sdapi/v1/options",
		sdxlOptionsURL("http://gpu-box/"))
}

func TestReadinessChecksPerProvider(t *testing.T) {
	cfg := config.Runtime{
		LLMBaseURL:    "http://localhost:11434/v1",
		ImageProvider: config.ProviderSDXL,
		SDXLAPIURL:    "http://localhost:7860/sdapi/v1/txt2img",
	}
	checks := ReadinessChecks(cfg)
	require.Len(t, checks, 2)
	assert.Equal(t, "llm", checks[0].Name)
	assert.Equal(t, "sdxl", checks[1].Name)

	cfg.VisionBaseURL = "http://vision:8000/v1"
	cfg.ImageProvider = config.ProviderComfyUI
	checks = ReadinessChecks(cfg)
	require.Len(t, checks, 3)
	assert.Equal(t, "llm_text", checks[0].Name)
	assert.Equal(t, "llm_vision", checks[1].Name)
	assert.Equal(t, "comfyui", checks[2].Name)
}

func TestReadinessCheckHitsEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/models" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	check := urlCheck("llm", srv.URL+"/v1/models")
	require.NoError(t, check.Check(context.Background()))

	bad := urlCheck("llm", srv.URL+"/missing")
	assert.Error(t, bad.Check(context.Background()))
}
