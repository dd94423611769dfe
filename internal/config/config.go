package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/afrojuju1/hyperlocal/internal/platform/env"
)

// MissingConfigError is a fatal startup error: a required endpoint, key or
// setting is absent. No run is ever started with an invalid configuration.
type MissingConfigError struct {
	Key    string
	Reason string
}

func (e *MissingConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("missing configuration: %s is required", e.Key)
	}
	return fmt.Sprintf("missing configuration: %s is required (%s)", e.Key, e.Reason)
}

type ImageProvider string

const (
	ProviderOpenAI  ImageProvider = "openai"
	ProviderSDXL    ImageProvider = "sdxl"
	ProviderComfyUI ImageProvider = "comfyui"
)

// Models names the text and vision models used for one run; the pair is
// snapshotted onto the run record.
type Models struct {
	TextModel   string
	VisionModel string
}

// Runtime is the process-wide configuration, constructed once at startup and
// passed by reference into every component constructor. No component reads
// the environment directly.
type Runtime struct {
	LLMBaseURL           string
	VisionBaseURL        string
	LLMAPIKey            string
	LLMRequestsPerMinute int
	LLMTimeout           time.Duration

	ImageProvider ImageProvider
	ImageModel    string
	ImageSize     string
	ImageQuality  string
	ImageSeed     int
	OpenAIAPIKey  string
	OpenAIBaseURL string

	SDXLAPIURL   string
	SDXLSteps    int
	SDXLCfgScale float64
	SDXLSampler  string
	SDXLTimeout  time.Duration

	ComfyUIAPIURL     string
	ComfyUIWorkflow   string
	ComfyUIOutputNode string
	ComfyUITimeout    time.Duration

	OutputDir         string
	Variants          int
	MaxImageAttempts  int
	QCEnabled         bool
	QCRetryDelay      time.Duration
	MaxConcurrentRuns int

	PersistEnabled bool
	StorageEnabled bool
}

func ModelsFromEnv() Models {
	return Models{
		TextModel:   env.String("HYPERLOCAL_TEXT_MODEL", "qwen2.5:7b"),
		VisionModel: env.String("HYPERLOCAL_VISION_MODEL", "llama3.2-vision:latest"),
	}
}

func RuntimeFromEnv() (Runtime, error) {
	llmTimeout, err := env.Duration("HYPERLOCAL_LLM_TIMEOUT", 3*time.Minute)
	if err != nil {
		return Runtime{}, err
	}
	llmRPM, err := env.Int("HYPERLOCAL_LLM_REQUESTS_PER_MINUTE", 0)
	if err != nil {
		return Runtime{}, err
	}
	sdxlSteps, err := env.Int("SDXL_STEPS", 6)
	if err != nil {
		return Runtime{}, err
	}
	sdxlCfg, err := env.Float("SDXL_CFG_SCALE", 1.5)
	if err != nil {
		return Runtime{}, err
	}
	sdxlTimeout, err := env.Duration("SDXL_TIMEOUT", 5*time.Minute)
	if err != nil {
		return Runtime{}, err
	}
	comfyTimeout, err := env.Duration("COMFYUI_TIMEOUT", 5*time.Minute)
	if err != nil {
		return Runtime{}, err
	}
	imageSeed, err := env.Int("HYPERLOCAL_IMAGE_SEED", 42)
	if err != nil {
		return Runtime{}, err
	}
	variants, err := env.Int("HYPERLOCAL_VARIANTS", 1)
	if err != nil {
		return Runtime{}, err
	}
	maxAttempts, err := env.Int("HYPERLOCAL_MAX_IMAGE_ATTEMPTS", 3)
	if err != nil {
		return Runtime{}, err
	}
	qcEnabled, err := env.Bool("HYPERLOCAL_QC_ENABLED", true)
	if err != nil {
		return Runtime{}, err
	}
	qcRetryDelay, err := env.Duration("HYPERLOCAL_QC_RETRY_DELAY", time.Second)
	if err != nil {
		return Runtime{}, err
	}
	maxConcurrent, err := env.Int("HYPERLOCAL_MAX_CONCURRENT_RUNS", 2)
	if err != nil {
		return Runtime{}, err
	}
	persistEnabled, err := env.Bool("HYPERLOCAL_PERSIST_ENABLED", false)
	if err != nil {
		return Runtime{}, err
	}
	storageEnabled, err := env.Bool("HYPERLOCAL_STORAGE_ENABLED", false)
	if err != nil {
		return Runtime{}, err
	}

	cfg := Runtime{
		LLMBaseURL:           env.String("HYPERLOCAL_LLM_BASE_URL", "http://localhost:11434/v1"),
		VisionBaseURL:        env.String("HYPERLOCAL_VISION_BASE_URL", ""),
		LLMAPIKey:            env.String("HYPERLOCAL_LLM_API_KEY", "ollama"),
		LLMRequestsPerMinute: llmRPM,
		LLMTimeout:           llmTimeout,

		ImageProvider: ImageProvider(strings.ToLower(env.String("HYPERLOCAL_IMAGE_PROVIDER", string(ProviderSDXL)))),
		ImageModel:    env.String("HYPERLOCAL_IMAGE_MODEL", "gpt-image-1"),
		ImageSize:     env.String("HYPERLOCAL_IMAGE_SIZE", "1024x1536"),
		ImageQuality:  env.String("HYPERLOCAL_IMAGE_QUALITY", "high"),
		ImageSeed:     imageSeed,
		OpenAIAPIKey:  env.String("OPENAI_API_KEY", ""),
		OpenAIBaseURL: env.String("OPENAI_BASE_URL", "https://api.openai.com/v1"),

		SDXLAPIURL:   env.String("SDXL_API_URL", "http://localhost:7860/sdapi/v1/txt2img"),
		SDXLSteps:    sdxlSteps,
		SDXLCfgScale: sdxlCfg,
		SDXLSampler:  env.String("SDXL_SAMPLER", "Euler a"),
		SDXLTimeout:  sdxlTimeout,

		ComfyUIAPIURL:     env.String("COMFYUI_API_URL", "http://localhost:8188"),
		ComfyUIWorkflow:   env.String("COMFYUI_WORKFLOW_PATH", ""),
		ComfyUIOutputNode: env.String("COMFYUI_OUTPUT_NODE", ""),
		ComfyUITimeout:    comfyTimeout,

		OutputDir:         env.String("HYPERLOCAL_OUTPUT_DIR", "output"),
		Variants:          variants,
		MaxImageAttempts:  maxAttempts,
		QCEnabled:         qcEnabled,
		QCRetryDelay:      qcRetryDelay,
		MaxConcurrentRuns: maxConcurrent,

		PersistEnabled: persistEnabled,
		StorageEnabled: storageEnabled,
	}
	if err := cfg.Validate(); err != nil {
		return Runtime{}, err
	}
	return cfg, nil
}

func (c Runtime) Validate() error {
	if strings.TrimSpace(c.LLMBaseURL) == "" {
		return &MissingConfigError{Key: "HYPERLOCAL_LLM_BASE_URL"}
	}
	if c.Variants < 1 {
		return &MissingConfigError{Key: "HYPERLOCAL_VARIANTS", Reason: "must be >= 1, got " + strconv.Itoa(c.Variants)}
	}
	if c.MaxImageAttempts < 1 {
		return &MissingConfigError{Key: "HYPERLOCAL_MAX_IMAGE_ATTEMPTS", Reason: "must be >= 1"}
	}
	if c.MaxConcurrentRuns < 1 {
		return &MissingConfigError{Key: "HYPERLOCAL_MAX_CONCURRENT_RUNS", Reason: "must be >= 1"}
	}

	switch c.ImageProvider {
	case ProviderOpenAI:
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			return &MissingConfigError{Key: "OPENAI_API_KEY", Reason: "image provider is openai"}
		}
	case ProviderSDXL:
		if strings.TrimSpace(c.SDXLAPIURL) == "" {
			return &MissingConfigError{Key: "SDXL_API_URL", Reason: "image provider is sdxl"}
		}
	case ProviderComfyUI:
		if strings.TrimSpace(c.ComfyUIAPIURL) == "" {
			return &MissingConfigError{Key: "COMFYUI_API_URL", Reason: "image provider is comfyui"}
		}
		if strings.TrimSpace(c.ComfyUIWorkflow) == "" {
			return &MissingConfigError{Key: "COMFYUI_WORKFLOW_PATH", Reason: "image provider is comfyui"}
		}
	default:
		return fmt.Errorf("unsupported image provider: %q", c.ImageProvider)
	}
	return nil
}

// VisionURL resolves the vision endpoint, falling back to the text endpoint
// when a dedicated one is not configured.
func (c Runtime) VisionURL() string {
	if strings.TrimSpace(c.VisionBaseURL) != "" {
		return c.VisionBaseURL
	}
	return c.LLMBaseURL
}
