package imagegen

import (
	"fmt"

	"github.com/afrojuju1/hyperlocal/internal/config"
)

// NewFromConfig builds the generator selected by the runtime configuration.
func NewFromConfig(cfg config.Runtime) (Generator, error) {
	switch cfg.ImageProvider {
	case config.ProviderOpenAI:
		return NewOpenAIGenerator(OpenAIOptions{
			BaseURL: cfg.OpenAIBaseURL,
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.ImageModel,
			Size:    cfg.ImageSize,
			Quality: cfg.ImageQuality,
		})
	case config.ProviderSDXL:
		return NewSDXLGenerator(SDXLOptions{
			APIURL:   cfg.SDXLAPIURL,
			Size:     cfg.ImageSize,
			Steps:    cfg.SDXLSteps,
			CfgScale: cfg.SDXLCfgScale,
			Sampler:  cfg.SDXLSampler,
			Timeout:  cfg.SDXLTimeout,
		})
	case config.ProviderComfyUI:
		return NewComfyUIGenerator(ComfyUIOptions{
			APIURL:       cfg.ComfyUIAPIURL,
			WorkflowPath: cfg.ComfyUIWorkflow,
			OutputNode:   cfg.ComfyUIOutputNode,
			Size:         cfg.ImageSize,
			Timeout:      cfg.ComfyUITimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported image provider: %q", cfg.ImageProvider)
	}
}
