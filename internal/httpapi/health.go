package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/afrojuju1/hyperlocal/internal/config"
	"github.com/afrojuju1/hyperlocal/internal/platform/httpserver"
)

var healthClient = &http.Client{Timeout: 2500 * time.Millisecond}

// ReadinessChecks probes the model endpoint(s) and the configured image
// backend. The text and vision endpoints collapse into one check when they
// share a base URL.
func ReadinessChecks(cfg config.Runtime) []httpserver.ReadinessCheck {
	var checks []httpserver.ReadinessCheck

	textBase := strings.TrimRight(cfg.LLMBaseURL, "/")
	visionBase := strings.TrimRight(cfg.VisionURL(), "/")
	if textBase == visionBase {
		checks = append(checks, urlCheck("llm", textBase+"/models"))
	} else {
		checks = append(checks,
			urlCheck("llm_text", textBase+"/models"),
			urlCheck("llm_vision", visionBase+"/models"),
		)
	}

	switch cfg.ImageProvider {
	case config.ProviderSDXL:
		checks = append(checks, urlCheck("sdxl", sdxlOptionsURL(cfg.SDXLAPIURL)))
	case config.ProviderComfyUI:
		checks = append(checks, urlCheck("comfyui", strings.TrimRight(cfg.ComfyUIAPIURL, "/")+"/system_stats"))
	}
	return checks
}

// sdxlOptionsURL derives the cheap options endpoint from the configured
// txt2img URL.
func sdxlOptionsURL(apiURL string) string {
	base := apiURL
	if idx := strings.Index(base, "/sdapi/v1/"); idx >= 0 {
		base = base[:idx]
	}
	return strings.TrimRight(base, "/") + "/sdapi/v1/options"
}

func urlCheck(name, url string) httpserver.ReadinessCheck {
	return httpserver.ReadinessCheck{
		Name: name,
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := healthClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return fmt.Errorf("%s returned %s", url, resp.Status)
			}
			return nil
		},
	}
}
