package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SDXLGenerator drives an Automatic1111-style txt2img endpoint.
type SDXLGenerator struct {
	apiURL     string
	width      int
	height     int
	steps      int
	cfgScale   float64
	sampler    string
	httpClient *http.Client
}

type SDXLOptions struct {
	APIURL   string
	Size     string
	Steps    int
	CfgScale float64
	Sampler  string
	Timeout  time.Duration
}

func NewSDXLGenerator(opts SDXLOptions) (*SDXLGenerator, error) {
	if strings.TrimSpace(opts.APIURL) == "" {
		return nil, errors.New("api url is required")
	}
	width, height, err := ParseSize(opts.Size)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &SDXLGenerator{
		apiURL:     opts.APIURL,
		width:      width,
		height:     height,
		steps:      opts.Steps,
		cfgScale:   opts.CfgScale,
		sampler:    opts.Sampler,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type sdxlRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Steps          int     `json:"steps"`
	CfgScale       float64 `json:"cfg_scale"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	SamplerName    string  `json:"sampler_name"`
}

type sdxlResponse struct {
	Images []string `json:"images"`
}

func (g *SDXLGenerator) Generate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(sdxlRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Steps:          g.steps,
		CfgScale:       g.cfgScale,
		Width:          g.width,
		Height:         g.height,
		SamplerName:    g.sampler,
	})
	if err != nil {
		return "", &GenerationError{Provider: "sdxl", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", &GenerationError{Provider: "sdxl", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", &GenerationError{Provider: "sdxl", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &GenerationError{Provider: "sdxl", Err: err}
	}
	if resp.StatusCode >= 400 {
		return "", &GenerationError{Provider: "sdxl", Err: fmt.Errorf("txt2img %s: %s", resp.Status, strings.TrimSpace(string(raw)))}
	}

	var decoded sdxlResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &GenerationError{Provider: "sdxl", Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(decoded.Images) == 0 {
		return "", &GenerationError{Provider: "sdxl", Err: errors.New("txt2img returned no images")}
	}

	if err := writeBase64Image(decoded.Images[0], req.OutputPath); err != nil {
		return "", &GenerationError{Provider: "sdxl", Err: err}
	}
	return req.OutputPath, nil
}
