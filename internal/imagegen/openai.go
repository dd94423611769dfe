package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// OpenAIGenerator calls the OpenAI-compatible images API and decodes the
// base64 payload to disk.
type OpenAIGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	size       string
	quality    string
	httpClient *http.Client
}

type OpenAIOptions struct {
	BaseURL string
	APIKey  string
	Model   string
	Size    string
	Quality string
	Timeout time.Duration
}

func NewOpenAIGenerator(opts OpenAIOptions) (*OpenAIGenerator, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &OpenAIGenerator{
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		model:      opts.Model,
		size:       opts.Size,
		quality:    opts.Quality,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type openaiImageRequest struct {
	Model      string `json:"model"`
	Prompt     string `json:"prompt"`
	Size       string `json:"size,omitempty"`
	Quality    string `json:"quality,omitempty"`
	Background string `json:"background,omitempty"`
}

type openaiImageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	// The images API has no negative-prompt field; fold it into the prompt.
	prompt := req.Prompt
	if strings.TrimSpace(req.NegativePrompt) != "" {
		prompt += "\n\nNegative constraints: " + req.NegativePrompt
	}

	body, err := json.Marshal(openaiImageRequest{
		Model:      g.model,
		Prompt:     prompt,
		Size:       g.size,
		Quality:    g.quality,
		Background: "opaque",
	})
	if err != nil {
		return "", &GenerationError{Provider: "openai", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return "", &GenerationError{Provider: "openai", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", &GenerationError{Provider: "openai", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &GenerationError{Provider: "openai", Err: err}
	}
	if resp.StatusCode >= 400 {
		return "", &GenerationError{Provider: "openai", Err: fmt.Errorf("images API %s: %s", resp.Status, strings.TrimSpace(string(raw)))}
	}

	var decoded openaiImageResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &GenerationError{Provider: "openai", Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(decoded.Data) == 0 || decoded.Data[0].B64JSON == "" {
		return "", &GenerationError{Provider: "openai", Err: errors.New("images API returned no image data")}
	}

	if err := writeBase64Image(decoded.Data[0].B64JSON, req.OutputPath); err != nil {
		return "", &GenerationError{Provider: "openai", Err: err}
	}
	return req.OutputPath, nil
}

func writeBase64Image(encoded, outputPath string) error {
	// Some backends return data URLs; strip the prefix before decoding.
	if idx := strings.IndexByte(encoded, ','); idx >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode image payload: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}
