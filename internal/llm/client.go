package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"golang.org/x/time/rate"
)

// Client speaks the OpenAI-compatible chat completions API. Ollama, vLLM and
// OpenAI itself all expose this surface, so one client covers every text and
// vision model the pipeline talks to.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
}

type Options struct {
	BaseURL           string
	APIKey            string
	HTTPClient        *http.Client
	Logger            *slog.Logger
	RequestsPerMinute int
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("base url is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), 1)
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		httpClient: httpClient,
		logger:     logger,
		limiter:    limiter,
	}, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat sends a single user prompt and returns the assistant text.
func (c *Client) Chat(ctx context.Context, model, prompt string) (string, error) {
	return c.complete(ctx, model, []chatMessage{
		{Role: "user", Content: prompt},
	})
}

// ChatWithImages sends a user prompt with inline base64 image attachments.
// Used for image-based brand style inference and OCR extraction.
func (c *Client) ChatWithImages(ctx context.Context, model, prompt string, imagePaths []string) (string, error) {
	parts := []contentPart{{Type: "text", Text: prompt}}
	for _, path := range imagePaths {
		url, err := ImageDataURL(path)
		if err != nil {
			return "", err
		}
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: url}})
	}
	return c.complete(ctx, model, []chatMessage{
		{Role: "user", Content: parts},
	})
}

func (c *Client) complete(ctx context.Context, model string, messages []chatMessage) (string, error) {
	if strings.TrimSpace(model) == "" {
		return "", errors.New("model is required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(chatRequest{Model: model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("chat API %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("chat API returned no choices")
	}

	c.logger.Debug("chat completion", "model", model, "response_bytes", len(raw))
	return decoded.Choices[0].Message.Content, nil
}

// ImageDataURL reads a local image and encodes it as a PNG data URL suitable
// for vision-model message parts.
func ImageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image %s: %w", path, err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}
