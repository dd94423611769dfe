package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

var placeholderPattern = regexp.MustCompile(`\{\{[^}]+\}\}`)

// ComfyUIGenerator queues a workflow-template prompt on a ComfyUI server,
// polls its history until outputs appear, and downloads the rendered image.
type ComfyUIGenerator struct {
	apiURL       string
	workflowPath string
	outputNode   string
	width        int
	height       int
	timeout      time.Duration
	httpClient   *http.Client
}

type ComfyUIOptions struct {
	APIURL       string
	WorkflowPath string
	OutputNode   string
	Size         string
	Timeout      time.Duration
}

func NewComfyUIGenerator(opts ComfyUIOptions) (*ComfyUIGenerator, error) {
	if strings.TrimSpace(opts.APIURL) == "" {
		return nil, errors.New("api url is required")
	}
	if strings.TrimSpace(opts.WorkflowPath) == "" {
		return nil, errors.New("workflow path is required")
	}
	width, height, err := ParseSize(opts.Size)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout < 10*time.Second {
		timeout = 10 * time.Second
	}
	return &ComfyUIGenerator{
		apiURL:       strings.TrimRight(opts.APIURL, "/"),
		workflowPath: opts.WorkflowPath,
		outputNode:   opts.OutputNode,
		width:        width,
		height:       height,
		timeout:      timeout,
		httpClient:   &http.Client{Timeout: timeout},
	}, nil
}

// RenderWorkflowTemplate substitutes {{KEY}} placeholders in a workflow JSON
// template. String values are JSON-quoted; numbers are inserted verbatim.
// Any placeholder left unresolved is an error, not a silent passthrough.
func RenderWorkflowTemplate(path string, values map[string]any) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow template: %w", err)
	}
	text := string(raw)

	for key, value := range values {
		token := "{{" + key + "}}"
		if !strings.Contains(text, token) {
			continue
		}
		var replacement string
		switch v := value.(type) {
		case int, int64, float64:
			replacement = fmt.Sprintf("%v", v)
		case nil:
			replacement = `""`
		default:
			quoted, err := json.Marshal(fmt.Sprintf("%v", v))
			if err != nil {
				return nil, err
			}
			replacement = string(quoted)
		}
		text = strings.ReplaceAll(text, token, replacement)
	}

	unresolved := placeholderPattern.FindAllString(text, -1)
	if len(unresolved) > 0 {
		seen := map[string]struct{}{}
		uniq := make([]string, 0, len(unresolved))
		for _, token := range unresolved {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			uniq = append(uniq, token)
		}
		sort.Strings(uniq)
		return nil, fmt.Errorf("unresolved workflow placeholders: %s", strings.Join(uniq, ", "))
	}

	var workflow map[string]any
	if err := json.Unmarshal([]byte(text), &workflow); err != nil {
		return nil, fmt.Errorf("workflow JSON invalid after substitution: %w", err)
	}
	return workflow, nil
}

type comfyImageRef struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

func (g *ComfyUIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	workflow, err := RenderWorkflowTemplate(g.workflowPath, map[string]any{
		"PROMPT":          req.Prompt,
		"NEGATIVE_PROMPT": req.NegativePrompt,
		"WIDTH":           g.width,
		"HEIGHT":          g.height,
		"SEED":            req.Seed,
	})
	if err != nil {
		return "", &GenerationError{Provider: "comfyui", Err: err}
	}

	promptID, err := g.queuePrompt(ctx, workflow)
	if err != nil {
		return "", &GenerationError{Provider: "comfyui", Err: err}
	}

	imageRef, err := g.awaitOutputs(ctx, promptID)
	if err != nil {
		return "", &GenerationError{Provider: "comfyui", Err: err}
	}

	if err := g.downloadImage(ctx, imageRef, req.OutputPath); err != nil {
		return "", &GenerationError{Provider: "comfyui", Err: err}
	}
	return req.OutputPath, nil
}

func (g *ComfyUIGenerator) queuePrompt(ctx context.Context, workflow map[string]any) (string, error) {
	body, err := json.Marshal(map[string]any{"prompt": workflow})
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL+"/prompt", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("queue prompt %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var decoded struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode queue response: %w", err)
	}
	if decoded.PromptID == "" {
		return "", errors.New("comfyui did not return a prompt_id")
	}
	return decoded.PromptID, nil
}

func (g *ComfyUIGenerator) awaitOutputs(ctx context.Context, promptID string) (comfyImageRef, error) {
	deadline := time.Now().Add(g.timeout)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return comfyImageRef{}, ctx.Err()
		case <-ticker.C:
		}

		outputs, ok, err := g.fetchOutputs(ctx, promptID)
		if err != nil {
			return comfyImageRef{}, err
		}
		if !ok {
			continue
		}
		return selectImageRef(outputs, g.outputNode)
	}
	return comfyImageRef{}, errors.New("comfyui did not produce outputs before timeout")
}

type comfyNodeOutput struct {
	Images []comfyImageRef `json:"images"`
}

func (g *ComfyUIGenerator) fetchOutputs(ctx context.Context, promptID string) (map[string]comfyNodeOutput, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiURL+"/history/"+promptID, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, false, nil
	}

	var history map[string]struct {
		Outputs map[string]comfyNodeOutput `json:"outputs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, false, err
	}
	entry, ok := history[promptID]
	if !ok || len(entry.Outputs) == 0 {
		return nil, false, nil
	}
	return entry.Outputs, true, nil
}

func selectImageRef(outputs map[string]comfyNodeOutput, preferredNode string) (comfyImageRef, error) {
	if preferredNode != "" {
		if node, ok := outputs[preferredNode]; ok && len(node.Images) > 0 {
			return node.Images[0], nil
		}
	}
	// Deterministic fallback: first node in key order that produced images.
	keys := make([]string, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if len(outputs[k].Images) > 0 {
			return outputs[k].Images[0], nil
		}
	}
	return comfyImageRef{}, errors.New("comfyui returned no images in outputs")
}

func (g *ComfyUIGenerator) downloadImage(ctx context.Context, ref comfyImageRef, outputPath string) error {
	if ref.Filename == "" {
		return errors.New("comfyui image reference missing filename")
	}
	refType := ref.Type
	if refType == "" {
		refType = "output"
	}
	params := url.Values{}
	params.Set("filename", ref.Filename)
	params.Set("subfolder", ref.Subfolder)
	params.Set("type", refType)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiURL+"/view?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("download image: %s", resp.Status)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}
