package imagegen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	w, h, err := ParseSize("1024x1536")
	require.NoError(t, err)
	assert.Equal(t, 1024, w)
	assert.Equal(t, 1536, h)

	_, _, err = ParseSize("portrait")
	assert.Error(t, err)

	_, _, err = ParseSize("1024x")
	assert.Error(t, err)
}

func TestSDXLGeneratePayloadAndOutput(t *testing.T) {
	pngBytes := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	var got sdxlRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(sdxlResponse{Images: []string{base64.StdEncoding.EncodeToString(pngBytes)}})
	}))
	defer srv.Close()

	gen, err := NewSDXLGenerator(SDXLOptions{
		APIURL:   srv.URL,
		Size:     "512x768",
		Steps:    6,
		CfgScale: 1.5,
		Sampler:  "Euler a",
	})
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "variant_01.png")
	path, err := gen.Generate(context.Background(), Request{
		Prompt:         "a cozy bakery storefront",
		NegativePrompt: "people, faces",
		OutputPath:     out,
	})
	require.NoError(t, err)
	assert.Equal(t, out, path)

	assert.Equal(t, "a cozy bakery storefront", got.Prompt)
	assert.Equal(t, "people, faces", got.NegativePrompt)
	assert.Equal(t, 6, got.Steps)
	assert.Equal(t, 1.5, got.CfgScale)
	assert.Equal(t, 512, got.Width)
	assert.Equal(t, 768, got.Height)
	assert.Equal(t, "Euler a", got.SamplerName)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
}

func TestSDXLGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	gen, err := NewSDXLGenerator(SDXLOptions{APIURL: srv.URL, Size: "1024x1024"})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), Request{Prompt: "x", OutputPath: filepath.Join(t.TempDir(), "v.png")})
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "sdxl", genErr.Provider)
	assert.Contains(t, genErr.Error(), "model not loaded")
}

func TestOpenAIGenerateFoldsNegativePrompt(t *testing.T) {
	pngBytes := []byte{1, 2, 3, 4}
	var got openaiImageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		resp := openaiImageResponse{}
		resp.Data = append(resp.Data, struct {
			B64JSON string `json:"b64_json"`
		}{B64JSON: base64.StdEncoding.EncodeToString(pngBytes)})
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	gen, err := NewOpenAIGenerator(OpenAIOptions{
		BaseURL: srv.URL,
		APIKey:  "sk-test",
		Model:   "gpt-image-1",
		Size:    "1024x1536",
		Quality: "high",
	})
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "variant_01.png")
	_, err = gen.Generate(context.Background(), Request{
		Prompt:         "flyer background",
		NegativePrompt: "text, watermark",
		OutputPath:     out,
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-image-1", got.Model)
	assert.Contains(t, got.Prompt, "flyer background")
	assert.Contains(t, got.Prompt, "Negative constraints: text, watermark")
	assert.Equal(t, "1024x1536", got.Size)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
}

func TestWriteBase64ImageStripsDataURL(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("img"))
	out := filepath.Join(t.TempDir(), "nested", "v.png")
	require.NoError(t, writeBase64Image("data:image/png;base64,"+payload, out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), data)
}

func writeWorkflowTemplate(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRenderWorkflowTemplate(t *testing.T) {
	path := writeWorkflowTemplate(t, `{
		"3": {"inputs": {"text": {{PROMPT}}, "seed": {{SEED}}}},
		"4": {"inputs": {"text": {{NEGATIVE_PROMPT}}, "width": {{WIDTH}}, "height": {{HEIGHT}}}}
	}`)

	workflow, err := RenderWorkflowTemplate(path, map[string]any{
		"PROMPT":          `a "quoted" prompt`,
		"NEGATIVE_PROMPT": "people",
		"WIDTH":           1024,
		"HEIGHT":          1536,
		"SEED":            42,
	})
	require.NoError(t, err)

	node3 := workflow["3"].(map[string]any)["inputs"].(map[string]any)
	assert.Equal(t, `a "quoted" prompt`, node3["text"])
	assert.Equal(t, float64(42), node3["seed"])
	node4 := workflow["4"].(map[string]any)["inputs"].(map[string]any)
	assert.Equal(t, float64(1024), node4["width"])
}

func TestRenderWorkflowTemplateUnresolved(t *testing.T) {
	path := writeWorkflowTemplate(t, `{"3": {"inputs": {"text": {{PROMPT}}, "model": {{CHECKPOINT}}}}}`)

	_, err := RenderWorkflowTemplate(path, map[string]any{"PROMPT": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{{CHECKPOINT}}")
}

func TestComfyUIGenerateFlow(t *testing.T) {
	pngBytes := []byte{0x89, 'P', 'N', 'G'}
	polls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST /prompt", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Contains(t, body, "prompt")
		json.NewEncoder(w).Encode(map[string]string{"prompt_id": "abc123"})
	})
	mux.HandleFunc("GET /history/abc123", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls < 2 {
			w.Write([]byte(`{}`))
			return
		}
		w.Write([]byte(`{"abc123": {"outputs": {"9": {"images": [{"filename": "out.png", "subfolder": "", "type": "output"}]}}}}`))
	})
	mux.HandleFunc("GET /view", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "out.png", r.URL.Query().Get("filename"))
		assert.Equal(t, "output", r.URL.Query().Get("type"))
		w.Write(pngBytes)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	workflow := writeWorkflowTemplate(t, `{"3": {"inputs": {"text": {{PROMPT}}, "neg": {{NEGATIVE_PROMPT}}, "w": {{WIDTH}}, "h": {{HEIGHT}}, "seed": {{SEED}}}}}`)
	gen, err := NewComfyUIGenerator(ComfyUIOptions{
		APIURL:       srv.URL,
		WorkflowPath: workflow,
		OutputNode:   "9",
		Size:         "1024x1536",
		Timeout:      10 * time.Second,
	})
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "variant_01.png")
	path, err := gen.Generate(context.Background(), Request{Prompt: "flyer", NegativePrompt: "people", OutputPath: out, Seed: 7})
	require.NoError(t, err)
	assert.Equal(t, out, path)
	assert.GreaterOrEqual(t, polls, 2)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
}

func TestSelectImageRefFallsBackToFirstNode(t *testing.T) {
	outputs := map[string]comfyNodeOutput{
		"12": {},
		"7":  {Images: []comfyImageRef{{Filename: "a.png"}}},
		"9":  {Images: []comfyImageRef{{Filename: "b.png"}}},
	}
	ref, err := selectImageRef(outputs, "9")
	require.NoError(t, err)
	assert.Equal(t, "b.png", ref.Filename)

	ref, err = selectImageRef(outputs, "99")
	require.NoError(t, err)
	assert.Equal(t, "a.png", ref.Filename)

	_, err = selectImageRef(map[string]comfyNodeOutput{"1": {}}, "")
	assert.Error(t, err)
}
