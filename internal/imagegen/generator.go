package imagegen

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Request asks a backend to render one image. Every backend writes the image
// bytes to OutputPath and returns a reference usable for QC and display.
type Request struct {
	Prompt         string
	NegativePrompt string
	OutputPath     string
	Seed           int
}

// Generator is the image-generation collaborator, polymorphic over the direct
// image API, the local diffusion API and the node-graph workflow engine.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GenerationError is a hard backend failure: non-2xx response, empty output
// or timeout. QC failures are never a GenerationError.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("image generation failed (%s): %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ParseSize splits "1024x1536" into width and height.
func ParseSize(size string) (int, int, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(size)), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid image size: %q", size)
	}
	width, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid image size: %q", size)
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid image size: %q", size)
	}
	return width, height, nil
}
