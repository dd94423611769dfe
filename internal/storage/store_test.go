package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/afrojuju1/hyperlocal/internal/platform/objectstore"
)

func TestURLFor(t *testing.T) {
	s := &Store{cfg: objectstore.Config{Bucket: "creatives"}}
	assert.Equal(t, "s3://creatives/creative_runs/r1/variant_01.png", s.URLFor("creative_runs/r1/variant_01.png"))

	s.cfg.PublicBaseURL = "https://cdn.example.com"
	assert.Equal(t, "https://cdn.example.com/creative_runs/r1/variant_01.png", s.URLFor("creative_runs/r1/variant_01.png"))
}
