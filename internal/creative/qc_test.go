package creative

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, NormalizeText("Call (512) 555-0142!"), NormalizeText("call 512 555 0142"))
	assert.Equal(t, "bogo fridays", NormalizeText("  BOGO   Fridays!! "))
	assert.Equal(t, "", NormalizeText("!!! --- ???"))
}

func TestValidateTextVerbatimPhrase(t *testing.T) {
	ocr := "RIO SMOOTHIES\nBOGO Fridays\nVisit Today\nCall (512) 555-0142"
	assert.True(t, ValidateText([]string{"BOGO Fridays", "Visit Today", "512 555 0142"}, ocr))
}

func TestValidateTextDissimilarPhraseFails(t *testing.T) {
	ocr := "completely unrelated billboard about insurance rates"
	assert.False(t, ValidateText([]string{"BOGO Fridays at Rio Smoothies"}, ocr))
}

func TestValidateTextToleratesMinorMisreads(t *testing.T) {
	// One dropped character in the OCR output should not fail QC.
	assert.True(t, ValidateText([]string{"Rio Smoothies"}, "Rio Smoothie"))
}

func TestValidateTextSkipsEmptyPhrases(t *testing.T) {
	assert.True(t, ValidateText([]string{"", "   ", "!!!"}, "anything"))
}

func TestMatchRatio(t *testing.T) {
	assert.Equal(t, 1.0, matchRatio("abc", "abc"))
	assert.Equal(t, 0.0, matchRatio("abc", "xyz"))
	assert.Equal(t, 1.0, matchRatio("", ""))

	// Shared prefix and suffix around a single differing character.
	ratio := matchRatio("abcdef", "abcxef")
	assert.InDelta(t, 10.0/12.0, ratio, 1e-9)
}

type fakeVision struct {
	handler func(prompt string, paths []string) (string, error)
	calls   int
}

func (f *fakeVision) ChatWithImages(_ context.Context, _ string, prompt string, paths []string) (string, error) {
	f.calls++
	return f.handler(prompt, paths)
}

func TestExtractImageText(t *testing.T) {
	vision := &fakeVision{handler: func(prompt string, paths []string) (string, error) {
		assert.Contains(t, prompt, "Extract all visible text")
		require.Equal(t, []string{"/tmp/variant_01.png"}, paths)
		return "  BOGO Fridays \n", nil
	}}
	text, err := ExtractImageText(context.Background(), vision, "llama3.2-vision:latest", "/tmp/variant_01.png")
	require.NoError(t, err)
	assert.Equal(t, "BOGO Fridays", text)
}
