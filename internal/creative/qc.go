package creative

import (
	"context"
	"strings"
)

// qcSimilarityThreshold tolerates minor OCR misreads without accepting
// wholesale mismatches.
const qcSimilarityThreshold = 0.75

const ocrPrompt = "Extract all visible text from this flyer image. " +
	"Return only the text, preserve line breaks when possible."

// ExtractImageText asks a vision model to OCR all visible text in an image.
func ExtractImageText(ctx context.Context, vision VisionModel, model, imagePath string) (string, error) {
	text, err := vision.ChatWithImages(ctx, model, ocrPrompt, []string{imagePath})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// NormalizeText lowercases, replaces every non-alphanumeric rune with a
// space, and collapses runs of whitespace. "Call (512) 555-0142!" and
// "call 512 555 0142" normalize to the same string.
func NormalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ValidateText reports whether every expected phrase is present in the OCR
// text. A phrase is present when its normalized form is a substring of the
// normalized OCR text or its similarity ratio clears the threshold. Empty
// phrases are skipped.
func ValidateText(expectedPhrases []string, ocrText string) bool {
	normalizedOCR := NormalizeText(ocrText)
	for _, phrase := range expectedPhrases {
		normalized := NormalizeText(phrase)
		if normalized == "" {
			continue
		}
		if strings.Contains(normalizedOCR, normalized) {
			continue
		}
		if matchRatio(normalized, normalizedOCR) < qcSimilarityThreshold {
			return false
		}
	}
	return true
}

// matchRatio is the classic contiguous-subsequence similarity: 2*M/T where M
// is the total length of matching blocks found by recursively locating the
// longest common substring, and T is the combined length of both inputs.
func matchRatio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	total := len(a) + len(b)
	if total == 0 {
		return 1.0
	}
	matched := matchedBlockLength(a, b)
	return 2.0 * float64(matched) / float64(total)
}

func matchedBlockLength(a, b string) int {
	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	return size +
		matchedBlockLength(a[:ai], b[:bi]) +
		matchedBlockLength(a[ai+size:], b[bi+size:])
}

func longestMatch(a, b string) (int, int, int) {
	bestA, bestB, bestSize := 0, 0, 0
	// lengths[j] holds the length of the common suffix of a[:i+1] and b[:j+1].
	lengths := make([]int, len(b)+1)
	for i := 0; i < len(a); i++ {
		prev := 0
		for j := 0; j < len(b); j++ {
			cur := lengths[j+1]
			if a[i] == b[j] {
				lengths[j+1] = prev + 1
				if lengths[j+1] > bestSize {
					bestSize = lengths[j+1]
					bestA = i - bestSize + 1
					bestB = j - bestSize + 1
				}
			} else {
				lengths[j+1] = 0
			}
			prev = cur
		}
	}
	return bestA, bestB, bestSize
}
