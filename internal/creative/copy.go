package creative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/afrojuju1/hyperlocal/internal/domain"
	"github.com/afrojuju1/hyperlocal/internal/llm"
)

// TextModel issues chat completions and bounded JSON repair. *llm.Client
// satisfies it.
type TextModel interface {
	Chat(ctx context.Context, model, prompt string) (string, error)
	ParseOrRepairJSON(ctx context.Context, model, raw string) (any, error)
}

// maxGenerationCycles bounds the outer copy-generation loop.
const maxGenerationCycles = 3

// copyShape tags the interpretable shapes of parsed copy JSON so dispatch is
// explicit rather than a chain of type probes.
type copyShape int

const (
	shapeUnusable copyShape = iota
	shapeEnvelope
	shapeObject
	shapeObjectList
	shapeStringList
)

func classifyCopyShape(value any) copyShape {
	switch v := value.(type) {
	case map[string]any:
		if _, ok := v["variants"]; ok {
			return shapeEnvelope
		}
		if _, ok := v["copy_variants"]; ok {
			return shapeEnvelope
		}
		if _, ok := v["headline"]; ok {
			return shapeObject
		}
		return shapeUnusable
	case []any:
		allObjects, allStrings := true, true
		for _, item := range v {
			if _, ok := item.(map[string]any); !ok {
				allObjects = false
			}
			if _, ok := item.(string); !ok {
				allStrings = false
			}
		}
		if allObjects {
			return shapeObjectList
		}
		if allStrings {
			return shapeStringList
		}
		return shapeUnusable
	}
	return shapeUnusable
}

func unwrapEnvelope(value map[string]any) any {
	if inner, ok := value["variants"]; ok {
		return inner
	}
	return value["copy_variants"]
}

func decodeCopyVariant(value any) (domain.CopyVariant, error) {
	if list, ok := value.([]any); ok && len(list) > 0 {
		value = list[0]
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return domain.CopyVariant{}, err
	}
	var variant domain.CopyVariant
	if err := json.Unmarshal(raw, &variant); err != nil {
		return domain.CopyVariant{}, err
	}
	return variant, nil
}

func decodeCopyVariantList(items []any) ([]domain.CopyVariant, error) {
	variants := make([]domain.CopyVariant, 0, len(items))
	for _, item := range items {
		variant, err := decodeCopyVariant(item)
		if err != nil {
			return nil, &UnusableCopyShapeError{Detail: err.Error()}
		}
		variants = append(variants, variant)
	}
	return variants, nil
}

type CopyGeneratorOptions struct {
	Text   TextModel
	Model  string
	Logger *slog.Logger

	// AllowFallback fills an exhausted generation with deterministic
	// brief-derived variants instead of failing. Off by default.
	AllowFallback bool
}

// CopyGenerator turns a brief and style into budget-compliant copy variants
// through a bounded generate, coerce, pad, enforce cycle.
type CopyGenerator struct {
	text          TextModel
	model         string
	logger        *slog.Logger
	allowFallback bool
}

func NewCopyGenerator(opts CopyGeneratorOptions) (*CopyGenerator, error) {
	if opts.Text == nil {
		return nil, errors.New("text model is required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("model name is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CopyGenerator{
		text:          opts.Text,
		model:         opts.Model,
		logger:        logger,
		allowFallback: opts.AllowFallback,
	}, nil
}

// Generate returns exactly target variants or fails with
// *CopyGenerationExhaustedError. Order is preserved: first-request variants
// come before padded ones.
func (g *CopyGenerator) Generate(ctx context.Context, brief domain.CreativeBrief, style domain.BrandStyle, target int) ([]domain.CopyVariant, error) {
	if target < 1 {
		target = 1
	}
	prompt := CopyPrompt(brief, style, target)

	var lastCount int
	for attempt := 1; attempt <= maxGenerationCycles; attempt++ {
		raw, err := g.text.Chat(ctx, g.model, prompt)
		if err != nil {
			return nil, fmt.Errorf("copy generation request: %w", err)
		}
		value, err := g.text.ParseOrRepairJSON(ctx, g.model, raw)
		if err != nil {
			return nil, err
		}
		variants, err := g.coerce(ctx, value)
		if err != nil {
			return nil, err
		}

		if len(variants) < target {
			variants, err = g.pad(ctx, brief, style, variants, target)
			if err != nil {
				return nil, err
			}
		}
		lastCount = len(variants)
		if lastCount >= target {
			return g.enforceAll(ctx, brief, style, variants[:target]), nil
		}
		g.logger.Warn("copy generation came up short",
			"attempt", attempt, "got", lastCount, "target", target)
	}

	if g.allowFallback {
		g.logger.Warn("copy generation exhausted, using deterministic fallback copy",
			"target", target)
		variants := make([]domain.CopyVariant, 0, target)
		for len(variants) < target {
			variants = append(variants, FallbackVariant(brief))
		}
		return variants, nil
	}
	return nil, &CopyGenerationExhaustedError{Target: target, Got: lastCount, Attempts: maxGenerationCycles}
}

// coerce normalizes a parsed JSON value into copy variants via explicit shape
// dispatch. A string list triggers one structured-repair model call.
func (g *CopyGenerator) coerce(ctx context.Context, value any) ([]domain.CopyVariant, error) {
	switch classifyCopyShape(value) {
	case shapeEnvelope:
		inner := unwrapEnvelope(value.(map[string]any))
		switch classifyCopyShape(inner) {
		case shapeObjectList:
			return decodeCopyVariantList(inner.([]any))
		case shapeStringList:
			return g.repairStringList(ctx, inner.([]any))
		}
		return nil, &UnusableCopyShapeError{Detail: "envelope wraps neither objects nor strings"}
	case shapeObject:
		variant, err := decodeCopyVariant(value)
		if err != nil {
			return nil, &UnusableCopyShapeError{Detail: err.Error()}
		}
		return []domain.CopyVariant{variant}, nil
	case shapeObjectList:
		return decodeCopyVariantList(value.([]any))
	case shapeStringList:
		return g.repairStringList(ctx, value.([]any))
	}
	return nil, &UnusableCopyShapeError{}
}

// repairStringList converts prose lines back into structured variants with a
// single model call.
func (g *CopyGenerator) repairStringList(ctx context.Context, items []any) ([]domain.CopyVariant, error) {
	encoded, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, err
	}
	prompt := "Convert the following list into JSON array of objects with keys: " +
		"headline, subhead, body, cta, disclaimer. " +
		"Return JSON only. Input list:\n" + string(encoded)

	raw, err := g.text.Chat(ctx, g.model, prompt)
	if err != nil {
		return nil, fmt.Errorf("copy repair request: %w", err)
	}
	value, err := g.text.ParseOrRepairJSON(ctx, g.model, raw)
	if err != nil {
		return nil, err
	}
	list, ok := value.([]any)
	if !ok || classifyCopyShape(list) != shapeObjectList {
		return nil, &UnusableCopyShapeError{Detail: "repair did not produce a JSON array of objects"}
	}
	return decodeCopyVariantList(list)
}

// pad asks for exactly the missing count and appends the results, keeping
// first-request variants ahead of padded ones.
func (g *CopyGenerator) pad(ctx context.Context, brief domain.CreativeBrief, style domain.BrandStyle, variants []domain.CopyVariant, target int) ([]domain.CopyVariant, error) {
	needed := target - len(variants)
	if needed <= 0 {
		return variants, nil
	}
	prompt := "Generate additional flyer copy variants as JSON array with keys: " +
		"headline, subhead, body, cta, disclaimer. " +
		fmt.Sprintf("Return exactly %d variants. ", needed) +
		fmt.Sprintf("Business: %s. Product: %s. Offer: %s. ", brief.BusinessName(), brief.Product, brief.Offer) +
		fmt.Sprintf("Tone: %s. Style: %s.", brief.Tone, strings.Join(style.StyleKeywords, ", "))

	raw, err := g.text.Chat(ctx, g.model, prompt)
	if err != nil {
		return nil, fmt.Errorf("copy padding request: %w", err)
	}
	value, err := g.text.ParseOrRepairJSON(ctx, g.model, raw)
	if err != nil {
		return nil, err
	}
	extra, err := g.coerce(ctx, value)
	if err != nil {
		return nil, err
	}
	combined := append(variants, extra...)
	if len(combined) > target {
		combined = combined[:target]
	}
	return combined, nil
}

func (g *CopyGenerator) enforceAll(ctx context.Context, brief domain.CreativeBrief, style domain.BrandStyle, variants []domain.CopyVariant) []domain.CopyVariant {
	out := make([]domain.CopyVariant, 0, len(variants))
	for _, variant := range variants {
		out = append(out, g.Enforce(ctx, variant, brief, style))
	}
	return out
}

// Enforce never fails: a compliant variant passes through unchanged, a
// violating one gets at most one rewrite request, and truncation is always
// the final word on budgets.
func (g *CopyGenerator) Enforce(ctx context.Context, variant domain.CopyVariant, brief domain.CreativeBrief, style domain.BrandStyle) domain.CopyVariant {
	if variant.WithinBudgets() {
		return variant
	}

	encoded, err := json.MarshalIndent(variant, "", "  ")
	if err == nil {
		prompt := "Rewrite the flyer copy to fit the strict length constraints. " +
			"Return JSON with keys: headline, subhead, body, cta, disclaimer. " +
			"Constraints: headline <= 6 words, subhead <= 10 words, body <= 28 words, " +
			"cta <= 4 words, disclaimer <= 12 words. " +
			fmt.Sprintf("Business: %s. Product: %s. Offer: %s. ", brief.BusinessName(), brief.Product, brief.Offer) +
			fmt.Sprintf("Tone: %s. Style: %s. ", brief.Tone, strings.Join(style.StyleKeywords, ", ")) +
			"Original copy:\n" + string(encoded)

		raw, chatErr := g.text.Chat(ctx, g.model, prompt)
		if chatErr != nil {
			g.logger.Warn("copy rewrite request failed, truncating", "error", chatErr)
		} else if value, parseErr := llm.ParseModelJSON(raw); parseErr == nil {
			if rewritten, decodeErr := decodeCopyVariant(value); decodeErr == nil {
				variant = rewritten
			}
		}
	}
	return variant.Truncated()
}

// FallbackVariant derives a budget-compliant variant purely from brief
// fields, with no model call. Used only on the explicit fallback path.
func FallbackVariant(brief domain.CreativeBrief) domain.CopyVariant {
	v := domain.CopyVariant{
		Headline: brief.Offer,
		Subhead:  strings.TrimSpace(brief.Product + " from " + brief.BusinessName()),
		Body:     fmt.Sprintf("%s on %s. Visit %s today.", brief.Offer, brief.Product, brief.BusinessName()),
		CTA:      orDefault(brief.CTA, "Visit today"),
	}
	return v.Truncated()
}
