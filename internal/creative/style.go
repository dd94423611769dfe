package creative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/afrojuju1/hyperlocal/internal/config"
	"github.com/afrojuju1/hyperlocal/internal/domain"
	"github.com/afrojuju1/hyperlocal/internal/llm"
)

// VisionModel issues chat completions with inline image attachments.
// *llm.Client satisfies it.
type VisionModel interface {
	ChatWithImages(ctx context.Context, model, prompt string, imagePaths []string) (string, error)
}

// bannedStyleTokens are human references that must never reach an image
// prompt; flyers render backgrounds, not people.
var bannedStyleTokens = map[string]struct{}{
	"people":   {},
	"person":   {},
	"faces":    {},
	"face":     {},
	"hands":    {},
	"human":    {},
	"portrait": {},
}

const styleFromImagesPrompt = "Analyze the brand visuals and return JSON with keys: " +
	"palette (array of hex or color names), style_keywords (array), " +
	"layout_guidance (string), typography_guidance (string). " +
	"Return JSON only, no markdown."

func styleFromTextPrompt(brief domain.CreativeBrief) string {
	return "You are a brand designer. Given the business description, return JSON with keys: " +
		"palette (array of color names), style_keywords (array), layout_guidance (string), " +
		"typography_guidance (string). Return JSON only. " +
		fmt.Sprintf("Business: %s. Product: %s. Offer: %s. ", brief.BusinessName(), brief.Product, brief.Offer) +
		fmt.Sprintf("Tone: %s. Audience: %s.", brief.Tone, brief.AudienceOrDefault())
}

type StyleResolverOptions struct {
	Text   TextModel
	Vision VisionModel
	Models config.Models
	Logger *slog.Logger
}

// StyleResolver derives a sanitized brand style once per run, from reference
// images when the brief carries them and from brief text otherwise.
type StyleResolver struct {
	text   TextModel
	vision VisionModel
	models config.Models
	logger *slog.Logger
}

func NewStyleResolver(opts StyleResolverOptions) (*StyleResolver, error) {
	if opts.Text == nil {
		return nil, errors.New("text model is required")
	}
	if opts.Vision == nil {
		return nil, errors.New("vision model is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &StyleResolver{
		text:   opts.Text,
		vision: opts.Vision,
		models: opts.Models,
		logger: logger,
	}, nil
}

// Resolve parses the model reply directly, with no repair round-trip; a field
// the model omits stays empty.
func (r *StyleResolver) Resolve(ctx context.Context, brief domain.CreativeBrief) (domain.BrandStyle, error) {
	var raw string
	var err error
	if len(brief.ReferenceImages) > 0 {
		raw, err = r.vision.ChatWithImages(ctx, r.models.VisionModel, styleFromImagesPrompt, brief.ReferenceImages)
	} else {
		raw, err = r.text.Chat(ctx, r.models.TextModel, styleFromTextPrompt(brief))
	}
	if err != nil {
		return domain.BrandStyle{}, fmt.Errorf("brand style request: %w", err)
	}

	value, err := llm.ParseModelJSON(raw)
	if err != nil {
		return domain.BrandStyle{}, err
	}
	style := decodeBrandStyle(value, r.logger)
	return SanitizeBrandStyle(style), nil
}

func decodeBrandStyle(value any, logger *slog.Logger) domain.BrandStyle {
	raw, err := json.Marshal(value)
	if err != nil {
		return domain.BrandStyle{}
	}
	var style domain.BrandStyle
	if err := json.Unmarshal(raw, &style); err != nil {
		logger.Warn("brand style reply had unexpected shape, using empty style", "error", err)
		return domain.BrandStyle{}
	}
	return style
}

// SanitizeBrandStyle drops banned keywords and every layout-guidance sentence
// containing a banned token.
func SanitizeBrandStyle(style domain.BrandStyle) domain.BrandStyle {
	keywords := make([]string, 0, len(style.StyleKeywords))
	for _, kw := range style.StyleKeywords {
		if _, banned := bannedStyleTokens[strings.ToLower(kw)]; banned {
			continue
		}
		keywords = append(keywords, kw)
	}

	var clean []string
	for _, sentence := range strings.Split(style.LayoutGuidance, ".") {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if containsBannedToken(sentence) {
			continue
		}
		clean = append(clean, sentence)
	}
	layout := strings.Join(clean, ". ")
	if layout != "" {
		layout += "."
	}

	return domain.BrandStyle{
		Palette:            style.Palette,
		StyleKeywords:      keywords,
		LayoutGuidance:     layout,
		TypographyGuidance: style.TypographyGuidance,
	}
}

func containsBannedToken(sentence string) bool {
	lower := strings.ToLower(sentence)
	for token := range bannedStyleTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
