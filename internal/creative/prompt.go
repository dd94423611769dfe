package creative

import (
	"fmt"
	"strings"

	"github.com/afrojuju1/hyperlocal/internal/domain"
)

// CopyPrompt builds the structured request for N copy variants. Missing
// optional fields render as empty or defaulted placeholders so the prompt
// stays syntactically stable.
func CopyPrompt(brief domain.CreativeBrief, style domain.BrandStyle, variants int) string {
	palette := firstNonEmptyJoin(style.Palette, brief.BrandColors)
	styleKeywords := firstNonEmptyJoin(style.StyleKeywords, brief.StyleKeywords)
	constraints := strings.Join(brief.Constraints, "; ")

	details := brief.BusinessDetails
	hoursText := ""
	if details.Hours != nil {
		hoursText = details.Hours.DisplayText()
	}
	detailsText := fmt.Sprintf(
		"Business details: name %s. address %s, %s %s %s. Phone %s. Hours %s. Service area %s. Website %s. ",
		details.Name, details.Address, details.City, details.State, details.PostalCode,
		details.Phone, hoursText, details.ServiceArea, details.Website,
	)

	return "You are a direct-response copywriter for a mailer flyer. " +
		fmt.Sprintf("Return exactly %d copy variants as JSON array. ", variants) +
		"Each variant must include: headline, subhead, body, cta, disclaimer. " +
		"Constraints: headline <= 6 words, subhead <= 10 words, body <= 28 words, " +
		"cta <= 4 words, disclaimer <= 12 words. " +
		"Keep text clean and printable. Avoid emojis. English only. " +
		"Include the business name in the copy. " +
		fmt.Sprintf("Preferred CTA: %s. Use it as the CTA if possible. ", brief.CTA) +
		fmt.Sprintf("Required details: %s. ", orDefault(constraints, "none")) +
		detailsText +
		fmt.Sprintf("Business: %s. ", orDefault(details.Name, "not specified")) +
		fmt.Sprintf("Product: %s. Offer: %s. Tone: %s. ", brief.Product, brief.Offer, brief.Tone) +
		fmt.Sprintf("Audience: %s. ", brief.AudienceOrDefault()) +
		fmt.Sprintf("Palette: %s. ", orDefault(palette, "not specified")) +
		fmt.Sprintf("Style: %s. ", orDefault(styleKeywords, "modern, friendly")) +
		"Return JSON only, no markdown."
}

// ImagePrompt builds the background-only image prompt for one variant.
func ImagePrompt(brief domain.CreativeBrief, style domain.BrandStyle, copy domain.CopyVariant) string {
	palette := firstNonEmptyJoin(style.Palette, brief.BrandColors)
	styleKeywords := firstNonEmptyJoin(style.StyleKeywords, brief.StyleKeywords)
	layout := orDefault(style.LayoutGuidance,
		"Large clean focal area with soft gradients, a clear visual anchor, and ample negative space.")
	constraints := strings.Join(brief.Constraints, "; ")

	return "Create a background-only image for a 6x9 inch direct-mail flyer. " +
		"Do NOT include any text, letters, words, logos, signage, or typography. " +
		"Leave ample clean space for a text overlay. " +
		fmt.Sprintf("Visual style: %s. ", orDefault(styleKeywords, "bright, fresh, modern")) +
		fmt.Sprintf("Color palette: %s. ", orDefault(palette, "vibrant fruit colors, fresh greens, clean whites")) +
		fmt.Sprintf("Layout guidance: %s. ", layout) +
		fmt.Sprintf("Business: %s. Product: %s. Offer: %s. ", orDefault(brief.BusinessDetails.Name, "not specified"), brief.Product, brief.Offer) +
		fmt.Sprintf("Constraints: %s. ", orDefault(constraints, "No people; no faces; no extra slogans")) +
		"Use high-quality lighting and depth. Make the background visually rich but not busy."
}

// NegativePrompt is fixed across variants: it discourages extraneous text,
// clutter and people regardless of brief content.
func NegativePrompt() string {
	return "Avoid any text, letters, words, or signage. Avoid illegible or distorted text, " +
		"cluttered layouts, and low contrast. Avoid extra text not provided. " +
		"Avoid faces, hands, or people."
}

// BuildPromptPackages packages each copy variant with its image prompt and
// the shared negative prompt. Pure function.
func BuildPromptPackages(brief domain.CreativeBrief, style domain.BrandStyle, variants []domain.CopyVariant) []domain.PromptPackage {
	neg := NegativePrompt()
	packages := make([]domain.PromptPackage, 0, len(variants))
	for _, variant := range variants {
		packages = append(packages, domain.PromptPackage{
			ImagePrompt:    ImagePrompt(brief, style, variant),
			NegativePrompt: neg,
			CopyVariant:    variant,
		})
	}
	return packages
}

// RequiredDetails lists the business-identity strings that must appear on the
// rendered flyer: mandatory phrases extracted from the brief constraints plus
// every non-empty contact field.
func RequiredDetails(brief domain.CreativeBrief) []string {
	required := requiredFromConstraints(brief.Constraints)

	details := brief.BusinessDetails
	hoursText := ""
	if details.Hours != nil {
		hoursText = details.Hours.DisplayText()
	}
	for _, value := range []string{
		details.Name,
		details.Address,
		details.City,
		details.State,
		details.PostalCode,
		details.Phone,
		details.Website,
		hoursText,
		details.ServiceArea,
	} {
		if strings.TrimSpace(value) != "" {
			required = append(required, value)
		}
	}
	return required
}

// requiredFromConstraints pulls mandatory phrases out of free-text
// constraints. Only constraints mentioning "include" are considered; quoted
// phrases win, else everything after a colon.
func requiredFromConstraints(constraints []string) []string {
	var required []string
	for _, item := range constraints {
		text := strings.TrimSpace(item)
		if text == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(text), "include") {
			continue
		}
		if strings.Contains(text, "'") {
			parts := strings.Split(text, "'")
			for idx := 1; idx < len(parts); idx += 2 {
				if phrase := strings.TrimSpace(parts[idx]); phrase != "" {
					required = append(required, phrase)
				}
			}
			continue
		}
		if idx := strings.Index(text, ":"); idx >= 0 {
			if value := strings.TrimSpace(text[idx+1:]); value != "" {
				required = append(required, value)
			}
		}
	}
	return required
}

func firstNonEmptyJoin(lists ...[]string) string {
	for _, list := range lists {
		if len(list) > 0 {
			return strings.Join(list, ", ")
		}
	}
	return ""
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}
