package domain

// BrandStyle is the style descriptor derived once per run, immutable after
// sanitization.
type BrandStyle struct {
	Palette            []string `json:"palette"`
	StyleKeywords      []string `json:"style_keywords"`
	LayoutGuidance     string   `json:"layout_guidance"`
	TypographyGuidance string   `json:"typography_guidance"`
}
