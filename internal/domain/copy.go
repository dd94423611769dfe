package domain

import "strings"

// CopyVariant is one candidate set of flyer copy. All fields are plain
// strings; budgets are enforced before a variant enters a PromptPackage.
type CopyVariant struct {
	Headline   string `json:"headline"`
	Subhead    string `json:"subhead"`
	Body       string `json:"body"`
	CTA        string `json:"cta"`
	Disclaimer string `json:"disclaimer,omitempty"`
}

// CopyBudget caps one copy field by words and characters.
type CopyBudget struct {
	Field    string
	MaxWords int
	MaxChars int
	Required bool
}

// CopyBudgets are the fixed per-field budgets for printable flyer copy.
var CopyBudgets = []CopyBudget{
	{Field: "headline", MaxWords: 6, MaxChars: 22, Required: true},
	{Field: "subhead", MaxWords: 10, MaxChars: 48, Required: true},
	{Field: "body", MaxWords: 28, MaxChars: 200, Required: true},
	{Field: "cta", MaxWords: 4, MaxChars: 18, Required: true},
	{Field: "disclaimer", MaxWords: 12, MaxChars: 64, Required: false},
}

// WordCount counts non-empty whitespace-separated tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

func (v CopyVariant) fieldValue(name string) string {
	switch name {
	case "headline":
		return v.Headline
	case "subhead":
		return v.Subhead
	case "body":
		return v.Body
	case "cta":
		return v.CTA
	case "disclaimer":
		return v.Disclaimer
	}
	return ""
}

func (v *CopyVariant) setField(name, value string) {
	switch name {
	case "headline":
		v.Headline = value
	case "subhead":
		v.Subhead = value
	case "body":
		v.Body = value
	case "cta":
		v.CTA = value
	case "disclaimer":
		v.Disclaimer = value
	}
}

// WithinBudgets reports whether every field satisfies its word and character
// budget. Required fields must be non-empty.
func (v CopyVariant) WithinBudgets() bool {
	for _, budget := range CopyBudgets {
		value := v.fieldValue(budget.Field)
		words := WordCount(value)
		if budget.Required && words < 1 {
			return false
		}
		if words > budget.MaxWords {
			return false
		}
		if len([]rune(strings.TrimSpace(value))) > budget.MaxChars {
			return false
		}
	}
	return true
}

// Truncated returns a copy of the variant with every field trimmed, capped to
// its word budget, and, if still over its character budget, cut to MaxChars-1
// runes plus an ellipsis. This is the deterministic backstop that guarantees
// budget compliance.
func (v CopyVariant) Truncated() CopyVariant {
	out := v
	for _, budget := range CopyBudgets {
		value := strings.TrimSpace(out.fieldValue(budget.Field))
		if words := strings.Fields(value); len(words) > budget.MaxWords {
			value = strings.Join(words[:budget.MaxWords], " ")
		}
		runes := []rune(value)
		if len(runes) > budget.MaxChars {
			value = string(runes[:budget.MaxChars-1]) + "…"
		}
		out.setField(budget.Field, value)
	}
	return out
}

// ExpectedPhrases lists the copy fields that must appear on the rendered
// image, in display order. Empty fields are skipped.
func (v CopyVariant) ExpectedPhrases() []string {
	fields := []string{v.Headline, v.Subhead, v.Body, v.CTA, v.Disclaimer}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			out = append(out, f)
		}
	}
	return out
}
