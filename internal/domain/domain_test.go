package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinBudgets(t *testing.T) {
	compliant := CopyVariant{
		Headline:   "Fresh Mango Deal",
		Subhead:    "Cold smoothies all summer long",
		Body:       "Stop by for hand-blended smoothies made from ripe mangoes. First visit earns a free upgrade.",
		CTA:        "Visit Today",
		Disclaimer: "Offer ends soon.",
	}
	assert.True(t, compliant.WithinBudgets())

	tooManyWords := compliant
	tooManyWords.Headline = "This Headline Has Far Too Many Words In It"
	assert.False(t, tooManyWords.WithinBudgets())

	tooManyChars := compliant
	tooManyChars.Headline = "Extraordinarily Long One" // 24 chars > 22
	assert.False(t, tooManyChars.WithinBudgets())

	missingRequired := compliant
	missingRequired.CTA = "  "
	assert.False(t, missingRequired.WithinBudgets())

	noDisclaimer := compliant
	noDisclaimer.Disclaimer = ""
	assert.True(t, noDisclaimer.WithinBudgets())
}

func TestTruncatedBackstop(t *testing.T) {
	v := CopyVariant{
		Headline: strings.Repeat("x", 40),
		Subhead:  "  padded  ",
		Body:     "short body",
		CTA:      "Call Now",
	}
	out := v.Truncated()

	headline := []rune(out.Headline)
	require.Len(t, headline, 22)
	assert.Equal(t, '…', headline[21])
	assert.Equal(t, strings.Repeat("x", 21), string(headline[:21]))
	assert.Equal(t, "padded", out.Subhead)

	// Already-compliant fields come back unchanged apart from trimming.
	assert.Equal(t, "short body", out.Body)
	assert.Equal(t, "Call Now", out.CTA)
}

func TestTruncatedCapsWords(t *testing.T) {
	v := CopyVariant{
		Headline: "an ad up by or at on in it",
		Subhead:  "fine",
		Body:     "fine",
		CTA:      "Go",
	}
	out := v.Truncated()
	assert.Equal(t, "an ad up by or at", out.Headline)
	assert.True(t, out.WithinBudgets())
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount("   "))
	assert.Equal(t, 3, WordCount(" one  two\tthree "))
}

func TestRunStatusTransitions(t *testing.T) {
	assert.True(t, RunStatusRunning.CanTransitionTo(RunStatusComplete))
	assert.True(t, RunStatusRunning.CanTransitionTo(RunStatusFailed))
	assert.False(t, RunStatusComplete.CanTransitionTo(RunStatusRunning))
	assert.False(t, RunStatusFailed.CanTransitionTo(RunStatusComplete))
	assert.False(t, RunStatusRunning.CanTransitionTo(RunStatusRunning))
	assert.True(t, RunStatusComplete.Terminal())
	assert.False(t, RunStatusRunning.Terminal())
}

func TestHoursDisplayText(t *testing.T) {
	hours := BusinessHours{
		Weekly: []BusinessDayHours{
			{Day: "Mon", Open: "9am", Close: "5pm"},
			{Day: "Sun", Closed: true},
		},
		Notes: "Closed on holidays",
	}
	assert.Equal(t, "Mon 9am-5pm; Sun closed; Closed on holidays", hours.DisplayText())

	hours.Display = "Mon-Fri 9-5"
	assert.Equal(t, "Mon-Fri 9-5", hours.DisplayText())
}

func TestBriefValidate(t *testing.T) {
	brief := CreativeBrief{
		BusinessDetails: BusinessDetails{Name: "Rio Smoothies"},
		Product:         "Smoothies",
		Offer:           "BOGO Fridays",
	}
	require.NoError(t, brief.Validate())

	brief.Product = ""
	require.Error(t, brief.Validate())
}
