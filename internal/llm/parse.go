package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// MalformedOutputError means model text never resolved to valid JSON, even
// after the single model-assisted repair attempt. It carries the original
// text so callers can log or surface it.
type MalformedOutputError struct {
	Raw string
}

func (e *MalformedOutputError) Error() string {
	return "model output is not valid JSON"
}

// ParseModelJSON coerces free-form model text into a JSON value. It tolerates
// markdown fences, control characters, prose before or after the JSON, and
// single-quoted pseudo-JSON. Returns a *MalformedOutputError when nothing in
// the text parses.
func ParseModelJSON(raw string) (any, error) {
	cleaned := sanitizeModelText(raw)

	if value, ok := tryParse(cleaned); ok {
		return value, nil
	}

	// Trailing prose after valid JSON, or prose before it: attempt an
	// incremental parse from every candidate start position.
	if value, ok := scanForJSON(cleaned); ok {
		return value, nil
	}

	// Last local resort: single-quoted pseudo-JSON.
	requoted := strings.ReplaceAll(cleaned, "'", `"`)
	if value, ok := tryParse(requoted); ok {
		return value, nil
	}
	if value, ok := scanForJSON(requoted); ok {
		return value, nil
	}

	return nil, &MalformedOutputError{Raw: raw}
}

// ParseOrRepairJSON runs ParseModelJSON and, on failure, issues exactly one
// repair request to the model before giving up.
func (c *Client) ParseOrRepairJSON(ctx context.Context, model, raw string) (any, error) {
	value, err := ParseModelJSON(raw)
	if err == nil {
		return value, nil
	}

	c.logger.Warn("model output unparseable, requesting repair", "model", model)
	prompt := "Fix the following into valid JSON. Return JSON only, no markdown, no commentary.\n\n" + raw
	repaired, chatErr := c.Chat(ctx, model, prompt)
	if chatErr != nil {
		return nil, chatErr
	}

	value, err = ParseModelJSON(repaired)
	if err != nil {
		return nil, &MalformedOutputError{Raw: raw}
	}
	return value, nil
}

func sanitizeModelText(raw string) string {
	text := strings.ReplaceAll(raw, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

func tryParse(text string) (any, bool) {
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, false
	}
	return value, true
}

func scanForJSON(text string) (any, bool) {
	for idx := 0; idx < len(text); idx++ {
		if text[idx] != '{' && text[idx] != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[idx:]))
		var value any
		if err := dec.Decode(&value); err != nil {
			continue
		}
		switch value.(type) {
		case map[string]any, []any:
			return value, true
		}
	}
	return nil, false
}
