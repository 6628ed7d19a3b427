// Package summarize produces the optional enrichment digests attached to a
// memory after capture: a key-points summary of the page text and a color
// theme extracted from its stylesheet. Both are best-effort; failures yield
// empty digests, never errors.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/dejaview/internal/extract"
	"github.com/felixgeelhaar/dejaview/internal/infer"
	"github.com/felixgeelhaar/dejaview/internal/observe"
)

// minTextLength skips pages with too little text to summarize usefully.
const minTextLength = 100

var digestSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"keyPoints": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["keyPoints"]
}`)

var themeSchema = json.RawMessage(`{
	"type": "array",
	"items": {"type": "string"}
}`)

type Summarizer struct {
	gateway *infer.Gateway
	obs     *observe.Observer
}

func New(gateway *infer.Gateway, obs *observe.Observer) *Summarizer {
	return &Summarizer{gateway: gateway, obs: obs}
}

// Digest condenses extracted page text into a short key-points summary used
// by the identity filter. Returns "" for short text or on any failure.
func (s *Summarizer) Digest(ctx context.Context, text string) string {
	if len(text) < minTextLength {
		return ""
	}

	body := fmt.Sprintf(`Summarize this page into 3 short key points for later recall.

Text: %s

Return JSON: {"keyPoints": ["...", "...", "..."]}`, text)

	out, err := s.gateway.Prompt(ctx, body, digestSchema)
	if err != nil {
		s.obs.Log().Warn().Err(err).Msg("page digest skipped")
		return ""
	}

	var parsed struct {
		KeyPoints []string `json:"keyPoints"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil || len(parsed.KeyPoints) == 0 {
		return ""
	}
	return strings.Join(parsed.KeyPoints, "\n")
}

// Theme extracts 5-10 colors from a stylesheet, ordered by visual importance
// for page recognition. Returns a JSON array string; "[]" on any failure.
func (s *Summarizer) Theme(ctx context.Context, css string) string {
	const empty = "[]"

	rules := extract.ColorRules(css)
	if rules == "" {
		return empty
	}

	body := fmt.Sprintf(`Extract colors from this CSS ordered by visual importance for page recognition, correctly represented with no errors.

CSS: %s

Prioritize:
- Unique brand colors over generic ones, unless the main page is white/black, then place those higher
- Large area colors (body, header) over small elements

Return a JSON array of 5-10 colors ordered by importance: ["#mostImportant", "#second", "rgb(..)"]`, rules)

	out, err := s.gateway.Prompt(ctx, body, themeSchema)
	if err != nil {
		s.obs.Log().Warn().Err(err).Msg("theme extraction skipped")
		return empty
	}

	var colors []string
	if err := json.Unmarshal([]byte(out), &colors); err != nil {
		return empty
	}

	normalized, err := json.Marshal(colors)
	if err != nil {
		return empty
	}
	return string(normalized)
}
