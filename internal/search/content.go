package search

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/dejaview/internal/extract"
	"github.com/felixgeelhaar/dejaview/internal/query"
	"github.com/felixgeelhaar/dejaview/internal/store"
)

const (
	// excerptCap bounds per-page content in the ranking prompt.
	excerptCap = 800
	// excerptCapLocated is the larger bound used when a target location is
	// given and the model needs positional context from full markup.
	excerptCapLocated = 3000
)

var rankSchema = json.RawMessage(`{
	"type": "array",
	"items": {
		"type": "object",
		"properties": {
			"id": {"type": "string"},
			"confidence": {"type": "number"},
			"reason": {"type": "string"}
		},
		"required": ["id", "confidence"]
	}
}`)

// jsonArrayRe recovers a JSON array from chatty model output.
var jsonArrayRe = regexp.MustCompile(`\[[\s\S]*\]`)

// candidate pairs a memory with the richest content available for it.
type candidate struct {
	mem     *store.Memory
	content string
	method  Method
}

// localizeContent narrows and ranks candidates by in-page content. With no
// content probe the identity-filtered set passes through unchanged; that is
// the topic-only path. An exact-match probe short-circuits before any model
// call; otherwise the model ranks excerpts and everything under MinConfidence
// is discarded. Any model failure returns every candidate at confidence 50.
func (p *Pipeline) localizeContent(ctx context.Context, intent query.Intent, memories []*store.Memory) []*Result {
	if intent.Content.SearchContent == "" {
		return wrapAll(memories, 0, "", MethodNone)
	}

	ctx, span := p.obs.StartStage(ctx, "content", len(memories))
	defer span.End()

	candidates := make([]candidate, len(memories))
	for i, m := range memories {
		candidates[i] = p.selectContent(m, intent.Content.TargetLocation)
	}

	if intent.Content.IsExactMatch {
		if exact := exactMatches(candidates, intent.Content.SearchContent); len(exact) > 0 {
			p.obs.Log().Info().Int("matches", len(exact)).Msg("exact match short-circuit, skipping ranking")
			return exact
		}
	}

	return p.rank(ctx, intent, candidates)
}

// selectContent picks the richest content for a memory: full markup when a
// location hint needs positional context, stored text otherwise, live
// extraction as a last resort.
func (p *Pipeline) selectContent(m *store.Memory, targetLocation string) candidate {
	if targetLocation != "" && m.HTML != "" {
		return candidate{mem: m, content: m.HTML, method: MethodDeep}
	}
	if m.TextContent != "" {
		return candidate{mem: m, content: m.TextContent, method: MethodCached}
	}
	if m.HTML != "" {
		if text, ok := p.extracted.Get(m.ID); ok {
			return candidate{mem: m, content: text, method: MethodDeep}
		}
		text := extract.Text(m.HTML)
		p.extracted.Add(m.ID, text)
		return candidate{mem: m, content: text, method: MethodDeep}
	}
	return candidate{mem: m, method: MethodNone}
}

func exactMatches(candidates []candidate, needle string) []*Result {
	lowered := strings.ToLower(needle)

	var results []*Result
	for _, c := range candidates {
		if c.content != "" && strings.Contains(strings.ToLower(c.content), lowered) {
			results = append(results, &Result{
				Memory:     c.mem,
				Confidence: 100,
				Reason:     "Contains exact match",
				Method:     MethodExact,
			})
		}
	}
	return results
}

func (p *Pipeline) rank(ctx context.Context, intent query.Intent, candidates []candidate) []*Result {
	limit := excerptCap
	if intent.Content.TargetLocation != "" {
		limit = excerptCapLocated
	}

	type page struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	pages := make([]page, len(candidates))
	byID := make(map[string]candidate, len(candidates))
	for i, c := range candidates {
		content := c.content
		if len(content) > limit {
			content = content[:limit]
		}
		if content == "" {
			content = "No content"
		}
		pages[i] = page{ID: c.mem.ID, Title: c.mem.Title, Content: content}
		byID[c.mem.ID] = c
	}

	pagesJSON, err := json.Marshal(pages)
	if err != nil {
		return p.failOpen(candidates)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "User query: %q\n\n", intent.Content.SearchContent)
	sb.WriteString("Analyze each page's content and rate 0-100 how well it matches the query.\n")
	if intent.Content.TargetLocation != "" {
		fmt.Fprintf(&sb, "The user wants content from the %q region of the page; focus on that part of the markup.\n", intent.Content.TargetLocation)
	}
	sb.WriteString("\nPages:\n")
	sb.Write(pagesJSON)
	sb.WriteString("\n\nReturn: [{\"id\": \"...\", \"confidence\": 95, \"reason\": \"Contains exact match\"}]")

	out, err := p.gateway.Prompt(ctx, sb.String(), rankSchema)
	if err != nil {
		p.obs.Log().Warn().Err(err).Bool("timeout", errAsTimeout(err)).Msg("content ranking failed open")
		return p.failOpen(candidates)
	}

	entries, err := parseRanking(out)
	if err != nil {
		p.obs.Log().Warn().Str("raw", out).Msg("ranking output unparseable, failing open")
		return p.failOpen(candidates)
	}

	var results []*Result
	for _, e := range entries {
		if e.Confidence < MinConfidence {
			continue
		}
		c, ok := byID[e.ID]
		if !ok {
			continue
		}
		results = append(results, &Result{
			Memory:     c.mem,
			Confidence: int(e.Confidence),
			Reason:     e.Reason,
			Method:     c.method,
		})
	}
	if results == nil {
		results = []*Result{}
	}
	return results
}

// rankEntry decodes confidence as a float: the schema says "number" and some
// models take that literally. Scores are truncated to ints downstream.
type rankEntry struct {
	ID         string  `json:"id"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// parseRanking decodes the ranking array, recovering it by regex from chatty
// output before giving up.
func parseRanking(out string) ([]rankEntry, error) {
	var entries []rankEntry
	if err := json.Unmarshal([]byte(out), &entries); err == nil {
		return entries, nil
	}

	match := jsonArrayRe.FindString(out)
	if match == "" {
		return nil, fmt.Errorf("no JSON array in ranking output")
	}
	if err := json.Unmarshal([]byte(match), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// failOpen returns every candidate at the cutoff confidence rather than
// dropping results because a model call errored.
func (p *Pipeline) failOpen(candidates []candidate) []*Result {
	results := make([]*Result, len(candidates))
	for i, c := range candidates {
		results[i] = &Result{
			Memory:     c.mem,
			Confidence: MinConfidence,
			Reason:     "AI failed",
			Method:     MethodNone,
		}
	}
	return results
}
