package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/dejaview/internal/query"
	"github.com/felixgeelhaar/dejaview/internal/store"
)

var idListSchema = json.RawMessage(`{
	"type": "array",
	"items": {"type": "string"}
}`)

// pageSummary is what the identity prompt sees per memory: enough to judge
// domain, topic and visual traits without shipping page content.
type pageSummary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Domain  string `json:"domain"`
	Summary string `json:"summary,omitempty"`
	CSS     string `json:"css,omitempty"`
}

// filterIdentity narrows candidates by page-identity hints. It fails open on
// every path: no hints, a model error, unparseable output, or zero matches
// all return the candidate set unchanged, so a transient filter failure can
// never wipe out a valid search.
func (p *Pipeline) filterIdentity(ctx context.Context, intent query.Intent, memories []*store.Memory) []*store.Memory {
	if intent.Page.Empty() {
		return memories
	}

	ctx, span := p.obs.StartStage(ctx, "identity", len(memories))
	defer span.End()

	window := memories
	if len(window) > identityWindow {
		window = window[:identityWindow]
	}

	summaries := make([]pageSummary, len(window))
	byID := make(map[string]*store.Memory, len(window))
	for i, m := range window {
		summaries[i] = pageSummary{
			ID:      m.ID,
			Title:   m.Title,
			URL:     m.URL,
			Domain:  m.Domain,
			Summary: m.Summary,
			CSS:     m.CSS,
		}
		byID[m.ID] = m
	}

	body, err := identityPrompt(intent.Page, summaries)
	if err != nil {
		return memories
	}

	out, err := p.gateway.Prompt(ctx, body, idListSchema)
	if err != nil {
		p.obs.Log().Warn().Err(err).Bool("timeout", errAsTimeout(err)).Msg("identity filter failed open")
		return memories
	}

	var ids []string
	if err := json.Unmarshal([]byte(out), &ids); err != nil {
		p.obs.Log().Warn().Str("raw", out).Msg("identity filter output unparseable, failing open")
		return memories
	}

	var matched []*store.Memory
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			matched = append(matched, m)
		}
	}

	// Zero matches is indistinguishable from a model miss; failing open here
	// trades precision for never losing a valid result.
	if len(matched) == 0 {
		p.obs.Log().Info().Msg("identity filter matched nothing, failing open")
		return memories
	}

	p.obs.Log().Info().Int("matched", len(matched)).Msg("identity filter narrowed candidates")
	return matched
}

func identityPrompt(page query.PageIdentification, summaries []pageSummary) (string, error) {
	pages, err := json.Marshal(summaries)
	if err != nil {
		return "", err
	}

	var constraints []string
	if page.Domain != "" {
		constraints = append(constraints, fmt.Sprintf(
			`- domain: %q. HARD FILTER: a page matches only if its "domain" field matches one of these sites. Compare against the domain field ONLY, never against substrings of the full URL. This constraint dominates content relevance.`,
			page.Domain))
	}
	if page.PageContext != "" {
		constraints = append(constraints, fmt.Sprintf(
			"- topic: %q. Prefer pages whose title or summary covers this subject.", page.PageContext))
	}
	if page.Visual != "" {
		constraints = append(constraints, fmt.Sprintf(
			`- visual: %q. Compare against each page's "css" colors.`, page.Visual))
	}

	var sb strings.Builder
	sb.WriteString("Select the stored pages matching ALL of these constraints:\n")
	sb.WriteString(strings.Join(constraints, "\n"))
	if page.Domain == "" && page.PageContext == "" && page.Visual != "" {
		sb.WriteString("\nOnly a visual description is given, so be inclusive: prefer false positives over missing the page.")
	}
	sb.WriteString("\n\nPages:\n")
	sb.Write(pages)
	sb.WriteString("\n\nReturn a JSON array of the matching page ids: [\"id1\", \"id2\"]")
	return sb.String(), nil
}
