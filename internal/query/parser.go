package query

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/dejaview/internal/infer"
	"github.com/felixgeelhaar/dejaview/internal/observe"
)

var intentSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"domain": {"type": ["string", "null"]},
		"pageContext": {"type": ["string", "null"]},
		"visual": {"type": ["string", "null"]},
		"targetLocation": {"type": ["string", "null"]},
		"searchContent": {"type": "string"},
		"isExactMatch": {"type": "boolean"}
	},
	"required": ["searchContent", "isExactMatch"]
}`)

const parsePromptFormat = `Analyze this search query: %q

The user is trying to re-find a page they visited. Split the query into two
orthogonal facets:

PAGE IDENTIFICATION (which page was it):
1. domain: every site or platform mentioned, comma-joined (e.g. "reddit.com, forum"), or null
2. pageContext: the topic or subject of the page, or null
3. visual: colors or layout the user remembers (e.g. "blue site"), or null

CONTENT LOCATION (what did it say, and where in the page):
4. targetLocation: a named sub-region they want (comment, reply, sidebar), or null
5. searchContent: literal text they remember reading.
   - If there is text in quotes ('text' or "text"), use EXACTLY that
   - Only fill this when the user recalls specific wording; otherwise use ""
6. isExactMatch: true if the user quotes text or says "exactly", "said", "exact words"

Return JSON: {"domain": ..., "pageContext": ..., "visual": ..., "targetLocation": ..., "searchContent": ..., "isExactMatch": ...}`

// Interpreter turns raw queries into Intents via the inference gateway,
// falling back to the trivial intent whenever the model is unavailable or
// its output does not parse.
type Interpreter struct {
	gateway *infer.Gateway
	obs     *observe.Observer
}

func NewInterpreter(gateway *infer.Gateway, obs *observe.Observer) *Interpreter {
	return &Interpreter{gateway: gateway, obs: obs}
}

// Parse never fails: a gateway or parse error degrades to Trivial(raw).
func (i *Interpreter) Parse(ctx context.Context, raw string) Intent {
	body := fmt.Sprintf(parsePromptFormat, raw)

	out, err := i.gateway.Prompt(ctx, body, intentSchema)
	if err != nil {
		i.obs.Log().Warn().Err(err).Msg("query parse degraded to trivial intent")
		return Trivial(raw)
	}

	var parsed struct {
		Domain         *string `json:"domain"`
		PageContext    *string `json:"pageContext"`
		Visual         *string `json:"visual"`
		TargetLocation *string `json:"targetLocation"`
		SearchContent  string  `json:"searchContent"`
		IsExactMatch   bool    `json:"isExactMatch"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		i.obs.Log().Warn().Err(infer.ErrMalformed).Str("raw", out).Msg("intent output unparseable")
		return Trivial(raw)
	}

	intent := Intent{
		OriginalQuery: raw,
		Page: PageIdentification{
			Domain:      deref(parsed.Domain),
			PageContext: deref(parsed.PageContext),
			Visual:      deref(parsed.Visual),
		},
		Content: ContentLocation{
			TargetLocation: deref(parsed.TargetLocation),
			SearchContent:  parsed.SearchContent,
			IsExactMatch:   parsed.IsExactMatch,
		},
	}

	i.obs.Log().Info().
		Str("domain", intent.Page.Domain).
		Str("pageContext", intent.Page.PageContext).
		Str("visual", intent.Page.Visual).
		Str("targetLocation", intent.Content.TargetLocation).
		Str("searchContent", intent.Content.SearchContent).
		Bool("isExactMatch", intent.Content.IsExactMatch).
		Msg("parsed query intent")

	return intent
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
