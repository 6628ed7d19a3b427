// Package query decomposes a free-text search query into structured intent.
// The split between page identity (which page was it) and content location
// (what did it say) is load-bearing: topic recall and literal-text recall
// take different retrieval paths downstream.
package query

// PageIdentification captures hints about which page the user means.
// Empty strings mean the facet was not mentioned.
type PageIdentification struct {
	// Domain is a comma-joined list of every site or platform mentioned.
	Domain string `json:"domain"`
	// PageContext describes the topic or subject of the page.
	PageContext string `json:"pageContext"`
	// Visual describes colors or layout the user remembers.
	Visual string `json:"visual"`
}

// Empty reports whether no identity facet was extracted.
func (p PageIdentification) Empty() bool {
	return p.Domain == "" && p.PageContext == "" && p.Visual == ""
}

// ContentLocation captures hints about content inside the page.
type ContentLocation struct {
	// TargetLocation names a sub-region like "sidebar" or "comments".
	TargetLocation string `json:"targetLocation"`
	// SearchContent is literal remembered text. Populated only when the user
	// signals they recall specific wording, never the whole query restated.
	SearchContent string `json:"searchContent"`
	// IsExactMatch is set when the query quotes text or uses words like
	// "exactly" or "said".
	IsExactMatch bool `json:"isExactMatch"`
}

// Intent is the parsed form of one raw query. Ephemeral, never persisted.
type Intent struct {
	OriginalQuery string             `json:"originalQuery"`
	Page          PageIdentification `json:"pageIdentification"`
	Content       ContentLocation    `json:"contentLocation"`
}

// Trivial is the deterministic fallback: the whole query becomes the content
// probe, with no identity hints and no exact-match flag.
func Trivial(raw string) Intent {
	return Intent{
		OriginalQuery: raw,
		Content: ContentLocation{
			SearchContent: raw,
		},
	}
}
