package search

import "github.com/felixgeelhaar/dejaview/internal/store"

// Method records how a result was matched.
type Method string

const (
	// MethodExact: literal substring hit, short-circuited before ranking.
	MethodExact Method = "exact"
	// MethodCached: ranked against stored extracted text.
	MethodCached Method = "cached"
	// MethodDeep: ranked against text freshly extracted from raw markup.
	MethodDeep Method = "deep"
	// MethodNone: no content analysis happened (basic mode, identity-only
	// matches, or the fail-open branch).
	MethodNone Method = "none"
)

// Result is a Memory annotated with ranking output. Ephemeral, response-only.
type Result struct {
	*store.Memory

	Confidence int    `json:"confidence"`
	Reason     string `json:"aiReason,omitempty"`
	Method     Method `json:"searchMethod"`
	Query      string `json:"searchQuery,omitempty"`
}

func wrapAll(memories []*store.Memory, confidence int, reason string, method Method) []*Result {
	results := make([]*Result, len(memories))
	for i, m := range memories {
		results[i] = &Result{Memory: m, Confidence: confidence, Reason: reason, Method: method}
	}
	return results
}
