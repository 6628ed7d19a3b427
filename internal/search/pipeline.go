// Package search implements the query-driven retrieval pipeline: identity
// filtering, content localization, an exact-match short circuit, model
// ranking, and a plain substring fallback when no model is available.
//
// The pipeline fails open on purpose. A transient model error degrades the
// quality of results, never the availability of the feature: it is better to
// over-return than to silently return nothing.
package search

import (
	"context"
	"errors"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/felixgeelhaar/dejaview/internal/infer"
	"github.com/felixgeelhaar/dejaview/internal/observe"
	"github.com/felixgeelhaar/dejaview/internal/query"
	"github.com/felixgeelhaar/dejaview/internal/store"
)

const (
	// MinConfidence is a hard cutoff, not a soft weight.
	MinConfidence = 50
	// BasicLimit caps basic-mode (no inference) results.
	BasicLimit = 10
	// identityWindow caps how many recent memories the identity prompt sees.
	identityWindow = 100
	// extractCacheSize bounds the live-extraction cache.
	extractCacheSize = 256
)

// Pipeline orchestrates the retrieval stages over the snapshot store.
type Pipeline struct {
	store   store.Storage
	gateway *infer.Gateway
	interp  *query.Interpreter
	obs     *observe.Observer

	// extracted caches live-extracted text by memory ID so deep search does
	// not re-run the extractor for every query.
	extracted *lru.Cache[string, string]
}

func NewPipeline(s store.Storage, gateway *infer.Gateway, interp *query.Interpreter, obs *observe.Observer) *Pipeline {
	cache, _ := lru.New[string, string](extractCacheSize)
	return &Pipeline{
		store:     s,
		gateway:   gateway,
		interp:    interp,
		obs:       obs,
		extracted: cache,
	}
}

// Search runs the full pipeline for one raw query. It always resolves: a
// storage failure yields an empty list and model failures degrade stage by
// stage, but the caller never sees an error it has to handle specially.
func (p *Pipeline) Search(ctx context.Context, raw string) []*Result {
	ctx, span := p.obs.StartSpan(ctx, "search")
	defer span.End()

	memories, err := p.store.GetAll()
	if err != nil {
		// Storage down means nothing to retrieve, not a crash.
		p.obs.Log().Error().Err(err).Msg("store unavailable, returning no results")
		return []*Result{}
	}
	if len(memories) == 0 {
		return []*Result{}
	}

	if err := p.gateway.Ensure(ctx); err != nil {
		return p.basic(raw, memories)
	}

	intent := p.interp.Parse(ctx, raw)

	candidates := p.filterIdentity(ctx, intent, memories)

	results := p.localizeContent(ctx, intent, candidates)

	for _, r := range results {
		r.Query = raw
	}
	// Ordering is whatever the ranking stage produced (or store recency);
	// re-sorting by confidence is a presentation concern.
	return results
}

// basic is the no-inference mode: case-insensitive substring match of the raw
// query against titles, capped, no confidence scoring.
func (p *Pipeline) basic(raw string, memories []*store.Memory) []*Result {
	needle := strings.ToLower(raw)

	var results []*Result
	for _, m := range memories {
		if strings.Contains(strings.ToLower(m.Title), needle) {
			results = append(results, &Result{Memory: m, Method: MethodNone, Query: raw})
			if len(results) == BasicLimit {
				break
			}
		}
	}
	if results == nil {
		results = []*Result{}
	}

	p.obs.Log().Info().Int("results", len(results)).Msg("basic title search (no inference)")
	return results
}

// errAsTimeout lets logs distinguish an abandoned call from a failed one.
func errAsTimeout(err error) bool {
	return errors.Is(err, infer.ErrTimeout)
}
