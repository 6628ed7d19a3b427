// Package capture ingests page snapshots from the content script: filtering
// ignored domains, backfilling extracted text, persisting the merge-upsert,
// and enriching the stored memory asynchronously.
package capture

import (
	"context"
	"errors"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/felixgeelhaar/dejaview/internal/extract"
	"github.com/felixgeelhaar/dejaview/internal/observe"
	"github.com/felixgeelhaar/dejaview/internal/store"
	"github.com/felixgeelhaar/dejaview/internal/summarize"
)

// ErrIgnored marks snapshots dropped by the domain ignore list.
var ErrIgnored = errors.New("domain ignored")

// Service processes incoming snapshots. Enrichment (summary, color theme)
// runs on its own goroutine after the write so capture acks stay fast.
type Service struct {
	store         store.Storage
	summarizer    *summarize.Summarizer
	bus           *EventBus
	obs           *observe.Observer
	ignoreDomains []string

	wg sync.WaitGroup // in-flight async captures and enrichment
}

func NewService(s store.Storage, summarizer *summarize.Summarizer, bus *EventBus, obs *observe.Observer, ignoreDomains []string) *Service {
	if bus == nil {
		bus = NewEventBus()
	}
	return &Service{
		store:         s,
		summarizer:    summarizer,
		bus:           bus,
		obs:           obs,
		ignoreDomains: ignoreDomains,
	}
}

// Bus exposes the capture event stream for status surfaces.
func (s *Service) Bus() *EventBus {
	return s.bus
}

// Process merges one snapshot into the store. The returned error is for the
// caller's log only; the host acks captures regardless.
func (s *Service) Process(ctx context.Context, snap *store.Snapshot) error {
	if s.ignored(snap.Domain) {
		s.bus.Publish(Event{Type: EventIgnored, URL: snap.URL})
		return ErrIgnored
	}

	// Content scripts on restricted pages send markup without text.
	if snap.TextContent == "" && snap.HTML != "" {
		snap.TextContent = extract.Text(snap.HTML)
	}

	mem, err := s.store.Upsert(snap)
	if err != nil {
		s.bus.Publish(Event{Type: EventFailed, URL: snap.URL})
		s.obs.Log().Error().Str("url", snap.URL).Err(err).Msg("capture write failed")
		return err
	}

	s.bus.Publish(Event{Type: EventCaptured, URL: mem.URL, Data: map[string]interface{}{
		"visitCount": mem.VisitCount,
	}})
	s.obs.Log().Info().Str("url", mem.URL).Int("visitCount", mem.VisitCount).Msg("memory captured")

	if s.summarizer != nil {
		s.wg.Add(1)
		go s.enrich(mem.ID, mem.URL, snap.TextContent, snap.CSS)
	}
	return nil
}

// ProcessAsync runs Process on its own goroutine so the caller can ack
// immediately. The goroutine is tracked; Wait covers it on shutdown.
func (s *Service) ProcessAsync(snap *store.Snapshot) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Process(context.Background(), snap); err != nil && !errors.Is(err, ErrIgnored) {
			s.obs.Log().Warn().Str("url", snap.URL).Err(err).Msg("capture dropped")
		}
	}()
}

// Wait blocks until in-flight captures and enrichment finish; used on
// shutdown and in tests.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) ignored(domain string) bool {
	for _, pattern := range s.ignoreDomains {
		if ok, err := doublestar.Match(pattern, domain); err == nil && ok {
			return true
		}
	}
	return false
}

func (s *Service) enrich(id, url, text, css string) {
	defer s.wg.Done()

	ctx := context.Background()
	summary := s.summarizer.Digest(ctx, text)

	var theme string
	if css != "" {
		theme = s.summarizer.Theme(ctx, css)
	}

	if summary == "" && theme == "" {
		return
	}

	if err := s.store.SetDigest(id, summary, theme); err != nil {
		s.obs.Log().Warn().Str("url", url).Err(err).Msg("failed to store enrichment")
		return
	}

	s.bus.Publish(Event{Type: EventEnriched, URL: url})
}
