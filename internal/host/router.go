package host

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/felixgeelhaar/dejaview/internal/capture"
	"github.com/felixgeelhaar/dejaview/internal/infer"
	"github.com/felixgeelhaar/dejaview/internal/observe"
	"github.com/felixgeelhaar/dejaview/internal/search"
	"github.com/felixgeelhaar/dejaview/internal/store"
)

// getAllLimit caps the GET_ALL_MEMORIES response to the most recent entries.
const getAllLimit = 50

// Router dispatches framed requests to the store, the capture service and
// the retrieval pipeline.
type Router struct {
	store    store.Storage
	pipeline *search.Pipeline
	captures *capture.Service
	gateway  *infer.Gateway
	obs      *observe.Observer

	writeMu sync.Mutex // one frame at a time on the shared writer
}

func NewRouter(s store.Storage, pipeline *search.Pipeline, captures *capture.Service, gateway *infer.Gateway, obs *observe.Observer) *Router {
	return &Router{
		store:    s,
		pipeline: pipeline,
		captures: captures,
		gateway:  gateway,
		obs:      obs,
	}
}

// Serve reads frames until EOF. Captures are acked immediately and written
// in the background; everything else is handled on the read loop, so search
// requests queue naturally behind each other.
func (r *Router) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	for {
		payload, err := ReadFrame(in)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			r.captures.Wait()
			return nil
		}
		if err != nil {
			return err
		}

		var req Request
		if err := json.Unmarshal(payload, &req); err != nil {
			r.write(out, Response{OK: false, Error: "malformed request"})
			continue
		}

		resp := r.Handle(ctx, req)
		r.write(out, resp)
	}
}

func (r *Router) write(out io.Writer, resp Response) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := WriteResponse(out, resp); err != nil {
		r.obs.Log().Error().Err(err).Msg("failed to write response frame")
	}
}

// Handle processes one request. Storage failures resolve to empty, well-formed
// responses so the UI never sees a rejected request.
func (r *Router) Handle(ctx context.Context, req Request) Response {
	switch req.Type {
	case TypePing:
		return Response{Type: req.Type, OK: true}

	case TypeCapture:
		if req.Data == nil {
			return Response{Type: req.Type, OK: false, Error: "missing snapshot"}
		}
		// The content script only needs an ack; the write happens off the
		// read loop but is tracked so shutdown waits for it.
		r.captures.ProcessAsync(req.Data)
		return Response{Type: req.Type, OK: true}

	case TypeSearch:
		results := r.pipeline.Search(ctx, req.Query)
		for _, res := range results {
			res.Memory = withoutMarkup(res.Memory)
		}
		return Response{Type: req.Type, OK: true, Results: results}

	case TypeGetAll:
		memories, err := r.store.GetAll()
		if err != nil {
			r.obs.Log().Error().Err(err).Msg("get all failed, returning empty")
			memories = nil
		}
		if len(memories) > getAllLimit {
			memories = memories[:getAllLimit]
		}
		trimmed := make([]*store.Memory, len(memories))
		for i, m := range memories {
			trimmed[i] = withoutMarkup(m)
		}
		return Response{Type: req.Type, OK: true, Memories: trimmed}

	case TypeGetCount:
		n, err := r.store.Count()
		if err != nil {
			n = 0
		}
		return Response{Type: req.Type, OK: true, Count: &n}

	case TypeGetUnlockedCount:
		n, err := r.store.UnlockedCount()
		if err != nil {
			n = 0
		}
		return Response{Type: req.Type, OK: true, Count: &n}

	case TypeClearAll:
		if err := r.store.Clear(); err != nil {
			return Response{Type: req.Type, OK: false, Error: "storage unavailable"}
		}
		return Response{Type: req.Type, OK: true}

	case TypeTrackUnlock:
		if err := r.store.TrackUnlock(req.URL, req.Query); err != nil {
			return Response{Type: req.Type, OK: false, Error: "storage unavailable"}
		}
		return Response{Type: req.Type, OK: true}

	case TypeGetAIStatus:
		status := r.gateway.CheckStatus(ctx)
		return Response{Type: req.Type, OK: true, AI: &status}

	default:
		return Response{Type: req.Type, OK: false, Error: "unknown request type"}
	}
}

// withoutMarkup drops the raw HTML from an outbound memory; the popup never
// renders it and frames must stay small.
func withoutMarkup(m *store.Memory) *store.Memory {
	if m == nil || m.HTML == "" {
		return m
	}
	clone := *m
	clone.HTML = ""
	return &clone
}
