package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/dejaview/internal/capture"
	"github.com/felixgeelhaar/dejaview/internal/infer"
	"github.com/felixgeelhaar/dejaview/internal/observe"
	"github.com/felixgeelhaar/dejaview/internal/query"
	"github.com/felixgeelhaar/dejaview/internal/search"
	"github.com/felixgeelhaar/dejaview/internal/store"
	"github.com/felixgeelhaar/dejaview/internal/summarize"
)

func newTestRouter(t *testing.T, client *infer.StubClient) (*Router, *store.SQLiteStore, *capture.Service) {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "memories.db"), store.DefaultPolicy)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	obs := observe.New(io.Discard, false)
	gateway := infer.NewGateway(client, obs)
	interp := query.NewInterpreter(gateway, obs)
	pipeline := search.NewPipeline(s, gateway, interp, obs)
	summarizer := summarize.New(gateway, obs)
	captures := capture.NewService(s, summarizer, nil, obs, nil)
	return NewRouter(s, pipeline, captures, gateway, obs), s, captures
}

func hostSnapshot(url string) *store.Snapshot {
	return &store.Snapshot{
		URL:         url,
		Title:       "A Page",
		Domain:      "example.com",
		HTML:        "<html><body><p>page body</p></body></html>",
		TextContent: "page body",
		Timestamp:   time.Now().UnixMilli(),
		TimeSpent:   2,
	}
}

func TestHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		r, _, _ := newTestRouter(t, infer.NewStubClient())
		resp := r.Handle(ctx, Request{Type: TypePing})
		if !resp.OK || resp.Type != TypePing {
			t.Errorf("Unexpected response: %+v", resp)
		}
	})

	t.Run("CaptureAcksAndPersists", func(t *testing.T) {
		client := infer.NewStubClient()
		client.ProbeErr = io.EOF // enrichment degrades, capture must not care
		r, s, captures := newTestRouter(t, client)

		resp := r.Handle(ctx, Request{Type: TypeCapture, Data: hostSnapshot("https://example.com/a")})
		if !resp.OK {
			t.Fatalf("Expected immediate ack, got %+v", resp)
		}

		// The write happens off the request path but is tracked.
		captures.Wait()
		if n, _ := s.Count(); n != 1 {
			t.Fatalf("Capture never reached the store, count %d", n)
		}
	})

	t.Run("CaptureWithoutSnapshot", func(t *testing.T) {
		r, _, _ := newTestRouter(t, infer.NewStubClient())
		resp := r.Handle(ctx, Request{Type: TypeCapture})
		if resp.OK {
			t.Error("Expected rejection of capture without snapshot")
		}
	})

	t.Run("SearchStripsMarkup", func(t *testing.T) {
		client := infer.NewStubClient()
		client.ProbeErr = io.EOF // basic mode keeps the test deterministic
		r, s, _ := newTestRouter(t, client)

		if _, err := s.Upsert(hostSnapshot("https://example.com/a")); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}

		resp := r.Handle(ctx, Request{Type: TypeSearch, Query: "a page"})
		if !resp.OK {
			t.Fatalf("Unexpected response: %+v", resp)
		}
		if len(resp.Results) != 1 {
			t.Fatalf("Expected 1 result, got %d", len(resp.Results))
		}
		if resp.Results[0].HTML != "" {
			t.Error("Raw markup must not leave the host")
		}
	})

	t.Run("GetAllCapsAndStripsMarkup", func(t *testing.T) {
		r, s, _ := newTestRouter(t, infer.NewStubClient())

		for i := 0; i < 55; i++ {
			snap := hostSnapshot(fmt.Sprintf("https://example.com/page/%d", i))
			snap.Timestamp = time.Now().UnixMilli() + int64(i)
			if _, err := s.Upsert(snap); err != nil {
				t.Fatalf("Upsert failed: %v", err)
			}
		}

		resp := r.Handle(ctx, Request{Type: TypeGetAll})
		if !resp.OK {
			t.Fatalf("Unexpected response: %+v", resp)
		}
		if len(resp.Memories) > 50 {
			t.Errorf("Expected at most 50 memories, got %d", len(resp.Memories))
		}
		for _, m := range resp.Memories {
			if m.HTML != "" {
				t.Fatal("Raw markup must not leave the host")
			}
		}
	})

	t.Run("Counts", func(t *testing.T) {
		r, s, _ := newTestRouter(t, infer.NewStubClient())

		if _, err := s.Upsert(hostSnapshot("https://example.com/a")); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		if err := s.TrackUnlock("https://example.com/a", "query"); err != nil {
			t.Fatalf("TrackUnlock failed: %v", err)
		}

		resp := r.Handle(ctx, Request{Type: TypeGetCount})
		if resp.Count == nil || *resp.Count != 1 {
			t.Errorf("Expected count 1, got %+v", resp.Count)
		}
		resp = r.Handle(ctx, Request{Type: TypeGetUnlockedCount})
		if resp.Count == nil || *resp.Count != 1 {
			t.Errorf("Expected unlocked count 1, got %+v", resp.Count)
		}
	})

	t.Run("ClearAll", func(t *testing.T) {
		r, s, _ := newTestRouter(t, infer.NewStubClient())

		if _, err := s.Upsert(hostSnapshot("https://example.com/a")); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		resp := r.Handle(ctx, Request{Type: TypeClearAll})
		if !resp.OK {
			t.Fatalf("Clear failed: %+v", resp)
		}
		n, _ := s.Count()
		if n != 0 {
			t.Errorf("Expected empty store, got %d", n)
		}
	})

	t.Run("AIStatus", func(t *testing.T) {
		client := infer.NewStubClient()
		client.ProbeErr = io.EOF
		r, _, _ := newTestRouter(t, client)

		resp := r.Handle(ctx, Request{Type: TypeGetAIStatus})
		if !resp.OK || resp.AI == nil {
			t.Fatalf("Unexpected response: %+v", resp)
		}
		if resp.AI.Available {
			t.Error("Expected unavailable AI status")
		}
	})

	t.Run("UnknownType", func(t *testing.T) {
		r, _, _ := newTestRouter(t, infer.NewStubClient())
		resp := r.Handle(ctx, Request{Type: "BOGUS"})
		if resp.OK || resp.Error == "" {
			t.Errorf("Expected error for unknown type, got %+v", resp)
		}
	})
}

func TestServe(t *testing.T) {
	t.Run("RequestResponseLoop", func(t *testing.T) {
		r, _, _ := newTestRouter(t, infer.NewStubClient())

		var in, out bytes.Buffer
		ping, _ := json.Marshal(Request{Type: TypePing})
		if err := WriteFrame(&in, ping); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
		count, _ := json.Marshal(Request{Type: TypeGetCount})
		if err := WriteFrame(&in, count); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}

		if err := r.Serve(context.Background(), &in, &out); err != nil {
			t.Fatalf("Serve failed: %v", err)
		}

		var responses []Response
		for {
			payload, err := ReadFrame(&out)
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("ReadFrame failed: %v", err)
			}
			var resp Response
			if err := json.Unmarshal(payload, &resp); err != nil {
				t.Fatalf("Bad response frame: %v", err)
			}
			responses = append(responses, resp)
		}

		if len(responses) != 2 {
			t.Fatalf("Expected 2 responses, got %d", len(responses))
		}
		if responses[0].Type != TypePing || !responses[0].OK {
			t.Errorf("Unexpected ping response: %+v", responses[0])
		}
		if responses[1].Type != TypeGetCount || responses[1].Count == nil {
			t.Errorf("Unexpected count response: %+v", responses[1])
		}
	})

	t.Run("CapturesPersistBeforeExit", func(t *testing.T) {
		r, s, _ := newTestRouter(t, infer.NewStubClient())

		var in, out bytes.Buffer
		cap1, _ := json.Marshal(Request{Type: TypeCapture, Data: hostSnapshot("https://example.com/a")})
		if err := WriteFrame(&in, cap1); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}

		// The pipe closes right after the ack; the acked capture must still
		// land before Serve returns.
		if err := r.Serve(context.Background(), &in, &out); err != nil {
			t.Fatalf("Serve failed: %v", err)
		}

		n, _ := s.Count()
		if n != 1 {
			t.Errorf("Expected acked capture persisted before exit, got %d memories", n)
		}
	})

	t.Run("MalformedFrameGetsErrorResponse", func(t *testing.T) {
		r, _, _ := newTestRouter(t, infer.NewStubClient())

		var in, out bytes.Buffer
		if err := WriteFrame(&in, []byte("not json at all")); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}

		if err := r.Serve(context.Background(), &in, &out); err != nil {
			t.Fatalf("Serve failed: %v", err)
		}

		payload, err := ReadFrame(&out)
		if err != nil {
			t.Fatalf("Expected an error response frame: %v", err)
		}
		var resp Response
		if err := json.Unmarshal(payload, &resp); err != nil {
			t.Fatalf("Bad response frame: %v", err)
		}
		if resp.OK || resp.Error == "" {
			t.Errorf("Expected malformed-request error, got %+v", resp)
		}
	})
}
