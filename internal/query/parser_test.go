package query

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/felixgeelhaar/dejaview/internal/infer"
	"github.com/felixgeelhaar/dejaview/internal/observe"
)

func newInterpreter(client *infer.StubClient) *Interpreter {
	obs := observe.New(io.Discard, false)
	return NewInterpreter(infer.NewGateway(client, obs), obs)
}

func TestParse(t *testing.T) {
	t.Run("FullIntent", func(t *testing.T) {
		client := infer.NewStubClient(`{
			"domain": "reddit.com",
			"pageContext": "mechanical keyboards",
			"visual": null,
			"targetLocation": "comment",
			"searchContent": "thock",
			"isExactMatch": false
		}`)
		interp := newInterpreter(client)

		intent := interp.Parse(context.Background(), "that reddit comment about thock keyboards")

		if intent.Page.Domain != "reddit.com" {
			t.Errorf("Expected domain reddit.com, got %q", intent.Page.Domain)
		}
		if intent.Page.PageContext != "mechanical keyboards" {
			t.Errorf("Unexpected pageContext %q", intent.Page.PageContext)
		}
		if intent.Page.Visual != "" {
			t.Errorf("Expected null visual to decode as empty, got %q", intent.Page.Visual)
		}
		if intent.Content.TargetLocation != "comment" {
			t.Errorf("Unexpected targetLocation %q", intent.Content.TargetLocation)
		}
		if intent.Content.SearchContent != "thock" {
			t.Errorf("Unexpected searchContent %q", intent.Content.SearchContent)
		}
		if intent.Content.IsExactMatch {
			t.Error("Expected isExactMatch false")
		}
		if intent.OriginalQuery != "that reddit comment about thock keyboards" {
			t.Errorf("Original query not preserved: %q", intent.OriginalQuery)
		}
	})

	t.Run("PromptCarriesQuery", func(t *testing.T) {
		client := infer.NewStubClient(`{"searchContent": "", "isExactMatch": false}`)
		interp := newInterpreter(client)

		interp.Parse(context.Background(), "blue cooking blog")

		if client.PromptCount() != 1 {
			t.Fatalf("Expected 1 prompt, got %d", client.PromptCount())
		}
		if !strings.Contains(client.Prompts[0], `"blue cooking blog"`) {
			t.Errorf("Prompt does not carry the raw query: %s", client.Prompts[0])
		}
	})

	t.Run("GatewayErrorFallsBackToTrivial", func(t *testing.T) {
		client := infer.NewStubClient()
		client.ProbeErr = errors.New("no runtime")
		interp := newInterpreter(client)

		intent := interp.Parse(context.Background(), "pasta recipe")

		if intent.Content.SearchContent != "pasta recipe" {
			t.Errorf("Expected trivial intent, got %+v", intent)
		}
		if !intent.Page.Empty() {
			t.Errorf("Trivial intent must carry no identity hints, got %+v", intent.Page)
		}
		if intent.Content.IsExactMatch {
			t.Error("Trivial intent must not claim exact match")
		}
	})

	t.Run("MalformedOutputFallsBackToTrivial", func(t *testing.T) {
		client := infer.NewStubClient("I think the user wants a recipe page")
		interp := newInterpreter(client)

		intent := interp.Parse(context.Background(), "pasta recipe")

		if intent.Content.SearchContent != "pasta recipe" {
			t.Errorf("Expected trivial intent on unparseable output, got %+v", intent)
		}
	})
}

func TestPageIdentificationEmpty(t *testing.T) {
	if !(PageIdentification{}).Empty() {
		t.Error("Zero value must report empty")
	}
	if (PageIdentification{Visual: "blue"}).Empty() {
		t.Error("Visual-only identity must not report empty")
	}
}
