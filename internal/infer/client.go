// Package infer wraps a local model runtime behind a prompt-with-schema
// capability. The gateway owns the session lifecycle; callers only see
// "prompt in, raw text out" plus a small error taxonomy.
package infer

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrUnavailable means no model session could be acquired.
	ErrUnavailable = errors.New("inference unavailable")
	// ErrTimeout means a prompt exceeded the wall-clock ceiling and was abandoned.
	ErrTimeout = errors.New("inference timeout")
	// ErrMalformed means model output could not be parsed by the caller.
	ErrMalformed = errors.New("inference output malformed")
)

// Client is one concrete model runtime (Ollama, an OpenAI-compatible
// localhost server, or a test stub).
type Client interface {
	// Probe reports whether the runtime is reachable and ready to serve.
	Probe(ctx context.Context) error

	// Generate runs a single prompt under the pinned system instruction,
	// constrained by a JSON Schema, and returns the raw response text.
	Generate(ctx context.Context, system, prompt string, schema json.RawMessage) (string, error)

	// Name returns the runtime identifier (e.g. "ollama", "openai").
	Name() string
}
