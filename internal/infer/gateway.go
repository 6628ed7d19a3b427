package infer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/felixgeelhaar/dejaview/internal/observe"
)

// State tracks session acquisition.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateProbing       State = "probing"
	StateReady         State = "ready"
	StateUnavailable   State = "unavailable"
)

// SystemInstruction is pinned when the session is created.
const SystemInstruction = "Memory search assistant. Analyze page content and return valid JSON with confidence scores."

// DefaultTimeout bounds every prompt call.
const DefaultTimeout = 60 * time.Second

// Status is the availability report surfaced to the UI.
type Status struct {
	Available bool   `json:"available"`
	Status    string `json:"status"`
}

// Gateway owns the single shared model session. Acquisition is idempotent:
// once Ready the session is reused for the process lifetime; once Unavailable
// every later acquisition re-probes, since the runtime can come up between
// calls. Prompt calls are serialized; the underlying runtimes do not promise
// safe interleaving.
type Gateway struct {
	client  Client
	obs     *observe.Observer
	timeout time.Duration

	mu    sync.Mutex // guards state
	state State

	callMu sync.Mutex // serializes Generate calls
}

func NewGateway(client Client, obs *observe.Observer) *Gateway {
	return &Gateway{
		client:  client,
		obs:     obs,
		state:   StateUninitialized,
		timeout: DefaultTimeout,
	}
}

// SetTimeout overrides the prompt ceiling; used by tests.
func (g *Gateway) SetTimeout(d time.Duration) {
	g.timeout = d
}

// Ensure acquires the session if needed. It is safe to call before every
// prompt; a Ready session is a no-op.
func (g *Gateway) Ensure(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateReady {
		return nil
	}

	g.state = StateProbing
	if err := g.client.Probe(ctx); err != nil {
		g.state = StateUnavailable
		g.obs.Log().Warn().Str("client", g.client.Name()).Err(err).Msg("model runtime unavailable")
		return ErrUnavailable
	}

	g.state = StateReady
	g.obs.Log().Info().Str("client", g.client.Name()).Msg("model session ready")
	return nil
}

// Ready reports whether a session is currently held, without probing.
func (g *Gateway) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == StateReady
}

// State returns the current session state.
func (g *Gateway) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// CheckStatus probes the runtime and reports availability for the UI.
func (g *Gateway) CheckStatus(ctx context.Context) Status {
	if err := g.Ensure(ctx); err != nil {
		return Status{Available: false, Status: "unavailable"}
	}
	return Status{Available: true, Status: "ready"}
}

// Prompt runs one schema-constrained prompt under the pinned system
// instruction. The call races a wall-clock timer; on timeout the in-flight
// generation is abandoned, not retried. Output is returned unvalidated;
// parsing it is the caller's concern.
func (g *Gateway) Prompt(ctx context.Context, body string, schema json.RawMessage) (string, error) {
	if err := g.Ensure(ctx); err != nil {
		return "", err
	}

	g.callMu.Lock()
	defer g.callMu.Unlock()

	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		text, err := g.client.Generate(genCtx, SystemInstruction, body, schema)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			// A failed call drops the session; the next acquisition re-probes.
			g.mu.Lock()
			g.state = StateUnavailable
			g.mu.Unlock()
			g.obs.Log().Warn().Err(r.err).Msg("prompt failed")
			return "", ErrUnavailable
		}
		return r.text, nil

	case <-time.After(g.timeout):
		g.obs.Log().Warn().Str("timeout", g.timeout.String()).Msg("prompt abandoned after timeout")
		return "", ErrTimeout

	case <-ctx.Done():
		return "", ctx.Err()
	}
}
