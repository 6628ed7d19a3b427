package infer

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// StubClient is a scripted runtime for testing. It replays canned responses
// in order and records every prompt it receives.
type StubClient struct {
	mu        sync.Mutex
	Responses []string
	Prompts   []string

	ProbeErr    error
	GenerateErr error
	Delay       time.Duration // simulated generation latency
}

func NewStubClient(responses ...string) *StubClient {
	return &StubClient{Responses: responses}
}

func (c *StubClient) Name() string {
	return "stub"
}

func (c *StubClient) Probe(ctx context.Context) error {
	return c.ProbeErr
}

func (c *StubClient) Generate(ctx context.Context, system, prompt string, schema json.RawMessage) (string, error) {
	if c.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.Delay):
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.Prompts = append(c.Prompts, prompt)

	if c.GenerateErr != nil {
		return "", c.GenerateErr
	}
	if len(c.Responses) == 0 {
		return "{}", nil
	}

	resp := c.Responses[0]
	c.Responses = c.Responses[1:]
	return resp, nil
}

// PromptCount returns how many prompts have been issued so far.
func (c *StubClient) PromptCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Prompts)
}
