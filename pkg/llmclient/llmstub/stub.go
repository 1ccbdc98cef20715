// Package llmstub provides a deterministic pkg/llmclient.Client for
// tests, mirroring test/e2e/mock_llm.go's role as the teacher's
// no-network LLM stand-in.
package llmstub

import (
	"context"
	"sync"

	"github.com/navigo-fleet/pipeline/pkg/llmclient"
)

// Client returns a scripted sequence of responses/errors, one per call,
// repeating the final entry once exhausted. Safe for concurrent use.
type Client struct {
	mu        sync.Mutex
	responses []Response
	calls     []string // prompts received, for assertions
}

// Response is one scripted Complete result.
type Response struct {
	Text string
	Err  error
}

// New creates a Client that returns responses in order.
func New(responses ...Response) *Client {
	return &Client{responses: responses}
}

// Complete implements llmclient.Client.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, prompt)

	if len(c.responses) == 0 {
		return "", nil
	}
	idx := len(c.calls) - 1
	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	r := c.responses[idx]
	return r.Text, r.Err
}

// Calls returns every prompt received so far, in order.
func (c *Client) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

var _ llmclient.Client = (*Client)(nil)
