// Package llmclient provides the model-backend abstraction every stage
// worker calls through, plus the retry classification that drives the
// jittered backoff step of pkg/stageworker's seven-step skeleton.
package llmclient

import "context"

// Client is the interface every pkg/stages/* prompt assembler calls
// through. Swappable for a stub in tests, mirroring pkg/llm.Client's
// role as the sole LLM access point in the teacher.
type Client interface {
	// Complete sends prompt as a single-turn user message and returns the
	// model's text response.
	Complete(ctx context.Context, prompt string) (string, error)
}
