// Package anthropicclient implements pkg/llmclient.Client against the
// Anthropic Messages API.
package anthropicclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/navigo-fleet/pipeline/pkg/llmclient"
)

// defaultModel is used by every stage unless overridden — the pipeline
// has no per-stage model tuning requirement, unlike TARSy's per-session
// configurable backend.
const defaultModel = anthropic.ModelClaudeSonnet4_5

// defaultMaxTokens bounds a single completion. Stage prompts all ask
// for compact structured output (a JSON object), never free-form prose.
const defaultMaxTokens = 2048

// Client wraps the Anthropic SDK client.
type Client struct {
	sdk       anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// New creates a Client. apiKey must be non-empty — callers decide
// whether to construct a Client at all (cmd/pipeline treats a missing
// key as a fatal configuration error, since every stage needs it).
func New(apiKey string) *Client {
	return &Client{
		sdk:       anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
	}
}

// Complete implements llmclient.Client.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := c.sdk.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", classifyAPIError(err)
	}

	for _, block := range msg.Content {
		if text := block.Text; text != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("anthropicclient: response had no text content")
}

// classifyAPIError wraps a rate-limit or overload response from the
// Anthropic API in llmclient.RateLimitError so pkg/llmclient.Classify
// routes it to the retry path.
func classifyAPIError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 529:
			return &llmclient.RateLimitError{Err: err}
		}
	}
	return fmt.Errorf("anthropicclient: complete: %w", err)
}

var _ llmclient.Client = (*Client)(nil)
