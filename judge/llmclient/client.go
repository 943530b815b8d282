// Package llmclient wraps the Anthropic SDK behind core.AIClient for the
// Selection Policy's optional model adjudication. Never load-bearing for
// correctness: judge/policy.go must fall back to deterministic scoring on
// any error this package returns.
package llmclient

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/trailmind/dispatch/core"
)

// Client implements core.AIClient over the Anthropic Messages API.
type Client struct {
	sdk *anthropic.Client
}

// New builds a Client. apiKey must be non-empty; callers (judge/policy.go)
// are responsible for deciding whether an LLM endpoint is configured at
// all and skipping adjudication entirely when it isn't.
func New(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: anthropic api key is empty", core.ErrConfigInvalid)
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Client{sdk: &client}, nil
}

// GenerateResponse issues one Messages.New call and returns its first
// text block.
func (c *Client) GenerateResponse(ctx context.Context, prompt string, opts *core.AIOptions) (*core.AIResponse, error) {
	if opts == nil {
		opts = &core.AIOptions{}
	}
	model := anthropic.Model(opts.Model)
	if opts.Model == "" {
		model = anthropic.ModelClaude3_5HaikuLatest
	}
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.SystemPrompt}}
	}

	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("llmclient: anthropic call failed: %w", err)
	}

	var content string
	for _, block := range msg.Content {
		if block.Type == "text" {
			content = block.Text
			break
		}
	}

	return &core.AIResponse{
		Content: content,
		Model:   string(msg.Model),
		Usage: core.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}
