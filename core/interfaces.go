package core

import "context"

// AIClient is the narrow interface judge/llmclient implements over the
// Anthropic SDK for optional tie-break adjudication. It is never
// load-bearing for correctness: callers must fall back to deterministic
// scoring on any error.
type AIClient interface {
	GenerateResponse(ctx context.Context, prompt string, options *AIOptions) (*AIResponse, error)
}

// AIOptions configures one AIClient call.
type AIOptions struct {
	Model        string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
}

// AIResponse is the result of one AIClient call.
type AIResponse struct {
	Content string
	Model   string
	Usage   TokenUsage
}

// TokenUsage reports token accounting for an AIResponse.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
