// api/schemas/interfaces.go
package schemas

import "context"

// GenerationRequest is a single-turn completion request to the language
// model boundary. Temperature of 0 is sent as-is; callers that want the
// provider default should set it explicitly.
type GenerationRequest struct {
	System      string
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// LLMClient abstracts the upstream language-model transport. The engine
// treats it as a one-shot oracle: a single request, a single textual
// response, no retries at this layer.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}
