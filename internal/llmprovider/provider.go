// Package llmprovider implements the LLMProvider external collaborator:
// a single-shot, addressable-by-model text generation call used by the
// Planner, the value-assessment step of MemorySystem, and the LLM
// branch of MemoryExtractor.
package llmprovider

import "context"

// Options configures one Generate call.
type Options struct {
	Temperature float64
	MaxTokens   int
	// RequestType labels the call site for logging/metrics
	// ("planning", "value_assessment", "extract", "query_plan").
	RequestType string
	// Model selects an addressable model by name; empty uses the
	// provider's configured default. The anti-injection model is not
	// chosen here: RequestType "anti_injection" selects it (when one is
	// configured) and overrides Model.
	Model string
	Tools []ToolSchema
}

// ToolSchema is a minimal tool-call descriptor carried in Options.Tools.
// The Anthropic-backed Client in this package does not forward
// Options.Tools to the SDK.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Provider is the abstract LLM collaborator. Generate returns ok=false
// (not an error) when the provider declines to answer (e.g. safety
// refusal) so callers can distinguish "no answer" from "call failed".
type Provider interface {
	Generate(ctx context.Context, prompt string, opts Options) (text string, ok bool, err error)
}
