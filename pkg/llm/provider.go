package llm

import (
	"context"

	"github.com/atelier-agent-org/atelier-agent/pkg/types"
)

// Provider defines the interface for an LLM provider (e.g., OpenAI, Gemini)
type Provider interface {
	// ID returns the unique identifier of the provider
	ID() string

	// Call executes a synchronous chat request
	Call(ctx context.Context, req *ProviderRequest) (*ProviderResponse, error)
}

// ChatRequest is the orchestration-level request handed to the Gateway.
type ChatRequest struct {
	Model    string
	Messages []types.Message
	Tools    []types.Tool
}

// ChatResponse is the orchestration-level response.
type ChatResponse struct {
	Model        string
	Content      string
	ToolCalls    []types.ToolCall
	FinishReason string
	Usage        types.Usage
}

// ProviderRequest carries the full wire-level options.
type ProviderRequest struct {
	Model            string
	Messages         []types.Message
	Tools            []types.Tool
	ToolChoice       string // "auto" when tools are present
	MaxTokens        int
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// ProviderResponse is the wire-level response.
type ProviderResponse struct {
	ID           string
	Model        string
	Content      string
	ToolCalls    []types.ToolCall
	FinishReason string
	Usage        types.Usage
}
