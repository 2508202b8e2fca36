package llm

import (
	"context"

	"github.com/atelier-agent-org/atelier-agent/pkg/config"
)

// Gateway maps orchestration-level chat requests onto a concrete provider,
// applying configured sampling options.
type Gateway struct {
	provider Provider
	options  config.ProviderOptions
}

func NewGateway(provider Provider, opts config.ProviderOptions) *Gateway {
	if opts.Temperature == 0 {
		opts.Temperature = 0.7 // Default if not set
	}
	if opts.TopP == 0 {
		opts.TopP = 1.0
	}
	return &Gateway{
		provider: provider,
		options:  opts,
	}
}

func (g *Gateway) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	provReq := &ProviderRequest{
		Model:            req.Model,
		Messages:         req.Messages,
		Tools:            req.Tools,
		MaxTokens:        g.options.MaxTokens,
		Temperature:      g.options.Temperature,
		TopP:             g.options.TopP,
		FrequencyPenalty: g.options.FrequencyPenalty,
		PresencePenalty:  g.options.PresencePenalty,
	}
	if provReq.Model == "" {
		provReq.Model = g.options.Model
	}
	if len(req.Tools) > 0 {
		provReq.ToolChoice = "auto"
	}

	resp, err := g.provider.Call(ctx, provReq)
	if err != nil {
		return nil, err
	}

	return &ChatResponse{
		Model:        resp.Model,
		Content:      resp.Content,
		ToolCalls:    resp.ToolCalls,
		FinishReason: resp.FinishReason,
		Usage:        resp.Usage,
	}, nil
}
