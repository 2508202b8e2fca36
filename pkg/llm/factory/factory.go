// Package factory constructs the configured LLM provider.
package factory

import (
	"context"
	"fmt"

	"github.com/atelier-agent-org/atelier-agent/pkg/config"
	"github.com/atelier-agent-org/atelier-agent/pkg/llm"
	"github.com/atelier-agent-org/atelier-agent/pkg/llm/gemini"
	"github.com/atelier-agent-org/atelier-agent/pkg/llm/openai"
)

// NewProvider resolves the active provider from config and builds it.
// Returns the provider together with its ID.
func NewProvider(ctx context.Context, cfg *config.Config) (llm.Provider, string, error) {
	providerID, opts, err := cfg.GetActiveProvider()
	if err != nil {
		return nil, "", err
	}

	switch providerID {
	case "gemini":
		p, err := gemini.New(ctx, gemini.Config{
			APIKey:    opts.APIKey,
			ProjectID: opts.ProjectID,
			Location:  opts.Location,
			Model:     opts.Model,
		})
		if err != nil {
			return nil, "", fmt.Errorf("create gemini provider: %w", err)
		}
		return p, providerID, nil
	case "openai", "deepseek":
		// DeepSeek speaks the OpenAI wire protocol via BaseURL.
		return openai.New(openai.Config{
			APIKey:  opts.APIKey,
			BaseURL: opts.BaseURL,
		}), providerID, nil
	default:
		return nil, "", fmt.Errorf("unsupported provider: %s", providerID)
	}
}
