package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atelier-agent-org/atelier-agent/pkg/llm"
	"github.com/atelier-agent-org/atelier-agent/pkg/parse"
	"github.com/atelier-agent-org/atelier-agent/pkg/types"
)

// Planner produces an upfront execution plan from the user's goal. It is
// advisory only: every failure mode degrades to "no plan" and the loop
// proceeds without one.
type Planner struct {
	llm   LLMGateway
	model string
	log   *slog.Logger
}

// NewPlanner builds a Planner. If logger is nil, slog.Default() is used.
func NewPlanner(gateway LLMGateway, model string, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{llm: gateway, model: model, log: logger}
}

// Plan makes a single model call and parses the response into a Plan.
// It returns nil when the call or the parse fails.
func (p *Planner) Plan(ctx context.Context, goal, projectSummary string) *types.Plan {
	if p == nil || p.llm == nil {
		return nil
	}

	userPrompt := fmt.Sprintf("Goal:\n%s\n\nProject layout:\n%s", goal, projectSummary)
	resp, err := p.llm.Chat(ctx, &llm.ChatRequest{
		Model: p.model,
		Messages: []types.Message{
			{Role: types.RoleSystem, Content: planningSystemPrompt},
			{Role: types.RoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		p.log.Warn("planning call failed, continuing without a plan", "error", err)
		return nil
	}

	var plan types.Plan
	if err := parse.Object(resp.Content, &plan); err != nil {
		p.log.Warn("planning response was not a valid plan", "error", err)
		return nil
	}
	return &plan
}
