package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/atelier-agent-org/atelier-agent/pkg/llm"
	"github.com/atelier-agent-org/atelier-agent/pkg/parse"
	"github.com/atelier-agent-org/atelier-agent/pkg/types"
)

// fallbackConfidence is reported when reflection itself fails and the
// loop continues on the conservative default judgment.
const fallbackConfidence = 30

// Reflector asks the model to judge progress after each tool batch.
// It never fails: any error degrades to a "keep going" judgment so a
// broken reflection call cannot take down the session.
type Reflector struct {
	llm   LLMGateway
	model string
	log   *slog.Logger
}

// NewReflector builds a Reflector. If logger is nil, slog.Default() is used.
func NewReflector(gateway LLMGateway, model string, logger *slog.Logger) *Reflector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reflector{llm: gateway, model: model, log: logger}
}

// Reflect evaluates the latest tool batch against the goal.
func (r *Reflector) Reflect(ctx context.Context, goal string, step int, results []types.ToolResult) types.Reflection {
	summaries := summarizeResults(results)
	reflection := r.call(ctx, goal, step, summaries)
	reflection.ID = types.GenerateReflectionID()
	reflection.Step = step
	reflection.ToolResults = summaries
	reflection.Timestamp = time.Now()
	return reflection
}

func (r *Reflector) call(ctx context.Context, goal string, step int, summaries []string) types.Reflection {
	fallback := types.Reflection{
		CurrentSituation: "Reflection unavailable, continuing execution.",
		Reasoning:        "The reflection step failed, so the loop continues on its default judgment.",
		Confidence:       fallbackConfidence,
		ShouldContinue:   true,
	}
	if r == nil || r.llm == nil {
		return fallback
	}

	userPrompt := fmt.Sprintf("Goal:\n%s\n\nIteration: %d\n\nTool results:\n%s",
		goal, step, strings.Join(summaries, "\n"))
	resp, err := r.llm.Chat(ctx, &llm.ChatRequest{
		Model: r.model,
		Messages: []types.Message{
			{Role: types.RoleSystem, Content: reflectionSystemPrompt},
			{Role: types.RoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		r.log.Warn("reflection call failed, using fallback judgment", "error", err)
		return fallback
	}

	var reflection types.Reflection
	if err := parse.Object(resp.Content, &reflection); err != nil {
		r.log.Warn("reflection response was not valid JSON, using fallback judgment", "error", err)
		return fallback
	}
	return reflection
}

func summarizeResults(results []types.ToolResult) []string {
	summaries := make([]string, 0, len(results))
	for _, res := range results {
		status := "ok"
		detail := res.Content
		if !res.Success {
			status = "failed"
			if res.Error != "" {
				detail = res.Error
			}
		}
		detail = truncate(detail, 200)
		summaries = append(summaries, fmt.Sprintf("%s: %s: %s", res.ToolName, status, detail))
	}
	return summaries
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
