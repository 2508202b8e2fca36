//go:build e2e
// +build e2e

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/atelier-agent-org/atelier-agent/pkg/agent/tools"
	"github.com/atelier-agent-org/atelier-agent/pkg/config"
	"github.com/atelier-agent-org/atelier-agent/pkg/llm"
	"github.com/atelier-agent-org/atelier-agent/pkg/llm/mock"
	"github.com/atelier-agent-org/atelier-agent/pkg/runtime"
	"github.com/atelier-agent-org/atelier-agent/pkg/store"
	"github.com/atelier-agent-org/atelier-agent/pkg/tool"
	"github.com/atelier-agent-org/atelier-agent/pkg/types"
	"github.com/atelier-agent-org/atelier-agent/pkg/vfs"
)

const planScript = `{
  "projectAnalysis": "empty project",
  "userRequestBreakdown": "create greeting.txt",
  "executionPlan": [{"step": 1, "action": "create_file", "target": "greeting.txt", "purpose": "store the greeting"}],
  "estimatedSteps": 1,
  "confidence": 90
}`

const reflectionStopScript = `{
  "currentSituation": "The greeting file exists.",
  "nextSteps": [],
  "reasoning": "goal accomplished",
  "confidence": 95,
  "shouldContinue": false,
  "progressPercentage": 100
}`

func newRuntime(t *testing.T, provider *mock.Provider, durable store.Store, projectID string) (*runtime.Runtime, *vfs.Project) {
	t.Helper()

	project := vfs.NewProject(projectID)
	registry := tool.NewRegistry()
	if err := tools.RegisterAll(registry, project); err != nil {
		t.Fatalf("register tools: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt := runtime.New(runtime.Options{
		Gateway: llm.NewGateway(provider, config.ProviderOptions{}),
		Tools:   tool.NewDispatcher(registry, logger),
		Catalog: registry,
		Store:   store.NewFallbackStore(store.NewMemoryStore(), durable, logger),
		Project: project,
		Logger:  logger,
	})
	return rt, project
}

func TestEndToEndGoalCompletion(t *testing.T) {
	ctx := context.Background()

	durable, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	provider := mock.New().
		QueueText(planScript).
		Queue(&llm.ProviderResponse{
			Model: "mock-model",
			ToolCalls: []types.ToolCall{{
				ID:        "call_1",
				Name:      "create_file",
				Arguments: `{"path":"greeting.txt","content":"hello"}`,
			}},
			FinishReason: "tool_calls",
		}).
		QueueText(reflectionStopScript)

	rt, project := newRuntime(t, provider, durable, "proj-e2e")

	exec, err := rt.Run(ctx, "create greeting.txt containing hello")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if exec.Status != types.PhaseCompleted {
		t.Fatalf("expected completed execution, got %s", exec.Status)
	}

	rec, err := project.Read("greeting.txt")
	if err != nil {
		t.Fatalf("read greeting: %v", err)
	}
	if rec.Content != "hello" {
		t.Fatalf("unexpected content %q", rec.Content)
	}

	// The session survived to the durable tier.
	state, err := durable.Load(ctx, "proj-e2e")
	if err != nil {
		t.Fatalf("load persisted session: %v", err)
	}
	if len(state.Messages) == 0 || len(state.Checkpoints) == 0 {
		t.Fatalf("expected persisted messages and checkpoints, got %d/%d",
			len(state.Messages), len(state.Checkpoints))
	}

	// A fresh runtime over the same store picks the session back up.
	provider2 := mock.New().
		QueueText("no plan").
		QueueText("Everything is already in place.")
	rt2, _ := newRuntime(t, provider2, durable, "proj-e2e")

	if _, err := rt2.Run(ctx, "double-check the greeting"); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(rt2.Checkpoints()) <= len(state.Checkpoints) {
		t.Fatalf("expected restored checkpoints plus a new one, got %d", len(rt2.Checkpoints()))
	}
}
