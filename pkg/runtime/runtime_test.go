package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-agent-org/atelier-agent/pkg/config"
	"github.com/atelier-agent-org/atelier-agent/pkg/llm"
	"github.com/atelier-agent-org/atelier-agent/pkg/llm/mock"
	"github.com/atelier-agent-org/atelier-agent/pkg/store"
	"github.com/atelier-agent-org/atelier-agent/pkg/tool"
	"github.com/atelier-agent-org/atelier-agent/pkg/types"
	"github.com/atelier-agent-org/atelier-agent/pkg/vfs"
)

const planJSON = `{
  "projectAnalysis": "empty project",
  "userRequestBreakdown": "create a notes file",
  "executionPlan": [{"step": 1, "action": "create_file", "target": "notes.txt", "purpose": "add notes"}],
  "estimatedSteps": 1,
  "confidence": 90
}`

const reflectionContinueJSON = `{
  "currentSituation": "file created",
  "nextSteps": ["wrap up"],
  "reasoning": "one step left",
  "confidence": 85,
  "shouldContinue": true,
  "progressPercentage": 60
}`

const reflectionStopJSON = `{
  "currentSituation": "All done.",
  "nextSteps": [],
  "reasoning": "goal accomplished",
  "confidence": 95,
  "shouldContinue": false,
  "progressPercentage": 100
}`

type harness struct {
	provider *mock.Provider
	project  *vfs.Project
	store    *store.MemoryStore
	runtime  *Runtime
	calls    map[string]int
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	h := &harness{
		provider: mock.New(),
		project:  vfs.NewProject("proj-test"),
		store:    store.NewMemoryStore(),
		calls:    make(map[string]int),
	}

	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(types.Tool{Name: "create_file", Description: "create a file"},
		func(ctx context.Context, args string) tool.Result {
			h.calls["create_file"]++
			var p struct{ Path, Content string }
			if err := json.Unmarshal([]byte(args), &p); err != nil {
				return tool.Result{Success: false, Error: err.Error()}
			}
			if _, err := h.project.Create(p.Path, p.Content); err != nil {
				return tool.Result{Success: false, Error: err.Error()}
			}
			return tool.Result{Success: true, Message: "created " + p.Path}
		}))
	require.NoError(t, reg.Register(types.Tool{Name: "read_file", Description: "read a file"},
		func(ctx context.Context, args string) tool.Result {
			h.calls["read_file"]++
			var p struct{ Path string }
			if err := json.Unmarshal([]byte(args), &p); err != nil {
				return tool.Result{Success: false, Error: err.Error()}
			}
			rec, err := h.project.Read(p.Path)
			if err != nil {
				return tool.Result{Success: false, Error: err.Error()}
			}
			return tool.Result{Success: true, Message: rec.Content}
		}))

	dispatcher := tool.NewDispatcher(reg, nil)
	dispatcher.SetRetryDelay(time.Millisecond)

	h.runtime = New(Options{
		Config:  cfg,
		Gateway: llm.NewGateway(h.provider, config.ProviderOptions{}),
		Tools:   dispatcher,
		Catalog: reg,
		Store:   h.store,
		Project: h.project,
	})
	return h
}

func toolBatch(calls ...types.ToolCall) *llm.ProviderResponse {
	return &llm.ProviderResponse{
		ID:           "mock-batch",
		Model:        "mock-model",
		ToolCalls:    calls,
		FinishReason: "tool_calls",
	}
}

func lastMessage(t *testing.T, msgs []types.Message) types.Message {
	t.Helper()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func TestDeriveBudgets(t *testing.T) {
	cases := []struct {
		setting, calls, turns int
	}{
		{0, 1, 3},
		{1, 1, 3},
		{3, 3, 3},
		{7, 7, 4},
		{10, 10, 5},
		{20, 20, 10},
		{25, 20, 10},
		{-5, 1, 3},
	}
	for _, tc := range cases {
		b := deriveBudgets(tc.setting)
		assert.Equal(t, tc.calls, b.MaxToolCalls, "setting %d", tc.setting)
		assert.Equal(t, tc.turns, b.MaxConversationTurns, "setting %d", tc.setting)
	}
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 200))

	long := truncate(strings.Repeat("x", 300), 200)
	assert.Equal(t, strings.Repeat("x", 200)+"...", long)

	// "x" then two-byte runes puts the cut point inside a rune.
	multi := truncate("x"+strings.Repeat("é", 150), 200)
	assert.True(t, utf8.ValidString(multi))
	assert.True(t, strings.HasSuffix(multi, "..."))
	assert.LessOrEqual(t, len(multi), 203)
}

func TestRunPlanToolsReflectComplete(t *testing.T) {
	h := newHarness(t, Config{MaxToolCalls: 10})
	h.provider.
		QueueText(planJSON).
		Queue(toolBatch(
			types.ToolCall{ID: "call_1", Name: "create_file", Arguments: `{"path":"notes.txt","content":"hello"}`},
			types.ToolCall{ID: "call_2", Name: "read_file", Arguments: `{"path":"notes.txt"}`},
		)).
		QueueText(reflectionContinueJSON).
		QueueText("Done: notes.txt now contains the greeting.")

	exec, err := h.runtime.Run(context.Background(), "create a notes file saying hello")
	require.NoError(t, err)

	assert.Equal(t, types.PhaseCompleted, exec.Status)
	require.NotNil(t, exec.EndTime)
	assert.Equal(t, 1, exec.TotalSteps)
	require.Len(t, exec.Reflections, 1)
	assert.True(t, exec.Reflections[0].ShouldContinue)
	assert.Equal(t, 85, exec.Reflections[0].Confidence)

	// The file was actually created through the tool.
	rec, err := h.project.Read("notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", rec.Content)

	msgs := h.runtime.Messages()
	assert.Contains(t, msgs[1].Content, "Here's my plan")
	assert.Equal(t, "Done: notes.txt now contains the greeting.", lastMessage(t, msgs).Content)

	// Every tool call got its reply, in request order.
	var replies []types.Message
	for _, m := range msgs {
		if m.Role == types.RoleTool {
			replies = append(replies, m)
		}
	}
	require.Len(t, replies, 2)
	assert.Equal(t, "call_1", replies[0].ToolCallID)
	assert.Equal(t, "call_2", replies[1].ToolCallID)

	// One checkpoint for the successful batch, one at end of session.
	cps := h.runtime.Checkpoints()
	require.Len(t, cps, 2)
	assert.Equal(t, "create a notes file saying hello", cps[0].Metadata.UserQuery)

	// The session reached the durable store.
	state, err := h.store.Load(context.Background(), "proj-test")
	require.NoError(t, err)
	assert.Equal(t, len(msgs), len(state.Messages))
	assert.Len(t, state.Checkpoints, 2)
}

func TestRunNaturalCompletionWithoutTools(t *testing.T) {
	h := newHarness(t, Config{})
	h.provider.
		QueueText("this is not a plan").
		QueueText("Nothing to do, the project already looks right.")

	exec, err := h.runtime.Run(context.Background(), "check the project")
	require.NoError(t, err)

	assert.Equal(t, types.PhaseCompleted, exec.Status)
	assert.Empty(t, exec.Reflections)
	assert.Zero(t, exec.TotalSteps)
	assert.Equal(t, "Nothing to do, the project already looks right.",
		lastMessage(t, h.runtime.Messages()).Content)
	assert.Empty(t, h.calls)
}

func TestRunToolBudgetDiscardsOverBudgetBatch(t *testing.T) {
	h := newHarness(t, Config{MaxToolCalls: 5})
	require.Equal(t, 5, h.runtime.Budgets().MaxToolCalls)

	firstBatch := toolBatch(
		types.ToolCall{ID: "call_1", Name: "create_file", Arguments: `{"path":"a.txt","content":"a"}`},
		types.ToolCall{ID: "call_2", Name: "create_file", Arguments: `{"path":"b.txt","content":"b"}`},
		types.ToolCall{ID: "call_3", Name: "create_file", Arguments: `{"path":"c.txt","content":"c"}`},
	)
	secondBatch := toolBatch(
		types.ToolCall{ID: "call_4", Name: "read_file", Arguments: `{"path":"a.txt"}`},
		types.ToolCall{ID: "call_5", Name: "read_file", Arguments: `{"path":"b.txt"}`},
		types.ToolCall{ID: "call_6", Name: "read_file", Arguments: `{"path":"c.txt"}`},
	)

	h.provider.
		QueueText("no plan").
		Queue(firstBatch).
		QueueText(reflectionContinueJSON).
		Queue(secondBatch)

	exec, err := h.runtime.Run(context.Background(), "make three files")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseCompleted, exec.Status)

	// The second batch would exceed the budget, so none of it ran.
	assert.Equal(t, 3, h.calls["create_file"])
	assert.Zero(t, h.calls["read_file"])

	last := lastMessage(t, h.runtime.Messages())
	assert.Equal(t, types.RoleAssistant, last.Role)
	assert.Contains(t, last.Content, "tool call limit")
	assert.Contains(t, last.Content, "3 of 5 used")

	for _, m := range h.runtime.Messages() {
		if m.Role == types.RoleTool {
			assert.NotContains(t, []string{"call_4", "call_5", "call_6"}, m.ToolCallID)
		}
	}
}

func TestRunToolBudgetExhaustedStopsConversation(t *testing.T) {
	h := newHarness(t, Config{MaxToolCalls: 2})
	require.Equal(t, 2, h.runtime.Budgets().MaxToolCalls)

	h.provider.
		QueueText("no plan").
		Queue(toolBatch(
			types.ToolCall{ID: "call_1", Name: "create_file", Arguments: `{"path":"a.txt","content":"a"}`},
			types.ToolCall{ID: "call_2", Name: "create_file", Arguments: `{"path":"b.txt","content":"b"}`},
		)).
		QueueText(reflectionContinueJSON)

	exec, err := h.runtime.Run(context.Background(), "make two files")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseCompleted, exec.Status)

	// Plan, one conversation turn, one reflection. The budget is spent,
	// so the model is never asked for another turn.
	assert.Len(t, h.provider.Requests, 3)
	assert.Equal(t, 2, h.calls["create_file"])

	last := lastMessage(t, h.runtime.Messages())
	assert.Equal(t, types.RoleAssistant, last.Role)
	assert.Contains(t, last.Content, "tool call budget")
	assert.Contains(t, last.Content, "2 of 2")
}

func TestRunModelErrorIsSessionFatal(t *testing.T) {
	h := newHarness(t, Config{})
	transport := errors.New("connection reset")
	h.provider.
		QueueError(errors.New("planning outage")). // planner failure is absorbed
		QueueError(transport)                      // conversation failure is fatal

	exec, err := h.runtime.Run(context.Background(), "do something")
	require.Error(t, err)
	assert.ErrorIs(t, err, transport)

	require.NotNil(t, exec)
	assert.Equal(t, types.PhaseCompleted, exec.Status)
	last := lastMessage(t, h.runtime.Messages())
	assert.Equal(t, types.RoleAssistant, last.Role)
	assert.Contains(t, last.Content, "connection reset")
}

func TestRunReflectionFailureFallsBack(t *testing.T) {
	h := newHarness(t, Config{})
	h.provider.
		QueueText("no plan").
		Queue(toolBatch(types.ToolCall{ID: "call_1", Name: "create_file", Arguments: `{"path":"x.txt","content":"x"}`})).
		QueueText("garbage that is not a reflection").
		QueueText("All set.")

	exec, err := h.runtime.Run(context.Background(), "make x.txt")
	require.NoError(t, err)

	require.Len(t, exec.Reflections, 1)
	r := exec.Reflections[0]
	assert.True(t, r.ShouldContinue)
	assert.Equal(t, fallbackConfidence, r.Confidence)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, 1, r.Step)
	require.Len(t, r.ToolResults, 1)
	assert.Contains(t, r.ToolResults[0], "create_file")
}

func TestRunReflectionStopTerminates(t *testing.T) {
	h := newHarness(t, Config{MaxToolCalls: 10})
	h.provider.
		QueueText("no plan").
		Queue(toolBatch(types.ToolCall{ID: "call_1", Name: "create_file", Arguments: `{"path":"x.txt","content":"x"}`})).
		QueueText(reflectionStopJSON)

	exec, err := h.runtime.Run(context.Background(), "make x.txt")
	require.NoError(t, err)

	assert.Equal(t, types.PhaseCompleted, exec.Status)
	require.Len(t, exec.Reflections, 1)
	assert.False(t, exec.Reflections[0].ShouldContinue)

	// Plan, one conversation turn, one reflection. Nothing more.
	assert.Len(t, h.provider.Requests, 3)
	assert.Equal(t, "All done.", lastMessage(t, h.runtime.Messages()).Content)
}

func TestRunTurnLimitEmitsNotice(t *testing.T) {
	h := newHarness(t, Config{MaxToolCalls: 6}) // 3 turns
	require.Equal(t, 3, h.runtime.Budgets().MaxConversationTurns)

	h.provider.QueueText("no plan")
	for i := 0; i < 3; i++ {
		h.provider.
			Queue(toolBatch(types.ToolCall{
				ID:        fmt.Sprintf("call_%d", i+1),
				Name:      "create_file",
				Arguments: fmt.Sprintf(`{"path":"f%d.txt","content":"x"}`, i),
			})).
			QueueText(reflectionContinueJSON)
	}

	exec, err := h.runtime.Run(context.Background(), "keep going")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseCompleted, exec.Status)
	assert.Len(t, exec.Reflections, 3)
	assert.Contains(t, lastMessage(t, h.runtime.Messages()).Content, "conversation turn limit")
}

func TestRewindRestoresFilesAndDiscardsLater(t *testing.T) {
	h := newHarness(t, Config{})
	h.provider.
		QueueText("no plan").
		Queue(toolBatch(types.ToolCall{ID: "call_1", Name: "create_file", Arguments: `{"path":"keep.txt","content":"v1"}`})).
		QueueText(reflectionStopJSON)

	_, err := h.runtime.Run(context.Background(), "make keep.txt")
	require.NoError(t, err)

	cps := h.runtime.Checkpoints()
	require.Len(t, cps, 2)
	target := cps[0]

	// Mutate the project after the checkpoint.
	_, err = h.project.Update("keep.txt", "v2")
	require.NoError(t, err)
	_, err = h.project.Create("extra.txt", "later")
	require.NoError(t, err)

	require.NoError(t, h.runtime.Rewind(context.Background(), target.ID))

	rec, err := h.project.Read("keep.txt")
	require.NoError(t, err)
	assert.Equal(t, "v1", rec.Content)
	_, err = h.project.Read("extra.txt")
	assert.Error(t, err)

	remaining := h.runtime.Checkpoints()
	require.Len(t, remaining, 1)
	assert.Equal(t, target.ID, remaining[0].ID)

	assert.ErrorContains(t, h.runtime.Rewind(context.Background(), "cp_missing"), "not found")
}

func TestRunRestoresPersistedSession(t *testing.T) {
	h := newHarness(t, Config{})

	prior := &types.SessionState{
		Messages: []types.Message{
			types.NewMessage(types.RoleUser, "earlier goal"),
			types.NewMessage(types.RoleAssistant, "earlier answer"),
		},
		Checkpoints: []types.Checkpoint{{
			ID:        "cp_prior",
			Timestamp: time.Now().Add(-time.Hour),
			Metadata:  types.CheckpointMetadata{UserQuery: "earlier goal"},
		}},
		LastModified: time.Now().Add(-time.Hour),
	}
	require.NoError(t, h.store.Save(context.Background(), "proj-test", prior))

	h.provider.
		QueueText("no plan").
		QueueText("Picking up where we left off.")

	_, err := h.runtime.Run(context.Background(), "continue")
	require.NoError(t, err)

	ids := make([]string, 0)
	for _, cp := range h.runtime.Checkpoints() {
		ids = append(ids, cp.ID)
	}
	assert.Contains(t, ids, "cp_prior")

	// The conversation sent to the model carried the continuity note.
	var sawCarryover bool
	for _, req := range h.provider.Requests {
		for _, m := range req.Messages {
			if strings.Contains(m.Content, "previous session") {
				sawCarryover = true
			}
		}
	}
	assert.True(t, sawCarryover)
}

func TestObserverSeesPhaseProgression(t *testing.T) {
	h := newHarness(t, Config{})
	var phases []types.ExecutionPhase
	h.runtime.Subscribe(func(s State) {
		phases = append(phases, s.Phase)
	})

	h.provider.
		QueueText("no plan").
		QueueText("done")

	_, err := h.runtime.Run(context.Background(), "quick check")
	require.NoError(t, err)

	require.NotEmpty(t, phases)
	assert.Equal(t, types.PhasePlanning, phases[0])
	assert.Equal(t, types.PhaseCompleted, phases[len(phases)-1])
}
