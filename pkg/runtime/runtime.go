// Package runtime drives the plan / execute / reflect loop for one
// project session: a single upfront planning call, then model turns that
// either request tool batches or finish with a text answer, with a
// reflection judgment after every batch.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atelier-agent-org/atelier-agent/pkg/checkpoint"
	"github.com/atelier-agent-org/atelier-agent/pkg/history"
	"github.com/atelier-agent-org/atelier-agent/pkg/llm"
	"github.com/atelier-agent-org/atelier-agent/pkg/store"
	"github.com/atelier-agent-org/atelier-agent/pkg/types"
	"github.com/atelier-agent-org/atelier-agent/pkg/vfs"
)

// State is the externally observable loop position, published to
// observers on every phase change.
type State struct {
	Phase         types.ExecutionPhase
	Iteration     int
	ToolCallsUsed int
	Detail        string
}

// Observer receives state snapshots. Called synchronously from the loop
// goroutine; observers must not block.
type Observer func(State)

// Options wires a Runtime's collaborators.
type Options struct {
	Config      Config
	Gateway     LLMGateway
	Tools       ToolRunner
	Catalog     Catalog
	Checkpoints *checkpoint.Manager
	Store       store.Store
	Project     *vfs.Project
	Logger      *slog.Logger
}

// Runtime owns the conversation of one project session and runs goals
// against it. All mutation of the live message list happens on the
// calling goroutine of Run; accessors take copies under the lock.
type Runtime struct {
	cfg       Config
	budgets   Budgets
	llm       LLMGateway
	tools     ToolRunner
	catalog   Catalog
	cps       *checkpoint.Manager
	store     store.Store
	project   *vfs.Project
	history   *history.Builder
	planner   *Planner
	reflector *Reflector
	log       *slog.Logger

	mu        sync.Mutex
	messages  []types.Message
	carryover []types.Message
	observers []Observer
	restored  bool
}

func New(opts Options) *Runtime {
	cfg := opts.Config
	if cfg.MaxToolCalls == 0 {
		cfg.MaxToolCalls = DefaultConfig.MaxToolCalls
	}
	if cfg.HistoryWindow == 0 {
		cfg.HistoryWindow = DefaultConfig.HistoryWindow
	}
	if cfg.ModelTimeout == 0 {
		cfg.ModelTimeout = DefaultConfig.ModelTimeout
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cps := opts.Checkpoints
	if cps == nil {
		cps = checkpoint.NewManager(logger)
	}

	return &Runtime{
		cfg:       cfg,
		budgets:   deriveBudgets(cfg.MaxToolCalls),
		llm:       opts.Gateway,
		tools:     opts.Tools,
		catalog:   opts.Catalog,
		cps:       cps,
		store:     opts.Store,
		project:   opts.Project,
		history:   history.NewBuilder(cfg.SystemPrompt, cfg.HistoryWindow),
		planner:   NewPlanner(opts.Gateway, cfg.Model, logger),
		reflector: NewReflector(opts.Gateway, cfg.Model, logger),
		log:       logger,
	}
}

// Budgets returns the effective limits for this runtime.
func (r *Runtime) Budgets() Budgets { return r.budgets }

// Subscribe registers an observer for state changes.
func (r *Runtime) Subscribe(fn Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Messages returns a deep copy of the live conversation.
func (r *Runtime) Messages() []types.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return types.CloneMessages(r.messages)
}

// Checkpoints returns the checkpoint list in timestamp order.
func (r *Runtime) Checkpoints() []types.Checkpoint {
	return r.cps.List()
}

// Run executes one user goal to completion. The returned execution is
// always populated; the error is non-nil only for session-fatal failures
// (a failed model call, or context cancellation surfacing through one).
func (r *Runtime) Run(ctx context.Context, goal string) (*types.PlanningExecution, error) {
	if err := r.restore(ctx); err != nil {
		return nil, err
	}

	exec := &types.PlanningExecution{
		ID:        types.GenerateExecutionID(),
		Goal:      goal,
		Status:    types.PhasePlanning,
		StartTime: time.Now(),
	}
	r.notify(State{Phase: types.PhasePlanning})

	r.append(types.NewMessage(types.RoleUser, goal))

	if plan := r.plan(ctx, goal); plan != nil {
		r.append(types.NewMessage(types.RoleAssistant, plan.Summary()))
		exec.TotalSteps = len(plan.ExecutionPlan)
		if exec.TotalSteps == 0 {
			exec.TotalSteps = plan.EstimatedSteps
		}
	}

	toolCallsUsed := 0
	for turn := 1; turn <= r.budgets.MaxConversationTurns; turn++ {
		exec.Status = types.PhaseExecuting
		r.notify(State{Phase: types.PhaseExecuting, Iteration: turn, ToolCallsUsed: toolCallsUsed})

		resp, err := r.chat(ctx)
		if err != nil {
			r.append(types.NewMessage(types.RoleAssistant,
				"I hit an error talking to the model and have to stop: "+err.Error()))
			r.finish(ctx, exec, goal, toolCallsUsed)
			return exec, fmt.Errorf("model call: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			// Natural completion: a pure text answer ends the session.
			r.append(types.NewMessage(types.RoleAssistant, resp.Content))
			break
		}

		if toolCallsUsed+len(resp.ToolCalls) > r.budgets.MaxToolCalls {
			// The whole batch is discarded, never partially executed.
			r.append(types.NewMessage(types.RoleAssistant, fmt.Sprintf(
				"I've reached the tool call limit for this session (%d of %d used, %d more requested). Stopping here; ask me to continue if you'd like.",
				toolCallsUsed, r.budgets.MaxToolCalls, len(resp.ToolCalls))))
			break
		}
		toolCallsUsed += len(resp.ToolCalls)

		assistant := types.NewMessage(types.RoleAssistant, resp.Content)
		assistant.ToolCalls = resp.ToolCalls
		r.append(assistant)

		results, _ := r.tools.Dispatch(ctx, resp.ToolCalls)
		anyOK := false
		for _, res := range results {
			r.append(toolReply(res))
			if res.Success {
				anyOK = true
			}
		}
		if anyOK {
			r.cps.Create(goal, r.Messages(), r.snapshotFiles())
		}

		exec.Status = types.PhaseReflecting
		r.notify(State{Phase: types.PhaseReflecting, Iteration: turn, ToolCallsUsed: toolCallsUsed})

		reflection := r.reflect(ctx, goal, turn, results)
		exec.Reflections = append(exec.Reflections, reflection)
		exec.CurrentStep = turn

		if !reflection.ShouldContinue {
			if reflection.CurrentSituation != "" {
				r.append(types.NewMessage(types.RoleAssistant, reflection.CurrentSituation))
			}
			break
		}

		if toolCallsUsed >= r.budgets.MaxToolCalls {
			r.append(types.NewMessage(types.RoleAssistant, fmt.Sprintf(
				"I've used the full tool call budget for this session (%d of %d). Stopping here; ask me to continue if you'd like.",
				toolCallsUsed, r.budgets.MaxToolCalls)))
			break
		}

		if turn == r.budgets.MaxConversationTurns {
			r.append(types.NewMessage(types.RoleAssistant, fmt.Sprintf(
				"I've reached the conversation turn limit for this session (%d turns). Stopping here; ask me to continue if you'd like.",
				r.budgets.MaxConversationTurns)))
		}
	}

	r.finish(ctx, exec, goal, toolCallsUsed)
	return exec, nil
}

// Rewind restores the conversation and files from a checkpoint and
// discards every later one.
func (r *Runtime) Rewind(ctx context.Context, checkpointID string) error {
	cp, err := r.cps.Revert(checkpointID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.messages = cp.Messages
	r.mu.Unlock()

	if r.project != nil {
		r.project.Restore(cp.Files)
	}
	r.persist(ctx)
	r.log.Info("rewound session", "checkpoint", checkpointID)
	return nil
}

func (r *Runtime) finish(ctx context.Context, exec *types.PlanningExecution, goal string, toolCallsUsed int) {
	r.cps.Create(goal, r.Messages(), r.snapshotFiles())
	r.persist(ctx)

	now := time.Now()
	exec.Status = types.PhaseCompleted
	exec.EndTime = &now
	r.notify(State{Phase: types.PhaseCompleted, Iteration: exec.CurrentStep, ToolCallsUsed: toolCallsUsed})
}

func (r *Runtime) plan(ctx context.Context, goal string) *types.Plan {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.ModelTimeout)
	defer cancel()

	summary := ""
	if r.project != nil {
		summary = r.project.Tree()
	}
	return r.planner.Plan(cctx, goal, summary)
}

func (r *Runtime) chat(ctx context.Context) (*llm.ChatResponse, error) {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.ModelTimeout)
	defer cancel()

	r.mu.Lock()
	msgs := r.history.Build(r.messages, r.carryover, "")
	r.mu.Unlock()

	req := &llm.ChatRequest{Model: r.cfg.Model, Messages: msgs}
	if r.catalog != nil {
		req.Tools = r.catalog.List()
	}
	return r.llm.Chat(cctx, req)
}

func (r *Runtime) reflect(ctx context.Context, goal string, turn int, results []types.ToolResult) types.Reflection {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.ModelTimeout)
	defer cancel()
	return r.reflector.Reflect(cctx, goal, turn, results)
}

// restore loads the persisted session once per Runtime. A missing
// session is a fresh start, not an error.
func (r *Runtime) restore(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.restored {
		return nil
	}
	r.restored = true

	if r.store == nil || r.project == nil {
		return nil
	}
	state, err := r.store.Load(ctx, r.project.ID())
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	r.carryover = state.Messages
	r.cps.Load(state.Checkpoints)
	r.log.Info("restored session", "project", r.project.ID(),
		"messages", len(state.Messages), "checkpoints", len(state.Checkpoints))
	return nil
}

// persist writes the session through the store. Failures are logged,
// never surfaced: losing durability must not kill a running session.
func (r *Runtime) persist(ctx context.Context) {
	if r.store == nil || r.project == nil {
		return
	}
	state := &types.SessionState{
		Messages:     r.Messages(),
		Checkpoints:  r.cps.List(),
		LastModified: time.Now(),
	}
	if err := r.store.Save(ctx, r.project.ID(), state); err != nil {
		r.log.Error("failed to persist session", "project", r.project.ID(), "error", err)
	}
}

func (r *Runtime) snapshotFiles() []types.FileRecord {
	if r.project == nil {
		return nil
	}
	return r.project.Snapshot()
}

func (r *Runtime) append(m types.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

func (r *Runtime) notify(s State) {
	r.mu.Lock()
	obs := append([]Observer(nil), r.observers...)
	r.mu.Unlock()
	for _, fn := range obs {
		fn(s)
	}
}

func toolReply(res types.ToolResult) types.Message {
	content := res.Content
	if !res.Success && res.Error != "" {
		content = res.Error
	}
	m := types.NewMessage(types.RoleTool, content)
	m.ToolCallID = res.ToolCallID
	m.ToolName = res.ToolName
	return m
}
