package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/atelier-agent-org/atelier-agent/pkg/types"
)

// MaxRetries is the number of additional attempts after the first one.
const MaxRetries = 2

// Error codes that classify a failure as unretryable. Malformed arguments
// cannot self-correct and a missing capability cannot appear on retry;
// everything else gets the full attempt budget.
const (
	CodeToolNotFound = "TOOL_NOT_FOUND"
	CodeInvalidArgs  = "INVALID_ARGUMENTS"
)

// Dispatcher invokes the tool calls of one model turn against the
// registry, applying a bounded-retry policy per call. Calls are processed
// sequentially because later calls in a batch may depend on file edits
// made by earlier ones.
type Dispatcher struct {
	registry   *Registry
	log        *slog.Logger
	retryDelay time.Duration

	// onUpdate, when set, observes every ToolExecution state change.
	onUpdate func(*types.ToolExecution)
}

func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:   registry,
		log:        logger,
		retryDelay: 500 * time.Millisecond,
	}
}

// SetRetryDelay overrides the base backoff delay.
func (d *Dispatcher) SetRetryDelay(delay time.Duration) {
	d.retryDelay = delay
}

// OnUpdate registers an observer for execution state changes.
func (d *Dispatcher) OnUpdate(fn func(*types.ToolExecution)) {
	d.onUpdate = fn
}

// Dispatch executes each call in order and returns one result per call,
// in the same order. The returned executions expose attempt counts and
// timings for the same calls.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []types.ToolCall) ([]types.ToolResult, []*types.ToolExecution) {
	results := make([]types.ToolResult, 0, len(calls))
	executions := make([]*types.ToolExecution, 0, len(calls))

	for _, call := range calls {
		exec := &types.ToolExecution{
			ID:         types.GenerateExecutionID(),
			Name:       call.Name,
			Parameters: call.Arguments,
			Status:     types.ExecutionPending,
			StartTime:  time.Now(),
		}
		executions = append(executions, exec)
		d.notify(exec)

		result := d.dispatchOne(ctx, call, exec)
		results = append(results, result)
	}

	return results, executions
}

func (d *Dispatcher) dispatchOne(ctx context.Context, call types.ToolCall, exec *types.ToolExecution) types.ToolResult {
	// 1. Arguments must be a JSON object. Terminal on failure.
	args := call.Arguments
	if args == "" {
		args = "{}"
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		msg := fmt.Sprintf("%s: %v", CodeInvalidArgs, err)
		d.fail(exec, msg, 1)
		return types.ToolResult{ToolCallID: call.ID, ToolName: call.Name, Content: msg, Error: msg}
	}

	// 2. Unknown tool. Terminal.
	handler, ok := d.registry.Get(call.Name)
	if !ok {
		msg := fmt.Sprintf("%s: no tool named %q", CodeToolNotFound, call.Name)
		d.fail(exec, msg, 1)
		return types.ToolResult{ToolCallID: call.ID, ToolName: call.Name, Content: msg, Error: msg}
	}

	// 3. Execute with retries.
	exec.Status = types.ExecutionExecuting
	d.notify(exec)

	var last Result
	for attempt := 1; attempt <= MaxRetries+1; attempt++ {
		exec.Attempts = attempt
		last = handler(ctx, args)

		if last.Success {
			content := last.Message
			if attempt > 1 {
				content = fmt.Sprintf("%s (succeeded on attempt %d)", content, attempt)
			}
			d.complete(exec, content)
			return types.ToolResult{ToolCallID: call.ID, ToolName: call.Name, Content: content, Success: true}
		}

		d.log.Warn("tool attempt failed",
			"tool", call.Name,
			"attempt", attempt,
			"error", last.Error)

		if attempt <= MaxRetries {
			// Increasing delay between attempts paces retries; bail out
			// if the session is cancelled while waiting.
			select {
			case <-time.After(time.Duration(attempt) * d.retryDelay):
			case <-ctx.Done():
				msg := fmt.Sprintf("cancelled: %v", ctx.Err())
				d.fail(exec, msg, attempt)
				return types.ToolResult{ToolCallID: call.ID, ToolName: call.Name, Content: msg, Error: msg}
			}
		}
	}

	msg := fmt.Sprintf("%s (after %d attempts)", last.Error, exec.Attempts)
	d.fail(exec, msg, exec.Attempts)
	return types.ToolResult{ToolCallID: call.ID, ToolName: call.Name, Content: msg, Error: msg}
}

func (d *Dispatcher) complete(exec *types.ToolExecution, result string) {
	now := time.Now()
	exec.Status = types.ExecutionCompleted
	exec.Result = result
	exec.EndTime = &now
	d.notify(exec)
}

func (d *Dispatcher) fail(exec *types.ToolExecution, errMsg string, attempts int) {
	now := time.Now()
	exec.Status = types.ExecutionFailed
	exec.Error = errMsg
	exec.Attempts = attempts
	exec.EndTime = &now
	d.notify(exec)
}

func (d *Dispatcher) notify(exec *types.ToolExecution) {
	if d.onUpdate != nil {
		d.onUpdate(exec)
	}
}
