package types

import "time"

// Tool definition as advertised to the model
type Tool struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Parameters  JSONSchema        `json:"parameters"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ToolCall represents an invocation request from LLM.
// Produced by the model only; consumed exactly once by the dispatcher.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string
}

// ToolResult represents the output of a tool execution, in the order the
// model requested the calls. It is exactly what the orchestrator folds
// back into the conversation.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Content    string `json:"content"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// ExecutionStatus tracks the lifecycle of one attempt-series of a tool call.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionExecuting ExecutionStatus = "executing"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// ToolExecution records the attempt-series of a single ToolCall. It is
// mutated in place as retries proceed; terminal state is completed or failed.
type ToolExecution struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Parameters string          `json:"parameters"` // raw JSON arguments
	Status     ExecutionStatus `json:"status"`
	Result     string          `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	Attempts   int             `json:"attempts"`
	StartTime  time.Time       `json:"start_time"`
	EndTime    *time.Time      `json:"end_time,omitempty"`
}

// Clone creates a deep copy of the ToolExecution
func (e *ToolExecution) Clone() *ToolExecution {
	if e == nil {
		return nil
	}
	clone := *e
	if e.EndTime != nil {
		t := *e.EndTime
		clone.EndTime = &t
	}
	return &clone
}
