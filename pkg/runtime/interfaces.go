package runtime

import (
	"context"

	"github.com/atelier-agent-org/atelier-agent/pkg/llm"
	"github.com/atelier-agent-org/atelier-agent/pkg/types"
)

// LLMGateway is the model-call surface the runtime depends on.
// *llm.Gateway satisfies it.
type LLMGateway interface {
	Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)
}

// ToolRunner executes a batch of tool calls and reports per-call results
// in request order. *tool.Dispatcher satisfies it.
type ToolRunner interface {
	Dispatch(ctx context.Context, calls []types.ToolCall) ([]types.ToolResult, []*types.ToolExecution)
}

// Catalog lists the tools advertised to the model. *tool.Registry
// satisfies it.
type Catalog interface {
	List() []types.Tool
}
