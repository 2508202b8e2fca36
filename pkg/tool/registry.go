package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/atelier-agent-org/atelier-agent/pkg/types"
)

// Result is the uniform contract every tool returns. The orchestration
// core never inspects tool internals beyond these fields.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handler is the capability interface implemented by every tool.
type Handler func(ctx context.Context, args string) Result

// Registry maps tool names to their definitions and handlers.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]types.Tool
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]types.Tool),
		handlers: make(map[string]Handler),
	}
}

// Register adds a tool definition together with its handler.
func (r *Registry) Register(tool types.Tool, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %s already registered", tool.Name)
	}
	r.tools[tool.Name] = tool
	r.handlers[tool.Name] = handler
	return nil
}

// Get returns the handler for a tool name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// List returns all tool definitions sorted by name, for advertising to
// the model.
func (r *Registry) List() []types.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]types.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}
