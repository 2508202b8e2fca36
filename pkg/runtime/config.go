package runtime

import "time"

// Config controls the orchestration loop for a single session.
type Config struct {
	// Model is the model identifier forwarded to the LLM gateway.
	Model string `yaml:"model"`
	// MaxToolCalls is the user-facing tool budget. The effective budget
	// is clamped to [1, 20]; see Budgets.
	MaxToolCalls int `yaml:"max_tool_calls"`
	// HistoryWindow is the number of recent messages kept when building
	// the conversation sent to the model.
	HistoryWindow int `yaml:"history_window"`
	// ModelTimeout bounds each individual model call.
	ModelTimeout time.Duration `yaml:"model_timeout"`
	// SystemPrompt overrides the built-in system prompt when non-empty.
	SystemPrompt string `yaml:"system_prompt"`
}

// DefaultConfig is the baseline runtime configuration.
var DefaultConfig = Config{
	MaxToolCalls:  10,
	HistoryWindow: 10,
	ModelTimeout:  60 * time.Second,
}

// Budgets holds the effective per-session limits derived from Config.
type Budgets struct {
	// MaxToolCalls is the total number of tool calls the session may
	// execute across all iterations.
	MaxToolCalls int
	// MaxConversationTurns is the number of model-call iterations the
	// loop may run before terminating.
	MaxConversationTurns int
}

// deriveBudgets clamps the user setting into the supported range and
// scales the turn limit with it. A larger tool budget allows more
// iterations, up to a hard ceiling.
func deriveBudgets(maxToolCalls int) Budgets {
	calls := maxToolCalls
	if calls < 1 {
		calls = 1
	}
	if calls > 20 {
		calls = 20
	}
	turns := (calls + 1) / 2
	if turns < 3 {
		turns = 3
	}
	if turns > 10 {
		turns = 10
	}
	return Budgets{MaxToolCalls: calls, MaxConversationTurns: turns}
}
