package types

import (
	"github.com/oklog/ulid/v2"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// JSONSchema represents a JSON Schema definition
type JSONSchema map[string]any

// Usage reports token consumption of one model call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ID Generation Helpers

func GenerateID(prefix string) string {
	return prefix + "_" + ulid.Make().String()
}

func GenerateMessageID() string    { return GenerateID("msg") }
func GenerateCheckpointID() string { return GenerateID("ckpt") }
func GenerateExecutionID() string  { return GenerateID("exe") }
func GenerateReflectionID() string { return GenerateID("rfl") }
func GenerateSessionID() string    { return GenerateID("ses") }
func GenerateFileID() string       { return GenerateID("fil") }
