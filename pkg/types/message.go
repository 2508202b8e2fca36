package types

import "time"

// Message is one entry in the conversation history.
//
// A message with Role "tool" must carry the ToolCallID of the assistant
// tool call it answers. An assistant message carrying ToolCalls must be
// followed, in any history submitted to a provider, by one tool message
// per call ID. history.Builder enforces this before transmission.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Assistant: Tool Calls
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Tool: Result
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"` // Required for Gemini

	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message with a fresh ID and timestamp.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        GenerateMessageID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// Clone creates a deep copy of the Message
func (m Message) Clone() Message {
	clone := m

	// Deep copy ToolCalls slice
	if m.ToolCalls != nil {
		clone.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		copy(clone.ToolCalls, m.ToolCalls)
	}

	return clone
}

// CloneMessages deep-copies a message slice.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
