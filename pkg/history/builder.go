// Package history assembles the exact message sequence submitted to the
// model. Aggressive windowing and partial persistence can leave tool
// messages without their originating assistant tool calls, or assistant
// tool calls without replies; submitting either is a protocol violation
// on the chat-completion API, so the builder repairs the window before
// every request.
package history

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/atelier-agent-org/atelier-agent/pkg/types"
)

const (
	// DefaultWindowSize is the number of recent live messages submitted.
	DefaultWindowSize = 10

	// carryoverTail is how many trailing messages of a previous session
	// are condensed into the continuity note.
	carryoverTail = 5

	// shortHistoryLimit is the live-history length at or below which the
	// carryover note is still worth including.
	shortHistoryLimit = 4

	// summarySnippetLen bounds each condensed carryover line.
	summarySnippetLen = 120
)

// Builder produces model-ready message arrays honoring the tool-call
// pairing invariant.
type Builder struct {
	systemPrompt string
	windowSize   int
}

func NewBuilder(systemPrompt string, windowSize int) *Builder {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Builder{
		systemPrompt: systemPrompt,
		windowSize:   windowSize,
	}
}

// Build assembles: system prompt, optional carryover summary, the repaired
// recent window of live history, and the new user turn. userTurn may be
// empty when the caller only needs the repaired history (mid-loop model
// calls re-submit history without a fresh user message).
func (b *Builder) Build(live, carryover []types.Message, userTurn string) []types.Message {
	out := []types.Message{{
		ID:      types.GenerateMessageID(),
		Role:    types.RoleSystem,
		Content: b.systemPrompt,
	}}

	// Continuity note survives a reload: condensed tail of the previous
	// session, only while the live conversation is still short.
	if len(carryover) > 0 && len(live) <= shortHistoryLimit {
		out = append(out, types.Message{
			ID:      types.GenerateMessageID(),
			Role:    types.RoleAssistant,
			Content: condense(carryover),
		})
	}

	window := live
	if len(window) > b.windowSize {
		window = window[len(window)-b.windowSize:]
	}

	out = append(out, Repair(window)...)

	if userTurn != "" {
		out = append(out, types.NewMessage(types.RoleUser, userTurn))
	}

	return out
}

// Repair enforces the pairing invariant on a message window in two passes:
//
//  1. Walk forward carrying the set of tool-call IDs introduced by
//     assistant messages; a tool message survives only if it answers a
//     pending ID (which it then consumes). Orphaned tool replies are
//     dropped.
//  2. Any assistant message whose tool calls were not ALL answered by a
//     surviving tool message is demoted: its tool_calls are removed and
//     its content replaced with a generic note.
//
// The result never contains an unpaired tool call or tool reply.
func Repair(window []types.Message) []types.Message {
	kept := make([]types.Message, 0, len(window))
	pending := make(map[string]bool)
	answered := make(map[string]bool)

	for _, m := range window {
		switch m.Role {
		case types.RoleAssistant:
			for _, tc := range m.ToolCalls {
				pending[tc.ID] = true
			}
			kept = append(kept, m)
		case types.RoleTool:
			if m.ToolCallID != "" && pending[m.ToolCallID] {
				delete(pending, m.ToolCallID)
				answered[m.ToolCallID] = true
				kept = append(kept, m)
			}
			// Orphaned tool reply: dropped.
		default:
			kept = append(kept, m)
		}
	}

	// Identify assistants whose calls were only partially answered. Their
	// surviving replies must go too, or they would reference a call that
	// no longer exists in the transmitted history.
	demotedIDs := make(map[string]bool)
	for _, m := range kept {
		if m.Role != types.RoleAssistant || len(m.ToolCalls) == 0 {
			continue
		}
		for _, tc := range m.ToolCalls {
			if !answered[tc.ID] {
				for _, tc := range m.ToolCalls {
					demotedIDs[tc.ID] = true
				}
				break
			}
		}
	}

	out := make([]types.Message, 0, len(kept))
	for _, m := range kept {
		switch {
		case m.Role == types.RoleAssistant && len(m.ToolCalls) > 0 && demotedIDs[m.ToolCalls[0].ID]:
			demoted := m.Clone()
			demoted.ToolCalls = nil
			demoted.Content = demoteNote(m)
			out = append(out, demoted)
		case m.Role == types.RoleTool && demotedIDs[m.ToolCallID]:
			// Reply to a demoted assistant: dropped.
		default:
			out = append(out, m)
		}
	}

	return out
}

func demoteNote(m types.Message) string {
	names := make([]string, 0, len(m.ToolCalls))
	for _, tc := range m.ToolCalls {
		names = append(names, tc.Name)
	}
	note := fmt.Sprintf("[used tools: %s]", strings.Join(names, ", "))
	if m.Content != "" && m.Content != " " {
		return m.Content + "\n" + note
	}
	return note
}

// condense renders the trailing carryover messages as a short context note.
func condense(carryover []types.Message) string {
	tail := carryover
	if len(tail) > carryoverTail {
		tail = tail[len(tail)-carryoverTail:]
	}

	var sb strings.Builder
	sb.WriteString("Context from the previous session:\n")
	for _, m := range tail {
		if m.Role == types.RoleTool || m.Content == "" {
			continue
		}
		fmt.Fprintf(&sb, "- %s: %s\n", m.Role, snippet(m.Content))
	}
	return sb.String()
}

// snippet bounds a condensed line without splitting a rune.
func snippet(s string) string {
	if len(s) <= summarySnippetLen {
		return s
	}
	n := summarySnippetLen
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
