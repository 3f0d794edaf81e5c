// Package message defines the canonical conversation types used across the
// codebase. All packages import from here to avoid circular dependencies.
package message

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role represents the role of a conversation participant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolUse is a fully assembled tool-use request from the model.
// Args is re-assembled from any number of partial JSON fragments.
type ToolUse struct {
	ID   string          `json:"tool_use_id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// ToolResultStatus is the outcome of a tool execution.
type ToolResultStatus string

const (
	ToolResultSuccess ToolResultStatus = "success"
	ToolResultError   ToolResultStatus = "error"
)

// ToolResultContentBlock is one block of tool output, either text or JSON.
type ToolResultContentBlock struct {
	Text string          `json:"text,omitempty"`
	JSON json.RawMessage `json:"json,omitempty"`
}

// TextBlock wraps text in a content block.
func TextBlock(text string) ToolResultContentBlock {
	return ToolResultContentBlock{Text: text}
}

// JSONBlock wraps raw JSON in a content block.
func JSONBlock(raw json.RawMessage) ToolResultContentBlock {
	return ToolResultContentBlock{JSON: raw}
}

// String returns the printable form of the block.
func (b ToolResultContentBlock) String() string {
	if b.Text != "" {
		return b.Text
	}
	return string(b.JSON)
}

// ToolResult is the outcome of one tool use, keyed to its request.
type ToolResult struct {
	ToolUseID string                   `json:"tool_use_id"`
	Content   []ToolResultContentBlock `json:"content"`
	Status    ToolResultStatus         `json:"status"`
}

// ErrorResult creates an error ToolResult with a single text block.
func ErrorResult(toolUseID, text string) ToolResult {
	return ToolResult{
		ToolUseID: toolUseID,
		Content:   []ToolResultContentBlock{TextBlock(text)},
		Status:    ToolResultError,
	}
}

// AssistantMessage is one assistant turn: prose plus zero or more tool uses.
// MessageID is assigned by the server and recorded when the stream ends.
type AssistantMessage struct {
	MessageID string    `json:"message_id,omitempty"`
	Content   string    `json:"content"`
	ToolUses  []ToolUse `json:"tool_uses,omitempty"`
}

// Turn is one message in the conversation. A user turn carries either plain
// text or the tool-result blocks answering the previous assistant turn; an
// assistant turn carries text plus zero or more tool uses.
type Turn struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content,omitempty"`
	ToolUses    []ToolUse    `json:"tool_uses,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// UserTurn creates a plain-text user turn.
func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Content: text}
}

// ToolResultTurn creates a user turn whose body is tool-result blocks.
func ToolResultTurn(results []ToolResult) Turn {
	return Turn{Role: RoleUser, ToolResults: results}
}

// AssistantTurn creates an assistant turn from an assembled message.
func AssistantTurn(msg AssistantMessage) Turn {
	return Turn{Role: RoleAssistant, Content: msg.Content, ToolUses: msg.ToolUses}
}

// ToolSpec describes one tool to the model: name, description, and the
// JSON Schema of its arguments.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// CanonicalJSON re-marshals raw JSON with sorted object keys so two
// encodings of the same value compare byte-for-byte.
func CanonicalJSON(raw json.RawMessage) (json.RawMessage, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return out, nil
}

// BuildTranscriptText flattens transcript entries into a single report body.
// Long entries are truncated so issue URLs stay within browser limits.
func BuildTranscriptText(entries []string, maxLen int) string {
	var sb strings.Builder
	for _, e := range entries {
		if maxLen > 0 && sb.Len()+len(e) > maxLen {
			remaining := maxLen - sb.Len()
			if remaining > 0 {
				sb.WriteString(e[:remaining])
			}
			sb.WriteString("...[truncated]")
			break
		}
		sb.WriteString(e)
		sb.WriteString("\n")
	}
	return sb.String()
}
