// Package convo holds the conversation state for a chat session: the ordered
// turn history, the sanitized transcript kept for bug reports, and the
// context-profile manager whose files augment each request.
package convo

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ymhiroki/qchat/internal/log"
	"github.com/ymhiroki/qchat/internal/message"
)

// maxTranscriptEntries bounds the in-memory transcript used for issue reports.
const maxTranscriptEntries = 200

// ConversationState accumulates turns, tool results, and context, and
// produces sendable snapshots. It is touched from a single task only.
type ConversationState struct {
	conversationID string
	history        []message.Turn
	transcript     []string
	toolSpecs      []message.ToolSpec
	messageID      string

	// ContextManager resolves the active profile's context files. Nil when
	// context management is unavailable.
	ContextManager *ContextManager

	contextLength int
}

// New creates an empty conversation with a fresh immutable conversation id.
func New(toolSpecs []message.ToolSpec, cm *ContextManager) *ConversationState {
	return &ConversationState{
		conversationID: uuid.NewString(),
		toolSpecs:      toolSpecs,
		ContextManager: cm,
	}
}

// ConversationID returns the id generated at session start.
func (c *ConversationState) ConversationID() string {
	return c.conversationID
}

// MessageID returns the server-assigned id of the latest assistant turn, or
// "" if none has been recorded.
func (c *ConversationState) MessageID() string {
	return c.messageID
}

// History returns the current turns.
func (c *ConversationState) History() []message.Turn {
	return c.history
}

// AppendNewUserMessage pushes a plain-text user turn.
func (c *ConversationState) AppendNewUserMessage(text string) {
	c.history = append(c.history, message.UserTurn(text))
}

// AppendUserTranscript records the user's raw input in the transcript buffer.
func (c *ConversationState) AppendUserTranscript(text string) {
	c.AppendTranscript("> " + text)
}

// AppendTranscript records sanitized text in the transcript buffer.
func (c *ConversationState) AppendTranscript(text string) {
	c.transcript = append(c.transcript, text)
	if len(c.transcript) > maxTranscriptEntries {
		c.transcript = c.transcript[len(c.transcript)-maxTranscriptEntries:]
	}
}

// Transcript returns a copy of the transcript entries.
func (c *ConversationState) Transcript() []string {
	out := make([]string, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// PushAssistantMessage records an assistant turn and its server message id.
func (c *ConversationState) PushAssistantMessage(msg message.AssistantMessage) {
	if msg.MessageID != "" {
		c.messageID = msg.MessageID
	}
	if msg.Content != "" {
		c.AppendTranscript(msg.Content)
	}
	c.history = append(c.history, message.AssistantTurn(msg))
}

// AddToolResults pushes a user turn whose body is the tool-result blocks,
// keyed to the previous assistant turn's tool uses.
func (c *ConversationState) AddToolResults(results []message.ToolResult) {
	c.history = append(c.history, message.ToolResultTurn(results))
}

// AbandonToolUse converts pending tool uses to synthetic error tool-results
// with the given reason, preserving the paired invariant. The reason text
// doubles as the user's next message so the model sees why the tools were
// dropped.
func (c *ConversationState) AbandonToolUse(toolUseIDs []string, reason string) {
	results := make([]message.ToolResult, 0, len(toolUseIDs))
	for _, id := range toolUseIDs {
		results = append(results, message.ErrorResult(id, reason))
	}
	c.history = append(c.history, message.Turn{
		Role:        message.RoleUser,
		Content:     reason,
		ToolResults: results,
	})
}

// Clear drops all turns but keeps the conversation id and context profile.
func (c *ConversationState) Clear() {
	c.history = nil
	c.messageID = ""
}

// FixHistory repairs the tail when the last assistant turn has tool uses
// without matching results, or when the last user turn has tool results
// without a prior matching assistant turn. Trailing offending entries are
// dropped until the invariant holds. Idempotent.
func (c *ConversationState) FixHistory() {
	for len(c.history) > 0 {
		last := c.history[len(c.history)-1]

		if last.Role == message.RoleAssistant && len(last.ToolUses) > 0 {
			log.Logger().Debug("Dropping trailing assistant turn with unanswered tool uses",
				zap.Int("tool_uses", len(last.ToolUses)))
			c.history = c.history[:len(c.history)-1]
			continue
		}

		if last.Role == message.RoleUser && len(last.ToolResults) > 0 {
			if len(c.history) < 2 || !resultsAnswer(c.history[len(c.history)-2], last.ToolResults) {
				log.Logger().Debug("Dropping trailing orphan tool results",
					zap.Int("tool_results", len(last.ToolResults)))
				c.history = c.history[:len(c.history)-1]
				continue
			}
		}

		break
	}
}

// resultsAnswer reports whether prev is an assistant turn whose tool uses are
// each answered, in order, by the given results.
func resultsAnswer(prev message.Turn, results []message.ToolResult) bool {
	if prev.Role != message.RoleAssistant || len(prev.ToolUses) != len(results) {
		return false
	}
	for i, use := range prev.ToolUses {
		if results[i].ToolUseID != use.ID {
			return false
		}
	}
	return true
}

// ContextFile is one resolved context file included with a request.
type ContextFile struct {
	Path    string
	Content string
}

// Snapshot is a serializable view of the conversation ready to send.
type Snapshot struct {
	ConversationID string
	History        []message.Turn
	ContextFiles   []ContextFile
	ToolSpecs      []message.ToolSpec
}

// ContextText renders the context files as a single prelude block.
func (s Snapshot) ContextText() string {
	if len(s.ContextFiles) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Use the following files as context for the conversation:\n")
	for _, f := range s.ContextFiles {
		fmt.Fprintf(&sb, "\n--- %s ---\n%s\n", f.Path, f.Content)
	}
	return sb.String()
}

// AsSendableConversationState materializes context (reads files from the
// active profile), composes the tool-spec list, and produces a snapshot.
// Idempotent with respect to the in-memory conversation.
func (c *ConversationState) AsSendableConversationState(ctx context.Context) (Snapshot, error) {
	var files []ContextFile
	if c.ContextManager != nil {
		resolved, err := c.ContextManager.ContextFiles(ctx, false)
		if err != nil {
			return Snapshot{}, fmt.Errorf("resolving context files: %w", err)
		}
		files = resolved
	}

	total := 0
	for _, f := range files {
		total += len(f.Content)
	}
	c.contextLength = total

	history := make([]message.Turn, len(c.history))
	copy(history, c.history)

	return Snapshot{
		ConversationID: c.conversationID,
		History:        history,
		ContextFiles:   files,
		ToolSpecs:      c.toolSpecs,
	}, nil
}

// ContextMessageLength returns the total character count of the resolved
// context files from the most recent snapshot.
func (c *ConversationState) ContextMessageLength() int {
	return c.contextLength
}

// CurrentProfile returns the active context profile name, or "" when context
// management is unavailable.
func (c *ConversationState) CurrentProfile() string {
	if c.ContextManager == nil {
		return ""
	}
	return c.ContextManager.CurrentProfile
}
