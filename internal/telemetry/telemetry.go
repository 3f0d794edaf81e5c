// Package telemetry records tool-use outcomes and chat activity. Events are
// buffered by the session driver and dispatched in batches at turn
// boundaries.
package telemetry

import (
	"context"

	"go.uber.org/zap"

	"github.com/ymhiroki/qchat/internal/log"
)

// ToolUseEvent describes the outcome of one suggested tool use.
type ToolUseEvent struct {
	ConversationID string
	UtteranceID    string
	UserInputID    string
	ToolUseID      string
	ToolName       string
	IsAccepted     bool
	IsValid        *bool
	IsSuccess      *bool
}

// NewToolUseEvent starts an event for a suggested tool use.
func NewToolUseEvent(conversationID, toolUseID, toolName, utteranceID string) *ToolUseEvent {
	return &ToolUseEvent{
		ConversationID: conversationID,
		ToolUseID:      toolUseID,
		ToolName:       toolName,
		UtteranceID:    utteranceID,
	}
}

// Bool is a convenience for the optional outcome fields.
func Bool(v bool) *bool {
	return &v
}

// Dispatcher delivers telemetry. Implementations must tolerate being called
// with an already-cancelled context; delivery is best-effort.
type Dispatcher interface {
	DispatchToolUse(ctx context.Context, event ToolUseEvent)
	DispatchChatAddedMessage(ctx context.Context, conversationID, messageID string, contextLength int)
}

// LogDispatcher writes telemetry to the debug log.
type LogDispatcher struct{}

func (LogDispatcher) DispatchToolUse(_ context.Context, event ToolUseEvent) {
	log.Logger().Info("telemetry: tool use",
		zap.String("conversation_id", event.ConversationID),
		zap.String("tool_use_id", event.ToolUseID),
		zap.String("tool_name", event.ToolName),
		zap.String("utterance_id", event.UtteranceID),
		zap.String("user_input_id", event.UserInputID),
		zap.Bool("is_accepted", event.IsAccepted),
		zap.Boolp("is_valid", event.IsValid),
		zap.Boolp("is_success", event.IsSuccess),
	)
}

func (LogDispatcher) DispatchChatAddedMessage(_ context.Context, conversationID, messageID string, contextLength int) {
	log.Logger().Info("telemetry: chat added message",
		zap.String("conversation_id", conversationID),
		zap.String("message_id", messageID),
		zap.Int("context_length", contextLength),
	)
}

// Recorder captures dispatched events for tests.
type Recorder struct {
	ToolUses      []ToolUseEvent
	AddedMessages []string
}

func (r *Recorder) DispatchToolUse(_ context.Context, event ToolUseEvent) {
	r.ToolUses = append(r.ToolUses, event)
}

func (r *Recorder) DispatchChatAddedMessage(_ context.Context, _, messageID string, _ int) {
	r.AddedMessages = append(r.AddedMessages, messageID)
}
