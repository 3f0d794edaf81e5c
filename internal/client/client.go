// Package client defines the streaming-client contract the chat session
// drives, plus the two implementations: a live Anthropic-backed client and a
// scripted mock used for tests (selected via Q_MOCK_CHAT_RESPONSE).
package client

import (
	"context"

	"github.com/ymhiroki/qchat/internal/convo"
)

// EventType identifies a low-level wire event in a response stream.
type EventType string

const (
	// EventAssistantResponse carries a fragment of assistant prose.
	EventAssistantResponse EventType = "assistant_response"
	// EventToolUse carries one fragment of a streamed tool use.
	EventToolUse EventType = "tool_use"
	// EventMetadata carries server-assigned identifiers for the turn.
	EventMetadata EventType = "metadata"
)

// StreamEvent is one wire event received from the model stream.
type StreamEvent struct {
	Type EventType

	// Assistant text fragment, for EventAssistantResponse.
	Content string

	// Tool-use fragment fields, for EventToolUse. Input carries a partial
	// JSON string when non-nil; Stop marks the final fragment of a tool use.
	ToolUseID string
	Name      string
	Input     *string
	Stop      bool

	// Server-assigned id of the assistant turn, for EventMetadata.
	MessageID string
}

// SendMessageOutput is one in-flight response stream.
type SendMessageOutput interface {
	// RequestID identifies the request for error reports and telemetry.
	RequestID() string

	// Recv returns the next wire event, or (nil, nil) at end of stream.
	Recv(ctx context.Context) (*StreamEvent, error)
}

// StreamingClient sends a conversation snapshot to the model and returns the
// response stream. Authentication, regions, and the concrete wire protocol
// live behind this interface.
type StreamingClient interface {
	SendMessage(ctx context.Context, state convo.Snapshot) (SendMessageOutput, error)
}
