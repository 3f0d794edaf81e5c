// Package parser demultiplexes a model response stream into assistant text,
// tool-use, and end-of-stream events, re-assembling tool arguments from
// partial JSON fragments.
package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ymhiroki/qchat/internal/client"
	"github.com/ymhiroki/qchat/internal/message"
)

// defaultRecvTimeout bounds the wait for a single stream event.
const defaultRecvTimeout = 120 * time.Second

// EventKind identifies a ResponseEvent variant.
type EventKind int

const (
	// KindAssistantText is a fragment of assistant prose to append and render.
	KindAssistantText EventKind = iota
	// KindToolUseStart announces that a new tool use is about to stream.
	KindToolUseStart
	// KindToolUse is a fully assembled tool use.
	KindToolUse
	// KindEndStream is the terminal event, carrying the assembled message.
	KindEndStream
)

// ResponseEvent is one high-level event demultiplexed from the stream.
type ResponseEvent struct {
	Kind EventKind

	// Text is the prose fragment, for KindAssistantText.
	Text string

	// ToolName is the announced tool, for KindToolUseStart.
	ToolName string

	// ToolUse is the assembled request, for KindToolUse.
	ToolUse message.ToolUse

	// Message is the assembled assistant message, for KindEndStream.
	Message message.AssistantMessage
}

// RecvErrorKind identifies the source of a RecvError.
type RecvErrorKind int

const (
	// KindOther is fatal to the current turn.
	KindOther RecvErrorKind = iota
	// KindStreamTimeout is recoverable: the driver asks the model to split
	// the work and retries.
	KindStreamTimeout
	// KindUnexpectedToolUseEos is recoverable: the stream ended before the
	// entire tool use was received.
	KindUnexpectedToolUseEos
)

// RecvError is a recv-time stream failure.
type RecvError struct {
	RequestID string
	Kind      RecvErrorKind

	// Duration of the wait, for KindStreamTimeout.
	Duration time.Duration

	// Identity of the truncated tool use and the assistant message assembled
	// so far, for KindUnexpectedToolUseEos.
	ToolUseID string
	ToolName  string
	Message   *message.AssistantMessage

	Err error
}

func (e *RecvError) Error() string {
	switch e.Kind {
	case KindStreamTimeout:
		return fmt.Sprintf("the response stream timed out after %s", e.Duration)
	case KindUnexpectedToolUseEos:
		return fmt.Sprintf("the stream ended before tool use %s (%s) was fully received", e.ToolUseID, e.ToolName)
	default:
		return fmt.Sprintf("receiving the next message: %v", e.Err)
	}
}

func (e *RecvError) Unwrap() error {
	return e.Err
}

// ResponseParser wraps the model's streamed event source and exposes Recv.
type ResponseParser struct {
	output client.SendMessageOutput

	// RecvTimeout bounds the wait for each underlying event.
	RecvTimeout time.Duration

	messageID string
	content   strings.Builder
	toolUses  []message.ToolUse

	// In-progress tool-use accumulation. Fragments are re-assembled in
	// arrival order.
	receivingTool bool
	toolUseID     string
	toolName      string
	fragments     []string
}

// New wraps a response stream.
func New(output client.SendMessageOutput) *ResponseParser {
	return &ResponseParser{output: output, RecvTimeout: defaultRecvTimeout}
}

// RequestID identifies the underlying request.
func (p *ResponseParser) RequestID() string {
	return p.output.RequestID()
}

// Recv returns the next high-level event. Wire events that do not map to a
// high-level event (metadata, mid-stream tool fragments) are consumed
// internally.
func (p *ResponseParser) Recv(ctx context.Context) (ResponseEvent, *RecvError) {
	for {
		ev, err := p.recvOne(ctx)
		if err != nil {
			return ResponseEvent{}, err
		}

		if ev == nil {
			return p.endStream()
		}

		switch ev.Type {
		case client.EventMetadata:
			p.messageID = ev.MessageID

		case client.EventAssistantResponse:
			p.content.WriteString(ev.Content)
			return ResponseEvent{Kind: KindAssistantText, Text: ev.Content}, nil

		case client.EventToolUse:
			if done, out := p.consumeToolFragment(ev); done {
				return out, nil
			}
		}
	}
}

// recvOne reads a single wire event under the recv timeout.
func (p *ResponseParser) recvOne(ctx context.Context) (*client.StreamEvent, *RecvError) {
	timeout := p.RecvTimeout
	if timeout <= 0 {
		timeout = defaultRecvTimeout
	}
	recvCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	ev, err := p.output.Recv(recvCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && recvCtx.Err() != nil && ctx.Err() == nil {
			return nil, &RecvError{
				RequestID: p.output.RequestID(),
				Kind:      KindStreamTimeout,
				Duration:  time.Since(start),
				Err:       err,
			}
		}
		return nil, &RecvError{RequestID: p.output.RequestID(), Kind: KindOther, Err: err}
	}
	return ev, nil
}

// consumeToolFragment folds one tool-use wire event into the accumulator.
// It reports whether a high-level event should be emitted.
func (p *ResponseParser) consumeToolFragment(ev *client.StreamEvent) (bool, ResponseEvent) {
	started := false
	if !p.receivingTool {
		p.receivingTool = true
		p.toolUseID = ev.ToolUseID
		p.toolName = ev.Name
		p.fragments = nil
		started = true
	}

	if ev.Input != nil {
		p.fragments = append(p.fragments, *ev.Input)
	}

	if ev.Stop {
		use := message.ToolUse{
			ID:   p.toolUseID,
			Name: p.toolName,
			Args: assembleArgs(p.fragments),
		}
		p.toolUses = append(p.toolUses, use)
		p.receivingTool = false
		p.fragments = nil
		return true, ResponseEvent{Kind: KindToolUse, ToolUse: use}
	}

	if started {
		return true, ResponseEvent{Kind: KindToolUseStart, ToolName: ev.Name}
	}
	return false, ResponseEvent{}
}

// endStream emits the terminal event, or UnexpectedToolUseEos when the
// stream ended mid-tool-use.
func (p *ResponseParser) endStream() (ResponseEvent, *RecvError) {
	assembled := message.AssistantMessage{
		MessageID: p.messageID,
		Content:   p.content.String(),
		ToolUses:  p.toolUses,
	}

	if p.receivingTool {
		return ResponseEvent{}, &RecvError{
			RequestID: p.output.RequestID(),
			Kind:      KindUnexpectedToolUseEos,
			ToolUseID: p.toolUseID,
			ToolName:  p.toolName,
			Message:   &assembled,
		}
	}

	return ResponseEvent{Kind: KindEndStream, Message: assembled}, nil
}

// assembleArgs concatenates partial JSON fragments in arrival order. A
// concatenation that is not valid JSON is passed through as-is; tool
// construction rejects it downstream with an error tool result.
func assembleArgs(fragments []string) json.RawMessage {
	joined := strings.Join(fragments, "")
	if joined == "" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(joined)
}
