package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ymhiroki/qchat/internal/convo"
	"github.com/ymhiroki/qchat/internal/message"
)

// MockEnvVar names the environment variable that, when set, points at a JSON
// script file replayed instead of contacting the live service.
const MockEnvVar = "Q_MOCK_CHAT_RESPONSE"

// Mock replays a scripted sequence of response streams. Each SendMessage
// pops the next stream; an exhausted script yields empty streams.
//
// The script is a JSON array of turns. Within a turn, a string is an
// assistant-text fragment; an object {tool_use_id, name, args} is expanded
// into four tool-use fragments (start, first half of the args JSON, second
// half, stop) to exercise the fragment reassembler.
type Mock struct {
	streams [][]StreamEvent
	sent    int

	// Requests records every snapshot received, in order, for tests.
	Requests []convo.Snapshot

	// ErrorAt injects ErrorValue on the Nth SendMessage (1-based). Zero
	// disables injection.
	ErrorAt    int
	ErrorValue error
}

// NewMockFromFile loads a script file. A missing or malformed file is a hard
// error; there is no fallback to the live client.
func NewMockFromFile(path string) (*Mock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mock script: %w", err)
	}
	var script json.RawMessage
	if err := json.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parsing mock script: %w", err)
	}
	return NewMock(script)
}

// NewMock builds a mock client from a raw JSON script.
func NewMock(script json.RawMessage) (*Mock, error) {
	var turns []json.RawMessage
	if err := json.Unmarshal(script, &turns); err != nil {
		return nil, fmt.Errorf("mock script must be a JSON array of turns: %w", err)
	}

	m := &Mock{}
	for i, turn := range turns {
		var fragments []json.RawMessage
		if err := json.Unmarshal(turn, &fragments); err != nil {
			return nil, fmt.Errorf("mock script turn %d must be a JSON array: %w", i, err)
		}

		events := []StreamEvent{{
			Type:      EventMetadata,
			MessageID: fmt.Sprintf("mock-message-%d", i+1),
		}}
		for _, frag := range fragments {
			var text string
			if err := json.Unmarshal(frag, &text); err == nil {
				events = append(events, StreamEvent{Type: EventAssistantResponse, Content: text})
				continue
			}

			var use scriptedToolUse
			if err := json.Unmarshal(frag, &use); err != nil || use.ToolUseID == "" || use.Name == "" {
				return nil, fmt.Errorf("mock script turn %d: fragment must be a string or a {tool_use_id, name, args} object", i)
			}
			expanded, err := splitToolUseEvent(use)
			if err != nil {
				return nil, fmt.Errorf("mock script turn %d: %w", i, err)
			}
			events = append(events, expanded...)
		}
		m.streams = append(m.streams, events)
	}
	return m, nil
}

type scriptedToolUse struct {
	ToolUseID string          `json:"tool_use_id"`
	Name      string          `json:"name"`
	Args      json.RawMessage `json:"args"`
}

// splitToolUseEvent expands one scripted tool use into four fragments so the
// parser's partial-JSON reassembly is always exercised.
func splitToolUseEvent(use scriptedToolUse) ([]StreamEvent, error) {
	if len(use.Args) == 0 {
		use.Args = json.RawMessage(`{}`)
	}
	args, err := message.CanonicalJSON(use.Args)
	if err != nil {
		return nil, fmt.Errorf("tool use %s: %w", use.ToolUseID, err)
	}
	argsStr := string(args)
	split := len(argsStr) / 2
	first, second := argsStr[:split], argsStr[split:]

	return []StreamEvent{
		{Type: EventToolUse, ToolUseID: use.ToolUseID, Name: use.Name},
		{Type: EventToolUse, ToolUseID: use.ToolUseID, Name: use.Name, Input: &first},
		{Type: EventToolUse, ToolUseID: use.ToolUseID, Name: use.Name, Input: &second},
		{Type: EventToolUse, ToolUseID: use.ToolUseID, Name: use.Name, Stop: true},
	}, nil
}

// SendMessage pops the next scripted stream.
func (m *Mock) SendMessage(_ context.Context, state convo.Snapshot) (SendMessageOutput, error) {
	m.Requests = append(m.Requests, state)
	m.sent++
	if m.ErrorAt > 0 && m.sent == m.ErrorAt {
		return nil, m.ErrorValue
	}
	requestID := fmt.Sprintf("mock-request-%d", m.sent)
	if len(m.streams) == 0 {
		return &mockOutput{requestID: requestID}, nil
	}
	events := m.streams[0]
	m.streams = m.streams[1:]
	return &mockOutput{events: events, requestID: requestID}, nil
}

type mockOutput struct {
	events    []StreamEvent
	pos       int
	requestID string
}

func (o *mockOutput) RequestID() string {
	return o.requestID
}

func (o *mockOutput) Recv(ctx context.Context) (*StreamEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if o.pos >= len(o.events) {
		return nil, nil
	}
	ev := o.events[o.pos]
	o.pos++
	return &ev, nil
}
