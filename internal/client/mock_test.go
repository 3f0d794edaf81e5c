package client

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ymhiroki/qchat/internal/convo"
)

func drain(t *testing.T, out SendMessageOutput) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	for {
		ev, err := out.Recv(context.Background())
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if ev == nil {
			return events
		}
		events = append(events, *ev)
	}
}

func TestMockExpandsToolUseIntoFourFragments(t *testing.T) {
	mock, err := NewMock(json.RawMessage(`[
	  ["hello", {"tool_use_id": "1", "name": "fs_write", "args": {"command": "create", "path": "/x"}}]
	]`))
	if err != nil {
		t.Fatal(err)
	}

	out, err := mock.SendMessage(context.Background(), convo.Snapshot{})
	if err != nil {
		t.Fatal(err)
	}
	events := drain(t, out)

	// metadata + 1 text + 4 tool fragments
	if len(events) != 6 {
		t.Fatalf("event count = %d, want 6: %+v", len(events), events)
	}
	if events[0].Type != EventMetadata || events[0].MessageID != "mock-message-1" {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Type != EventAssistantResponse || events[1].Content != "hello" {
		t.Errorf("second event = %+v", events[1])
	}

	toolEvents := events[2:]
	if toolEvents[0].Input != nil || toolEvents[0].Stop {
		t.Errorf("start fragment = %+v", toolEvents[0])
	}
	if toolEvents[1].Input == nil || toolEvents[2].Input == nil {
		t.Fatalf("mid fragments must carry partial JSON: %+v", toolEvents)
	}
	if !toolEvents[3].Stop || toolEvents[3].Input != nil {
		t.Errorf("stop fragment = %+v", toolEvents[3])
	}

	// The two halves re-concatenate into the canonical args encoding.
	joined := *toolEvents[1].Input + *toolEvents[2].Input
	if joined != `{"command":"create","path":"/x"}` {
		t.Errorf("joined args = %s", joined)
	}
}

func TestMockStreamsAreConsumedInOrder(t *testing.T) {
	mock, err := NewMock(json.RawMessage(`[["first"], ["second"]]`))
	if err != nil {
		t.Fatal(err)
	}

	for i, want := range []string{"first", "second"} {
		out, err := mock.SendMessage(context.Background(), convo.Snapshot{})
		if err != nil {
			t.Fatal(err)
		}
		events := drain(t, out)
		if events[1].Content != want {
			t.Errorf("turn %d content = %q, want %q", i, events[1].Content, want)
		}
	}

	// An exhausted script yields empty streams rather than blocking.
	out, err := mock.SendMessage(context.Background(), convo.Snapshot{})
	if err != nil {
		t.Fatal(err)
	}
	if events := drain(t, out); len(events) != 0 {
		t.Errorf("exhausted script produced events: %+v", events)
	}
}

func TestNewMockFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.json")
	if err := os.WriteFile(path, []byte(`[["scripted"]]`), 0644); err != nil {
		t.Fatal(err)
	}

	mock, err := NewMockFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out, err := mock.SendMessage(context.Background(), convo.Snapshot{})
	if err != nil {
		t.Fatal(err)
	}
	if events := drain(t, out); events[1].Content != "scripted" {
		t.Errorf("events = %+v", events)
	}
}

func TestNewMockFromMissingFileFailsHard(t *testing.T) {
	if _, err := NewMockFromFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("missing script file must be a hard error")
	}
}

func TestNewMockRejectsMalformedScripts(t *testing.T) {
	scripts := []string{
		`{"not": "an array"}`,
		`["turn must be an array"]`,
		`[[42]]`,
		`[[{"name": "missing id"}]]`,
	}
	for _, script := range scripts {
		if _, err := NewMock(json.RawMessage(script)); err == nil {
			t.Errorf("NewMock(%s) succeeded, want error", script)
		}
	}
}
