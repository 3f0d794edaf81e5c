package message

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCanonicalJSONSortsKeys(t *testing.T) {
	canonical, err := CanonicalJSON(json.RawMessage(`{"z": 1, "a": {"y": 2, "b": 3}}`))
	if err != nil {
		t.Fatal(err)
	}
	if string(canonical) != `{"a":{"b":3,"y":2},"z":1}` {
		t.Errorf("canonical = %s", canonical)
	}

	// Canonicalization is a fixed point.
	again, err := CanonicalJSON(canonical)
	if err != nil {
		t.Fatal(err)
	}
	if string(again) != string(canonical) {
		t.Errorf("canonicalizing twice changed the encoding: %s vs %s", again, canonical)
	}
}

func TestCanonicalJSONRejectsInvalidInput(t *testing.T) {
	if _, err := CanonicalJSON(json.RawMessage(`{"a":`)); err == nil {
		t.Error("invalid JSON must fail")
	}
}

func TestErrorResult(t *testing.T) {
	result := ErrorResult("42", "it broke")
	if result.ToolUseID != "42" || result.Status != ToolResultError {
		t.Errorf("result = %+v", result)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "it broke" {
		t.Errorf("content = %+v", result.Content)
	}
}

func TestTurnConstructors(t *testing.T) {
	user := UserTurn("hi")
	if user.Role != RoleUser || user.Content != "hi" {
		t.Errorf("user turn = %+v", user)
	}

	assistant := AssistantTurn(AssistantMessage{Content: "hello", ToolUses: []ToolUse{{ID: "1"}}})
	if assistant.Role != RoleAssistant || len(assistant.ToolUses) != 1 {
		t.Errorf("assistant turn = %+v", assistant)
	}

	results := ToolResultTurn([]ToolResult{ErrorResult("1", "x")})
	if results.Role != RoleUser || len(results.ToolResults) != 1 {
		t.Errorf("result turn = %+v", results)
	}
}

func TestBuildTranscriptText(t *testing.T) {
	entries := []string{"> hello", "hi there", strings.Repeat("x", 100)}

	full := BuildTranscriptText(entries, 0)
	if !strings.Contains(full, "> hello") || !strings.Contains(full, "hi there") {
		t.Errorf("transcript = %q", full)
	}

	capped := BuildTranscriptText(entries, 20)
	if len(capped) > 20+len("...[truncated]")+1 {
		t.Errorf("capped transcript too long: %d bytes", len(capped))
	}
	if !strings.Contains(capped, "...[truncated]") {
		t.Errorf("capped transcript missing truncation marker: %q", capped)
	}
}
