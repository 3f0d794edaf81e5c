package render

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

// renderFragments drives the renderer the way the session driver does: an
// append-only buffer, a byte offset, and a sentinel newline at end of
// stream.
func renderFragments(t *testing.T, fragments []string, width int) (string, *ParseState) {
	t.Helper()
	var out bytes.Buffer
	state := NewParseState(width)
	buf := ""
	offset := 0

	feed := func() {
		for {
			consumed, err := InterpretMarkdown(buf[offset:], &out, state)
			if err != nil {
				break
			}
			offset += consumed
			state.Newline = state.SetNewline
			state.SetNewline = false
		}
	}

	for _, fragment := range fragments {
		buf += fragment
		feed()
	}
	buf += "\n"
	feed()

	if offset != len(buf) {
		t.Fatalf("renderer consumed %d of %d bytes", offset, len(buf))
	}
	return out.String(), state
}

func TestPlainTextPassesThrough(t *testing.T) {
	got, _ := renderFragments(t, []string{"Sure, I'll create", " a file for you"}, 200)
	if stripANSI(got) != "Sure, I'll create a file for you\n" {
		t.Errorf("rendered = %q", got)
	}
}

func TestInlineStyles(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bold", "some **bold** text", "some bold text\n"},
		{"italic", "some *italic* text", "some italic text\n"},
		{"code", "run `go vet` now", "run go vet now\n"},
		{"unclosed bold is literal", "a ** b", "a ** b\n"},
		{"unclosed code is literal", "a ` b", "a ` b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := renderFragments(t, []string{tt.input}, 200)
			if stripANSI(got) != tt.want {
				t.Errorf("rendered %q = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSpanSplitAcrossFragments(t *testing.T) {
	var out bytes.Buffer
	state := NewParseState(200)

	// The opener alone is ambiguous; nothing may render yet.
	if _, err := InterpretMarkdown("**bo", &out, state); err != ErrIncomplete {
		t.Fatalf("expected ErrIncomplete mid-span, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("rendered %q before the span closed", out.String())
	}

	got, _ := renderFragments(t, []string{"**bo", "ld** done"}, 200)
	if stripANSI(got) != "bold done\n" {
		t.Errorf("rendered = %q", got)
	}
}

func TestHeadingAndBullets(t *testing.T) {
	got, _ := renderFragments(t, []string{"# Title\n- first\n- second\n"}, 200)
	want := "Title\n• first\n• second\n\n"
	if stripANSI(got) != want {
		t.Errorf("rendered = %q, want %q", got, want)
	}
}

func TestHorizontalRule(t *testing.T) {
	got, _ := renderFragments(t, []string{"---\n"}, 12)
	if !strings.Contains(stripANSI(got), strings.Repeat("─", 12)) {
		t.Errorf("rendered = %q", got)
	}
}

func TestCitationsRecorded(t *testing.T) {
	got, state := renderFragments(t, []string{"See [^1](https://example.com/doc) and [^2] here"}, 200)

	if stripANSI(got) != "See [^1] and [^2] here\n" {
		t.Errorf("rendered = %q", got)
	}
	if len(state.Citations) != 2 {
		t.Fatalf("citations = %+v", state.Citations)
	}
	if state.Citations[0].Index != "1" || state.Citations[0].URL != "https://example.com/doc" {
		t.Errorf("citation 0 = %+v", state.Citations[0])
	}
	if state.Citations[1].Index != "2" || state.Citations[1].URL != "" {
		t.Errorf("citation 1 = %+v", state.Citations[1])
	}
}

func TestSoftWrapRespectsWidth(t *testing.T) {
	got, _ := renderFragments(t, []string{"aaaa bbbb cccc dddd eeee"}, 10)

	for _, line := range strings.Split(stripANSI(got), "\n") {
		if w := runewidth.StringWidth(line); w > 10 {
			t.Errorf("line %q is %d columns wide, want <= 10", line, w)
		}
	}
}

// Rendering is order-preserving: feeding the same text in different
// fragment splits produces identical output.
func TestFragmentationDoesNotChangeOutput(t *testing.T) {
	text := "A **bold** plan:\n- step `one`\n- step *two*\nSee [^1](https://example.com)"

	whole, _ := renderFragments(t, []string{text}, 200)

	var pieces []string
	for i := 0; i < len(text); i += 7 {
		end := i + 7
		if end > len(text) {
			end = len(text)
		}
		pieces = append(pieces, text[i:end])
	}
	split, _ := renderFragments(t, pieces, 200)

	if whole != split {
		t.Errorf("fragmented render differs:\nwhole: %q\nsplit: %q", whole, split)
	}
}

func TestEmptyInputIsIncomplete(t *testing.T) {
	var out bytes.Buffer
	if _, err := InterpretMarkdown("", &out, NewParseState(80)); err != ErrIncomplete {
		t.Errorf("empty input error = %v, want ErrIncomplete", err)
	}
}
