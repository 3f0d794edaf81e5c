package chat

import (
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Command
	}{
		{"plain prompt", "hello there", Command{Kind: CommandAsk, Prompt: "hello there"}},
		{"whitespace trimmed", "  hi  ", Command{Kind: CommandAsk, Prompt: "hi"}},
		{"bare exit", "exit", Command{Kind: CommandQuit}},
		{"bare quit", "quit", Command{Kind: CommandQuit}},
		{"shell escape", "!ls -la", Command{Kind: CommandExecute, Command: "ls -la"}},
		{"clear", "/clear", Command{Kind: CommandClear}},
		{"help", "/help", Command{Kind: CommandHelp}},
		{"acceptall", "/acceptall", Command{Kind: CommandAcceptAll}},
		{"quit", "/quit", Command{Kind: CommandQuit}},
		{"issue bare", "/issue", Command{Kind: CommandIssue}},
		{"issue with text", "/issue the spinner is stuck", Command{Kind: CommandIssue, Prompt: "the spinner is stuck"}},
		{"profile list", "/profile list", Command{Kind: CommandProfile, Profile: ProfileCommand{Action: ProfileList}}},
		{"profile create", "/profile create dev", Command{Kind: CommandProfile, Profile: ProfileCommand{Action: ProfileCreate, Name: "dev"}}},
		{"profile delete", "/profile delete dev", Command{Kind: CommandProfile, Profile: ProfileCommand{Action: ProfileDelete, Name: "dev"}}},
		{"profile set", "/profile set dev", Command{Kind: CommandProfile, Profile: ProfileCommand{Action: ProfileSet, Name: "dev"}}},
		{"profile rename", "/profile rename a b", Command{Kind: CommandProfile, Profile: ProfileCommand{Action: ProfileRename, OldName: "a", NewName: "b"}}},
		{"profile help", "/profile help", Command{Kind: CommandProfile, Profile: ProfileCommand{Action: ProfileHelp}}},
		{"context show", "/context show", Command{Kind: CommandContext, Context: ContextCommand{Action: ContextShow}}},
		{"context show expand", "/context show --expand", Command{Kind: CommandContext, Context: ContextCommand{Action: ContextShow, Expand: true}}},
		{"context add", "/context add a.md b.md", Command{Kind: CommandContext, Context: ContextCommand{Action: ContextAdd, Paths: []string{"a.md", "b.md"}}}},
		{"context add global force", "/context add --global --force *.md", Command{Kind: CommandContext, Context: ContextCommand{Action: ContextAdd, Global: true, Force: true, Paths: []string{"*.md"}}}},
		{"context rm", "/context rm a.md", Command{Kind: CommandContext, Context: ContextCommand{Action: ContextRemove, Paths: []string{"a.md"}}}},
		{"context rm global", "/context rm --global a.md", Command{Kind: CommandContext, Context: ContextCommand{Action: ContextRemove, Global: true, Paths: []string{"a.md"}}}},
		{"context clear", "/context clear", Command{Kind: CommandContext, Context: ContextCommand{Action: ContextClear}}},
		{"context clear global", "/context clear --global", Command{Kind: CommandContext, Context: ContextCommand{Action: ContextClear, Global: true}}},
		{"context help", "/context help", Command{Kind: CommandContext, Context: ContextCommand{Action: ContextHelp}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.input)
			if err != nil {
				t.Fatalf("ParseCommand(%q) returned error: %v", tt.input, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	inputs := []string{
		"/",
		"/unknown",
		"/profile",
		"/profile create",
		"/profile rename onlyone",
		"/profile bogus",
		"/context",
		"/context add",
		"/context rm",
		"/context clear extra",
		"/context add --bogus a.md",
		"/context bogus",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			if _, err := ParseCommand(input); err == nil {
				t.Errorf("ParseCommand(%q) succeeded, want error", input)
			}
		})
	}
}

// Parsing a canonical form and re-serializing it reproduces the canonical
// form, for /profile and /context.
func TestCommandRoundTrip(t *testing.T) {
	canonical := []string{
		"/profile list",
		"/profile create dev",
		"/profile delete dev",
		"/profile set dev",
		"/profile rename old new",
		"/profile help",
		"/context show",
		"/context show --expand",
		"/context add a.md b.md",
		"/context add --global --force *.md",
		"/context rm a.md",
		"/context rm --global a.md",
		"/context clear",
		"/context clear --global",
		"/context help",
	}

	for _, input := range canonical {
		t.Run(input, func(t *testing.T) {
			cmd, err := ParseCommand(input)
			if err != nil {
				t.Fatalf("ParseCommand(%q) returned error: %v", input, err)
			}
			if got := cmd.String(); got != input {
				t.Errorf("round trip of %q produced %q", input, got)
			}
			again, err := ParseCommand(cmd.String())
			if err != nil {
				t.Fatalf("re-parsing %q returned error: %v", cmd.String(), err)
			}
			if !reflect.DeepEqual(cmd, again) {
				t.Errorf("re-parse of %q = %+v, want %+v", cmd.String(), again, cmd)
			}
		})
	}
}
