package tool

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
)

// FsWrite creates or modifies a file on behalf of the model.
type FsWrite struct {
	Command    string `json:"command"`
	Path       string `json:"path"`
	FileText   string `json:"file_text,omitempty"`
	OldStr     string `json:"old_str,omitempty"`
	NewStr     string `json:"new_str,omitempty"`
	InsertLine int    `json:"insert_line,omitempty"`
}

func (t *FsWrite) DisplayName() string {
	switch t.Command {
	case "create":
		return "Create file"
	default:
		return "Modify file"
	}
}

func (t *FsWrite) DisplayNameAction() string {
	switch t.Command {
	case "create":
		return "Creating file"
	default:
		return "Modifying file"
	}
}

func (t *FsWrite) Validate(_ context.Context, env *Env) error {
	if t.Path == "" {
		return fmt.Errorf("path must not be empty")
	}

	switch t.Command {
	case "create":
		if t.FileText == "" {
			return fmt.Errorf("file_text is required for the create command")
		}
	case "str_replace":
		if t.OldStr == "" {
			return fmt.Errorf("old_str is required for the str_replace command")
		}
		if _, err := os.Stat(env.Resolve(t.Path)); err != nil {
			return fmt.Errorf("the file %s does not exist", t.Path)
		}
	case "insert":
		if t.NewStr == "" {
			return fmt.Errorf("new_str is required for the insert command")
		}
		if t.InsertLine < 0 {
			return fmt.Errorf("insert_line must not be negative")
		}
		if _, err := os.Stat(env.Resolve(t.Path)); err != nil {
			return fmt.Errorf("the file %s does not exist", t.Path)
		}
	case "append":
		if t.NewStr == "" {
			return fmt.Errorf("new_str is required for the append command")
		}
	default:
		return fmt.Errorf("unknown command \"%s\"", t.Command)
	}
	return nil
}

func (t *FsWrite) RequiresAcceptance(_ *Env) bool {
	return true
}

func (t *FsWrite) QueueDescription(env *Env, w io.Writer) error {
	switch t.Command {
	case "create":
		fmt.Fprintf(w, "Path: %s\n\n%s\n", t.Path, ensureTrailingNewline(t.FileText))
	case "str_replace":
		old, err := os.ReadFile(env.Resolve(t.Path))
		if err != nil {
			return err
		}
		updated, err := replaceOnce(string(old), t.OldStr, t.NewStr)
		if err != nil {
			// Validation already passed; show the intent even if the file
			// changed underneath us.
			fmt.Fprintf(w, "Path: %s\nReplacing:\n%s\nWith:\n%s\n", t.Path, t.OldStr, t.NewStr)
			return nil
		}
		edits := myers.ComputeEdits(span.URIFromPath(t.Path), string(old), updated)
		fmt.Fprint(w, gotextdiff.ToUnified(t.Path, t.Path, string(old), edits))
	case "insert":
		fmt.Fprintf(w, "Path: %s\nInserting after line %d:\n%s\n", t.Path, t.InsertLine, t.NewStr)
	case "append":
		fmt.Fprintf(w, "Path: %s\nAppending:\n%s\n", t.Path, t.NewStr)
	}
	return nil
}

func (t *FsWrite) Invoke(_ context.Context, env *Env, _ io.Writer) (InvokeOutput, error) {
	path := env.Resolve(t.Path)

	switch t.Command {
	case "create":
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return InvokeOutput{}, fmt.Errorf("creating parent directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(ensureTrailingNewline(t.FileText)), 0644); err != nil {
			return InvokeOutput{}, fmt.Errorf("writing %s: %w", t.Path, err)
		}
		return InvokeOutput{Text: fmt.Sprintf("Created %s", t.Path)}, nil

	case "str_replace":
		old, err := os.ReadFile(path)
		if err != nil {
			return InvokeOutput{}, fmt.Errorf("reading %s: %w", t.Path, err)
		}
		updated, err := replaceOnce(string(old), t.OldStr, t.NewStr)
		if err != nil {
			return InvokeOutput{}, err
		}
		if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
			return InvokeOutput{}, fmt.Errorf("writing %s: %w", t.Path, err)
		}
		return InvokeOutput{Text: fmt.Sprintf("Updated %s", t.Path)}, nil

	case "insert":
		old, err := os.ReadFile(path)
		if err != nil {
			return InvokeOutput{}, fmt.Errorf("reading %s: %w", t.Path, err)
		}
		lines := strings.SplitAfter(string(old), "\n")
		if t.InsertLine > len(lines) {
			return InvokeOutput{}, fmt.Errorf("insert_line %d is beyond the end of the file", t.InsertLine)
		}
		insert := ensureTrailingNewline(t.NewStr)
		var sb strings.Builder
		for i, line := range lines {
			sb.WriteString(line)
			if i+1 == t.InsertLine {
				sb.WriteString(insert)
			}
		}
		if t.InsertLine == 0 {
			sb.Reset()
			sb.WriteString(insert)
			sb.WriteString(string(old))
		}
		if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
			return InvokeOutput{}, fmt.Errorf("writing %s: %w", t.Path, err)
		}
		return InvokeOutput{Text: fmt.Sprintf("Updated %s", t.Path)}, nil

	case "append":
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return InvokeOutput{}, fmt.Errorf("opening %s: %w", t.Path, err)
		}
		defer f.Close()
		if _, err := f.WriteString(ensureTrailingNewline(t.NewStr)); err != nil {
			return InvokeOutput{}, fmt.Errorf("appending to %s: %w", t.Path, err)
		}
		return InvokeOutput{Text: fmt.Sprintf("Updated %s", t.Path)}, nil
	}

	return InvokeOutput{}, fmt.Errorf("unknown command \"%s\"", t.Command)
}

// replaceOnce replaces old with new, requiring exactly one occurrence.
func replaceOnce(content, oldStr, newStr string) (string, error) {
	switch strings.Count(content, oldStr) {
	case 0:
		return "", fmt.Errorf("old_str was not found in the file")
	case 1:
		return strings.Replace(content, oldStr, newStr, 1), nil
	default:
		return "", fmt.Errorf("old_str matches multiple locations; provide more surrounding context")
	}
}

func ensureTrailingNewline(s string) string {
	if !strings.HasSuffix(s, "\n") {
		return s + "\n"
	}
	return s
}
