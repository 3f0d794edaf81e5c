package tool

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxReadBytes caps how much file content is returned to the model.
const maxReadBytes = 256 * 1024

// FsRead reads a file, optionally restricted to a line range.
type FsRead struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
}

func (t *FsRead) DisplayName() string {
	return "Read file"
}

func (t *FsRead) DisplayNameAction() string {
	return "Reading file"
}

func (t *FsRead) Validate(_ context.Context, env *Env) error {
	if t.Path == "" {
		return fmt.Errorf("path must not be empty")
	}
	info, err := os.Stat(env.Resolve(t.Path))
	if err != nil {
		return fmt.Errorf("the file %s does not exist", t.Path)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", t.Path)
	}
	if t.StartLine < 0 || t.EndLine < 0 {
		return fmt.Errorf("line numbers must not be negative")
	}
	if t.StartLine > 0 && t.EndLine > 0 && t.EndLine < t.StartLine {
		return fmt.Errorf("end_line must not be before start_line")
	}
	return nil
}

func (t *FsRead) RequiresAcceptance(_ *Env) bool {
	return false
}

func (t *FsRead) QueueDescription(_ *Env, w io.Writer) error {
	if t.StartLine > 0 || t.EndLine > 0 {
		fmt.Fprintf(w, "Reading %s (lines %d-%d)\n", t.Path, t.StartLine, t.EndLine)
		return nil
	}
	fmt.Fprintf(w, "Reading %s\n", t.Path)
	return nil
}

func (t *FsRead) Invoke(_ context.Context, env *Env, _ io.Writer) (InvokeOutput, error) {
	data, err := os.ReadFile(env.Resolve(t.Path))
	if err != nil {
		return InvokeOutput{}, fmt.Errorf("reading %s: %w", t.Path, err)
	}

	content := string(data)
	if t.StartLine > 0 || t.EndLine > 0 {
		lines := strings.Split(content, "\n")
		start := t.StartLine
		if start < 1 {
			start = 1
		}
		end := t.EndLine
		if end < 1 || end > len(lines) {
			end = len(lines)
		}
		if start > len(lines) {
			return InvokeOutput{}, fmt.Errorf("start_line %d is beyond the end of the file", t.StartLine)
		}
		content = strings.Join(lines[start-1:end], "\n")
	}

	if len(content) > maxReadBytes {
		content = content[:maxReadBytes] + "\n...[truncated]"
	}
	return InvokeOutput{Text: content}, nil
}
