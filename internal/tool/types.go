// Package tool defines the tool trait the model can invoke, the embedded
// tool index describing each tool to the model, and the concrete tools.
package tool

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"

	"github.com/ymhiroki/qchat/internal/message"
)

// Env is the environment tools run against.
type Env struct {
	// Cwd anchors relative paths.
	Cwd string

	// Root, when set, re-anchors absolute paths beneath it. Tests use this
	// to sandbox tools that the model addresses with absolute paths.
	Root string
}

// Resolve maps a tool-supplied path onto the environment's filesystem.
func (e *Env) Resolve(path string) string {
	if filepath.IsAbs(path) {
		if e.Root != "" {
			return filepath.Join(e.Root, path)
		}
		return path
	}
	return filepath.Join(e.Cwd, path)
}

// InvokeOutput is the payload of a successful tool invocation.
type InvokeOutput struct {
	Text string
	JSON json.RawMessage
}

// Block converts the output to a tool-result content block.
func (o InvokeOutput) Block() message.ToolResultContentBlock {
	if o.JSON != nil {
		return message.JSONBlock(o.JSON)
	}
	return message.TextBlock(o.Text)
}

// Tool is a named local capability the model can request to be executed.
// Tools may write progress directly to the writer they are given; the caller
// regains sole access when the call returns.
type Tool interface {
	// DisplayName names the tool for approval prompts.
	DisplayName() string

	// DisplayNameAction is the gerund form shown while executing.
	DisplayNameAction() string

	// Validate checks the decoded arguments against the environment.
	Validate(ctx context.Context, env *Env) error

	// RequiresAcceptance reports whether the user must approve this use.
	RequiresAcceptance(env *Env) bool

	// QueueDescription writes a human-readable description of what the tool
	// is about to do.
	QueueDescription(env *Env, w io.Writer) error

	// Invoke executes the tool.
	Invoke(ctx context.Context, env *Env, w io.Writer) (InvokeOutput, error)
}

// QueuedTool is an executable (tool_use_id, Tool) pair.
type QueuedTool struct {
	ID   string
	Tool Tool
}
