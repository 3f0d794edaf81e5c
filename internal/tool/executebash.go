package tool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// maxCapturedOutput caps the command output returned to the model. The full
// output is still written to the terminal.
const maxCapturedOutput = 100 * 1024

// readOnlyCommands are command names that never modify state, so they can
// run without acceptance prompting.
var readOnlyCommands = map[string]bool{
	"ls": true, "cat": true, "echo": true, "pwd": true, "which": true,
	"head": true, "tail": true, "find": true, "grep": true, "wc": true,
	"du": true, "df": true, "file": true, "stat": true,
}

// ExecuteBash runs a shell command with bash -c.
type ExecuteBash struct {
	Command string `json:"command"`
}

func (t *ExecuteBash) DisplayName() string {
	return "Execute shell command"
}

func (t *ExecuteBash) DisplayNameAction() string {
	return "Executing shell command"
}

func (t *ExecuteBash) Validate(_ context.Context, _ *Env) error {
	if strings.TrimSpace(t.Command) == "" {
		return fmt.Errorf("command must not be empty")
	}
	return nil
}

// RequiresAcceptance is false only for a single read-only command with no
// shell control or redirection operators.
func (t *ExecuteBash) RequiresAcceptance(_ *Env) bool {
	if strings.ContainsAny(t.Command, "|&;<>$`\n") {
		return true
	}
	fields := strings.Fields(t.Command)
	if len(fields) == 0 {
		return true
	}
	if fields[0] == "find" {
		for _, arg := range fields[1:] {
			if strings.HasPrefix(arg, "-exec") || strings.HasPrefix(arg, "-ok") ||
				strings.HasPrefix(arg, "-fprint") || arg == "-fls" || arg == "-delete" {
				return true
			}
		}
	}
	return !readOnlyCommands[fields[0]]
}

func (t *ExecuteBash) QueueDescription(_ *Env, w io.Writer) error {
	fmt.Fprintf(w, "I will run the following shell command:\n%s\n", t.Command)
	return nil
}

func (t *ExecuteBash) Invoke(ctx context.Context, env *Env, w io.Writer) (InvokeOutput, error) {
	cmd := exec.CommandContext(ctx, "bash", "-c", t.Command)
	cmd.Dir = env.Cwd

	var captured bytes.Buffer
	sink := io.MultiWriter(w, &captured)
	cmd.Stdout = sink
	cmd.Stderr = sink

	err := cmd.Run()

	output := captured.String()
	if len(output) > maxCapturedOutput {
		output = output[len(output)-maxCapturedOutput:]
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return InvokeOutput{}, fmt.Errorf("command exited with status %d:\n%s", exitErr.ExitCode(), output)
		}
		return InvokeOutput{}, fmt.Errorf("running command: %w", err)
	}

	return InvokeOutput{Text: output}, nil
}
