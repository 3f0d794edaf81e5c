package chat

import (
	"errors"

	"github.com/ymhiroki/qchat/internal/tool"
)

// ErrNonInteractiveToolApproval is fatal: a tool required approval but the
// session cannot prompt.
var ErrNonInteractiveToolApproval = errors.New(
	"Tool approval required but --no-interactive was specified. Use --accept-all to automatically approve tools.")

// InterruptedError is the cooperative-cancellation signal raised when a
// keyboard interrupt preempts a long-running state. ToolUses carries the
// pending tools when the interrupt landed during execution, so they can be
// abandoned with matching error results.
type InterruptedError struct {
	ToolUses []tool.QueuedTool
}

func (e *InterruptedError) Error() string {
	return "interrupted"
}
