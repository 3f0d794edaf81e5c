package chat

import (
	"github.com/ymhiroki/qchat/internal/client"
	"github.com/ymhiroki/qchat/internal/message"
	"github.com/ymhiroki/qchat/internal/tool"
)

// stateKind identifies a chatState variant.
type stateKind int

const (
	// statePromptUser prompts the user, presenting queued tools if any.
	statePromptUser stateKind = iota
	// stateHandleInput handles the user input against any queued tools.
	stateHandleInput
	// stateValidateTools validates the tool uses produced by the model.
	stateValidateTools
	// stateExecuteTools executes the queued tools.
	stateExecuteTools
	// stateHandleResponse consumes the response stream.
	stateHandleResponse
	// stateExit terminates the chat.
	stateExit
)

// chatState is the chat execution state. Exactly one variant's fields are
// meaningful per kind; the driver loop consumes one state per iteration and
// produces the next.
type chatState struct {
	kind stateKind

	// Queued tools awaiting approval or execution, for statePromptUser,
	// stateHandleInput, and stateExecuteTools. A nil slice means none.
	toolUses []tool.QueuedTool

	// skipPrintingTools suppresses re-printing tool descriptions when
	// returning to the prompt, for statePromptUser.
	skipPrintingTools bool

	// input is the user's line, for stateHandleInput.
	input string

	// pendingToolUses are the model-produced uses to validate, for
	// stateValidateTools.
	pendingToolUses []message.ToolUse

	// response is the in-flight stream, for stateHandleResponse.
	response client.SendMessageOutput
}

func promptState(toolUses []tool.QueuedTool, skipPrintingTools bool) chatState {
	return chatState{kind: statePromptUser, toolUses: toolUses, skipPrintingTools: skipPrintingTools}
}

func handleInputState(input string, toolUses []tool.QueuedTool) chatState {
	return chatState{kind: stateHandleInput, input: input, toolUses: toolUses}
}

func validateState(pending []message.ToolUse) chatState {
	return chatState{kind: stateValidateTools, pendingToolUses: pending}
}

func executeState(toolUses []tool.QueuedTool) chatState {
	return chatState{kind: stateExecuteTools, toolUses: toolUses}
}

func responseState(response client.SendMessageOutput) chatState {
	return chatState{kind: stateHandleResponse, response: response}
}

func exitState() chatState {
	return chatState{kind: stateExit}
}
