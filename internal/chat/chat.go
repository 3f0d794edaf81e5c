// Package chat implements the interactive session driver: an event-loop
// state machine that interleaves streamed model output, incremental markdown
// rendering, slash commands, tool validation/approval/execution, telemetry,
// and cooperative interruption.
package chat

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"regexp"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"go.uber.org/zap"

	"github.com/ymhiroki/qchat/internal/client"
	"github.com/ymhiroki/qchat/internal/convo"
	"github.com/ymhiroki/qchat/internal/log"
	"github.com/ymhiroki/qchat/internal/message"
	"github.com/ymhiroki/qchat/internal/parser"
	"github.com/ymhiroki/qchat/internal/render"
	"github.com/ymhiroki/qchat/internal/telemetry"
	"github.com/ymhiroki/qchat/internal/tool"
)

const (
	// defaultRenderPacing spaces out markdown micro-parses so streamed text
	// arrives at a readable rate.
	defaultRenderPacing = 8 * time.Millisecond

	errorHeader = "Amazon Q is having trouble responding right now"

	interruptedMessage = "Tool uses were interrupted, waiting for the next user prompt"

	issuePrompt = "I would like to report an issue or make a feature request"
)

const welcomeText = `
Hi, I'm qchat. Ask me anything.

Things to try
• Fix the build failures in this project.
• List my changed files and write a commit message.
• /acceptall to run tools without confirmation.

Use /help to see all commands.

`

const helpText = `
qchat

Commands:
/clear        Clear the conversation history
/acceptall    Toggles acceptance prompting for the session
/issue        Report an issue or make a feature request
/help         Show this help dialogue
/quit         Quit the application
/profile      Manage profiles
  help        Show profile help
  list        List profiles
  set         Set the current profile
  create      Create a new profile
  delete      Delete a profile
  rename      Rename a profile
/context      Manage context files for the chat session
  help        Show context help
  show        Display current context configuration [--expand]
  add         Add file(s) to context [--global] [--force]
  rm          Remove file(s) from context [--global]
  clear       Clear all files from current context [--global]

Tips:
!{command}    Quickly execute a command in your current session

`

// stripRe removes ANSI escape sequences and non-ASCII bytes before error
// text reaches the transcript.
var stripRe = regexp.MustCompile(`((\x9B|\x1B\[)[0-?]*[ -\/]*[@-~])|([^\x00-\x7F]+)`)

// Config assembles a ChatSession.
type Config struct {
	// Output receives all conversation UI. Interactive sessions point this
	// at stderr; non-interactive at stdout so it can be piped.
	Output io.Writer

	// InitialInput, when non-empty, is handled as the first user input.
	InitialInput string

	InputSource InputSource
	Interactive bool
	Client      client.StreamingClient

	// TerminalWidth reports the terminal width, or 0 when unknown.
	TerminalWidth func() int

	Conversation *convo.ConversationState
	Telemetry    telemetry.Dispatcher
	AcceptAll    bool
	Env          *tool.Env

	// RenderPacing overrides the markdown pacing sleep. Zero selects the
	// default; a negative value disables pacing (tests).
	RenderPacing time.Duration
}

// ChatSession owns the state machine for one chat session. It is driven by
// a single task: a raced operation runs in a helper goroutine while the
// driver waits on it and on the interrupt channel, so session state is never
// touched by two goroutines at once.
type ChatSession struct {
	output        io.Writer
	initialInput  string
	inputSource   InputSource
	interactive   bool
	client        client.StreamingClient
	terminalWidth func() int
	spinner       *spinner.Spinner
	conversation  *convo.ConversationState
	telemetry     telemetry.Dispatcher

	// toolUseEvents buffers telemetry per tool_use_id until dispatch.
	toolUseEvents map[string]*telemetry.ToolUseEvent

	// retryInProgress tracks whether the next tool attempt is a retry after
	// an error; retryUtteranceID is the originating message id.
	retryInProgress  bool
	retryUtteranceID string

	acceptAll        bool
	failedRequestIDs []string
	env              *tool.Env
	renderPacing     time.Duration

	interrupts chan os.Signal
	ownsSignal bool
}

// New creates a session. Call Run to drive it and Close to release the
// terminal.
func New(cfg Config) *ChatSession {
	pacing := cfg.RenderPacing
	if pacing == 0 {
		pacing = defaultRenderPacing
	}
	widthFn := cfg.TerminalWidth
	if widthFn == nil {
		widthFn = func() int { return 0 }
	}
	env := cfg.Env
	if env == nil {
		cwd, _ := os.Getwd()
		env = &tool.Env{Cwd: cwd}
	}
	var dispatcher telemetry.Dispatcher = telemetry.LogDispatcher{}
	if cfg.Telemetry != nil {
		dispatcher = cfg.Telemetry
	}
	return &ChatSession{
		output:        cfg.Output,
		initialInput:  cfg.InitialInput,
		inputSource:   cfg.InputSource,
		interactive:   cfg.Interactive,
		client:        cfg.Client,
		terminalWidth: widthFn,
		conversation:  cfg.Conversation,
		telemetry:     dispatcher,
		toolUseEvents: make(map[string]*telemetry.ToolUseEvent),
		acceptAll:     cfg.AcceptAll,
		env:           env,
		renderPacing:  pacing,
	}
}

// Close stops any active spinner, restores cursor visibility, resets colors
// and attributes, and flushes output.
func (c *ChatSession) Close() {
	c.stopSpinner()
	if c.interactive {
		fmt.Fprint(c.output, "\x1b[0m\x1b[?25h")
	}
	c.flush()
}

// Run drives the state machine until Exit or a fatal error.
func (c *ChatSession) Run(ctx context.Context) error {
	if c.interactive {
		fmt.Fprint(c.output, welcomeText)
	}

	if c.interrupts == nil {
		c.interrupts = make(chan os.Signal, 4)
		signal.Notify(c.interrupts, os.Interrupt)
		c.ownsSignal = true
	}
	if c.ownsSignal {
		defer signal.Stop(c.interrupts)
	}

	next := promptState(nil, true)
	hasNext := true

	if c.initialInput != "" {
		input := c.initialInput
		c.initialInput = ""
		if c.interactive {
			fmt.Fprintf(c.output, "%s%s\n", promptStyle.Render("> "), input)
		}
		next = handleInputState(input, nil)
	}

	for {
		if !hasNext {
			next = promptState(nil, false)
		}
		state := next
		hasNext = false
		log.Logger().Debug("changing to state", zap.Int("kind", int(state.kind)))

		var result chatState
		var err error

		switch state.kind {
		case statePromptUser:
			if !c.interactive {
				return nil
			}
			result, err = c.promptUser(state.toolUses, state.skipPrintingTools)

		case stateHandleInput:
			result, err = c.handleInput(ctx, state.input, state.toolUses)

		case stateValidateTools:
			pending := state.pendingToolUses
			result, err = c.raceInterrupt(ctx, nil, func(opCtx context.Context) (chatState, error) {
				return c.validateTools(opCtx, pending)
			})

		case stateExecuteTools:
			queued := state.toolUses
			result, err = c.raceInterrupt(ctx, queued, func(opCtx context.Context) (chatState, error) {
				return c.toolUseExecute(opCtx, queued)
			})

		case stateHandleResponse:
			response := state.response
			result, err = c.raceInterrupt(ctx, nil, func(opCtx context.Context) (chatState, error) {
				return c.handleResponse(opCtx, response)
			})

		case stateExit:
			return nil
		}

		if err == nil {
			next = result
			hasNext = true
			continue
		}

		log.Logger().Error("An error occurred processing the current state", zap.Error(err))
		c.stopSpinner()

		switch e := err.(type) {
		case *InterruptedError:
			fmt.Fprint(c.output, "\n\n")
			if e.ToolUses != nil {
				ids := make([]string, 0, len(e.ToolUses))
				for _, qt := range e.ToolUses {
					ids = append(ids, qt.ID)
				}
				c.conversation.AbandonToolUse(ids, "The user interrupted the tool execution.")
				c.conversation.PushAssistantMessage(message.AssistantMessage{
					Content: interruptedMessage,
				})
			}
		case *client.QuotaBreachError:
			c.printErrorReport(e.Message, nil)
		default:
			if err == ErrNonInteractiveToolApproval {
				return err
			}
			c.printErrorReport(errorHeader, err)
		}

		c.conversation.FixHistory()
		next = promptState(nil, false)
		hasNext = true
	}
}

// raceInterrupt runs op while listening for a keyboard interrupt. The losing
// branch is cancelled and drained so nothing leaks.
func (c *ChatSession) raceInterrupt(ctx context.Context, interruptedTools []tool.QueuedTool,
	op func(context.Context) (chatState, error)) (chatState, error) {

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type opResult struct {
		next chatState
		err  error
	}
	done := make(chan opResult, 1)
	go func() {
		next, err := op(opCtx)
		done <- opResult{next, err}
	}()

	select {
	case r := <-done:
		return r.next, r.err
	case <-c.interrupts:
		cancel()
		<-done
		return chatState{}, &InterruptedError{ToolUses: interruptedTools}
	}
}

// promptUser reads input from the user, presenting queued tools first.
func (c *ChatSession) promptUser(toolUses []tool.QueuedTool, skipPrintingTools bool) (chatState, error) {
	c.showCursor()

	if len(toolUses) > 0 && !skipPrintingTools {
		if err := c.printToolDescriptions(toolUses); err != nil {
			return chatState{}, err
		}

		noun := "these tools"
		if len(toolUses) == 1 {
			noun = "this tool"
		}
		fmt.Fprintf(c.output, "\n%s%s%s\n\n",
			hintStyle.Render("Enter "),
			successStyle.Render("y"),
			hintStyle.Render(fmt.Sprintf(" to run %s, otherwise continue chatting.", noun)))
	}

	// Two consecutive EOFs are required to exit.
	sawEOF := false
	var userInput string
	for {
		line, ok, err := c.inputSource.ReadLine(c.generatePrompt())
		if err != nil {
			return chatState{}, err
		}
		if !ok {
			if sawEOF {
				return exitState(), nil
			}
			fmt.Fprintf(c.output, "\n(To exit, press Ctrl+C or Ctrl+D again or type %s)\n\n",
				successStyle.Render("/quit"))
			sawEOF = true
			continue
		}
		userInput = line
		break
	}

	c.conversation.AppendUserTranscript(userInput)
	return handleInputState(userInput, toolUses), nil
}

// generatePrompt derives the prompt from the active context profile.
func (c *ChatSession) generatePrompt() string {
	profile := c.conversation.CurrentProfile()
	if profile != "" && profile != convo.DefaultProfile {
		return promptStyle.Render(fmt.Sprintf("[%s] > ", profile))
	}
	return promptStyle.Render("> ")
}

// handleInput dispatches the user's line, depending on whether tools are
// queued for approval.
func (c *ChatSession) handleInput(ctx context.Context, input string, toolUses []tool.QueuedTool) (chatState, error) {
	command, parseErr := ParseCommand(input)
	if parseErr != nil {
		fmt.Fprintf(c.output, "\n%s\n\n", errorStyle.Render(fmt.Sprintf("Error: %s", parseErr)))
		return promptState(toolUses, true), nil
	}

	switch command.Kind {
	case CommandAsk:
		if (command.Prompt == "y" || command.Prompt == "Y") && len(toolUses) > 0 {
			return executeState(toolUses), nil
		}

		c.retryInProgress = false
		c.retryUtteranceID = ""
		if c.interactive {
			c.hideCursor()
			fmt.Fprint(c.output, "\n")
			c.startSpinner("Thinking...")
		}

		if len(toolUses) == 0 {
			c.conversation.AppendNewUserMessage(input)
		} else {
			c.conversation.AbandonToolUse(queuedToolIDs(toolUses), input)
		}

		c.sendToolUseTelemetry(ctx)
		return c.sendConversation(ctx)

	case CommandExecute:
		fmt.Fprint(c.output, "\n")
		shell := exec.Command("bash", "-c", command.Command)
		shell.Stdin = os.Stdin
		shell.Stdout = os.Stdout
		shell.Stderr = os.Stderr
		_ = shell.Run() // status ignored
		fmt.Fprint(c.output, "\n")
		return promptState(nil, false), nil

	case CommandClear:
		c.conversation.Clear()
		fmt.Fprintf(c.output, "\n%s\n\n", successStyle.Render("Conversation history cleared."))
		return promptState(nil, true), nil

	case CommandHelp:
		fmt.Fprint(c.output, helpText)
		return promptState(toolUses, true), nil

	case CommandIssue:
		lowered := issuePrompt
		if command.Prompt != "" {
			lowered = fmt.Sprintf("%s: %s", issuePrompt, command.Prompt)
		}
		return handleInputState(lowered, toolUses), nil

	case CommandAcceptAll:
		c.acceptAll = !c.acceptAll
		notice := "Enabled acceptance prompting. Run again to disable."
		if c.acceptAll {
			notice = "Disabled acceptance prompting.\nAgents can sometimes do unexpected things so understand the risks."
		}
		fmt.Fprintf(c.output, "\n%s\n\n", successStyle.Render(notice))
		return promptState(toolUses, true), nil

	case CommandQuit:
		return exitState(), nil

	case CommandProfile:
		c.handleProfileCommand(command.Profile)
		return promptState(toolUses, true), nil

	case CommandContext:
		c.handleContextCommand(ctx, command.Context)
		return promptState(toolUses, true), nil
	}

	return promptState(toolUses, true), nil
}

// sendConversation snapshots the conversation and sends it, entering the
// response-stream state.
func (c *ChatSession) sendConversation(ctx context.Context) (chatState, error) {
	snapshot, err := c.conversation.AsSendableConversationState(ctx)
	if err != nil {
		return chatState{}, err
	}
	response, err := c.client.SendMessage(ctx, snapshot)
	if err != nil {
		return chatState{}, err
	}
	return responseState(response), nil
}

// handleResponse consumes the response stream, rendering assistant text
// incrementally and collecting tool uses.
func (c *ChatSession) handleResponse(ctx context.Context, response client.SendMessageOutput) (chatState, error) {
	buf := ""
	offset := 0
	ended := false
	p := parser.New(response)
	state := render.NewParseState(c.width())

	var toolUses []message.ToolUse
	toolNameBeingRecvd := ""

	for {
		event, recvErr := p.Recv(ctx)
		if recvErr != nil {
			if recvErr.RequestID != "" {
				c.failedRequestIDs = append(c.failedRequestIDs, recvErr.RequestID)
			}

			switch recvErr.Kind {
			case parser.KindStreamTimeout:
				log.Logger().Error("Encountered a stream timeout",
					zap.String("request_id", recvErr.RequestID),
					zap.Duration("duration", recvErr.Duration))
				if c.interactive {
					c.hideCursor()
					c.startSpinner("Dividing up the work...")
				}
				// Ask the model to split its response into smaller chunks.
				c.conversation.PushAssistantMessage(message.AssistantMessage{
					Content: "Response timed out - message took too long to generate",
				})
				c.conversation.AppendNewUserMessage(
					"You took too long to respond - try to split up the work into smaller steps.")
				c.sendToolUseTelemetry(ctx)
				return c.sendConversation(ctx)

			case parser.KindUnexpectedToolUseEos:
				log.Logger().Error("The response stream ended before the entire tool use was received",
					zap.String("request_id", recvErr.RequestID),
					zap.String("tool_use_id", recvErr.ToolUseID),
					zap.String("tool_name", recvErr.ToolName))
				if c.interactive {
					c.hideCursor()
					c.startSpinner("The generated tool use was too large, trying to divide up the work...")
				}
				c.conversation.PushAssistantMessage(*recvErr.Message)
				c.conversation.AddToolResults([]message.ToolResult{
					message.ErrorResult(recvErr.ToolUseID,
						"The generated tool was too large, try again but this time split up the work between multiple tool uses"),
				})
				c.sendToolUseTelemetry(ctx)
				return c.sendConversation(ctx)

			default:
				return chatState{}, recvErr
			}
		} else {
			switch event.Kind {
			case parser.KindToolUseStart:
				// Flush the buffer, otherwise text is withheld while tool
				// use events stream in.
				buf += "\n"
				toolNameBeingRecvd = event.ToolName

			case parser.KindAssistantText:
				buf += event.Text

			case parser.KindToolUse:
				c.stopSpinner()
				toolUses = append(toolUses, event.ToolUse)
				toolNameBeingRecvd = ""

			case parser.KindEndStream:
				c.conversation.PushAssistantMessage(event.Message)
				ended = true
			}
		}

		// The parser may report Incomplete with a final token still in the
		// buffer; a sentinel newline forces it to flush.
		if ended {
			buf += "\n"
		}

		if toolNameBeingRecvd == "" && buf != "" && c.interactive && c.spinner != nil {
			c.stopSpinner()
		}

		for {
			consumed, err := render.InterpretMarkdown(buf[offset:], c.output, state)
			if err != nil {
				break // data was incomplete
			}
			offset += consumed
			c.flush()
			state.Newline = state.SetNewline
			state.SetNewline = false

			if c.renderPacing > 0 {
				time.Sleep(c.renderPacing)
			}
		}

		// Set the spinner after showing all assistant text so far.
		if toolNameBeingRecvd != "" && c.interactive {
			fmt.Fprintf(c.output, "\n%s", toolNameStyle.Render(toolNameBeingRecvd+": "))
			c.hideCursor()
			c.startSpinner("Thinking...")
		}

		if ended {
			if messageID := c.conversation.MessageID(); messageID != "" {
				c.telemetry.DispatchChatAddedMessage(ctx,
					c.conversation.ConversationID(), messageID, c.conversation.ContextMessageLength())
			}
			if c.interactive {
				fmt.Fprint(c.output, "\x1b[0m\n")
				for _, citation := range state.Citations {
					fmt.Fprintf(c.output, "\n%s%s\n",
						toolNameStyle.Render(fmt.Sprintf("[^%s]: ", citation.Index)),
						hintStyle.Render(citation.URL))
				}
			}
			break
		}
	}

	if len(toolUses) > 0 {
		return validateState(toolUses), nil
	}
	return promptState(nil, false), nil
}

// validateTools converts and validates the model's tool uses. Any failure
// short-circuits the batch back to the model with error results attached.
func (c *ChatSession) validateTools(ctx context.Context, toolUses []message.ToolUse) (chatState, error) {
	conversationID := c.conversation.ConversationID()

	var queued []tool.QueuedTool
	var results []message.ToolResult
	for _, use := range toolUses {
		event := telemetry.NewToolUseEvent(conversationID, use.ID, use.Name, c.conversation.MessageID())

		typed, err := tool.New(use)
		if err != nil {
			event.IsValid = telemetry.Bool(false)
			results = append(results, message.ErrorResult(use.ID, err.Error()))
			c.toolUseEvents[use.ID] = event
			continue
		}

		c.contextualizeTool(typed)

		if err := typed.Validate(ctx, c.env); err != nil {
			event.IsValid = telemetry.Bool(false)
			results = append(results, message.ErrorResult(use.ID,
				fmt.Sprintf("Failed to validate tool parameters: %s", err)))
		} else {
			event.IsValid = telemetry.Bool(true)
			queued = append(queued, tool.QueuedTool{ID: use.ID, Tool: typed})
		}
		c.toolUseEvents[use.ID] = event
	}

	if len(results) > 0 {
		fmt.Fprint(c.output, boldStyle.Render("Tool validation failed: "))
		for _, result := range results {
			for _, block := range result.Content {
				fmt.Fprintf(c.output, "\n%s\n", errorStyle.Render(block.String()))
			}
		}
		c.conversation.AddToolResults(results)
		c.sendToolUseTelemetry(ctx)
		c.markRetryInProgress()
		return c.sendConversation(ctx)
	}

	skipAcceptance := c.acceptAll
	if !skipAcceptance {
		skipAcceptance = true
		for _, qt := range queued {
			if qt.Tool.RequiresAcceptance(c.env) {
				skipAcceptance = false
				break
			}
		}
	}

	switch {
	case skipAcceptance:
		if err := c.printToolDescriptions(queued); err != nil {
			return chatState{}, err
		}
		return executeState(queued), nil
	case c.interactive:
		return promptState(queued, false), nil
	default:
		return chatState{}, ErrNonInteractiveToolApproval
	}
}

// toolUseExecute runs the queued tools sequentially, attaching results in
// order, then re-sends the conversation.
func (c *ChatSession) toolUseExecute(ctx context.Context, toolUses []tool.QueuedTool) (chatState, error) {
	width := c.width()
	var results []message.ToolResult

	for _, qt := range toolUses {
		if event, ok := c.toolUseEvents[qt.ID]; ok {
			event.IsAccepted = true
		}

		start := time.Now()
		fmt.Fprintf(c.output, "\n%s\n%s\n",
			toolHeaderStyle.Render(qt.Tool.DisplayNameAction()+"..."),
			separatorStyle.Render(strings.Repeat("▔", width)))

		output, invokeErr := qt.Tool.Invoke(ctx, c.env, c.output)

		// A cancelled context means an interrupt won the race; the
		// interrupt handler owns the conversation from here.
		if ctx.Err() != nil {
			return chatState{}, ctx.Err()
		}

		c.stopSpinner()
		fmt.Fprint(c.output, "\n")

		elapsed := time.Since(start)
		toolTime := fmt.Sprintf("%d.%03d", elapsed/time.Second, elapsed%time.Second/time.Millisecond)

		if invokeErr == nil {
			fmt.Fprintf(c.output, "%s\n",
				successStyle.Render(fmt.Sprintf("🟢 Completed in %ss", toolTime)))

			if event, ok := c.toolUseEvents[qt.ID]; ok {
				event.IsSuccess = telemetry.Bool(true)
			}
			results = append(results, message.ToolResult{
				ToolUseID: qt.ID,
				Content:   []message.ToolResultContentBlock{output.Block()},
				Status:    message.ToolResultSuccess,
			})
		} else {
			log.Logger().Error("An error occurred processing the tool", zap.Error(invokeErr))
			fmt.Fprintf(c.output, "%s\n%s\n\n",
				errorHeaderStyle.Render(fmt.Sprintf("🔴 Execution failed after %ss:", toolTime)),
				errorStyle.Render(invokeErr.Error()))

			if event, ok := c.toolUseEvents[qt.ID]; ok {
				event.IsSuccess = telemetry.Bool(false)
			}
			results = append(results, message.ErrorResult(qt.ID,
				fmt.Sprintf("An error occurred processing the tool: \n%s", invokeErr)))
			c.markRetryInProgress()
		}
	}

	c.conversation.AddToolResults(results)
	c.sendToolUseTelemetry(ctx)
	return c.sendConversation(ctx)
}

// contextualizeTool injects session snapshots into tools that need them.
// Snapshots, not references: the tool must not reach back into the session.
func (c *ChatSession) contextualizeTool(t tool.Tool) {
	if issue, ok := t.(*tool.ReportIssue); ok {
		issue.SetContext(tool.IssueContext{
			Transcript:       c.conversation.Transcript(),
			FailedRequestIDs: append([]string(nil), c.failedRequestIDs...),
			AcceptAll:        c.acceptAll,
			Interactive:      c.interactive,
		})
	}
}

// printToolDescriptions prints each queued tool's name, a rule, and its
// description of what it is about to do.
func (c *ChatSession) printToolDescriptions(toolUses []tool.QueuedTool) error {
	width := c.width()
	for _, qt := range toolUses {
		fmt.Fprintf(c.output, "%s\n%s\n",
			toolHeaderStyle.Render(qt.Tool.DisplayName()),
			separatorStyle.Render(strings.Repeat("▔", width)))
		if err := qt.Tool.QueueDescription(c.env, c.output); err != nil {
			return fmt.Errorf("failed to print tool description: %w", err)
		}
		fmt.Fprint(c.output, "\n")
	}
	return nil
}

// markRetryInProgress records that subsequent tool attempts are retries of
// the current utterance, for telemetry correlation.
func (c *ChatSession) markRetryInProgress() {
	if c.retryInProgress {
		return
	}
	c.retryInProgress = true
	c.retryUtteranceID = c.conversation.MessageID()
	if c.retryUtteranceID == "" {
		c.retryUtteranceID = "No utterance id found"
	}
}

// sendToolUseTelemetry drains the buffered events and dispatches them.
func (c *ChatSession) sendToolUseTelemetry(ctx context.Context) {
	for id, event := range c.toolUseEvents {
		if c.retryInProgress {
			event.UserInputID = c.retryUtteranceID
		} else {
			event.UserInputID = c.conversation.MessageID()
		}
		c.telemetry.DispatchToolUse(ctx, *event)
		delete(c.toolUseEvents, id)
	}
}

func (c *ChatSession) handleProfileCommand(cmd ProfileCommand) {
	manager := c.conversation.ContextManager
	if manager == nil {
		fmt.Fprintf(c.output, "\n%s\n\n", errorStyle.Render("Context management is not available."))
		return
	}

	printErr := func(err error) {
		fmt.Fprintf(c.output, "\n%s\n\n", errorStyle.Render(fmt.Sprintf("Error: %s", err)))
	}

	switch cmd.Action {
	case ProfileList:
		profiles, err := manager.ListProfiles()
		if err != nil {
			printErr(err)
			return
		}
		fmt.Fprint(c.output, "\n")
		for _, profile := range profiles {
			if profile == manager.CurrentProfile {
				fmt.Fprintf(c.output, "%s\n", successStyle.Render("* "+profile))
			} else {
				fmt.Fprintf(c.output, "  %s\n", profile)
			}
		}
		fmt.Fprint(c.output, "\n")

	case ProfileCreate:
		if err := manager.CreateProfile(cmd.Name); err != nil {
			printErr(err)
			return
		}
		fmt.Fprintf(c.output, "\n%s\n\n", successStyle.Render("Created profile: "+cmd.Name))
		if err := manager.SwitchProfile(cmd.Name); err != nil {
			log.Logger().Warn("failed to switch to newly created profile", zap.Error(err))
		}

	case ProfileDelete:
		if err := manager.DeleteProfile(cmd.Name); err != nil {
			printErr(err)
			return
		}
		fmt.Fprintf(c.output, "\n%s\n\n", successStyle.Render("Deleted profile: "+cmd.Name))

	case ProfileSet:
		if err := manager.SwitchProfile(cmd.Name); err != nil {
			printErr(err)
			return
		}
		fmt.Fprintf(c.output, "\n%s\n\n", successStyle.Render("Switched to profile: "+cmd.Name))

	case ProfileRename:
		if err := manager.RenameProfile(cmd.OldName, cmd.NewName); err != nil {
			printErr(err)
			return
		}
		fmt.Fprintf(c.output, "\n%s\n\n",
			successStyle.Render(fmt.Sprintf("Renamed profile: %s -> %s", cmd.OldName, cmd.NewName)))

	case ProfileHelp:
		fmt.Fprint(c.output, profileHelpText)
	}
}

func (c *ChatSession) handleContextCommand(ctx context.Context, cmd ContextCommand) {
	manager := c.conversation.ContextManager
	if manager == nil {
		fmt.Fprintf(c.output, "\n%s\n\n", errorStyle.Render("Context management is not available."))
		return
	}

	printErr := func(err error) {
		fmt.Fprintf(c.output, "\n%s\n\n", errorStyle.Render(fmt.Sprintf("Error: %s", err)))
	}

	switch cmd.Action {
	case ContextShow:
		fmt.Fprintf(c.output, "\n%s\n\n",
			successStyle.Render("current profile: "+manager.CurrentProfile))

		fmt.Fprint(c.output, "global:\n")
		if len(manager.GlobalConfig.Paths) == 0 {
			fmt.Fprintf(c.output, "%s\n", hintStyle.Render("    <none>"))
		} else {
			for _, path := range manager.GlobalConfig.Paths {
				fmt.Fprintf(c.output, "    %s\n", path)
			}
		}

		fmt.Fprint(c.output, "\nprofile:\n")
		if len(manager.ProfileConfig.Paths) == 0 {
			fmt.Fprintf(c.output, "%s\n\n", hintStyle.Render("    <none>"))
		} else {
			for _, path := range manager.ProfileConfig.Paths {
				fmt.Fprintf(c.output, "    %s\n", path)
			}
			fmt.Fprint(c.output, "\n")
		}

		files, err := manager.ContextFiles(ctx, false)
		if err != nil {
			fmt.Fprintf(c.output, "%s\n\n", errorStyle.Render(fmt.Sprintf("Error retrieving context files: %s", err)))
			return
		}
		switch {
		case len(files) == 0:
			fmt.Fprintf(c.output, "%s\n\n", hintStyle.Render("No files matched the configured context paths."))
		case cmd.Expand:
			fmt.Fprintf(c.output, "%s\n", successStyle.Render(fmt.Sprintf("Expanded files (%d):", len(files))))
			for _, file := range files {
				fmt.Fprintf(c.output, "    %s\n", file.Path)
			}
			fmt.Fprint(c.output, "\n")
		default:
			fmt.Fprintf(c.output, "%s\n",
				successStyle.Render(fmt.Sprintf("Number of context files in use: %d", len(files))))
		}

	case ContextAdd:
		if err := manager.AddPaths(cmd.Paths, cmd.Global, cmd.Force); err != nil {
			printErr(err)
			return
		}
		fmt.Fprintf(c.output, "\n%s\n\n", successStyle.Render(
			fmt.Sprintf("Added %d path(s) to %s context.", len(cmd.Paths), contextTarget(cmd.Global))))

	case ContextRemove:
		if err := manager.RemovePaths(cmd.Paths, cmd.Global); err != nil {
			printErr(err)
			return
		}
		fmt.Fprintf(c.output, "\n%s\n\n", successStyle.Render(
			fmt.Sprintf("Removed %d path(s) from %s context.", len(cmd.Paths), contextTarget(cmd.Global))))

	case ContextClear:
		if err := manager.Clear(cmd.Global); err != nil {
			printErr(err)
			return
		}
		target := "global"
		if !cmd.Global {
			target = fmt.Sprintf("profile '%s'", manager.CurrentProfile)
		}
		fmt.Fprintf(c.output, "\n%s\n\n", successStyle.Render("Cleared context for "+target))

	case ContextHelp:
		fmt.Fprint(c.output, contextHelpText)
	}
}

func contextTarget(global bool) string {
	if global {
		return "global"
	}
	return "profile"
}

const profileHelpText = `
/profile list                 List profiles
/profile set <name>           Set the current profile
/profile create <name>        Create a new profile
/profile delete <name>        Delete a profile
/profile rename <old> <new>   Rename a profile

`

const contextHelpText = `
/context show [--expand]                 Display current context configuration
/context add [--global] [--force] <paths...>   Add file(s) to context
/context rm [--global] <paths...>        Remove file(s) from context
/context clear [--global]                Clear all files from current context

`

// printErrorReport prints a red bolded header plus a stripped error
// description, and appends the sanitized text to the transcript.
func (c *ChatSession) printErrorReport(header string, err error) {
	text := header + "\n"
	if err != nil {
		text = fmt.Sprintf("%s: %v\n", header, err)
	}
	sanitized := stripRe.ReplaceAllString(text, "")
	fmt.Fprint(c.output, errorHeaderStyle.Render(sanitized))
	fmt.Fprint(c.output, "\n")
	c.conversation.AppendTranscript(sanitized)
	c.flush()
}

func (c *ChatSession) startSpinner(label string) {
	c.stopSpinner()
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(c.output))
	s.Suffix = " " + label
	s.Start()
	c.spinner = s
}

func (c *ChatSession) stopSpinner() {
	if c.spinner != nil {
		c.spinner.Stop()
		c.spinner = nil
		if c.interactive {
			// Clear the spinner line and restore the cursor.
			fmt.Fprint(c.output, "\r\x1b[2K\x1b[?25h")
		}
	}
}

func (c *ChatSession) hideCursor() {
	if c.interactive {
		fmt.Fprint(c.output, "\x1b[?25l")
	}
}

func (c *ChatSession) showCursor() {
	if c.interactive {
		fmt.Fprint(c.output, "\x1b[?25h")
	}
}

func (c *ChatSession) width() int {
	if w := c.terminalWidth(); w > 0 {
		return w
	}
	return 80
}

func (c *ChatSession) flush() {
	if f, ok := c.output.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}
}

func queuedToolIDs(toolUses []tool.QueuedTool) []string {
	ids := make([]string, 0, len(toolUses))
	for _, qt := range toolUses {
		ids = append(ids, qt.ID)
	}
	return ids
}
