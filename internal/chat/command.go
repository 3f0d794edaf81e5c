package chat

import (
	"fmt"
	"strings"
)

// CommandKind identifies a parsed input command.
type CommandKind int

const (
	// CommandAsk sends the prompt to the model (the default).
	CommandAsk CommandKind = iota
	// CommandExecute runs the remainder in a subshell.
	CommandExecute
	// CommandClear drops the conversation history.
	CommandClear
	// CommandHelp shows the help dialogue.
	CommandHelp
	// CommandIssue reports an issue or feature request.
	CommandIssue
	// CommandAcceptAll toggles acceptance prompting.
	CommandAcceptAll
	// CommandQuit exits the chat.
	CommandQuit
	// CommandProfile manages context profiles.
	CommandProfile
	// CommandContext manages context files.
	CommandContext
)

// ProfileAction is a /profile subcommand.
type ProfileAction int

const (
	ProfileList ProfileAction = iota
	ProfileCreate
	ProfileDelete
	ProfileSet
	ProfileRename
	ProfileHelp
)

// ContextAction is a /context subcommand.
type ContextAction int

const (
	ContextShow ContextAction = iota
	ContextAdd
	ContextRemove
	ContextClear
	ContextHelp
)

// ProfileCommand carries /profile arguments.
type ProfileCommand struct {
	Action  ProfileAction
	Name    string
	OldName string
	NewName string
}

// ContextCommand carries /context arguments.
type ContextCommand struct {
	Action ContextAction
	Global bool
	Force  bool
	Expand bool
	Paths  []string
}

// Command is one parsed input line.
type Command struct {
	Kind    CommandKind
	Prompt  string // CommandAsk, CommandIssue
	Command string // CommandExecute
	Profile ProfileCommand
	Context ContextCommand
}

// ParseCommand parses an input line into a Command.
func ParseCommand(input string) (Command, error) {
	trimmed := strings.TrimSpace(input)

	if rest, ok := strings.CutPrefix(trimmed, "!"); ok {
		return Command{Kind: CommandExecute, Command: strings.TrimSpace(rest)}, nil
	}

	if !strings.HasPrefix(trimmed, "/") {
		switch trimmed {
		case "exit", "quit":
			return Command{Kind: CommandQuit}, nil
		}
		return Command{Kind: CommandAsk, Prompt: trimmed}, nil
	}

	fields := strings.Fields(trimmed[1:])
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}

	switch fields[0] {
	case "clear":
		return Command{Kind: CommandClear}, nil
	case "help":
		return Command{Kind: CommandHelp}, nil
	case "acceptall":
		return Command{Kind: CommandAcceptAll}, nil
	case "quit":
		return Command{Kind: CommandQuit}, nil
	case "issue":
		prompt := strings.TrimSpace(strings.TrimPrefix(trimmed[1:], "issue"))
		return Command{Kind: CommandIssue, Prompt: prompt}, nil
	case "profile":
		return parseProfileCommand(fields[1:])
	case "context":
		return parseContextCommand(fields[1:])
	default:
		return Command{}, fmt.Errorf("unknown command '/%s'. Type /help for available commands", fields[0])
	}
}

func parseProfileCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, fmt.Errorf("missing /profile subcommand. Type /profile help for usage")
	}

	cmd := Command{Kind: CommandProfile}
	switch args[0] {
	case "list":
		cmd.Profile = ProfileCommand{Action: ProfileList}
	case "create":
		if len(args) != 2 {
			return Command{}, fmt.Errorf("usage: /profile create <name>")
		}
		cmd.Profile = ProfileCommand{Action: ProfileCreate, Name: args[1]}
	case "delete":
		if len(args) != 2 {
			return Command{}, fmt.Errorf("usage: /profile delete <name>")
		}
		cmd.Profile = ProfileCommand{Action: ProfileDelete, Name: args[1]}
	case "set":
		if len(args) != 2 {
			return Command{}, fmt.Errorf("usage: /profile set <name>")
		}
		cmd.Profile = ProfileCommand{Action: ProfileSet, Name: args[1]}
	case "rename":
		if len(args) != 3 {
			return Command{}, fmt.Errorf("usage: /profile rename <old> <new>")
		}
		cmd.Profile = ProfileCommand{Action: ProfileRename, OldName: args[1], NewName: args[2]}
	case "help":
		cmd.Profile = ProfileCommand{Action: ProfileHelp}
	default:
		return Command{}, fmt.Errorf("unknown /profile subcommand '%s'. Type /profile help for usage", args[0])
	}
	return cmd, nil
}

func parseContextCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, fmt.Errorf("missing /context subcommand. Type /context help for usage")
	}

	cmd := Command{Kind: CommandContext}
	sub, rest := args[0], args[1:]

	var paths []string
	var global, force, expand bool
	for _, arg := range rest {
		switch arg {
		case "--global":
			global = true
		case "--force":
			force = true
		case "--expand":
			expand = true
		default:
			if strings.HasPrefix(arg, "--") {
				return Command{}, fmt.Errorf("unknown flag '%s'", arg)
			}
			paths = append(paths, arg)
		}
	}

	switch sub {
	case "show":
		if len(paths) > 0 || global || force {
			return Command{}, fmt.Errorf("usage: /context show [--expand]")
		}
		cmd.Context = ContextCommand{Action: ContextShow, Expand: expand}
	case "add":
		if len(paths) == 0 {
			return Command{}, fmt.Errorf("usage: /context add [--global] [--force] <paths...>")
		}
		cmd.Context = ContextCommand{Action: ContextAdd, Global: global, Force: force, Paths: paths}
	case "rm":
		if len(paths) == 0 {
			return Command{}, fmt.Errorf("usage: /context rm [--global] <paths...>")
		}
		cmd.Context = ContextCommand{Action: ContextRemove, Global: global, Paths: paths}
	case "clear":
		if len(paths) > 0 {
			return Command{}, fmt.Errorf("usage: /context clear [--global]")
		}
		cmd.Context = ContextCommand{Action: ContextClear, Global: global}
	case "help":
		cmd.Context = ContextCommand{Action: ContextHelp}
	default:
		return Command{}, fmt.Errorf("unknown /context subcommand '%s'. Type /context help for usage", sub)
	}
	return cmd, nil
}

// String returns the canonical form of the command. Parsing the canonical
// form reproduces the command.
func (c Command) String() string {
	switch c.Kind {
	case CommandAsk:
		return c.Prompt
	case CommandExecute:
		return "!" + c.Command
	case CommandClear:
		return "/clear"
	case CommandHelp:
		return "/help"
	case CommandAcceptAll:
		return "/acceptall"
	case CommandQuit:
		return "/quit"
	case CommandIssue:
		if c.Prompt == "" {
			return "/issue"
		}
		return "/issue " + c.Prompt
	case CommandProfile:
		switch c.Profile.Action {
		case ProfileList:
			return "/profile list"
		case ProfileCreate:
			return "/profile create " + c.Profile.Name
		case ProfileDelete:
			return "/profile delete " + c.Profile.Name
		case ProfileSet:
			return "/profile set " + c.Profile.Name
		case ProfileRename:
			return fmt.Sprintf("/profile rename %s %s", c.Profile.OldName, c.Profile.NewName)
		case ProfileHelp:
			return "/profile help"
		}
	case CommandContext:
		var sb strings.Builder
		sb.WriteString("/context ")
		switch c.Context.Action {
		case ContextShow:
			sb.WriteString("show")
			if c.Context.Expand {
				sb.WriteString(" --expand")
			}
		case ContextAdd:
			sb.WriteString("add")
			if c.Context.Global {
				sb.WriteString(" --global")
			}
			if c.Context.Force {
				sb.WriteString(" --force")
			}
			for _, p := range c.Context.Paths {
				sb.WriteString(" " + p)
			}
		case ContextRemove:
			sb.WriteString("rm")
			if c.Context.Global {
				sb.WriteString(" --global")
			}
			for _, p := range c.Context.Paths {
				sb.WriteString(" " + p)
			}
		case ContextClear:
			sb.WriteString("clear")
			if c.Context.Global {
				sb.WriteString(" --global")
			}
		case ContextHelp:
			sb.WriteString("help")
		}
		return sb.String()
	}
	return ""
}
