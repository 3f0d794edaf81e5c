package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ymhiroki/qchat/internal/chat"
	"github.com/ymhiroki/qchat/internal/client"
	"github.com/ymhiroki/qchat/internal/convo"
	"github.com/ymhiroki/qchat/internal/log"
	"github.com/ymhiroki/qchat/internal/tool"
)

var version = "0.1.0"

const defaultModel = "claude-sonnet-4-20250514"

var (
	noInteractive bool
	acceptAll     bool
	profileFlag   string
)

func init() {
	// Load .env if present (silent fail if not found).
	_ = godotenv.Load()

	// Debug logging is enabled via QCHAT_DEBUG=1.
	_ = log.Init()

	rootCmd.Flags().BoolVar(&noInteractive, "no-interactive", false,
		"Run a single turn without prompting, then exit")
	rootCmd.Flags().BoolVar(&acceptAll, "accept-all", false,
		"Approve all tool uses without prompting")
	rootCmd.Flags().StringVar(&profileFlag, "profile", "",
		"Context profile to use for the session")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	defer log.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "qchat [INPUT]",
	Short: "qchat - AI assistant for the terminal",
	Long: `qchat is an AI assistant that converses with a model able to run
local tools on your behalf: editing files, running shell commands, and
reporting issues.

Non-interactive mode:
  qchat --no-interactive "your message"   Send a message and exit
  echo "message" | qchat                  Send a message via stdin`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, strings.Join(args, " "))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("qchat version %s\n", version)
	},
}

func runChat(cmd *cobra.Command, input string) error {
	stdinTTY := term.IsTerminal(int(os.Stdin.Fd()))
	interactive := !noInteractive && stdinTTY

	// When part of a pipe, the whole of stdin joins the input and the
	// session runs one turn.
	if !interactive && !stdinTTY {
		piped, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		if len(piped) > 0 {
			if input != "" {
				input += "\n"
			}
			input += strings.TrimSpace(string(piped))
		}
	}

	// Interactive UI goes to stderr; non-interactive output is pipeable.
	var output io.Writer = os.Stdout
	if interactive {
		output = os.Stderr
	}

	streaming, err := newStreamingClient()
	if err != nil {
		return err
	}

	manager, err := newContextManager()
	if err != nil {
		return err
	}

	specs, err := tool.LoadSpecs()
	if err != nil {
		return err
	}

	session := chat.New(chat.Config{
		Output:       output,
		InitialInput: input,
		InputSource:  chat.NewStdinSource(os.Stdin, output),
		Interactive:  interactive,
		Client:       streaming,
		TerminalWidth: func() int {
			if width, _, err := term.GetSize(int(os.Stderr.Fd())); err == nil {
				return width
			}
			return 0
		},
		Conversation: convo.New(specs, manager),
		AcceptAll:    acceptAll,
	})
	defer session.Close()

	return session.Run(cmd.Context())
}

// newStreamingClient returns the mock client when the mock script env var
// (client.MockEnvVar) is set, the live client otherwise. A missing script file is a hard
// error.
func newStreamingClient() (client.StreamingClient, error) {
	if path := os.Getenv(client.MockEnvVar); path != "" {
		return client.NewMockFromFile(path)
	}
	return client.NewAnthropic(defaultModel), nil
}

func newContextManager() (*convo.ContextManager, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}

	manager, err := convo.NewContextManager(filepath.Join(home, ".qchat"))
	if err != nil {
		return nil, err
	}

	if profileFlag != "" {
		profiles, err := manager.ListProfiles()
		if err != nil {
			return nil, err
		}
		found := false
		for _, p := range profiles {
			if p == profileFlag {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("profile '%s' does not exist. Available profiles: %s",
				profileFlag, strings.Join(profiles, ", "))
		}
		if err := manager.SwitchProfile(profileFlag); err != nil {
			return nil, err
		}
	}

	return manager, nil
}
