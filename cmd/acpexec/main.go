// Command acpexec drives an agent running in a remote container from
// the terminal: it opens the configured exec channel, resumes or
// creates a session for the working directory, and streams the turn's
// events to stdout.
package main

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	acpclient "github.com/execbridge/acp-client-go"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cmd := newRootCommand()
	cmd.SetArgs(args)

	return cmd.ExecuteContext(ctx)
}

type rootFlags struct {
	configPath string
	command    []string
	workingDir string
	verbose    bool
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "acpexec",
		Short:         "Drive a container-hosted agent over its exec stdio channel",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", ".acpexec.toml", "path to config file")
	root.PersistentFlags().StringSliceVar(&flags.command, "exec", nil, "exec command line opening the channel into the container")
	root.PersistentFlags().StringVar(&flags.workingDir, "cwd", "", "working directory the session is bound to")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging to stderr")

	root.AddCommand(newPromptCommand(flags))

	return root
}

func newPromptCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt <text>",
		Short: "Send one prompt and stream the turn's events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(flags)
			if err != nil {
				return err
			}

			return runPrompt(cmd.Context(), cfg, flags.verbose, args[0])
		},
	}
}

// resolveConfig loads the config file and applies flag overrides.
func resolveConfig(flags *rootFlags) (*Config, error) {
	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}

	if len(flags.command) > 0 {
		cfg.Command = flags.command
	}

	if flags.workingDir != "" {
		cfg.WorkingDir = flags.workingDir
	}

	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("no exec command configured: set --exec or command in %s", flags.configPath)
	}

	if cfg.WorkingDir == "" {
		cfg.WorkingDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
	}

	return cfg, nil
}

func runPrompt(ctx context.Context, cfg *Config, verbose bool, text string) error {
	opts := []acpclient.Option{
		acpclient.WithCommand(cfg.Command),
		acpclient.WithClientInfo("acpexec", Version),
		acpclient.WithKeepaliveInterval(cfg.Keepalive),
	}

	if verbose {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts,
			acpclient.WithLogger(logger),
			acpclient.WithStderr(func(line string) {
				fmt.Fprintf(os.Stderr, "agent: %s\n", line)
			}),
		)
	}

	client := acpclient.New(opts...)

	if err := client.Start(ctx, cfg.WorkingDir, cfg.StartTimeout); err != nil {
		return err
	}

	defer func() {
		_ = client.Stop()
	}()

	sessionID, err := client.ResumeOrCreateSession(ctx, cfg.WorkingDir, cfg.SessionTimeout)
	if err != nil {
		return err
	}

	events, err := client.SendMessage(ctx, sessionID, text, cfg.TurnTimeout)
	if err != nil {
		return err
	}

	return renderEvents(events)
}

// renderEvents writes the turn's events to stdout as human-readable lines.
func renderEvents(events iter.Seq[acpclient.Event]) error {
	var turnErr error

	inText := false

	endText := func() {
		if inText {
			fmt.Println()

			inText = false
		}
	}

	for ev := range events {
		switch e := ev.(type) {
		case acpclient.TextChunkEvent:
			fmt.Print(e.Text)

			inText = true

		case acpclient.ReasoningChunkEvent:
			// Reasoning is kept off stdout so output stays pipeable.

		case acpclient.ToolCallStartedEvent:
			endText()
			fmt.Printf("[tool %s started]\n", e.ToolName)

		case acpclient.ToolCallProgressEvent:
			endText()
			fmt.Printf("[tool %s %s]\n", e.ToolName, e.Status)

		case acpclient.PlanUpdateEvent:
			endText()

			steps := make([]string, 0, len(e.Entries))
			for _, entry := range e.Entries {
				steps = append(steps, entry.Title)
			}

			fmt.Printf("[plan: %s]\n", strings.Join(steps, " / "))

		case acpclient.ModeUpdateEvent:
			endText()
			fmt.Printf("[mode: %s]\n", e.ModeID)

		case acpclient.TurnCompleteEvent:
			endText()
			fmt.Printf("[done: %s]\n", e.StopReason)

		case acpclient.ProtocolErrorEvent:
			endText()

			turnErr = fmt.Errorf("turn failed (%d): %s", e.Code, e.Message)

		case acpclient.KeepaliveEvent:
			// Liveness only; nothing to print.
		}
	}

	return turnErr
}
