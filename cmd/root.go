// Package cmd defines the setlistai command-line interface.
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/setlistai/setlistai/internal/app"
	"github.com/setlistai/setlistai/internal/config"
	"github.com/setlistai/setlistai/internal/log"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "setlistai",
	Short: "SetlistAI - ask questions about concert setlist history",
	Long: `SetlistAI answers natural-language questions about concert setlists.

Run 'setlistai setup' once to collect and index setlist data, then run
setlistai without arguments for an interactive session.`,
	RunE: runChat,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"show retrieved setlists alongside answers")
}

// newLogger builds the CLI logger. Debug level comes from --verbose or
// the DEBUG environment variable.
func newLogger() log.Logger {
	level := slog.LevelWarn
	if verbose || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.RequireQueryKeys(); err != nil {
		printKeyHelp()
		return err
	}

	a, err := app.Setup(ctx, cfg, newLogger())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		_ = a.Close()
	}()

	if err := a.Ready(ctx); err != nil {
		return err
	}

	fmt.Println("SetlistAI - ask me about concert setlists. Type 'help' for commands.")
	return chatLoop(ctx, a, os.Stdin, os.Stdout)
}

// chatLoop reads questions line by line until quit or EOF.
func chatLoop(ctx context.Context, a *app.App, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "quit", "exit", "q":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "help":
			printHelp(out)
			continue
		case "verbose on":
			verbose = true
			fmt.Fprintln(out, "Verbose mode on.")
			continue
		case "verbose off":
			verbose = false
			fmt.Fprintln(out, "Verbose mode off.")
			continue
		}

		result, err := a.Answer(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}

		if verbose {
			printMatches(out, result)
		}
		fmt.Fprintf(out, "\nSetlistAI: %s\n", result.Answer)
	}
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, `Commands:
  help         show this help
  verbose on   show retrieved setlists with each answer
  verbose off  hide retrieved setlists
  quit         exit (also: exit, q)

Anything else is treated as a question, for example:
  Which shows opened with Dark Star?
  What did Phish play at Madison Square Garden in 1997?
  How often was Touch of Grey an encore?`)
}

func printMatches(out io.Writer, result *app.AnswerResult) {
	if len(result.Matches) == 0 {
		fmt.Fprintln(out, "\n[no setlists retrieved]")
		return
	}
	fmt.Fprintf(out, "\n[retrieved %d setlists]\n", len(result.Matches))
	for _, m := range result.Matches {
		sl := m.Setlist
		fmt.Fprintf(out, "  %.2f  %s - %s @ %s\n",
			m.Similarity, sl.ArtistName, sl.EventDate, sl.VenueName)
	}
}

func printKeyHelp() {
	fmt.Fprintln(os.Stderr, "Error: OPENAI_API_KEY environment variable not set")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Please run:")
	fmt.Fprintln(os.Stderr, "  export OPENAI_API_KEY=your-api-key")
}
