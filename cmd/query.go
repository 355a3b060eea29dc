package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/setlistai/setlistai/internal/app"
	"github.com/setlistai/setlistai/internal/config"
)

var queryQuestion string

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a single question and exit",
	Args:  cobra.ArbitraryArgs,
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryQuestion, "question", "q", "",
		"question to ask (alternative to positional arguments)")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		question = strings.TrimSpace(queryQuestion)
	}
	if question == "" {
		return fmt.Errorf("no question given; pass it as an argument or with -q")
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

	result, err := a.Answer(ctx, question)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	if verbose {
		printMatches(os.Stderr, result)
	}
	fmt.Println(result.Answer)
	return nil
}
