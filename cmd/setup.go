package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/setlistai/setlistai/internal/app"
	"github.com/setlistai/setlistai/internal/config"
)

var (
	setupArtists     []string
	setupMaxSetlists int
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Collect and index setlist data",
	Long: `Setup fetches setlists from setlist.fm for the configured artists,
stores them in the local database and builds the vector index the query
commands search against. Safe to re-run; existing records are updated in
place.`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().StringSliceVar(&setupArtists, "artists", nil,
		"artists to collect (default: Grateful Dead, Phish, Dead & Company)")
	setupCmd.Flags().IntVar(&setupMaxSetlists, "max-setlists", 0,
		"cap on setlists per artist (default: from config)")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.RequireSetupKeys(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: setup needs both SETLISTFM_API_KEY and OPENAI_API_KEY set")
		return err
	}
	if setupMaxSetlists > 0 {
		cfg.MaxSetlistsPerArtist = setupMaxSetlists
	}

	a, err := app.Setup(ctx, cfg, newLogger())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		_ = a.Close()
	}()

	fmt.Println("Collecting setlists...")
	result, err := a.RunSetup(ctx, setupArtists)
	if err != nil {
		return err
	}
	printSetupResult(result)
	return nil
}

func printSetupResult(result *app.SetupResult) {
	for _, ar := range result.Artists {
		if ar.Err != nil {
			fmt.Printf("  %-20s failed: %v\n", ar.Name, ar.Err)
			continue
		}
		fmt.Printf("  %-20s %d setlists\n", ar.Name, ar.Setlists)
	}

	fmt.Printf("\nDatabase: %d artists, %d venues, %d setlists, %d songs\n",
		result.Store.Artists, result.Store.Venues, result.Store.Setlists, result.Store.Songs)
	fmt.Printf("Vector index: %d indexed (%d total)\n", result.Indexed, result.IndexTotal)
	if result.IndexErr != nil {
		fmt.Printf("Warning: %v\n", result.IndexErr)
	}
	fmt.Println("\nSetup complete. Run 'setlistai' to start asking questions.")
}
