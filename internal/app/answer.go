package app

import (
	"context"
	"fmt"

	"github.com/setlistai/setlistai/internal/retrieve"
)

// AnswerResult carries the generated answer plus the matches that
// grounded it, for verbose display.
type AnswerResult struct {
	Answer  string
	Matches []retrieve.Match
}

// Answer runs the full query path: retrieve nearest setlists, then
// generate a grounded answer. An empty corpus yields the fixed no-data
// response without a model call.
func (a *App) Answer(ctx context.Context, question string) (*AnswerResult, error) {
	matches, err := a.Retriever.Retrieve(ctx, question, a.Config.TopK)
	if err != nil {
		return nil, err
	}

	answer, err := a.Generator.Answer(ctx, question, matches, a.Config.ContextBudget)
	if err != nil {
		return nil, err
	}

	return &AnswerResult{Answer: answer, Matches: matches}, nil
}

// Ready reports whether a corpus exists to answer from, with an
// instructive error when it does not.
func (a *App) Ready(ctx context.Context) error {
	stats, err := a.Store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("reading store stats: %w", err)
	}
	if stats.Setlists == 0 || a.Index.Count() == 0 {
		return fmt.Errorf("no setlist data found under %s; run 'setlistai setup' first", a.Config.DataDir)
	}
	return nil
}
