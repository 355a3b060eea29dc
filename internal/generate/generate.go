// Package generate turns retrieved setlist context plus a user question
// into a grounded natural-language answer.
package generate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/setlistai/setlistai/internal/retrieve"
)

// NoDataResponse is returned without calling the model when retrieval
// found nothing to ground an answer on.
const NoDataResponse = "I don't have any setlist data matching your question. " +
	"Try running setup first, or ask about one of the collected artists."

// systemPrompt pins the model to the retrieved data. Answers must come
// from the context block, never from the model's own training data.
const systemPrompt = `You are SetlistAI, an assistant that answers questions about concert setlist history.

Answer using ONLY the setlist data provided in the context. Rules:
- If the context does not contain the information needed, say so plainly instead of guessing.
- Cite concrete shows by artist, date and venue when they support your answer.
- Keep answers concise and factual.
- Never invent setlists, dates or venues that are not in the context.`

// Config holds model parameters for answer generation.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Generator produces answers with a Genkit model.
type Generator struct {
	cfg    Config
	logger *slog.Logger

	// generate is swapped out in tests; production wiring closes over
	// genkit.Generate.
	generate func(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error)
}

// New creates a Generator backed by g.
func New(g *genkit.Genkit, cfg Config, logger *slog.Logger) *Generator {
	gen := newWithFunc(cfg, logger, func(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error) {
		return genkit.Generate(ctx, g, opts...)
	})
	return gen
}

func newWithFunc(cfg Config, logger *slog.Logger, fn func(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error)) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{cfg: cfg, logger: logger, generate: fn}
}

// Answer formats matches into a context block and asks the model the
// user's question against it. With no matches it short-circuits to
// NoDataResponse and never touches the model.
func (gen *Generator) Answer(ctx context.Context, question string, matches []retrieve.Match, contextBudget int) (string, error) {
	if len(matches) == 0 {
		gen.logger.Debug("no retrieval matches, skipping generation")
		return NoDataResponse, nil
	}

	contextBlock := retrieve.FormatContext(matches, contextBudget)
	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextBlock, question)

	resp, err := gen.generate(ctx,
		ai.WithModelName("openai/"+gen.cfg.Model),
		ai.WithSystem(systemPrompt),
		ai.WithPrompt(prompt),
		// The OpenAI-compat plugin decodes map configs with the wire-format
		// field names.
		ai.WithConfig(map[string]any{
			"temperature": gen.cfg.Temperature,
			"max_tokens":  gen.cfg.MaxTokens,
		}),
	)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}

	answer := resp.Text()
	gen.logger.Debug("answer generated", "model", gen.cfg.Model, "chars", len(answer))
	return answer, nil
}
