// Package app wires configuration, storage, the vector index and the AI
// provider into the two application entry points: data collection and
// question answering.
package app

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/setlistai/setlistai/internal/config"
	"github.com/setlistai/setlistai/internal/knowledge"
	"github.com/setlistai/setlistai/internal/retrieve"
	"github.com/setlistai/setlistai/internal/setlistfm"
	"github.com/setlistai/setlistai/internal/store"
)

// ArtistSource fetches raw setlist data for an artist.
// *setlistfm.Client satisfies it.
type ArtistSource interface {
	SearchArtist(ctx context.Context, name string) (*setlistfm.Artist, error)
	ArtistSetlists(ctx context.Context, mbid string, max int) ([]setlistfm.Setlist, error)
	SaveRaw(setlists []setlistfm.Setlist, path string) error
}

// AnswerGenerator produces a grounded answer from retrieval matches.
// *generate.Generator satisfies it.
type AnswerGenerator interface {
	Answer(ctx context.Context, question string, matches []retrieve.Match, contextBudget int) (string, error)
}

// App holds all initialized components.
// Call Close to release resources.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder

	Store     *store.Store
	Index     *knowledge.Index
	Retriever *retrieve.Retriever
	Generator AnswerGenerator
	Source    ArtistSource
}

// Close releases everything Setup initialized. Safe on a partially
// initialized App.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
