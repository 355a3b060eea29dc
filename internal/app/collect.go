package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/setlistai/setlistai/internal/config"
	"github.com/setlistai/setlistai/internal/knowledge"
	"github.com/setlistai/setlistai/internal/process"
	"github.com/setlistai/setlistai/internal/setlistfm"
	"github.com/setlistai/setlistai/internal/store"
)

// DefaultArtists seeds the corpus when no artists are given on the
// command line.
var DefaultArtists = []string{"Grateful Dead", "Phish", "Dead & Company"}

// ArtistResult is the per-artist outcome of a setup run.
type ArtistResult struct {
	Name     string
	Setlists int
	Err      error
}

// SetupResult summarizes one full collection run.
type SetupResult struct {
	Artists    []ArtistResult
	Store      store.Stats
	Indexed    int
	IndexErr   error
	IndexTotal int
}

// RunSetup collects setlists for the given artists, persists them to the
// relational store and indexes their summaries. One failing artist is
// recorded and skipped, but an authentication failure aborts the whole
// run: the key is wrong for every artist and each extra attempt costs a
// rate-limited request. Otherwise the run fails only when nothing was
// collected.
func (a *App) RunSetup(ctx context.Context, artists []string) (*SetupResult, error) {
	if a.Source == nil {
		return nil, fmt.Errorf("%w: SETLISTFM_API_KEY", config.ErrMissingAPIKey)
	}
	if len(artists) == 0 {
		artists = DefaultArtists
	}

	result := &SetupResult{}
	var docs []knowledge.Document

	for _, name := range artists {
		ar := ArtistResult{Name: name}

		artistDocs, count, err := a.collectArtist(ctx, name)
		if err != nil {
			if errors.Is(err, setlistfm.ErrAuth) {
				return result, fmt.Errorf("collecting %q: %w", name, err)
			}
			a.Logger.Error("artist collection failed, skipping", "artist", name, "error", err)
			ar.Err = err
			result.Artists = append(result.Artists, ar)
			continue
		}

		ar.Setlists = count
		result.Artists = append(result.Artists, ar)
		docs = append(docs, artistDocs...)
	}

	if len(docs) == 0 {
		return result, fmt.Errorf("no setlists collected for any of %d artists", len(artists))
	}

	stats, err := a.Index.Add(ctx, docs)
	if err != nil {
		return result, fmt.Errorf("indexing setlists: %w", err)
	}
	result.Indexed = stats.Indexed
	result.IndexTotal = a.Index.Count()
	if stats.Failed > 0 {
		result.IndexErr = fmt.Errorf("%d setlists failed to index", stats.Failed)
	}

	if result.Store, err = a.Store.Stats(ctx); err != nil {
		return result, fmt.Errorf("reading store stats: %w", err)
	}

	a.Logger.Info("setup complete",
		"artists", len(artists),
		"setlists", result.Store.Setlists,
		"indexed", result.Indexed)
	return result, nil
}

// collectArtist runs the full pipeline for one artist: search, fetch,
// archive raw and processed JSON, upsert and return index documents.
func (a *App) collectArtist(ctx context.Context, name string) ([]knowledge.Document, int, error) {
	artist, err := a.Source.SearchArtist(ctx, name)
	if err != nil {
		return nil, 0, fmt.Errorf("searching artist: %w", err)
	}

	raw, err := a.Source.ArtistSetlists(ctx, artist.MBID, a.Config.MaxSetlistsPerArtist)
	if err != nil {
		return nil, 0, fmt.Errorf("fetching setlists: %w", err)
	}
	if len(raw) == 0 {
		return nil, 0, fmt.Errorf("no setlists found for %q", artist.Name)
	}

	slug := artistSlug(artist.Name)
	if err := a.Source.SaveRaw(raw, filepath.Join(a.Config.RawDir(), slug+".json")); err != nil {
		// Raw archive is an audit trail, not a dependency of the pipeline.
		a.Logger.Warn("saving raw responses failed", "artist", artist.Name, "error", err)
	}

	setlists := process.NormalizeAll(raw, a.Logger)
	if len(setlists) == 0 {
		return nil, 0, fmt.Errorf("no usable setlists for %q after normalization", artist.Name)
	}

	if err := process.WriteProcessed(setlists, filepath.Join(a.Config.ProcessedDir(), slug+".json")); err != nil {
		a.Logger.Warn("saving processed setlists failed", "artist", artist.Name, "error", err)
	}

	docs := make([]knowledge.Document, 0, len(setlists))
	for _, sl := range setlists {
		if err := a.Store.UpsertSetlist(ctx, sl); err != nil {
			a.Logger.Error("storing setlist failed", "id", sl.ID, "error", err)
			continue
		}
		docs = append(docs, knowledge.Document{SetlistID: sl.ID, Summary: sl.Summary})
	}
	if len(docs) == 0 {
		return nil, 0, fmt.Errorf("no setlists stored for %q", artist.Name)
	}

	a.Logger.Info("artist collected",
		"artist", artist.Name, "fetched", len(raw), "stored", len(docs))
	return docs, len(docs), nil
}

// artistSlug derives a filesystem-safe file stem from an artist name.
func artistSlug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "artist"
	}
	return slug
}
