// Package retrieve joins vector-index matches back to full relational
// records and formats them into the bounded context block handed to the
// language model.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/setlistai/setlistai/internal/knowledge"
	"github.com/setlistai/setlistai/internal/process"
)

// maxContextSongs caps how many main-set song names one context block
// lists, to keep prompts bounded.
const maxContextSongs = 15

// Searcher is the vector-index lookup the retriever depends on.
// Interface defined by the consumer; *knowledge.Index satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]knowledge.Result, error)
}

// SetlistStore is the relational lookup the retriever depends on.
// *store.Store satisfies it.
type SetlistStore interface {
	GetSetlists(ctx context.Context, ids []string) ([]*process.Setlist, error)
}

// Match is one retrieved setlist with its similarity score.
type Match struct {
	Setlist    *process.Setlist
	Similarity float32
}

// Retriever performs query-time retrieval.
type Retriever struct {
	index  Searcher
	store  SetlistStore
	logger *slog.Logger
}

// New creates a Retriever.
func New(index Searcher, store SetlistStore, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{index: index, store: store, logger: logger}
}

// Retrieve embeds the query, finds the topK nearest setlists and fetches
// their full records, preserving similarity-ranked order. An empty index
// yields an empty slice.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]Match, error) {
	results, err := r.index.Search(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("searching vector index: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	ids := make([]string, len(results))
	similarity := make(map[string]float32, len(results))
	for i, res := range results {
		ids[i] = res.SetlistID
		similarity[res.SetlistID] = res.Similarity
	}

	setlists, err := r.store.GetSetlists(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching setlists: %w", err)
	}

	matches := make([]Match, len(setlists))
	for i, sl := range setlists {
		matches[i] = Match{Setlist: sl, Similarity: similarity[sl.ID]}
	}

	r.logger.Debug("retrieved setlists", "query", query, "matches", len(matches))
	return matches, nil
}

// FormatContext renders matches into the natural-language context block
// for the prompt. Blocks are appended highest-similarity first and
// appending stops before the character budget would overflow, so the most
// relevant records always survive truncation. A top match too large for
// the whole budget is cut to fit rather than dropped, so the model never
// gets a bare header.
func FormatContext(matches []Match, budget int) string {
	if len(matches) == 0 {
		return "No relevant setlists found."
	}

	var b strings.Builder
	b.WriteString("Retrieved concert setlists:\n")

	for i, m := range matches {
		block := formatMatch(i+1, m)
		if budget > 0 && b.Len()+len(block) > budget {
			if i == 0 {
				if remain := budget - b.Len(); remain > 0 {
					b.WriteString(block[:remain])
				}
			}
			break
		}
		b.WriteString(block)
	}

	return b.String()
}

// formatMatch renders a single numbered context block.
func formatMatch(n int, m Match) string {
	sl := m.Setlist

	var b strings.Builder
	fmt.Fprintf(&b, "\n%d. %s - %s\n", n, sl.ArtistName, sl.EventDate)

	venue := "   Venue: " + sl.VenueName
	if sl.City != "" {
		venue += ", " + sl.City
	}
	if sl.Country != "" {
		venue += ", " + sl.Country
	}
	b.WriteString(venue + "\n")

	if sl.TourName != "" {
		fmt.Fprintf(&b, "   Tour: %s\n", sl.TourName)
	}

	var regular, encore []string
	for _, song := range sl.Songs {
		if song.Encore {
			encore = append(encore, song.Name)
		} else {
			regular = append(regular, song.Name)
		}
	}

	if len(regular) > 0 {
		listed := regular
		if len(listed) > maxContextSongs {
			listed = listed[:maxContextSongs]
		}
		line := "   Setlist: " + strings.Join(listed, ", ")
		if len(regular) > maxContextSongs {
			line += fmt.Sprintf("... (%d total songs)", len(regular))
		}
		b.WriteString(line + "\n")
	}

	if len(encore) > 0 {
		fmt.Fprintf(&b, "   Encores: %s\n", strings.Join(encore, ", "))
	}

	fmt.Fprintf(&b, "   Total songs: %d\n", sl.TotalSongs)
	fmt.Fprintf(&b, "   Relevance: %.2f\n", m.Similarity)

	return b.String()
}
