// Package knowledge manages the local vector index over setlist summaries.
//
// Embeddings come from a Genkit ai.Embedder; vectors live in a chromem-go
// persistent collection on disk. Document ids are setlist primary keys, so
// every search result joins 1:1 back to the relational store.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/firebase/genkit/go/ai"
	chromem "github.com/philippgille/chromem-go"
)

// CollectionName is the chromem-go collection holding setlist vectors.
const CollectionName = "setlists"

// EmbedBatchSize is how many summaries go into one embedding request.
// The embedding API accepts batched input; batching cuts call count by
// two orders of magnitude during setup.
const EmbedBatchSize = 100

// maxEmbedAttempts bounds rate-limit retries before a batch is failed.
const maxEmbedAttempts = 5

// Document is one setlist summary to be indexed.
type Document struct {
	SetlistID string
	Summary   string
}

// Result is a single nearest-neighbour match.
type Result struct {
	SetlistID  string
	Summary    string
	Similarity float32
}

// AddStats reports the outcome of a batch Add.
type AddStats struct {
	Indexed int
	Failed  int
}

// Index is the persistent vector index.
type Index struct {
	collection *chromem.Collection
	embedder   ai.Embedder
	logger     *slog.Logger
}

// Open opens (or creates) the persistent index under dir.
func Open(dir string, embedder ai.Embedder, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("opening vector index: %w", err)
	}

	// The embedding func only fires for documents added without a
	// precomputed vector (e.g. queries routed through Query); batch adds
	// supply vectors up front.
	collection, err := db.GetOrCreateCollection(CollectionName, nil, NewEmbeddingFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("opening collection %q: %w", CollectionName, err)
	}

	return &Index{
		collection: collection,
		embedder:   embedder,
		logger:     logger,
	}, nil
}

// NewEmbeddingFunc bridges a Genkit ai.Embedder to chromem-go's
// EmbeddingFunc. chromem-go normalizes vectors itself.
func NewEmbeddingFunc(embedder ai.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		resp, err := embedder.Embed(ctx, &ai.EmbedRequest{
			Input: []*ai.Document{ai.DocumentFromText(text, nil)},
		})
		if err != nil {
			return nil, fmt.Errorf("embed failed: %w", err)
		}
		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
			return nil, errors.New("no embeddings returned")
		}
		return resp.Embeddings[0].Embedding, nil
	}
}

// Add indexes documents in batches. A failed batch falls back to
// per-document adds so one bad entry cannot sink its whole batch; an error
// is returned only when nothing at all could be indexed.
func (ix *Index) Add(ctx context.Context, docs []Document) (AddStats, error) {
	var stats AddStats

	for start := 0; start < len(docs); start += EmbedBatchSize {
		end := min(start+EmbedBatchSize, len(docs))
		batch := docs[start:end]

		if err := ix.addBatch(ctx, batch); err != nil {
			ix.logger.Warn("batch embedding failed, falling back to individual adds",
				"batch_start", start, "error", err)
			for _, doc := range batch {
				if err := ix.addBatch(ctx, []Document{doc}); err != nil {
					ix.logger.Error("failed to index setlist",
						"id", doc.SetlistID, "error", err)
					stats.Failed++
					continue
				}
				stats.Indexed++
			}
			continue
		}
		stats.Indexed += len(batch)
	}

	if stats.Indexed == 0 && len(docs) > 0 {
		return stats, fmt.Errorf("failed to index any of %d setlists", len(docs))
	}

	ix.logger.Info("vector index updated",
		"indexed", stats.Indexed, "failed", stats.Failed, "total", ix.collection.Count())
	return stats, nil
}

// addBatch embeds one batch in a single API call and stores the vectors.
func (ix *Index) addBatch(ctx context.Context, batch []Document) error {
	texts := make([]string, len(batch))
	for i, doc := range batch {
		texts[i] = doc.Summary
	}

	vectors, err := ix.embed(ctx, texts)
	if err != nil {
		return err
	}

	chromemDocs := make([]chromem.Document, len(batch))
	for i, doc := range batch {
		chromemDocs[i] = chromem.Document{
			ID:        doc.SetlistID,
			Content:   doc.Summary,
			Embedding: vectors[i],
		}
	}

	if err := ix.collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		return fmt.Errorf("storing vectors: %w", err)
	}
	return nil
}

// Search embeds the query and returns up to topK matches in non-increasing
// similarity order. An empty index yields an empty result, not an error.
func (ix *Index) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	count := ix.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}
	if topK < 1 {
		return nil, nil
	}

	vectors, err := ix.embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := ix.collection.QueryEmbedding(ctx, vectors[0], topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{
			SetlistID:  m.ID,
			Summary:    m.Content,
			Similarity: m.Similarity,
		}
	}
	return results, nil
}

// Count returns the number of indexed setlists.
func (ix *Index) Count() int {
	return ix.collection.Count()
}

// embed requests embeddings for texts in one call, retrying rate-limit and
// transient failures with exponential backoff up to maxEmbedAttempts.
func (ix *Index) embed(ctx context.Context, texts []string) ([][]float32, error) {
	input := make([]*ai.Document, len(texts))
	for i, t := range texts {
		input[i] = ai.DocumentFromText(t, nil)
	}

	var vectors [][]float32
	op := func() error {
		resp, err := ix.embedder.Embed(ctx, &ai.EmbedRequest{Input: input})
		if err != nil {
			if isRetryable(err) {
				ix.logger.Warn("embedding API throttled, backing off", "error", err)
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Embeddings) != len(texts) {
			return backoff.Permanent(fmt.Errorf(
				"embedding count mismatch: got %d, want %d", len(resp.Embeddings), len(texts)))
		}

		vectors = make([][]float32, len(resp.Embeddings))
		for i, e := range resp.Embeddings {
			if len(e.Embedding) == 0 {
				return backoff.Permanent(fmt.Errorf("empty embedding at index %d", i))
			}
			vectors[i] = e.Embedding
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, maxEmbedAttempts-1), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("generating embeddings: %w", err)
	}
	return vectors, nil
}

// isRetryable reports whether an embedding error is worth retrying.
// Genkit wraps provider errors, so this matches on the provider's message.
func isRetryable(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "quota", "unavailable", "overloaded", "timeout"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
