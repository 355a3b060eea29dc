// Package testutil provides shared test fakes.
package testutil

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// EmbeddingDim is the vector width produced by FakeEmbedder.
const EmbeddingDim = 64

// FakeEmbedder is a deterministic ai.Embedder. Vectors are bag-of-words
// projections, so texts sharing words score higher cosine similarity than
// unrelated texts. That is enough signal for retrieval-ordering tests
// without any network dependency.
type FakeEmbedder struct {
	// FailCount makes the next N calls return Err before succeeding.
	FailCount int
	// Err is the error returned while failing. Defaults to a generic error
	// via ai package callers; set explicitly in tests.
	Err error

	// Calls counts Embed invocations.
	Calls int
	// BatchSizes records the input size of every call.
	BatchSizes []int
}

// Name implements ai.Embedder.
func (f *FakeEmbedder) Name() string {
	return "fake-embedder"
}

// Register implements ai.Embedder. No-op for tests.
func (f *FakeEmbedder) Register(api.Registry) {}

// Embed implements ai.Embedder.
func (f *FakeEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	f.Calls++
	f.BatchSizes = append(f.BatchSizes, len(req.Input))

	if f.FailCount > 0 {
		f.FailCount--
		return nil, f.Err
	}

	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		var text strings.Builder
		for _, part := range doc.Content {
			text.WriteString(part.Text)
			text.WriteString(" ")
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{
			Embedding: Vector(text.String()),
		})
	}
	return resp, nil
}

// Vector maps text to a deterministic bag-of-words embedding.
func Vector(text string) []float32 {
	v := make([]float32, EmbeddingDim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?:;()\"'")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		v[h.Sum32()%EmbeddingDim]++
	}
	return v
}
