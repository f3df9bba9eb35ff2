package embedding

import (
	"context"
	"math"

	"github.com/quantel/ohlcvrag/pkg/utils"
)

// HashEmbedder is a deterministic local embedder. The vector is derived from
// word hashes, so texts sharing vocabulary land near each other and the same
// text always maps to the same unit-length vector. It needs no model file and
// is the default provider.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a hash embedder of the given dimensions.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic embedding for text.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	emb := make([]float32, e.dimensions)
	for _, word := range SplitWords(text) {
		h := HashString(word)
		// Each word contributes to a handful of positions so shared
		// vocabulary yields overlapping components. Index math runs in
		// uint64: h*k can overflow int for large hashes, and a negative
		// remainder would be out of range.
		for k := 1; k <= 4; k++ {
			idx := int((uint64(h) * uint64(k)) % uint64(e.dimensions))
			emb[idx] += float32(math.Sin(float64(h)*float64(k))*0.5 + 0.1)
		}
	}
	if allZero(emb) {
		emb[0] = 1
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *HashEmbedder) Close() error {
	return nil
}

func allZero(x []float32) bool {
	for _, v := range x {
		if v != 0 {
			return false
		}
	}
	return true
}
