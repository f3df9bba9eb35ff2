// Package vector provides the raw vector index used for semantic chunk
// retrieval. It stores unit vectors keyed by chunk ID; metadata lives in the
// store layer above.
package vector

import "context"

// Index defines vector storage and similarity search.
type Index interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Remove(ctx context.Context, ids []string) error
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// Result is a single search hit. Score is the inner product, which equals
// cosine similarity for unit vectors.
type Result struct {
	ID    string
	Score float64
}
