// Package keyword provides BM25 search over chunk summaries. The retriever
// blends these scores with semantic similarity.
package keyword

import (
	"context"

	"github.com/quantel/ohlcvrag/internal/models"
)

// Index defines keyword search operations over chunks.
type Index interface {
	Index(ctx context.Context, chunk *models.Chunk) error
	IndexBatch(ctx context.Context, chunks []*models.Chunk) error
	// Search runs a match query over summaries. A non-empty ticker
	// restricts results to that ticker.
	Search(ctx context.Context, query string, limit int, ticker string) ([]*Result, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

// Result is a single keyword search hit. ID is the chunk ID.
type Result struct {
	ID    string
	Score float64
}
