// Package storage persists chunks so the vector index can be rebuilt without
// re-fetching bar data.
package storage

import (
	"context"

	"github.com/quantel/ohlcvrag/internal/models"
)

// Storage defines chunk persistence operations.
type Storage interface {
	CreateChunk(ctx context.Context, chunk *models.Chunk) error
	BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	ListChunksByTicker(ctx context.Context, ticker string) ([]*models.Chunk, error)
	ListChunks(ctx context.Context, offset, limit int) ([]*models.Chunk, error)
	DeleteChunksByTicker(ctx context.Context, ticker string) error
	ListTickers(ctx context.Context) ([]string, error)
	CountChunks(ctx context.Context) (int64, error)
	Close() error
}
