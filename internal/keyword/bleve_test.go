package keyword

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantel/ohlcvrag/internal/models"
)

func summaryChunk(id, ticker, trend, summary string) *models.Chunk {
	return &models.Chunk{
		ID:        id,
		Ticker:    ticker,
		StartDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Summary:   summary,
		Metadata:  map[string]interface{}{models.MetaTrend: trend},
	}
}

func openTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex(filepath.Join(t.TempDir(), "bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestBleveIndex_SearchFindsSummaryTerms(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	chunk := summaryChunk("AAPL_20240102_20240131", "AAPL", models.TrendUptrend,
		"AAPL OHLCV data: Overbought conditions (RSI > 70), significant upward movement")
	if err := idx.Index(ctx, chunk); err != nil {
		t.Fatalf("Index: %v", err)
	}

	results, err := idx.Search(ctx, "overbought", 10, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected a hit for \"overbought\" in summary")
	}
	if results[0].ID != chunk.ID {
		t.Errorf("first result ID = %q, want %q", results[0].ID, chunk.ID)
	}

	// Standard analyzer (no stemming) keeps indicator terms intact.
	results2, err := idx.Search(ctx, "rsi", 10, "")
	if err != nil {
		t.Fatalf("Search rsi: %v", err)
	}
	if len(results2) == 0 {
		t.Fatal("expected a hit for \"rsi\" in summary")
	}
}

func TestBleveIndex_TickerRestriction(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	err := idx.IndexBatch(ctx, []*models.Chunk{
		summaryChunk("AAPL_20240102_20240131", "AAPL", models.TrendUptrend, "uptrend bullish momentum"),
		summaryChunk("MSFT_20240102_20240131", "MSFT", models.TrendUptrend, "uptrend bullish momentum"),
	})
	if err != nil {
		t.Fatalf("IndexBatch: %v", err)
	}

	results, err := idx.Search(ctx, "uptrend", 10, "msft")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("want 1 result, got %d", len(results))
	}
	if results[0].ID != "MSFT_20240102_20240131" {
		t.Errorf("ticker restriction leaked: %q", results[0].ID)
	}
}

func TestBleveIndex_ReopenKeepsChunks(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "bleve")
	ctx := context.Background()

	idx1, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	chunk := summaryChunk("AAPL_20240102_20240131", "AAPL", models.TrendSideways, "consolidation pattern")
	if err := idx1.Index(ctx, chunk); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := idx1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	idx2, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex (reopen): %v", err)
	}
	defer idx2.Close()

	results, err := idx2.Search(ctx, "consolidation", 10, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("reopened index should keep chunks, got %d results", len(results))
	}
}

func TestBleveIndex_Delete(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	chunk := summaryChunk("AAPL_20240102_20240131", "AAPL", models.TrendDowntrend, "oversold capitulation")
	if err := idx.Index(ctx, chunk); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := idx.Delete(ctx, chunk.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	results, err := idx.Search(ctx, "oversold", 10, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results after delete, got %d", len(results))
	}
}

func TestNewBleveIndex_createsDir(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "sub", "bleve")

	idx, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	_ = idx.Close()

	if _, err := os.Stat(indexPath); err != nil {
		t.Errorf("index path should exist: %v", err)
	}
}
