package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/quantel/ohlcvrag/internal/models"
)

// chunkDoc is the shape bleve indexes per chunk.
type chunkDoc struct {
	Summary string `json:"summary"`
	Ticker  string `json:"ticker"`
	Trend   string `json:"trend"`
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// reused so unchanged chunks are not re-indexed; remove the directory to
// force a full rebuild after a mapping change.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	summaryMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so indicator
	// terms like "RSI" and "overbought" match exactly.
	summaryMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("summary", summaryMapping)

	tickerMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("ticker", tickerMapping)
	trendMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("trend", trendMapping)

	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes one chunk by its ID.
func (b *BleveIndex) Index(ctx context.Context, chunk *models.Chunk) error {
	return b.index.Index(chunk.ID, toDoc(chunk))
}

// IndexBatch indexes chunks in one Bleve batch.
func (b *BleveIndex) IndexBatch(ctx context.Context, chunks []*models.Chunk) error {
	batch := b.index.NewBatch()
	for _, chunk := range chunks {
		if err := batch.Index(chunk.ID, toDoc(chunk)); err != nil {
			return fmt.Errorf("failed to add chunk %s to batch: %w", chunk.ID, err)
		}
	}
	return b.index.Batch(batch)
}

// Search runs a match query over summaries, optionally restricted to one
// ticker.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, ticker string) ([]*Result, error) {
	mq := bleve.NewMatchQuery(query)
	mq.SetField("summary")

	var q blevequery.Query = mq
	if ticker != "" {
		tq := bleve.NewTermQuery(strings.ToUpper(ticker))
		tq.SetField("ticker")
		q = bleve.NewConjunctionQuery(mq, tq)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Delete removes a chunk from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the total number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

func toDoc(chunk *models.Chunk) chunkDoc {
	trend, _ := chunk.Metadata[models.MetaTrend].(string)
	return chunkDoc{
		Summary: chunk.Summary,
		Ticker:  chunk.Ticker,
		Trend:   trend,
	}
}
