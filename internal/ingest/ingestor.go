package ingest

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/quantel/ohlcvrag/internal/chunker"
	"github.com/quantel/ohlcvrag/internal/indicators"
	"github.com/quantel/ohlcvrag/internal/keyword"
	"github.com/quantel/ohlcvrag/internal/metrics"
	"github.com/quantel/ohlcvrag/internal/models"
	"github.com/quantel/ohlcvrag/internal/storage"
	"github.com/quantel/ohlcvrag/internal/vectorstore"
)

// Ingestor runs the fetch, enrich, chunk, and index stages for tickers.
type Ingestor struct {
	source   BarSource
	chunker  *chunker.Chunker
	store    storage.Storage
	keywords keyword.Index
	vectors  *vectorstore.Store
	metrics  *metrics.Recorder
	logger   *zap.Logger

	// concurrency bounds the number of tickers processed at once.
	concurrency int
}

// NewIngestor wires the ingestion stages together.
func NewIngestor(source BarSource, ck *chunker.Chunker, store storage.Storage,
	keywords keyword.Index, vectors *vectorstore.Store,
	rec *metrics.Recorder, logger *zap.Logger, concurrency int) *Ingestor {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Ingestor{
		source:      source,
		chunker:     ck,
		store:       store,
		keywords:    keywords,
		vectors:     vectors,
		metrics:     rec,
		logger:      logger,
		concurrency: concurrency,
	}
}

// TickerResult reports the outcome for one ticker.
type TickerResult struct {
	Ticker string
	Chunks int
	Bars   int
	Err    error
}

// Report aggregates a batch run.
type Report struct {
	Results []TickerResult
}

// Failed returns the tickers that errored.
func (r *Report) Failed() []TickerResult {
	var out []TickerResult
	for _, tr := range r.Results {
		if tr.Err != nil {
			out = append(out, tr)
		}
	}
	return out
}

// TotalChunks returns the number of chunks indexed across the batch.
func (r *Report) TotalChunks() int {
	var n int
	for _, tr := range r.Results {
		n += tr.Chunks
	}
	return n
}

// IngestAll processes tickers concurrently. One ticker failing never aborts
// the others; per-ticker errors land in the report.
func (ing *Ingestor) IngestAll(ctx context.Context, tickers []string, r FetchRange) *Report {
	results := make([]TickerResult, len(tickers))

	var wg sync.WaitGroup
	sem := make(chan struct{}, ing.concurrency)
	for i, ticker := range tickers {
		wg.Add(1)
		go func(i int, ticker string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = ing.ingestOne(ctx, ticker, r)
		}(i, ticker)
	}
	wg.Wait()

	return &Report{Results: results}
}

// IngestTicker processes a single ticker.
func (ing *Ingestor) IngestTicker(ctx context.Context, ticker string, r FetchRange) TickerResult {
	return ing.ingestOne(ctx, ticker, r)
}

func (ing *Ingestor) ingestOne(ctx context.Context, ticker string, r FetchRange) TickerResult {
	res := TickerResult{Ticker: ticker}

	series, err := ing.source.Fetch(ctx, ticker, r)
	if err != nil {
		ing.metrics.RecordError("fetch")
		ing.logger.Warn("fetch failed", zap.String("ticker", ticker), zap.Error(err))
		res.Err = err
		return res
	}
	res.Bars = series.Len()

	enriched := indicators.Compute(series)
	chunks, err := ing.chunker.BuildChunks(enriched)
	if err != nil {
		ing.metrics.RecordError("chunk")
		res.Err = &models.IndexError{Op: "chunk", Err: err}
		return res
	}
	if len(chunks) == 0 {
		ing.logger.Info("series too short to chunk",
			zap.String("ticker", ticker), zap.Int("bars", series.Len()),
			zap.Int("window", ing.chunker.Window()))
		return res
	}

	if err := ing.indexChunks(ctx, series.Ticker, chunks); err != nil {
		res.Err = err
		return res
	}

	res.Chunks = len(chunks)
	ing.metrics.RecordChunksIndexed(series.Ticker, len(chunks))
	ing.logger.Info("ticker ingested",
		zap.String("ticker", series.Ticker),
		zap.Int("bars", res.Bars),
		zap.Int("chunks", res.Chunks))
	return res
}

// indexChunks writes chunks to storage, the keyword index, and the vector
// store. Existing chunks for the ticker are replaced first so stale windows
// do not linger after a re-ingest.
func (ing *Ingestor) indexChunks(ctx context.Context, ticker string, chunks []*models.Chunk) error {
	old, err := ing.store.ListChunksByTicker(ctx, ticker)
	if err != nil {
		return &models.IndexError{Op: "list existing", Err: err}
	}
	if len(old) > 0 {
		oldIDs := make([]string, len(old))
		for i, c := range old {
			oldIDs[i] = c.ID
		}
		if err := ing.vectors.Remove(ctx, oldIDs); err != nil {
			return err
		}
		for _, id := range oldIDs {
			if err := ing.keywords.Delete(ctx, id); err != nil {
				return &models.IndexError{Op: "delete keyword", Err: err}
			}
		}
		if err := ing.store.DeleteChunksByTicker(ctx, ticker); err != nil {
			return &models.IndexError{Op: "delete chunks", Err: err}
		}
	}

	if err := ing.store.BatchCreateChunks(ctx, chunks); err != nil {
		ing.metrics.RecordError("store")
		return &models.IndexError{Op: "store chunks", Err: err}
	}
	if err := ing.keywords.IndexBatch(ctx, chunks); err != nil {
		ing.metrics.RecordError("keyword")
		return &models.IndexError{Op: "index keywords", Err: err}
	}

	docs := make([]vectorstore.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = vectorstore.Document{ID: c.ID, Text: c.Document(), Metadata: c.Metadata}
	}
	if _, err := ing.vectors.Add(ctx, docs); err != nil {
		ing.metrics.RecordError("vector")
		return err
	}
	return nil
}

// RefreshIndexed re-ingests every ticker currently in storage.
func (ing *Ingestor) RefreshIndexed(ctx context.Context, r FetchRange) (*Report, error) {
	tickers, err := ing.store.ListTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tickers: %w", err)
	}
	if len(tickers) == 0 {
		return &Report{}, nil
	}
	return ing.IngestAll(ctx, tickers, r), nil
}
