package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/quantel/ohlcvrag/internal/chunker"
	"github.com/quantel/ohlcvrag/internal/embedding"
	"github.com/quantel/ohlcvrag/internal/keyword"
	"github.com/quantel/ohlcvrag/internal/models"
	"github.com/quantel/ohlcvrag/internal/storage"
	"github.com/quantel/ohlcvrag/internal/vector"
	"github.com/quantel/ohlcvrag/internal/vectorstore"
)

type ingestEnv struct {
	ingestor *Ingestor
	store    *storage.SQLiteStorage
	keywords *keyword.BleveIndex
	vectors  *vectorstore.Store
}

func newIngestEnv(t *testing.T, source BarSource) *ingestEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "chunks.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	kw, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kw.Close() })

	idx, err := vector.NewMemoryIndex(64)
	if err != nil {
		t.Fatal(err)
	}
	vs := vectorstore.New(embedding.NewHashEmbedder(64), idx)

	ck := chunker.New(chunker.Config{Window: 30, Stride: 15})
	ing := NewIngestor(source, ck, store, kw, vs, nil, zap.NewNop(), 2)
	return &ingestEnv{ingestor: ing, store: store, keywords: kw, vectors: vs}
}

func yearRange() FetchRange {
	return FetchRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestIngestAllIndexesEverything(t *testing.T) {
	env := newIngestEnv(t, NewSyntheticSource())
	ctx := context.Background()

	report := env.ingestor.IngestAll(ctx, []string{"AAPL", "MSFT"}, yearRange())
	if failed := report.Failed(); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
	if report.TotalChunks() == 0 {
		t.Fatal("no chunks indexed")
	}

	n, err := env.store.CountChunks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if int(n) != report.TotalChunks() {
		t.Errorf("storage count %d != report %d", n, report.TotalChunks())
	}
	if env.vectors.Size() != report.TotalChunks() {
		t.Errorf("vector store size %d != report %d", env.vectors.Size(), report.TotalChunks())
	}
	kwCount, _ := env.keywords.DocCount()
	if int(kwCount) != report.TotalChunks() {
		t.Errorf("keyword count %d != report %d", kwCount, report.TotalChunks())
	}
}

func TestIngestIsolatesFailingTicker(t *testing.T) {
	// CSV source over an empty dir fails every ticker; mix with synthetic
	// by using csv only and checking per-ticker isolation.
	env := newIngestEnv(t, NewCSVSource(t.TempDir()))
	report := env.ingestor.IngestAll(context.Background(), []string{"AAPL", "MSFT"}, FetchRange{})

	if len(report.Failed()) != 2 {
		t.Fatalf("want 2 failures, got %d", len(report.Failed()))
	}
	for _, tr := range report.Results {
		if tr.Err == nil {
			t.Errorf("ticker %s should have failed", tr.Ticker)
		}
	}
}

func TestIngestMixedFailure(t *testing.T) {
	env := newIngestEnv(t, &flakySource{inner: NewSyntheticSource(), fail: "MSFT"})
	report := env.ingestor.IngestAll(context.Background(), []string{"AAPL", "MSFT", "GOOG"}, yearRange())

	if len(report.Failed()) != 1 {
		t.Fatalf("want exactly 1 failure, got %d", len(report.Failed()))
	}
	if report.Failed()[0].Ticker != "MSFT" {
		t.Errorf("wrong failed ticker: %s", report.Failed()[0].Ticker)
	}
	// The healthy tickers still got indexed.
	if report.TotalChunks() == 0 {
		t.Error("healthy tickers should have produced chunks")
	}
}

func TestReingestReplacesChunks(t *testing.T) {
	env := newIngestEnv(t, NewSyntheticSource())
	ctx := context.Background()

	first := env.ingestor.IngestTicker(ctx, "AAPL", yearRange())
	if first.Err != nil {
		t.Fatal(first.Err)
	}
	second := env.ingestor.IngestTicker(ctx, "AAPL", yearRange())
	if second.Err != nil {
		t.Fatal(second.Err)
	}

	n, _ := env.store.CountChunks(ctx)
	if int(n) != second.Chunks {
		t.Errorf("re-ingest should replace: storage has %d, want %d", n, second.Chunks)
	}
	if env.vectors.Size() != second.Chunks {
		t.Errorf("vector store has %d, want %d", env.vectors.Size(), second.Chunks)
	}
}

func TestRefreshIndexed(t *testing.T) {
	env := newIngestEnv(t, NewSyntheticSource())
	ctx := context.Background()

	_ = env.ingestor.IngestAll(ctx, []string{"AAPL"}, yearRange())
	report, err := env.ingestor.RefreshIndexed(ctx, yearRange())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Results) != 1 || report.Results[0].Ticker != "AAPL" {
		t.Errorf("refresh results: %+v", report.Results)
	}
}

type flakySource struct {
	inner BarSource
	fail  string
}

func (f *flakySource) Name() string { return "flaky" }

func (f *flakySource) Fetch(ctx context.Context, ticker string, r FetchRange) (models.Series, error) {
	if ticker == f.fail {
		return models.Series{}, &models.DataFetchError{Ticker: ticker, Source: f.Name(), Err: context.DeadlineExceeded}
	}
	return f.inner.Fetch(ctx, ticker, r)
}
