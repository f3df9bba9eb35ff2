package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/quantel/ohlcvrag/internal/cache"
	"github.com/quantel/ohlcvrag/internal/embedding"
	"github.com/quantel/ohlcvrag/internal/keyword"
	"github.com/quantel/ohlcvrag/internal/llm"
	"github.com/quantel/ohlcvrag/internal/models"
	"github.com/quantel/ohlcvrag/internal/prompt"
	"github.com/quantel/ohlcvrag/internal/retriever"
	"github.com/quantel/ohlcvrag/internal/storage"
	"github.com/quantel/ohlcvrag/internal/vector"
	"github.com/quantel/ohlcvrag/internal/vectorstore"
)

type pipelineEnv struct {
	pipeline *Pipeline
	mock     *llm.MockClient
}

type window struct {
	ticker  string
	start   time.Time
	summary string
	trend   string
	rsi     float64
	pct     float64
}

func testWindows() []window {
	day := func(m, d int) time.Time { return time.Date(2024, time.Month(m), d, 0, 0, 0, 0, time.UTC) }
	return []window{
		{"AAPL", day(1, 2), "AAPL OHLCV data: Dominant trend: uptrend. Overbought conditions (RSI > 70). Strong bullish momentum", models.TrendUptrend, 76, 8.2},
		{"AAPL", day(2, 1), "AAPL OHLCV data: Dominant trend: uptrend. Steady climb continued gains", models.TrendUptrend, 64, 4.1},
		{"MSFT", day(1, 2), "MSFT OHLCV data: Dominant trend: downtrend. Oversold conditions (RSI < 30). Bearish pressure", models.TrendDowntrend, 27, -6.3},
	}
}

func newPipelineEnv(t *testing.T, windows []window) *pipelineEnv {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

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

	idx, err := vector.NewMemoryIndex(128)
	if err != nil {
		t.Fatal(err)
	}
	vs := vectorstore.New(embedding.NewHashEmbedder(128), idx)

	var chunks []*models.Chunk
	var docs []vectorstore.Document
	for _, w := range windows {
		end := w.start.AddDate(0, 0, 29)
		c := &models.Chunk{
			ID:        models.ChunkID(w.ticker, w.start, end),
			Ticker:    w.ticker,
			StartDate: w.start,
			EndDate:   end,
			Bars:      []models.Bar{{Date: w.start, Open: 100, High: 110, Low: 95, Close: 105, Volume: 1_000_000}},
			Summary:   w.summary,
			Metadata: map[string]interface{}{
				models.MetaTicker:     w.ticker,
				models.MetaTrend:      w.trend,
				models.MetaRSIAvg:     w.rsi,
				models.MetaPctChange:  w.pct,
				models.MetaAvgVolume:  1_000_000.0,
				models.MetaVolatility: 0.012,
				models.MetaStartDate:  w.start.Format("2006-01-02"),
				models.MetaEndDate:    end.Format("2006-01-02"),
			},
		}
		chunks = append(chunks, c)
		docs = append(docs, vectorstore.Document{ID: c.ID, Text: c.Document(), Metadata: c.Metadata})
	}
	if len(chunks) > 0 {
		if err := store.BatchCreateChunks(ctx, chunks); err != nil {
			t.Fatal(err)
		}
		if err := kw.IndexBatch(ctx, chunks); err != nil {
			t.Fatal(err)
		}
		if _, err := vs.Add(ctx, docs); err != nil {
			t.Fatal(err)
		}
	}

	r := retriever.New(vs, kw, store, retriever.Config{}, zap.NewNop())
	prompts, err := prompt.NewManager()
	if err != nil {
		t.Fatal(err)
	}
	mock := llm.NewMockClient("test")
	p := New(r, prompts, mock, cache.NewTTLCache(), nil, zap.NewNop(), Config{})
	return &pipelineEnv{pipeline: p, mock: mock}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		hint  string
		want  models.QueryType
	}{
		{"What is the RSI?", "", models.QueryTechnical},
		{"Show me the MACD", "", models.QueryTechnical},
		{"What's the Bollinger Band?", "", models.QueryTechnical},
		{"Compare AAPL and MSFT", "", models.QueryComparison},
		{"AAPL vs GOOGL performance", "", models.QueryComparison},
		{"Will the stock go up next month?", "", models.QueryPrediction},
		{"Find breakout patterns", "", models.QueryPattern},
		{"What is the market trend?", "", models.QueryGeneral},
		{"Tell me about recent activity", "", models.QueryGeneral},
		{"anything at all", "technical", models.QueryTechnical},
		{"anything at all", "bogus", models.QueryGeneral},
	}
	for _, tt := range tests {
		if got := classify(tt.query, tt.hint); got != tt.want {
			t.Errorf("classify(%q, %q) = %s, want %s", tt.query, tt.hint, got, tt.want)
		}
	}
}

func TestExtractPattern(t *testing.T) {
	tests := []struct {
		query, want string
	}{
		{"show me bullish setups", models.PatternUptrend},
		{"any bearish signals?", models.PatternDowntrend},
		{"did it break above resistance", models.PatternBreakout},
		{"looking for a turnaround", models.PatternReversal},
		{"is it ranging", models.PatternConsolidation},
		{"how is volume", ""},
	}
	for _, tt := range tests {
		if got := extractPattern(tt.query); got != tt.want {
			t.Errorf("extractPattern(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestEvaluateBounds(t *testing.T) {
	long := strings.Repeat("trend analysis indicator 1. 2. ", 20)
	for _, answer := range []string{"", "short", long, strings.Repeat("x", 6000)} {
		ev := evaluate(answer, "what is the trend")
		if ev.Confidence < 0 || ev.Confidence > 1 {
			t.Errorf("confidence %v out of [0,1] for answer length %d", ev.Confidence, len(answer))
		}
	}
	if evaluate("no", "what is the trend").Confidence >= evaluate(long, "what is the trend").Confidence {
		t.Error("structured long answer should score above a two-letter reply")
	}
}

func TestFormatContextBudget(t *testing.T) {
	var chunks []models.RetrievedChunk
	for i := 0; i < 5; i++ {
		chunks = append(chunks, models.RetrievedChunk{
			Chunk: &models.Chunk{
				Ticker:  "AAPL",
				Summary: strings.Repeat("data ", 100),
				Metadata: map[string]interface{}{
					models.MetaTrend: models.TrendUptrend,
				},
			},
			RelevanceScore: 1.0 - float64(i)*0.1,
		})
	}
	full := formatContext(chunks, 100000)
	trimmed := formatContext(chunks, 600)
	if !strings.Contains(full, "Source 5:") {
		t.Error("full context should include all sources")
	}
	if strings.Contains(trimmed, "Source 2:") {
		t.Error("budget should drop trailing sources")
	}
	if !strings.Contains(trimmed, "Source 1:") {
		t.Error("first source must survive any budget")
	}
}

func TestQueryEndToEnd(t *testing.T) {
	env := newPipelineEnv(t, testWindows())
	result, err := env.pipeline.Query(context.Background(), models.QueryRequest{
		Query:  "What was the AAPL uptrend like?",
		Ticker: "AAPL",
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if result.NoData {
		t.Fatal("expected data-backed answer")
	}
	if result.Answer == "" || len(result.Sources) == 0 {
		t.Fatalf("incomplete result: %+v", result)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		t.Errorf("confidence %v out of bounds", result.Confidence)
	}
	if result.ID == "" {
		t.Error("missing result ID")
	}
	for _, src := range result.Sources {
		if src.Chunk.Ticker != "AAPL" {
			t.Errorf("ticker filter leaked: %s", src.Chunk.Ticker)
		}
	}
	if !strings.Contains(env.mock.LastPrompt(), "Source 1:") {
		t.Error("prompt should embed formatted context")
	}
}

func TestQueryCache(t *testing.T) {
	env := newPipelineEnv(t, testWindows())
	req := models.QueryRequest{Query: "describe the recent price action"}

	first, err := env.pipeline.Query(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if first.FromCache {
		t.Error("first call should miss the cache")
	}
	second, err := env.pipeline.Query(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !second.FromCache {
		t.Error("second call should hit the cache")
	}
	if env.mock.Calls() != 1 {
		t.Errorf("llm called %d times, want 1", env.mock.Calls())
	}

	req.BypassCache = true
	third, err := env.pipeline.Query(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if third.FromCache {
		t.Error("bypass should skip the cache")
	}
	if env.mock.Calls() != 2 {
		t.Errorf("llm called %d times after bypass, want 2", env.mock.Calls())
	}
}

func TestQueryCacheKeyedByResultCount(t *testing.T) {
	env := newPipelineEnv(t, testWindows())

	wide, err := env.pipeline.Query(context.Background(), models.QueryRequest{
		Query: "describe the recent price action", NResults: 5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if wide.FromCache {
		t.Error("first call should miss the cache")
	}

	// A narrower request is a different question and must not replay the
	// five-source answer.
	narrow, err := env.pipeline.Query(context.Background(), models.QueryRequest{
		Query: "describe the recent price action", NResults: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if narrow.FromCache {
		t.Error("request with a different result count should miss the cache")
	}
	if len(narrow.Sources) != 1 {
		t.Errorf("narrow request returned %d sources, want 1", len(narrow.Sources))
	}
	if env.mock.Calls() != 2 {
		t.Errorf("llm called %d times, want 2", env.mock.Calls())
	}

	repeat, err := env.pipeline.Query(context.Background(), models.QueryRequest{
		Query: "describe the recent price action", NResults: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !repeat.FromCache {
		t.Error("repeat with the same result count should hit the cache")
	}
}

func TestQueryEmptyIndex(t *testing.T) {
	env := newPipelineEnv(t, nil)
	result, err := env.pipeline.Query(context.Background(), models.QueryRequest{Query: "what happened to AAPL"})
	if err != nil {
		t.Fatalf("empty index must not error: %v", err)
	}
	if !result.NoData {
		t.Error("NoData not set")
	}
	if len(result.Sources) != 0 {
		t.Errorf("want zero sources, got %d", len(result.Sources))
	}
	if result.Confidence >= 0.3 {
		t.Errorf("no-data confidence %v should be below 0.3", result.Confidence)
	}
	if env.mock.Calls() != 0 {
		t.Error("generation should be skipped without context")
	}
}

func TestQueryValidation(t *testing.T) {
	env := newPipelineEnv(t, nil)
	_, err := env.pipeline.Query(context.Background(), models.QueryRequest{Query: "  "})
	var ve *models.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

func TestQueryGenerationFailure(t *testing.T) {
	env := newPipelineEnv(t, testWindows())
	env.mock.Err = &models.GenerationError{Model: "test", Err: errors.New("backend down")}
	_, err := env.pipeline.Query(context.Background(), models.QueryRequest{Query: "describe AAPL"})
	var ge *models.GenerationError
	if !errors.As(err, &ge) {
		t.Fatalf("want GenerationError, got %v", err)
	}
}

func TestAnalyzeTrend(t *testing.T) {
	env := newPipelineEnv(t, testWindows())
	result, err := env.pipeline.Analyze(context.Background(), AnalysisRequest{
		Type:    AnalysisTrend,
		Tickers: []string{"AAPL"},
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Findings["primary_trend"] != models.TrendUptrend {
		t.Errorf("primary_trend = %v", result.Findings["primary_trend"])
	}
	if result.Analysis == "" || len(result.Sources) == 0 {
		t.Error("analysis should carry generated text and sources")
	}
	if result.PeriodStart.IsZero() || result.PeriodEnd.Before(result.PeriodStart) {
		t.Errorf("bad period bounds: %v - %v", result.PeriodStart, result.PeriodEnd)
	}
}

func TestAnalyzePattern(t *testing.T) {
	env := newPipelineEnv(t, testWindows())
	result, err := env.pipeline.Analyze(context.Background(), AnalysisRequest{
		Type:    AnalysisPattern,
		Pattern: "uptrend",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Findings["pattern_detected"] != true {
		t.Error("pattern should be detected in seeded uptrend windows")
	}
	if len(result.Recommendations) == 0 {
		t.Error("missing recommendations")
	}
}

func TestAnalyzeIndicator(t *testing.T) {
	env := newPipelineEnv(t, testWindows())
	result, err := env.pipeline.Analyze(context.Background(), AnalysisRequest{
		Type:      AnalysisIndicator,
		Indicator: "rsi",
		Condition: ">",
		Threshold: 70,
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Findings["matching_windows"] != 1 {
		t.Errorf("matching_windows = %v, want 1", result.Findings["matching_windows"])
	}
	found := false
	for _, rf := range result.RiskFactors {
		if strings.Contains(rf, "overbought") {
			found = true
		}
	}
	if !found {
		t.Errorf("risk factors should flag overbought RSI: %v", result.RiskFactors)
	}
}

func TestAnalyzeComparison(t *testing.T) {
	env := newPipelineEnv(t, testWindows())
	result, err := env.pipeline.Analyze(context.Background(), AnalysisRequest{
		Type:    AnalysisComparison,
		Tickers: []string{"AAPL", "MSFT"},
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Findings["best_performer"] != "AAPL" {
		t.Errorf("best_performer = %v, want AAPL", result.Findings["best_performer"])
	}
}

func TestAnalyzeValidation(t *testing.T) {
	env := newPipelineEnv(t, nil)
	var ve *models.ValidationError

	_, err := env.pipeline.Analyze(context.Background(), AnalysisRequest{Type: "sentiment"})
	if !errors.As(err, &ve) {
		t.Errorf("unknown type: want ValidationError, got %v", err)
	}
	_, err = env.pipeline.Analyze(context.Background(), AnalysisRequest{Type: AnalysisComparison, Tickers: []string{"AAPL"}})
	if !errors.As(err, &ve) {
		t.Errorf("single-ticker comparison: want ValidationError, got %v", err)
	}
}
