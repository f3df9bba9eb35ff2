// Package pipeline orchestrates a query end to end: classification,
// retrieval, context formatting, generation, and answer evaluation.
package pipeline

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantel/ohlcvrag/internal/cache"
	"github.com/quantel/ohlcvrag/internal/llm"
	"github.com/quantel/ohlcvrag/internal/metrics"
	"github.com/quantel/ohlcvrag/internal/models"
	"github.com/quantel/ohlcvrag/internal/prompt"
	"github.com/quantel/ohlcvrag/internal/retriever"
)

const noDataAnswer = "No relevant data found for your query. Please try rephrasing or check the data availability."

// noDataConfidence is the confidence assigned when nothing was retrieved.
// Kept below 0.3 so callers can distinguish answered-from-data results.
const noDataConfidence = 0.0

// Config tunes the orchestrator.
type Config struct {
	// ContextBudget caps formatted context length in characters.
	ContextBudget int `yaml:"context_budget" default:"8000" validate:"gt=0"`
	// NResults is the retrieval depth when a request does not specify one.
	NResults int `yaml:"n_results" default:"5" validate:"gt=0"`
	// CacheTTL bounds how long query results are served from cache.
	CacheTTL time.Duration `yaml:"cache_ttl" default:"1h"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.ContextBudget <= 0 {
		c.ContextBudget = defaultContextBudget
	}
	if c.NResults <= 0 {
		c.NResults = 5
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
}

// Pipeline wires the retrieval and generation components together. Safe for
// concurrent use.
type Pipeline struct {
	retriever *retriever.Retriever
	prompts   *prompt.Manager
	client    llm.Client
	cache     cache.BytesCache
	metrics   *metrics.Recorder
	logger    *zap.Logger
	cfg       Config
}

func New(r *retriever.Retriever, prompts *prompt.Manager, client llm.Client,
	c cache.BytesCache, rec *metrics.Recorder, logger *zap.Logger, cfg Config) *Pipeline {
	cfg.ApplyDefaults()
	return &Pipeline{
		retriever: r,
		prompts:   prompts,
		client:    client,
		cache:     c,
		metrics:   rec,
		logger:    logger,
		cfg:       cfg,
	}
}

// Query answers one question. An empty retrieval is a valid outcome: the
// result carries NoData with confidence below the answered-from-data range,
// and no error.
func (p *Pipeline) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	queryType := classify(req.Query, req.TypeHint)

	n := req.NResults
	if n <= 0 {
		n = p.cfg.NResults
	}

	// The result count shapes the answer, so it is part of the key.
	cacheKey := cache.QueryKey(req.Query+"|"+req.Ticker+"|"+strconv.Itoa(n), string(queryType))
	if cached := p.fromCache(req, cacheKey); cached != nil {
		p.metrics.RecordCacheHit()
		p.logger.Debug("query served from cache", zap.String("query", req.Query))
		return cached, nil
	}
	p.metrics.RecordCacheMiss()
	chunks, err := p.retriever.Retrieve(ctx, req.Query, n, req.Ticker, nil)
	if err != nil {
		p.metrics.RecordError("retrieve")
		return nil, err
	}

	result := &models.QueryResult{
		ID:          uuid.New().String(),
		Query:       req.Query,
		QueryType:   queryType,
		GeneratedAt: time.Now().UTC(),
	}

	if len(chunks) == 0 {
		result.Answer = noDataAnswer
		result.Sources = []models.RetrievedChunk{}
		result.Confidence = noDataConfidence
		result.NoData = true
		result.Elapsed = time.Since(start)
		p.metrics.RecordQuery(string(queryType))
		p.logger.Info("query matched no data", zap.String("query", req.Query))
		return result, nil
	}

	formatted := formatContext(chunks, p.cfg.ContextBudget)
	rendered, err := p.prompts.Render(queryType, prompt.Params{
		Context:     formatted,
		Query:       req.Query,
		PatternType: extractPattern(req.Query),
		Tickers:     uniqueTickers(chunks),
		Ticker:      firstNonEmpty(req.Ticker, uniqueTickers(chunks)),
		Indicator:   extractIndicator(req.Query),
	})
	if err != nil {
		p.metrics.RecordError("prompt")
		return nil, err
	}

	answer, err := p.client.Generate(ctx, rendered)
	if err != nil {
		p.metrics.RecordError("generate")
		return nil, err
	}

	ev := evaluate(answer, req.Query)
	result.Answer = answer
	result.Sources = chunks
	result.Confidence = ev.Confidence
	result.Elapsed = time.Since(start)

	p.toCache(req, cacheKey, result)
	p.metrics.RecordQuery(string(queryType))
	p.metrics.RecordQueryDuration(string(queryType), result.Elapsed.Seconds())
	p.logger.Info("query answered",
		zap.String("type", string(queryType)),
		zap.Int("sources", len(chunks)),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

func (p *Pipeline) fromCache(req models.QueryRequest, key string) *models.QueryResult {
	if p.cache == nil || req.BypassCache {
		return nil
	}
	data, ok, err := p.cache.GetBytes(key)
	if err != nil {
		p.logger.Warn("cache read failed", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var result models.QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		p.logger.Warn("cache entry corrupt, ignoring", zap.Error(err))
		return nil
	}
	result.FromCache = true
	return &result
}

func (p *Pipeline) toCache(req models.QueryRequest, key string, result *models.QueryResult) {
	if p.cache == nil || req.BypassCache {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		p.logger.Warn("cache marshal failed", zap.Error(err))
		return
	}
	if err := p.cache.SetBytes(key, data, p.cfg.CacheTTL); err != nil {
		p.logger.Warn("cache write failed", zap.Error(err))
	}
}

func firstNonEmpty(s string, rest []string) string {
	if s != "" {
		return s
	}
	if len(rest) > 0 {
		return rest[0]
	}
	return "the stock"
}
