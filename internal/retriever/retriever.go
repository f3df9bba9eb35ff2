// Package retriever finds the chunks most relevant to a query by blending
// semantic similarity with keyword matches over chunk summaries.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quantel/ohlcvrag/internal/keyword"
	"github.com/quantel/ohlcvrag/internal/models"
	"github.com/quantel/ohlcvrag/internal/storage"
	"github.com/quantel/ohlcvrag/internal/vectorstore"
)

// Config holds the blend weights. Semantic similarity carries most of the
// signal; keyword scores catch exact indicator vocabulary ("RSI",
// "overbought") that embeddings can blur.
type Config struct {
	// NResults is the default result count when callers pass n <= 0.
	NResults int `yaml:"n_results" default:"5" validate:"gt=0"`
	// SemanticWeight scales the cosine similarity contribution.
	SemanticWeight float64 `yaml:"semantic_weight" default:"0.7"`
	// KeywordWeight scales the normalized BM25 contribution.
	KeywordWeight float64 `yaml:"keyword_weight" default:"0.3"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.NResults <= 0 {
		c.NResults = 5
	}
	if c.SemanticWeight == 0 && c.KeywordWeight == 0 {
		c.SemanticWeight = 0.7
		c.KeywordWeight = 0.3
	}
}

// Retriever answers retrieval requests against the vector store, keyword
// index, and chunk storage.
type Retriever struct {
	vectors  *vectorstore.Store
	keywords keyword.Index
	store    storage.Storage
	cfg      Config
	logger   *zap.Logger
}

func New(vectors *vectorstore.Store, keywords keyword.Index, store storage.Storage, cfg Config, logger *zap.Logger) *Retriever {
	cfg.ApplyDefaults()
	return &Retriever{
		vectors:  vectors,
		keywords: keywords,
		store:    store,
		cfg:      cfg,
		logger:   logger,
	}
}

// Retrieve returns up to n chunks relevant to the query, highest blended
// score first. Ties break toward the more recent window. Ticker and
// dateRange are optional restrictions.
func (r *Retriever) Retrieve(ctx context.Context, query string, n int, ticker string, dateRange *vectorstore.DateRange) ([]models.RetrievedChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &models.ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if n <= 0 {
		n = r.cfg.NResults
	}

	filter := buildFilter(ticker, dateRange, nil)
	// Over-fetch so the keyword blend can promote hits outside the
	// semantic top n.
	hits, err := r.vectors.Search(ctx, query, n*3, filter)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	kwScores := r.keywordScores(ctx, query, n*3, ticker)

	scored := make([]models.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		blended := r.cfg.SemanticWeight * h.Score
		if kw, ok := kwScores[h.ID]; ok {
			blended += r.cfg.KeywordWeight * kw
		}
		if blended > 1 {
			blended = 1
		}
		rc, err := r.load(ctx, h, blended)
		if err != nil {
			return nil, err
		}
		scored = append(scored, rc)
	}

	sortByScoreThenRecency(scored)
	if len(scored) > n {
		scored = scored[:n]
	}
	return scored, nil
}

// patternQueries expands a named pattern into the vocabulary chunk summaries
// actually use.
var patternQueries = map[string]string{
	models.PatternUptrend:       "Strong uptrend bullish momentum higher highs ascending",
	models.PatternDowntrend:     "Downtrend bearish momentum lower lows descending",
	models.PatternBreakout:      "Breakout resistance breakthrough volume surge price spike",
	models.PatternReversal:      "Trend reversal bottom top turning point change direction",
	models.PatternConsolidation: "Sideways consolidation ranging flat trading range",
	"volatile":                  "High volatility large price swings unstable fluctuation",
	"overbought":                "Overbought RSI above 70 extended rally due for pullback",
	"oversold":                  "Oversold RSI below 30 extended decline due for bounce",
}

// RetrieveByPattern expands a pattern name and retrieves matching windows.
// Unknown patterns are used verbatim as the query.
func (r *Retriever) RetrieveByPattern(ctx context.Context, pattern string, n int, ticker string) ([]models.RetrievedChunk, error) {
	query, ok := patternQueries[strings.ToLower(pattern)]
	if !ok {
		query = pattern
	}
	return r.Retrieve(ctx, query, n, ticker, nil)
}

// Indicator names accepted by RetrieveByIndicator, mapped to the aggregate
// metadata each window carries.
var indicatorMetaKeys = map[string]string{
	"rsi":        models.MetaRSIAvg,
	"volume":     models.MetaAvgVolume,
	"volatility": models.MetaVolatility,
}

// RetrieveByIndicator returns windows whose aggregate indicator value
// satisfies condition against threshold. Condition is one of ">", "<", ">=",
// "<=", "="; "=" (or "==") matches within 10% of the threshold, since exact
// float equality never matches window aggregates.
func (r *Retriever) RetrieveByIndicator(ctx context.Context, indicator, condition string, threshold float64, n int, ticker string) ([]models.RetrievedChunk, error) {
	metaKey, ok := indicatorMetaKeys[strings.ToLower(indicator)]
	if !ok {
		return nil, &models.ValidationError{
			Field:  "indicator",
			Reason: fmt.Sprintf("unknown indicator %q (supported: rsi, volume, volatility)", indicator),
		}
	}

	var conds []vectorstore.Condition
	switch condition {
	case ">":
		conds = append(conds, vectorstore.Condition{Field: metaKey, Op: vectorstore.OpGt, Value: threshold})
	case "<":
		conds = append(conds, vectorstore.Condition{Field: metaKey, Op: vectorstore.OpLt, Value: threshold})
	case ">=":
		conds = append(conds, vectorstore.Condition{Field: metaKey, Op: vectorstore.OpGe, Value: threshold})
	case "<=":
		conds = append(conds, vectorstore.Condition{Field: metaKey, Op: vectorstore.OpLe, Value: threshold})
	case "=", "==":
		span := threshold * 0.1
		if span < 0 {
			span = -span
		}
		conds = append(conds,
			vectorstore.Condition{Field: metaKey, Op: vectorstore.OpGe, Value: threshold - span},
			vectorstore.Condition{Field: metaKey, Op: vectorstore.OpLe, Value: threshold + span},
		)
	default:
		return nil, &models.ValidationError{
			Field:  "condition",
			Reason: fmt.Sprintf("unknown condition %q (supported: >, <, >=, <=, =)", condition),
		}
	}

	if n <= 0 {
		n = r.cfg.NResults
	}
	query := indicatorQuery(strings.ToLower(indicator), condition, threshold)
	filter := buildFilter(ticker, nil, conds)

	hits, err := r.vectors.Search(ctx, query, n, filter)
	if err != nil {
		return nil, err
	}
	out := make([]models.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		rc, err := r.load(ctx, h, h.Score)
		if err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	sortByScoreThenRecency(out)
	return out, nil
}

// RetrieveSimilar finds windows resembling the one covering date for ticker,
// excluding that window itself.
func (r *Retriever) RetrieveSimilar(ctx context.Context, ticker string, date time.Time, n int) ([]models.RetrievedChunk, error) {
	if n <= 0 {
		n = r.cfg.NResults
	}
	chunks, err := r.store.ListChunksByTicker(ctx, ticker)
	if err != nil {
		return nil, err
	}
	var target *models.Chunk
	for _, c := range chunks {
		if !date.Before(c.StartDate) && !date.After(c.EndDate) {
			target = c
			break
		}
	}
	if target == nil {
		return nil, nil
	}

	trend, _ := target.Metadata[models.MetaTrend].(string)
	vol, _ := target.MetaFloat(models.MetaVolatility)
	query := fmt.Sprintf("similar price pattern %s trend volatility %.4f price action", trend, vol)

	hits, err := r.vectors.Search(ctx, query, n+1, nil)
	if err != nil {
		return nil, err
	}
	out := make([]models.RetrievedChunk, 0, n)
	for _, h := range hits {
		if h.ID == target.ID {
			continue
		}
		rc, err := r.load(ctx, h, h.Score)
		if err != nil {
			return nil, err
		}
		out = append(out, rc)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

func indicatorQuery(indicator, condition string, threshold float64) string {
	switch indicator {
	case "rsi":
		switch condition {
		case ">":
			return fmt.Sprintf("RSI above %.0f overbought conditions", threshold)
		case "<":
			return fmt.Sprintf("RSI below %.0f oversold conditions", threshold)
		}
		return fmt.Sprintf("RSI around %.0f", threshold)
	case "volume":
		switch condition {
		case ">":
			return fmt.Sprintf("High volume above average %.0f heavy trading", threshold)
		case "<":
			return fmt.Sprintf("Low volume below average %.0f light trading", threshold)
		}
		return fmt.Sprintf("Average volume around %.0f", threshold)
	case "volatility":
		switch condition {
		case ">":
			return fmt.Sprintf("High volatility above %.4f large price swings", threshold)
		case "<":
			return fmt.Sprintf("Low volatility below %.4f stable prices", threshold)
		}
		return fmt.Sprintf("Moderate volatility around %.4f", threshold)
	}
	return fmt.Sprintf("%s %s %v", indicator, condition, threshold)
}

// keywordScores returns max-normalized BM25 scores by chunk ID. Failures
// degrade to semantic-only retrieval rather than failing the query.
func (r *Retriever) keywordScores(ctx context.Context, query string, limit int, ticker string) map[string]float64 {
	if r.keywords == nil {
		return nil
	}
	results, err := r.keywords.Search(ctx, query, limit, ticker)
	if err != nil {
		r.logger.Warn("keyword search failed, using semantic scores only", zap.Error(err))
		return nil
	}
	if len(results) == 0 {
		return nil
	}
	max := results[0].Score
	for _, kr := range results {
		if kr.Score > max {
			max = kr.Score
		}
	}
	if max <= 0 {
		return nil
	}
	scores := make(map[string]float64, len(results))
	for _, kr := range results {
		scores[kr.ID] = kr.Score / max
	}
	return scores
}

// load joins a vector hit with its stored chunk. A chunk missing from
// storage still yields a result built from the hit itself; any other storage
// failure surfaces.
func (r *Retriever) load(ctx context.Context, h vectorstore.Hit, score float64) (models.RetrievedChunk, error) {
	rc := models.RetrievedChunk{Metadata: h.Metadata, RelevanceScore: score}
	chunk, err := r.store.GetChunk(ctx, h.ID)
	if err == nil {
		rc.Chunk = chunk
		return rc, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return rc, &models.IndexError{Op: "load chunk " + h.ID, Err: err}
	}
	rc.Chunk = &models.Chunk{ID: h.ID, Summary: h.Text, Metadata: h.Metadata}
	if ticker, ok := h.Metadata[models.MetaTicker].(string); ok {
		rc.Chunk.Ticker = ticker
	}
	return rc, nil
}

func buildFilter(ticker string, dateRange *vectorstore.DateRange, conds []vectorstore.Condition) *vectorstore.Filter {
	if ticker == "" && dateRange == nil && len(conds) == 0 {
		return nil
	}
	f := &vectorstore.Filter{Conditions: conds, Overlap: dateRange}
	if ticker != "" {
		f.Conditions = append(f.Conditions, vectorstore.Condition{
			Field: models.MetaTicker, Op: vectorstore.OpEq, Value: strings.ToUpper(ticker),
		})
	}
	return f
}

func sortByScoreThenRecency(chunks []models.RetrievedChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].RelevanceScore != chunks[j].RelevanceScore {
			return chunks[i].RelevanceScore > chunks[j].RelevanceScore
		}
		return chunks[i].Chunk.EndDate.After(chunks[j].Chunk.EndDate)
	})
}
