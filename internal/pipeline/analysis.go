package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quantel/ohlcvrag/internal/models"
	"github.com/quantel/ohlcvrag/internal/prompt"
)

// Analysis types accepted by Analyze.
const (
	AnalysisTrend      = "trend"
	AnalysisPattern    = "pattern"
	AnalysisIndicator  = "indicator"
	AnalysisComparison = "comparison"
)

// AnalysisRequest parameterizes one Analyze invocation. Which fields matter
// depends on Type.
type AnalysisRequest struct {
	Type    string   `json:"type"`
	Tickers []string `json:"tickers,omitempty"`
	// Pattern names the pattern for pattern analysis.
	Pattern string `json:"pattern,omitempty"`
	// Indicator, Condition, Threshold drive indicator analysis.
	Indicator string  `json:"indicator,omitempty"`
	Condition string  `json:"condition,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	NResults  int     `json:"n_results,omitempty"`
}

// Validate rejects unusable requests before any retrieval runs.
func (r *AnalysisRequest) Validate() error {
	switch r.Type {
	case AnalysisTrend:
		if len(r.Tickers) == 0 {
			return &models.ValidationError{Field: "tickers", Reason: "trend analysis requires a ticker"}
		}
	case AnalysisPattern:
		if r.Pattern == "" {
			return &models.ValidationError{Field: "pattern", Reason: "pattern analysis requires a pattern name"}
		}
	case AnalysisIndicator:
		if r.Indicator == "" {
			return &models.ValidationError{Field: "indicator", Reason: "indicator analysis requires an indicator name"}
		}
	case AnalysisComparison:
		if len(r.Tickers) < 2 {
			return &models.ValidationError{Field: "tickers", Reason: "comparison requires at least two tickers"}
		}
	default:
		return &models.ValidationError{
			Field:  "type",
			Reason: fmt.Sprintf("unknown analysis type %q (supported: trend, pattern, indicator, comparison)", r.Type),
		}
	}
	if r.NResults < 0 {
		return &models.ValidationError{Field: "n_results", Reason: "must be non-negative"}
	}
	return nil
}

// Analyze runs the retrieval and generation machinery for a structured
// analysis instead of a free-form question.
func (p *Pipeline) Analyze(ctx context.Context, req AnalysisRequest) (*models.AnalysisResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	n := req.NResults
	if n <= 0 {
		n = p.cfg.NResults
	}

	var (
		chunks    []models.RetrievedChunk
		queryType models.QueryType
		params    prompt.Params
		findings  = make(map[string]interface{})
		err       error
	)

	switch req.Type {
	case AnalysisTrend:
		ticker := req.Tickers[0]
		chunks, err = p.retriever.Retrieve(ctx, "price trend direction momentum analysis", n, ticker, nil)
		if err == nil {
			queryType = models.QueryGeneral
			params.Query = fmt.Sprintf("What is the dominant trend for %s and how strong is it?", ticker)
			trend, share := dominantTrend(chunks)
			findings["primary_trend"] = trend
			findings["trend_strength"] = trendStrength(share)
		}
	case AnalysisPattern:
		chunks, err = p.retriever.RetrieveByPattern(ctx, req.Pattern, n, firstTicker(req.Tickers))
		if err == nil {
			queryType = models.QueryPattern
			params.PatternType = req.Pattern
			findings["pattern_type"] = req.Pattern
			findings["pattern_detected"] = len(chunks) > 0
			findings["matching_windows"] = len(chunks)
		}
	case AnalysisIndicator:
		cond := req.Condition
		if cond == "" {
			cond = ">"
		}
		chunks, err = p.retriever.RetrieveByIndicator(ctx, req.Indicator, cond, req.Threshold, n, firstTicker(req.Tickers))
		if err == nil {
			queryType = models.QueryTechnical
			params.Indicator = req.Indicator
			findings["indicator"] = req.Indicator
			findings["condition"] = fmt.Sprintf("%s %v", cond, req.Threshold)
			findings["matching_windows"] = len(chunks)
		}
	case AnalysisComparison:
		chunks, err = p.retrievePerTicker(ctx, req.Tickers, n)
		if err == nil {
			queryType = models.QueryComparison
			params.Tickers = req.Tickers
			findings["compared_tickers"] = req.Tickers
			if best := bestPerformer(chunks); best != "" {
				findings["best_performer"] = best
			}
		}
	}
	if err != nil {
		p.metrics.RecordError("analysis")
		return nil, err
	}

	result := &models.AnalysisResult{
		AnalysisType: req.Type,
		Tickers:      req.Tickers,
		Findings:     findings,
		Sources:      chunks,
	}
	if len(chunks) == 0 {
		result.Analysis = noDataAnswer
		result.Confidence = noDataConfidence
		result.Elapsed = time.Since(start)
		return result, nil
	}
	result.PeriodStart, result.PeriodEnd = periodBounds(chunks)

	params.Context = formatContext(chunks, p.cfg.ContextBudget)
	rendered, err := p.prompts.Render(queryType, params)
	if err != nil {
		p.metrics.RecordError("prompt")
		return nil, err
	}
	analysis, err := p.client.Generate(ctx, rendered)
	if err != nil {
		p.metrics.RecordError("generate")
		return nil, err
	}

	result.Analysis = analysis
	result.Recommendations = recommendations(req, findings)
	result.RiskFactors = riskFactors(chunks)
	result.Confidence = evaluate(analysis, params.Query).Confidence
	result.Elapsed = time.Since(start)

	p.logger.Info("analysis complete",
		zap.String("type", req.Type),
		zap.Int("sources", len(chunks)),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

func (p *Pipeline) retrievePerTicker(ctx context.Context, tickers []string, n int) ([]models.RetrievedChunk, error) {
	per := n / len(tickers)
	if per < 1 {
		per = 1
	}
	var all []models.RetrievedChunk
	for _, t := range tickers {
		chunks, err := p.retriever.Retrieve(ctx, "price performance trend volume", per, t, nil)
		if err != nil {
			return nil, err
		}
		all = append(all, chunks...)
	}
	return all, nil
}

// dominantTrend returns the most common trend label across sources and its
// share of the total.
func dominantTrend(chunks []models.RetrievedChunk) (string, float64) {
	if len(chunks) == 0 {
		return models.TrendSideways, 0
	}
	counts := make(map[string]int)
	for _, rc := range chunks {
		if trend, ok := rc.Chunk.Metadata[models.MetaTrend].(string); ok {
			counts[trend]++
		}
	}
	best, bestN := models.TrendSideways, 0
	for _, trend := range []string{models.TrendUptrend, models.TrendDowntrend, models.TrendSideways} {
		if counts[trend] > bestN {
			best, bestN = trend, counts[trend]
		}
	}
	return best, float64(bestN) / float64(len(chunks))
}

func trendStrength(share float64) string {
	switch {
	case share >= 0.75:
		return "strong"
	case share >= 0.5:
		return "moderate"
	default:
		return "weak"
	}
}

// bestPerformer picks the ticker with the highest average window return.
func bestPerformer(chunks []models.RetrievedChunk) string {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, rc := range chunks {
		if pct, ok := rc.Chunk.MetaFloat(models.MetaPctChange); ok {
			sums[rc.Chunk.Ticker] += pct
			counts[rc.Chunk.Ticker]++
		}
	}
	best, bestAvg := "", 0.0
	for ticker, sum := range sums {
		avg := sum / float64(counts[ticker])
		if best == "" || avg > bestAvg {
			best, bestAvg = ticker, avg
		}
	}
	return best
}

func periodBounds(chunks []models.RetrievedChunk) (time.Time, time.Time) {
	var start, end time.Time
	for _, rc := range chunks {
		if start.IsZero() || rc.Chunk.StartDate.Before(start) {
			start = rc.Chunk.StartDate
		}
		if rc.Chunk.EndDate.After(end) {
			end = rc.Chunk.EndDate
		}
	}
	return start, end
}

func recommendations(req AnalysisRequest, findings map[string]interface{}) []string {
	var recs []string
	switch req.Type {
	case AnalysisTrend:
		if trend, ok := findings["primary_trend"].(string); ok {
			recs = append(recs, fmt.Sprintf("Monitor %s continuation with moving average crossovers", trend))
		}
	case AnalysisPattern:
		recs = append(recs, fmt.Sprintf("Monitor %s pattern development", req.Pattern))
	case AnalysisIndicator:
		recs = append(recs, fmt.Sprintf("Confirm %s signals against price action before acting", req.Indicator))
	case AnalysisComparison:
		recs = append(recs, "Weigh relative volatility alongside raw performance")
	}
	return recs
}

// riskFactors derives warnings from the retrieved window metadata.
func riskFactors(chunks []models.RetrievedChunk) []string {
	var risks []string
	seen := make(map[string]bool)
	add := func(r string) {
		if !seen[r] {
			seen[r] = true
			risks = append(risks, r)
		}
	}
	for _, rc := range chunks {
		if vol, ok := rc.Chunk.MetaFloat(models.MetaVolatility); ok && vol > 0.03 {
			add("elevated volatility in retrieved windows")
		}
		if rsi, ok := rc.Chunk.MetaFloat(models.MetaRSIAvg); ok {
			if rsi > 70 {
				add("overbought RSI readings")
			} else if rsi < 30 {
				add("oversold RSI readings")
			}
		}
	}
	return risks
}

func firstTicker(tickers []string) string {
	if len(tickers) > 0 {
		return strings.ToUpper(tickers[0])
	}
	return ""
}
