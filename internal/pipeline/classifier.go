package pipeline

import (
	"strings"

	"github.com/quantel/ohlcvrag/internal/models"
)

// Keyword tables for query classification. Checked in order; the first table
// with a match wins, so "compare the RSI of AAPL and MSFT" classifies as
// comparison rather than technical.
var (
	comparisonWords = []string{"compare", " vs ", " vs.", "versus", "difference between", "better:", "better,", "which is better", "outperform"}
	predictionWords = []string{"predict", "forecast", "outlook", "will the", "going to", "expect", "next week", "next month", "future"}
	technicalWords  = []string{"rsi", "macd", "moving average", "bollinger", "sma", "ema", "indicator", "oscillator", "overbought", "oversold"}
	patternWords    = []string{"pattern", "uptrend", "downtrend", "breakout", "reversal", "consolidation", "bullish", "bearish", "ascending", "descending"}
)

// classify determines the query type. An explicit hint naming a known type
// takes precedence; otherwise keyword heuristics run, falling back to
// general.
func classify(query, hint string) models.QueryType {
	if qt, ok := models.ParseQueryType(hint); ok {
		return qt
	}
	q := " " + strings.ToLower(query) + " "
	switch {
	case containsAny(q, comparisonWords):
		return models.QueryComparison
	case containsAny(q, predictionWords):
		return models.QueryPrediction
	case containsAny(q, technicalWords):
		return models.QueryTechnical
	case containsAny(q, patternWords):
		return models.QueryPattern
	default:
		return models.QueryGeneral
	}
}

// patternKeywords maps canonical pattern names to phrasings found in
// questions.
var patternKeywords = map[string][]string{
	models.PatternUptrend:       {"uptrend", "bullish", "ascending"},
	models.PatternDowntrend:     {"downtrend", "bearish", "descending"},
	models.PatternBreakout:      {"breakout", "breakthrough", "break above"},
	models.PatternReversal:      {"reversal", "reverse", "turnaround"},
	models.PatternConsolidation: {"consolidation", "sideways", "ranging"},
}

// patternOrder keeps extraction deterministic regardless of map iteration.
var patternOrder = []string{
	models.PatternUptrend,
	models.PatternDowntrend,
	models.PatternBreakout,
	models.PatternReversal,
	models.PatternConsolidation,
}

// extractPattern finds the pattern a query asks about, or "" when none of
// the known pattern vocabulary appears.
func extractPattern(query string) string {
	q := strings.ToLower(query)
	for _, name := range patternOrder {
		if containsAny(q, patternKeywords[name]) {
			return name
		}
	}
	return ""
}

// extractIndicator finds the indicator name a technical query focuses on.
func extractIndicator(query string) string {
	q := strings.ToLower(query)
	for _, ind := range []string{"rsi", "macd", "bollinger", "sma", "ema", "moving average", "volume", "volatility"} {
		if strings.Contains(q, ind) {
			return strings.ToUpper(ind[:1]) + ind[1:]
		}
	}
	return ""
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
