package pipeline

import (
	"fmt"
	"strings"

	"github.com/quantel/ohlcvrag/internal/models"
)

// defaultContextBudget caps the formatted context length in characters.
// Retrieval returns chunks highest-relevance first, so trimming from the end
// drops the least relevant sources.
const defaultContextBudget = 8000

// formatContext renders retrieved chunks as numbered source blocks joined by
// separators. Chunks that would push the output past budget are dropped;
// the first chunk is always kept even if oversized.
func formatContext(chunks []models.RetrievedChunk, budget int) string {
	if budget <= 0 {
		budget = defaultContextBudget
	}
	var parts []string
	total := 0
	for i, rc := range chunks {
		part := formatSource(rc, i+1)
		if i > 0 && total+len(part) > budget {
			break
		}
		parts = append(parts, part)
		total += len(part)
	}
	return strings.Join(parts, "\n---\n")
}

func formatSource(rc models.RetrievedChunk, index int) string {
	c := rc.Chunk
	var b strings.Builder
	fmt.Fprintf(&b, "Source %d:\nTicker: %s\nPeriod: %s\nRelevance Score: %.2f\n\n%s\n\nKey Metrics:",
		index, c.Ticker, c.Period(), rc.RelevanceScore, c.Summary)

	if trend, ok := c.Metadata[models.MetaTrend].(string); ok {
		fmt.Fprintf(&b, "\n- Trend: %s", trend)
	}
	if v, ok := c.MetaFloat(models.MetaAvgVolume); ok {
		fmt.Fprintf(&b, "\n- Average Volume: %.0f", v)
	}
	if v, ok := c.MetaFloat(models.MetaVolatility); ok {
		fmt.Fprintf(&b, "\n- Volatility: %.4f", v)
	}
	low, okLow := c.MetaFloat(models.MetaPriceLow)
	high, okHigh := c.MetaFloat(models.MetaPriceHigh)
	if okLow && okHigh {
		fmt.Fprintf(&b, "\n- Price Range: $%.2f - $%.2f", low, high)
	}
	if v, ok := c.MetaFloat(models.MetaRSIAvg); ok {
		fmt.Fprintf(&b, "\n- Average RSI: %.2f", v)
	}
	return b.String()
}

// uniqueTickers collects the distinct tickers across chunks, first-seen
// order.
func uniqueTickers(chunks []models.RetrievedChunk) []string {
	seen := make(map[string]bool)
	var out []string
	for _, rc := range chunks {
		t := rc.Chunk.Ticker
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
