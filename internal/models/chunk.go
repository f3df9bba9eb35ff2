package models

import (
	"fmt"
	"strings"
	"time"
)

// Trend labels stored in chunk metadata.
const (
	TrendUptrend   = "uptrend"
	TrendDowntrend = "downtrend"
	TrendSideways  = "sideways"
)

// Metadata keys for chunk metadata maps. The vector store filters on these.
const (
	MetaTicker     = "ticker"
	MetaStartDate  = "start_date"
	MetaEndDate    = "end_date"
	MetaTrend      = "trend"
	MetaAvgVolume  = "avg_volume"
	MetaVolatility = "volatility"
	MetaRSIAvg     = "rsi_avg"
	MetaPriceHigh  = "price_high"
	MetaPriceLow   = "price_low"
	MetaPriceOpen  = "price_open"
	MetaPriceClose = "price_close"
	MetaPctChange  = "pct_change"
)

// Chunk is the atomic retrievable unit: a fixed window of enriched bars with a
// generated summary and aggregate metadata. Chunks are immutable after
// creation; a data refresh produces new chunks rather than edits.
type Chunk struct {
	ID         string                 `json:"id"`
	Ticker     string                 `json:"ticker"`
	StartDate  time.Time              `json:"start_date"`
	EndDate    time.Time              `json:"end_date"`
	Bars       []Bar                  `json:"bars"`
	Indicators map[string][]float64   `json:"indicators,omitempty"`
	Summary    string                 `json:"summary"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
}

// ChunkID returns the deterministic chunk ID for a ticker and window range.
// Re-running the chunk builder on identical input yields identical IDs, so
// re-ingestion is idempotent when the index dedupes by ID.
func ChunkID(ticker string, start, end time.Time) string {
	return fmt.Sprintf("%s_%s_%s", strings.ToUpper(ticker), start.Format("20060102"), end.Format("20060102"))
}

// Document returns the text indexed for this chunk: the summary plus key
// metrics, matching what the embedder sees at ingestion time.
func (c *Chunk) Document() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Stock: %s\nPeriod: %s to %s\n\n%s\n",
		c.Ticker, c.StartDate.Format("2006-01-02"), c.EndDate.Format("2006-01-02"), c.Summary)
	if trend, ok := c.Metadata[MetaTrend].(string); ok {
		fmt.Fprintf(&b, "\nTrend: %s", trend)
	}
	return b.String()
}

// Period returns the chunk window as "start to end".
func (c *Chunk) Period() string {
	return fmt.Sprintf("%s to %s", c.StartDate.Format("2006-01-02"), c.EndDate.Format("2006-01-02"))
}

// MetaFloat returns a numeric metadata value by key. JSON round-trips turn
// numbers into float64; ingestion writes them as float64 directly.
func (c *Chunk) MetaFloat(key string) (float64, bool) {
	v, ok := c.Metadata[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
