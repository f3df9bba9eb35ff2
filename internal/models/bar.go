// Package models defines core data structures for bars, chunks, queries, and results.
package models

import (
	"fmt"
	"math"
	"time"
)

// Bar is one OHLCV observation for one ticker at one trading date.
// Bars are immutable once fetched; the core consumes them read-only.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Validate checks OHLCV consistency for a single bar.
func (b *Bar) Validate() error {
	if b.Close <= 0 {
		return fmt.Errorf("close must be positive, got %f", b.Close)
	}
	if b.High < math.Max(b.Open, b.Close) {
		return fmt.Errorf("high %f below max(open, close)", b.High)
	}
	if b.Low > math.Min(b.Open, b.Close) {
		return fmt.Errorf("low %f above min(open, close)", b.Low)
	}
	if b.Volume < 0 {
		return fmt.Errorf("volume must be non-negative, got %d", b.Volume)
	}
	return nil
}

// Series is an ordered bar series for one ticker, timestamps strictly increasing.
type Series struct {
	Ticker string `json:"ticker"`
	Bars   []Bar  `json:"bars"`
}

// Validate checks ordering and per-bar consistency.
func (s *Series) Validate() error {
	if s.Ticker == "" {
		return fmt.Errorf("ticker cannot be empty")
	}
	for i := range s.Bars {
		if err := s.Bars[i].Validate(); err != nil {
			return fmt.Errorf("bar %d (%s): %w", i, s.Bars[i].Date.Format("2006-01-02"), err)
		}
		if i > 0 && !s.Bars[i].Date.After(s.Bars[i-1].Date) {
			return fmt.Errorf("timestamps not strictly increasing at index %d", i)
		}
	}
	return nil
}

// Len returns the number of bars.
func (s *Series) Len() int { return len(s.Bars) }

// Closes returns the closing prices in order.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i := range s.Bars {
		out[i] = s.Bars[i].Close
	}
	return out
}

// Indicator series names produced by the indicator calculator.
const (
	IndSMA20      = "sma_20"
	IndSMA50      = "sma_50"
	IndEMA12      = "ema_12"
	IndEMA26      = "ema_26"
	IndRSI14      = "rsi_14"
	IndMACD       = "macd"
	IndMACDSignal = "macd_signal"
	IndMACDDiff   = "macd_diff"
	IndBBUpper    = "bb_upper"
	IndBBMiddle   = "bb_middle"
	IndBBLower    = "bb_lower"
	IndReturn1    = "return_1"
	IndReturn5    = "return_5"
	IndReturn20   = "return_20"
)

// EnrichedSeries is a bar series plus parallel indicator series aligned by index.
// Indicator values are NaN where the lookback window is unsatisfied; every
// indicator slice has exactly len(Bars) entries.
type EnrichedSeries struct {
	Series
	Indicators map[string][]float64 `json:"indicators"`
	// TrendLabels holds the per-bar trend classification ("uptrend",
	// "downtrend", "sideways"); bars inside the SMA warm-up are labeled
	// "sideways".
	TrendLabels []string `json:"trend_labels"`
}

// Indicator returns the named indicator series, or nil if absent.
func (e *EnrichedSeries) Indicator(name string) []float64 {
	if e.Indicators == nil {
		return nil
	}
	return e.Indicators[name]
}

// IndicatorAt returns the indicator value at index i and whether it is defined
// (present and not NaN).
func (e *EnrichedSeries) IndicatorAt(name string, i int) (float64, bool) {
	vals := e.Indicator(name)
	if vals == nil || i < 0 || i >= len(vals) || math.IsNaN(vals[i]) {
		return 0, false
	}
	return vals[i], true
}
