package ingest

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/quantel/ohlcvrag/internal/models"
)

// SyntheticSource generates a random walk seeded by the ticker name, so the
// same ticker always yields the same bars. Useful for demos and local runs
// without market data on disk.
type SyntheticSource struct{}

func NewSyntheticSource() *SyntheticSource {
	return &SyntheticSource{}
}

func (s *SyntheticSource) Name() string { return SourceSynthetic }

func (s *SyntheticSource) Fetch(ctx context.Context, ticker string, r FetchRange) (models.Series, error) {
	end := r.End
	if end.IsZero() {
		end = time.Now().UTC().Truncate(24 * time.Hour)
	}
	start := r.Start
	if start.IsZero() {
		start = end.AddDate(-1, 0, 0)
	}

	ticker = strings.ToUpper(ticker)
	rng := rand.New(rand.NewSource(seedFor(ticker)))

	price := 50.0 + rng.Float64()*200
	drift := (rng.Float64() - 0.45) * 0.004
	series := models.Series{Ticker: ticker}

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		ret := drift + rng.NormFloat64()*0.02
		open := price
		close := price * math.Exp(ret)
		high := math.Max(open, close) * (1 + rng.Float64()*0.01)
		low := math.Min(open, close) * (1 - rng.Float64()*0.01)
		series.Bars = append(series.Bars, models.Bar{
			Date:   day,
			Open:   round2(open),
			High:   round2(high),
			Low:    round2(low),
			Close:  round2(close),
			Volume: 1_000_000 + rng.Int63n(9_000_000),
		})
		price = close
	}
	if len(series.Bars) == 0 {
		return models.Series{}, &models.DataFetchError{Ticker: ticker, Source: s.Name(), Err: errEmptyRange}
	}
	return series, nil
}

var errEmptyRange = errors.New("no trading days in range")

func seedFor(ticker string) int64 {
	var seed int64
	for _, c := range ticker {
		seed = seed*31 + int64(c)
	}
	return seed
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
