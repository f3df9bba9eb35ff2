// Package ingest fetches OHLCV bars from data sources and turns them into
// indexed chunks.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/quantel/ohlcvrag/internal/models"
)

// FetchRange bounds a fetch. Zero values mean unbounded on that side.
type FetchRange struct {
	Start time.Time
	End   time.Time
}

// BarSource fetches daily bars for one ticker.
type BarSource interface {
	// Name identifies the source in errors and chunk metadata.
	Name() string
	Fetch(ctx context.Context, ticker string, r FetchRange) (models.Series, error)
}

// Source names accepted by Config.Source.
const (
	SourceCSV          = "csv"
	SourceXLSX         = "xlsx"
	SourceAlphaVantage = "alphavantage"
	SourceSynthetic    = "synthetic"
)

// Config selects and configures the bar source.
type Config struct {
	Source  string        `yaml:"source" default:"csv" validate:"oneof=csv xlsx alphavantage synthetic"`
	DataDir string        `yaml:"data_dir" default:"./data"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout" default:"30s"`
}

// NewSource builds the configured bar source.
func NewSource(cfg Config) (BarSource, error) {
	switch cfg.Source {
	case "", SourceCSV:
		return NewCSVSource(cfg.DataDir), nil
	case SourceXLSX:
		return NewXLSXSource(cfg.DataDir), nil
	case SourceAlphaVantage:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("alphavantage source requires an api key")
		}
		return NewAlphaVantageSource(cfg.APIKey, cfg.Timeout), nil
	case SourceSynthetic:
		return NewSyntheticSource(), nil
	default:
		return nil, fmt.Errorf("unknown bar source %q", cfg.Source)
	}
}

// clipRange drops bars outside r. Bars are assumed date-ordered.
func clipRange(s models.Series, r FetchRange) models.Series {
	if r.Start.IsZero() && r.End.IsZero() {
		return s
	}
	out := models.Series{Ticker: s.Ticker}
	for _, b := range s.Bars {
		if !r.Start.IsZero() && b.Date.Before(r.Start) {
			continue
		}
		if !r.End.IsZero() && b.Date.After(r.End) {
			continue
		}
		out.Bars = append(out.Bars, b)
	}
	return out
}
