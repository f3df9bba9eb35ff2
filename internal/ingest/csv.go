package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/quantel/ohlcvrag/internal/models"
)

// CSVSource reads <dir>/<TICKER>.csv files with a header row. Column names
// are matched case-insensitively; date, open, high, low, close, and volume
// are required, extras are ignored.
type CSVSource struct {
	dir string
}

func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: dir}
}

func (s *CSVSource) Name() string { return SourceCSV }

func (s *CSVSource) Fetch(ctx context.Context, ticker string, r FetchRange) (models.Series, error) {
	path := filepath.Join(s.dir, strings.ToUpper(ticker)+".csv")
	f, err := os.Open(path)
	if err != nil {
		return models.Series{}, &models.DataFetchError{Ticker: ticker, Source: s.Name(), Err: err}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return models.Series{}, &models.DataFetchError{Ticker: ticker, Source: s.Name(), Err: fmt.Errorf("read header: %w", err)}
	}
	cols, err := mapColumns(header)
	if err != nil {
		return models.Series{}, &models.DataFetchError{Ticker: ticker, Source: s.Name(), Err: err}
	}

	series := models.Series{Ticker: strings.ToUpper(ticker)}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.Series{}, &models.DataFetchError{
				Ticker: ticker, Source: s.Name(),
				Err: fmt.Errorf("read record: %w", err),
			}
		}
		line++
		bar, err := parseBar(record, cols)
		if err != nil {
			return models.Series{}, &models.DataFetchError{
				Ticker: ticker, Source: s.Name(),
				Err: fmt.Errorf("line %d: %w", line, err),
			}
		}
		series.Bars = append(series.Bars, bar)
	}

	sortBars(series.Bars)
	series = clipRange(series, r)
	if len(series.Bars) == 0 {
		return models.Series{}, &models.DataFetchError{Ticker: ticker, Source: s.Name(), Err: fmt.Errorf("no bars in range")}
	}
	if err := series.Validate(); err != nil {
		return models.Series{}, &models.DataFetchError{Ticker: ticker, Source: s.Name(), Err: err}
	}
	return series, nil
}

type columnMap struct {
	date, open, high, low, close, volume int
}

func mapColumns(header []string) (columnMap, error) {
	cols := columnMap{date: -1, open: -1, high: -1, low: -1, close: -1, volume: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date", "timestamp":
			cols.date = i
		case "open":
			cols.open = i
		case "high":
			cols.high = i
		case "low":
			cols.low = i
		case "close", "adj close", "adjusted close":
			if cols.close == -1 || strings.EqualFold(name, "close") {
				cols.close = i
			}
		case "volume":
			cols.volume = i
		}
	}
	if cols.date == -1 || cols.open == -1 || cols.high == -1 || cols.low == -1 || cols.close == -1 || cols.volume == -1 {
		return cols, fmt.Errorf("missing required columns in header %v", header)
	}
	return cols, nil
}

var dateLayouts = []string{"2006-01-02", "2006/01/02", "01/02/2006", time.RFC3339}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(24 * time.Hour), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func parseBar(record []string, cols columnMap) (models.Bar, error) {
	var bar models.Bar
	var err error

	if bar.Date, err = parseDate(record[cols.date]); err != nil {
		return bar, err
	}
	if bar.Open, err = strconv.ParseFloat(strings.TrimSpace(record[cols.open]), 64); err != nil {
		return bar, fmt.Errorf("open: %w", err)
	}
	if bar.High, err = strconv.ParseFloat(strings.TrimSpace(record[cols.high]), 64); err != nil {
		return bar, fmt.Errorf("high: %w", err)
	}
	if bar.Low, err = strconv.ParseFloat(strings.TrimSpace(record[cols.low]), 64); err != nil {
		return bar, fmt.Errorf("low: %w", err)
	}
	if bar.Close, err = strconv.ParseFloat(strings.TrimSpace(record[cols.close]), 64); err != nil {
		return bar, fmt.Errorf("close: %w", err)
	}
	vol, err := strconv.ParseFloat(strings.TrimSpace(record[cols.volume]), 64)
	if err != nil {
		return bar, fmt.Errorf("volume: %w", err)
	}
	bar.Volume = int64(vol)
	return bar, bar.Validate()
}

func sortBars(bars []models.Bar) {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
}
