package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/quantel/ohlcvrag/internal/models"
)

// XLSXSource reads <dir>/<TICKER>.xlsx workbooks. The first sheet must carry
// the same header layout the CSV source accepts.
type XLSXSource struct {
	dir string
}

func NewXLSXSource(dir string) *XLSXSource {
	return &XLSXSource{dir: dir}
}

func (s *XLSXSource) Name() string { return SourceXLSX }

func (s *XLSXSource) Fetch(ctx context.Context, ticker string, r FetchRange) (models.Series, error) {
	path := filepath.Join(s.dir, strings.ToUpper(ticker)+".xlsx")
	f, err := excelize.OpenFile(path)
	if err != nil {
		return models.Series{}, &models.DataFetchError{Ticker: ticker, Source: s.Name(), Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return models.Series{}, &models.DataFetchError{Ticker: ticker, Source: s.Name(), Err: fmt.Errorf("workbook has no sheets")}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return models.Series{}, &models.DataFetchError{Ticker: ticker, Source: s.Name(), Err: err}
	}
	if len(rows) < 2 {
		return models.Series{}, &models.DataFetchError{Ticker: ticker, Source: s.Name(), Err: fmt.Errorf("no data rows")}
	}

	cols, err := mapColumns(rows[0])
	if err != nil {
		return models.Series{}, &models.DataFetchError{Ticker: ticker, Source: s.Name(), Err: err}
	}
	maxCol := maxIndex(cols)

	series := models.Series{Ticker: strings.ToUpper(ticker)}
	for i, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		if len(row) <= maxCol {
			// excelize trims trailing empty cells
			padded := make([]string, maxCol+1)
			copy(padded, row)
			row = padded
		}
		bar, err := parseBar(row, cols)
		if err != nil {
			return models.Series{}, &models.DataFetchError{
				Ticker: ticker, Source: s.Name(),
				Err: fmt.Errorf("row %d: %w", i+2, err),
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

func maxIndex(cols columnMap) int {
	max := cols.date
	for _, i := range []int{cols.open, cols.high, cols.low, cols.close, cols.volume} {
		if i > max {
			max = i
		}
	}
	return max
}
