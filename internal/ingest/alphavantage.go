package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/quantel/ohlcvrag/internal/models"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// AlphaVantageSource fetches daily bars from the Alpha Vantage REST API.
type AlphaVantageSource struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewAlphaVantageSource(apiKey string, timeout time.Duration) *AlphaVantageSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AlphaVantageSource{
		apiKey:  apiKey,
		baseURL: alphaVantageBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *AlphaVantageSource) Name() string { return SourceAlphaVantage }

type alphaVantageResponse struct {
	ErrorMessage string                       `json:"Error Message"`
	Note         string                       `json:"Note"`
	Series       map[string]alphaVantageBar   `json:"Time Series (Daily)"`
}

type alphaVantageBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

func (s *AlphaVantageSource) Fetch(ctx context.Context, ticker string, r FetchRange) (models.Series, error) {
	params := url.Values{
		"function":   {"TIME_SERIES_DAILY"},
		"symbol":     {strings.ToUpper(ticker)},
		"apikey":     {s.apiKey},
		"outputsize": {"full"},
		"datatype":   {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return models.Series{}, &models.DataFetchError{Ticker: ticker, Source: s.Name(), Err: err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return models.Series{}, &models.DataFetchError{Ticker: ticker, Source: s.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.Series{}, &models.DataFetchError{
			Ticker: ticker, Source: s.Name(),
			Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body),
		}
	}

	var parsed alphaVantageResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return models.Series{}, &models.DataFetchError{Ticker: ticker, Source: s.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.ErrorMessage != "" {
		return models.Series{}, &models.DataFetchError{Ticker: ticker, Source: s.Name(), Err: fmt.Errorf("api error: %s", parsed.ErrorMessage)}
	}
	if parsed.Note != "" {
		return models.Series{}, &models.DataFetchError{Ticker: ticker, Source: s.Name(), Err: fmt.Errorf("api limit: %s", parsed.Note)}
	}
	if len(parsed.Series) == 0 {
		return models.Series{}, &models.DataFetchError{Ticker: ticker, Source: s.Name(), Err: fmt.Errorf("no data available")}
	}

	series := models.Series{Ticker: strings.ToUpper(ticker)}
	for date, raw := range parsed.Series {
		bar, err := raw.toBar(date)
		if err != nil {
			return models.Series{}, &models.DataFetchError{Ticker: ticker, Source: s.Name(), Err: err}
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

func (r alphaVantageBar) toBar(date string) (models.Bar, error) {
	var bar models.Bar
	var err error
	if bar.Date, err = time.Parse("2006-01-02", date); err != nil {
		return bar, fmt.Errorf("parse date %q: %w", date, err)
	}
	if bar.Open, err = strconv.ParseFloat(r.Open, 64); err != nil {
		return bar, fmt.Errorf("%s open: %w", date, err)
	}
	if bar.High, err = strconv.ParseFloat(r.High, 64); err != nil {
		return bar, fmt.Errorf("%s high: %w", date, err)
	}
	if bar.Low, err = strconv.ParseFloat(r.Low, 64); err != nil {
		return bar, fmt.Errorf("%s low: %w", date, err)
	}
	if bar.Close, err = strconv.ParseFloat(r.Close, 64); err != nil {
		return bar, fmt.Errorf("%s close: %w", date, err)
	}
	if bar.Volume, err = strconv.ParseInt(r.Volume, 10, 64); err != nil {
		return bar, fmt.Errorf("%s volume: %w", date, err)
	}
	return bar, nil
}
