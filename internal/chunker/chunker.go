// Package chunker slices an indicator-enriched bar series into overlapping
// windows and renders each window into a text chunk for embedding.
package chunker

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/quantel/ohlcvrag/internal/models"
	"github.com/quantel/ohlcvrag/pkg/utils"
)

// Defaults for window geometry. With stride = window/2 adjacent chunks share
// half their bars.
const (
	DefaultWindow = 30
	DefaultStride = 15
)

// Config controls window geometry.
type Config struct {
	Window int `yaml:"window" default:"30" validate:"gt=0"`
	Stride int `yaml:"stride" default:"15" validate:"gt=0"`
}

// Chunker builds chunks from enriched series.
type Chunker struct {
	window int
	stride int
}

// New returns a Chunker. Non-positive window or stride fall back to the
// defaults; stride is capped at window.
func New(cfg Config) *Chunker {
	w, s := cfg.Window, cfg.Stride
	if w <= 0 {
		w = DefaultWindow
	}
	if s <= 0 {
		s = w / 2
		if s == 0 {
			s = 1
		}
	}
	if s > w {
		s = w
	}
	return &Chunker{window: w, stride: s}
}

// Window returns the configured window size.
func (c *Chunker) Window() int { return c.window }

// Stride returns the configured stride.
func (c *Chunker) Stride() int { return c.stride }

// BuildChunks slices the series into windows of Window bars advancing by
// Stride. A partial tail shorter than the window is dropped. Output is
// deterministic: same input, same chunks in the same order.
func (c *Chunker) BuildChunks(e models.EnrichedSeries) ([]*models.Chunk, error) {
	if err := e.Series.Validate(); err != nil {
		return nil, err
	}
	n := e.Len()
	if n < c.window {
		return nil, nil
	}

	var chunks []*models.Chunk
	for start := 0; start+c.window <= n; start += c.stride {
		chunks = append(chunks, c.buildWindow(e, start, start+c.window))
	}
	return chunks, nil
}

func (c *Chunker) buildWindow(e models.EnrichedSeries, lo, hi int) *models.Chunk {
	bars := e.Bars[lo:hi]
	first, last := bars[0], bars[len(bars)-1]

	ind := make(map[string][]float64, len(e.Indicators))
	for name, series := range e.Indicators {
		ind[name] = append([]float64(nil), series[lo:hi]...)
	}

	stats := windowStats(bars, ind)
	trend := classifyTrend(stats.netReturn, stats.volatility)

	ck := &models.Chunk{
		ID:         models.ChunkID(e.Ticker, first.Date, last.Date),
		Ticker:     strings.ToUpper(e.Ticker),
		StartDate:  first.Date,
		EndDate:    last.Date,
		Bars:       append([]models.Bar(nil), bars...),
		Indicators: ind,
		CreatedAt:  time.Now().UTC(),
		Metadata: map[string]interface{}{
			models.MetaTicker:     strings.ToUpper(e.Ticker),
			models.MetaStartDate:  first.Date.Format("2006-01-02"),
			models.MetaEndDate:    last.Date.Format("2006-01-02"),
			models.MetaTrend:      trend,
			models.MetaAvgVolume:  stats.avgVolume,
			models.MetaVolatility: stats.volatility,
			models.MetaPriceHigh:  stats.high,
			models.MetaPriceLow:   stats.low,
			models.MetaPriceOpen:  first.Open,
			models.MetaPriceClose: last.Close,
			models.MetaPctChange:  stats.netReturn * 100,
		},
	}
	if !math.IsNaN(stats.rsiAvg) {
		ck.Metadata[models.MetaRSIAvg] = stats.rsiAvg
	}
	ck.Summary = renderSummary(ck, stats, trend)
	return ck
}

type stats struct {
	netReturn  float64 // fractional close-to-close move over the window
	volatility float64 // stddev of daily returns inside the window
	avgVolume  float64
	high, low  float64
	rsiAvg     float64 // NaN when RSI never defined in the window
}

func windowStats(bars []models.Bar, ind map[string][]float64) stats {
	st := stats{high: bars[0].High, low: bars[0].Low, rsiAvg: math.NaN()}

	var volSum float64
	for _, b := range bars {
		volSum += float64(b.Volume)
		if b.High > st.high {
			st.high = b.High
		}
		if b.Low < st.low {
			st.low = b.Low
		}
	}
	st.avgVolume = volSum / float64(len(bars))

	first, last := bars[0].Close, bars[len(bars)-1].Close
	if first != 0 {
		st.netReturn = (last - first) / first
	}

	var rets []float64
	for i := 1; i < len(bars); i++ {
		if bars[i-1].Close != 0 {
			rets = append(rets, (bars[i].Close-bars[i-1].Close)/bars[i-1].Close)
		}
	}
	st.volatility = utils.StdDev(rets)

	if rsi, ok := ind[models.IndRSI14]; ok {
		st.rsiAvg = nanMean(rsi)
	}
	return st
}

// classifyTrend labels a window by its net move measured against the window's
// own daily-return noise: a move within one standard deviation is sideways.
func classifyTrend(netReturn, volatility float64) string {
	switch {
	case math.Abs(netReturn) <= volatility:
		return models.TrendSideways
	case netReturn > 0:
		return models.TrendUptrend
	default:
		return models.TrendDowntrend
	}
}

func renderSummary(ck *models.Chunk, st stats, trend string) string {
	first, last := ck.Bars[0], ck.Bars[len(ck.Bars)-1]
	pct := st.netReturn * 100

	var b strings.Builder
	fmt.Fprintf(&b, "%s OHLCV data from %s to %s:\n",
		ck.Ticker, first.Date.Format("2006-01-02"), last.Date.Format("2006-01-02"))
	fmt.Fprintf(&b, "- Price movement: %.2f%% ($%.2f to $%.2f)\n", pct, first.Close, last.Close)
	fmt.Fprintf(&b, "- Dominant trend: %s\n", trend)
	fmt.Fprintf(&b, "- Average volume: %.0f\n", st.avgVolume)
	fmt.Fprintf(&b, "- Price range: $%.2f - $%.2f", st.low, st.high)

	if !math.IsNaN(st.rsiAvg) {
		fmt.Fprintf(&b, "\n- Average RSI: %.2f", st.rsiAvg)
	}
	fmt.Fprintf(&b, "\n- Volatility (std of returns): %.4f", st.volatility)

	if pct > 10 {
		fmt.Fprintf(&b, "\n- Significant upward movement detected (%.2f%%)", pct)
	} else if pct < -10 {
		fmt.Fprintf(&b, "\n- Significant downward movement detected (%.2f%%)", pct)
	}
	if !math.IsNaN(st.rsiAvg) {
		if st.rsiAvg > 70 {
			b.WriteString("\n- Overbought conditions (RSI > 70)")
		} else if st.rsiAvg < 30 {
			b.WriteString("\n- Oversold conditions (RSI < 30)")
		}
	}
	return b.String()
}

func nanMean(values []float64) float64 {
	var sum float64
	var n int
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
