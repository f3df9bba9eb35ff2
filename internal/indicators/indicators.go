// Package indicators derives technical indicator series from OHLCV bars.
//
// Every indicator is a slice parallel to the input bars. Positions inside an
// indicator's warm-up period hold NaN so callers can tell "undefined" apart
// from a real zero.
package indicators

import (
	"math"

	"github.com/quantel/ohlcvrag/internal/models"
)

// Periods used throughout. They match the common charting defaults.
const (
	smaFast   = 20
	smaSlow   = 50
	emaFast   = 12
	emaSlow   = 26
	rsiPeriod = 14
	macdSig   = 9
	bbPeriod  = 20
	bbWidth   = 2.0
)

// Compute returns the series enriched with the full indicator set and per-bar
// trend labels. The input series is not modified.
func Compute(s models.Series) models.EnrichedSeries {
	closes := s.Closes()

	ind := map[string][]float64{
		models.IndSMA20:    SMA(closes, smaFast),
		models.IndSMA50:    SMA(closes, smaSlow),
		models.IndEMA12:    EMA(closes, emaFast),
		models.IndEMA26:    EMA(closes, emaSlow),
		models.IndRSI14:    RSI(closes, rsiPeriod),
		models.IndReturn1:  PctChange(closes, 1),
		models.IndReturn5:  PctChange(closes, 5),
		models.IndReturn20: PctChange(closes, 20),
	}

	macd, signal, diff := MACD(closes, emaFast, emaSlow, macdSig)
	ind[models.IndMACD] = macd
	ind[models.IndMACDSignal] = signal
	ind[models.IndMACDDiff] = diff

	upper, middle, lower := Bollinger(closes, bbPeriod, bbWidth)
	ind[models.IndBBUpper] = upper
	ind[models.IndBBMiddle] = middle
	ind[models.IndBBLower] = lower

	return models.EnrichedSeries{
		Series:      s,
		Indicators:  ind,
		TrendLabels: trendLabels(closes, ind[models.IndSMA20], ind[models.IndSMA50]),
	}
}

// SMA computes the simple moving average over period values. The first
// period-1 positions are NaN.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA computes the exponential moving average with smoothing 2/(period+1),
// seeded with the SMA of the first period values.
func EMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	var seed float64
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)
	out[period-1] = seed

	alpha := 2.0 / (float64(period) + 1.0)
	prev := seed
	for i := period; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// RSI computes the relative strength index using Wilder smoothing. The first
// period positions are NaN; defined values lie in [0, 100].
func RSI(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) <= period {
		return out
	}
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD computes the moving average convergence divergence line, its signal
// line, and the histogram (line minus signal).
func MACD(values []float64, fast, slow, signalPeriod int) (line, signal, hist []float64) {
	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)

	line = nanSlice(len(values))
	for i := range values {
		line[i] = fastEMA[i] - slowEMA[i]
	}

	// The signal EMA starts where the MACD line is first defined.
	signal = nanSlice(len(values))
	start := slow - 1
	if start < len(values) {
		sub := EMA(line[start:], signalPeriod)
		copy(signal[start:], sub)
	}

	hist = nanSlice(len(values))
	for i := range values {
		hist[i] = line[i] - signal[i]
	}
	return line, signal, hist
}

// Bollinger computes the upper, middle, and lower Bollinger bands. The middle
// band is the SMA; the others sit width population standard deviations away.
func Bollinger(values []float64, period int, width float64) (upper, middle, lower []float64) {
	middle = SMA(values, period)
	upper = nanSlice(len(values))
	lower = nanSlice(len(values))
	for i := period - 1; i < len(values); i++ {
		sd := stddev(values[i-period+1:i+1], middle[i])
		upper[i] = middle[i] + width*sd
		lower[i] = middle[i] - width*sd
	}
	return upper, middle, lower
}

// PctChange computes the fractional change over lag positions. The first lag
// positions are NaN.
func PctChange(values []float64, lag int) []float64 {
	out := nanSlice(len(values))
	for i := lag; i < len(values); i++ {
		prev := values[i-lag]
		if prev != 0 {
			out[i] = (values[i] - prev) / prev
		}
	}
	return out
}

// trendLabels classifies each bar: uptrend when the fast average is above the
// slow one and the close above the fast average, downtrend in the mirrored
// case, sideways otherwise (including the warm-up where averages are NaN).
func trendLabels(closes, fast, slow []float64) []string {
	labels := make([]string, len(closes))
	for i := range closes {
		switch {
		case fast[i] > slow[i] && closes[i] > fast[i]:
			labels[i] = models.TrendUptrend
		case fast[i] < slow[i] && closes[i] < fast[i]:
			labels[i] = models.TrendDowntrend
		default:
			labels[i] = models.TrendSideways
		}
	}
	return labels
}

func stddev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
