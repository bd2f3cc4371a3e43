package strategy

import (
	"math"

	"quant_bot/internal/models"
)

const (
	emaFastPeriod = 50
	emaSlowPeriod = 200
	atrPeriod     = 14
	avgATRPeriod  = 50
	rsiPeriod     = 14
	volMeanPeriod = 20
	slopeLookback = 3
)

// Indicators — серии той же длины, что и свечи.
// Непрогретые значения — NaN, сравнения с ними дают false.
type Indicators struct {
	EMAFast []float64
	EMASlow []float64
	ATR     []float64
	AvgATR  []float64
	RSI     []float64
	VolMean []float64
	Slope   []float64 // приращение EMA50 за 3 свечи
}

func Compute(candles []models.Candle) *Indicators {
	n := len(candles)
	closes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
	}

	ind := &Indicators{
		EMAFast: emaSeries(closes, emaFastPeriod),
		EMASlow: emaSeries(closes, emaSlowPeriod),
	}

	ind.ATR = atrSeries(candles, atrPeriod)
	ind.AvgATR = rollingMean(ind.ATR, avgATRPeriod)
	ind.RSI = rsiSeries(closes, rsiPeriod)

	vols := make([]float64, n)
	for i, c := range candles {
		vols[i] = c.Volume
	}
	ind.VolMean = rollingMean(vols, volMeanPeriod)

	ind.Slope = make([]float64, n)
	for i := range ind.Slope {
		if i < slopeLookback {
			ind.Slope[i] = math.NaN()
			continue
		}
		ind.Slope[i] = ind.EMAFast[i] - ind.EMAFast[i-slopeLookback]
	}
	return ind
}

// last возвращает хвост серии, NaN если серия пуста.
func last(s []float64) float64 {
	if len(s) == 0 {
		return math.NaN()
	}
	return s[len(s)-1]
}

func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / (float64(period) + 1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

func atrSeries(candles []models.Candle, period int) []float64 {
	n := len(candles)
	tr := make([]float64, n)
	for i, c := range candles {
		if i == 0 {
			tr[i] = c.High - c.Low
			continue
		}
		prev := candles[i-1].Close
		tr[i] = math.Max(c.High-c.Low,
			math.Max(math.Abs(c.High-prev), math.Abs(c.Low-prev)))
	}
	return rollingMean(tr, period)
}

func rsiSeries(closes []float64, period int) []float64 {
	n := len(closes)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if i < period {
			out[i] = math.NaN()
			continue
		}
		var g, l float64
		for j := i - period + 1; j <= i; j++ {
			g += gains[j]
			l += losses[j]
		}
		if l == 0 {
			if g == 0 {
				out[i] = math.NaN() // плоское окно
			} else {
				out[i] = 100
			}
			continue
		}
		rs := g / l
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// rollingMean — окно с NaN даёт NaN, как pandas rolling().mean().
func rollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		var sum float64
		for j := i - window + 1; j <= i; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(window)
	}
	return out
}
