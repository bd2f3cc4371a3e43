package strategy

import (
	"math"
	"testing"

	"quant_bot/internal/models"
)

func TestEMAConstantSeries(t *testing.T) {
	vals := make([]float64, 60)
	for i := range vals {
		vals[i] = 42
	}
	out := emaSeries(vals, 50)
	if out[len(out)-1] != 42 {
		t.Fatalf("ema of constant series must be the constant, got %v", out[len(out)-1])
	}
}

func TestRSIMonotonicUp(t *testing.T) {
	vals := make([]float64, 30)
	for i := range vals {
		vals[i] = 100 + float64(i)
	}
	out := rsiSeries(vals, 14)
	if got := out[len(out)-1]; got != 100 {
		t.Fatalf("only gains => rsi 100, got %v", got)
	}
	if !math.IsNaN(out[13]) {
		t.Fatal("rsi must be NaN before warmup")
	}
}

func TestATRConstantRange(t *testing.T) {
	var cs []models.Candle
	for i := 0; i < 30; i++ {
		cs = append(cs, candle(100, 101, 99, 100))
	}
	out := atrSeries(cs, 14)
	if !math.IsNaN(out[12]) {
		t.Fatal("atr must be NaN before warmup")
	}
	if math.Abs(out[len(out)-1]-2) > 1e-9 {
		t.Fatalf("atr of fixed 2-point range must be 2, got %v", out[len(out)-1])
	}
}

func TestRollingMeanNaNWindow(t *testing.T) {
	vals := []float64{math.NaN(), 1, 2, 3, 4}
	out := rollingMean(vals, 3)
	if !math.IsNaN(out[2]) {
		t.Fatal("window touching NaN must be NaN")
	}
	if math.Abs(out[3]-2) > 1e-9 {
		t.Fatalf("clean window: want 2, got %v", out[3])
	}
}

func TestComputeSlopeSign(t *testing.T) {
	var cs []models.Candle
	for i := 0; i < 80; i++ {
		c := 100 + float64(i)
		cs = append(cs, candle(c, c+1, c-1, c))
	}
	ind := Compute(cs)
	if last(ind.Slope) <= 0 {
		t.Fatalf("uptrend must give positive ema slope, got %v", last(ind.Slope))
	}
}
