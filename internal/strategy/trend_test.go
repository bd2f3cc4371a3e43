package strategy

import (
	"math"
	"testing"

	"quant_bot/internal/models"
)

func candle(open, high, low, close float64) models.Candle {
	return models.Candle{Open: open, High: high, Low: low, Close: close, Volume: 100}
}

// Восстанавливаемый лонг-сетап: тренд вверх, откат, консолидация
// над свинг-лоу 142.05, последняя зелёная свеча в 0.15 от поддержки.
func longSetupCandles() []models.Candle {
	var cs []models.Candle
	for i := 0; i < 75; i++ {
		c := 100 + 0.6*float64(i)
		cs = append(cs, candle(c-0.3, c+1.2, c-1.2, c))
	}
	for i := 75; i < 85; i++ {
		c := 144.4 - 0.18*float64(i-74)
		cs = append(cs, candle(c+0.15, c+0.3, c-0.2, c))
	}
	cs = append(cs, candle(142.5, 142.6, 142.05, 142.3)) // свинг-лоу
	c := 142.3
	for i := 0; i < 13; i++ {
		if i%2 == 0 {
			c -= 0.12
		} else {
			c += 0.16
		}
		cs = append(cs, candle(c+0.05, c+0.25, c-0.1, c))
	}
	cs = append(cs, candle(142.12, 142.45, 142.10, 142.20))
	return cs
}

func TestEvaluateLongPullback(t *testing.T) {
	s := NewTrendPullback()
	sig, ok := s.Evaluate(longSetupCandles())
	if !ok {
		t.Fatal("expected a long signal")
	}
	if sig.Side != models.SideLong {
		t.Fatalf("expected long, got %v", sig.Side)
	}
	if math.Abs(sig.Trigger-142.05) > 1e-9 {
		t.Fatalf("trigger must be the swing low, got %v", sig.Trigger)
	}
	if sig.Confidence < 0.7 || sig.Confidence > 0.8 {
		t.Fatalf("confidence out of expected band: %v", sig.Confidence)
	}
	if sig.RSI < 40 || sig.RSI > 50 {
		t.Fatalf("rsi outside entry band: %v", sig.RSI)
	}
	if sig.ATR <= 0 {
		t.Fatalf("atr must be positive, got %v", sig.ATR)
	}
}

func TestEvaluateRedCandleBlocksLong(t *testing.T) {
	cs := longSetupCandles()
	lastIdx := len(cs) - 1
	cs[lastIdx].Open = cs[lastIdx].Close + 0.05 // красная свеча
	if _, ok := NewTrendPullback().Evaluate(cs); ok {
		t.Fatal("red candle must not produce a long entry")
	}
}

func TestEvaluateWarmup(t *testing.T) {
	cs := longSetupCandles()[:30]
	if _, ok := NewTrendPullback().Evaluate(cs); ok {
		t.Fatal("not enough candles for warmup, must not signal")
	}
}

func TestEvaluateFlatMarket(t *testing.T) {
	var cs []models.Candle
	for i := 0; i < 120; i++ {
		cs = append(cs, candle(100, 100.5, 99.5, 100))
	}
	if _, ok := NewTrendPullback().Evaluate(cs); ok {
		t.Fatal("flat market must not signal")
	}
}

func TestDetectRegime(t *testing.T) {
	cases := []struct {
		price, emaSlow, slope float64
		want                  regime
	}{
		{110, 100, 1, regimeBullish},
		{90, 100, -1, regimeBearish},
		{110, 100, -1, regimeNeutral},
		{90, 100, 1, regimeNeutral},
		{110, 100, math.NaN(), regimeNeutral},
	}
	for _, c := range cases {
		if got := detectRegime(c.price, c.emaSlow, c.slope); got != c.want {
			t.Errorf("detectRegime(%v,%v,%v) = %v, want %v", c.price, c.emaSlow, c.slope, got, c.want)
		}
	}
}

func TestRSIBonus(t *testing.T) {
	if b := rsiBonus(45, 45); math.Abs(b-0.2) > 1e-9 {
		t.Errorf("ideal rsi must give full bonus, got %v", b)
	}
	if b := rsiBonus(40, 45); math.Abs(b-0.1) > 1e-9 {
		t.Errorf("5 points off => half bonus, got %v", b)
	}
	if b := rsiBonus(70, 45); b != 0 {
		t.Errorf("far rsi must give zero, got %v", b)
	}
}

func TestFindZones(t *testing.T) {
	// V-образный профиль: один свинг-лоу на дне
	var cs []models.Candle
	for i := 0; i < 10; i++ {
		c := 110 - float64(i)
		cs = append(cs, candle(c, c+0.5, c-0.5, c))
	}
	for i := 0; i < 10; i++ {
		c := 101.5 + float64(i)
		cs = append(cs, candle(c, c+0.5, c-0.5, c))
	}
	supports, _ := findZones(cs)
	if len(supports) != 1 {
		t.Fatalf("expected one support, got %v", supports)
	}
	if math.Abs(supports[0]-100.5) > 1e-9 {
		t.Fatalf("support must be the bottom wick, got %v", supports[0])
	}
}

func TestNearestLevels(t *testing.T) {
	levels := []float64{90, 95, 105, 110}
	if s, ok := nearestBelow(levels, 100); !ok || s != 95 {
		t.Fatalf("nearestBelow: %v %v", s, ok)
	}
	if r, ok := nearestAbove(levels, 100); !ok || r != 105 {
		t.Fatalf("nearestAbove: %v %v", r, ok)
	}
	if _, ok := nearestBelow(levels, 80); ok {
		t.Fatal("no level below 80")
	}
}
