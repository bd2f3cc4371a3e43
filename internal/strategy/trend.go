package strategy

import (
	"math"

	"quant_bot/internal/models"
)

type regime int

const (
	regimeNeutral regime = iota
	regimeBullish
	regimeBearish
)

const (
	srWindow = 5

	rsiLongMin  = 40.0
	rsiLongMax  = 50.0
	rsiShortMin = 55.0
	rsiShortMax = 65.0

	baseConfidence = 0.5
)

// TrendPullback торгует откаты к S/R-зонам по направлению тренда.
// Лонг: бычий режим, цена у поддержки, RSI в полосе 40-50, зелёная свеча.
// Шорт зеркально у сопротивления.
type TrendPullback struct{}

func NewTrendPullback() *TrendPullback { return &TrendPullback{} }

func (s *TrendPullback) Name() string { return "trend_pullback" }

func (s *TrendPullback) Evaluate(candles []models.Candle) (Signal, bool) {
	// прогрев: ATR(14) + его среднее(50)
	if len(candles) < atrPeriod+avgATRPeriod {
		return Signal{}, false
	}

	ind := Compute(candles)
	lastC := candles[len(candles)-1]

	price := lastC.Close
	atr := last(ind.ATR)
	avgATR := last(ind.AvgATR)
	rsi := last(ind.RSI)
	emaFast := last(ind.EMAFast)
	slope := last(ind.Slope)

	// фильтр волатильности: не входим в шторм
	if math.IsNaN(atr) || math.IsNaN(avgATR) || atr > 2*avgATR {
		return Signal{}, false
	}

	supports, resistances := findZones(candles)

	switch detectRegime(price, last(ind.EMASlow), slope) {
	case regimeBullish:
		confidence := baseConfidence
		if slope > 0 {
			confidence += 0.1
		}
		supp, ok := nearestBelow(supports, price)
		if !ok {
			return Signal{}, false
		}
		dist := price - supp
		if dist <= 0.3*atr {
			confidence += 0.2 // идеальное касание
		}
		if dist > 0.5*atr {
			return Signal{}, false
		}
		if rsi < rsiLongMin || rsi > rsiLongMax {
			return Signal{}, false
		}
		confidence += rsiBonus(rsi, 45)
		// не гонимся за ценой выше 50EMA + запас в 1 ATR
		if price < emaFast-atr {
			return Signal{}, false
		}
		if lastC.Close <= lastC.Open {
			return Signal{}, false // ждём зелёную свечу
		}
		return Signal{
			Side:       models.SideLong,
			Trigger:    supp,
			Confidence: math.Min(confidence, 1.0),
			ATR:        atr,
			RSI:        rsi,
		}, true

	case regimeBearish:
		confidence := baseConfidence
		if slope < 0 {
			confidence += 0.1
		}
		res, ok := nearestAbove(resistances, price)
		if !ok {
			return Signal{}, false
		}
		dist := res - price
		if dist <= 0.3*atr {
			confidence += 0.2
		}
		if dist > 0.5*atr {
			return Signal{}, false
		}
		if rsi < rsiShortMin || rsi > rsiShortMax {
			return Signal{}, false
		}
		confidence += rsiBonus(rsi, 60)
		if price > emaFast+atr {
			return Signal{}, false
		}
		if lastC.Close >= lastC.Open {
			return Signal{}, false
		}
		return Signal{
			Side:       models.SideShort,
			Trigger:    res,
			Confidence: math.Min(confidence, 1.0),
			ATR:        atr,
			RSI:        rsi,
		}, true
	}

	return Signal{}, false
}

// detectRegime: бычий — цена выше EMA200 и EMA50 растёт; медвежий зеркально.
func detectRegime(price, emaSlow, slope float64) regime {
	if math.IsNaN(slope) || math.IsNaN(emaSlow) {
		return regimeNeutral
	}
	switch {
	case price > emaSlow && slope > 0:
		return regimeBullish
	case price < emaSlow && slope < 0:
		return regimeBearish
	}
	return regimeNeutral
}

// rsiBonus — до 0.2 за близость к идеальному значению, -0.02 за пункт отклонения.
func rsiBonus(rsi, ideal float64) float64 {
	return math.Max(0, 0.2-math.Abs(rsi-ideal)*0.02)
}

// findZones ищет локальные экстремумы в центрированном окне 2w+1.
// Края серии пропускаются, там окно неполное.
func findZones(candles []models.Candle) (supports, resistances []float64) {
	for i := srWindow; i < len(candles)-srWindow; i++ {
		isHigh, isLow := true, true
		for j := i - srWindow; j <= i+srWindow; j++ {
			if candles[j].High > candles[i].High {
				isHigh = false
			}
			if candles[j].Low < candles[i].Low {
				isLow = false
			}
		}
		if isHigh {
			resistances = append(resistances, candles[i].High)
		}
		if isLow {
			supports = append(supports, candles[i].Low)
		}
	}
	return supports, resistances
}

func nearestBelow(levels []float64, price float64) (float64, bool) {
	best, found := 0.0, false
	for _, l := range levels {
		if l < price && (!found || l > best) {
			best, found = l, true
		}
	}
	return best, found
}

func nearestAbove(levels []float64, price float64) (float64, bool) {
	best, found := 0.0, false
	for _, l := range levels {
		if l > price && (!found || l < best) {
			best, found = l, true
		}
	}
	return best, found
}
