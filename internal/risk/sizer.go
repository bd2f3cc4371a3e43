package risk

import "math"

// Constraints — ограничения инструмента/счёта для сайзинга.
type Constraints struct {
	Futures     bool
	MaxLeverage int     // futures: cap notional = equity * lev
	LotSize     float64 // шаг лота, округляем вниз
	// Потолок капитала на одну сделку (spot), в валюте счёта. 0 = без потолка.
	MaxTradeCapital float64
	// Котируемая валюта инструмента за единицу валюты счёта (JPY-пары и т.п.).
	// 0 или 1 — конвертация не нужна.
	QuoteRate float64
}

// Size считает размер позиции от денежного риска:
//
//	qty = equity*riskFraction / |entry - stop|
//
// Futures: notional ограничен equity*maxLeverage; если дистанция до
// ликвидации (entry/maxLeverage) меньше 2x дистанции до стопа — отказ.
// Ноль означает "слишком мало / слишком рискованно, пропустить", не ошибку.
func Size(equity, riskFraction, entry, stop float64, c Constraints) float64 {
	if equity <= 0 || riskFraction <= 0 || entry <= 0 || stop <= 0 {
		return 0
	}
	dist := math.Abs(entry - stop)
	if dist == 0 {
		return 0
	}

	rate := c.QuoteRate
	if rate <= 0 {
		rate = 1
	}

	// риск-бюджет в котируемой валюте инструмента
	riskAmt := equity * riskFraction * rate
	qty := riskAmt / dist

	if c.Futures {
		lev := c.MaxLeverage
		if lev <= 0 {
			lev = 1
		}

		// notional cap
		maxNotional := equity * rate * float64(lev)
		if qty*entry > maxNotional {
			qty = maxNotional / entry
		}

		// стоп обязан сработать сильно раньше ликвидации
		liqDist := entry / float64(lev)
		if liqDist < 2*dist {
			return 0
		}
	} else if c.MaxTradeCapital > 0 {
		maxQty := c.MaxTradeCapital * rate / entry
		if qty > maxQty {
			qty = maxQty
		}
	}

	if c.LotSize > 0 {
		steps := math.Floor(qty/c.LotSize + 1e-9)
		qty = steps * c.LotSize
	}

	if qty <= 0 || math.IsNaN(qty) || math.IsInf(qty, 0) {
		return 0
	}
	return qty
}
