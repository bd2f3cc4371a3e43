package trader

import (
	"context"
	"fmt"
	"math"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"quant_bot/internal/gateway"
	"quant_bot/internal/metrics"
	"quant_bot/internal/models"
	"quant_bot/internal/reconcile"
	"quant_bot/internal/risk"
	"quant_bot/internal/strategy"
	"quant_bot/internal/telemetry"
	"quant_bot/pkg/logger"
)

// runCycle — один проход. Порядок фиксированный:
// баланс → kill switch → телеметрия → управление/скан → вход → reconcile.
func (c *Controller) runCycle(ctx context.Context) {
	defer c.onCycle()

	span := opentracing.StartSpan("cycle")
	span.SetTag("account", c.name)
	defer span.Finish()
	ctx = opentracing.ContextWithSpan(ctx, span)

	acct, err := c.client.GetBalance(ctx)
	if err != nil || acct == nil {
		// баланса нет — цикл молча пропускаем, попробуем в следующем
		logger.Warn("[%s] balance unavailable, cycle aborted: %v", c.name, err)
		metrics.CycleAborts.WithLabelValues(c.name).Inc()
		return
	}
	metrics.Cycles.WithLabelValues(c.name).Inc()
	metrics.Equity.WithLabelValues(c.name).Set(acct.Equity)

	if breach, reason := c.daily.Observe(acct.Equity); breach {
		if c.kill.Trip(reason) {
			metrics.KillSwitch.WithLabelValues(c.name).Set(1)
			logger.Error("[%s] KILL SWITCH: %s", c.name, reason)
			c.notifier.Sendf("🛑 [%s] торговля остановлена: %s", c.name, reason)
		}
	}

	if tripped, reason := c.kill.Tripped(); tripped {
		// торговой логики нет, но отчёт уходит всегда
		c.report(ctx, acct, "halted: "+reason)
		return
	}

	c.report(ctx, acct, c.reasoning)

	c.reasoning = c.trade(ctx, acct)

	c.reconcileWithExchange(ctx)

	logger.Info("[%s] 💓 cycle done, balance=%.2f, positions=%d", c.name, acct.Equity, len(c.Snapshot()))
}

// trade: по символам с позицией — управление, по остальным — скан.
// Управление и скан взаимоисключающие для символа.
func (c *Controller) trade(ctx context.Context, acct *models.AccountState) string {
	c.mu.Lock()
	open := make([]string, 0, len(c.positions))
	for sym := range c.positions {
		open = append(open, sym)
	}
	c.mu.Unlock()

	for _, sym := range open {
		c.manage(ctx, sym)
	}

	cand, ok := c.scanner.Scan(ctx, c.cfg.Symbols, c.skipSymbol)
	if !ok {
		return "scan: no setup"
	}
	return c.enter(ctx, cand, acct)
}

func (c *Controller) skipSymbol(sym string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.positions[sym]; ok {
		return true
	}
	if until, ok := c.cooldowns[sym]; ok && c.now().Before(until) {
		return true
	}
	return false
}

// manage проверяет стопы и выходы открытой позиции. Сетевые вызовы
// идут без мьютекса, таблица правится короткими секциями.
func (c *Controller) manage(ctx context.Context, sym string) {
	c.mu.Lock()
	pos, ok := c.positions[sym]
	if !ok {
		c.mu.Unlock()
		return
	}
	snap := *pos
	c.mu.Unlock()

	candles, err := c.client.GetCandles(ctx, sym, c.cfg.Timeframes[0], c.cfg.CandleLimit)
	if err != nil || len(candles) == 0 {
		logger.Warn("[%s] manage %s: candles unavailable: %v", c.name, sym, err)
		return
	}
	ind := strategy.Compute(candles)
	price := candles[len(candles)-1].Close
	if c.prices != nil {
		if px, ok := c.prices.Get(sym); ok {
			price = px // ws свежее REST-свечи
		}
	}
	rsi := ind.RSI[len(ind.RSI)-1]
	atr := ind.ATR[len(ind.ATR)-1]

	if snap.Unmanaged() {
		// призрак: сначала перевооружаем стопы, выходы проверим через цикл
		if snap.Entry > 0 && !math.IsNaN(atr) && atr > 0 {
			c.mu.Lock()
			deriveStops(pos, atr)
			sl, tp := pos.SL, pos.TP
			c.mu.Unlock()
			logger.Info("[%s] re-armed %s: sl=%v tp=%v", c.name, sym, sl, tp)
		}
		return
	}

	reason := exitReason(&snap, price, rsi)
	if reason == "" {
		c.mu.Lock()
		c.trailToBreakeven(pos, price)
		c.mu.Unlock()
		return
	}
	c.exit(ctx, snap, price, reason)
}

// exitReason: стоп, тейк, и для шорта — перепроданность.
func exitReason(pos *models.Position, price, rsi float64) string {
	switch pos.Side {
	case models.SideLong:
		if price <= pos.SL {
			return "stop loss"
		}
		if price >= pos.TP {
			return "take profit"
		}
	case models.SideShort:
		if price >= pos.SL {
			return "stop loss"
		}
		if price <= pos.TP {
			return "take profit"
		}
		if !math.IsNaN(rsi) && rsi < 30 {
			return "rsi oversold"
		}
	}
	return ""
}

// trailToBreakeven подтягивает стоп к входу после движения на 1R.
// Вызывать под c.mu.
func (c *Controller) trailToBreakeven(pos *models.Position, price float64) {
	riskDist := math.Abs(pos.Entry - pos.SL)
	if riskDist == 0 {
		return
	}
	switch pos.Side {
	case models.SideLong:
		if price >= pos.Entry+riskDist && pos.SL < pos.Entry {
			pos.SL = pos.Entry
			logger.Info("[%s] %s stop moved to breakeven", c.name, pos.Symbol)
		}
	case models.SideShort:
		if price <= pos.Entry-riskDist && pos.SL > pos.Entry {
			pos.SL = pos.Entry
			logger.Info("[%s] %s stop moved to breakeven", c.name, pos.Symbol)
		}
	}
}

// exit шлёт reduce-only закрытие. Позиция из таблицы НЕ удаляется:
// подтверждение закрытия — работа reconcile, не наша.
func (c *Controller) exit(ctx context.Context, pos models.Position, price float64, reason string) {
	logger.Info("[%s] 📉 closing %s: %s", c.name, pos.Symbol, reason)

	// кулдаун ставим оптимистично: пере-входить сразу не хотим в любом случае
	c.mu.Lock()
	c.cooldowns[pos.Symbol] = c.now().Add(c.cfg.CooldownPerSymbol)
	c.mu.Unlock()

	closeSide := pos.Side.Opposite().OrderSide()
	if _, err := c.gw.PlaceOrder(ctx, pos.Symbol, closeSide, pos.Qty, c.futures); err != nil {
		if errors.Is(err, gateway.ErrRetriesExhausted) {
			logger.Warn("[%s] close %s: state unknown, reconcile will decide", c.name, pos.Symbol)
		} else {
			logger.Error("[%s] close %s rejected: %v", c.name, pos.Symbol, err)
		}
		return
	}

	pnl := (price - pos.Entry) * pos.Qty
	if pos.Side == models.SideShort {
		pnl = -pnl
	}
	c.mu.Lock()
	c.realized += pnl
	c.mu.Unlock()

	trade := models.Trade{
		Account:  c.name,
		Symbol:   pos.Symbol,
		Side:     pos.Side,
		Qty:      pos.Qty,
		Entry:    pos.Entry,
		Exit:     price,
		Pnl:      pnl,
		Reason:   reason,
		ClosedAt: c.now(),
	}
	if err := c.trades.RecordTrade(ctx, trade); err != nil {
		logger.Warn("[%s] trade not recorded: %v", c.name, err)
	}
	c.notifier.Sendf("💰 [%s] %s %s закрыт (%s), pnl=%.2f", c.name, pos.Symbol, pos.Side, reason, pnl)
}

// enter: размер из риск-бюджета, стоп от триггерной зоны и ATR.
func (c *Controller) enter(ctx context.Context, cand models.Candidate, acct *models.AccountState) string {
	price := cand.Price
	var sl float64
	if cand.Direction == models.SideLong {
		sl = cand.Trigger - 0.5*cand.ATR
	} else {
		sl = cand.Trigger + 0.5*cand.ATR
	}

	qty := risk.Size(acct.Equity, c.riskFraction, price, sl, risk.Constraints{
		Futures:         c.futures,
		MaxLeverage:     c.cfg.Leverage(cand.Symbol),
		LotSize:         c.cfg.LotSize(cand.Symbol),
		MaxTradeCapital: c.cfg.MaxTradeCapital,
	})
	if qty == 0 {
		return fmt.Sprintf("skip %s: size zero (risk reject)", cand.Symbol)
	}
	if qty*price < c.cfg.MinNotional {
		return fmt.Sprintf("skip %s: notional below %.0f", cand.Symbol, c.cfg.MinNotional)
	}

	logger.Info("[%s] 🚀 %s %s qty=%v score=%.2f", c.name, cand.Direction, cand.Symbol, qty, cand.Score)
	_, err := c.gw.PlaceOrder(ctx, cand.Symbol, cand.Direction.OrderSide(), qty, false)
	if err != nil {
		if errors.Is(err, gateway.ErrRetriesExhausted) {
			// состояние неизвестно: позицию НЕ создаём, прояснит reconcile
			logger.Warn("[%s] entry %s: state unknown after retries", c.name, cand.Symbol)
			return fmt.Sprintf("entry %s: state unknown", cand.Symbol)
		}
		logger.Error("[%s] entry %s rejected: %v", c.name, cand.Symbol, err)
		return fmt.Sprintf("entry %s rejected", cand.Symbol)
	}

	riskDist := math.Abs(price - sl)
	tp := price + 1.5*riskDist
	if cand.Direction == models.SideShort {
		tp = price - 1.5*riskDist
	}

	c.mu.Lock()
	c.positions[cand.Symbol] = &models.Position{
		Symbol:   cand.Symbol,
		Side:     cand.Direction,
		Entry:    price,
		Qty:      qty,
		SL:       sl,
		TP:       tp,
		OpenedAt: c.now(),
	}
	c.mu.Unlock()

	c.notifier.Sendf("✨ [%s] %s %s qty=%v @ %.2f sl=%.2f tp=%.2f score=%.2f",
		c.name, cand.Direction, cand.Symbol, qty, price, sl, tp, cand.Score)
	return fmt.Sprintf("entered %s %s", cand.Direction, cand.Symbol)
}

func (c *Controller) reconcileWithExchange(ctx context.Context) {
	exch, err := c.client.GetPositions(ctx)
	if err != nil {
		// снимка нет — таблицу не трогаем, удалять без подтверждения нельзя
		logger.Warn("[%s] reconcile skipped: %v", c.name, err)
		return
	}
	c.mu.Lock()
	res := reconcile.Sync(c.name, c.positions, exch)
	c.mu.Unlock()

	for _, closed := range res.Closed {
		c.notifier.Sendf("✅ [%s] %s закрытие подтверждено биржей", c.name, closed.Symbol)
	}
	for _, ghost := range res.Adopted {
		c.notifier.Sendf("⚠️ [%s] принята позиция с биржи: %s %s qty=%v", c.name, ghost.Symbol, ghost.Side, ghost.Qty)
	}
}

// deriveStops выводит SL/TP из входа и текущего ATR: стоп в полуATR,
// тейк через 1.5R.
func deriveStops(pos *models.Position, atr float64) {
	if pos.Side == models.SideLong {
		pos.SL = pos.Entry - 0.5*atr
	} else {
		pos.SL = pos.Entry + 0.5*atr
	}
	riskDist := math.Abs(pos.Entry - pos.SL)
	if pos.Side == models.SideLong {
		pos.TP = pos.Entry + 1.5*riskDist
	} else {
		pos.TP = pos.Entry - 1.5*riskDist
	}
}

// report — best-effort телеметрия, никогда не блокирует торговлю.
func (c *Controller) report(ctx context.Context, acct *models.AccountState, reasoning string) {
	unrealized := acct.UnrealizedPnl
	snap := c.Snapshot()

	if !c.futures && c.prices != nil {
		// у spot-счёта нет unrealized pnl в ответе, считаем по кешу цен
		unrealized = 0
		for sym, pos := range snap {
			px, ok := c.prices.Get(sym)
			if !ok || pos.Entry == 0 {
				continue
			}
			d := (px - pos.Entry) * pos.Qty
			if pos.Side == models.SideShort {
				d = -d
			}
			unrealized += d
		}
	}

	views := make(map[string]telemetry.PositionView, len(snap))
	for sym, pos := range snap {
		views[sym] = telemetry.PositionView{
			Side:  string(pos.Side),
			Entry: pos.Entry,
			Qty:   pos.Qty,
			SL:    pos.SL,
			TP:    pos.TP,
		}
	}

	c.mu.Lock()
	realized := c.realized
	c.mu.Unlock()

	c.sink.Report(ctx, telemetry.Payload{
		Account:    c.name,
		Balance:    acct.Equity,
		Pnl:        realized + unrealized,
		MarginUsed: acct.MarginUsed,
		Available:  acct.Available,
		Reasoning:  fmt.Sprintf("%s bot: %s", c.name, reasoning),
		Positions:  views,
	})
}
