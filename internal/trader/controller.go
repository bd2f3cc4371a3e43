package trader

import (
	"context"
	"math"
	"sync"
	"time"

	"quant_bot/internal/exchange"
	"quant_bot/internal/ledger"
	"quant_bot/internal/models"
	"quant_bot/internal/modules/config"
	"quant_bot/internal/notify"
	"quant_bot/internal/reconcile"
	"quant_bot/internal/risk"
	"quant_bot/internal/strategy"
	"quant_bot/internal/telemetry"
	"quant_bot/pkg/logger"
)

// OrderPlacer — то, что контроллеру нужно от шлюза ордеров.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, symbol, side string, qty float64, reduceOnly bool) (*models.OrderReceipt, error)
}

// Scanner отдаёт не больше одного кандидата за цикл.
type Scanner interface {
	Scan(ctx context.Context, symbols []string, skip func(symbol string) bool) (models.Candidate, bool)
}

// Controller гоняет цикл одного счёта (SPOT или FUTURES).
// Таблица позиций принадлежит только ему; между счетами нет общих данных.
type Controller struct {
	name         string
	futures      bool
	riskFraction float64

	cfg     *config.Config
	client  exchange.Client
	gw      OrderPlacer
	scanner Scanner

	kill  *risk.KillSwitch
	daily *risk.DailyLossTracker

	// mu прикрывает positions/cooldowns/realized от читателя /positions
	mu        sync.Mutex
	positions map[string]*models.Position
	cooldowns map[string]time.Time
	realized  float64

	prices   *exchange.PriceCache
	trades   ledger.Recorder
	sink     telemetry.Sink
	notifier notify.Notifier

	reasoning string // последний вердикт цикла, уходит в телеметрию

	onCycle func() // heartbeat для health-эндпоинта
	now     func() time.Time
}

type Params struct {
	Name         string
	Futures      bool
	RiskFraction float64
	Config       *config.Config
	Client       exchange.Client
	Gateway      OrderPlacer
	Scanner      Scanner
	Prices       *exchange.PriceCache
	Ledger       ledger.Recorder
	Sink         telemetry.Sink
	Notifier     notify.Notifier
	OnCycle      func()
}

func New(p Params) *Controller {
	if p.Sink == nil {
		p.Sink = telemetry.Nop{}
	}
	if p.Notifier == nil {
		p.Notifier = notify.NewStdout()
	}
	if p.Ledger == nil {
		p.Ledger = ledger.NewMemory()
	}
	if p.OnCycle == nil {
		p.OnCycle = func() {}
	}
	return &Controller{
		name:         p.Name,
		futures:      p.Futures,
		riskFraction: p.RiskFraction,
		cfg:          p.Config,
		client:       p.Client,
		gw:           p.Gateway,
		scanner:      p.Scanner,
		kill:         &risk.KillSwitch{},
		daily:        risk.NewDailyLossTracker(p.Name, p.Config.MaxDailyLoss),
		positions:    make(map[string]*models.Position),
		cooldowns:    make(map[string]time.Time),
		prices:       p.Prices,
		trades:       p.Ledger,
		sink:         p.Sink,
		notifier:     p.Notifier,
		reasoning:    "starting",
		onCycle:      p.OnCycle,
		now:          time.Now,
	}
}

func (c *Controller) Account() string { return c.name }

// Snapshot — копия таблицы позиций для телеметрии и /positions.
func (c *Controller) Snapshot() map[string]models.Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]models.Position, len(c.positions))
	for k, v := range c.positions {
		out[k] = *v
	}
	return out
}

// Run блокирует до отмены контекста. Перед первым циклом обязателен
// стартовый sync: после рестарта память пуста, а биржа — нет.
func (c *Controller) Run(ctx context.Context) {
	if !c.startup(ctx) {
		return
	}

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("[%s] loop stopped", c.name)
			return
		case <-ticker.C:
			c.runCycle(ctx)
		}
	}
}

func (c *Controller) startup(ctx context.Context) bool {
	logger.Info("[%s] waiting for exchange connection...", c.name)
	for {
		if _, err := c.client.GetBalance(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Second):
		}
	}
	logger.Info("[%s] connected", c.name)

	if c.futures {
		for _, sym := range c.cfg.Symbols {
			if err := c.client.SetLeverage(ctx, sym, c.cfg.Leverage(sym)); err != nil {
				logger.Warn("[%s] set leverage %s: %v", c.name, sym, err)
			}
		}
	}

	// принимаем живые позиции с биржи до первого цикла
	exch, err := c.client.GetPositions(ctx)
	if err != nil {
		logger.Warn("[%s] startup position sync failed: %v", c.name, err)
		return true
	}
	c.mu.Lock()
	res := reconcile.Sync(c.name, c.positions, exch)
	c.mu.Unlock()

	for _, adopted := range res.Adopted {
		if adopted.Entry <= 0 {
			continue // spot-остаток без известного входа, стопы не выводим
		}
		atr, ok := c.currentATR(ctx, adopted.Symbol)
		if !ok {
			logger.Warn("[%s] restore %s: no atr, position stays unmanaged", c.name, adopted.Symbol)
			continue
		}
		c.mu.Lock()
		if pos, found := c.positions[adopted.Symbol]; found {
			deriveStops(pos, atr)
			logger.Info("[%s] restored %s %s @ %v sl=%v tp=%v",
				c.name, pos.Symbol, pos.Side, pos.Entry, pos.SL, pos.TP)
		}
		c.mu.Unlock()
	}
	return true
}

// currentATR — последний ATR старшего таймфрейма.
func (c *Controller) currentATR(ctx context.Context, sym string) (float64, bool) {
	candles, err := c.client.GetCandles(ctx, sym, c.cfg.Timeframes[0], c.cfg.CandleLimit)
	if err != nil || len(candles) == 0 {
		return 0, false
	}
	ind := strategy.Compute(candles)
	atr := ind.ATR[len(ind.ATR)-1]
	if math.IsNaN(atr) || atr <= 0 {
		return 0, false
	}
	return atr, true
}
