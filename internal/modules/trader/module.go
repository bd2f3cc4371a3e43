package trader

import (
	"context"

	"go.uber.org/fx"

	ex "quant_bot/internal/exchange"
	"quant_bot/internal/gateway"
	"quant_bot/internal/ledger"
	"quant_bot/internal/modules/config"
	"quant_bot/internal/modules/health/service"
	"quant_bot/internal/notify"
	"quant_bot/internal/scan"
	"quant_bot/internal/strategy"
	"quant_bot/internal/telemetry"
	"quant_bot/internal/trader"
)

type ControllersParams struct {
	fx.In

	Cfg      *config.Config
	Futures  *ex.FuturesClient
	Spot     *ex.SpotClient
	Prices   *ex.PriceCache
	Ledger   ledger.Recorder
	Sink     telemetry.Sink
	Notifier notify.Notifier
	Health   *service.State
}

// NewControllers собирает оба счёта: futures и spot. Каждый получает свой
// gateway и свой сканер, стратегия общая.
func NewControllers(p ControllersParams) []*trader.Controller {
	strat := strategy.New()

	newScanner := func(src scan.CandleSource) *scan.Scanner {
		return scan.New(src, strat,
			p.Cfg.Timeframes, p.Cfg.TimeframeWeights,
			p.Cfg.ConfidenceThreshold, p.Cfg.CandleLimit)
	}

	futures := trader.New(trader.Params{
		Name:         "FUTURES",
		Futures:      true,
		RiskFraction: p.Cfg.RiskFutures,
		Config:       p.Cfg,
		Client:       p.Futures,
		Gateway:      gateway.New(p.Futures),
		Scanner:      newScanner(p.Futures),
		Prices:       p.Prices,
		Ledger:       p.Ledger,
		Sink:         p.Sink,
		Notifier:     p.Notifier,
		OnCycle:      p.Health.TouchCycleNow,
	})

	spot := trader.New(trader.Params{
		Name:         "SPOT",
		Futures:      false,
		RiskFraction: p.Cfg.RiskSpot,
		Config:       p.Cfg,
		Client:       p.Spot,
		Gateway:      gateway.New(p.Spot),
		Scanner:      newScanner(p.Spot),
		Prices:       p.Prices,
		Ledger:       p.Ledger,
		Sink:         p.Sink,
		Notifier:     p.Notifier,
		OnCycle:      p.Health.TouchCycleNow,
	})

	return []*trader.Controller{futures, spot}
}

// Run запускает контроллеры, каждый в своей горутине. Счета независимы,
// общих блокировок между ними нет.
func Run(lc fx.Lifecycle, controllers []*trader.Controller, tg *notify.Telegram, state *service.State) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			for _, c := range controllers {
				tg.RegisterSource(c)
				go c.Run(runCtx)
			}
			state.SetReady(true)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			state.SetReady(false)
			cancel()
			return nil
		},
	})
}

func Module() fx.Option {
	return fx.Module("trader",
		fx.Provide(NewControllers),
		fx.Invoke(Run),
	)
}
