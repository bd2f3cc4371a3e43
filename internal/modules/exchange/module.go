package exchange

import (
	"context"

	"go.uber.org/fx"

	ex "quant_bot/internal/exchange"
	"quant_bot/internal/modules/config"
	"quant_bot/internal/modules/health/service"
)

func NewFuturesClient(cfg *config.Config) *ex.FuturesClient {
	return ex.NewFuturesClient(cfg.FuturesAPIKey, cfg.FuturesAPISecret, cfg.BinanceTestnet)
}

func NewSpotClient(cfg *config.Config) *ex.SpotClient {
	return ex.NewSpotClient(cfg.SpotAPIKey, cfg.SpotAPISecret, cfg.BinanceTestnet, cfg.Symbols, cfg.DustMap)
}

// RunPriceStream поднимает ws-воркер цен на время жизни приложения.
func RunPriceStream(lc fx.Lifecycle, cfg *config.Config, cache *ex.PriceCache, state *service.State) {
	streamCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ex.StreamPrices(streamCtx, cfg.Symbols, cache, state.SetWSConnected)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return nil
		},
	})
}

func Module() fx.Option {
	return fx.Module("exchange",
		fx.Provide(
			ex.NewPriceCache,
			NewFuturesClient,
			NewSpotClient,
		),
		fx.Invoke(RunPriceStream),
	)
}
