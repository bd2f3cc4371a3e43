package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"quant_bot/internal/modules/config"
	exchange "quant_bot/internal/modules/exchange"
	"quant_bot/internal/modules/health"
	"quant_bot/internal/modules/postgres"
	telegram "quant_bot/internal/modules/telegram_bot"
	telemetry "quant_bot/internal/modules/telemetry"
	trader "quant_bot/internal/modules/trader"
	"quant_bot/pkg/logger"
	"quant_bot/pkg/tracing"
)

const serviceName = "quant_bot"

func main() {
	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		fx.Invoke(setupObservability),
		postgres.Module(),
		health.Module(),
		exchange.Module(),
		telemetry.Module(),
		telegram.Module(),
		trader.Module(),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	app.Run()
}

func setupObservability(lc fx.Lifecycle, cfg *config.Config) error {
	logger.SetServiceName(serviceName)
	if err := logger.Init(cfg.Debug); err != nil {
		return err
	}

	if cfg.Jaeger.Host != "" {
		tracing.SetServiceName(serviceName)
		_, closeTracer, err := tracing.InitTracer(tracing.Config{
			Host: cfg.Jaeger.Host,
			Port: cfg.Jaeger.Port,
		})
		if err != nil {
			logger.Warn("jaeger init failed, tracing disabled: %v", err)
		} else {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					closeTracer()
					return nil
				},
			})
		}
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Sync()
			return nil
		},
	})
	return nil
}
