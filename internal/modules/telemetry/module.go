package telemetry

import (
	"go.uber.org/fx"

	"quant_bot/internal/modules/config"
	"quant_bot/internal/telemetry"
	"quant_bot/pkg/logger"
)

func NewSink(cfg *config.Config) telemetry.Sink {
	if cfg.DashboardURL == "" {
		logger.Info("[TELEMETRY] dashboard url not set, reporting disabled")
		return telemetry.Nop{}
	}
	return telemetry.NewHTTPSink(cfg.DashboardURL)
}

func Module() fx.Option {
	return fx.Module("telemetry",
		fx.Provide(NewSink),
	)
}
