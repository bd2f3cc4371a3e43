package telegram

import (
	"context"

	"go.uber.org/fx"

	"quant_bot/internal/modules/config"
	"quant_bot/internal/notify"
	"quant_bot/pkg/logger"
)

// NewTelegram возвращает nil, если токен не задан. Методы *notify.Telegram
// nil-safe, контроллеры об этом не знают.
func NewTelegram(cfg *config.Config) (*notify.Telegram, error) {
	if cfg.Telegram.Token == "" {
		logger.Info("[TG] token not set, notifications go to log")
		return nil, nil
	}
	return notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
}

func NewNotifier(t *notify.Telegram) notify.Notifier {
	if t == nil {
		return notify.NewStdout()
	}
	return t
}

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			NewTelegram,
			NewNotifier,
		),
		fx.Invoke(
			func(lc fx.Lifecycle, t *notify.Telegram) {
				if t == nil {
					return
				}
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return t.Start(ctx)
					},
					OnStop: func(ctx context.Context) error {
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}
