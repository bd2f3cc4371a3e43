package postgres

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"quant_bot/internal/ledger"
	"quant_bot/internal/modules/config"
	"quant_bot/pkg/db"
	"quant_bot/pkg/logger"
)

// Module отдаёт журнал сделок. Без DSN живём в памяти:
// бот торгует и без базы, журнал просто не переживает рестарт.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(ctx context.Context, cfg *config.Config) (ledger.Recorder, error) {
				if cfg.DB == "" {
					logger.Warn("db_dsn empty, trade ledger is in-memory only")
					return ledger.NewMemory(), nil
				}

				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				if err = poolMaster.Ping(ctx); err != nil {
					return nil, err
				}

				return ledger.NewPostgres(ctx, db.NewPgTxManager(poolMaster))
			},
		),
	)
}
