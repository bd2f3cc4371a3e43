package db

import (
	"context"

	"quant_bot/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

type PoolConfig struct {
	DSN string
}

type PgTxManager struct {
	poolMaster *pgxpool.Pool
}

func NewPgTxManager(poolMaster *pgxpool.Pool) *PgTxManager {
	return &PgTxManager{
		poolMaster: poolMaster,
	}
}

func (m *PgTxManager) Close() {
	m.poolMaster.Close()
}

func NewPool(ctx context.Context, conf PoolConfig) (*pgxpool.Pool, error) {
	return pgxpool.New(ctx, conf.DSN)
}

func (m *PgTxManager) Conn() Transaction {
	return m.poolMaster
}

func (m *PgTxManager) RunMaster(ctx context.Context, fn func(ctxTx context.Context, tx pgx.Tx) error) error {
	options := pgx.TxOptions{
		IsoLevel: pgx.ReadCommitted,
	}
	return m.inTx(ctx, m.poolMaster, options, fn)
}

func (m *PgTxManager) inTx(
	ctx context.Context,
	pool *pgxpool.Pool,
	options pgx.TxOptions,
	f func(ctxTx context.Context, tx pgx.Tx) error,
) (err error) {
	tx, err := pool.BeginTx(ctx, options)
	if err != nil {
		return errors.Wrap(err, "failed to begin tx")
	}

	defer func() {
		if p := recover(); p != nil {
			logger.Error("%v", p)
			_ = tx.Rollback(ctx)
			panic(p) // fallthrough panic after rollback on caught panic
		}
		err = finishTx(ctx, tx, err)
	}()

	if err = f(ctx, tx); err != nil {
		return errors.Wrap(err, "failed to run fn")
	}
	return nil
}

// txCloser — завершающая часть pgx.Tx.
type txCloser interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// finishTx откатывает при ошибке, иначе коммитит. Ошибка коммита
// возвращается вызывающему, а не глотается.
func finishTx(ctx context.Context, tx txCloser, err error) error {
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "failed to commit tx")
}
