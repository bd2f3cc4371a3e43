package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"quant_bot/internal/models"
	"quant_bot/pkg/db"
)

const createTradesTable = `
CREATE TABLE IF NOT EXISTS trades (
    id        BIGSERIAL PRIMARY KEY,
    account   TEXT             NOT NULL,
    symbol    TEXT             NOT NULL,
    side      TEXT             NOT NULL,
    qty       DOUBLE PRECISION NOT NULL,
    entry     DOUBLE PRECISION NOT NULL,
    exit      DOUBLE PRECISION NOT NULL,
    pnl       DOUBLE PRECISION NOT NULL,
    reason    TEXT             NOT NULL DEFAULT '',
    closed_at TIMESTAMPTZ      NOT NULL DEFAULT now()
)`

// Postgres пишет сделки через общий TxManager.
type Postgres struct {
	tx db.TxManager
}

func NewPostgres(ctx context.Context, tx db.TxManager) (*Postgres, error) {
	if _, err := tx.Conn().Exec(ctx, createTradesTable); err != nil {
		return nil, errors.Wrap(err, "ledger: create trades table")
	}
	return &Postgres{tx: tx}, nil
}

func (p *Postgres) RecordTrade(ctx context.Context, t models.Trade) error {
	err := p.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx,
			`INSERT INTO trades (account, symbol, side, qty, entry, exit, pnl, reason, closed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			t.Account, t.Symbol, string(t.Side), t.Qty, t.Entry, t.Exit, t.Pnl, t.Reason, t.ClosedAt)
		return err
	})
	return errors.Wrap(err, "ledger: insert trade")
}

func (p *Postgres) RecentTrades(ctx context.Context, account string, limit int) ([]models.Trade, error) {
	rows, err := p.tx.Conn().Query(ctx,
		`SELECT account, symbol, side, qty, entry, exit, pnl, reason, closed_at
		 FROM trades WHERE account = $1 ORDER BY closed_at DESC LIMIT $2`,
		account, limit)
	if err != nil {
		return nil, errors.Wrap(err, "ledger: select trades")
	}
	defer rows.Close()

	var out []models.Trade
	for rows.Next() {
		var t models.Trade
		var side string
		if err := rows.Scan(&t.Account, &t.Symbol, &side, &t.Qty, &t.Entry, &t.Exit, &t.Pnl, &t.Reason, &t.ClosedAt); err != nil {
			return nil, errors.Wrap(err, "ledger: scan trade")
		}
		t.Side = models.Side(side)
		out = append(out, t)
	}
	return out, rows.Err()
}
