package ledger

import (
	"context"
	"sync"

	"quant_bot/internal/models"
)

// Recorder — журнал закрытых сделок.
type Recorder interface {
	RecordTrade(ctx context.Context, t models.Trade) error
	RecentTrades(ctx context.Context, account string, limit int) ([]models.Trade, error)
}

// Memory — журнал в памяти, работает когда DSN не задан.
type Memory struct {
	mu     sync.Mutex
	trades []models.Trade
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) RecordTrade(_ context.Context, t models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, t)
	return nil
}

func (m *Memory) RecentTrades(_ context.Context, account string, limit int) ([]models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Trade
	for i := len(m.trades) - 1; i >= 0 && len(out) < limit; i-- {
		if m.trades[i].Account == account {
			out = append(out, m.trades[i])
		}
	}
	return out, nil
}
