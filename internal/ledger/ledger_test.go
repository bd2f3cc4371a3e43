package ledger

import (
	"context"
	"testing"

	"quant_bot/internal/models"
)

func TestMemoryRecorder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	trades := []models.Trade{
		{Account: "FUTURES", Symbol: "BTCUSDT", Pnl: 10},
		{Account: "SPOT", Symbol: "ETHUSDT", Pnl: -5},
		{Account: "FUTURES", Symbol: "SOLUSDT", Pnl: 3},
		{Account: "FUTURES", Symbol: "BTCUSDT", Pnl: 7},
	}
	for _, tr := range trades {
		if err := m.RecordTrade(ctx, tr); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := m.RecentTrades(ctx, "FUTURES", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("limit not honored: %d", len(got))
	}
	// свежие первыми
	if got[0].Pnl != 7 || got[1].Pnl != 3 {
		t.Fatalf("order wrong: %+v", got)
	}

	spot, _ := m.RecentTrades(ctx, "SPOT", 10)
	if len(spot) != 1 || spot[0].Symbol != "ETHUSDT" {
		t.Fatalf("account filter wrong: %+v", spot)
	}
}
