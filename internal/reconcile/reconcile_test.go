package reconcile

import (
	"testing"
	"time"

	"quant_bot/internal/models"
)

func openPosition(symbol string, side models.Side) *models.Position {
	return &models.Position{
		Symbol:   symbol,
		Side:     side,
		Entry:    50000,
		Qty:      0.2,
		SL:       49500,
		TP:       51000,
		OpenedAt: time.Now(),
	}
}

func TestConfirmedCloseDeletesLocal(t *testing.T) {
	local := map[string]*models.Position{
		"BTCUSDT": openPosition("BTCUSDT", models.SideLong),
	}
	res := Sync("FUTURES", local, nil)

	if _, ok := local["BTCUSDT"]; ok {
		t.Fatal("exchange reports nothing, local position must be dropped")
	}
	if len(res.Closed) != 1 || res.Closed[0].Symbol != "BTCUSDT" {
		t.Fatalf("closed list: %+v", res.Closed)
	}
}

func TestNonZeroAmountKeepsPosition(t *testing.T) {
	local := map[string]*models.Position{
		"BTCUSDT": openPosition("BTCUSDT", models.SideLong),
	}
	res := Sync("FUTURES", local, []models.ExchangePosition{
		{Symbol: "BTCUSDT", Amount: 0.2, Entry: 50000},
	})
	if _, ok := local["BTCUSDT"]; !ok {
		t.Fatal("position alive on exchange must not be deleted")
	}
	if len(res.Closed) != 0 || len(res.Adopted) != 0 {
		t.Fatalf("live position must be untouched: %+v", res)
	}
	if local["BTCUSDT"].SL != 49500 {
		t.Fatal("reconciliation must not rewrite managed stops")
	}
}

func TestZeroAmountTreatedAsClosed(t *testing.T) {
	local := map[string]*models.Position{
		"BTCUSDT": openPosition("BTCUSDT", models.SideLong),
	}
	Sync("FUTURES", local, []models.ExchangePosition{
		{Symbol: "BTCUSDT", Amount: 0},
	})
	if _, ok := local["BTCUSDT"]; ok {
		t.Fatal("zero exchange amount means closed")
	}
}

func TestGhostAdoption(t *testing.T) {
	local := map[string]*models.Position{}
	res := Sync("FUTURES", local, []models.ExchangePosition{
		{Symbol: "ETHUSDT", Amount: 1.5, Entry: 3000},
	})

	pos, ok := local["ETHUSDT"]
	if !ok {
		t.Fatal("ghost must be adopted into the local table")
	}
	if pos.Side != models.SideLong || pos.Qty != 1.5 || pos.Entry != 3000 {
		t.Fatalf("adopted fields wrong: %+v", pos)
	}
	if !pos.Unmanaged() {
		t.Fatal("adopted ghost must stay unmanaged (no sl/tp)")
	}
	if len(res.Adopted) != 1 {
		t.Fatalf("adopted list: %+v", res.Adopted)
	}
}

func TestShortGhostAdoption(t *testing.T) {
	local := map[string]*models.Position{}
	Sync("FUTURES", local, []models.ExchangePosition{
		{Symbol: "SOLUSDT", Amount: -10, Entry: 150},
	})
	pos := local["SOLUSDT"]
	if pos == nil || pos.Side != models.SideShort || pos.Qty != 10 {
		t.Fatalf("negative amount must adopt a short: %+v", pos)
	}
}

func TestIdempotence(t *testing.T) {
	exch := []models.ExchangePosition{
		{Symbol: "ETHUSDT", Amount: 1.5, Entry: 3000},
		{Symbol: "BTCUSDT", Amount: 0.2, Entry: 50000},
	}
	local := map[string]*models.Position{
		"BTCUSDT": openPosition("BTCUSDT", models.SideLong),
		"SOLUSDT": openPosition("SOLUSDT", models.SideShort),
	}

	Sync("FUTURES", local, exch)
	snapshot := make(map[string]models.Position, len(local))
	for k, v := range local {
		snapshot[k] = *v
	}

	res := Sync("FUTURES", local, exch)
	if len(res.Closed) != 0 || len(res.Adopted) != 0 {
		t.Fatalf("second pass against same snapshot must be a no-op: %+v", res)
	}
	if len(local) != len(snapshot) {
		t.Fatalf("table size changed: %d != %d", len(local), len(snapshot))
	}
	for k, want := range snapshot {
		if got := *local[k]; got != want {
			t.Fatalf("position %s changed: %+v != %+v", k, got, want)
		}
	}
}

func TestMixedCycle(t *testing.T) {
	// закрытие, призрак и живая позиция в одном прогоне
	local := map[string]*models.Position{
		"BTCUSDT": openPosition("BTCUSDT", models.SideLong), // закрыта на бирже
		"SOLUSDT": openPosition("SOLUSDT", models.SideShort), // живая
	}
	res := Sync("FUTURES", local, []models.ExchangePosition{
		{Symbol: "SOLUSDT", Amount: -0.2, Entry: 150},
		{Symbol: "ETHUSDT", Amount: 2, Entry: 3100},
	})
	if len(res.Closed) != 1 || res.Closed[0].Symbol != "BTCUSDT" {
		t.Fatalf("closed: %+v", res.Closed)
	}
	if len(res.Adopted) != 1 || res.Adopted[0].Symbol != "ETHUSDT" {
		t.Fatalf("adopted: %+v", res.Adopted)
	}
	if len(local) != 2 {
		t.Fatalf("expected SOLUSDT + ETHUSDT, got %v", local)
	}
}
