package risk

import (
	"fmt"
	"sync"
	"time"
)

// KillSwitch — одноразовый стоп-кран. Взводится при пробое дневного лимита
// и НЕ сбрасывается до конца жизни процесса.
type KillSwitch struct {
	mu      sync.Mutex
	tripped bool
	reason  string
	at      time.Time
}

// Trip взводит рубильник. Повторный вызов ничего не меняет и вернёт false.
func (k *KillSwitch) Trip(reason string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.tripped {
		return false
	}
	k.tripped = true
	k.reason = reason
	k.at = time.Now()
	return true
}

func (k *KillSwitch) Tripped() (bool, string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tripped, k.reason
}

// DailyLossTracker следит за просадкой от стартового equity сессии.
// Стартовое значение берётся лениво из первого валидного снапшота —
// на старте биржа может быть недоступна.
type DailyLossTracker struct {
	account     string
	startEquity float64
	maxLoss     float64 // доля стартового equity
}

func NewDailyLossTracker(account string, maxLoss float64) *DailyLossTracker {
	return &DailyLossTracker{account: account, maxLoss: maxLoss}
}

// Observe возвращает (true, reason) при пробое лимита.
func (t *DailyLossTracker) Observe(equity float64) (bool, string) {
	if equity <= 0 || t.maxLoss <= 0 {
		return false, ""
	}
	if t.startEquity == 0 {
		t.startEquity = equity
		return false, ""
	}

	drawdown := (t.startEquity - equity) / t.startEquity
	if drawdown >= t.maxLoss {
		return true, fmt.Sprintf("%s kill switch: daily loss %.2f%% >= %.2f%%",
			t.account, drawdown*100, t.maxLoss*100)
	}
	return false, ""
}
