package models

import "time"

// AccountState — снимок счёта с биржи, обновляется каждый цикл.
// Биржа — источник истины; локальная копия живёт максимум один цикл.
type AccountState struct {
	Equity        float64 // wallet balance
	Available     float64
	MarginUsed    float64
	UnrealizedPnl float64
}

// OrderReceipt is the normalized result of an accepted order.
type OrderReceipt struct {
	OrderID   string
	Symbol    string
	Side      string // BUY/SELL
	Qty       float64
	Status    string
	Simulated bool
}

// Trade — закрытая сделка для журнала (realized PnL).
type Trade struct {
	Account  string
	Symbol   string
	Side     Side
	Qty      float64
	Entry    float64
	Exit     float64
	Pnl      float64
	Reason   string
	ClosedAt time.Time
}
