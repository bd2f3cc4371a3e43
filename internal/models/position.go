package models

import "time"

type Side string

const (
	SideNone  Side = ""
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Opposite — сторона закрывающего ордера.
func (s Side) Opposite() Side {
	switch s {
	case SideLong:
		return SideShort
	case SideShort:
		return SideLong
	}
	return SideNone
}

// OrderSide maps LONG/SHORT to the wire-level BUY/SELL.
func (s Side) OrderSide() string {
	if s == SideShort {
		return "SELL"
	}
	return "BUY"
}

// Position — локальная копия позиции. Владелец — один Controller;
// удаляется ТОЛЬКО через reconcile, после подтверждения биржей.
type Position struct {
	Symbol   string
	Side     Side
	Entry    float64
	Qty      float64
	SL       float64 // 0 = unmanaged (adopted ghost)
	TP       float64
	OpenedAt time.Time
}

// Unmanaged reports whether the position was adopted from the exchange
// without known stop levels.
func (p *Position) Unmanaged() bool { return p.SL == 0 && p.TP == 0 }

// ExchangePosition — позиция глазами биржи. Amount со знаком: >0 long, <0 short.
type ExchangePosition struct {
	Symbol        string
	Amount        float64
	Entry         float64
	UnrealizedPnl float64
}

func (p ExchangePosition) Side() Side {
	if p.Amount < 0 {
		return SideShort
	}
	return SideLong
}
