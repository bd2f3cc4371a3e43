package models

import "time"

type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Candidate — лучший сетап цикла. Живёт один цикл, никуда не сохраняется.
type Candidate struct {
	Symbol    string
	Direction Side
	Score     float64
	Trigger   float64 // зона S/R старшего таймфрейма, от неё считается стоп
	ATR       float64 // ATR старшего таймфрейма
	Price     float64 // close младшего таймфрейма, оценка цены входа
}
