package strategy

import "quant_bot/internal/models"

// Signal — результат оценки одного таймфрейма.
type Signal struct {
	Side       models.Side
	Trigger    float64 // ближайшая зона S/R, от неё считается стоп
	Confidence float64 // 0..1
	ATR        float64
	RSI        float64
}

type Strategy interface {
	Name() string

	// Evaluate смотрит на закрытые свечи одного таймфрейма.
	// ok==false когда сетапа нет или данных мало для прогрева.
	Evaluate(candles []models.Candle) (Signal, bool)
}
