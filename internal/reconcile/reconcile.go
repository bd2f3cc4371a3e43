package reconcile

import (
	"time"

	"quant_bot/internal/metrics"
	"quant_bot/internal/models"
	"quant_bot/pkg/logger"
)

// Result — что изменилось за прогон.
type Result struct {
	Closed  []models.Position // подтверждённые биржей закрытия
	Adopted []models.Position // принятые позиции-призраки
}

// Sync сводит локальную таблицу позиций с биржевым снимком.
// Единственное легальное место удаления позиции: биржа подтвердила ноль.
// Призраки (есть на бирже, нет локально) принимаются без SL/TP —
// честное "не управляется" лучше выдуманных уровней риска.
// Позиции, живые с обеих сторон, не трогаем.
func Sync(account string, local map[string]*models.Position, exch []models.ExchangePosition) Result {
	onExchange := make(map[string]models.ExchangePosition, len(exch))
	for _, p := range exch {
		if p.Amount == 0 {
			continue
		}
		onExchange[p.Symbol] = p
	}

	var res Result

	// удаления копим отдельно, таблицу не мутируем во время обхода
	var stale []string
	for sym, pos := range local {
		if _, ok := onExchange[sym]; !ok {
			stale = append(stale, sym)
			res.Closed = append(res.Closed, *pos)
		}
	}
	for _, sym := range stale {
		delete(local, sym)
		logger.Info("reconcile[%s]: %s closed on exchange, dropping local record", account, sym)
		metrics.ReconcileCloses.WithLabelValues(account).Inc()
	}

	for sym, ep := range onExchange {
		if _, ok := local[sym]; ok {
			continue
		}
		ghost := models.Position{
			Symbol:   sym,
			Side:     ep.Side(),
			Entry:    ep.Entry,
			Qty:      abs(ep.Amount),
			OpenedAt: time.Now(),
		}
		local[sym] = &ghost
		res.Adopted = append(res.Adopted, ghost)
		logger.Warn("reconcile[%s]: adopted ghost %s %s qty=%v entry=%v (unmanaged)",
			account, sym, ghost.Side, ghost.Qty, ghost.Entry)
		metrics.ReconcileAdoptions.WithLabelValues(account).Inc()
	}

	return res
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
