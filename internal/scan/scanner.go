package scan

import (
	"context"
	"fmt"
	"strings"

	"quant_bot/internal/models"
	"quant_bot/internal/strategy"
	"quant_bot/pkg/logger"
)

// CandleSource — узкий срез биржевого клиента, достаточный для сканера.
type CandleSource interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
}

// Scanner ищет один лучший сетап по всем символам.
// Сетап засчитывается только когда все таймфреймы согласны по направлению.
type Scanner struct {
	src        CandleSource
	strat      strategy.Strategy
	timeframes []string // от старшего к младшему, стоп берём со старшего
	weights    map[string]float64
	threshold  float64
	limit      int
}

func New(src CandleSource, strat strategy.Strategy, timeframes []string, weights map[string]float64, threshold float64, limit int) *Scanner {
	return &Scanner{
		src:        src,
		strat:      strat,
		timeframes: timeframes,
		weights:    weights,
		threshold:  threshold,
		limit:      limit,
	}
}

// Scan возвращает лучший кандидат цикла. skip отсекает символы,
// по которым уже есть позиция или действует кулдаун.
// Сетапы ниже порога в торговлю не идут, но одной строкой попадают в лог.
func (s *Scanner) Scan(ctx context.Context, symbols []string, skip func(symbol string) bool) (models.Candidate, bool) {
	best, found, rejected := s.scanAll(ctx, symbols, skip)
	if len(rejected) > 0 {
		logger.Info("scan: below threshold %.2f: %s", s.threshold, formatRejected(rejected))
	}
	return best, found
}

func (s *Scanner) scanAll(ctx context.Context, symbols []string, skip func(symbol string) bool) (best models.Candidate, found bool, rejected []models.Candidate) {
	for _, sym := range symbols {
		if skip != nil && skip(sym) {
			continue
		}
		cand, ok := s.evaluateSymbol(ctx, sym)
		if !ok {
			continue
		}
		if cand.Score < s.threshold {
			rejected = append(rejected, cand)
			continue
		}
		if !found || betterThan(cand, best) {
			best, found = cand, true
		}
	}
	return best, found, rejected
}

func formatRejected(rejected []models.Candidate) string {
	var b strings.Builder
	for i, c := range rejected {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s %.2f", c.Symbol, c.Direction, c.Score)
	}
	return b.String()
}

func (s *Scanner) evaluateSymbol(ctx context.Context, symbol string) (models.Candidate, bool) {
	var (
		dir       models.Side
		composite float64
		trigger   float64
		atr       float64
		price     float64
	)

	for i, tf := range s.timeframes {
		candles, err := s.src.GetCandles(ctx, symbol, tf, s.limit)
		if err != nil {
			// нет данных — символ пропускаем целиком
			logger.Warn("scan: %s %s candles unavailable: %v", symbol, tf, err)
			return models.Candidate{}, false
		}
		sig, ok := s.strat.Evaluate(candles)
		if !ok {
			return models.Candidate{}, false
		}
		if i == 0 {
			dir = sig.Side
			trigger = sig.Trigger
			atr = sig.ATR
		} else if sig.Side != dir {
			// таймфреймы разошлись — сетапа нет
			return models.Candidate{}, false
		}
		// после цикла здесь close младшего таймфрейма — самый свежий
		price = candles[len(candles)-1].Close
		composite += s.weights[tf] * sig.Confidence
	}

	if dir == models.SideNone {
		return models.Candidate{}, false
	}
	// порог проверяет scanAll: отсев ниже threshold должен быть виден в логе
	return models.Candidate{
		Symbol:    symbol,
		Direction: dir,
		Score:     composite,
		Trigger:   trigger,
		ATR:       atr,
		Price:     price,
	}, true
}

// betterThan: выше счёт, при равенстве — лексикографически меньший символ.
func betterThan(a, b models.Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Symbol < b.Symbol
}
