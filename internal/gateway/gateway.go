package gateway

import (
	"context"
	"time"

	"quant_bot/internal/exchange"
	"quant_bot/internal/metrics"
	"quant_bot/internal/models"
	"quant_bot/pkg/logger"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	maxAttempts = 3
	baseDelay   = time.Second
)

// ErrRetriesExhausted — все попытки исчерпаны. Для вызывающего это
// "состояние неизвестно": не успех и не провал, истину даст reconcile.
var ErrRetriesExhausted = errors.New("gateway: retries exhausted, order state unknown")

// Gateway оборачивает клиент биржи ретраями на transient-ошибках.
// Подпись и timestamp пересоздаются клиентом на каждую попытку;
// clientOrderId один на весь логический ордер (idempotency key).
type Gateway struct {
	client exchange.Client

	// sleep подменяется в тестах
	sleep func(ctx context.Context, d time.Duration)
}

func New(client exchange.Client) *Gateway {
	return &Gateway{
		client: client,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// PlaceOrder — market-ордер с экспоненциальным бэкоффом 1s → 2s → 4s.
// Non-transient ошибки (валидация, подпись) возвращаются сразу.
func (g *Gateway) PlaceOrder(ctx context.Context, symbol, side string, qty float64, reduceOnly bool) (*models.OrderReceipt, error) {
	req := exchange.OrderRequest{
		Symbol:     symbol,
		Side:       side,
		Qty:        qty,
		ReduceOnly: reduceOnly,
		ClientID:   uuid.NewString(),
	}

	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		receipt, err := g.client.PlaceOrder(ctx, req)
		if err == nil {
			metrics.OrdersPlaced.WithLabelValues(g.client.Name(), side).Inc()
			return receipt, nil
		}
		if !exchange.IsTransient(err) {
			return nil, err
		}

		lastErr = err
		if attempt == maxAttempts {
			break
		}
		logger.Warn("[%s] order retry %d/%d for %s: %v", g.client.Name(), attempt, maxAttempts, symbol, err)
		metrics.OrderRetries.WithLabelValues(g.client.Name()).Inc()
		g.sleep(ctx, delay)
		delay *= 2
	}

	return nil, errors.Wrapf(ErrRetriesExhausted, "%s %s %s: %v", g.client.Name(), side, symbol, lastErr)
}
