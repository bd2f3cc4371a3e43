package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"quant_bot/internal/models"

	"github.com/pkg/errors"
)

// Client — контракт биржи для одного типа счёта (spot или futures).
// Все вызовы блокирующие; медленный вызов задерживает только свой цикл.
type Client interface {
	Name() string
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
	GetBalance(ctx context.Context) (*models.AccountState, error)
	GetPositions(ctx context.Context) ([]models.ExchangePosition, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (*models.OrderReceipt, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}

// OrderRequest — market-ордер. ClientID переживает ретраи (idempotency key),
// подпись и timestamp — нет: они генерятся на каждую попытку заново.
type OrderRequest struct {
	Symbol     string
	Side       string // BUY/SELL
	Qty        float64
	ReduceOnly bool
	ClientID   string
}

// ErrNoCredentials — ключи не заданы; приватные вызовы невозможны.
var ErrNoCredentials = errors.New("exchange: api credentials not set")

// APIError — ошибка уровня HTTP/биржи.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange: http %d: %s", e.Status, e.Body)
}

// Transient: rate limit и перегрузка шлюза. Всё остальное (4xx валидация,
// подпись) ретраить бессмысленно.
func (e *APIError) Transient() bool {
	switch e.Status {
	case 429, 502, 504:
		return true
	}
	return false
}

// IsTransient классифицирует ошибку для ретрая в gateway.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Timeout() || urlErr.Temporary()
	}
	return false
}

func sign(secret, query string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

func nowMillis() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

func formatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

// parseKlines разбирает массив Binance-свечей:
// [openTime, "open", "high", "low", "close", "volume", ...].
func parseKlines(rows [][]interface{}) []models.Candle {
	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		candles = append(candles, models.Candle{
			Time:   time.UnixMilli(int64(asFloat(row[0]))),
			Open:   asFloat(row[1]),
			High:   asFloat(row[2]),
			Low:    asFloat(row[3]),
			Close:  asFloat(row[4]),
			Volume: asFloat(row[5]),
		})
	}
	return candles
}

func asFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case int64:
		return float64(t)
	}
	return 0
}
