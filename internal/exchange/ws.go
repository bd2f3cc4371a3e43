package exchange

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"quant_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// PriceCache — кеш последних цен. Пишет только ws-воркер, основной цикл
// только читает; гонок по таблицам позиций здесь быть не может.
type PriceCache struct {
	mu     sync.RWMutex
	prices map[string]float64
	at     map[string]time.Time
}

func NewPriceCache() *PriceCache {
	return &PriceCache{
		prices: make(map[string]float64),
		at:     make(map[string]time.Time),
	}
}

func (p *PriceCache) Set(symbol string, price float64) {
	p.mu.Lock()
	p.prices[symbol] = price
	p.at[symbol] = time.Now()
	p.mu.Unlock()
}

// Get возвращает последнюю цену и признак её наличия.
func (p *PriceCache) Get(symbol string) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	px, ok := p.prices[symbol]
	return px, ok
}

// StreamPrices — один WebSocket на все символы, combined ticker stream.
// Переподключается сам; кеш остаётся валидным между реконнектами.
// onState, если задан, дёргается на connect/disconnect.
func StreamPrices(ctx context.Context, symbols []string, cache *PriceCache, onState func(connected bool)) {
	if len(symbols) == 0 {
		return
	}
	if onState == nil {
		onState = func(bool) {}
	}

	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		streams = append(streams, strings.ToLower(s)+"@ticker")
	}
	url := "wss://stream.binance.com:9443/stream?streams=" + strings.Join(streams, "/")

	dialer := &websocket.Dialer{}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			conn, _, err := dialer.Dial(url, nil)
			if err != nil {
				logger.Warn("[WS] dial error: %v", err)
				time.Sleep(time.Second)
				continue
			}
			logger.Info("[WS] connected, %d symbols", len(symbols))
			onState(true)

			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					logger.Warn("[WS] read error: %v", err)
					_ = conn.Close()
					onState(false)
					break
				}

				var frame struct {
					Data struct {
						Symbol string `json:"s"`
						Last   string `json:"c"`
					} `json:"data"`
				}
				if err := sonic.Unmarshal(msg, &frame); err != nil {
					continue
				}
				if frame.Data.Symbol == "" {
					continue
				}
				if px, err := strconv.ParseFloat(frame.Data.Last, 64); err == nil && px > 0 {
					cache.Set(frame.Data.Symbol, px)
				}
			}
		}
	}()
}
