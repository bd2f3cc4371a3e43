package telemetry

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"quant_bot/pkg/logger"
)

// PositionView — срез позиции для дашборда.
type PositionView struct {
	Side  string  `json:"side"`
	Entry float64 `json:"entry"`
	Qty   float64 `json:"qty"`
	SL    float64 `json:"sl"`
	TP    float64 `json:"tp"`
}

type Payload struct {
	Account    string                  `json:"account"`
	Balance    float64                 `json:"balance"`
	Pnl        float64                 `json:"pnl"`
	MarginUsed float64                 `json:"margin_used"`
	Available  float64                 `json:"available_balance"`
	Reasoning  string                  `json:"reasoning"`
	Positions  map[string]PositionView `json:"positions"`
}

// Sink — best-effort отчёт раз в цикл. Ошибки глотаются:
// телеметрия никогда не блокирует торговлю.
type Sink interface {
	Report(ctx context.Context, p Payload)
}

type HTTPSink struct {
	url    string
	client *http.Client
}

func NewHTTPSink(url string) *HTTPSink {
	return &HTTPSink{
		url:    url,
		client: &http.Client{Timeout: time.Second},
	}
}

func (s *HTTPSink) Report(ctx context.Context, p Payload) {
	if s.url == "" {
		return
	}
	body, err := sonic.Marshal(p)
	if err != nil {
		logger.Warn("telemetry: marshal: %v", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		logger.Warn("telemetry: post: %v", err)
		return
	}
	resp.Body.Close()
}

// Nop — заглушка, когда дашборд не настроен.
type Nop struct{}

func (Nop) Report(context.Context, Payload) {}
