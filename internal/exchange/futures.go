package exchange

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"quant_bot/internal/models"

	"github.com/bytedance/sonic"
)

const (
	futuresMainnetURL = "https://fapi.binance.com"
	futuresTestnetURL = "https://testnet.binancefuture.com"
)

// FuturesClient — подписанный REST-клиент Binance USDT-M futures.
type FuturesClient struct {
	http      *http.Client
	baseURL   string
	apiKey    string
	apiSecret string
}

func NewFuturesClient(apiKey, apiSecret string, testnet bool) *FuturesClient {
	base := futuresMainnetURL
	if testnet {
		base = futuresTestnetURL
	}
	return &FuturesClient{
		http:      &http.Client{Timeout: 10 * time.Second},
		baseURL:   base,
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

func (c *FuturesClient) Name() string { return "FUTURES" }

func (c *FuturesClient) hasCreds() bool { return c.apiKey != "" && c.apiSecret != "" }

// signedRequest собирает запрос заново на каждый вызов: свежий timestamp,
// свежая подпись.
func (c *FuturesClient) signedRequest(ctx context.Context, method, path string, params url.Values) (*http.Request, error) {
	params.Set("timestamp", nowMillis())
	params.Set("signature", sign(c.apiSecret, params.Encode()))

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)
	return req, nil
}

func (c *FuturesClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(rb)}
	}
	return rb, nil
}

func (c *FuturesClient) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/fapi/v1/klines?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	rb, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var rows [][]interface{}
	if err := sonic.Unmarshal(rb, &rows); err != nil {
		return nil, fmt.Errorf("futures klines decode: %w", err)
	}
	return parseKlines(rows), nil
}

func (c *FuturesClient) GetBalance(ctx context.Context) (*models.AccountState, error) {
	if !c.hasCreds() {
		return nil, ErrNoCredentials
	}
	req, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v2/account", url.Values{})
	if err != nil {
		return nil, err
	}
	rb, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var data struct {
		TotalWalletBalance    string `json:"totalWalletBalance"`
		AvailableBalance      string `json:"availableBalance"`
		TotalInitialMargin    string `json:"totalInitialMargin"`
		TotalUnrealizedProfit string `json:"totalUnrealizedProfit"`
	}
	if err := sonic.Unmarshal(rb, &data); err != nil {
		return nil, fmt.Errorf("futures account decode: %w", err)
	}

	wallet, _ := strconv.ParseFloat(data.TotalWalletBalance, 64)
	avail, _ := strconv.ParseFloat(data.AvailableBalance, 64)
	margin, _ := strconv.ParseFloat(data.TotalInitialMargin, 64)
	upl, _ := strconv.ParseFloat(data.TotalUnrealizedProfit, 64)

	return &models.AccountState{
		Equity:        wallet,
		Available:     avail,
		MarginUsed:    margin,
		UnrealizedPnl: upl,
	}, nil
}

func (c *FuturesClient) GetPositions(ctx context.Context) ([]models.ExchangePosition, error) {
	if !c.hasCreds() {
		return nil, nil
	}
	req, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v2/positionRisk", url.Values{})
	if err != nil {
		return nil, err
	}
	rb, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var data []struct {
		Symbol           string `json:"symbol"`
		PositionAmt      string `json:"positionAmt"`
		EntryPrice       string `json:"entryPrice"`
		UnRealizedProfit string `json:"unRealizedProfit"`
	}
	if err := sonic.Unmarshal(rb, &data); err != nil {
		return nil, fmt.Errorf("futures positions decode: %w", err)
	}

	res := make([]models.ExchangePosition, 0, len(data))
	for _, p := range data {
		amt, _ := strconv.ParseFloat(p.PositionAmt, 64)
		if amt == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(p.EntryPrice, 64)
		upl, _ := strconv.ParseFloat(p.UnRealizedProfit, 64)
		res = append(res, models.ExchangePosition{
			Symbol:        p.Symbol,
			Amount:        amt,
			Entry:         entry,
			UnrealizedPnl: upl,
		})
	}
	return res, nil
}

func (c *FuturesClient) PlaceOrder(ctx context.Context, r OrderRequest) (*models.OrderReceipt, error) {
	// credential-less: детерминированный симулированный филл, без сети
	if !c.hasCreds() {
		return simulatedFill(c.Name(), r), nil
	}

	params := url.Values{}
	params.Set("symbol", r.Symbol)
	params.Set("side", r.Side)
	params.Set("type", "MARKET")
	params.Set("quantity", formatQty(r.Qty))
	if r.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	if r.ClientID != "" {
		params.Set("newClientOrderId", r.ClientID)
	}

	req, err := c.signedRequest(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return nil, err
	}
	rb, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var data struct {
		OrderID int64  `json:"orderId"`
		Status  string `json:"status"`
	}
	if err := sonic.Unmarshal(rb, &data); err != nil {
		return nil, fmt.Errorf("futures order decode: %w", err)
	}
	return &models.OrderReceipt{
		OrderID: strconv.FormatInt(data.OrderID, 10),
		Symbol:  r.Symbol,
		Side:    r.Side,
		Qty:     r.Qty,
		Status:  data.Status,
	}, nil
}

func (c *FuturesClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if !c.hasCreds() {
		return nil
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))

	req, err := c.signedRequest(ctx, http.MethodPost, "/fapi/v1/leverage", params)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

// simulatedFill — paper-режим: стабильный receipt без сетевого вызова.
func simulatedFill(account string, r OrderRequest) *models.OrderReceipt {
	id := r.ClientID
	if id == "" {
		id = "sim-" + account + "-" + r.Symbol
	}
	return &models.OrderReceipt{
		OrderID:   id,
		Symbol:    r.Symbol,
		Side:      r.Side,
		Qty:       r.Qty,
		Status:    "SIMULATED",
		Simulated: true,
	}
}
