package exchange

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quant_bot/internal/models"

	"github.com/bytedance/sonic"
)

const (
	spotMainnetURL = "https://api.binance.com"
	spotTestnetURL = "https://testnet.binance.vision"

	quoteAsset = "USDT"
)

// SpotClient — подписанный REST-клиент Binance spot.
// "Позиции" на споте — это non-dust балансы базовых активов вселенной,
// поэтому клиент знает список символов и dust-порог по каждому.
type SpotClient struct {
	http      *http.Client
	baseURL   string
	apiKey    string
	apiSecret string

	symbols []string
	dust    map[string]float64 // symbol -> min qty, ниже считаем пылью
}

func NewSpotClient(apiKey, apiSecret string, testnet bool, symbols []string, dust map[string]float64) *SpotClient {
	base := spotMainnetURL
	if testnet {
		base = spotTestnetURL
	}
	return &SpotClient{
		http:      &http.Client{Timeout: 10 * time.Second},
		baseURL:   base,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		symbols:   symbols,
		dust:      dust,
	}
}

func (c *SpotClient) Name() string { return "SPOT" }

func (c *SpotClient) hasCreds() bool { return c.apiKey != "" && c.apiSecret != "" }

func (c *SpotClient) signedRequest(ctx context.Context, method, path string, params url.Values) (*http.Request, error) {
	params.Set("timestamp", nowMillis())
	params.Set("signature", sign(c.apiSecret, params.Encode()))

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)
	return req, nil
}

func (c *SpotClient) do(req *http.Request) ([]byte, error) {
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

func (c *SpotClient) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v3/klines?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	rb, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var rows [][]interface{}
	if err := sonic.Unmarshal(rb, &rows); err != nil {
		return nil, fmt.Errorf("spot klines decode: %w", err)
	}
	return parseKlines(rows), nil
}

type assetBalance struct {
	Free   float64
	Locked float64
}

func (b assetBalance) Total() float64 { return b.Free + b.Locked }

func (c *SpotClient) account(ctx context.Context) (map[string]assetBalance, error) {
	req, err := c.signedRequest(ctx, http.MethodGet, "/api/v3/account", url.Values{})
	if err != nil {
		return nil, err
	}
	rb, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var data struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := sonic.Unmarshal(rb, &data); err != nil {
		return nil, fmt.Errorf("spot account decode: %w", err)
	}

	res := make(map[string]assetBalance, len(data.Balances))
	for _, b := range data.Balances {
		free, _ := strconv.ParseFloat(b.Free, 64)
		locked, _ := strconv.ParseFloat(b.Locked, 64)
		res[b.Asset] = assetBalance{Free: free, Locked: locked}
	}
	return res, nil
}

func (c *SpotClient) GetBalance(ctx context.Context) (*models.AccountState, error) {
	if !c.hasCreds() {
		return nil, ErrNoCredentials
	}

	free, total, err := c.quoteBalance(ctx)
	if err != nil {
		return nil, err
	}
	return &models.AccountState{
		Equity:    total,
		Available: free,
	}, nil
}

func (c *SpotClient) quoteBalance(ctx context.Context) (free, total float64, err error) {
	balances, err := c.account(ctx)
	if err != nil {
		return 0, 0, err
	}
	b, ok := balances[quoteAsset]
	if !ok {
		// USDT отсутствует в списке — скорее всего неполный ответ
		return 0, 0, fmt.Errorf("spot balance: %s not found in account", quoteAsset)
	}
	return b.Free, b.Total(), nil
}

// GetPositions мапит балансы базовых активов в позиции. Entry биржа для
// спота не хранит, поэтому ghost-adoption на споте даёт unmanaged позицию.
func (c *SpotClient) GetPositions(ctx context.Context) ([]models.ExchangePosition, error) {
	if !c.hasCreds() {
		return nil, nil
	}
	balances, err := c.account(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]models.ExchangePosition, 0, len(c.symbols))
	for _, symbol := range c.symbols {
		base := strings.TrimSuffix(symbol, quoteAsset)
		qty := balances[base].Total()
		if qty < c.dustFloor(symbol) {
			continue
		}
		res = append(res, models.ExchangePosition{
			Symbol: symbol,
			Amount: qty, // spot = long only
		})
	}
	return res, nil
}

func (c *SpotClient) dustFloor(symbol string) float64 {
	if d, ok := c.dust[symbol]; ok && d > 0 {
		return d
	}
	return 1e-6
}

func (c *SpotClient) PlaceOrder(ctx context.Context, r OrderRequest) (*models.OrderReceipt, error) {
	if !c.hasCreds() {
		return simulatedFill(c.Name(), r), nil
	}

	params := url.Values{}
	params.Set("symbol", r.Symbol)
	params.Set("side", r.Side)
	params.Set("type", "MARKET")
	params.Set("quantity", formatQty(r.Qty))
	if r.ClientID != "" {
		params.Set("newClientOrderId", r.ClientID)
	}
	// reduceOnly на споте не существует: SELL и так не может перевернуть позицию

	req, err := c.signedRequest(ctx, http.MethodPost, "/api/v3/order", params)
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
		return nil, fmt.Errorf("spot order decode: %w", err)
	}
	return &models.OrderReceipt{
		OrderID: strconv.FormatInt(data.OrderID, 10),
		Symbol:  r.Symbol,
		Side:    r.Side,
		Qty:     r.Qty,
		Status:  data.Status,
	}, nil
}

// SetLeverage — no-op для спота.
func (c *SpotClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}
