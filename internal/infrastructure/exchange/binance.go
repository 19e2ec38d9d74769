package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/vitos/futures_signal_bot/internal/domain"
	"go.uber.org/zap"
)

const (
	BinanceBaseURL = "https://fapi.binance.com"
	BinanceWSURL   = "wss://fstream.binance.com/ws"
)

// BinanceAdapter implements domain.Gateway against Binance USDT-M
// futures: signed V1/V2 REST plus a user-data stream for fill events.
type BinanceAdapter struct {
	apiKey    string
	apiSecret string
	baseURL   string
	wsURL     string
	client    *http.Client
	logger    *zap.Logger

	mu            sync.Mutex
	fillCallbacks []func(domain.FillEvent)
}

func NewBinanceAdapter(apiKey, apiSecret, baseURL, wsURL string, logger *zap.Logger) *BinanceAdapter {
	if baseURL == "" {
		baseURL = BinanceBaseURL
	}
	if wsURL == "" {
		wsURL = BinanceWSURL
	}
	return &BinanceAdapter{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		wsURL:     wsURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
	}
}

// --- REST plumbing ---

func (b *BinanceAdapter) sign(query string) string {
	h := hmac.New(sha256.New, []byte(b.apiSecret))
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("binance api error %d: %s", e.Code, e.Msg)
}

// sendRequest issues one request with parameters in the query string.
// Signed requests get timestamp, recvWindow and an HMAC signature
// appended, per the venue's authentication scheme.
func (b *BinanceAdapter) sendRequest(ctx context.Context, method, path string, params url.Values, signed bool) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		params.Set("recvWindow", "5000")
		params.Set("signature", b.sign(params.Encode()))
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if b.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != 0 {
			return nil, &apiErr
		}
		return nil, fmt.Errorf("binance http %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// --- Gateway implementation ---

func (b *BinanceAdapter) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))
	_, err := b.sendRequest(ctx, http.MethodPost, "/fapi/v1/leverage", params, true)
	return err
}

func (b *BinanceAdapter) SetMarginMode(ctx context.Context, symbol, mode string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("marginType", mode)
	_, err := b.sendRequest(ctx, http.MethodPost, "/fapi/v1/marginType", params, true)
	// -4046: margin type is already what was requested.
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Code == -4046 {
		return nil
	}
	return err
}

func (b *BinanceAdapter) FetchFreeBalance(ctx context.Context, asset string) (float64, error) {
	resp, err := b.sendRequest(ctx, http.MethodGet, "/fapi/v2/balance", nil, true)
	if err != nil {
		return 0, err
	}

	var balances []struct {
		Asset            string `json:"asset"`
		AvailableBalance string `json:"availableBalance"`
	}
	if err := json.Unmarshal(resp, &balances); err != nil {
		return 0, err
	}

	for _, bal := range balances {
		if bal.Asset == asset {
			return strconv.ParseFloat(bal.AvailableBalance, 64)
		}
	}
	return 0, fmt.Errorf("asset %s not found in balance", asset)
}

func (b *BinanceAdapter) FetchTicker(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	resp, err := b.sendRequest(ctx, http.MethodGet, "/fapi/v1/ticker/price", params, false)
	if err != nil {
		return 0, err
	}

	var result struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(result.Price, 64)
}

func (b *BinanceAdapter) FetchSymbolRules(ctx context.Context, symbol string) (*domain.SymbolRules, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	resp, err := b.sendRequest(ctx, http.MethodGet, "/fapi/v1/exchangeInfo", params, false)
	if err != nil {
		return nil, err
	}

	var result struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType string `json:"filterType"`
				StepSize   string `json:"stepSize"`
				TickSize   string `json:"tickSize"`
				MinQty     string `json:"minQty"`
				Notional   string `json:"notional"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}

	for _, s := range result.Symbols {
		if s.Symbol != symbol {
			continue
		}
		rules := &domain.SymbolRules{Symbol: symbol}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				rules.StepSize, _ = strconv.ParseFloat(f.StepSize, 64)
				rules.MinQty, _ = strconv.ParseFloat(f.MinQty, 64)
			case "PRICE_FILTER":
				rules.TickSize, _ = strconv.ParseFloat(f.TickSize, 64)
			case "MIN_NOTIONAL":
				rules.MinNotional, _ = strconv.ParseFloat(f.Notional, 64)
			}
		}
		return rules, nil
	}
	return nil, fmt.Errorf("symbol %s not found in exchange info", symbol)
}

func (b *BinanceAdapter) FetchOpenOrders(ctx context.Context, symbol string) ([]*domain.OpenOrder, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	resp, err := b.sendRequest(ctx, http.MethodGet, "/fapi/v1/openOrders", params, true)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		OrderID    int64  `json:"orderId"`
		Symbol     string `json:"symbol"`
		Side       string `json:"side"`
		Type       string `json:"type"`
		OrigQty    string `json:"origQty"`
		Price      string `json:"price"`
		StopPrice  string `json:"stopPrice"`
		ReduceOnly bool   `json:"reduceOnly"`
	}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, err
	}

	orders := make([]*domain.OpenOrder, 0, len(raw))
	for _, o := range raw {
		qty, _ := strconv.ParseFloat(o.OrigQty, 64)
		price, _ := strconv.ParseFloat(o.Price, 64)
		stop, _ := strconv.ParseFloat(o.StopPrice, 64)
		orders = append(orders, &domain.OpenOrder{
			OrderID:    strconv.FormatInt(o.OrderID, 10),
			Symbol:     o.Symbol,
			Side:       domain.OrderSide(o.Side),
			Type:       domain.OrderType(o.Type),
			Quantity:   qty,
			Price:      price,
			StopPrice:  stop,
			ReduceOnly: o.ReduceOnly,
		})
	}
	return orders, nil
}

func (b *BinanceAdapter) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)
	_, err := b.sendRequest(ctx, http.MethodDelete, "/fapi/v1/order", params, true)
	return err
}

func (b *BinanceAdapter) CreateOrder(ctx context.Context, req *domain.OrderRequest) (*domain.OrderAck, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Type))
	params.Set("quantity", formatFloat(req.Quantity))
	if req.Price > 0 {
		params.Set("price", formatFloat(req.Price))
	}
	if req.StopPrice > 0 {
		params.Set("stopPrice", formatFloat(req.StopPrice))
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	if req.TimeInForce != "" {
		params.Set("timeInForce", req.TimeInForce)
	}
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}

	resp, err := b.sendRequest(ctx, http.MethodPost, "/fapi/v1/order", params, true)
	if err != nil {
		return nil, err
	}

	var raw struct {
		OrderID     int64  `json:"orderId"`
		Status      string `json:"status"`
		ExecutedQty string `json:"executedQty"`
		AvgPrice    string `json:"avgPrice"`
	}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, err
	}

	executed, _ := strconv.ParseFloat(raw.ExecutedQty, 64)
	avg, _ := strconv.ParseFloat(raw.AvgPrice, 64)
	return &domain.OrderAck{
		OrderID:     strconv.FormatInt(raw.OrderID, 10),
		Status:      raw.Status,
		ExecutedQty: executed,
		AvgPrice:    avg,
	}, nil
}

func (b *BinanceAdapter) FetchPositionAmount(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	resp, err := b.sendRequest(ctx, http.MethodGet, "/fapi/v2/positionRisk", params, true)
	if err != nil {
		return 0, err
	}

	var positions []struct {
		Symbol      string `json:"symbol"`
		PositionAmt string `json:"positionAmt"`
	}
	if err := json.Unmarshal(resp, &positions); err != nil {
		return 0, err
	}

	for _, p := range positions {
		if p.Symbol == symbol {
			return strconv.ParseFloat(p.PositionAmt, 64)
		}
	}
	return 0, nil
}

func (b *BinanceAdapter) FetchOrder(ctx context.Context, symbol, orderID string) (*domain.OrderStatus, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)
	resp, err := b.sendRequest(ctx, http.MethodGet, "/fapi/v1/order", params, true)
	if err != nil {
		return nil, err
	}

	var raw struct {
		OrderID     int64  `json:"orderId"`
		Status      string `json:"status"`
		ExecutedQty string `json:"executedQty"`
		AvgPrice    string `json:"avgPrice"`
	}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, err
	}

	executed, _ := strconv.ParseFloat(raw.ExecutedQty, 64)
	avg, _ := strconv.ParseFloat(raw.AvgPrice, 64)
	return &domain.OrderStatus{
		OrderID:     strconv.FormatInt(raw.OrderID, 10),
		Status:      raw.Status,
		ExecutedQty: executed,
		AvgPrice:    avg,
	}, nil
}

func (b *BinanceAdapter) OnFill(callback func(domain.FillEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fillCallbacks = append(b.fillCallbacks, callback)
}

func (b *BinanceAdapter) emitFill(ev domain.FillEvent) {
	b.mu.Lock()
	callbacks := make([]func(domain.FillEvent), len(b.fillCallbacks))
	copy(callbacks, b.fillCallbacks)
	b.mu.Unlock()

	for _, cb := range callbacks {
		cb(ev)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
