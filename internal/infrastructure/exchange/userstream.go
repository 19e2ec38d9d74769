package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vitos/futures_signal_bot/internal/domain"
	"go.uber.org/zap"
)

// StartUserStream opens the venue's user-data websocket and pumps
// order-fill events to the registered callbacks. It obtains a
// listenKey over REST, keeps it alive every 30 minutes, and redials on
// read errors until ctx is cancelled.
func (b *BinanceAdapter) StartUserStream(ctx context.Context) error {
	if err := b.connectUserStream(ctx); err != nil {
		return err
	}
	go b.keepAliveLoop(ctx)
	return nil
}

func (b *BinanceAdapter) connectUserStream(ctx context.Context) error {
	key, err := b.createListenKey(ctx)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.wsURL+"/"+key, nil)
	if err != nil {
		return err
	}

	go b.readLoop(ctx, conn)
	b.logger.Info("User data stream connected")
	return nil
}

func (b *BinanceAdapter) createListenKey(ctx context.Context) (string, error) {
	resp, err := b.sendRequest(ctx, http.MethodPost, "/fapi/v1/listenKey", nil, false)
	if err != nil {
		return "", err
	}

	var result struct {
		ListenKey string `json:"listenKey"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", err
	}
	return result.ListenKey, nil
}

func (b *BinanceAdapter) keepAliveLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := b.sendRequest(ctx, http.MethodPut, "/fapi/v1/listenKey", nil, false); err != nil {
				b.logger.Warn("Listen key keepalive failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (b *BinanceAdapter) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Warn("User stream read error, reconnecting", zap.Error(err))
			b.reconnect(ctx)
			return
		}

		var event struct {
			EventType string `json:"e"`
			Order     struct {
				Symbol    string `json:"s"`
				Side      string `json:"S"`
				OrderType string `json:"o"`
				Status    string `json:"X"`
				Quantity  string `json:"q"`
				LastPrice string `json:"L"`
				TradeTime int64  `json:"T"`
			} `json:"o"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			b.logger.Warn("User stream unmarshal error", zap.Error(err))
			continue
		}
		if event.EventType != "ORDER_TRADE_UPDATE" {
			continue
		}

		qty, _ := strconv.ParseFloat(event.Order.Quantity, 64)
		price, _ := strconv.ParseFloat(event.Order.LastPrice, 64)
		b.emitFill(domain.FillEvent{
			Symbol:    event.Order.Symbol,
			Side:      domain.OrderSide(event.Order.Side),
			Type:      domain.OrderType(event.Order.OrderType),
			Status:    event.Order.Status,
			Quantity:  qty,
			LastPrice: price,
			Time:      time.UnixMilli(event.Order.TradeTime),
		})
	}
}

func (b *BinanceAdapter) reconnect(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
		if err := b.connectUserStream(ctx); err != nil {
			b.logger.Warn("User stream reconnect failed", zap.Error(err))
			continue
		}
		return
	}
}
