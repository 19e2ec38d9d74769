package usecase

import (
	"context"
	"time"

	"github.com/vitos/futures_signal_bot/internal/domain"
	"go.uber.org/zap"
)

// FillListener consumes user-stream order updates and treats a FILLED
// market BUY on the tracked symbol as an entry. It is the secondary
// entry-detection path next to the executor's own state write, there
// to catch entries made outside the engine (manual intervention).
// Market SELLs are ambiguous between short entry and long exit and are
// deliberately ignored here.
type FillListener struct {
	gateway domain.Gateway
	state   *EngineState
	cfg     EngineConfig
	logger  *zap.Logger
}

func NewFillListener(gateway domain.Gateway, state *EngineState, cfg EngineConfig, logger *zap.Logger) *FillListener {
	return &FillListener{
		gateway: gateway,
		state:   state,
		cfg:     cfg,
		logger:  logger,
	}
}

// Register attaches the listener to the gateway's push-event stream.
func (l *FillListener) Register() {
	l.gateway.OnFill(l.Handle)
}

// Handle processes one fill event. On entry detection it overwrites
// the engine's entry price/quantity/time and reinitializes all bracket
// flags; both write paths converge on the venue's fill data, so last
// writer wins is acceptable.
func (l *FillListener) Handle(ev domain.FillEvent) {
	if ev.Symbol != l.cfg.Symbol {
		return
	}
	if ev.Status != "FILLED" || ev.Type != domain.OrderMarket || ev.Side != domain.OrderBuy {
		return
	}
	if ev.Quantity <= 0 || ev.LastPrice <= 0 {
		return
	}

	rules := l.fetchRules(ev.Symbol)
	brackets := BuildBrackets(l.cfg, domain.SideLong, ev.LastPrice, ev.Quantity, rules)

	enteredAt := ev.Time
	if enteredAt.IsZero() {
		enteredAt = time.Now()
	}
	l.state.ResetForEntry(domain.Position{
		Symbol:     ev.Symbol,
		Side:       domain.SideLong,
		Quantity:   ev.Quantity,
		EntryPrice: ev.LastPrice,
		EnteredAt:  enteredAt,
	}, brackets)

	l.logger.Info("Entry detected from fill stream",
		zap.String("symbol", ev.Symbol),
		zap.Float64("quantity", ev.Quantity),
		zap.Float64("price", ev.LastPrice))
}

func (l *FillListener) fetchRules(symbol string) *domain.SymbolRules {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rules, err := l.gateway.FetchSymbolRules(ctx, symbol)
	if err != nil {
		l.logger.Warn("Symbol rules fetch failed, brackets unrounded", zap.Error(err))
		return nil
	}
	return rules
}
