package usecase

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/vitos/futures_signal_bot/internal/domain"
	"github.com/vitos/futures_signal_bot/internal/metrics"
	"go.uber.org/zap"
)

// Switcher coordinates direction changes: given a target side it
// closes any opposing position, books the realized PnL of that leg,
// and then hands off to the executor to open the new side.
type Switcher struct {
	gateway    domain.Gateway
	executor   *Executor
	reconciler *Reconciler
	state      *EngineState
	stats      *StatsTracker
	tradeRepo  domain.TradeRepository
	cfg        EngineConfig
	logger     *zap.Logger
}

func NewSwitcher(
	gateway domain.Gateway,
	executor *Executor,
	reconciler *Reconciler,
	state *EngineState,
	stats *StatsTracker,
	tradeRepo domain.TradeRepository,
	cfg EngineConfig,
	logger *zap.Logger,
) *Switcher {
	return &Switcher{
		gateway:    gateway,
		executor:   executor,
		reconciler: reconciler,
		state:      state,
		stats:      stats,
		tradeRepo:  tradeRepo,
		cfg:        cfg,
		logger:     logger,
	}
}

// Switch handles one inbound signal. trade_count is bumped on every
// signal, including skips, so the daily report reflects signal volume
// rather than fill volume.
func (s *Switcher) Switch(ctx context.Context, symbol, action string) EntryResult {
	action = strings.ToUpper(action)
	metrics.IncSignal(action)
	s.stats.Update(func(st *domain.DailyStats) {
		st.TradeCount++
	})

	var side domain.Side
	switch action {
	case "BUY":
		side = domain.SideLong
	case "SELL":
		side = domain.SideShort
	default:
		s.logger.Error("Unknown signal action", zap.String("action", action))
		return skipped(SkipUnknownAction)
	}

	if s.cfg.DryRun {
		s.logger.Info("Dry run: signal suppressed",
			zap.String("symbol", symbol),
			zap.String("action", action))
		return skipped(SkipDryRun)
	}

	amt, err := s.gateway.FetchPositionAmount(ctx, symbol)
	if err != nil {
		s.logger.Error("Position fetch failed", zap.String("symbol", symbol), zap.Error(err))
		return skipped(SkipAPIError)
	}

	switch {
	case side == domain.SideLong && amt > 0:
		return skipped(SkipAlreadyLong)
	case side == domain.SideShort && amt < 0:
		return skipped(SkipAlreadyShort)
	}

	if amt != 0 {
		if res, ok := s.closeOpposingLeg(ctx, symbol, amt, side); !ok {
			return res
		}
	}

	return s.executor.Enter(ctx, symbol, side)
}

// closeOpposingLeg flattens the position held against the signal and
// books its realized PnL. A losing close here is attributed to
// sl_count: an approximation that treats any opposite-signal-driven
// loss as a stop, not a venue-reported stop fill.
func (s *Switcher) closeOpposingLeg(ctx context.Context, symbol string, amt float64, target domain.Side) (EntryResult, bool) {
	closingSide := target.Opposite() // the side being closed
	closeQty := math.Abs(amt)

	if err := s.executor.CancelReduceOnlyOrders(ctx, symbol); err != nil {
		s.logger.Error("Failed to list open orders", zap.String("symbol", symbol), zap.Error(err))
		return skipped(SkipAPIError), false
	}

	s.logger.Info("Closing opposing leg",
		zap.String("symbol", symbol),
		zap.String("closing_side", string(closingSide)),
		zap.Float64("quantity", closeQty))

	_, err := s.gateway.CreateOrder(ctx, &domain.OrderRequest{
		Symbol:        symbol,
		Side:          entryOrderSide(target),
		Type:          domain.OrderMarket,
		Quantity:      closeQty,
		ReduceOnly:    true,
		ClientOrderID: newClientOrderID(),
	})
	if err != nil {
		s.logger.Error("Close order failed", zap.String("symbol", symbol), zap.Error(err))
		return skipped(SkipAPIError), false
	}

	if !s.reconciler.WaitForPosition(ctx, symbol, SignZero, s.cfg.ReconcileTimeout, s.cfg.ReconcileInterval) {
		return skipped(SkipCloseFailed), false
	}

	exitPrice, err := s.gateway.FetchTicker(ctx, symbol)
	if err != nil {
		s.logger.Warn("Ticker fetch failed, skipping close PnL attribution", zap.Error(err))
		exitPrice = 0
	}

	entryPrice := s.state.Snapshot().Position.EntryPrice
	var pnlPct float64
	if entryPrice > 0 && exitPrice > 0 {
		pnlPct = domain.PnLPct(closingSide, entryPrice, exitPrice)
		if pnlPct < 0 {
			s.stats.Update(func(st *domain.DailyStats) {
				st.SLCount++
				st.CumulativePnLPct += pnlPct
			})
		}
	}

	if err := s.tradeRepo.SaveTrade(ctx, &domain.TradeRecord{
		Symbol:    symbol,
		Side:      closingSide,
		Kind:      "close",
		Quantity:  closeQty,
		Price:     exitPrice,
		PnLPct:    pnlPct,
		CreatedAt: time.Now(),
	}); err != nil {
		s.logger.Error("Failed to save close trade", zap.Error(err))
	}

	s.logger.Info("Opposing leg closed",
		zap.String("symbol", symbol),
		zap.Float64("exit_price", exitPrice),
		zap.Float64("pnl_pct", pnlPct))

	return EntryResult{}, true
}
