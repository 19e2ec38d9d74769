package usecase

import (
	"context"
	"time"

	"github.com/vitos/futures_signal_bot/internal/domain"
	"github.com/vitos/futures_signal_bot/internal/metrics"
	"go.uber.org/zap"
)

// Monitor is the long-lived polling loop over the shared engine state.
// Each tick it reads the price, recomputes unrealized PnL, and walks
// the bracket ladder: tp1, then tp2 (only once tp1 is done), with an
// independent stop check whose threshold tightens to breakeven-plus
// once tp1 has fired. Exits are reduce-only markets sized from the
// current remaining quantity, so resting bracket orders are a
// convenience, not a requirement.
type Monitor struct {
	gateway   domain.Gateway
	state     *EngineState
	stats     *StatsTracker
	tradeRepo domain.TradeRepository
	cfg       EngineConfig
	logger    *zap.Logger

	rules *domain.SymbolRules // lazily fetched, cached
}

func NewMonitor(
	gateway domain.Gateway,
	state *EngineState,
	stats *StatsTracker,
	tradeRepo domain.TradeRepository,
	cfg EngineConfig,
	logger *zap.Logger,
) *Monitor {
	return &Monitor{
		gateway:   gateway,
		state:     state,
		stats:     stats,
		tradeRepo: tradeRepo,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run ticks at the configured poll interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	m.logger.Info("Monitor loop started",
		zap.String("symbol", m.cfg.Symbol),
		zap.Duration("interval", m.cfg.PollInterval))

	for {
		select {
		case <-ticker.C:
			if err := m.Tick(ctx); err != nil {
				m.logger.Error("Monitor tick failed", zap.Error(err))
			}
		case <-ctx.Done():
			m.logger.Info("Monitor loop stopped", zap.String("symbol", m.cfg.Symbol))
			return
		}
	}
}

// Tick runs one evaluation pass. Exported so tests can drive the loop
// deterministically without the ticker.
func (m *Monitor) Tick(ctx context.Context) error {
	snap := m.state.Snapshot()
	if !snap.Position.Open() {
		return nil
	}

	symbol := snap.Position.Symbol
	price, err := m.gateway.FetchTicker(ctx, symbol)
	if err != nil {
		return err
	}

	pnl := domain.PnLPct(snap.Position.Side, snap.Position.EntryPrice, price)
	m.state.Update(func(st *TradeState) {
		st.LastPrice = price
		st.LastPnLPct = pnl
	})
	metrics.SetUnrealizedPnL(pnl)

	// Tier ladder. A tick fires at most one transition; tp2 becomes
	// eligible only on a later tick than tp1, which still guarantees
	// tp1-before-tp2 however fast price moves.
	if !snap.Brackets.TP1.Done && pnl >= m.cfg.TP1Pct {
		return m.fireTier(ctx, snap, domain.BracketTP1, price, pnl)
	}
	if snap.Brackets.TP1.Done && !snap.Brackets.TP2.Done && pnl >= m.cfg.TP2Pct {
		return m.fireTier(ctx, snap, domain.BracketTP2, price, pnl)
	}

	// Stop threshold: -SLPct before tp1, breakeven-plus after.
	slThreshold := -m.cfg.SLPct
	if snap.Brackets.TP1.Done {
		slThreshold = m.cfg.TrailSLPct
	}
	if !snap.Brackets.SL.Done && pnl <= slThreshold {
		return m.fireTier(ctx, snap, domain.BracketSL, price, pnl)
	}

	return nil
}

// fireTier submits the reduce-only exit for one bracket level and
// books the transition. Quantities always come from the current
// remaining position, never the original entry size.
func (m *Monitor) fireTier(ctx context.Context, snap TradeState, kind domain.BracketKind, price, pnl float64) error {
	symbol := snap.Position.Symbol
	remaining := snap.Position.Quantity

	var exitQty float64
	switch kind {
	case domain.BracketTP1:
		exitQty = m.roundExitQty(ctx, symbol, remaining*m.cfg.TP1Part)
	case domain.BracketTP2:
		exitQty = m.roundExitQty(ctx, symbol, remaining*m.cfg.TP2Part)
	case domain.BracketSL:
		exitQty = remaining
	}
	if exitQty <= 0 {
		return nil
	}

	_, err := m.gateway.CreateOrder(ctx, &domain.OrderRequest{
		Symbol:        symbol,
		Side:          exitOrderSide(snap.Position.Side),
		Type:          domain.OrderMarket,
		Quantity:      exitQty,
		ReduceOnly:    true,
		ClientOrderID: newClientOrderID(),
	})
	if err != nil {
		m.logger.Error("Exit order failed",
			zap.String("tier", string(kind)),
			zap.String("symbol", symbol),
			zap.Error(err))
		return err
	}

	now := time.Now()
	m.state.Update(func(st *TradeState) {
		lvl := &st.Brackets.TP1
		switch kind {
		case domain.BracketTP2:
			lvl = &st.Brackets.TP2
		case domain.BracketSL:
			lvl = &st.Brackets.SL
		}
		lvl.Done = true
		lvl.FillPrice = price
		lvl.FillQuantity = exitQty
		lvl.FilledAt = now
		lvl.PnLPct = pnl

		if kind == domain.BracketSL {
			st.Position.Quantity = 0
			st.Position.Side = domain.SideFlat
		} else {
			st.Position.Quantity -= exitQty
			if st.Position.Quantity <= 0 {
				st.Position.Quantity = 0
				st.Position.Side = domain.SideFlat
			}
		}
	})

	m.stats.Update(func(st *domain.DailyStats) {
		switch kind {
		case domain.BracketTP1:
			st.TP1Count++
		case domain.BracketTP2:
			st.TP2Count++
		case domain.BracketSL:
			st.SLCount++
		}
		st.CumulativePnLPct += pnl
	})
	metrics.IncExit(string(kind))

	if err := m.tradeRepo.SaveTrade(ctx, &domain.TradeRecord{
		Symbol:    symbol,
		Side:      snap.Position.Side,
		Kind:      string(kind),
		Quantity:  exitQty,
		Price:     price,
		PnLPct:    pnl,
		CreatedAt: now,
	}); err != nil {
		m.logger.Error("Failed to save exit trade", zap.Error(err))
	}

	m.logger.Info("Bracket exit executed",
		zap.String("tier", string(kind)),
		zap.String("symbol", symbol),
		zap.Float64("quantity", exitQty),
		zap.Float64("price", price),
		zap.Float64("pnl_pct", pnl))

	return nil
}

// roundExitQty floors a partial exit to the symbol's step size; with
// no rules available it returns the raw quantity (reduce-only keeps it
// safe either way).
func (m *Monitor) roundExitQty(ctx context.Context, symbol string, qty float64) float64 {
	if m.rules == nil {
		rules, err := m.gateway.FetchSymbolRules(ctx, symbol)
		if err != nil {
			m.logger.Warn("Symbol rules fetch failed, exit quantity unrounded", zap.Error(err))
			return qty
		}
		m.rules = rules
	}
	return RoundQuantity(qty, m.rules.StepSize)
}
