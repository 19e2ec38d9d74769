package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vitos/futures_signal_bot/internal/domain"
	"github.com/vitos/futures_signal_bot/internal/usecase"
	"go.uber.org/zap"
)

type monitorFixture struct {
	gw      *MockGateway
	repo    *MockTradeRepo
	state   *usecase.EngineState
	stats   *usecase.StatsTracker
	monitor *usecase.Monitor
}

// newMonitorFixture starts with a long 1.0 @ 2000 and a fresh bracket
// ladder.
func newMonitorFixture(price float64) *monitorFixture {
	cfg := testConfig()
	gw := &MockGateway{Price: price, Rules: testRules()}
	repo := &MockTradeRepo{}
	state := usecase.NewEngineState(cfg.Symbol)
	stats := usecase.NewStatsTracker()

	pos := domain.Position{
		Symbol:     "ETHUSDT",
		Side:       domain.SideLong,
		Quantity:   1.0,
		EntryPrice: 2000,
		EnteredAt:  time.Now(),
	}
	state.ResetForEntry(pos, usecase.BuildBrackets(cfg, pos.Side, pos.EntryPrice, pos.Quantity, testRules()))

	return &monitorFixture{
		gw:      gw,
		repo:    repo,
		state:   state,
		stats:   stats,
		monitor: usecase.NewMonitor(gw, state, stats, repo, cfg, zap.NewNop()),
	}
}

func TestTickFlatPositionDoesNothing(t *testing.T) {
	cfg := testConfig()
	gw := &MockGateway{Price: 2000}
	m := usecase.NewMonitor(gw, usecase.NewEngineState(cfg.Symbol), usecase.NewStatsTracker(),
		&MockTradeRepo{}, cfg, zap.NewNop())

	require.NoError(t, m.Tick(context.Background()))
	require.Zero(t, gw.TickerReads)
	require.Empty(t, gw.CreatedOrders())
}

func TestTickUpdatesUnrealizedPnL(t *testing.T) {
	f := newMonitorFixture(2004)

	require.NoError(t, f.monitor.Tick(context.Background()))

	snap := f.state.Snapshot()
	require.Equal(t, 2004.0, snap.LastPrice)
	require.InDelta(t, 0.2, snap.LastPnLPct, 1e-9)
	require.Empty(t, f.gw.CreatedOrders())
}

func TestTickFiresTP1(t *testing.T) {
	f := newMonitorFixture(2010.5)

	require.NoError(t, f.monitor.Tick(context.Background()))

	orders := f.gw.CreatedOrders()
	require.Len(t, orders, 1)
	require.Equal(t, domain.OrderMarket, orders[0].Type)
	require.Equal(t, domain.OrderSell, orders[0].Side)
	require.True(t, orders[0].ReduceOnly)
	require.Equal(t, 0.3, orders[0].Quantity)

	snap := f.state.Snapshot()
	require.True(t, snap.Brackets.TP1.Done)
	require.False(t, snap.Brackets.TP2.Done)
	require.InDelta(t, 0.7, snap.Position.Quantity, 1e-9)
	require.Equal(t, domain.SideLong, snap.Position.Side)

	stats := f.stats.Snapshot()
	require.Equal(t, 1, stats.TP1Count)
	require.Equal(t, []string{"tp1"}, f.repo.TradeKinds())
}

func TestTickTP2NeedsSeparateTick(t *testing.T) {
	// price far beyond both tiers in a single move
	f := newMonitorFixture(2030)
	ctx := context.Background()

	require.NoError(t, f.monitor.Tick(ctx))
	require.Len(t, f.gw.CreatedOrders(), 1)
	require.True(t, f.state.Snapshot().Brackets.TP1.Done)
	require.False(t, f.state.Snapshot().Brackets.TP2.Done)

	require.NoError(t, f.monitor.Tick(ctx))
	orders := f.gw.CreatedOrders()
	require.Len(t, orders, 2)
	require.InDelta(t, 0.35, orders[1].Quantity, 1e-9)

	snap := f.state.Snapshot()
	require.True(t, snap.Brackets.TP2.Done)
	require.InDelta(t, 0.35, snap.Position.Quantity, 1e-9)

	require.Equal(t, []string{"tp1", "tp2"}, f.repo.TradeKinds())
}

func TestTickStopLoss(t *testing.T) {
	f := newMonitorFixture(1988)

	require.NoError(t, f.monitor.Tick(context.Background()))

	orders := f.gw.CreatedOrders()
	require.Len(t, orders, 1)
	require.Equal(t, 1.0, orders[0].Quantity)
	require.True(t, orders[0].ReduceOnly)

	snap := f.state.Snapshot()
	require.True(t, snap.Brackets.SL.Done)
	require.False(t, snap.Position.Open())
	require.Zero(t, snap.Position.Quantity)

	stats := f.stats.Snapshot()
	require.Equal(t, 1, stats.SLCount)
	require.InDelta(t, -0.6, stats.CumulativePnLPct, 1e-9)
}

func TestTickStopNotHitAboveThreshold(t *testing.T) {
	f := newMonitorFixture(1992)

	require.NoError(t, f.monitor.Tick(context.Background()))
	require.Empty(t, f.gw.CreatedOrders())
	require.False(t, f.state.Snapshot().Brackets.SL.Done)
}

func TestTickTrailingStopAfterTP1(t *testing.T) {
	// pnl has fallen back to +0.05: under the tightened floor, exits
	f := newMonitorFixture(2001)
	f.state.Update(func(st *usecase.TradeState) {
		st.Brackets.TP1.Done = true
		st.Position.Quantity = 0.7
	})

	require.NoError(t, f.monitor.Tick(context.Background()))

	orders := f.gw.CreatedOrders()
	require.Len(t, orders, 1)
	require.InDelta(t, 0.7, orders[0].Quantity, 1e-9)
	require.True(t, f.state.Snapshot().Brackets.SL.Done)
	require.False(t, f.state.Snapshot().Position.Open())
}

func TestTickTrailingStopHoldsAboveFloor(t *testing.T) {
	// pnl +0.15 still clears the tightened floor: position stays open
	f := newMonitorFixture(2003)
	f.state.Update(func(st *usecase.TradeState) {
		st.Brackets.TP1.Done = true
		st.Position.Quantity = 0.7
	})

	require.NoError(t, f.monitor.Tick(context.Background()))
	require.Empty(t, f.gw.CreatedOrders())
	require.True(t, f.state.Snapshot().Position.Open())
}

func TestTickShortSideStop(t *testing.T) {
	cfg := testConfig()
	gw := &MockGateway{Price: 2012, Rules: testRules()}
	state := usecase.NewEngineState(cfg.Symbol)
	stats := usecase.NewStatsTracker()
	repo := &MockTradeRepo{}

	pos := domain.Position{
		Symbol:     "ETHUSDT",
		Side:       domain.SideShort,
		Quantity:   1.0,
		EntryPrice: 2000,
		EnteredAt:  time.Now(),
	}
	state.ResetForEntry(pos, usecase.BuildBrackets(cfg, pos.Side, pos.EntryPrice, pos.Quantity, testRules()))

	m := usecase.NewMonitor(gw, state, stats, repo, cfg, zap.NewNop())
	require.NoError(t, m.Tick(context.Background()))

	// shorts exit with a buy
	orders := gw.CreatedOrders()
	require.Len(t, orders, 1)
	require.Equal(t, domain.OrderBuy, orders[0].Side)
	require.True(t, state.Snapshot().Brackets.SL.Done)
}
