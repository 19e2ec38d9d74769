package usecase_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vitos/futures_signal_bot/internal/domain"
	"github.com/vitos/futures_signal_bot/internal/usecase"
)

func TestEngineStateStartsFlat(t *testing.T) {
	snap := usecase.NewEngineState("ETHUSDT").Snapshot()
	require.Equal(t, "ETHUSDT", snap.Position.Symbol)
	require.False(t, snap.Position.Open())
}

func TestResetForEntryClearsDerivedFields(t *testing.T) {
	state := usecase.NewEngineState("ETHUSDT")
	state.Update(func(st *usecase.TradeState) {
		st.LastPrice = 1234
		st.LastPnLPct = -3
		st.Brackets.TP1.Done = true
	})

	state.ResetForEntry(domain.Position{
		Symbol: "ETHUSDT", Side: domain.SideLong, Quantity: 0.5, EntryPrice: 2000,
	}, domain.BracketSet{})

	snap := state.Snapshot()
	require.Equal(t, 2000.0, snap.LastPrice)
	require.Zero(t, snap.LastPnLPct)
	require.False(t, snap.Brackets.TP1.Done)
}

func TestEngineStateConcurrentUpdates(t *testing.T) {
	state := usecase.NewEngineState("ETHUSDT")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state.Update(func(st *usecase.TradeState) {
				st.LastPnLPct++
			})
		}()
	}
	wg.Wait()

	require.Equal(t, 50.0, state.Snapshot().LastPnLPct)
}

func TestStatsTrackerResetReturnsLabeledSnapshot(t *testing.T) {
	stats := usecase.NewStatsTracker()
	stats.Update(func(st *domain.DailyStats) {
		st.TradeCount = 4
		st.TP1Count = 2
		st.SLCount = 1
		st.CumulativePnLPct = 0.3
	})

	out := stats.Reset("2026-08-30")

	require.Equal(t, "2026-08-30", out.Period)
	require.Equal(t, 4, out.TradeCount)
	require.Equal(t, 2, out.TP1Count)
	require.Equal(t, 1, out.SLCount)
	require.InDelta(t, 0.3, out.CumulativePnLPct, 1e-9)

	// counters start over after the read
	fresh := stats.Snapshot()
	require.Zero(t, fresh.TradeCount)
	require.Zero(t, fresh.CumulativePnLPct)
}
