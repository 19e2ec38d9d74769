package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vitos/futures_signal_bot/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndListTrades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records := []*domain.TradeRecord{
		{Symbol: "ETHUSDT", Side: domain.SideLong, Kind: "entry", Quantity: 0.49, Price: 2000, CreatedAt: time.Now()},
		{Symbol: "ETHUSDT", Side: domain.SideLong, Kind: "tp1", Quantity: 0.147, Price: 2010, PnLPct: 0.5, CreatedAt: time.Now()},
		{Symbol: "ETHUSDT", Side: domain.SideLong, Kind: "sl", Quantity: 0.343, Price: 1990, PnLPct: -0.5, CreatedAt: time.Now()},
	}
	for _, rec := range records {
		require.NoError(t, store.SaveTrade(ctx, rec))
	}

	trades, err := store.ListTrades(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trades, 3)

	// newest first
	require.Equal(t, "sl", trades[0].Kind)
	require.Equal(t, "entry", trades[2].Kind)
	require.InDelta(t, -0.5, trades[0].PnLPct, 1e-9)
	require.Equal(t, domain.SideLong, trades[0].Side)
}

func TestListTradesRespectsLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.SaveTrade(ctx, &domain.TradeRecord{
			Symbol: "ETHUSDT", Side: domain.SideShort, Kind: "entry", Quantity: 1, Price: 2000, CreatedAt: time.Now(),
		}))
	}

	trades, err := store.ListTrades(ctx, 2)
	require.NoError(t, err)
	require.Len(t, trades, 2)
}

func TestSaveDailyStatsAccumulates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveDailyStats(ctx, &domain.DailyStats{
		Period: "2026-08-30", TradeCount: 3, TP1Count: 1, CumulativePnLPct: 0.5,
	}))
	// a second flush for the same period adds, not overwrites
	require.NoError(t, store.SaveDailyStats(ctx, &domain.DailyStats{
		Period: "2026-08-30", TradeCount: 2, SLCount: 1, CumulativePnLPct: -0.5,
	}))

	got, err := store.FetchDailyStats(ctx, "2026-08-30")
	require.NoError(t, err)
	require.Equal(t, 5, got.TradeCount)
	require.Equal(t, 1, got.TP1Count)
	require.Equal(t, 1, got.SLCount)
	require.InDelta(t, 0, got.CumulativePnLPct, 1e-9)
}

func TestFetchDailyStatsMissingPeriod(t *testing.T) {
	store := newTestStore(t)

	_, err := store.FetchDailyStats(context.Background(), "1970-01-01")
	require.Error(t, err)
}
