package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/futures_signal_bot/internal/domain"
)

// SQLiteStore persists the trade journal and daily-stat snapshots.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			kind TEXT NOT NULL,
			quantity REAL NOT NULL,
			price REAL NOT NULL,
			pnl_pct REAL NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);`,
		`CREATE TABLE IF NOT EXISTS daily_stats (
			period TEXT PRIMARY KEY,
			trade_count INTEGER NOT NULL,
			tp1_count INTEGER NOT NULL,
			tp2_count INTEGER NOT NULL,
			sl_count INTEGER NOT NULL,
			cumulative_pnl_pct REAL NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// TradeRepository implementation

func (s *SQLiteStore) SaveTrade(ctx context.Context, rec *domain.TradeRecord) error {
	query := `INSERT INTO trades (symbol, side, kind, quantity, price, pnl_pct, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		rec.Symbol, rec.Side, rec.Kind, rec.Quantity, rec.Price, rec.PnLPct, rec.CreatedAt)
	return err
}

func (s *SQLiteStore) ListTrades(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	query := `SELECT id, symbol, side, kind, quantity, price, pnl_pct, created_at
			  FROM trades ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Side, &t.Kind, &t.Quantity, &t.Price, &t.PnLPct, &t.CreatedAt); err != nil {
			return nil, err
		}
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}

func (s *SQLiteStore) SaveDailyStats(ctx context.Context, stats *domain.DailyStats) error {
	query := `INSERT INTO daily_stats (period, trade_count, tp1_count, tp2_count, sl_count, cumulative_pnl_pct, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(period) DO UPDATE SET
			  trade_count=trade_count+excluded.trade_count,
			  tp1_count=tp1_count+excluded.tp1_count,
			  tp2_count=tp2_count+excluded.tp2_count,
			  sl_count=sl_count+excluded.sl_count,
			  cumulative_pnl_pct=cumulative_pnl_pct+excluded.cumulative_pnl_pct,
			  updated_at=excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query,
		stats.Period, stats.TradeCount, stats.TP1Count, stats.TP2Count, stats.SLCount,
		stats.CumulativePnLPct, time.Now())
	return err
}

// FetchDailyStats returns the accumulated snapshot for one period, or
// sql.ErrNoRows if nothing was saved for it.
func (s *SQLiteStore) FetchDailyStats(ctx context.Context, period string) (*domain.DailyStats, error) {
	query := `SELECT period, trade_count, tp1_count, tp2_count, sl_count, cumulative_pnl_pct
			  FROM daily_stats WHERE period = ?`
	var st domain.DailyStats
	err := s.db.QueryRowContext(ctx, query, period).Scan(
		&st.Period, &st.TradeCount, &st.TP1Count, &st.TP2Count, &st.SLCount, &st.CumulativePnLPct)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
