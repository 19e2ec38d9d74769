package usecase

import (
	"sync"

	"github.com/vitos/futures_signal_bot/internal/domain"
)

// TradeState is everything the three concurrent actors (signal path,
// monitor loop, fill listener) share about the current trade.
type TradeState struct {
	Position   domain.Position   `json:"position"`
	Brackets   domain.BracketSet `json:"brackets"`
	LastPrice  float64           `json:"last_price"`
	LastPnLPct float64           `json:"last_pnl_pct"`
}

// EngineState serializes all access to TradeState behind one mutex.
// Writers go through Update; readers take value-copy snapshots.
type EngineState struct {
	mu sync.Mutex
	st TradeState
}

func NewEngineState(symbol string) *EngineState {
	return &EngineState{
		st: TradeState{
			Position: domain.Position{Symbol: symbol, Side: domain.SideFlat},
		},
	}
}

func (s *EngineState) Update(fn func(st *TradeState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.st)
}

func (s *EngineState) Snapshot() TradeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// ResetForEntry installs a fresh position and a fully reinitialized
// bracket set. Called on every confirmed entry, from the execution
// engine and from the fill listener; last writer wins.
func (s *EngineState) ResetForEntry(pos domain.Position, brackets domain.BracketSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Position = pos
	s.st.Brackets = brackets
	s.st.LastPrice = pos.EntryPrice
	s.st.LastPnLPct = 0
}

// StatsTracker guards the per-period counters. The report collaborator
// resets them atomically relative to the monitor loop's increments.
type StatsTracker struct {
	mu sync.Mutex
	st domain.DailyStats
}

func NewStatsTracker() *StatsTracker {
	return &StatsTracker{}
}

func (t *StatsTracker) Update(fn func(st *domain.DailyStats)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.st)
}

func (t *StatsTracker) Snapshot() domain.DailyStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st
}

// Reset labels the current counters with period, zeroes them, and
// returns the pre-reset snapshot.
func (t *StatsTracker) Reset(period string) domain.DailyStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.st
	out.Period = period
	t.st = domain.DailyStats{}
	return out
}
