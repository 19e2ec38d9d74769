package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

type alertPayload struct {
	Symbol string `json:"symbol"`
	Action string `json:"action"`
}

// handleWebhook accepts a directional signal and forwards it to the
// switch coordinator. Skips are reported as 200s with a reason: the
// upstream alerting system cannot act on errors.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload alertPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if payload.Symbol == "" || payload.Action == "" {
		http.Error(w, "symbol and action are required", http.StatusBadRequest)
		return
	}

	// "ETH/USDT" -> "ETHUSDT"
	symbol := strings.ToUpper(strings.ReplaceAll(payload.Symbol, "/", ""))
	action := strings.ToUpper(payload.Action)

	s.logger.Info("Signal received",
		zap.String("symbol", symbol),
		zap.String("action", action))

	// The engine must outlive the alerting client's connection: once a
	// market order is submitted, its confirmation wait may not be
	// aborted by a disconnect.
	res := s.switcher.Switch(context.WithoutCancel(r.Context()), symbol, action)

	status := "ok"
	if !res.Filled {
		status = "skipped"
	}
	writeJSON(w, s.logger, map[string]any{
		"status": status,
		"result": res,
	})
}

// handleReport renders the daily stats and resets the counters, per
// the reporting contract: reads are destructive and atomic relative to
// the monitor loop's increments.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	period := s.reportPeriod(time.Now().In(s.reportLoc))
	stats := s.stats.Reset(period)

	if err := s.tradeRepo.SaveDailyStats(r.Context(), &stats); err != nil {
		s.logger.Error("Failed to persist daily stats", zap.Error(err))
	}

	s.logger.Info("Daily report",
		zap.String("period", period),
		zap.Int("trade_count", stats.TradeCount),
		zap.Int("tp1_count", stats.TP1Count),
		zap.Int("tp2_count", stats.TP2Count),
		zap.Int("sl_count", stats.SLCount),
		zap.Float64("cumulative_pnl_pct", stats.CumulativePnLPct))

	writeJSON(w, s.logger, stats)
}

func (s *Server) reportPeriod(now time.Time) string {
	return ReportPeriod(now, s.boundary)
}

// ReportPeriod labels the period that ends at boundaryHour: before the
// boundary the report still covers the previous day.
func ReportPeriod(now time.Time, boundaryHour int) string {
	return now.Add(-time.Duration(boundaryHour) * time.Hour).Format("2006-01-02")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, map[string]any{
		"state": s.state.Snapshot(),
		"stats": s.stats.Snapshot(),
	})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.tradeRepo.ListTrades(r.Context(), 100)
	if err != nil {
		s.logger.Error("Failed to list trades", zap.Error(err))
		http.Error(w, "failed to list trades", http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.logger, trades)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, map[string]string{"status": "alive"})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st := s.state.Snapshot()

	entry := "-"
	if st.Position.EntryPrice > 0 {
		entry = fmt.Sprintf("%.4f", st.Position.EntryPrice)
	}
	pnl := "-"
	if st.Position.Open() {
		pnl = fmt.Sprintf("%.2f%%", st.LastPnLPct)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<h1>Trade Status</h1>
<p>Symbol: %s</p>
<p>Side: %s</p>
<p>Entry Price: %s</p>
<p>Quantity: %.6f</p>
<p>Current Price: %.4f</p>
<p>Unrealized PnL: %s</p>
<p>TP1 done: %v | TP2 done: %v | SL done: %v</p>
`,
		st.Position.Symbol, st.Position.Side, entry, st.Position.Quantity,
		st.LastPrice, pnl,
		st.Brackets.TP1.Done, st.Brackets.TP2.Done, st.Brackets.SL.Done)
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}
