package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vitos/futures_signal_bot/internal/domain"
	"github.com/vitos/futures_signal_bot/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	router    *http.ServeMux
	server    *http.Server
	switcher  *usecase.Switcher
	state     *usecase.EngineState
	stats     *usecase.StatsTracker
	tradeRepo domain.TradeRepository
	reportLoc *time.Location
	boundary  int // hour of day at which the reporting period rolls over
	logger    *zap.Logger
}

func NewServer(
	port int,
	switcher *usecase.Switcher,
	state *usecase.EngineState,
	stats *usecase.StatsTracker,
	tradeRepo domain.TradeRepository,
	reportLoc *time.Location,
	boundaryHour int,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		switcher:  switcher,
		state:     state,
		stats:     stats,
		tradeRepo: tradeRepo,
		reportLoc: reportLoc,
		boundary:  boundaryHour,
		logger:    logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Signal input
	s.router.HandleFunc("POST /webhook", s.handleWebhook)

	// Read-only surfaces
	s.router.HandleFunc("GET /dashboard", s.handleDashboard)
	s.router.HandleFunc("GET /report", s.handleReport)
	s.router.HandleFunc("GET /status", s.handleStatus)
	s.router.HandleFunc("GET /trades", s.handleTrades)
	s.router.HandleFunc("GET /health", s.handleHealth)

	s.router.Handle("GET /metrics", promhttp.Handler())
}

// Handler exposes the route table for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
