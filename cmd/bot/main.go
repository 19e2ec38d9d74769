package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/vitos/futures_signal_bot/internal/infrastructure/exchange"
	"github.com/vitos/futures_signal_bot/internal/infrastructure/logger"
	"github.com/vitos/futures_signal_bot/internal/infrastructure/storage"
	"github.com/vitos/futures_signal_bot/internal/usecase"
	"github.com/vitos/futures_signal_bot/internal/web"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Exchange struct {
		RESTEndpoint string `yaml:"rest_endpoint"`
		WSEndpoint   string `yaml:"ws_endpoint"`
	} `yaml:"exchange"`
	Engine struct {
		Symbol              string  `yaml:"symbol"`
		Leverage            int     `yaml:"leverage"`
		MarginType          string  `yaml:"margin_type"`
		Allocation          float64 `yaml:"allocation"`
		QuoteAsset          string  `yaml:"quote_asset"`
		TP1Pct              float64 `yaml:"tp1_pct"`
		TP2Pct              float64 `yaml:"tp2_pct"`
		SLPct               float64 `yaml:"sl_pct"`
		TrailSLPct          float64 `yaml:"trail_sl_pct"`
		TP1Part             float64 `yaml:"tp1_part"`
		TP2Part             float64 `yaml:"tp2_part"`
		PollIntervalMs      int     `yaml:"poll_interval_ms"`
		ReconcileTimeoutMs  int     `yaml:"reconcile_timeout_ms"`
		ReconcileIntervalMs int     `yaml:"reconcile_interval_ms"`
	} `yaml:"engine"`
	Report struct {
		BoundaryHour int    `yaml:"boundary_hour"`
		Timezone     string `yaml:"timezone"`
	} `yaml:"report"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func engineConfig(cfg *Config) usecase.EngineConfig {
	ec := usecase.DefaultEngineConfig(cfg.Engine.Symbol)
	if cfg.Engine.Leverage > 0 {
		ec.Leverage = cfg.Engine.Leverage
	}
	if cfg.Engine.MarginType != "" {
		ec.MarginType = cfg.Engine.MarginType
	}
	if cfg.Engine.Allocation > 0 {
		ec.Allocation = cfg.Engine.Allocation
	}
	if cfg.Engine.QuoteAsset != "" {
		ec.QuoteAsset = cfg.Engine.QuoteAsset
	}
	if cfg.Engine.TP1Pct > 0 {
		ec.TP1Pct = cfg.Engine.TP1Pct
	}
	if cfg.Engine.TP2Pct > 0 {
		ec.TP2Pct = cfg.Engine.TP2Pct
	}
	if cfg.Engine.SLPct > 0 {
		ec.SLPct = cfg.Engine.SLPct
	}
	if cfg.Engine.TrailSLPct > 0 {
		ec.TrailSLPct = cfg.Engine.TrailSLPct
	}
	if cfg.Engine.TP1Part > 0 {
		ec.TP1Part = cfg.Engine.TP1Part
	}
	if cfg.Engine.TP2Part > 0 {
		ec.TP2Part = cfg.Engine.TP2Part
	}
	if cfg.Engine.PollIntervalMs > 0 {
		ec.PollInterval = time.Duration(cfg.Engine.PollIntervalMs) * time.Millisecond
	}
	if cfg.Engine.ReconcileTimeoutMs > 0 {
		ec.ReconcileTimeout = time.Duration(cfg.Engine.ReconcileTimeoutMs) * time.Millisecond
	}
	if cfg.Engine.ReconcileIntervalMs > 0 {
		ec.ReconcileInterval = time.Duration(cfg.Engine.ReconcileIntervalMs) * time.Millisecond
	}
	ec.DryRun = os.Getenv("DRY_RUN") == "true"
	return ec
}

func main() {
	// Credentials and DRY_RUN come from the environment
	_ = godotenv.Load()

	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	apiKey := os.Getenv("EXCHANGE_API_KEY")
	apiSecret := os.Getenv("EXCHANGE_API_SECRET")
	if apiKey == "" || apiSecret == "" {
		log.Fatal("EXCHANGE_API_KEY and EXCHANGE_API_SECRET must be set")
	}

	store, err := storage.NewSQLiteStore("bot.db")
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// Exchange traffic goes to its own file to keep the main log readable.
	exchangeLog, err := logger.NewFileLogger("exchange.log", cfg.Logging.Level)
	if err != nil {
		log.Warn("Failed to init exchange log file, using main logger", zap.Error(err))
		exchangeLog = log
	}

	adapter := exchange.NewBinanceAdapter(apiKey, apiSecret, cfg.Exchange.RESTEndpoint, cfg.Exchange.WSEndpoint, exchangeLog)

	ec := engineConfig(cfg)
	state := usecase.NewEngineState(ec.Symbol)
	stats := usecase.NewStatsTracker()
	reconciler := usecase.NewReconciler(adapter, log)
	executor := usecase.NewExecutor(adapter, reconciler, state, store, ec, log)
	switcher := usecase.NewSwitcher(adapter, executor, reconciler, state, stats, store, ec, log)
	monitor := usecase.NewMonitor(adapter, state, stats, store, ec, log)
	listener := usecase.NewFillListener(adapter, state, ec, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener.Register()
	if err := adapter.StartUserStream(ctx); err != nil {
		// Polling remains the fallback entry-detection path.
		log.Error("Failed to start user data stream", zap.Error(err))
	}

	go monitor.Run(ctx)

	loc, err := time.LoadLocation(cfg.Report.Timezone)
	if err != nil {
		log.Warn("Invalid report timezone, using UTC", zap.String("timezone", cfg.Report.Timezone))
		loc = time.UTC
	}

	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	server := web.NewServer(port, switcher, state, stats, store, loc, cfg.Report.BoundaryHour, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	if ec.DryRun {
		log.Info("Dry run mode enabled: no orders will be sent")
	}
	log.Info("Bot started",
		zap.String("symbol", ec.Symbol),
		zap.Int("port", port))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
