package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Relic999/aester-dex/internal/api"
	"github.com/Relic999/aester-dex/internal/balance"
	"github.com/Relic999/aester-dex/internal/bot"
	"github.com/Relic999/aester-dex/internal/events"
	"github.com/Relic999/aester-dex/internal/market"
	"github.com/Relic999/aester-dex/internal/monitor"
	"github.com/Relic999/aester-dex/internal/order"
	"github.com/Relic999/aester-dex/internal/position"
	"github.com/Relic999/aester-dex/internal/stats"
	"github.com/Relic999/aester-dex/internal/strategy"
	"github.com/Relic999/aester-dex/pkg/config"
	"github.com/Relic999/aester-dex/pkg/db"
	"github.com/Relic999/aester-dex/pkg/exchange/aster"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	mode := "live"
	if cfg.DryRun {
		mode = "dry-run"
	}
	log.Printf("starting aester-dex signal engine: %s %s strategy=%s timeframe=%dms",
		cfg.Symbol, mode, cfg.Strategy, cfg.TimeframeMs)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Core services
	bus := events.NewBus()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("db migrations failed: %v", err)
	}

	metrics := monitor.New(nil)
	tracker := stats.NewTracker()
	tradeLog, err := stats.NewTradeLog(cfg.TradeLogPath)
	if err != nil {
		log.Fatalf("trade log init failed: %v", err)
	}

	stateMgr := position.NewStateManager()
	orderTracker := position.NewOrderTracker()
	warm := bot.NewWarmStore(cfg.WarmStatePath)

	balCache := balance.NewCache()
	if cfg.DryRun {
		balCache.Set(cfg.DryRunInitialBalance)
		log.Printf("💰 dry-run balance seeded: %.2f USDT", cfg.DryRunInitialBalance)
	}

	// Strategy engine
	var engine strategy.Engine
	switch cfg.Strategy {
	case config.StrategyTrend:
		engine, err = strategy.NewTrendEngine(strategy.TrendConfig{
			EMAFastLen:  cfg.Trend.EMAFastLen,
			EMAMidLen:   cfg.Trend.EMAMidLen,
			EMASlowLen:  cfg.Trend.EMASlowLen,
			RSILen:      cfg.Trend.RSILen,
			RSIMinLong:  cfg.Trend.RSIMinLong,
			RSIMaxShort: cfg.Trend.RSIMaxShort,
		})
	case config.StrategyHybrid:
		engine, err = strategy.NewHybridEngine(strategy.HybridConfig{
			V1EMAFastLen:      cfg.Hybrid.V1EMAFastLen,
			V1EMAMidLen:       cfg.Hybrid.V1EMAMidLen,
			V1EMASlowLen:      cfg.Hybrid.V1EMASlowLen,
			V1EMAMicroFastLen: cfg.Hybrid.V1EMAMicroFastLen,
			V1EMAMicroSlowLen: cfg.Hybrid.V1EMAMicroSlowLen,
			V1RSILen:          cfg.Hybrid.V1RSILen,
			RSIMinLong:        cfg.Hybrid.RSIMinLong,
			RSIMaxShort:       cfg.Hybrid.RSIMaxShort,
			MinBarsBetween:    cfg.Hybrid.MinBarsBetween,
			MinMovePercent:    cfg.Hybrid.MinMovePercent,

			V2EMAFastLen:         cfg.Hybrid.V2EMAFastLen,
			V2EMAMidLen:          cfg.Hybrid.V2EMAMidLen,
			V2EMASlowLen:         cfg.Hybrid.V2EMASlowLen,
			V2RSILen:             cfg.Hybrid.V2RSILen,
			RSIMomentumThreshold: cfg.Hybrid.RSIMomentumThreshold,
			VolumeLookback:       cfg.Hybrid.VolumeLookback,
			VolumeMultiplier:     cfg.Hybrid.VolumeMultiplier,

			ExitVolumeMultiplier: cfg.Hybrid.ExitVolumeMultiplier,
			ADXLen:               cfg.Hybrid.ADXLen,
		})
	}
	if err != nil {
		log.Fatalf("strategy init failed: %v", err)
	}

	// Executor and snapshot source
	var (
		executor order.Executor
		source   bot.SnapshotSource
	)
	if cfg.DryRun {
		executor = order.NewDryRunExecutor(database, bus)
	} else {
		client := aster.NewClient(aster.Config{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			BaseURL:   cfg.RestBaseURL,
		})
		client.StartTimeSync(ctx)
		executor = order.NewLiveExecutor(client, database, bus, cfg.Symbol)
		source = &bot.RestSource{Client: client, Symbol: cfg.Symbol}
	}

	// Orchestrator
	b, err := bot.New(bot.Config{
		Symbol:      cfg.Symbol,
		Strategy:    cfg.Strategy,
		TimeframeMs: cfg.TimeframeMs,
		DryRun:      cfg.DryRun,

		MaxPositionSize:       cfg.MaxPositionSize,
		MaxLeverage:           cfg.MaxLeverage,
		MaxFlipsPerHour:       cfg.MaxFlipsPerHour,
		StopLossPct:           cfg.StopLossPct,
		TakeProfitPct:         cfg.TakeProfitPct,
		UseStopLoss:           cfg.UseStopLoss,
		EmergencyStopLoss:     cfg.EmergencyStopLoss,
		PositionSizePct:       cfg.PositionSizePct,
		RequireTrendingMarket: cfg.RequireTrendingMarket,
		ADXThreshold:          cfg.ADXThreshold,

		PollInterval: time.Duration(cfg.PollInterval) * time.Second,
	}, bot.Deps{
		Bus:      bus,
		Engine:   engine,
		Executor: executor,
		StateMgr: stateMgr,
		Tracker:  orderTracker,
		Stats:    tracker,
		TradeLog: tradeLog,
		DB:       database,
		Balance:  balCache,
		Metrics:  metrics,
		Warm:     warm,
		Source:   source,
	})
	if err != nil {
		log.Fatalf("bot init failed: %v", err)
	}
	b.Start(ctx)

	// Tick feed
	if cfg.UseMockFeed {
		feed := &market.MockFeed{Bus: bus, StartPrice: 100, Step: 0.5, Interval: time.Second}
		feed.Start(ctx)
		log.Println("✓ mock feed started")
	} else {
		feed := &market.Feed{
			Stream: aster.NewStreamClient(cfg.StreamBaseURL),
			Bus:    bus,
			Symbol: cfg.Symbol,
		}
		feed.Start(ctx)
		log.Printf("✓ trade stream started for %s", cfg.Symbol)
	}

	// Dashboard API
	version := os.Getenv("APP_VERSION")
	if version == "" {
		version = "dev"
	}
	server, err := api.NewServer(bus, database, tracker, balCache, b, api.SystemMeta{
		DryRun:   cfg.DryRun,
		Symbol:   cfg.Symbol,
		Strategy: cfg.Strategy,
		Version:  version,
	}, cfg.JWTSecret, cfg.DashboardPassword)
	if err != nil {
		log.Fatalf("api init failed: %v", err)
	}
	go func() {
		if err := server.Run(":" + cfg.Port); err != nil {
			log.Printf("api server stopped: %v", err)
		}
	}()
	log.Printf("✓ api listening on :%s", cfg.Port)

	<-ctx.Done()
	log.Println("shutdown requested, draining pipeline")
	select {
	case <-b.Done():
	case <-time.After(5 * time.Second):
		log.Println("⚠️ pipeline drain timed out")
	}
	log.Println("bye")
}
