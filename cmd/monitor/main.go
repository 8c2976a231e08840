package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	natsadapter "github.com/digsentry/digsentry/internal/adapters/nats"
	"github.com/digsentry/digsentry/internal/adapters/postgres"
	"github.com/digsentry/digsentry/internal/adapters/valkey"
	"github.com/digsentry/digsentry/internal/core/ports"
	"github.com/digsentry/digsentry/internal/core/usecases"
	"github.com/digsentry/digsentry/internal/pkg/config"
	"github.com/digsentry/digsentry/internal/pkg/logging"
	"github.com/digsentry/digsentry/internal/pkg/metrics"
)

// The monitor owns the live proximity pipeline: it consumes device samples
// and crew commands from JetStream, runs the per-device filters and engines,
// and fans ticks out to the bus, the cache, and the audit log. Exactly one
// instance consumes each stream; the durable consumers make a restart pick
// up where the previous process stopped.
func main() {
	cfg, err := config.Load("digsentry-monitor")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger := logging.Service("monitor")
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database: utility map reads, alert transition writes.
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache: line snapshots plus the pose/tick state the API reads back.
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, running uncached", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	// NATS: publisher for poses/ticks, subscriber for samples/commands.
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	lineSvc := usecases.NewLineService(postgres.NewLineRepo(db), cacheSvc)
	alertRepo := postgres.NewAlertEventRepo(db)

	monitor := usecases.NewMonitorService(lineSvc, alertRepo, pub, cacheSvc, logger, nil,
		usecases.MonitorConfig{
			TickInterval:       cfg.Monitor.TickInterval(),
			PositionCapacity:   cfg.Monitor.PositionCapacity,
			AccuracyThresholdM: cfg.Monitor.AccuracyThresholdM,
			MaxSpeedMps:        cfg.Monitor.MaxSpeedMps,
			HeadingCapacity:    cfg.Monitor.HeadingCapacity,
			CooldownMs:         cfg.Monitor.CooldownMs,
			SessionTTL:         cfg.Monitor.SessionTTL(),
		})

	if err := sub.SubscribeSamples(ctx, monitor.HandleSample); err != nil {
		log.Fatalf("subscribe samples: %v", err)
	}
	if err := sub.SubscribeCommands(ctx, monitor.HandleCommand); err != nil {
		log.Fatalf("subscribe commands: %v", err)
	}

	go func() {
		if err := monitor.Run(ctx); err != nil {
			slog.Error("monitor loop", "error", err)
		}
	}()

	// Scrape endpoint. The pipeline counters live in this process, so it
	// serves its own /metrics.
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	app.Get("/metrics", metrics.Handler())
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("monitor started", "addr", addr, "tick_interval", cfg.Monitor.TickInterval().String())
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received", "signal", sig.String())
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("monitor stopped")
}
