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
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/digsentry/digsentry/internal/adapters/http"
	natsadapter "github.com/digsentry/digsentry/internal/adapters/nats"
	"github.com/digsentry/digsentry/internal/adapters/postgres"
	"github.com/digsentry/digsentry/internal/adapters/valkey"
	"github.com/digsentry/digsentry/internal/core/ports"
	"github.com/digsentry/digsentry/internal/core/usecases"
	"github.com/digsentry/digsentry/internal/pkg/config"
	"github.com/digsentry/digsentry/internal/pkg/logging"
	"github.com/digsentry/digsentry/internal/pkg/metrics"
	"github.com/digsentry/digsentry/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("digsentry-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logging.Service("api"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache. The API runs without it; line lookups just skip the cache and
	// the live alert/pose endpoints answer 500 until valkey is back.
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	// NATS
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Repos
	siteRepo := postgres.NewSiteRepo(db)
	lineRepo := postgres.NewLineRepo(db)
	alertRepo := postgres.NewAlertEventRepo(db)
	incidentRepo := postgres.NewIncidentRepo(db)

	// Use cases
	siteSvc := usecases.NewSiteService(siteRepo)
	lineSvc := usecases.NewLineService(lineRepo, cacheSvc)
	incidentSvc := usecases.NewIncidentService(incidentRepo)

	deps := &http.Dependencies{
		Sites:     siteSvc,
		Lines:     lineSvc,
		Incidents: incidentSvc,
		Events:    alertRepo,
		Publisher: pub,
		NATS:      natsConn,
		DB:        db,
	}
	if cache != nil {
		deps.Cache = cache
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    4 * 1024 * 1024, // survey GeoJSON imports run a few MB
		AppName:      "DigSentry API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://*.digsentry.dev",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// DB pool gauges
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			}
		}
	}()

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
