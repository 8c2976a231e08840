// Command escalator turns sustained critical proximity into incidents.
//
// It consumes tick events from the DIG_TICKS stream, tracks consecutive
// critical ticks per (site, device, utility), and when a streak reaches the
// configured threshold starts an IncidentEscalationWorkflow on Temporal. The
// workflow owns the durable part: opening the incident, paging the site
// supervisor, and compensating when the page cannot be delivered. This
// process also hosts the worker that executes those workflows.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/digsentry/digsentry/internal/adapters/nats"
	"github.com/digsentry/digsentry/internal/adapters/postgres"
	"github.com/digsentry/digsentry/internal/adapters/valkey"
	"github.com/digsentry/digsentry/internal/core/domain"
	"github.com/digsentry/digsentry/internal/core/ports"
	"github.com/digsentry/digsentry/internal/core/usecases"
	"github.com/digsentry/digsentry/internal/pkg/config"
	"github.com/digsentry/digsentry/internal/pkg/logging"
	"github.com/digsentry/digsentry/internal/pkg/metrics"
	"github.com/digsentry/digsentry/internal/workflows"
)

func main() {
	cfg, err := config.Load("digsentry-escalator")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger := logging.Service("escalator")
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		logger.Warn("valkey unavailable, line lookups run uncached", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	incidentRepo := postgres.NewIncidentRepo(db)
	lineSvc := usecases.NewLineService(postgres.NewLineRepo(db), cacheSvc)
	siteSvc := usecases.NewSiteService(postgres.NewSiteRepo(db))

	// Pushes ride the same broker as the tick stream; the supervisor
	// tablet already holds a relay subscription on its notify subject.
	rawConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		logger.Error("failed to connect to nats", "error", err)
		os.Exit(1)
	}
	defer rawConn.Close()

	tc, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		logger.Error("failed to connect to temporal", "error", err)
		os.Exit(1)
	}
	defer tc.Close()

	w := worker.New(tc, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.IncidentEscalationWorkflow)
	w.RegisterActivity(&workflows.EscalationActivities{
		Incidents: incidentRepo,
		Lines:     lineSvc,
		Sites:     siteSvc,
		Notifier:  natsadapter.NewNotifier(rawConn),
	})
	if err := w.Start(); err != nil {
		logger.Error("failed to start temporal worker", "error", err)
		os.Exit(1)
	}
	defer w.Stop()

	esc := &escalator{
		temporal:  tc,
		taskQueue: cfg.Temporal.TaskQueue,
		streaks:   usecases.NewEscalationService(cfg.Monitor.CriticalStreak),
		incidents: incidentRepo,
		logger:    logger,
	}

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		logger.Error("failed to create nats subscriber", "error", err)
		os.Exit(1)
	}
	defer sub.Close()

	if err := sub.SubscribeTicks(ctx, esc.handleTick); err != nil {
		logger.Error("failed to subscribe to ticks", "error", err)
		os.Exit(1)
	}

	// The escalation counter lives in this process, so it serves its own
	// /metrics.
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	app.Get("/metrics", metrics.Handler())
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info("escalator started",
			"addr", addr,
			"task_queue", cfg.Temporal.TaskQueue,
			"critical_streak", cfg.Monitor.CriticalStreak)
		if err := app.Listen(addr); err != nil {
			logger.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down escalator")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
}

type escalator struct {
	temporal  client.Client
	taskQueue string
	streaks   *usecases.EscalationService
	incidents ports.IncidentRepository
	logger    *slog.Logger
}

// handleTick always acks: the streak counters live in this process, so a
// redelivered tick would count the same critical reading twice without
// re-crossing the threshold. Launch failures are logged instead; the
// workflow ID keeps an eventual retry from double-opening an incident.
func (e *escalator) handleTick(ctx context.Context, ev *domain.TickEvent) error {
	for _, alert := range e.streaks.ProcessTick(ev) {
		if e.alreadyOpen(ctx, ev, alert.UtilityID) {
			continue
		}
		e.launch(ctx, ev, alert)
	}
	return nil
}

// alreadyOpen reports whether an incident for this device/utility pair is
// still unresolved, which happens when the monitor restarts and the streak
// re-accumulates while the original incident sits open.
func (e *escalator) alreadyOpen(ctx context.Context, ev *domain.TickEvent, utilityID string) bool {
	open, err := e.incidents.ListOpenBySite(ctx, ev.SiteID)
	if err != nil {
		e.logger.Warn("open incident lookup failed, escalating anyway",
			"site_id", ev.SiteID, "error", err)
		return false
	}
	for _, inc := range open {
		if inc.DeviceID == ev.DeviceID && inc.UtilityID == utilityID {
			return true
		}
	}
	return false
}

func (e *escalator) launch(ctx context.Context, ev *domain.TickEvent, alert domain.ProximityAlert) {
	opts := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("escalate-%s-%s-%s", ev.SiteID, ev.DeviceID, alert.UtilityID),
		TaskQueue: e.taskQueue,
	}
	input := workflows.EscalationInput{
		SiteID:       ev.SiteID,
		DeviceID:     ev.DeviceID,
		UtilityID:    alert.UtilityID,
		Severity:     string(alert.Severity),
		DistanceFeet: alert.DistanceFeet,
	}

	run, err := e.temporal.ExecuteWorkflow(ctx, opts, workflows.IncidentEscalationWorkflow, input)
	if err != nil {
		var already *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &already) {
			e.logger.Debug("escalation already in flight", "workflow_id", opts.ID)
			return
		}
		e.logger.Error("failed to start escalation workflow",
			"workflow_id", opts.ID, "error", err)
		return
	}

	metrics.IncidentsEscalated.Inc()
	e.logger.Info("escalation workflow started",
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
		"site_id", ev.SiteID,
		"device_id", ev.DeviceID,
		"utility_id", alert.UtilityID,
		"distance_feet", alert.DistanceFeet)
}
