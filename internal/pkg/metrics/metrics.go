package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "digsentry",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "digsentry",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "digsentry",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Monitoring pipeline metrics
	SamplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "digsentry",
		Subsystem: "monitor",
		Name:      "samples_total",
		Help:      "Total GPS samples received from devices",
	})

	SampleRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "digsentry",
		Subsystem: "monitor",
		Name:      "sample_rejects_total",
		Help:      "Total GPS samples rejected by the filter gates",
	}, []string{"reason"})

	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "digsentry",
		Subsystem: "monitor",
		Name:      "ticks_total",
		Help:      "Total proximity ticks evaluated across all sessions",
	})

	ActiveAlerts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "digsentry",
		Subsystem: "monitor",
		Name:      "alerts_active",
		Help:      "Live proximity alerts across all device sessions",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "digsentry",
		Subsystem: "monitor",
		Name:      "sessions_active",
		Help:      "Device sessions currently monitored",
	})

	AlertEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "digsentry",
		Subsystem: "monitor",
		Name:      "alert_events_total",
		Help:      "Total alert transitions recorded",
	}, []string{"event"})

	MalformedLines = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "digsentry",
		Subsystem: "monitor",
		Name:      "malformed_lines_total",
		Help:      "Total malformed utility lines skipped during import or ticks",
	})

	IncidentsEscalated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "digsentry",
		Subsystem: "escalation",
		Name:      "incidents_total",
		Help:      "Total incidents escalated to supervisors",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "digsentry",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "digsentry",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "digsentry",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "digsentry",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "digsentry",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "digsentry",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics updates database pool metrics from pgx pool stats.
// It takes an interface so this package stays free of a pgxpool import.
func UpdateDBPoolMetrics(stat interface{}) {
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
