package telemetry

// SLI metric names used for instrumentation.
const (
	// Latency
	MetricAPILatencyP50 = "api.latency.p50"
	MetricAPILatencyP95 = "api.latency.p95"
	MetricAPILatencyP99 = "api.latency.p99"

	// Throughput
	MetricRequestsPerSec = "api.requests_per_second"
	MetricSamplesPerSec  = "monitor.samples_per_second"

	// Freshness: a tick computed against a stale utility map is the
	// failure mode that matters most in the field.
	MetricMapFreshness = "monitor.map_age_seconds"
	MetricTickLatency  = "monitor.tick_latency"

	// Availability
	MetricUptime = "service.uptime_percentage"

	// Business
	MetricAlertsRaised       = "business.alerts_raised"
	MetricIncidentsEscalated = "business.incidents_escalated"
)
