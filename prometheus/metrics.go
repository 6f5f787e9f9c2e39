package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric unless SetNamespace picks another one
const DefaultNamespace = "helpdesk"

// Collectors, rebuilt by SetNamespace
var (
	LoginCounter                prometheus.Counter
	RegisterCounter             prometheus.Counter
	HTTPRequestCounter          *prometheus.CounterVec
	AuthErrorCounter            *prometheus.CounterVec
	TicketOperationCounter      *prometheus.CounterVec
	CategoryOperationCounter    *prometheus.CounterVec
	NotificationDeliveryCounter *prometheus.CounterVec
	TokenCacheCounter           *prometheus.CounterVec
	SLARunCounter               *prometheus.CounterVec
	SLATransitionCounter        *prometheus.CounterVec
	RequestDuration             *prometheus.HistogramVec
	DBOperationDuration         *prometheus.HistogramVec
	SLARunDuration              prometheus.Histogram
	InfoGauge                   *prometheus.GaugeVec
	SLATicketsGauge             *prometheus.GaugeVec
)

func build(namespace string) {
	// Login counters
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_total",
			Help:      "Total number of login attempts",
		},
	)

	// Registration counters
	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "register_total",
			Help:      "Total number of self registrations",
		},
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_errors_total",
			Help:      "Total number of authentication errors",
		},
		[]string{"type"}, // type can be "invalid_password", "invalid_token", "two_factor_required" etc.
	)

	TicketOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticket_operations_total",
			Help:      "Total number of ticket operations",
		},
		[]string{"operation"}, // operation can be "create", "status_change", "assign", "comment", etc.
	)

	CategoryOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "category_operations_total",
			Help:      "Total number of category operations",
		},
		[]string{"operation"},
	)

	NotificationDeliveryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_deliveries_total",
			Help:      "Total number of notification deliveries by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	TokenCacheCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_cache_requests_total",
			Help:      "Token cache lookups by result",
		},
		[]string{"result"}, // "hit" or "miss"
	)

	SLARunCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sla_runs_total",
			Help:      "Total number of SLA monitor runs by outcome",
		},
		[]string{"outcome"}, // "ok", "error", "skipped"
	)

	SLATransitionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sla_transitions_total",
			Help:      "Total number of SLA status transitions",
		},
		[]string{"status"},
	)

	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_operation_duration_seconds",
			Help:      "Duration of database operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)

	SLARunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sla_run_duration_seconds",
			Help:      "Duration of SLA monitor runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Information about the helpdesk service",
		},
		[]string{"version"},
	)

	// Active tickets by SLA status, refreshed on every SLA run
	SLATicketsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sla_tickets",
			Help:      "Number of active tickets per SLA status",
		},
		[]string{"status"},
	)
}

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		LoginCounter,
		RegisterCounter,
		HTTPRequestCounter,
		AuthErrorCounter,
		TicketOperationCounter,
		CategoryOperationCounter,
		NotificationDeliveryCounter,
		TokenCacheCounter,
		SLARunCounter,
		SLATransitionCounter,
		RequestDuration,
		DBOperationDuration,
		SLARunDuration,
		InfoGauge,
		SLATicketsGauge,
	}
}

func register() {
	for _, c := range collectors() {
		prometheus.MustRegister(c)
	}
	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

func init() {
	build(DefaultNamespace)
	register()
}

// SetNamespace re-creates every collector under namespace (METRICS_PREFIX).
// Call it once at startup, before serving traffic.
func SetNamespace(namespace string) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	for _, c := range collectors() {
		prometheus.Unregister(c)
	}
	build(namespace)
	register()
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	return func(startTime time.Time) {
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(time.Since(startTime).Seconds())
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Execute the request handler
			err := next(c)

			duration := time.Since(start).Seconds()
			labels := prometheus.Labels{
				"endpoint": c.Path(),
				"method":   c.Request().Method,
				"status":   strconv.Itoa(c.Response().Status),
			}

			RequestDuration.With(labels).Observe(duration)
			HTTPRequestCounter.With(labels).Inc()

			return err
		}
	}
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordTicketOperation records a ticket operation
func RecordTicketOperation(operation string) {
	TicketOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordCategoryOperation records a category operation
func RecordCategoryOperation(operation string) {
	CategoryOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordNotificationDelivery records the outcome of one channel delivery
func RecordNotificationDelivery(channel, outcome string) {
	NotificationDeliveryCounter.With(prometheus.Labels{"channel": channel, "outcome": outcome}).Inc()
}

// RecordTokenCache records a token cache hit or miss
func RecordTokenCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	TokenCacheCounter.With(prometheus.Labels{"result": result}).Inc()
}

// RecordSLARun records one SLA monitor run
func RecordSLARun(outcome string, duration time.Duration) {
	SLARunCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
	if outcome != "skipped" {
		SLARunDuration.Observe(duration.Seconds())
	}
}

// RecordSLATransition records a ticket moving to a new SLA status
func RecordSLATransition(status string) {
	SLATransitionCounter.With(prometheus.Labels{"status": status}).Inc()
}

// UpdateSLATickets sets the active ticket count for an SLA status
func UpdateSLATickets(status string, count int) {
	SLATicketsGauge.With(prometheus.Labels{"status": status}).Set(float64(count))
}
