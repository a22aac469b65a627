// Package metrics exposes Prometheus instrumentation for the HTTP surface
// and the referral workflow. Collectors register on the default registry;
// Handler serves them on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	referralsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referrals_created_total",
			Help: "Total number of referrals filed",
		},
		[]string{"urgency"},
	)

	referralStatusChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_status_changes_total",
			Help: "Total number of referral status transitions",
		},
		[]string{"from_status", "to_status"},
	)

	patientsRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "patients_registered_total",
			Help: "Total number of patients registered",
		},
	)

	publicLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "public_referral_lookups_total",
			Help: "Total number of public referral gateway lookups",
		},
		[]string{"result"},
	)

	identifierRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identifier_collisions_total",
			Help: "Total number of business identifier collisions that forced a regeneration",
		},
		[]string{"prefix"},
	)

	webhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts",
		},
		[]string{"event", "outcome"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts, latency, and in-flight gauge for
// every request. The route template (c.Path) keys the series rather than
// the raw URL, which keeps identifier segments out of the label set.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}

			httpRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// RegisterPoolStats exposes connection pool gauges backed by pool.Stat().
// Call once at startup.
func RegisterPoolStats(pool *pgxpool.Pool) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "db_connections_total",
		Help: "Total connections currently in the pool",
	}, func() float64 {
		return float64(pool.Stat().TotalConns())
	})
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "db_connections_acquired",
		Help: "Connections currently checked out of the pool",
	}, func() float64 {
		return float64(pool.Stat().AcquiredConns())
	})
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "db_connections_idle",
		Help: "Idle connections currently in the pool",
	}, func() float64 {
		return float64(pool.Stat().IdleConns())
	})
}

// --- Business metric helpers ---

// RecordReferralCreated records a filed referral.
func RecordReferralCreated(urgency string) {
	referralsCreated.WithLabelValues(urgency).Inc()
}

// RecordReferralStatusChange records a status transition.
func RecordReferralStatusChange(from, to string) {
	referralStatusChanged.WithLabelValues(from, to).Inc()
}

// RecordPatientRegistered records a patient registration.
func RecordPatientRegistered() {
	patientsRegistered.Inc()
}

// RecordPublicLookup records a public gateway lookup and whether it matched.
func RecordPublicLookup(found bool) {
	result := "miss"
	if found {
		result = "hit"
	}
	publicLookups.WithLabelValues(result).Inc()
}

// RecordIdentifierCollision records a generated identifier that lost the
// uniqueness race and forced a retry.
func RecordIdentifierCollision(prefix string) {
	identifierRetries.WithLabelValues(prefix).Inc()
}

// RecordWebhookDelivery records one delivery attempt.
func RecordWebhookDelivery(event string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	webhookDeliveries.WithLabelValues(event, outcome).Inc()
}
