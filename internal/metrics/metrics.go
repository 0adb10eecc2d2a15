// Package metrics exposes Prometheus collectors for the registration and SMS services.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "emochat_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	registrationEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emochat_registration_events_total",
			Help: "One-shot registration events delivered to clients, by type",
		},
		[]string{"type"},
	)
	liveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "emochat_registration_sessions",
			Help: "Registration sessions currently open",
		},
	)
	smsDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emochat_sms_deliveries_total",
			Help: "SMS events handled by the consumer, by outcome",
		},
		[]string{"outcome"},
	)
)

// GinMiddleware records request duration per matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// RecordRegistrationEvent counts an event delivered to a client.
func RecordRegistrationEvent(eventType string) {
	registrationEvents.WithLabelValues(eventType).Inc()
}

// SetLiveSessions reports the number of open registration sessions.
func SetLiveSessions(n int) {
	liveSessions.Set(float64(n))
}

// RecordSMSDelivery counts a consumer outcome (sent, duplicate, invalid, dead_letter).
func RecordSMSDelivery(outcome string) {
	smsDeliveries.WithLabelValues(outcome).Inc()
}
