package sms

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// StatsProvider reports consumer counters
type StatsProvider interface {
	Stats() Stats
}

// Handler serves the SMS service health and monitoring endpoints
type Handler struct {
	redis *redis.Client
	store *IdempotencyStore
	stats StatsProvider
}

// NewHandler creates a new SMS service handler
func NewHandler(redisClient *redis.Client, store *IdempotencyStore, stats StatsProvider) *Handler {
	return &Handler{
		redis: redisClient,
		store: store,
		stats: stats,
	}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	redisStatus := "connected"
	if err := h.redis.Ping(c.Request.Context()).Err(); err != nil {
		redisStatus = "disconnected"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if redisStatus != "connected" {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"service":   "sms-service",
		"redis":     redisStatus,
		"timestamp": time.Now().UTC(),
	})
}

// Stats handles GET /stats
func (h *Handler) Stats(c *gin.Context) {
	records, err := h.store.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve stats",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"idempotency_records": records,
		"ttl_hours":           h.store.TTL().Hours(),
		"consumer":            h.stats.Stats(),
	})
}
