// Package server exposes registration sessions over HTTP.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"emochat/internal/config"
	"emochat/internal/database"
	"emochat/internal/session"
)

// Server holds the dependencies for the HTTP server
type Server struct {
	port int

	db       database.Service
	sessions session.Manager
	logger   *slog.Logger

	allowedOrigins []string
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

// LoadConfigFromEnv loads server configuration from environment variables
func LoadConfigFromEnv() *Config {
	return &Config{
		Host:           config.GetEnvOrDefault("REGISTER_SERVICE_HOST", "localhost"),
		Port:           config.GetEnvInt("REGISTER_SERVICE_PORT", 8086),
		ReadTimeout:    config.GetEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   config.GetEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:    config.GetEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		AllowedOrigins: splitList(config.GetEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// New creates the application server
func New(cfg *Config, db database.Service, sessions session.Manager, logger *slog.Logger) *Server {
	return &Server{
		port:           cfg.Port,
		db:             db,
		sessions:       sessions,
		logger:         logger,
		allowedOrigins: cfg.AllowedOrigins,
	}
}

// NewHTTPServer configures the HTTP server around the application routes
func NewHTTPServer(cfg *Config, app *Server) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.RegisterRoutes(),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}
