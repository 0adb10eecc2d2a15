package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"emochat/internal/consul"
	"emochat/internal/database"
	kafkapkg "emochat/internal/kafka"
	"emochat/internal/logger"
	"emochat/internal/server"
	"emochat/internal/session"
	"emochat/internal/sms"
	"emochat/internal/users"
)

func main() {
	lgr := logger.New("register-service")
	logger.SetDefault(lgr)
	lgr.Info("Starting Register Service...")

	cfg := server.LoadConfigFromEnv()
	sessionCfg := session.LoadConfigFromEnv()
	lgr.Info("Configuration loaded",
		"port", cfg.Port,
		"host", cfg.Host,
		"idle_ttl", sessionCfg.IdleTTL,
		"tick_interval", sessionCfg.TickInterval)

	db := database.New()
	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		cancelMigrate()
		lgr.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}
	cancelMigrate()
	lgr.Info("Connected to database")

	sender, closeSender := newSMSSender(lgr)
	defer closeSender()

	repo := users.NewRepository(db)
	sessions := session.NewManager(session.Dependencies{
		Directory: repo,
		Accounts:  users.NewAccountService(db),
		Sender:    sender,
		Profiles:  repo,
		Logger:    lgr,
	}, sessionCfg)

	app := server.New(cfg, db, sessions, lgr)
	srv := server.NewHTTPServer(cfg, app)

	deregister := consul.AnnounceFromEnv(
		consul.NewServiceConfig("register-service", cfg.Host, cfg.Port, "registration", "sms-verification"),
		lgr,
	)

	go func() {
		lgr.Info("HTTP server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lgr.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lgr.Info("Shutting down Register Service...")
	deregister()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		lgr.Error("HTTP server forced to shutdown", "error", err)
	}

	// after the listener so no request reaches a closed session
	sessions.Shutdown()

	if err := db.Close(); err != nil {
		lgr.Error("Failed to close database", "error", err)
	}

	lgr.Info("Register Service stopped")
}

// newSMSSender builds the sender selected by SMS_MODE. Kafka mode falls back
// to logging when the producer cannot be created.
func newSMSSender(lgr *slog.Logger) (sms.Sender, func()) {
	smsCfg := sms.NewConfig()

	if smsCfg.Mode == sms.ModeKafka {
		kafkaCfg, err := kafkapkg.LoadConfig()
		if err == nil {
			producer, perr := kafkapkg.NewProducer(kafkaCfg, lgr)
			if perr == nil {
				lgr.Info("SMS delivery through Kafka", "brokers", kafkaCfg.Brokers, "topic", kafkaCfg.SMSEventsTopic)
				return sms.NewKafkaSender(producer, kafkaCfg.SMSEventsTopic, lgr), producer.Close
			}
			err = perr
		}
		lgr.Error("Failed to set up Kafka, logging SMS instead", "error", err)
		smsCfg.Mode = sms.ModeLog
	}

	sender, err := sms.NewSender(smsCfg, lgr)
	if err != nil {
		lgr.Error("Failed to create SMS sender", "error", err)
		os.Exit(1)
	}
	lgr.Info("SMS sender initialized", "mode", smsCfg.Mode)
	return sender, func() {}
}
