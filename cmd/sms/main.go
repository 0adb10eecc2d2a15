package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"emochat/internal/config"
	"emochat/internal/consul"
	kafkapkg "emochat/internal/kafka"
	"emochat/internal/logger"
	"emochat/internal/metrics"
	"emochat/internal/sms"
)

func main() {
	lgr := logger.New("sms-service")
	logger.SetDefault(lgr)
	lgr.Info("Starting SMS Service...")

	if err := config.ValidateEnv([]string{"KAFKA_BROKERS"}); err != nil {
		lgr.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	port := config.GetEnvInt("SMS_SERVICE_PORT", 8087)
	host := config.GetEnvOrDefault("SMS_SERVICE_HOST", "localhost")
	redisAddr := config.GetEnvOrDefault("REDIS_ADDR", "localhost:6379")
	redisPassword := config.GetEnvOrDefault("REDIS_PASSWORD", "")
	redisDB := config.GetEnvInt("REDIS_DB", 0)

	kafkaCfg, err := kafkapkg.LoadConfig()
	if err != nil {
		lgr.Error("Failed to load Kafka config", "error", err)
		os.Exit(1)
	}

	lgr.Info("Configuration loaded",
		"port", port,
		"host", host,
		"redis", redisAddr,
		"kafka", kafkaCfg.Brokers,
		"topic", kafkaCfg.SMSEventsTopic)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})
	defer redisClient.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	err = redisClient.Ping(pingCtx).Err()
	cancelPing()
	if err != nil {
		lgr.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	lgr.Info("Connected to Redis")

	store := sms.NewIdempotencyStore(redisClient, lgr)

	smsCfg := sms.NewConfig()
	if smsCfg.Mode == sms.ModeKafka {
		// the consumer delivers directly; republishing would loop
		smsCfg.Mode = sms.ModeLog
	}
	sender, err := sms.NewSender(smsCfg, lgr)
	if err != nil {
		lgr.Error("Failed to create SMS sender", "error", err)
		os.Exit(1)
	}
	lgr.Info("SMS sender initialized", "mode", smsCfg.Mode)

	consumer, err := sms.NewConsumer(&sms.ConsumerConfig{
		Brokers:       kafkaCfg.Brokers,
		Topic:         kafkaCfg.SMSEventsTopic,
		DLQTopic:      kafkaCfg.SMSDLQTopic,
		ConsumerGroup: kafkaCfg.ConsumerGroup,
		MaxRetries:    config.GetEnvInt("SMS_MAX_RETRIES", 3),
		RetryBackoff:  config.GetEnvDuration("SMS_RETRY_BACKOFF", time.Second),
	}, sender, store, lgr)
	if err != nil {
		lgr.Error("Failed to create Kafka consumer", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Start(ctx); err != nil {
			lgr.Error("Consumer error", "error", err)
		}
	}()

	r := gin.Default()
	r.Use(metrics.GinMiddleware())

	handler := sms.NewHandler(redisClient, store, consumer)
	r.GET("/health", handler.HealthCheck)
	r.GET("/stats", handler.Stats)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	deregister := consul.AnnounceFromEnv(
		consul.NewServiceConfig("sms-service", host, port, "sms", "notifications", "kafka-consumer"),
		lgr,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		lgr.Info("HTTP server started", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lgr.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lgr.Info("Shutting down SMS Service...")
	deregister()

	cancel()
	<-consumerDone
	consumer.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lgr.Error("HTTP server forced to shutdown", "error", err)
	}

	lgr.Info("SMS Service stopped")
}
