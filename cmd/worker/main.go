package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/sage-coach/internal/config"
	"github.com/benvon/sage-coach/internal/database"
	"github.com/benvon/sage-coach/internal/documents"
	"github.com/benvon/sage-coach/internal/logger"
	"github.com/benvon/sage-coach/internal/queue"
	"github.com/benvon/sage-coach/internal/services/ai"
	"github.com/benvon/sage-coach/internal/services/captures"
	"github.com/benvon/sage-coach/internal/telemetry"
	"github.com/benvon/sage-coach/internal/workers"
	"go.uber.org/zap"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging, including LLM request previews")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.RabbitMQURL == "" {
		log.Fatalf("RABBITMQ_URL is required for the worker")
	}
	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(telemetry.ServiceWorker, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("ai_model", cfg.AIModel),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	tracerProvider := telemetry.Setup(context.Background(), telemetry.ServiceWorker, cfg.OTELEnabled, cfg.OTELEndpoint, zapLogger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(ctx, tracerProvider); err != nil {
			zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
		}
	}()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()

	// The worker must see the same document root as the API
	docStore, err := documents.NewFileStore(cfg.DocumentRoot)
	if err != nil {
		zapLogger.Fatal("failed_to_open_document_store", zap.Error(err))
	}

	classifier, err := ai.NewClassifier(cfg.OpenAIKey, cfg.AIBaseURL, cfg.AIModel, zapLogger, debugMode)
	if err != nil {
		zapLogger.Fatal("failed_to_create_classifier", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobQueue, err := queue.ConnectWithRetry(ctx, cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	runner := captures.NewRunner(classifier, docStore, database.NewCaptureRepository(db), zapLogger)
	consumer := workers.NewCaptureClassifier(runner, zapLogger)

	msgs, errs, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming", zap.Error(fmt.Errorf("consume %s: %w", queue.DefaultQueueName, err)))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		consumer.Consume(ctx, msgs, errs)
	}()
	zapLogger.Info("worker_started", zap.String("queue", queue.DefaultQueueName))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		zapLogger.Info("worker_shutting_down")
	case <-done:
		zapLogger.Warn("worker_consumer_stopped")
	}
	cancel()
	<-done

	zapLogger.Info("worker_stopped")
}
