package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	defaultConnectAttempts = 10
	initialConnectDelay    = 2 * time.Second
	maxConnectDelay        = 30 * time.Second
)

// dialFunc opens a queue connection; swapped in tests
type dialFunc func(url string, logger *zap.Logger) (*RabbitMQQueue, error)

// ConnectWithRetry dials RabbitMQ with exponential backoff, which covers the broker starting after the app
func ConnectWithRetry(ctx context.Context, url string, logger *zap.Logger) (*RabbitMQQueue, error) {
	return connectWithRetry(ctx, url, logger, NewRabbitMQQueue, defaultConnectAttempts, initialConnectDelay)
}

func connectWithRetry(ctx context.Context, url string, logger *zap.Logger, dial dialFunc, attempts int, delay time.Duration) (*RabbitMQQueue, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		q, err := dial(url, logger)
		if err == nil {
			logger.Info("connected_to_rabbitmq", zap.Int("attempt", attempt))
			return q, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		logger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", attempts),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, maxConnectDelay)
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, lastErr)
}
