package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestConnectWithRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		failures  int
		attempts  int
		wantErr   bool
		wantCalls int
	}{
		{name: "first try", failures: 0, attempts: 3, wantCalls: 1},
		{name: "succeeds after retries", failures: 2, attempts: 3, wantCalls: 3},
		{name: "gives up", failures: 5, attempts: 3, wantErr: true, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			dial := func(string, *zap.Logger) (*RabbitMQQueue, error) {
				calls++
				if calls <= tt.failures {
					return nil, errors.New("connection refused")
				}
				return &RabbitMQQueue{}, nil
			}

			q, err := connectWithRetry(context.Background(), "amqp://test", zap.NewNop(), dial, tt.attempts, time.Millisecond)
			if (err != nil) != tt.wantErr {
				t.Fatalf("connectWithRetry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && q == nil {
				t.Error("Expected a queue")
			}
			if calls != tt.wantCalls {
				t.Errorf("Expected %d dial attempts, got %d", tt.wantCalls, calls)
			}
		})
	}
}

func TestConnectWithRetry_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dial := func(string, *zap.Logger) (*RabbitMQQueue, error) {
		return nil, errors.New("connection refused")
	}
	if _, err := connectWithRetry(ctx, "amqp://test", zap.NewNop(), dial, 5, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
