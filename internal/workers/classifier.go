package workers

import (
	"context"
	"fmt"

	"github.com/benvon/sage-coach/internal/logger"
	"github.com/benvon/sage-coach/internal/queue"
	"github.com/benvon/sage-coach/internal/services/captures"
	"go.uber.org/zap"
)

// JobRunner runs one capture classification
type JobRunner interface {
	Run(ctx context.Context, job captures.Job) error
}

var _ JobRunner = (*captures.Runner)(nil)

// CaptureClassifier consumes capture_classification jobs
type CaptureClassifier struct {
	runner JobRunner
	logger *zap.Logger
}

// NewCaptureClassifier creates a new classification worker
func NewCaptureClassifier(runner JobRunner, l *zap.Logger) *CaptureClassifier {
	return &CaptureClassifier{runner: runner, logger: logger.OrNop(l)}
}

// ProcessJob runs the job and acknowledges the message whatever the outcome.
// Classification is never retried; only jobs that cannot be interpreted go to the dead letter queue.
func (c *CaptureClassifier) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()
	if job == nil {
		if nackErr := msg.Nack(false); nackErr != nil {
			c.logger.Warn("queue_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("message carries no job")
	}

	if err := job.Validate(); err != nil {
		if nackErr := msg.Nack(false); nackErr != nil {
			c.logger.Warn("queue_nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("invalid job %s: %w", job.ID, err)
	}

	if job.IsExpired() {
		c.logger.Info("classification_job_expired", zap.String("job_id", job.ID.String()))
		return c.ack(msg, job)
	}

	runErr := c.runner.Run(ctx, captures.JobFromQueue(job))
	if runErr != nil {
		c.logger.Warn("classification_job_failed",
			zap.String("job_id", job.ID.String()),
			zap.String("user_id", logger.SanitizeUserID(job.UserID.String())),
			zap.String("error", logger.SanitizeError(runErr)),
		)
	}
	return c.ack(msg, job)
}

func (c *CaptureClassifier) ack(msg queue.MessageInterface, job *queue.Job) error {
	if err := msg.Ack(); err != nil {
		return fmt.Errorf("failed to ack job %s: %w", job.ID, err)
	}
	return nil
}

// Consume processes messages until ctx is cancelled or the delivery channel closes
func (c *CaptureClassifier) Consume(ctx context.Context, msgs <-chan *queue.Message, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			c.logger.Error("queue_error", zap.Error(err))
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Info("queue_message_channel_closed")
				return
			}
			if err := c.ProcessJob(ctx, msg); err != nil {
				c.logger.Error("queue_job_processing_failed", zap.Error(err))
			}
		}
	}
}
