package captures

import (
	"context"
	"fmt"
	"sync"

	"github.com/benvon/sage-coach/internal/logger"
	"github.com/benvon/sage-coach/internal/queue"
	"go.uber.org/zap"
)

// InlineDispatcher runs classification on a goroutine inside the API process
type InlineDispatcher struct {
	runner *Runner
	logger *zap.Logger
	wg     sync.WaitGroup
}

var (
	_ Dispatcher = (*InlineDispatcher)(nil)
	_ Dispatcher = (*QueueDispatcher)(nil)
)

// NewInlineDispatcher creates an in-process dispatcher
func NewInlineDispatcher(runner *Runner, l *zap.Logger) *InlineDispatcher {
	return &InlineDispatcher{runner: runner, logger: logger.OrNop(l)}
}

// Dispatch starts classification detached from the request's cancellation
func (d *InlineDispatcher) Dispatch(ctx context.Context, job Job) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				d.logger.Error("capture_classification_panic",
					zap.String("document_key", job.DocumentKey),
					zap.String("panic", fmt.Sprint(rec)),
				)
			}
		}()
		_ = d.runner.Run(ctx, job)
	}()
}

// Wait blocks until every dispatched classification has finished
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}

// QueueDispatcher publishes classification jobs for the worker binary
type QueueDispatcher struct {
	publisher queue.Publisher
	logger    *zap.Logger
}

// NewQueueDispatcher creates a dispatcher backed by the job queue
func NewQueueDispatcher(publisher queue.Publisher, l *zap.Logger) *QueueDispatcher {
	return &QueueDispatcher{publisher: publisher, logger: logger.OrNop(l)}
}

// Dispatch publishes the job. A publish failure is logged and dropped.
func (d *QueueDispatcher) Dispatch(ctx context.Context, job Job) {
	qj := queue.NewCaptureClassificationJob(job.UserID, job.CaptureID, job.DocumentKey, job.Text)
	if err := d.publisher.Enqueue(context.WithoutCancel(ctx), qj); err != nil {
		d.logger.Warn("capture_classification_enqueue_failed",
			zap.String("user_id", logger.SanitizeUserID(job.UserID.String())),
			zap.String("document_key", job.DocumentKey),
			zap.String("error", logger.SanitizeError(err)),
		)
		return
	}
	d.logger.Debug("capture_classification_enqueued",
		zap.String("job_id", qj.ID.String()),
		zap.String("document_key", job.DocumentKey),
	)
}

// JobFromQueue converts a consumed queue job into runner input
func JobFromQueue(j *queue.Job) Job {
	return Job{
		UserID:      j.UserID,
		CaptureID:   j.CaptureID,
		DocumentKey: j.DocumentKey,
		Text:        j.Text,
	}
}
