package captures

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/sage-coach/internal/documents"
	"github.com/benvon/sage-coach/internal/logger"
	"github.com/benvon/sage-coach/internal/models"
	"github.com/benvon/sage-coach/internal/services/ai"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClassificationWriter stores the classifier result on the relational mirror
type ClassificationWriter interface {
	UpdateClassification(ctx context.Context, id uuid.UUID, classification models.CaptureClassification, tags []string) error
}

// Runner classifies one capture and writes the result to whichever representations exist
type Runner struct {
	classifier ai.Classifier
	docs       documents.Store
	captures   ClassificationWriter
	logger     *zap.Logger
}

// NewRunner creates a classification runner
func NewRunner(classifier ai.Classifier, docs documents.Store, captures ClassificationWriter, l *zap.Logger) *Runner {
	return &Runner{
		classifier: classifier,
		docs:       docs,
		captures:   captures,
		logger:     logger.OrNop(l),
	}
}

// Run classifies job.Text. Failures are logged and returned for the caller to discard; nothing is retried.
func (r *Runner) Run(ctx context.Context, job Job) error {
	ctx = context.WithValue(ctx, ai.UserIDContextKey(), job.UserID)
	if job.CaptureID != nil {
		ctx = context.WithValue(ctx, ai.CaptureIDContextKey(), *job.CaptureID)
	}

	classification, tags, err := r.classifier.Classify(ctx, job.Text)
	if err != nil {
		r.logger.Warn("capture_classification_failed",
			zap.String("user_id", logger.SanitizeUserID(job.UserID.String())),
			zap.String("document_key", job.DocumentKey),
			zap.String("error", logger.SanitizeError(err)),
		)
		return fmt.Errorf("failed to classify capture: %w", err)
	}
	if !classification.IsValid() {
		classification, tags = models.ClassificationThought, nil
	}
	if tags == nil {
		tags = []string{}
	}

	var errs []error
	err = r.docs.UpdateHeader(ctx, job.UserID, job.DocumentKey, func(h *documents.Header) {
		h.Classification = string(classification)
		h.Tags = tags
	})
	if err != nil {
		r.logger.Warn("capture_document_classification_failed",
			zap.String("user_id", logger.SanitizeUserID(job.UserID.String())),
			zap.String("document_key", job.DocumentKey),
			zap.String("error", logger.SanitizeError(err)),
		)
		errs = append(errs, fmt.Errorf("failed to update capture document: %w", err))
	}

	if job.CaptureID != nil {
		if err := r.captures.UpdateClassification(ctx, *job.CaptureID, classification, tags); err != nil {
			r.logger.Warn("capture_row_classification_failed",
				zap.String("capture_id", job.CaptureID.String()),
				zap.String("error", logger.SanitizeError(err)),
			)
			errs = append(errs, fmt.Errorf("failed to update capture row: %w", err))
		}
	}

	if len(errs) == 0 {
		r.logger.Info("capture_classified",
			zap.String("document_key", job.DocumentKey),
			zap.String("classification", string(classification)),
			zap.Int("tag_count", len(tags)),
		)
	}
	return errors.Join(errs...)
}
