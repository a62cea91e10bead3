// Package captures writes quick captures to the document store, mirrors them into Postgres
// and hands them off for classification.
package captures

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/sage-coach/internal/documents"
	"github.com/benvon/sage-coach/internal/logger"
	"github.com/benvon/sage-coach/internal/models"
	"github.com/benvon/sage-coach/internal/validation"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// MaxCaptureLength is the longest accepted capture, in characters
const MaxCaptureLength = 2000

// mirrorCapturesTable names the relational mirror in MirrorOutcome
const mirrorCapturesTable = "captures_table"

// ValidationError names the input field that was rejected
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// MirrorOutcome records the result of one best-effort mirror write
type MirrorOutcome struct {
	Name string
	Err  error
}

// OK reports whether the mirror write succeeded
func (o MirrorOutcome) OK() bool {
	return o.Err == nil
}

// UserReader resolves the user's timezone
type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// CaptureWriter creates the relational mirror row
type CaptureWriter interface {
	Create(ctx context.Context, capture *models.Capture) error
}

// Job is the unit of classification work handed to a Dispatcher
type Job struct {
	UserID      uuid.UUID
	CaptureID   *uuid.UUID
	DocumentKey string
	Text        string
}

// Dispatcher starts classification without blocking the caller and without reporting back
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job)
}

// Service implements capture submission
type Service struct {
	users      UserReader
	docs       documents.Store
	captures   CaptureWriter
	dispatcher Dispatcher
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger.OrNop(l)
	}
}

// NewService creates a capture service
func NewService(users UserReader, docs documents.Store, captures CaptureWriter, dispatcher Dispatcher, opts ...Option) *Service {
	s := &Service{
		users:      users,
		docs:       docs,
		captures:   captures,
		dispatcher: dispatcher,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type submitInput struct {
	Text      string `json:"text" validate:"required,min=1,max=2000"`
	InputMode string `json:"input_mode" validate:"required,input_mode"`
}

// Submit writes a capture. The document write is authoritative and its failure fails the call;
// the relational mirror is best-effort and leaves CaptureID nil when it fails.
// Two submits within the same second share a document key and the later one replaces the earlier document.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, text string, inputMode models.InputMode) (*models.CaptureSubmission, error) {
	ctx, span := otel.Tracer("sage-coach/captures").Start(ctx, "SubmitCapture")
	defer span.End()

	input := submitInput{Text: validation.SanitizeText(text), InputMode: string(inputMode)}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := s.now()
	loc := s.location(ctx, userID)
	local := now.In(loc)
	key := documents.CaptureKey(local)

	doc := &documents.Document{
		Key: key,
		Header: documents.Header{
			Type:      documents.DocumentTypeCapture,
			Date:      local.Format(time.DateOnly),
			InputMode: input.InputMode,
			Timestamp: now.UTC().Format(time.RFC3339),
		},
		Body: input.Text,
	}
	if err := s.docs.Write(ctx, userID, doc); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to write capture document: %w", err)
	}

	result := &models.CaptureSubmission{DocumentKey: key}

	outcome, captureID := s.mirror(ctx, userID, input, key)
	if outcome.OK() {
		result.CaptureID = captureID
	} else {
		s.logger.Warn("capture_mirror_write_failed",
			zap.String("mirror", outcome.Name),
			zap.String("user_id", logger.SanitizeUserID(userID.String())),
			zap.String("document_key", key),
			zap.String("error", logger.SanitizeError(outcome.Err)),
		)
	}
	span.SetAttributes(
		attribute.String("document_key", key),
		attribute.Bool("mirror_ok", outcome.OK()),
	)

	s.dispatcher.Dispatch(ctx, Job{
		UserID:      userID,
		CaptureID:   result.CaptureID,
		DocumentKey: key,
		Text:        input.Text,
	})

	s.logger.Info("capture_submitted",
		zap.String("user_id", logger.SanitizeUserID(userID.String())),
		zap.String("document_key", key),
		zap.String("input_mode", input.InputMode),
		zap.Bool("mirrored", result.CaptureID != nil),
	)
	return result, nil
}

func (s *Service) mirror(ctx context.Context, userID uuid.UUID, input submitInput, key string) (MirrorOutcome, *uuid.UUID) {
	capture := &models.Capture{
		ID:          uuid.New(),
		UserID:      userID,
		Content:     input.Text,
		Source:      models.CaptureSourceManual,
		InputMode:   models.InputMode(input.InputMode),
		DocumentKey: key,
	}
	if err := s.captures.Create(ctx, capture); err != nil {
		return MirrorOutcome{Name: mirrorCapturesTable, Err: err}, nil
	}
	id := capture.ID
	return MirrorOutcome{Name: mirrorCapturesTable}, &id
}

// location resolves the user's timezone; any failure falls back to UTC
func (s *Service) location(ctx context.Context, userID uuid.UUID) *time.Location {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Warn("capture_timezone_lookup_failed",
			zap.String("user_id", logger.SanitizeUserID(userID.String())),
			zap.Error(err),
		)
		return time.UTC
	}
	return user.Location()
}

func validateInput(input submitInput) error {
	err := validation.Struct(input)
	if err == nil {
		return nil
	}
	var fe *validation.FieldError
	if errors.As(err, &fe) {
		return &ValidationError{Field: fe.Field, Message: fe.Message()}
	}
	return &ValidationError{Message: err.Error()}
}
