package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/benvon/sage-coach/internal/documents"
	"github.com/benvon/sage-coach/internal/models"
	"github.com/benvon/sage-coach/internal/services/captures"
	"github.com/benvon/sage-coach/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CaptureSubmitter performs the dual-write capture submission
type CaptureSubmitter interface {
	Submit(ctx context.Context, userID uuid.UUID, text string, inputMode models.InputMode) (*models.CaptureSubmission, error)
}

// DocumentReader lists and reads a user's documents
type DocumentReader interface {
	Read(ctx context.Context, userID uuid.UUID, key string) (*documents.Document, error)
	List(ctx context.Context, userID uuid.UUID, prefix string) ([]string, error)
}

// CaptureHandler handles capture requests
type CaptureHandler struct {
	submitter CaptureSubmitter
	docs      DocumentReader
	now       func() time.Time
	logger    *zap.Logger
}

// NewCaptureHandler creates a new capture handler
func NewCaptureHandler(submitter CaptureSubmitter, docs DocumentReader, logger *zap.Logger) *CaptureHandler {
	return &CaptureHandler{submitter: submitter, docs: docs, now: time.Now, logger: logger}
}

// RegisterRoutes registers capture routes; r should carry the /captures prefix
func (h *CaptureHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.CreateCapture).Methods(http.MethodPost)
	r.HandleFunc("", h.ListCaptures).Methods(http.MethodGet)
}

// CreateCaptureRequest is the body of POST /captures. Length rules are enforced by the capture service.
type CreateCaptureRequest struct {
	Text      string           `json:"text" validate:"required"`
	InputMode models.InputMode `json:"input_mode" validate:"required,input_mode"`
}

// CreateCapture submits a capture and returns its document key and mirror id
func (h *CaptureHandler) CreateCapture(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req CreateCaptureRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.submitter.Submit(r.Context(), user.ID, req.Text, req.InputMode)
	if err != nil {
		var verr *captures.ValidationError
		if errors.As(err, &verr) {
			respondValidationError(w, verr.Field, verr.Message)
			return
		}
		h.logger.Error("capture_submit_failed",
			userIDField(user.ID),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to save capture")
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

type listCapturesQuery struct {
	Date string `json:"date" validate:"datetime=2006-01-02"`
}

// ListCaptures returns the capture documents for one local date, defaulting to today in the user's timezone
func (h *CaptureHandler) ListCaptures(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	query := listCapturesQuery{Date: r.URL.Query().Get("date")}
	if query.Date == "" {
		query.Date = h.now().In(user.Location()).Format(time.DateOnly)
	}
	if err := validation.Struct(query); err != nil {
		var fieldErr *validation.FieldError
		if errors.As(err, &fieldErr) {
			respondValidationError(w, fieldErr.Field, fieldErr.Message())
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	ctx := r.Context()
	keys, err := h.docs.List(ctx, user.ID, documents.CapturePrefix(query.Date))
	if err != nil {
		h.logger.Error("capture_list_failed",
			userIDField(user.ID),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to list captures")
		return
	}

	docs := make([]*documents.Document, 0, len(keys))
	for _, key := range keys {
		doc, err := h.docs.Read(ctx, user.ID, key)
		if errors.Is(err, documents.ErrNotFound) {
			continue
		}
		if err != nil {
			h.logger.Error("capture_read_failed",
				userIDField(user.ID),
				zap.String("document_key", key),
				zap.Error(err),
			)
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to read captures")
			return
		}
		docs = append(docs, doc)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"date":     query.Date,
		"captures": docs,
	})
}
