package handlers

import (
	"context"
	"net/http"

	"github.com/benvon/sage-coach/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// StateDetector decides which conversation mode a user should be greeted with
type StateDetector interface {
	DetectState(ctx context.Context, userID uuid.UUID) (*models.SessionStateResult, error)
}

// StateHandler serves the session state endpoint
type StateHandler struct {
	detector StateDetector
	logger   *zap.Logger
}

// NewStateHandler creates a new state handler
func NewStateHandler(detector StateDetector, logger *zap.Logger) *StateHandler {
	return &StateHandler{detector: detector, logger: logger}
}

// RegisterRoutes registers state routes; r should carry the /session prefix
func (h *StateHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/state", h.GetState).Methods(http.MethodGet)
}

// GetState returns the detected session state for the caller
func (h *StateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	result, err := h.detector.DetectState(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("session_state_detection_failed",
			userIDField(user.ID),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to detect session state")
		return
	}

	respondJSON(w, http.StatusOK, result)
}
