package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// TimezoneSetter persists the user's timezone
type TimezoneSetter interface {
	SetTimezone(ctx context.Context, id uuid.UUID, timezone string) error
}

// ProfileHandler serves the caller's own profile
type ProfileHandler struct {
	users  TimezoneSetter
	logger *zap.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(users TimezoneSetter, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{users: users, logger: logger}
}

// RegisterRoutes registers profile routes; r should carry the /me prefix
func (h *ProfileHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.GetMe).Methods(http.MethodGet)
	r.HandleFunc("/timezone", h.SetTimezone).Methods(http.MethodPut)
}

// SetTimezoneRequest is the body of PUT /me/timezone
type SetTimezoneRequest struct {
	Timezone string `json:"timezone" validate:"required,iana_timezone"`
}

// GetMe returns current user information
func (h *ProfileHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// SetTimezone updates the IANA timezone used for capture dates
func (h *ProfileHandler) SetTimezone(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	var req SetTimezoneRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.users.SetTimezone(r.Context(), user.ID, req.Timezone); err != nil {
		h.logger.Error("timezone_update_failed",
			userIDField(user.ID),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update timezone")
		return
	}

	updated := *user
	updated.Timezone = req.Timezone
	respondJSON(w, http.StatusOK, &updated)
}
