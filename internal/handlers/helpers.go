package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	logpkg "github.com/benvon/sage-coach/internal/logger"
	"github.com/benvon/sage-coach/internal/models"
	"github.com/benvon/sage-coach/internal/request"
	"github.com/benvon/sage-coach/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxErrorMessageLength = 200

// userIDField is the log field for the acting user
func userIDField(id uuid.UUID) zap.Field {
	return zap.String("user_id", logpkg.SanitizeUserID(id.String()))
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage bounds client-facing messages
func sanitizeErrorMessage(message string) string {
	runes := []rune(message)
	if len(runes) > maxErrorMessageLength {
		return string(runes[:maxErrorMessageLength]) + "..."
	}
	return message
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondValidationError reports the first rejected field
func respondValidationError(w http.ResponseWriter, field, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)

	response := map[string]any{
		"success":   false,
		"error":     "Bad Request",
		"field":     field,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// requireUser returns the authenticated user or writes a 401
func requireUser(w http.ResponseWriter, r *http.Request) *models.User {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
	}
	return user
}

// decodeAndValidate decodes a JSON body into dst and runs struct validation.
// It writes the error response itself and reports whether the handler may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", "Request body too large")
		case errors.Is(err, io.EOF):
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Request body is required")
		default:
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		}
		return false
	}

	if err := validation.Struct(dst); err != nil {
		var fieldErr *validation.FieldError
		if errors.As(err, &fieldErr) {
			respondValidationError(w, fieldErr.Field, fieldErr.Message())
			return false
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return false
	}
	return true
}

// pathID parses the {id} route variable
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("invalid id %q", raw))
		return uuid.Nil, false
	}
	return id, true
}
