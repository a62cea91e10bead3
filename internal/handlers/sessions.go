package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/benvon/sage-coach/internal/models"
	"github.com/benvon/sage-coach/internal/services/sessions"
	"github.com/benvon/sage-coach/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// SessionLifecycle is the session service as seen by the HTTP layer
type SessionLifecycle interface {
	Start(ctx context.Context, userID uuid.UUID, sessionType models.SessionType) (*models.Session, error)
	AddMessage(ctx context.Context, userID, sessionID uuid.UUID, role models.MessageRole, content string) (*models.Message, error)
	MarkDomainExplored(ctx context.Context, userID, sessionID uuid.UUID, domain models.LifeDomain) (*models.Session, error)
	Complete(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error)
	Abandon(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error)
}

// SessionHandler handles session lifecycle requests
type SessionHandler struct {
	sessions SessionLifecycle
	logger   *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(svc SessionLifecycle, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: svc, logger: logger}
}

// RegisterRoutes registers session routes; r should carry the /sessions prefix
func (h *SessionHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.StartSession).Methods(http.MethodPost)
	r.HandleFunc("/{id}/messages", h.AddMessage).Methods(http.MethodPost)
	r.HandleFunc("/{id}/domains", h.MarkDomain).Methods(http.MethodPost)
	r.HandleFunc("/{id}/complete", h.CompleteSession).Methods(http.MethodPost)
	r.HandleFunc("/{id}/abandon", h.AbandonSession).Methods(http.MethodPost)
}

// StartSessionRequest is the body of POST /sessions
type StartSessionRequest struct {
	SessionType models.SessionType `json:"session_type" validate:"required,session_type"`
}

// AddMessageRequest is the body of POST /sessions/{id}/messages
type AddMessageRequest struct {
	Role    models.MessageRole `json:"role" validate:"required,message_role"`
	Content string             `json:"content" validate:"required,max=20000"`
}

// MarkDomainRequest is the body of POST /sessions/{id}/domains
type MarkDomainRequest struct {
	Domain models.LifeDomain `json:"domain" validate:"required,life_domain"`
}

// StartSession opens a new active session
func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	var req StartSessionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session, err := h.sessions.Start(r.Context(), user.ID, req.SessionType)
	if err != nil {
		h.respondServiceError(w, user.ID, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

// AddMessage appends a message to the session
func (h *SessionHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	sessionID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req AddMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	content := validation.SanitizeText(req.Content)
	if content == "" {
		respondValidationError(w, "content", "content is required")
		return
	}

	msg, err := h.sessions.AddMessage(r.Context(), user.ID, sessionID, req.Role, content)
	if err != nil {
		h.respondServiceError(w, user.ID, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

// MarkDomain records a life domain as explored in the session
func (h *SessionHandler) MarkDomain(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	sessionID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req MarkDomainRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session, err := h.sessions.MarkDomainExplored(r.Context(), user.ID, sessionID, req.Domain)
	if err != nil {
		h.respondServiceError(w, user.ID, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// CompleteSession marks the session completed
func (h *SessionHandler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	h.endSession(w, r, h.sessions.Complete)
}

// AbandonSession marks the session abandoned
func (h *SessionHandler) AbandonSession(w http.ResponseWriter, r *http.Request) {
	h.endSession(w, r, h.sessions.Abandon)
}

func (h *SessionHandler) endSession(w http.ResponseWriter, r *http.Request, end func(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error)) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	sessionID, ok := pathID(w, r)
	if !ok {
		return
	}

	session, err := end(r.Context(), user.ID, sessionID)
	if err != nil {
		h.respondServiceError(w, user.ID, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) respondServiceError(w http.ResponseWriter, userID uuid.UUID, err error) {
	switch {
	case errors.Is(err, sessions.ErrNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Session not found")
	case errors.Is(err, sessions.ErrNotActive):
		respondJSONError(w, http.StatusConflict, "Conflict", "Session is not active")
	default:
		h.logger.Error("session_operation_failed",
			userIDField(userID),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update session")
	}
}
