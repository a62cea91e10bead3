package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/benvon/sage-coach/internal/services/oidc"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// LoginProvider builds the front end's OIDC login parameters and completes the code exchange
type LoginProvider interface {
	GetLoginConfig(ctx context.Context, state string) (*oidc.LoginConfig, error)
	ExchangeCode(ctx context.Context, code string) (*oidc.TokenResponse, error)
}

// ExchangeCodeRequest carries the authorization code returned to the redirect URI
type ExchangeCodeRequest struct {
	Code string `json:"code" validate:"required,max=2048"`
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	provider LoginProvider
	logger   *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(provider LoginProvider, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{provider: provider, logger: logger}
}

// RegisterRoutes registers auth routes; r should carry the /auth prefix
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/oidc/login", h.GetOIDCLogin).Methods(http.MethodGet)
	r.HandleFunc("/oidc/callback", h.ExchangeCode).Methods(http.MethodPost)
}

// GetOIDCLogin returns the authorization endpoint configuration with a fresh state value
func (h *AuthHandler) GetOIDCLogin(w http.ResponseWriter, r *http.Request) {
	state, err := newState()
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to generate login state")
		return
	}

	loginConfig, err := h.provider.GetLoginConfig(r.Context(), state)
	if err != nil {
		h.logger.Error("oidc_login_config_failed", zap.Error(err))
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Login is not configured")
		return
	}

	respondJSON(w, http.StatusOK, loginConfig)
}

// ExchangeCode trades the authorization code for tokens
func (h *AuthHandler) ExchangeCode(w http.ResponseWriter, r *http.Request) {
	var req ExchangeCodeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	token, err := h.provider.ExchangeCode(r.Context(), req.Code)
	if err != nil {
		h.logger.Warn("oidc_code_exchange_failed", zap.Error(err))
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Authorization code exchange failed")
		return
	}

	respondJSON(w, http.StatusOK, token)
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
