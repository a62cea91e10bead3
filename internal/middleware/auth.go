package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/benvon/sage-coach/internal/database"
	logpkg "github.com/benvon/sage-coach/internal/logger"
	"github.com/benvon/sage-coach/internal/models"
	"github.com/benvon/sage-coach/internal/request"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenVerifier validates a bearer token and returns its claims
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.JWTClaims, error)
}

// UserFromContext extracts the authenticated user from the request context
func UserFromContext(r *http.Request) *models.User {
	return request.UserFromContext(r)
}

// Auth validates the bearer JWT and attaches the matching user, creating it on first sight
func Auth(verifier TokenVerifier, users database.UserRepositoryInterface, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Missing Authorization header", logger)
				return
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || scheme != "Bearer" || tokenString == "" {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid Authorization header format", logger)
				return
			}

			ctx := r.Context()
			claims, err := verifier.Verify(ctx, tokenString)
			if err != nil {
				logger.Info("token_verification_failed",
					zap.String("error", logpkg.SanitizeError(err)),
				)
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token", logger)
				return
			}

			user, err := resolveUser(ctx, users, claims, logger)
			if err != nil {
				logger.Error("auth_user_lookup_failed",
					zap.Error(err),
				)
				respondErrorJSON(w, r, http.StatusInternalServerError, "Internal Server Error", "Failed to load user", logger)
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithUser(ctx, user)))
		})
	}
}

func resolveUser(ctx context.Context, users database.UserRepositoryInterface, claims *models.JWTClaims, logger *zap.Logger) (*models.User, error) {
	user, err := users.GetByProviderID(ctx, claims.Sub)
	if errors.Is(err, sql.ErrNoRows) {
		sub := claims.Sub
		user = &models.User{
			ID:         uuid.New(),
			Email:      claims.Email,
			ProviderID: &sub,
			Timezone:   models.DefaultTimezone,
		}
		if claims.Name != "" {
			name := claims.Name
			user.Name = &name
		}
		if err := users.Create(ctx, user); err != nil {
			return nil, err
		}
		logger.Info("user_created",
			zap.String("user_id", logpkg.SanitizeUserID(user.ID.String())),
		)
		return user, nil
	}
	if err != nil {
		return nil, err
	}

	changed := false
	if claims.Email != "" && user.Email != claims.Email {
		user.Email = claims.Email
		changed = true
	}
	if claims.Name != "" && (user.Name == nil || *user.Name != claims.Name) {
		name := claims.Name
		user.Name = &name
		changed = true
	}
	if changed {
		if err := users.UpdateProfile(ctx, user); err != nil {
			// Stale profile fields are not worth failing the request over
			logger.Warn("user_profile_sync_failed",
				zap.String("user_id", logpkg.SanitizeUserID(user.ID.String())),
				zap.Error(err),
			)
		}
	}
	return user, nil
}
