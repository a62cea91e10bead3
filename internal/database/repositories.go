package database

import (
	"context"
	"time"

	"github.com/benvon/sage-coach/internal/models"
	"github.com/google/uuid"
)

// UserRepositoryInterface defines the user operations consumed by services and middleware.
// This interface enables better testability by allowing mock implementations
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByProviderID(ctx context.Context, providerID string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	SetTimezone(ctx context.Context, id uuid.UUID, timezone string) error
	CompleteOnboarding(ctx context.Context, id uuid.UUID) error
	SetNextCheckin(ctx context.Context, id uuid.UUID, at *time.Time) error
}

// SessionRepositoryInterface defines the session operations
type SessionRepositoryInterface interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	ListActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Session, error)
	GetLastCompletedByUserID(ctx context.Context, userID uuid.UUID) (*models.Session, error)
	AddExploredDomain(ctx context.Context, id uuid.UUID, domain models.LifeDomain) error
	UpdateStatus(ctx context.Context, session *models.Session) error
}

// MessageRepositoryInterface defines the message operations
type MessageRepositoryInterface interface {
	Create(ctx context.Context, msg *models.Message) error
	HasUserMessage(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

// CaptureRepositoryInterface defines the capture mirror operations
type CaptureRepositoryInterface interface {
	Create(ctx context.Context, capture *models.Capture) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Capture, error)
	UpdateClassification(ctx context.Context, id uuid.UUID, classification models.CaptureClassification, tags []string) error
}

// RatelimitConfigRepositoryInterface defines the rate limit config operations
type RatelimitConfigRepositoryInterface interface {
	Get(ctx context.Context) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// Ensure concrete types implement the interfaces
var (
	_ UserRepositoryInterface            = (*UserRepository)(nil)
	_ SessionRepositoryInterface         = (*SessionRepository)(nil)
	_ MessageRepositoryInterface         = (*MessageRepository)(nil)
	_ CaptureRepositoryInterface         = (*CaptureRepository)(nil)
	_ RatelimitConfigRepositoryInterface = (*RatelimitConfigRepository)(nil)
)
