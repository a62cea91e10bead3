// Package sessions manages the conversation session lifecycle.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/sage-coach/internal/logger"
	"github.com/benvon/sage-coach/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckinInterval is the gap between a completed check-in (or life map) and the next check-in
const CheckinInterval = 7 * 24 * time.Hour

var (
	// ErrNotFound is returned for unknown sessions and for sessions owned by someone else
	ErrNotFound = errors.New("session not found")
	// ErrNotActive is returned when mutating a session that has already ended
	ErrNotActive = errors.New("session is not active")
)

// SessionStore is the session persistence the lifecycle needs
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	AddExploredDomain(ctx context.Context, id uuid.UUID, domain models.LifeDomain) error
	UpdateStatus(ctx context.Context, session *models.Session) error
}

// MessageStore appends conversation messages
type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
}

// ProfileStore updates the user fields driven by session completion
type ProfileStore interface {
	CompleteOnboarding(ctx context.Context, id uuid.UUID) error
	SetNextCheckin(ctx context.Context, id uuid.UUID, at *time.Time) error
}

// Service implements session start, messages, domain tracking and completion
type Service struct {
	sessions SessionStore
	messages MessageStore
	users    ProfileStore
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates a session lifecycle service
func NewService(sessions SessionStore, messages MessageStore, users ProfileStore, now func() time.Time, l *zap.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		sessions: sessions,
		messages: messages,
		users:    users,
		now:      now,
		logger:   logger.OrNop(l),
	}
}

// Start opens a new active session
func (s *Service) Start(ctx context.Context, userID uuid.UUID, sessionType models.SessionType) (*models.Session, error) {
	session := &models.Session{
		ID:              uuid.New(),
		UserID:          userID,
		SessionType:     sessionType,
		Status:          models.SessionStatusActive,
		DomainsExplored: []models.LifeDomain{},
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	s.logger.Info("session_started",
		zap.String("session_id", session.ID.String()),
		zap.String("session_type", string(sessionType)),
	)
	return session, nil
}

// AddMessage appends a message to an active session owned by userID
func (s *Service) AddMessage(ctx context.Context, userID, sessionID uuid.UUID, role models.MessageRole, content string) (*models.Message, error) {
	if _, err := s.activeSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	msg := &models.Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to add message: %w", err)
	}
	return msg, nil
}

// MarkDomainExplored records domain as explored; repeating a domain is a no-op
func (s *Service) MarkDomainExplored(ctx context.Context, userID, sessionID uuid.UUID, domain models.LifeDomain) (*models.Session, error) {
	if !domain.IsValid() {
		return nil, fmt.Errorf("unknown life domain: %q", domain)
	}
	session, err := s.activeSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.HasExplored(domain) {
		return session, nil
	}
	if err := s.sessions.AddExploredDomain(ctx, sessionID, domain); err != nil {
		return nil, fmt.Errorf("failed to mark domain explored: %w", err)
	}
	session.DomainsExplored = append(session.DomainsExplored, domain)
	return session, nil
}

// Complete ends the session. A completed weekly check-in or life map schedules the next check-in,
// and a completed life map also finishes onboarding. Profile updates run before the status change
// so a failed update leaves the session active and the call can be repeated.
func (s *Service) Complete(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error) {
	session, err := s.activeSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	completedAt := s.now()

	switch session.SessionType {
	case models.SessionTypeLifeMapping:
		if err := s.users.CompleteOnboarding(ctx, userID); err != nil {
			return nil, fmt.Errorf("failed to complete onboarding: %w", err)
		}
		if err := s.scheduleCheckin(ctx, userID, completedAt); err != nil {
			return nil, err
		}
	case models.SessionTypeWeeklyCheckin:
		if err := s.scheduleCheckin(ctx, userID, completedAt); err != nil {
			return nil, err
		}
	}

	session.CompletedAt = &completedAt
	return s.finish(ctx, session, models.SessionStatusCompleted)
}

// Abandon ends the session without completing it
func (s *Service) Abandon(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error) {
	session, err := s.activeSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, session, models.SessionStatusAbandoned)
}

func (s *Service) finish(ctx context.Context, session *models.Session, status models.SessionStatus) (*models.Session, error) {
	session.Status = status
	if err := s.sessions.UpdateStatus(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to end session: %w", err)
	}
	s.logger.Info("session_ended",
		zap.String("session_id", session.ID.String()),
		zap.String("session_type", string(session.SessionType)),
		zap.String("status", string(status)),
	)
	return session, nil
}

func (s *Service) scheduleCheckin(ctx context.Context, userID uuid.UUID, from time.Time) error {
	next := from.Add(CheckinInterval)
	if err := s.users.SetNextCheckin(ctx, userID, &next); err != nil {
		return fmt.Errorf("failed to schedule next check-in: %w", err)
	}
	return nil
}

func (s *Service) activeSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil || session.UserID != userID {
		return nil, ErrNotFound
	}
	if session.Status != models.SessionStatusActive {
		return nil, ErrNotActive
	}
	return session, nil
}
