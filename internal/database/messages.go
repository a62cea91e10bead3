package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/sage-coach/internal/models"
	"github.com/google/uuid"
)

// MessageRepository handles conversation message database operations
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create appends a message to a session
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query, msg.ID, msg.SessionID, msg.Role, msg.Content, time.Now()).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// HasUserMessage reports whether the session holds at least one user-authored message
func (r *MessageRepository) HasUserMessage(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM messages WHERE session_id = $1 AND role = $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, sessionID, models.MessageRoleUser).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user messages: %w", err)
	}
	return exists, nil
}
