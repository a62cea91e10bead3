package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/benvon/sage-coach/internal/models"
	"github.com/google/uuid"
)

const userColumns = `id, email, provider_id, name, onboarding_completed, next_checkin_at, timezone, created_at, updated_at`

// UserRepository handles user database operations
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, provider_id, name, onboarding_completed, next_checkin_at, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	if user.Timezone == "" {
		user.Timezone = models.DefaultTimezone
	}

	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		user.ID,
		user.Email,
		user.ProviderID,
		user.Name,
		user.OnboardingCompleted,
		nullTime(user.NextCheckinAt),
		user.Timezone,
		now,
		now,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID. A missing user wraps sql.ErrNoRows.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetByProviderID retrieves a user by identity provider subject
func (r *UserRepository) GetByProviderID(ctx context.Context, providerID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE provider_id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, providerID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by provider ID: %w", err)
	}

	return user, nil
}

// UpdateProfile updates the identity fields synced from the token
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = $2, name = $3, updated_at = $4
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query, user.ID, user.Email, user.Name, time.Now()).Scan(&user.UpdatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("user not found")
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	return nil
}

// SetTimezone stores the user's IANA timezone name
func (r *UserRepository) SetTimezone(ctx context.Context, id uuid.UUID, timezone string) error {
	return r.exec(ctx, "set timezone", `UPDATE users SET timezone = $2, updated_at = $3 WHERE id = $1`, id, timezone, time.Now())
}

// CompleteOnboarding flips the onboarding flag
func (r *UserRepository) CompleteOnboarding(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, "complete onboarding", `UPDATE users SET onboarding_completed = TRUE, updated_at = $2 WHERE id = $1`, id, time.Now())
}

// SetNextCheckin schedules (or clears, when at is nil) the next check-in
func (r *UserRepository) SetNextCheckin(ctx context.Context, id uuid.UUID, at *time.Time) error {
	return r.exec(ctx, "set next check-in", `UPDATE users SET next_checkin_at = $2, updated_at = $3 WHERE id = $1`, id, nullTime(at), time.Now())
}

func (r *UserRepository) exec(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var nextCheckin sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.ProviderID,
		&user.Name,
		&user.OnboardingCompleted,
		&nextCheckin,
		&user.Timezone,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if nextCheckin.Valid {
		user.NextCheckinAt = &nextCheckin.Time
	}
	return user, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
