package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/benvon/sage-coach/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const sessionColumns = `id, user_id, session_type, status, domains_explored, created_at, updated_at, completed_at`

// SessionRepository handles conversation session database operations
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, session_type, status, domains_explored, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		session.ID,
		session.UserID,
		session.SessionType,
		session.Status,
		pq.Array(domainsToStrings(session.DomainsExplored)),
		now,
		now,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by ID, returning nil when it does not exist
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// ListActiveByUserID returns all of the user's active sessions, newest first
func (r *SessionRepository) ListActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, models.SessionStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	sessions := []*models.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan active session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active sessions: %w", err)
	}
	return sessions, nil
}

// GetLastCompletedByUserID returns the user's most recently completed session, or nil
func (r *SessionRepository) GetLastCompletedByUserID(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND status = $2
		ORDER BY completed_at DESC NULLS LAST
		LIMIT 1
	`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, userID, models.SessionStatusCompleted))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last completed session: %w", err)
	}
	return session, nil
}

// AddExploredDomain appends domain to the session's explored list unless already present
func (r *SessionRepository) AddExploredDomain(ctx context.Context, id uuid.UUID, domain models.LifeDomain) error {
	query := `
		UPDATE sessions
		SET domains_explored = CASE
				WHEN $2 = ANY(domains_explored) THEN domains_explored
				ELSE array_append(domains_explored, $2)
			END,
			updated_at = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, string(domain), time.Now())
	if err != nil {
		return fmt.Errorf("failed to add explored domain: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session not found")
	}
	return nil
}

// UpdateStatus moves a session out of active. completedAt is stored as given.
func (r *SessionRepository) UpdateStatus(ctx context.Context, session *models.Session) error {
	query := `
		UPDATE sessions
		SET status = $2, completed_at = $3, updated_at = $4
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		session.ID,
		session.Status,
		nullTime(session.CompletedAt),
		time.Now(),
	).Scan(&session.UpdatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("session not found")
	}
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	session := &models.Session{}
	var domains []string
	var completedAt sql.NullTime
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.SessionType,
		&session.Status,
		pq.Array(&domains),
		&session.CreatedAt,
		&session.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	session.DomainsExplored = stringsToDomains(domains)
	if completedAt.Valid {
		session.CompletedAt = &completedAt.Time
	}
	return session, nil
}

func domainsToStrings(domains []models.LifeDomain) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		out = append(out, string(d))
	}
	return out
}

func stringsToDomains(values []string) []models.LifeDomain {
	out := make([]models.LifeDomain, 0, len(values))
	for _, v := range values {
		out = append(out, models.LifeDomain(v))
	}
	return out
}
