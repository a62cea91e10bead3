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

// CaptureRepository handles the relational mirror of capture documents
type CaptureRepository struct {
	db *DB
}

// NewCaptureRepository creates a new capture repository
func NewCaptureRepository(db *DB) *CaptureRepository {
	return &CaptureRepository{db: db}
}

// Create inserts a capture row
func (r *CaptureRepository) Create(ctx context.Context, capture *models.Capture) error {
	query := `
		INSERT INTO captures (id, user_id, content, source, input_mode, document_key, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	tags := capture.Tags
	if tags == nil {
		tags = []string{}
	}

	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		capture.ID,
		capture.UserID,
		capture.Content,
		capture.Source,
		capture.InputMode,
		capture.DocumentKey,
		pq.Array(tags),
		now,
		now,
	).Scan(&capture.CreatedAt, &capture.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create capture: %w", err)
	}
	return nil
}

// GetByID retrieves a capture row, returning nil when it does not exist
func (r *CaptureRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Capture, error) {
	query := `
		SELECT id, user_id, content, source, input_mode, document_key, classification, tags, created_at, updated_at
		FROM captures
		WHERE id = $1
	`

	capture := &models.Capture{}
	var classification sql.NullString
	var tags []string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&capture.ID,
		&capture.UserID,
		&capture.Content,
		&capture.Source,
		&capture.InputMode,
		&capture.DocumentKey,
		&classification,
		pq.Array(&tags),
		&capture.CreatedAt,
		&capture.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capture: %w", err)
	}

	if classification.Valid {
		c := models.CaptureClassification(classification.String)
		capture.Classification = &c
	}
	capture.Tags = tags
	return capture, nil
}

// UpdateClassification writes the classifier's result onto an existing row
func (r *CaptureRepository) UpdateClassification(ctx context.Context, id uuid.UUID, classification models.CaptureClassification, tags []string) error {
	query := `
		UPDATE captures
		SET classification = $2, tags = $3, updated_at = $4
		WHERE id = $1
	`

	if tags == nil {
		tags = []string{}
	}

	result, err := r.db.ExecContext(ctx, query, id, string(classification), pq.Array(tags), time.Now())
	if err != nil {
		return fmt.Errorf("failed to update capture classification: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("capture not found")
	}
	return nil
}
