package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeCaptureClassification classifies a capture and writes the result back
	JobTypeCaptureClassification JobType = "capture_classification"
)

// DefaultJobTTL bounds how long an unconsumed job stays useful
const DefaultJobTTL = 24 * time.Hour

// Job represents a job in the queue
type Job struct {
	ID          uuid.UUID  `json:"id"`
	Type        JobType    `json:"type"`
	UserID      uuid.UUID  `json:"user_id"`
	CaptureID   *uuid.UUID `json:"capture_id,omitempty"` // nil when the relational mirror write failed
	DocumentKey string     `json:"document_key"`
	Text        string     `json:"text"`
	NotAfter    *time.Time `json:"not_after,omitempty"` // Latest time to process job (nil = no expiration)
	CreatedAt   time.Time  `json:"created_at"`
}

// NewCaptureClassificationJob creates a classification job for a freshly written capture
func NewCaptureClassificationJob(userID uuid.UUID, captureID *uuid.UUID, documentKey, text string) *Job {
	now := time.Now()
	notAfter := now.Add(DefaultJobTTL)
	return &Job{
		ID:          uuid.New(),
		Type:        JobTypeCaptureClassification,
		UserID:      userID,
		CaptureID:   captureID,
		DocumentKey: documentKey,
		Text:        text,
		NotAfter:    &notAfter,
		CreatedAt:   now,
	}
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// Validate reports whether the job carries everything a consumer needs
func (j *Job) Validate() error {
	if j.Type != JobTypeCaptureClassification {
		return fmt.Errorf("unknown job type: %q", j.Type)
	}
	if j.UserID == uuid.Nil {
		return errors.New("job has no user_id")
	}
	if j.DocumentKey == "" {
		return errors.New("job has no document_key")
	}
	if j.Text == "" {
		return errors.New("job has no text")
	}
	return nil
}

// DecodeJob parses and validates a delivery body
func DecodeJob(body []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job %s: %w", job.ID, err)
	}
	return &job, nil
}
