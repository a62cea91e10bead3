package models

import (
	"time"

	"github.com/google/uuid"
)

// InputMode is how a capture was recorded
type InputMode string

const (
	InputModeText  InputMode = "text"
	InputModeVoice InputMode = "voice"
)

// CaptureClassification is the category assigned to a capture after submission
type CaptureClassification string

const (
	ClassificationThought CaptureClassification = "thought"
	ClassificationTask    CaptureClassification = "task"
	ClassificationIdea    CaptureClassification = "idea"
	ClassificationTension CaptureClassification = "tension"
)

// IsValid reports whether c is one of the four known categories
func (c CaptureClassification) IsValid() bool {
	switch c {
	case ClassificationThought, ClassificationTask, ClassificationIdea, ClassificationTension:
		return true
	default:
		return false
	}
}

// CaptureSourceManual tags rows written by the capture endpoint
const CaptureSourceManual = "manual"

// Capture is the relational mirror of a capture document
type Capture struct {
	ID             uuid.UUID              `json:"id"`
	UserID         uuid.UUID              `json:"user_id"`
	Content        string                 `json:"content"`
	Source         string                 `json:"source"`
	InputMode      InputMode              `json:"input_mode"`
	DocumentKey    string                 `json:"document_key"`
	Classification *CaptureClassification `json:"classification,omitempty"`
	Tags           []string               `json:"tags,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// CaptureSubmission is returned to callers once the synchronous writes finish.
// CaptureID is nil when the relational mirror write failed.
type CaptureSubmission struct {
	DocumentKey string     `json:"document_key"`
	CaptureID   *uuid.UUID `json:"capture_id"`
}
