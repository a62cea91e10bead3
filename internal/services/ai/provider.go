package ai

import (
	"context"

	"github.com/benvon/sage-coach/internal/models"
	"go.uber.org/zap"
)

// MaxCaptureTags is the upper bound on tags attached to a capture
const MaxCaptureTags = 5

// Classifier categorises a capture and suggests tags for it
type Classifier interface {
	// Classify returns the capture category and at most MaxCaptureTags tags.
	// Output that cannot be interpreted yields ClassificationThought with no tags and a nil error;
	// an error means the provider could not be reached or refused the request.
	Classify(ctx context.Context, text string) (models.CaptureClassification, []string, error)
}

// ErrProviderNotConfigured is returned when no API key was supplied
type ErrProviderNotConfigured struct {
	Name string
}

func (e *ErrProviderNotConfigured) Error() string {
	return "AI provider not configured: " + e.Name
}

// NewClassifier returns the OpenAI classifier, or ErrProviderNotConfigured without an API key
func NewClassifier(apiKey, baseURL, model string, logger *zap.Logger, debugMode bool) (Classifier, error) {
	if apiKey == "" {
		return nil, &ErrProviderNotConfigured{Name: "openai"}
	}
	return NewOpenAIProviderWithLogger(apiKey, baseURL, model, logger, debugMode), nil
}

// Unavailable stands in when no provider is configured; every call fails with Err
type Unavailable struct {
	Err error
}

// Classify implements Classifier
func (u Unavailable) Classify(context.Context, string) (models.CaptureClassification, []string, error) {
	return "", nil, u.Err
}
