package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/sage-coach/internal/models"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"

	maxTagLength = 40
)

const classifySystemPrompt = `You sort short personal notes captured by someone working with a life coach.
Pick exactly one category:
- "thought": a reflection, observation or feeling
- "task": something the person intends to do
- "idea": a possibility or plan worth exploring later
- "tension": a worry, conflict or source of stress
Suggest up to 5 short lowercase tags describing the topic.
Respond with valid JSON only: {"category": "...", "tags": ["..."]}`

// OpenAIProvider implements Classifier using OpenAI's chat completions API
type OpenAIProvider struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

var _ Classifier = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string, model string) *OpenAIProvider {
	return NewOpenAIProviderWithLogger(apiKey, DefaultOpenAIBaseURL, model, nil, false)
}

// NewOpenAIProviderWithLogger creates a new OpenAI provider with logger support
func NewOpenAIProviderWithLogger(apiKey string, baseURL string, model string, logger *zap.Logger, debugMode bool) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	)

	return &OpenAIProvider{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}
}

// Classify implements Classifier
func (p *OpenAIProvider) Classify(ctx context.Context, text string) (models.CaptureClassification, []string, error) {
	content, err := p.sendClassifyRequest(ctx, text)
	if err != nil {
		return "", nil, err
	}

	classification, tags, ok := parseClassificationResponse(content)
	if !ok && p.logger != nil {
		p.logger.Warn("capture_classification_unparseable",
			zap.String("response_preview", SanitizeResponse(content, false)),
			zap.String("request_id", ExtractRequestID(ctx)),
		)
	}
	return classification, tags, nil
}

func (p *OpenAIProvider) sendClassifyRequest(ctx context.Context, text string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(classifySystemPrompt),
		openai.UserMessage(text),
	}
	req := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	requestID := ExtractRequestID(ctx)
	userID := ExtractUserID(ctx)
	captureID := ExtractCaptureID(ctx)
	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("operation", "classify_capture"),
			zap.String("model", p.model),
			zap.Int("prompt_length", len(text)),
			zap.String("prompt_preview", SanitizePrompt(text, true)),
			zap.String("user_id", userID),
			zap.String("capture_id", captureID),
			zap.String("request_id", requestID),
		)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)
	if err != nil {
		if p.logger != nil && p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("operation", "classify_capture"),
				zap.String("model", p.model),
				zap.Error(err),
				zap.String("user_id", userID),
				zap.String("capture_id", captureID),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return "", fmt.Errorf("failed to classify capture: %w", apiErr)
		}
		return "", fmt.Errorf("failed to classify capture: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(ErrNoChoicesInResponse)
	}

	content := resp.Choices[0].Message.Content
	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("operation", "classify_capture"),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeResponse(content, true)),
			zap.String("user_id", userID),
			zap.String("capture_id", captureID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}
	return content, nil
}

// parseClassificationResponse extracts the category and tags from a model response.
// ok is false when the response could not be interpreted; the result is then thought with no tags.
func parseClassificationResponse(content string) (models.CaptureClassification, []string, bool) {
	var analysis struct {
		Category string   `json:"category"`
		Tags     []string `json:"tags"`
	}

	raw := strings.TrimSpace(content)
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		start := bytes.Index([]byte(raw), []byte("{"))
		end := bytes.LastIndex([]byte(raw), []byte("}"))
		if start == -1 || end <= start {
			return models.ClassificationThought, nil, false
		}
		analysis.Category, analysis.Tags = "", nil
		if err := json.Unmarshal([]byte(raw[start:end+1]), &analysis); err != nil {
			return models.ClassificationThought, nil, false
		}
	}

	classification := models.CaptureClassification(strings.ToLower(strings.TrimSpace(analysis.Category)))
	if !classification.IsValid() {
		return models.ClassificationThought, nil, false
	}
	return classification, normalizeTags(analysis.Tags), true
}

// normalizeTags lowercases, trims, deduplicates and caps the tag list
func normalizeTags(tags []string) []string {
	out := make([]string, 0, MaxCaptureTags)
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#")))
		if tag == "" || len([]rune(tag)) > maxTagLength || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
		if len(out) == MaxCaptureTags {
			break
		}
	}
	return out
}
