package ai

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Context key types for logging (to avoid collisions with string keys)
type contextKey string

const (
	userIDContextKey    contextKey = "user_id"
	captureIDContextKey contextKey = "capture_id"
	requestIDContextKey contextKey = "request_id"
)

// UserIDContextKey returns the context key for user ID
func UserIDContextKey() contextKey {
	return userIDContextKey
}

// CaptureIDContextKey returns the context key for capture ID
func CaptureIDContextKey() contextKey {
	return captureIDContextKey
}

// RequestIDContextKey returns the context key for request ID
func RequestIDContextKey() contextKey {
	return requestIDContextKey
}

const (
	// MaxPreviewLength is the maximum length for preview strings in logs
	MaxPreviewLength = 200
	// MaxDebugContentLength bounds full-content debug logging
	MaxDebugContentLength = 10000
	// RedactedValue is the value used to replace sensitive data
	RedactedValue = "[REDACTED]"
)

// SanitizeAPIKey sanitizes an API key for logging
func SanitizeAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return RedactedValue
	}
	return apiKey[:4] + RedactedValue + apiKey[len(apiKey)-4:]
}

// SanitizePrompt creates a safe preview of a prompt for logging.
// Even in fullLog mode, output is sanitized to prevent log injection and limit size.
func SanitizePrompt(prompt string, fullLog bool) string {
	return sanitizeForLogging(prompt, fullLog)
}

// SanitizeResponse creates a safe preview of a response for logging
func SanitizeResponse(response string, fullLog bool) string {
	return sanitizeForLogging(response, fullLog)
}

func sanitizeForLogging(s string, fullLog bool) string {
	if s == "" {
		return ""
	}
	maxLen := MaxPreviewLength
	if fullLog {
		maxLen = MaxDebugContentLength
	}
	return sanitizeStringForLogging(s, maxLen)
}

// sanitizeStringForLogging removes control characters, validates UTF-8, and truncates on a rune boundary
func sanitizeStringForLogging(s string, maxLen int) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}

	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			builder.WriteRune(r)
		}
	}
	s = builder.String()

	if utf8.RuneCountInString(s) > maxLen {
		s = string([]rune(s)[:maxLen]) + "..."
	}
	return s
}

// ExtractRequestID extracts a request ID from context if available
func ExtractRequestID(ctx context.Context) string {
	return stringFromContext(ctx, requestIDContextKey)
}

// ExtractUserID extracts a user ID from context if available (handles UUID)
func ExtractUserID(ctx context.Context) string {
	return stringFromContext(ctx, userIDContextKey)
}

// ExtractCaptureID extracts a capture ID from context if available (handles UUID)
func ExtractCaptureID(ctx context.Context) string {
	return stringFromContext(ctx, captureIDContextKey)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	v := ctx.Value(key)
	if v == nil {
		return ""
	}
	if id, ok := v.(interface{ String() string }); ok {
		return id.String()
	}
	if id, ok := v.(string); ok {
		return id
	}
	return ""
}
