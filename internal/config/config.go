package config

import (
	"fmt"
	"os"
	"strconv"
)

// Classification dispatch modes
const (
	ClassifyModeInline = "inline"
	ClassifyModeQueue  = "queue"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	FrontendURL      string
	OpenAIKey        string
	AIModel          string
	AIBaseURL        string
	EnableHSTS       bool
	RedisURL         string
	RateLimit        string
	RabbitMQURL      string
	RabbitMQPrefetch int
	DocumentRoot     string
	ClassifyMode     string
	OIDCIssuer       string
	OIDCJWKSURL      string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURI  string
	OIDCAuthURL      string
	OIDCTokenURL     string
	WorkerDebugMode  bool
	ServerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
		AIModel:          getEnv("AI_MODEL", ""),
		AIBaseURL:        getEnv("AI_BASE_URL", ""),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RateLimit:        getEnv("RATE_LIMIT", "5-S"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),
		DocumentRoot:     getEnv("DOCUMENT_ROOT", "./data/documents"),
		ClassifyMode:     getEnv("CLASSIFY_MODE", ClassifyModeInline),
		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCJWKSURL:      getEnv("OIDC_JWKS_URL", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURI:  getEnv("OIDC_REDIRECT_URI", "http://localhost:3000/auth/callback"),
		OIDCAuthURL:      getEnv("OIDC_AUTH_URL", ""),
		OIDCTokenURL:     getEnv("OIDC_TOKEN_URL", ""),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.ClassifyMode {
	case ClassifyModeInline:
	case ClassifyModeQueue:
		if cfg.RabbitMQURL == "" {
			return nil, fmt.Errorf("RABBITMQ_URL is required when CLASSIFY_MODE=queue")
		}
	default:
		return nil, fmt.Errorf("invalid CLASSIFY_MODE %q (must be %q or %q)", cfg.ClassifyMode, ClassifyModeInline, ClassifyModeQueue)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
