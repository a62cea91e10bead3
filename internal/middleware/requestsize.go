package middleware

import (
	"net/http"

	"go.uber.org/zap"
)

// DefaultMaxRequestSize bounds request bodies; captures are at most 2000 characters
const DefaultMaxRequestSize int64 = 64 << 10

// MaxRequestSize rejects oversized bodies up front and caps the reader for the rest
func MaxRequestSize(maxBytes int64, logger *zap.Logger) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				respondErrorJSON(w, r, http.StatusRequestEntityTooLarge, "Request Entity Too Large", "Request body too large", logger)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
