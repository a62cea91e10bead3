package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

const defaultFrontendOrigin = "http://localhost:3000"

// AllowedOrigins parses a comma-separated origin list, always including the local front end
func AllowedOrigins(frontendURL string) []string {
	origins := []string{defaultFrontendOrigin}
	seen := map[string]bool{defaultFrontendOrigin: true}
	for _, origin := range strings.Split(frontendURL, ",") {
		trimmed := strings.TrimSuffix(strings.TrimSpace(origin), "/")
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		origins = append(origins, trimmed)
	}
	return origins
}

// CORS handles preflight and CORS headers for the web front end
func CORS(frontendURL string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   AllowedOrigins(frontendURL),
		AllowCredentials: true,
		MaxAge:           86400,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
	})
	return c.Handler
}
