package documents

import (
	"fmt"
	"path"
	"strings"
	"time"
)

const capturesDir = "captures"

// CaptureKey returns the key of the capture written at local time t.
// Captures written within the same second share a key.
func CaptureKey(t time.Time) string {
	return fmt.Sprintf("%s/%s-%s.md", capturesDir, t.Format(time.DateOnly), t.Format("150405"))
}

// CapturePrefix returns the key prefix shared by all captures of a local date
func CapturePrefix(date string) string {
	return capturesDir + "/" + date + "-"
}

// validateKey rejects keys that could escape the user's root
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("document key cannot be empty")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("invalid document key: %s", key)
	}
	if path.Clean(key) != key {
		return fmt.Errorf("invalid document key: %s", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return fmt.Errorf("invalid document key: %s", key)
		}
	}
	return nil
}
