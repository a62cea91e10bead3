package oidc

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// DefaultJWKSTTL is how long fetched keys are trusted before refetching
const DefaultJWKSTTL = time.Hour

// KeySource supplies the key set used to verify token signatures
type KeySource interface {
	Keys(ctx context.Context) (jwk.Set, error)
}

// JWKSManager fetches and caches the identity provider's JWKS
type JWKSManager struct {
	url        string
	ttl        time.Duration
	httpClient *http.Client

	mu      sync.RWMutex
	keys    jwk.Set
	expires time.Time
}

var _ KeySource = (*JWKSManager)(nil)

// NewJWKSManager creates a JWKS manager for jwksURL
func NewJWKSManager(jwksURL string, ttl time.Duration) *JWKSManager {
	if ttl <= 0 {
		ttl = DefaultJWKSTTL
	}
	return &JWKSManager{
		url:        jwksURL,
		ttl:        ttl,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Keys returns the cached key set, refetching once it has expired
func (m *JWKSManager) Keys(ctx context.Context) (jwk.Set, error) {
	m.mu.RLock()
	if m.keys != nil && time.Now().Before(m.expires) {
		keys := m.keys
		m.mu.RUnlock()
		return keys, nil
	}
	m.mu.RUnlock()

	if m.url == "" {
		return nil, fmt.Errorf("JWKS URL not configured")
	}

	keys, err := jwk.Fetch(ctx, m.url, jwk.WithHTTPClient(m.httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	m.mu.Lock()
	m.keys = keys
	m.expires = time.Now().Add(m.ttl)
	m.mu.Unlock()

	return keys, nil
}
