package oidc

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/sage-coach/internal/models"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const clockSkew = 30 * time.Second

// Verifier verifies bearer JWTs issued by the configured provider
type Verifier struct {
	keys   KeySource
	issuer string
}

// NewVerifier creates a new JWT verifier
func NewVerifier(keys KeySource, issuer string) *Verifier {
	return &Verifier{
		keys:   keys,
		issuer: issuer,
	}
}

// Verify checks signature, expiry and issuer, then extracts the claims
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	keys, err := v.keys.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithAcceptableSkew(clockSkew),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}

	if token.Subject() == "" {
		return nil, fmt.Errorf("token missing subject claim")
	}

	claims := &models.JWTClaims{
		Sub: token.Subject(),
		Iss: token.Issuer(),
		Exp: token.Expiration().Unix(),
		Iat: token.IssuedAt().Unix(),
	}
	if aud := token.Audience(); len(aud) > 0 {
		claims.Aud = aud[0]
	}
	if email, ok := token.PrivateClaims()["email"].(string); ok {
		claims.Email = email
	}
	if name, ok := token.PrivateClaims()["name"].(string); ok {
		claims.Name = name
	}

	return claims, nil
}
