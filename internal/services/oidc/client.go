package oidc

import (
	"context"

	"github.com/benvon/sage-coach/internal/models"
	"golang.org/x/oauth2"
)

var defaultScopes = []string{"openid", "email", "profile"}

// Client wraps OAuth2 client functionality
type Client struct {
	config *oauth2.Config
}

// NewClient creates a new OAuth2 client for the resolved endpoint
func NewClient(oidcConfig models.OIDCConfig, endpoint oauth2.Endpoint) *Client {
	return &Client{config: &oauth2.Config{
		ClientID:     oidcConfig.ClientID,
		ClientSecret: oidcConfig.ClientSecret,
		RedirectURL:  oidcConfig.RedirectURI,
		Scopes:       defaultScopes,
		Endpoint:     endpoint,
	}}
}

// ExchangeCode exchanges an authorization code for tokens
func (c *Client) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return c.config.Exchange(ctx, code)
}

// AuthCodeURL returns the authorization URL
func (c *Client) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state)
}
