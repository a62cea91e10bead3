package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/sage-coach/internal/models"
	"golang.org/x/oauth2"
)

// Provider turns the configured identity provider into login parameters for the front end
type Provider struct {
	config     models.OIDCConfig
	httpClient *http.Client
}

// NewProvider creates a provider for cfg
func NewProvider(cfg models.OIDCConfig) *Provider {
	return &Provider{
		config:     cfg,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Config returns the provider configuration
func (p *Provider) Config() models.OIDCConfig {
	return p.config
}

// LoginConfig contains OIDC login configuration for frontend
type LoginConfig struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	AuthorizationURL      string `json:"authorization_url"`
	ClientID              string `json:"client_id"`
	RedirectURI           string `json:"redirect_uri"`
	Scope                 string `json:"scope"`
	State                 string `json:"state"`
}

// GetLoginConfig resolves the provider endpoints and builds an authorization URL for state
func (p *Provider) GetLoginConfig(ctx context.Context, state string) (*LoginConfig, error) {
	if p.config.Issuer == "" || p.config.ClientID == "" {
		return nil, fmt.Errorf("OIDC provider not configured")
	}

	endpoint := p.resolveEndpoint(ctx)
	client := NewClient(p.config, endpoint)

	return &LoginConfig{
		AuthorizationEndpoint: endpoint.AuthURL,
		TokenEndpoint:         endpoint.TokenURL,
		AuthorizationURL:      client.AuthCodeURL(state),
		ClientID:              p.config.ClientID,
		RedirectURI:           p.config.RedirectURI,
		Scope:                 strings.Join(defaultScopes, " "),
		State:                 state,
	}, nil
}

// resolveEndpoint prefers explicit configuration, then discovery, then issuer-derived paths
func (p *Provider) resolveEndpoint(ctx context.Context) oauth2.Endpoint {
	endpoint := oauth2.Endpoint{AuthURL: p.config.AuthURL, TokenURL: p.config.TokenURL}
	if endpoint.AuthURL != "" && endpoint.TokenURL != "" {
		return endpoint
	}

	if discovered, err := p.discover(ctx); err == nil {
		if endpoint.AuthURL == "" {
			endpoint.AuthURL = discovered.AuthorizationEndpoint
		}
		if endpoint.TokenURL == "" {
			endpoint.TokenURL = discovered.TokenEndpoint
		}
	}

	base := strings.TrimSuffix(p.config.Issuer, "/")
	if endpoint.AuthURL == "" {
		endpoint.AuthURL = base + "/oauth2/authorize"
	}
	if endpoint.TokenURL == "" {
		endpoint.TokenURL = base + "/oauth2/token"
	}
	return endpoint
}

type discoveryDocument struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
}

func (p *Provider) discover(ctx context.Context) (*discoveryDocument, error) {
	discoveryURL := strings.TrimSuffix(p.config.Issuer, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery returned status %d", resp.StatusCode)
	}

	var doc discoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode discovery document: %w", err)
	}
	return &doc, nil
}

// TokenResponse is what the front end receives after a successful code exchange
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	IDToken     string    `json:"id_token,omitempty"`
	TokenType   string    `json:"token_type"`
	Expiry      time.Time `json:"expiry"`
}

// ExchangeCode trades an authorization code for tokens at the provider's token endpoint
func (p *Provider) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	if p.config.Issuer == "" || p.config.ClientID == "" {
		return nil, fmt.Errorf("OIDC provider not configured")
	}

	token, err := NewClient(p.config, p.resolveEndpoint(ctx)).ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	resp := &TokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.Type(),
		Expiry:      token.Expiry,
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		resp.IDToken = idToken
	}
	return resp, nil
}
