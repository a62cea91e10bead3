package models

// OIDCConfig describes the identity provider used to sign bearer tokens
type OIDCConfig struct {
	Issuer       string `json:"issuer"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"-"`
	RedirectURI  string `json:"redirect_uri"`
	JWKSURL      string `json:"jwks_url"`
	AuthURL      string `json:"auth_url,omitempty"`  // Optional: overrides issuer-derived authorize endpoint
	TokenURL     string `json:"token_url,omitempty"` // Optional: overrides issuer-derived token endpoint
}
