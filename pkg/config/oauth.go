package config

import (
	"time"

	"github.com/stacklok/mcp-funnel/pkg/oauth"
)

// OAuth is `oauth: {issuer, baseUrl, supportedScopes, defaultCodeExpiry,
// defaultTokenExpiry, issueRefreshTokens, requirePkce}`, spec.md §6.
type OAuth struct {
	Issuer             string        `yaml:"issuer,omitempty" json:"issuer,omitempty"`
	BaseURL            string        `yaml:"baseUrl,omitempty" json:"baseUrl,omitempty"`
	SupportedScopes    []string      `yaml:"supportedScopes,omitempty" json:"supportedScopes,omitempty"`
	DefaultCodeExpiry  time.Duration `yaml:"defaultCodeExpiry,omitempty" json:"defaultCodeExpiry,omitempty"`
	DefaultTokenExpiry time.Duration `yaml:"defaultTokenExpiry,omitempty" json:"defaultTokenExpiry,omitempty"`
	IssueRefreshTokens *bool         `yaml:"issueRefreshTokens,omitempty" json:"issueRefreshTokens,omitempty"`
	RequirePKCE        *bool         `yaml:"requirePkce,omitempty" json:"requirePkce,omitempty"`
}

// ToOAuthConfig overlays the configured fields onto oauth.DefaultConfig,
// leaving spec.md §4.11's defaults in place for anything left unset.
func (o OAuth) ToOAuthConfig() oauth.Config {
	cfg := oauth.DefaultConfig()

	cfg.Issuer = o.Issuer
	cfg.BaseURL = o.BaseURL
	if cfg.Issuer == "" {
		cfg.Issuer = cfg.BaseURL
	}
	if len(o.SupportedScopes) > 0 {
		cfg.Scopes = o.SupportedScopes
	}
	if o.DefaultCodeExpiry > 0 {
		cfg.AuthCodeLifespan = o.DefaultCodeExpiry
	}
	if o.DefaultTokenExpiry > 0 {
		cfg.AccessTokenLifespan = o.DefaultTokenExpiry
	}
	if o.IssueRefreshTokens != nil {
		cfg.IssueRefreshTokens = *o.IssueRefreshTokens
	}
	if o.RequirePKCE != nil {
		cfg.RequirePKCEPublic = *o.RequirePKCE
	}
	return cfg
}
