package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stacklok/mcp-funnel/pkg/oauth"
)

func TestToOAuthConfigOverlaysDefaults(t *testing.T) {
	t.Parallel()
	refresh := false
	o := OAuth{
		Issuer:             "https://funnel.example.com",
		BaseURL:            "https://funnel.example.com",
		SupportedScopes:    []string{"mcp", "admin"},
		DefaultCodeExpiry:  2 * time.Minute,
		DefaultTokenExpiry: time.Hour,
		IssueRefreshTokens: &refresh,
	}

	cfg := o.ToOAuthConfig()
	assert.Equal(t, "https://funnel.example.com", cfg.Issuer)
	assert.Equal(t, []string{"mcp", "admin"}, cfg.Scopes)
	assert.Equal(t, 2*time.Minute, cfg.AuthCodeLifespan)
	assert.Equal(t, time.Hour, cfg.AccessTokenLifespan)
	assert.False(t, cfg.IssueRefreshTokens)
	assert.True(t, cfg.RequirePKCEPublic, "unset RequirePKCE keeps oauth.DefaultConfig's default")
}

func TestToOAuthConfigDefaultsIssuerToBaseURL(t *testing.T) {
	t.Parallel()
	o := OAuth{BaseURL: "https://funnel.example.com"}
	cfg := o.ToOAuthConfig()
	assert.Equal(t, "https://funnel.example.com", cfg.Issuer)
}

func TestToOAuthConfigMatchesDefaultWhenEmpty(t *testing.T) {
	t.Parallel()
	cfg := OAuth{}.ToOAuthConfig()
	def := oauth.DefaultConfig()
	assert.Equal(t, def.GrantTypes, cfg.GrantTypes)
	assert.Equal(t, def.RequirePKCEPublic, cfg.RequirePKCEPublic)
}
