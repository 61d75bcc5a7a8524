package config

import (
	"fmt"

	"github.com/stacklok/mcp-funnel/pkg/envresolver"
	"github.com/stacklok/mcp-funnel/pkg/inboundauth"
)

// minAuthTokenLength is spec.md §6's MCP_FUNNEL_AUTH_TOKEN floor.
const minAuthTokenLength = 16

// mcpFunnelAuthTokenEnv names the explicit-bearer-token override, spec.md
// §6.
const mcpFunnelAuthTokenEnv = "MCP_FUNNEL_AUTH_TOKEN"

// InboundAuth is `inboundAuth: {type: none|bearer, tokens?}`.
type InboundAuth struct {
	Type   string   `yaml:"type,omitempty" json:"type,omitempty"`
	Tokens []string `yaml:"tokens,omitempty" json:"tokens,omitempty"`
}

func (a InboundAuth) validate() error {
	switch a.Type {
	case "", "none", "bearer":
		return nil
	default:
		return fmt.Errorf("inboundAuth.type: unrecognized value %q", a.Type)
	}
}

// BuildValidator constructs the inbound Validator spec.md §4.10 describes:
// an explicit `type: none` always wins; next, a non-empty
// MCP_FUNNEL_AUTH_TOKEN from lookup (at least minAuthTokenLength
// characters) is used as the only bearer token, replacing any configured
// tokens; then `type: bearer` (or a config that merely lists tokens) uses
// those tokens directly; otherwise startup falls through to
// inboundauth.Bootstrap's generate-or-disable rule.
func (a InboundAuth) BuildValidator(lookup envresolver.Lookup) (inboundauth.Validator, error) {
	if a.Type == "none" {
		return inboundauth.NewNoneValidator(), nil
	}

	if token, ok := lookup(mcpFunnelAuthTokenEnv); ok && token != "" {
		if len(token) < minAuthTokenLength {
			return nil, fmt.Errorf("%s must be at least %d characters", mcpFunnelAuthTokenEnv, minAuthTokenLength)
		}
		return inboundauth.NewBearerValidator(inboundauth.BearerConfig{Tokens: []string{token}}, lookup)
	}

	if a.Type == "bearer" || len(a.Tokens) > 0 {
		if len(a.Tokens) == 0 {
			return nil, fmt.Errorf("inboundAuth.type is %q but no tokens were configured", a.Type)
		}
		return inboundauth.NewBearerValidator(inboundauth.BearerConfig{Tokens: a.Tokens}, lookup)
	}

	return inboundauth.Bootstrap(nil, lookup)
}
