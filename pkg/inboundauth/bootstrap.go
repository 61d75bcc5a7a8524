package inboundauth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/stacklok/mcp-funnel/pkg/envresolver"
	"github.com/stacklok/mcp-funnel/pkg/logger"
)

// disableInboundAuthEnv is the startup override named in spec.md §4.10.
const disableInboundAuthEnv = "DISABLE_INBOUND_AUTH"

// generatedTokenBytes yields a 64-hex-character token, per spec.md §4.10.
const generatedTokenBytes = 32

// Bootstrap builds the configured Validator, applying spec.md §4.10's
// startup rule: if no tokens are configured and DISABLE_INBOUND_AUTH is
// "true", a NoneValidator is returned; if no tokens are configured and the
// override is not set, a token is generated and printed once. Startup is
// not refused for lack of a configured validator.
func Bootstrap(cfg *BearerConfig, lookup envresolver.Lookup) (Validator, error) {
	disabled, _ := lookup(disableInboundAuthEnv)

	if cfg == nil || len(cfg.Tokens) == 0 {
		if disabled == "true" {
			logger.Warnw("inbound auth disabled via override", "env", disableInboundAuthEnv)
			return NewNoneValidator(), nil
		}

		token, err := generateToken()
		if err != nil {
			return nil, fmt.Errorf("generate inbound auth token: %w", err)
		}
		// Printed once at startup; this is the operator's only chance to
		// see it, so it goes to stdout rather than the structured logger.
		fmt.Printf("Generated inbound auth token (save this, it will not be shown again): %s\n", token)

		return NewBearerValidator(BearerConfig{Tokens: []string{token}}, lookup)
	}

	return NewBearerValidator(*cfg, lookup)
}

func generateToken() (string, error) {
	buf := make([]byte, generatedTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
