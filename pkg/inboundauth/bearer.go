package inboundauth

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/stacklok/mcp-funnel/pkg/envresolver"
)

// BearerConfig is the spec.md §4.10 bearer TransportConfig-adjacent
// variant: a list of accepted tokens, each of which may itself be a
// `${VAR}` pattern resolved at construction.
type BearerConfig struct {
	Tokens []string
	Realm  string
}

// BearerValidator accepts a request whose Authorization header carries
// one of a fixed set of tokens, compared in constant time.
type BearerValidator struct {
	tokens [][]byte
	realm  string
}

// NewBearerValidator resolves every `${VAR}` pattern in cfg.Tokens via
// lookup (undefined variable = construction failure, per spec.md §4.10)
// and rejects any resolved token shorter than MinTokenLength.
func NewBearerValidator(cfg BearerConfig, lookup envresolver.Lookup) (*BearerValidator, error) {
	if len(cfg.Tokens) == 0 {
		return nil, fmt.Errorf("bearer validator requires at least one token")
	}

	resolver := envresolver.New(lookup)
	tokens := make([][]byte, 0, len(cfg.Tokens))
	for _, raw := range cfg.Tokens {
		resolved, err := resolver.Resolve(raw)
		if err != nil {
			return nil, fmt.Errorf("resolve bearer token: %w", err)
		}
		if len(resolved) < MinTokenLength {
			return nil, fmt.Errorf("bearer token shorter than minimum length %d", MinTokenLength)
		}
		tokens = append(tokens, []byte(resolved))
	}

	realm := cfg.Realm
	if realm == "" {
		realm = "mcp-funnel"
	}
	return &BearerValidator{tokens: tokens, realm: realm}, nil
}

// Authenticate implements Validator.
func (v *BearerValidator) Authenticate(w http.ResponseWriter, r *http.Request) error {
	token, err := extractBearerToken(r)
	if err != nil {
		writeUnauthorized(w, v.realm, err)
		return err
	}

	if !v.accepts(token) {
		writeUnauthorized(w, v.realm, ErrTokenNotAccepted)
		return ErrTokenNotAccepted
	}
	return nil
}

// accepts performs a constant-time comparison against every configured
// token. For each token whose length differs from the candidate's, it
// still performs a dummy compare of the candidate against itself, so
// comparison time does not leak which token lengths are valid, per
// spec.md §4.10 / §8.
func (v *BearerValidator) accepts(candidate string) bool {
	candidateBytes := []byte(candidate)
	accepted := false
	for _, t := range v.tokens {
		if len(t) == len(candidateBytes) {
			if subtle.ConstantTimeCompare(t, candidateBytes) == 1 {
				accepted = true
			}
		} else {
			// Dummy compare to keep the timing profile independent of
			// which (if any) configured token matches candidate's length.
			subtle.ConstantTimeCompare(candidateBytes, candidateBytes)
		}
	}
	return accepted
}
