// Package inboundauth implements spec.md §4.10 InboundAuthValidator: the
// `none`/`bearer` variants gating inbound MCP connections, grounded on the
// teacher's pkg/auth bearer-extraction and WWW-Authenticate conventions
// (pkg/auth/utils.go's ExtractBearerToken, pkg/auth/token.go's
// buildWWWAuthenticate/Middleware) but simplified to opaque static-token
// comparison since spec.md explicitly scopes OIDC/JWT validation out of
// this component.
package inboundauth

import (
	"errors"
	"fmt"
	"net/http"
)

// Errors mirroring the teacher's pkg/auth/utils.go bearer-extraction
// sentinels, restated for this package's RFC 6750 surface.
var (
	ErrAuthHeaderMissing       = errors.New("authorization header required")
	ErrInvalidAuthHeaderFormat = errors.New("invalid authorization header format, expected 'Bearer <token>'")
	ErrEmptyBearerToken        = errors.New("empty Bearer token")
	ErrTokenNotAccepted        = errors.New("bearer token not accepted")
)

// MinTokenLength is the minimum accepted bearer token length, per
// spec.md §4.10.
const MinTokenLength = 16

// Validator gates an inbound request and, on failure, writes the
// appropriate 401 response (including WWW-Authenticate) itself.
type Validator interface {
	// Authenticate returns nil if r is authorized. On error it has
	// already written a 401 response to w; callers must not write
	// again.
	Authenticate(w http.ResponseWriter, r *http.Request) error
}

// Middleware adapts a Validator into standard http.Handler-wrapping
// middleware, matching the teacher's pkg/auth middleware shape.
func Middleware(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := v.Authenticate(w, r); err != nil {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken extracts and validates the Bearer token, per RFC 6750
// §2.1, grounded on pkg/auth/utils.go's ExtractBearerToken.
func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrAuthHeaderMissing
	}

	const prefix = "Bearer "
	if len(authHeader) < len(prefix) || authHeader[:len(prefix)] != prefix {
		return "", ErrInvalidAuthHeaderFormat
	}

	token := authHeader[len(prefix):]
	if token == "" {
		return "", ErrEmptyBearerToken
	}
	return token, nil
}

// writeUnauthorized writes a 401 with a WWW-Authenticate header, per
// spec.md §4.10 ("On failure the server must include WWW-Authenticate:
// Bearer realm=\"…\"").
func writeUnauthorized(w http.ResponseWriter, realm string, err error) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm=%q`, realm))
	http.Error(w, err.Error(), http.StatusUnauthorized)
}
