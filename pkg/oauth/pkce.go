package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// PKCEParams holds a generated PKCE code verifier and its S256 challenge,
// grounded on pkg/auth/oauth/pkce.go's GeneratePKCEParams.
type PKCEParams struct {
	CodeVerifier  string
	CodeChallenge string
}

// GeneratePKCEParams generates an RFC 7636 code verifier (43-128 chars)
// and its S256 code challenge.
func GeneratePKCEParams() (*PKCEParams, error) {
	verifierBytes := make([]byte, 32)
	if _, err := rand.Read(verifierBytes); err != nil {
		return nil, fmt.Errorf("generate code verifier: %w", err)
	}
	codeVerifier := base64.RawURLEncoding.EncodeToString(verifierBytes)

	return &PKCEParams{
		CodeVerifier:  codeVerifier,
		CodeChallenge: s256Challenge(codeVerifier),
	}, nil
}

// GenerateState generates a random CSRF state parameter.
func GenerateState() (string, error) {
	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(stateBytes), nil
}

func s256Challenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// VerifyPKCE checks verifier against challenge per RFC 7636 §4.6: for
// "plain", verifier equals challenge; for "S256", base64url(SHA-256
// (verifier)) equals challenge. An empty/unrecognized method fails closed.
func VerifyPKCE(verifier, challenge, method string) bool {
	switch method {
	case "plain":
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
	case "S256":
		return subtle.ConstantTimeCompare([]byte(s256Challenge(verifier)), []byte(challenge)) == 1
	default:
		return false
	}
}
