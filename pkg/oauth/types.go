// Package oauth implements spec.md §4.11 OAuthProvider: an RFC 6749 + PKCE
// (RFC 7636) authorization server used for inbound authentication, with
// RFC 7591 dynamic client registration and RFC 7009 revocation. Tokens are
// opaque random identifiers — spec.md's non-goals explicitly exclude
// cryptographic token issuance beyond that, so unlike the teacher's
// pkg/authserver (built on ory/fosite, which issues signed JWTs), this
// package never signs anything; see DESIGN.md for why fosite itself isn't
// wired in. The client model (ID/Secret/RedirectURIs/Public) and lifespan
// defaults follow pkg/authserver/config.go; loopback redirect-URI matching
// is adapted directly from pkg/authserver/client.go's LoopbackClient.
package oauth

import "time"

// Client is a registered OAuth client, per spec.md §3 ClientRegistration.
type Client struct {
	ID              string
	Secret          string // empty for public clients
	RedirectURIs    []string
	GrantTypes      []string
	ResponseTypes   []string
	Scope           string
	Public          bool
	RequirePKCE     bool
	IssuedAt        time.Time
	SecretExpiresAt time.Time // zero value means never
}

// AuthCode is a single-use authorization code, per spec.md §4.11 "issues
// single-use authorization code, expiry default 60s".
type AuthCode struct {
	Code                string
	ClientID            string
	UserID              string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time
	Used                bool
}

// AccessToken is an opaque bearer token issued by the token endpoint.
type AccessToken struct {
	Token     string
	ClientID  string
	UserID    string
	Scope     string
	ExpiresAt time.Time
}

// RefreshToken is an opaque, non-expiring-by-default token that can mint
// new access tokens.
type RefreshToken struct {
	Token     string
	ClientID  string
	UserID    string
	Scope     string
	ExpiresAt time.Time // zero value means non-expiring
}

// ConsentDecision is the user's response to a consent prompt.
type ConsentDecision string

// The two spec.md §4.11 consent decisions.
const (
	ConsentApprove ConsentDecision = "approve"
	ConsentDeny    ConsentDecision = "deny"
)

// Consent is a recorded (optionally remembered) user consent decision for
// a client/scope pair, per spec.md §4.11.
type Consent struct {
	ClientID       string
	ApprovedScopes string
	ExpiresAt      time.Time // zero value means session-only, not remembered
}

// Remembered reports whether this consent is still valid at now.
func (c Consent) Remembered(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.Before(c.ExpiresAt)
}

// Default lifespans, per spec.md §4.11 (mirroring pkg/authserver/config.go's
// applyDefaults, minus the JWT-signing-specific fields).
const (
	DefaultAccessTokenLifespan = time.Hour
	DefaultAuthCodeLifespan    = 60 * time.Second
)
