package oauth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalUserID is the resource-owner identity recorded against consent,
// auth codes, and tokens. This server has no separate end-user login
// step (it authenticates inbound callers via pkg/inboundauth, not via a
// per-human account system), so every grant is issued to the single
// local operator.
const LocalUserID = "local"

// Config tunes the provider's behavior, mirroring pkg/authserver/config.go's
// AuthorizationServerParams minus everything JWT-signing-specific.
type Config struct {
	// Issuer and BaseURL back RFC 8414 metadata (spec.md §6 oauth.issuer /
	// oauth.baseUrl). BaseURL is the externally reachable origin
	// (e.g. "https://funnel.example.com") that endpoint paths are joined
	// onto; Issuer defaults to BaseURL when unset.
	Issuer  string
	BaseURL string

	AccessTokenLifespan time.Duration
	AuthCodeLifespan    time.Duration
	RequirePKCEPublic   bool // require code_challenge for public clients
	IssueRefreshTokens  bool
	ConsentTTL          time.Duration // default remember-decision TTL when caller omits ttl_seconds
	GrantTypes          []string
	ResponseTypes       []string
	Scopes              []string
}

// DefaultConfig returns spec.md §4.11's defaults.
func DefaultConfig() Config {
	return Config{
		AccessTokenLifespan: DefaultAccessTokenLifespan,
		AuthCodeLifespan:    DefaultAuthCodeLifespan,
		RequirePKCEPublic:   true,
		IssueRefreshTokens:  true,
		ConsentTTL:          30 * 24 * time.Hour,
		GrantTypes:          []string{"authorization_code", "refresh_token"},
		ResponseTypes:       []string{"code"},
		Scopes:              []string{"mcp"},
	}
}

// Provider implements the RFC 6749 + PKCE authorization server described by
// spec.md §4.11. It holds no transport-specific state; Handlers (in
// handlers.go) adapts it to net/http.
type Provider struct {
	store Store
	cfg   Config
	now   func() time.Time
}

// NewProvider constructs a Provider over store.
func NewProvider(store Store, cfg Config) *Provider {
	return &Provider{store: store, cfg: cfg, now: time.Now}
}

// RegisterClientRequest is the RFC 7591 registration request body.
type RegisterClientRequest struct {
	RedirectURIs  []string `json:"redirect_uris"`
	GrantTypes    []string `json:"grant_types,omitempty"`
	ResponseTypes []string `json:"response_types,omitempty"`
	Scope         string   `json:"scope,omitempty"`
	TokenEndpointAuthMethod string `json:"token_endpoint_auth_method,omitempty"`
}

// RegisterClientResponse is the RFC 7591 registration response.
type RegisterClientResponse struct {
	ClientID              string   `json:"client_id"`
	ClientSecret          string   `json:"client_secret,omitempty"`
	ClientSecretExpiresAt int64    `json:"client_secret_expires_at"`
	RedirectURIs          []string `json:"redirect_uris"`
	GrantTypes            []string `json:"grant_types"`
	ResponseTypes         []string `json:"response_types"`
	Scope                 string   `json:"scope,omitempty"`
}

// RegisterClient implements POST /register.
func (p *Provider) RegisterClient(req RegisterClientRequest) (*RegisterClientResponse, *Error) {
	if len(req.RedirectURIs) == 0 {
		return nil, New(ErrInvalidRequest, "redirect_uris must be non-empty")
	}

	public := req.TokenEndpointAuthMethod == "none"

	clientID := uuid.NewString()

	var secret string
	var err error
	if !public {
		secret, err = randomID(32)
		if err != nil {
			return nil, New(ErrServerError, err.Error())
		}
	}

	grantTypes := req.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = p.cfg.GrantTypes
	}
	responseTypes := req.ResponseTypes
	if len(responseTypes) == 0 {
		responseTypes = p.cfg.ResponseTypes
	}

	c := &Client{
		ID:            clientID,
		Secret:        secret,
		RedirectURIs:  req.RedirectURIs,
		GrantTypes:    grantTypes,
		ResponseTypes: responseTypes,
		Scope:         req.Scope,
		Public:        public,
		RequirePKCE:   public && p.cfg.RequirePKCEPublic,
		IssuedAt:      p.now(),
	}
	p.store.PutClient(c)

	return &RegisterClientResponse{
		ClientID:      c.ID,
		ClientSecret:  c.Secret,
		RedirectURIs:  c.RedirectURIs,
		GrantTypes:    c.GrantTypes,
		ResponseTypes: c.ResponseTypes,
		Scope:         c.Scope,
	}, nil
}

// AuthorizeRequest is the parsed GET /authorize query.
type AuthorizeRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// AuthorizeResult is either a redirect with an issued code, a redirect with
// an error, or a consent requirement.
type AuthorizeResult struct {
	RedirectURL    string
	ConsentURI     string
	NeedsConsent   bool
}

// Authorize implements GET /authorize.
func (p *Provider) Authorize(req AuthorizeRequest) (*AuthorizeResult, *Error) {
	if req.ResponseType != "code" {
		return nil, New(ErrUnsupportedGrantType, "response_type must be \"code\"")
	}
	if req.ClientID == "" {
		return nil, New(ErrInvalidRequest, "client_id is required")
	}
	c, ok := p.store.GetClient(req.ClientID)
	if !ok {
		return nil, New(ErrInvalidClient, "unknown client_id")
	}
	if req.RedirectURI == "" || !MatchRedirectURI(c, req.RedirectURI) {
		return nil, New(ErrInvalidRequest, "redirect_uri is not registered for this client")
	}
	if c.Public && c.RequirePKCE && req.CodeChallenge == "" {
		return p.redirectError(req.RedirectURI, req.State, ErrInvalidRequest, "code_challenge is required for this client")
	}
	if req.CodeChallenge != "" && req.CodeChallengeMethod != "plain" && req.CodeChallengeMethod != "S256" {
		return p.redirectError(req.RedirectURI, req.State, ErrInvalidRequest, "code_challenge_method must be \"plain\" or \"S256\"")
	}

	consent, ok := p.store.GetConsent(LocalUserID, c.ID)
	if !ok || !consent.Remembered(p.now()) || !scopeSubset(req.Scope, consent.ApprovedScopes) {
		return &AuthorizeResult{
			NeedsConsent: true,
			ConsentURI:   consentURI(req),
		}, nil
	}

	code, err := p.issueAuthCode(req, c)
	if err != nil {
		return nil, New(ErrServerError, err.Error())
	}
	return &AuthorizeResult{RedirectURL: buildRedirect(req.RedirectURI, map[string]string{
		"code":  code.Code,
		"state": req.State,
	})}, nil
}

func (p *Provider) issueAuthCode(req AuthorizeRequest, c *Client) (*AuthCode, error) {
	codeValue, err := randomID(24)
	if err != nil {
		return nil, err
	}
	code := &AuthCode{
		Code:                codeValue,
		ClientID:            c.ID,
		UserID:              LocalUserID,
		RedirectURI:         req.RedirectURI,
		Scope:               req.Scope,
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		ExpiresAt:           p.now().Add(p.lifespan()),
	}
	p.store.PutAuthCode(code)
	return code, nil
}

func (p *Provider) lifespan() time.Duration {
	if p.cfg.AuthCodeLifespan > 0 {
		return p.cfg.AuthCodeLifespan
	}
	return DefaultAuthCodeLifespan
}

func (p *Provider) redirectError(redirectURI, state string, code Code, desc string) (*AuthorizeResult, *Error) {
	return &AuthorizeResult{RedirectURL: buildRedirect(redirectURI, map[string]string{
		"error":             string(code),
		"error_description": desc,
		"state":             state,
	})}, nil
}

// ConsentDecisionRequest is the POST /consent body.
type ConsentDecisionRequest struct {
	ClientID            string
	Decision            ConsentDecision
	ApprovedScopes      string
	RedirectURI         string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	RememberDecision    bool
	TTLSeconds          int64
}

// Decide implements POST /consent.
func (p *Provider) Decide(req ConsentDecisionRequest) (*AuthorizeResult, *Error) {
	c, ok := p.store.GetClient(req.ClientID)
	if !ok {
		return nil, New(ErrInvalidClient, "unknown client_id")
	}
	if req.RedirectURI == "" || !MatchRedirectURI(c, req.RedirectURI) {
		return nil, New(ErrInvalidRequest, "redirect_uri is not registered for this client")
	}

	if req.Decision != ConsentApprove {
		return p.redirectError(req.RedirectURI, req.State, ErrAccessDenied, "user denied the request")
	}

	if req.RememberDecision {
		ttl := p.cfg.ConsentTTL
		if req.TTLSeconds > 0 {
			ttl = time.Duration(req.TTLSeconds) * time.Second
		}
		p.store.PutConsent(LocalUserID, Consent{
			ClientID:       c.ID,
			ApprovedScopes: req.ApprovedScopes,
			ExpiresAt:      p.now().Add(ttl),
		})
	}

	code, err := p.issueAuthCode(AuthorizeRequest{
		ClientID:            c.ID,
		RedirectURI:         req.RedirectURI,
		Scope:               req.ApprovedScopes,
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
	}, c)
	if err != nil {
		return nil, New(ErrServerError, err.Error())
	}
	return &AuthorizeResult{RedirectURL: buildRedirect(req.RedirectURI, map[string]string{
		"code":  code.Code,
		"state": req.State,
	})}, nil
}

// TokenRequest is the parsed POST /token body, covering both grant types.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	ClientSecret string
	CodeVerifier string
	RefreshToken string
	Scope        string
}

// TokenResponse is the RFC 6749 §5.1 success body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Token implements POST /token.
func (p *Provider) Token(req TokenRequest) (*TokenResponse, *Error) {
	switch req.GrantType {
	case "authorization_code":
		return p.tokenFromCode(req)
	case "refresh_token":
		return p.tokenFromRefresh(req)
	default:
		return nil, New(ErrUnsupportedGrantType, fmt.Sprintf("unsupported grant_type %q", req.GrantType))
	}
}

func (p *Provider) authenticateClient(clientID, clientSecret, codeVerifier, codeChallenge, codeChallengeMethod string) (*Client, *Error) {
	c, ok := p.store.GetClient(clientID)
	if !ok {
		return nil, New(ErrInvalidClient, "unknown client_id")
	}
	if c.Public {
		if codeChallenge == "" {
			if c.RequirePKCE {
				return nil, New(ErrInvalidGrant, "code_verifier is required for this client")
			}
			return c, nil
		}
		if !VerifyPKCE(codeVerifier, codeChallenge, codeChallengeMethod) {
			return nil, New(ErrInvalidGrant, "code_verifier does not match code_challenge")
		}
		return c, nil
	}
	if subtle.ConstantTimeCompare([]byte(c.Secret), []byte(clientSecret)) != 1 {
		return nil, New(ErrInvalidClient, "client authentication failed")
	}
	return c, nil
}

func (p *Provider) tokenFromCode(req TokenRequest) (*TokenResponse, *Error) {
	if req.Code == "" {
		return nil, New(ErrInvalidRequest, "code is required")
	}
	code, ok := p.store.TakeAuthCode(req.Code)
	if !ok {
		return nil, New(ErrInvalidGrant, "authorization code is invalid, expired, or already used")
	}
	if p.now().After(code.ExpiresAt) {
		return nil, New(ErrInvalidGrant, "authorization code has expired")
	}
	if code.ClientID != req.ClientID {
		return nil, New(ErrInvalidGrant, "authorization code was not issued to this client")
	}
	if code.RedirectURI != req.RedirectURI {
		return nil, New(ErrInvalidGrant, "redirect_uri does not match the authorization request")
	}

	c, authErr := p.authenticateClient(req.ClientID, req.ClientSecret, req.CodeVerifier, code.CodeChallenge, code.CodeChallengeMethod)
	if authErr != nil {
		return nil, authErr
	}

	return p.issueTokens(c, code.UserID, code.Scope)
}

func (p *Provider) tokenFromRefresh(req TokenRequest) (*TokenResponse, *Error) {
	if req.RefreshToken == "" {
		return nil, New(ErrInvalidRequest, "refresh_token is required")
	}
	rt, ok := p.store.GetRefreshToken(req.RefreshToken)
	if !ok {
		return nil, New(ErrInvalidGrant, "refresh token is invalid")
	}
	if !rt.ExpiresAt.IsZero() && p.now().After(rt.ExpiresAt) {
		return nil, New(ErrInvalidGrant, "refresh token has expired")
	}
	if rt.ClientID != req.ClientID {
		return nil, New(ErrInvalidGrant, "refresh token was not issued to this client")
	}

	c, authErr := p.authenticateClient(req.ClientID, req.ClientSecret, "", "", "")
	if authErr != nil {
		return nil, authErr
	}

	scope := rt.Scope
	if req.Scope != "" {
		if !scopeSubset(req.Scope, rt.Scope) {
			return nil, New(ErrInvalidScope, "requested scope exceeds the scope granted to the refresh token")
		}
		scope = req.Scope
	}

	return p.issueTokens(c, rt.UserID, scope)
}

func (p *Provider) issueTokens(c *Client, userID, scope string) (*TokenResponse, *Error) {
	accessValue, err := randomID(32)
	if err != nil {
		return nil, New(ErrServerError, err.Error())
	}
	lifespan := p.cfg.AccessTokenLifespan
	if lifespan <= 0 {
		lifespan = DefaultAccessTokenLifespan
	}
	at := &AccessToken{
		Token:     accessValue,
		ClientID:  c.ID,
		UserID:    userID,
		Scope:     scope,
		ExpiresAt: p.now().Add(lifespan),
	}
	p.store.PutAccessToken(at)

	resp := &TokenResponse{
		AccessToken: at.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(lifespan.Seconds()),
		Scope:       scope,
	}

	if p.cfg.IssueRefreshTokens {
		refreshValue, err := randomID(32)
		if err != nil {
			return nil, New(ErrServerError, err.Error())
		}
		rt := &RefreshToken{
			Token:    refreshValue,
			ClientID: c.ID,
			UserID:   userID,
			Scope:    scope,
		}
		p.store.PutRefreshToken(rt)
		resp.RefreshToken = rt.Token
	}

	return resp, nil
}

// Revoke implements RFC 7009: revoking an unknown token is success.
func (p *Provider) Revoke(token string) {
	if token == "" {
		return
	}
	p.store.DeleteAccessToken(token)
	p.store.DeleteRefreshToken(token)
}

// RotateSecretRequest is the POST /clients/:id/rotate-secret body.
type RotateSecretRequest struct {
	ClientID      string
	CurrentSecret string
}

// RotateSecretResponse carries the newly issued secret.
type RotateSecretResponse struct {
	ClientSecret          string `json:"client_secret"`
	ClientSecretExpiresAt int64  `json:"client_secret_expires_at"`
}

// RotateSecret implements POST /clients/:id/rotate-secret.
func (p *Provider) RotateSecret(req RotateSecretRequest) (*RotateSecretResponse, *Error) {
	c, ok := p.store.GetClient(req.ClientID)
	if !ok {
		return nil, New(ErrInvalidClient, "unknown client_id")
	}
	if c.Public {
		return nil, New(ErrInvalidClient, "public clients have no secret to rotate")
	}
	if subtle.ConstantTimeCompare([]byte(c.Secret), []byte(req.CurrentSecret)) != 1 {
		return nil, New(ErrInvalidClient, "current secret does not match")
	}
	newSecret, err := randomID(32)
	if err != nil {
		return nil, New(ErrServerError, err.Error())
	}
	c.Secret = newSecret
	c.SecretExpiresAt = time.Time{}
	p.store.PutClient(c)

	return &RotateSecretResponse{ClientSecret: newSecret}, nil
}

// Metadata describes the server for RFC 8414-style discovery, per spec.md
// §4.11 "lists supported grant types, response types, scopes, auth methods
// ..., and code challenge methods" plus §6's oauth.issuer/oauth.baseUrl
// config inputs, which RFC 8414 metadata is required to surface as an
// issuer identifier and an endpoint URL set.
type Metadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
}

// Metadata returns the provider's advertised capabilities.
func (p *Provider) Metadata() Metadata {
	issuer := p.cfg.Issuer
	if issuer == "" {
		issuer = p.cfg.BaseURL
	}
	base := strings.TrimSuffix(p.cfg.BaseURL, "/")
	return Metadata{
		Issuer:                            issuer,
		AuthorizationEndpoint:             base + "/authorize",
		TokenEndpoint:                     base + "/token",
		RevocationEndpoint:                base + "/revoke",
		RegistrationEndpoint:              base + "/register",
		GrantTypesSupported:               p.cfg.GrantTypes,
		ResponseTypesSupported:            p.cfg.ResponseTypes,
		ScopesSupported:                   p.cfg.Scopes,
		TokenEndpointAuthMethodsSupported: []string{"client_secret_post", "none"},
		CodeChallengeMethodsSupported:     []string{"plain", "S256"},
	}
}

func randomID(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func buildRedirect(redirectURI string, params map[string]string) string {
	var b strings.Builder
	b.WriteString(redirectURI)
	sep := "?"
	if strings.Contains(redirectURI, "?") {
		sep = "&"
	}
	for k, v := range params {
		if v == "" {
			continue
		}
		b.WriteString(sep)
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(url.QueryEscape(v))
		sep = "&"
	}
	return b.String()
}

func consentURI(req AuthorizeRequest) string {
	return buildRedirect("/consent", map[string]string{
		"client_id":             req.ClientID,
		"redirect_uri":          req.RedirectURI,
		"scope":                 req.Scope,
		"state":                 req.State,
		"code_challenge":        req.CodeChallenge,
		"code_challenge_method": req.CodeChallengeMethod,
	})
}

// scopeSubset reports whether every space-separated scope in requested is
// present in granted. An empty requested scope is always a subset.
func scopeSubset(requested, granted string) bool {
	if strings.TrimSpace(requested) == "" {
		return true
	}
	grantedSet := toScopeSet(granted)
	for _, s := range strings.Fields(requested) {
		if !grantedSet[s] {
			return false
		}
	}
	return true
}

func toScopeSet(scope string) map[string]bool {
	set := make(map[string]bool)
	for _, s := range strings.Fields(scope) {
		set[s] = true
	}
	return set
}
