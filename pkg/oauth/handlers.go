package oauth

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/mcp-funnel/pkg/logger"
)

// Handlers adapts a Provider to net/http, grounded on pkg/api/v1's
// chi-router-per-resource shape (e.g. secrets.go's SecretsRouter).
type Handlers struct {
	provider *Provider
}

// NewHandlers wraps provider for HTTP serving.
func NewHandlers(provider *Provider) *Handlers {
	return &Handlers{provider: provider}
}

// Router builds the chi.Router exposing every spec.md §4.11 endpoint.
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/register", h.handleRegister)
	r.Get("/authorize", h.handleAuthorize)
	r.Get("/consent", h.handleConsentGet)
	r.Post("/consent", h.handleConsentPost)
	r.Post("/token", h.handleToken)
	r.Post("/revoke", h.handleRevoke)
	r.Post("/clients/{id}/rotate-secret", h.handleRotateSecret)
	r.Get("/.well-known/oauth-authorization-server", h.handleMetadata)
	return r
}

func (h *Handlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOAuthError(w, New(ErrInvalidRequest, "malformed JSON body"))
		return
	}
	resp, oerr := h.provider.RegisterClient(req)
	if oerr != nil {
		writeOAuthError(w, oerr)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handlers) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := AuthorizeRequest{
		ResponseType:        q.Get("response_type"),
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	}
	result, oerr := h.provider.Authorize(req)
	if oerr != nil {
		writeOAuthError(w, oerr)
		return
	}
	if result.NeedsConsent {
		writeJSON(w, http.StatusOK, &Error{Code: ErrConsentRequired, ConsentURI: result.ConsentURI})
		return
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// consentPageTemplate is the HTML consent page served when the request
// Accept header prefers text/html over application/json.
var consentPageTemplate = template.Must(template.New("consent").Parse(`<!DOCTYPE html>
<html><head><title>Authorize access</title></head>
<body>
<h1>Authorize access</h1>
<p>Client <code>{{.ClientID}}</code> is requesting scope <code>{{.Scope}}</code>.</p>
<form method="post" action="/consent">
<input type="hidden" name="client_id" value="{{.ClientID}}">
<input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
<input type="hidden" name="scope" value="{{.Scope}}">
<input type="hidden" name="state" value="{{.State}}">
<input type="hidden" name="code_challenge" value="{{.CodeChallenge}}">
<input type="hidden" name="code_challenge_method" value="{{.CodeChallengeMethod}}">
<label><input type="checkbox" name="remember_decision" value="true"> Remember this decision</label><br>
<button type="submit" name="decision" value="approve">Approve</button>
<button type="submit" name="decision" value="deny">Deny</button>
</form>
</body></html>
`))

func (h *Handlers) handleConsentGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := struct {
		ClientID, RedirectURI, Scope, State, CodeChallenge, CodeChallengeMethod string
	}{
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	}

	if prefersHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := consentPageTemplate.Execute(w, data); err != nil {
			logger.Warnw("failed to render consent page", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *Handlers) handleConsentPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, New(ErrInvalidRequest, "malformed form body"))
		return
	}

	req := ConsentDecisionRequest{
		ClientID:            r.FormValue("client_id"),
		Decision:            ConsentDecision(r.FormValue("decision")),
		ApprovedScopes:      firstNonEmpty(r.FormValue("approved_scopes"), r.FormValue("scope")),
		RedirectURI:         r.FormValue("redirect_uri"),
		State:               r.FormValue("state"),
		CodeChallenge:       r.FormValue("code_challenge"),
		CodeChallengeMethod: r.FormValue("code_challenge_method"),
		RememberDecision:    r.FormValue("remember_decision") == "true",
	}
	if ttl := r.FormValue("ttl_seconds"); ttl != "" {
		if v, err := strconv.ParseInt(ttl, 10, 64); err == nil {
			req.TTLSeconds = v
		}
	}

	result, oerr := h.provider.Decide(req)
	if oerr != nil {
		writeOAuthError(w, oerr)
		return
	}

	if prefersHTML(r) {
		http.Redirect(w, r, result.RedirectURL, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect_url": result.RedirectURL})
}

func (h *Handlers) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, New(ErrInvalidRequest, "malformed form body"))
		return
	}
	clientID, clientSecret := clientCredentials(r)
	req := TokenRequest{
		GrantType:    r.FormValue("grant_type"),
		Code:         r.FormValue("code"),
		RedirectURI:  r.FormValue("redirect_uri"),
		ClientID:     firstNonEmpty(clientID, r.FormValue("client_id")),
		ClientSecret: firstNonEmpty(clientSecret, r.FormValue("client_secret")),
		CodeVerifier: r.FormValue("code_verifier"),
		RefreshToken: r.FormValue("refresh_token"),
		Scope:        r.FormValue("scope"),
	}

	resp, oerr := h.provider.Token(req)
	if oerr != nil {
		writeOAuthError(w, oerr)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, New(ErrInvalidRequest, "malformed form body"))
		return
	}
	h.provider.Revoke(r.FormValue("token"))
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) handleRotateSecret(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CurrentSecret string `json:"current_secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeOAuthError(w, New(ErrInvalidRequest, "malformed JSON body"))
		return
	}
	resp, oerr := h.provider.RotateSecret(RotateSecretRequest{
		ClientID:      chi.URLParam(r, "id"),
		CurrentSecret: body.CurrentSecret,
	})
	if oerr != nil {
		writeOAuthError(w, oerr)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) handleMetadata(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.provider.Metadata())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnw("failed to encode response body", "error", err)
	}
}

func writeOAuthError(w http.ResponseWriter, oerr *Error) {
	writeJSON(w, HTTPStatus(oerr.Code), oerr)
}

func prefersHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// clientCredentials extracts RFC 6749 §2.3.1 HTTP Basic client credentials,
// when present, for the client_secret_basic auth method.
func clientCredentials(r *http.Request) (id, secret string) {
	id, secret, ok := r.BasicAuth()
	if !ok {
		return "", ""
	}
	return id, secret
}
