package oauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *Provider) {
	t.Helper()
	p := NewProvider(NewMemoryStore(), DefaultConfig())
	h := NewHandlers(p)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv, p
}

func TestHandlersRegisterEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	body := strings.NewReader(`{"redirect_uris":["https://app.example.com/cb"]}`)
	resp, err := http.Post(srv.URL+"/register", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var out RegisterClientResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out.ClientID)
	assert.NotEmpty(t, out.ClientSecret)
}

func TestHandlersRegisterRejectsMissingRedirectURIs(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/register", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var oerr Error
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&oerr))
	assert.Equal(t, ErrInvalidRequest, oerr.Code)
}

func registerViaHTTP(t *testing.T, srv *httptest.Server, redirectURI string) RegisterClientResponse {
	t.Helper()
	body := strings.NewReader(`{"redirect_uris":["` + redirectURI + `"]}`)
	resp, err := http.Post(srv.URL+"/register", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out RegisterClientResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHandlersAuthorizeReturnsConsentRequired(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	client := registerViaHTTP(t, srv, "https://app.example.com/cb")

	q := url.Values{
		"response_type": {"code"},
		"client_id":     {client.ClientID},
		"redirect_uri":  {"https://app.example.com/cb"},
		"scope":         {"mcp"},
	}
	resp, err := http.Get(srv.URL + "/authorize?" + q.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body Error
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, ErrConsentRequired, body.Code)
	assert.NotEmpty(t, body.ConsentURI)
}

func TestHandlersConsentPostJSONThenTokenExchange(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	client := registerViaHTTP(t, srv, "https://app.example.com/cb")

	form := url.Values{
		"client_id":    {client.ClientID},
		"decision":     {"approve"},
		"scope":        {"mcp"},
		"redirect_uri": {"https://app.example.com/cb"},
		"state":        {"xyz"},
	}
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/consent", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	redirectURL := decoded["redirect_url"]
	require.Contains(t, redirectURL, "code=")

	code, err := extractQueryParam(redirectURL, "code")
	require.NoError(t, err)

	tokenForm := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {"https://app.example.com/cb"},
		"client_id":     {client.ClientID},
		"client_secret": {client.ClientSecret},
	}
	tokenResp, err := http.PostForm(srv.URL+"/token", tokenForm)
	require.NoError(t, err)
	defer tokenResp.Body.Close()
	assert.Equal(t, http.StatusOK, tokenResp.StatusCode)

	var tok TokenResponse
	require.NoError(t, json.NewDecoder(tokenResp.Body).Decode(&tok))
	assert.NotEmpty(t, tok.AccessToken)
	assert.Equal(t, "no-store", tokenResp.Header.Get("Cache-Control"))
}

func TestHandlersConsentGetHTMLNegotiation(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/consent?client_id=c1", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/html")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestHandlersRevokeUnknownTokenReturns200(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	resp, err := http.PostForm(srv.URL+"/revoke", url.Values{"token": {"never-issued"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandlersMetadataEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/.well-known/oauth-authorization-server")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var md Metadata
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&md))
	assert.Contains(t, md.ResponseTypesSupported, "code")
}

func TestHandlersRotateSecretEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	client := registerViaHTTP(t, srv, "https://app.example.com/cb")

	body := strings.NewReader(`{"current_secret":"` + client.ClientSecret + `"}`)
	resp, err := http.Post(srv.URL+"/clients/"+client.ClientID+"/rotate-secret", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out RotateSecretResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEqual(t, client.ClientSecret, out.ClientSecret)
}
