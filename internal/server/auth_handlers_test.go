package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bordkit/auth-front/internal/claims"
	"github.com/bordkit/auth-front/internal/config"
	"github.com/bordkit/auth-front/internal/cookie"
	"github.com/bordkit/auth-front/internal/flow"
	"github.com/bordkit/auth-front/internal/idp"
	"github.com/bordkit/auth-front/internal/provision"
	"github.com/bordkit/auth-front/internal/registry"
	"github.com/bordkit/auth-front/internal/session"
	"github.com/bordkit/auth-front/internal/statetoken"
)

func testHandler(t *testing.T) (http.Handler, *config.Config, statetoken.Codec) {
	t.Helper()

	cfg := &config.Config{
		BaseURL:         "http://app.test",
		Secret:          "0123456789abcdef0123456789abcdef",
		StateTTL:        5 * time.Minute,
		OutboundTimeout: 5 * time.Second,
		DesktopScheme:   "bordkit",
		Provider: config.Provider{
			Name:             "okta",
			ClientID:         "client-1",
			ClientSecret:     "secret-1",
			AuthorizationURL: "https://idp.example.com/authorize",
			TokenURL:         "https://idp.example.com/token",
			UserInfoURL:      "https://idp.example.com/userinfo",
			UsePKCE:          true,
		},
	}

	codec := statetoken.NewCodec([]byte(cfg.Secret), cfg.StateTTL)
	client := idp.NewClient(&cfg.Provider, cfg.BaseURL+"/auth/okta"+CallbackSuffix, nil)
	resolver := claims.NewResolver(
		&cfg.Provider,
		claims.NewUserInfoSource(cfg.Provider.UserInfoURL, client.HTTPClient),
		claims.NewEnrichmentSource(&cfg.Provider, nil),
		nil,
	)
	bridge := provision.NewBridge(registry.NewMemoryStore(), provision.StubProvisioner{}, cfg.Provider.Name)
	establisher := session.NewCookieEstablisher([]byte(cfg.Secret), time.Hour, cfg.DesktopScheme)

	orch := flow.New(cfg, codec, idp.NewEndpointResolver(&cfg.Provider, nil), client, resolver, bridge, establisher)
	return BuildHandler(cfg, orch), cfg, codec
}

func TestSignInHandlerRedirects(t *testing.T) {
	handler, _, codec := testHandler(t)

	r := httptest.NewRequest(http.MethodGet, "/auth/okta?team=t1", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "idp.example.com", loc.Host)

	var stateCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == cookie.StateCookie {
			stateCookie = c
		}
	}
	require.NotNil(t, stateCookie)
	stateCtx, err := codec.Verify(stateCookie.Value, loc.Query().Get("state"))
	require.NoError(t, err)
	assert.Equal(t, "t1", stateCtx.TeamID)
	assert.Equal(t, statetoken.VariantWeb, stateCtx.ClientVariant)
}

func TestSignInHandlerDesktopVariant(t *testing.T) {
	handler, _, codec := testHandler(t)

	r := httptest.NewRequest(http.MethodGet, "/auth/okta?client=desktop", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)

	var stateCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == cookie.StateCookie {
			stateCookie = c
		}
	}
	require.NotNil(t, stateCookie)
	stateCtx, err := codec.Verify(stateCookie.Value, loc.Query().Get("state"))
	require.NoError(t, err)
	assert.Equal(t, statetoken.VariantDesktop, stateCtx.ClientVariant)
}

func TestUnknownProviderIs404(t *testing.T) {
	handler, _, _ := testHandler(t)

	for _, path := range []string{"/auth/google", "/auth/google.callback"} {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestCallbackWithoutStateRedirectsWithNotice(t *testing.T) {
	handler, _, _ := testHandler(t)

	r := httptest.NewRequest(http.MethodGet, "/auth/okta.callback?code=c1&state=forged", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "state-mismatch", loc.Query().Get("notice"))
}

func TestCallbackRoutePaths(t *testing.T) {
	handler, _, _ := testHandler(t)

	// The callback lives at the dotted suffix path, for both GET and form
	// POST. A slash-separated variant does not exist.
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		r := httptest.NewRequest(method, "/auth/okta.callback?code=c1&state=s1", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusFound, w.Code, method)
	}

	r := httptest.NewRequest(http.MethodGet, "/auth/okta/callback?code=c1&state=s1", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSignInHandlerRejectsPost(t *testing.T) {
	handler, _, _ := testHandler(t)

	r := httptest.NewRequest(http.MethodPost, "/auth/okta", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	handler, _, _ := testHandler(t)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSecurityHeaders(t *testing.T) {
	handler, _, _ := testHandler(t)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}
