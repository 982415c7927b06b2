package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/mbark223/aipromptbuilder-sub002/csrf"
	"github.com/mbark223/aipromptbuilder-sub002/identity"
	"github.com/mbark223/aipromptbuilder-sub002/identity/identityfake"
	"github.com/mbark223/aipromptbuilder-sub002/identity/oidcidp"
	"github.com/mbark223/aipromptbuilder-sub002/identity/oidcidp/oidcidptest"
	"github.com/mbark223/aipromptbuilder-sub002/identity/revocation"
	"github.com/mbark223/aipromptbuilder-sub002/internal/config"
	apperrors "github.com/mbark223/aipromptbuilder-sub002/internal/errors"
	"github.com/mbark223/aipromptbuilder-sub002/server"
	"github.com/mbark223/aipromptbuilder-sub002/token"
	"github.com/stretchr/testify/require"
)

const (
	testIDToken   = "id-token-1"
	testUID       = "user-1"
	testCSRFToken = "0d8f5e3a-7c2b-4f51-9a57-1c0e3b7f2a10"
)

type testFixture struct {
	provider *identityfake.FakeProvider
	server   *server.Server
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	t.Setenv("ENV", "DEV")

	f := &testFixture{provider: identityfake.NewFakeProvider()}
	f.provider.AddIDToken(testIDToken, identity.Identity{
		UID:      testUID,
		Email:    "user-1@example.com",
		AuthTime: time.Now(),
	})

	s, err := server.New(config.New(), f.provider)
	require.NoError(t, err)
	f.server = s
	return f
}

func TestNewRejectsUnsupportedSessionLifetime(t *testing.T) {
	t.Setenv("ENV", "DEV")
	t.Setenv("SESSION_LIFETIME", "720h")

	_, err := server.New(config.New(), identityfake.NewFakeProvider())
	require.ErrorIs(t, err, apperrors.ErrInvalidLifetime)
}

func (f *testFixture) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, r)
	return w
}

// sessionRequest builds a session API call carrying the given CSRF pair.
func sessionRequest(method, body, csrfCookie, csrfHeader string) *http.Request {
	r := httptest.NewRequest(method, server.RouteAPISession, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set(csrf.MarkerHeader, csrf.MarkerValue)
	if csrfHeader != "" {
		r.Header.Set(csrf.HeaderName, csrfHeader)
	}
	if csrfCookie != "" {
		r.AddCookie(&http.Cookie{Name: "csrf_token", Value: csrfCookie})
	}
	return r
}

func findCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (f *testFixture) login(t *testing.T) string {
	t.Helper()
	w := f.do(sessionRequest(http.MethodPost, `{"idToken":"`+testIDToken+`"}`, testCSRFToken, testCSRFToken))
	require.Equal(t, http.StatusOK, w.Code)
	c := findCookie(t, w, "session")
	require.NotNil(t, c)
	return c.Value
}

func TestCreateSessionRoundTrip(t *testing.T) {
	f := setupTestFixture(t)

	w := f.do(sessionRequest(http.MethodPost, `{"idToken":"`+testIDToken+`","redirect":"/foo"}`, testCSRFToken, testCSRFToken))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		OK       bool   `json:"ok"`
		Redirect string `json:"redirect"`
		Location string `json:"location"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.True(t, body.OK)
	require.Equal(t, "/foo", body.Redirect)
	require.Equal(t, "/foo", body.Location)

	c := findCookie(t, w, "session")
	require.NotNil(t, c)
	require.NotEmpty(t, c.Value)
	require.True(t, c.HttpOnly)
	require.False(t, c.Secure)
	require.Equal(t, http.SameSiteLaxMode, c.SameSite)
	require.Equal(t, "/", c.Path)
	require.Equal(t, int((5 * 24 * time.Hour).Seconds()), c.MaxAge)
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestCreateSessionCSRFMismatchSkipsProvider(t *testing.T) {
	f := setupTestFixture(t)

	w := f.do(sessionRequest(http.MethodPost, `{"idToken":"`+testIDToken+`"}`, "abc", "xyz"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Nil(t, findCookie(t, w, "session"))
	require.Zero(t, f.provider.Calls())

	r := sessionRequest(http.MethodPost, `{"idToken":"`+testIDToken+`"}`, testCSRFToken, testCSRFToken)
	r.Header.Del(csrf.MarkerHeader)
	w = f.do(r)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Zero(t, f.provider.Calls())
}

func TestCreateSessionRejections(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "malformed json", body: `{"idToken":`, status: http.StatusBadRequest},
		{name: "empty body", body: ``, status: http.StatusBadRequest},
		{name: "trailing data", body: `{"idToken":"` + testIDToken + `"} {}`, status: http.StatusBadRequest},
		{name: "non-string id token", body: `{"idToken":42}`, status: http.StatusBadRequest},
		{name: "non-string redirect", body: `{"idToken":"` + testIDToken + `","redirect":{"to":"/"}}`, status: http.StatusBadRequest},
		{name: "missing id token", body: `{"redirect":"/foo"}`, status: http.StatusBadRequest},
		{name: "unknown id token", body: `{"idToken":"forged"}`, status: http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setupTestFixture(t)
			w := f.do(sessionRequest(http.MethodPost, tc.body, testCSRFToken, testCSRFToken))
			require.Equal(t, tc.status, w.Code)
			require.Nil(t, findCookie(t, w, "session"))
			require.Zero(t, f.provider.CreateSessionCalls())

			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			require.NotContains(t, body["error"], "csrf")
		})
	}
}

func TestCreateSessionOpenRedirect(t *testing.T) {
	f := setupTestFixture(t)
	w := f.do(sessionRequest(http.MethodPost, `{"idToken":"`+testIDToken+`","redirect":"//evil.com"}`, testCSRFToken, testCSRFToken))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"redirect":"/"`)
}

func TestCreateSessionEscapesNavigationTarget(t *testing.T) {
	tests := []struct {
		name     string
		redirect string
		location string
	}{
		{name: "backslash", redirect: `/\evil.com`, location: "/%5Cevil.com"},
		{name: "tab", redirect: "/\t/evil.com", location: "/%09/evil.com"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setupTestFixture(t)
			payload, err := json.Marshal(map[string]string{"idToken": testIDToken, "redirect": tc.redirect})
			require.NoError(t, err)

			w := f.do(sessionRequest(http.MethodPost, string(payload), testCSRFToken, testCSRFToken))
			require.Equal(t, http.StatusOK, w.Code)
			var body struct {
				Redirect string `json:"redirect"`
				Location string `json:"location"`
			}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			require.Equal(t, tc.redirect, body.Redirect)
			require.Equal(t, tc.location, body.Location)
		})
	}
}

func TestLoginWithSessionEscapesTarget(t *testing.T) {
	f := setupTestFixture(t)
	r := httptest.NewRequest(http.MethodGet, "/login?redirect=%2F%09%2Fevil.com", nil)
	r.AddCookie(&http.Cookie{Name: "session", Value: f.login(t)})
	w := f.do(r)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/%09/evil.com", w.Header().Get("Location"))
}

func TestRevokeSessionAlwaysSucceeds(t *testing.T) {
	tests := []struct {
		name    string
		cookie  func(t *testing.T, f *testFixture) string
		revokes int64
	}{
		{name: "no cookie", cookie: func(*testing.T, *testFixture) string { return "" }},
		{name: "garbage cookie", cookie: func(*testing.T, *testFixture) string { return "garbage" }},
		{name: "valid cookie", cookie: func(t *testing.T, f *testFixture) string { return f.login(t) }, revokes: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setupTestFixture(t)
			value := tc.cookie(t, f)

			r := sessionRequest(http.MethodDelete, "", testCSRFToken, testCSRFToken)
			if value != "" {
				r.AddCookie(&http.Cookie{Name: "session", Value: value})
			}
			w := f.do(r)
			require.Equal(t, http.StatusOK, w.Code)
			require.JSONEq(t, `{"ok":true}`, w.Body.String())

			cleared := findCookie(t, w, "session")
			require.NotNil(t, cleared)
			require.Empty(t, cleared.Value)
			require.Negative(t, cleared.MaxAge)
			require.True(t, cleared.Expires.Before(time.Now()))
			require.Equal(t, tc.revokes, f.provider.RevokeCalls())
		})
	}
}

func TestRevokeSessionProviderFailure(t *testing.T) {
	f := setupTestFixture(t)
	value := f.login(t)
	f.provider.VerifySessionErr = context.DeadlineExceeded

	r := sessionRequest(http.MethodDelete, "", testCSRFToken, testCSRFToken)
	r.AddCookie(&http.Cookie{Name: "session", Value: value})
	w := f.do(r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, findCookie(t, w, "session").Value)
}

func TestRevokeSessionRequiresCSRF(t *testing.T) {
	f := setupTestFixture(t)
	value := f.login(t)

	r := sessionRequest(http.MethodDelete, "", "abc", "xyz")
	r.AddCookie(&http.Cookie{Name: "session", Value: value})
	w := f.do(r)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Nil(t, findCookie(t, w, "session"))
	require.Zero(t, f.provider.RevokeCalls())
}

func TestCSRFTokenEndpoint(t *testing.T) {
	f := setupTestFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, server.RouteAPICSRF, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	c := findCookie(t, w, "csrf_token")
	require.NotNil(t, c)
	require.Equal(t, c.Value, body["csrfToken"])
	require.False(t, c.HttpOnly)

	r := httptest.NewRequest(http.MethodGet, server.RouteAPICSRF, nil)
	r.AddCookie(c)
	w = f.do(r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), c.Value)
	require.Nil(t, findCookie(t, w, "csrf_token"))
}

func TestGateAndGuard(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("anonymous dashboard", func(t *testing.T) {
		w := f.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil))
		require.Equal(t, http.StatusFound, w.Code)
		require.Equal(t, "/login?redirect=%2Fdashboard", w.Header().Get("Location"))
	})

	t.Run("forged cookie passes the gate but not the guard", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		r.AddCookie(&http.Cookie{Name: "session", Value: "forged"})
		w := f.do(r)
		require.Equal(t, http.StatusFound, w.Code)
		require.Equal(t, "/login?redirect=%2Fdashboard", w.Header().Get("Location"))
		cleared := findCookie(t, w, "session")
		require.NotNil(t, cleared)
		require.Negative(t, cleared.MaxAge)
	})

	t.Run("login page issues csrf cookie", func(t *testing.T) {
		w := f.do(httptest.NewRequest(http.MethodGet, "/login?redirect=%2Fdashboard", nil))
		require.Equal(t, http.StatusOK, w.Code)
		c := findCookie(t, w, "csrf_token")
		require.NotNil(t, c)
		require.Contains(t, w.Body.String(), c.Value)
		require.Contains(t, w.Body.String(), `data-redirect="/dashboard"`)
	})

	t.Run("login with session redirects away", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/login?redirect=%2Freports", nil)
		r.AddCookie(&http.Cookie{Name: "session", Value: f.login(t)})
		w := f.do(r)
		require.Equal(t, http.StatusFound, w.Code)
		require.Equal(t, "/reports", w.Header().Get("Location"))
	})

	t.Run("login redirecting to itself renders", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/login?redirect=%2Flogin", nil)
		r.AddCookie(&http.Cookie{Name: "session", Value: f.login(t)})
		w := f.do(r)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("api me", func(t *testing.T) {
		w := f.do(httptest.NewRequest(http.MethodGet, server.RouteAPIMe, nil))
		require.Equal(t, http.StatusUnauthorized, w.Code)

		r := httptest.NewRequest(http.MethodGet, server.RouteAPIMe, nil)
		r.AddCookie(&http.Cookie{Name: "session", Value: f.login(t)})
		w = f.do(r)
		require.Equal(t, http.StatusOK, w.Code)
		var p identity.Principal
		require.NoError(t, json.NewDecoder(w.Body).Decode(&p))
		require.Equal(t, testUID, p.UID)
	})
}

func TestOperationalRoutes(t *testing.T) {
	f := setupTestFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, server.RouteHealthz, nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "SAMEORIGIN", w.Header().Get("X-Frame-Options"))

	f.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	w = f.do(httptest.NewRequest(http.MethodGet, server.RouteMetrics, nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "gateway_gate_decisions_total")

	w = f.do(httptest.NewRequest(http.MethodGet, "/static/css/app.css", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Header().Get("Cache-Control"))
}

// TestEndToEnd drives the gateway over HTTP with the OIDC provider and an
// in-process issuer.
func TestEndToEnd(t *testing.T) {
	t.Setenv("ENV", "DEV")
	issuer := oidcidptest.NewIssuer(t, time.Now())

	signer, err := token.NewHMACSigner("end-to-end-secret-0123456789abcdef", "session")
	require.NoError(t, err)
	codec := token.NewCodec(signer, token.WithAudience(issuer.ClientID), token.WithNowFunc(issuer.Now))
	store := revocation.NewMemoryStore().WithClock(issuer.Now)
	provider := oidcidp.New(issuer.Verifier(), codec, store, oidcidp.WithNowFunc(issuer.Now))

	s, err := server.New(config.New(), provider)
	require.NoError(t, err)
	ts := httptest.NewServer(s)
	defer ts.Close()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	base, err := url.Parse(ts.URL)
	require.NoError(t, err)

	get := func(path string) *http.Response {
		resp, err := client.Get(ts.URL + path)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}
	send := func(method, body string) *http.Response {
		req, err := http.NewRequest(method, ts.URL+server.RouteAPISession, bytes.NewBufferString(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(csrf.MarkerHeader, csrf.MarkerValue)
		for _, c := range jar.Cookies(base) {
			if c.Name == "csrf_token" {
				req.Header.Set(csrf.HeaderName, c.Value)
			}
		}
		resp, err := client.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	// Anonymous visit is sent to the login route.
	resp := get("/reports")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/login?redirect=%2Freports", resp.Header.Get("Location"))

	// The login route issues the CSRF cookie.
	resp = get(resp.Header.Get("Location"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Exchange a fresh ID token for a session.
	resp = send(http.MethodPost, `{"idToken":"`+issuer.IDToken(t, "user-42")+`","redirect":"/reports"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var created struct {
		OK       bool   `json:"ok"`
		Redirect string `json:"redirect"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.Equal(t, "/reports", created.Redirect)

	var sessionValue string
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			require.True(t, c.HttpOnly)
			sessionValue = c.Value
		}
	}
	require.NotEmpty(t, sessionValue)

	// The guard verifies the new cookie and serves the page.
	resp = get("/reports")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(page), "Reports")
	require.Contains(t, string(page), "user-42@example.com")

	// Logging out clears the cookie and revokes the credential.
	issuer.Advance(time.Second)
	resp = send(http.MethodDelete, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get("/reports")
	require.Equal(t, http.StatusFound, resp.StatusCode)

	// A replayed copy of the old cookie is refused by the guard.
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/reports", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "session", Value: sessionValue})
	replay, err := (&http.Client{CheckRedirect: client.CheckRedirect}).Do(req)
	require.NoError(t, err)
	defer replay.Body.Close()
	require.Equal(t, http.StatusFound, replay.StatusCode)
	require.Equal(t, "/login?redirect=%2Freports", replay.Header.Get("Location"))
}

func TestRejectedCookieEndsAtLoginPage(t *testing.T) {
	tests := []struct {
		name   string
		cookie func(t *testing.T, f *testFixture) string
	}{
		{name: "garbage cookie", cookie: func(*testing.T, *testFixture) string { return "garbage" }},
		{name: "revoked on another device", cookie: func(t *testing.T, f *testFixture) string {
			value := f.login(t)
			later := time.Now().Add(time.Second)
			f.provider.WithClock(func() time.Time { return later })
			require.NoError(t, f.provider.RevokeRefreshTokens(context.Background(), testUID))
			return value
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setupTestFixture(t)
			value := tc.cookie(t, f)

			ts := httptest.NewServer(f.server)
			defer ts.Close()
			base, err := url.Parse(ts.URL)
			require.NoError(t, err)
			jar, err := cookiejar.New(nil)
			require.NoError(t, err)
			jar.SetCookies(base, []*http.Cookie{{Name: "session", Value: value, Path: "/"}})
			client := &http.Client{
				Jar: jar,
				CheckRedirect: func(*http.Request, []*http.Request) error {
					return http.ErrUseLastResponse
				},
			}

			target := "/reports"
			var hops []string
			for i := 0; i < 5; i++ {
				resp, err := client.Get(ts.URL + target)
				require.NoError(t, err)
				resp.Body.Close()
				hops = append(hops, target)
				if resp.StatusCode != http.StatusFound {
					require.Equal(t, http.StatusOK, resp.StatusCode)
					break
				}
				target = resp.Header.Get("Location")
			}
			require.Equal(t, []string{"/reports", "/login?redirect=%2Freports"}, hops)
			for _, c := range jar.Cookies(base) {
				require.NotEqual(t, "session", c.Name)
			}
		})
	}
}
