package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/metrics"
)

type testServer struct {
	h     http.Handler
	links *fakeLinks
	auth  *fakeAuth
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	reg := prometheus.NewRegistry()
	ts := &testServer{links: newFakeLinks(), auth: newFakeAuth()}
	ts.h = NewRouter(Deps{
		Config:   testConfig(),
		Links:    ts.links,
		Auth:     ts.auth,
		Logger:   silentLogger(),
		Metrics:  metrics.New(reg),
		Gatherer: reg,
	})
	return ts
}

func (ts *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ts.h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) APIError {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp.Error
}

func TestLinks_CreateListDeactivate(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/api/v1/links", "good", `{"url":"https://example.com/page","daysToExpire":3}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	var created LinkResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	assert.Equal(t, "abc123", created.ID)
	assert.Equal(t, "http://sho.rt/abc123", created.ShortLink)
	assert.Equal(t, "u1", created.OwnerID)

	rr = ts.do(http.MethodGet, "/api/v1/links", "good", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Links []LinkResponse `json:"links"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	require.Len(t, list.Links, 1)

	rr = ts.do(http.MethodDelete, "/api/v1/links/abc123", "good", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.do(http.MethodDelete, "/api/v1/links/abc123", "good", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLinks_RequireAuthentication(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/api/v1/links", "", `{"url":"https://example.com"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "unauthenticated", decodeError(t, rr).Code)

	rr = ts.do(http.MethodGet, "/api/v1/links", "stolen", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLinks_CreateRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"url":`},
		{"missing url", `{}`},
		{"not a url", `{"url":"not a url"}`},
		{"unknown field", `{"url":"https://example.com","title":"x"}`},
		{"negative ttl", `{"url":"https://example.com","daysToExpire":-1}`},
		{"ttl outside policy", `{"url":"https://example.com","daysToExpire":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(http.MethodPost, "/api/v1/links", "good", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
			assert.Equal(t, "invalid_request", decodeError(t, rr).Code)
		})
	}
}

func TestRedirect(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated,
		ts.do(http.MethodPost, "/api/v1/links", "good", `{"url":"https://example.com/x"}`).Code)

	req := httptest.NewRequest(http.MethodGet, "/abc123", nil)
	req.Header.Set("X-Request-Id", "req-1")
	rr := httptest.NewRecorder()
	ts.h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "https://example.com/x", rr.Header().Get("Location"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	rr = ts.do(http.MethodGet, "/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	apiErr := decodeError(t, rr)
	assert.Equal(t, "not_found", apiErr.Code)
	assert.NotEmpty(t, apiErr.RequestID)
}

func TestRedirect_StorageFailureHidesCause(t *testing.T) {
	ts := newTestServer(t)
	ts.links.err = errors.New("disk on fire")

	rr := ts.do(http.MethodGet, "/abc123", "", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "disk on fire")
}

func TestAuthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/api/v1/auth/sign-up", "", `{"email":"a@example.com","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var session SessionResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&session))
	assert.Equal(t, "new-user", session.ID)
	assert.Equal(t, "a1", session.AccessToken)
	assert.Equal(t, "r1", session.RefreshToken)

	rr = ts.do(http.MethodPost, "/api/v1/auth/sign-in", "", `{"email":"a@example.com","password":"wrongpass1"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid_credentials", decodeError(t, rr).Code)

	rr = ts.do(http.MethodPost, "/api/v1/auth/sign-in", "", `{"email":"a@example.com","password":"secret123"}`)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = ts.do(http.MethodPost, "/api/v1/auth/refresh", "", `{"refreshToken":"r1"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var pair domain.TokenPair
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&pair))
	assert.Equal(t, "a3", pair.AccessToken)

	rr = ts.do(http.MethodPost, "/api/v1/auth/refresh", "", `{"refreshToken":"bogus"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSignUp_EmailTaken(t *testing.T) {
	ts := newTestServer(t)
	ts.auth.err = domain.ErrEmailTaken

	rr := ts.do(http.MethodPost, "/api/v1/auth/sign-up", "", `{"email":"a@example.com","password":"secret123"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestMeAndSignOut(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodGet, "/api/v1/me", "good", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var id domain.Identity
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&id))
	assert.Equal(t, "u1", id.UserID)

	rr = ts.do(http.MethodPost, "/api/v1/auth/sign-out", "good", `{"refreshToken":"r-good"}`)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{"good", "r-good"}, ts.auth.signedOut)

	rr = ts.do(http.MethodGet, "/api/v1/me", "good", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	ts.do(http.MethodGet, "/missing", "", "")
	rr = ts.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "shortlink_http_requests_total"))
}

func TestGoogleLogin_SetsStateCookie(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodGet, "/auth/google/login", "", "")
	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), "accounts.google.com")

	var state *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "oauthstate" {
			state = c
		}
	}
	require.NotNil(t, state)
	assert.Contains(t, rr.Header().Get("Location"), "state="+url.QueryEscape(state.Value))
}

func TestGoogleCallback_StateMismatch(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=other&code=x", nil)
	req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "expected"})
	rr := httptest.NewRecorder()
	ts.h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
