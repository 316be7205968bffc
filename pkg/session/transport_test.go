package session_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jernejc/at-fe-sub003/pkg/cookie"
	"github.com/jernejc/at-fe-sub003/pkg/session"
)

func newCookies(t *testing.T) *cookie.Manager {
	t.Helper()
	m, err := cookie.New([]string{strings.Repeat("t", 32)}, cookie.WithSecure(true))
	require.NoError(t, err)
	return m
}

func TestCookieTransport(t *testing.T) {
	t.Parallel()

	tr := session.NewCookieTransport(newCookies(t), session.DefaultCookieName)

	rec := httptest.NewRecorder()
	require.NoError(t, tr.SetToken(rec, "jwt-value", time.Hour))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, session.DefaultCookieName, c.Name)
	assert.NotContains(t, c.Value, "jwt-value")
	assert.Equal(t, 3600, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	got, err := tr.GetToken(req)
	require.NoError(t, err)
	assert.Equal(t, "jwt-value", got)

	_, err = tr.GetToken(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	cleared := httptest.NewRecorder()
	require.NoError(t, tr.ClearToken(cleared))
	require.Len(t, cleared.Result().Cookies(), 1)
	assert.Negative(t, cleared.Result().Cookies()[0].MaxAge)
}

func TestHeaderTransport(t *testing.T) {
	t.Parallel()

	tr := session.NewHeaderTransport("Authorization")

	rec := httptest.NewRecorder()
	require.NoError(t, tr.SetToken(rec, "jwt-value", time.Hour))
	assert.Equal(t, "Bearer jwt-value", rec.Header().Get("Authorization"))
	assert.NotEmpty(t, rec.Header().Get("Authorization-Expires"))

	for header, want := range map[string]string{
		"Bearer jwt-value": "jwt-value",
		"bearer jwt-value": "jwt-value",
		"Basic abc":        "",
		"":                 "",
		"Bearer   ":        "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		got, err := tr.GetToken(req)
		if want == "" {
			assert.ErrorIs(t, err, session.ErrSessionNotFound, header)
			continue
		}
		require.NoError(t, err, header)
		assert.Equal(t, want, got)
	}

	require.NoError(t, tr.ClearToken(rec))
	assert.Empty(t, rec.Header().Get("Authorization"))
}

func TestNewTransport(t *testing.T) {
	t.Parallel()

	cookies := newCookies(t)

	t.Run("cookie only", func(t *testing.T) {
		t.Parallel()

		tr := session.NewTransport(testConfig(), cookies)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer abc")
		_, err := tr.GetToken(req)
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})

	t.Run("cookie and bearer", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		cfg.Bearer = true
		tr := session.NewTransport(cfg, cookies)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer abc")
		got, err := tr.GetToken(req)
		require.NoError(t, err)
		assert.Equal(t, "abc", got)

		rec := httptest.NewRecorder()
		require.NoError(t, tr.SetToken(rec, "minted", time.Hour))
		assert.Equal(t, "Bearer minted", rec.Header().Get("Authorization"))
		assert.Len(t, rec.Result().Cookies(), 1)
	})
}

func TestSafeCallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw, want string
	}{
		{"", "/"},
		{"/accounts/42?tab=1", "/accounts/42?tab=1"},
		{"  /campaigns ", "/campaigns"},
		{"https://evil.example/", "/"},
		{"//evil.example", "/"},
		{"/\\evil.example", "/"},
		{"javascript:alert(1)", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, session.SafeCallback(tt.raw, "/"), tt.raw)
	}
}
