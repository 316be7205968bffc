package cookie_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jernejc/at-fe-sub003/pkg/cookie"
)

const (
	secretA = "this-is-a-very-long-secret-key-32-chars-long"
	secretB = "this-is-old-very-long-secret-key-32-chars-ok"
)

// replay copies the cookies written to rec onto a fresh request.
func replay(rec *httptest.ResponseRecorder) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		secrets []string
		wantErr error
	}{
		{"no secrets", nil, cookie.ErrNoSecret},
		{"blank secrets", []string{"", "  "}, cookie.ErrNoSecret},
		{"too short", []string{"short"}, cookie.ErrSecretTooShort},
		{"valid", []string{secretA}, nil},
		{"rotation", []string{secretA, secretB}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := cookie.New(tt.secrets)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestManager_Attributes(t *testing.T) {
	t.Parallel()

	m, err := cookie.NewFromConfig(cookie.Config{Secrets: []string{secretA}, Secure: true, Domain: "example.com"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	m.Set(rec, "plain", "v", cookie.WithMaxAge(60))
	c := rec.Result().Cookies()[0]
	assert.True(t, c.Secure)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, "example.com", c.Domain)
	assert.Equal(t, 60, c.MaxAge)

	rec = httptest.NewRecorder()
	m.Delete(rec, "plain")
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestManager_Signed(t *testing.T) {
	t.Parallel()

	m, err := cookie.New([]string{secretA})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	m.SetSigned(rec, "state", "abc|/dashboard")
	got, err := m.GetSigned(replay(rec), "state")
	require.NoError(t, err)
	assert.Equal(t, "abc|/dashboard", got)

	t.Run("tampered", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		v := rec.Result().Cookies()[0].Value
		r.AddCookie(&http.Cookie{Name: "state", Value: "Zm9v" + v[strings.Index(v, "."):]})
		_, err := m.GetSigned(r, "state")
		assert.ErrorIs(t, err, cookie.ErrInvalidSignature)
	})

	t.Run("renamed", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "other", Value: rec.Result().Cookies()[0].Value})
		_, err := m.GetSigned(r, "other")
		assert.ErrorIs(t, err, cookie.ErrInvalidSignature)
	})

	t.Run("malformed", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "state", Value: "nodot"})
		_, err := m.GetSigned(r, "state")
		assert.ErrorIs(t, err, cookie.ErrInvalidFormat)
	})
}

func TestManager_Encrypted(t *testing.T) {
	t.Parallel()

	m, err := cookie.New([]string{secretA})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, m.SetEncrypted(rec, "session", "token-value"))
	assert.NotContains(t, rec.Result().Cookies()[0].Value, "token-value")

	got, err := m.GetEncrypted(replay(rec), "session")
	require.NoError(t, err)
	assert.Equal(t, "token-value", got)

	_, err = m.GetEncrypted(httptest.NewRequest(http.MethodGet, "/", nil), "session")
	assert.ErrorIs(t, err, cookie.ErrCookieNotFound)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "other", Value: rec.Result().Cookies()[0].Value})
	_, err = m.GetEncrypted(r, "other")
	assert.ErrorIs(t, err, cookie.ErrDecryptionFailed)
}

func TestManager_Rotation(t *testing.T) {
	t.Parallel()

	old, err := cookie.New([]string{secretB})
	require.NoError(t, err)
	rotated, err := cookie.New([]string{secretA, secretB})
	require.NoError(t, err)
	fresh, err := cookie.New([]string{secretA})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, old.SetEncrypted(rec, "session", "v"))

	got, err := rotated.GetEncrypted(replay(rec), "session")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	_, err = fresh.GetEncrypted(replay(rec), "session")
	assert.ErrorIs(t, err, cookie.ErrDecryptionFailed)
}

func TestManager_JSONAndFlash(t *testing.T) {
	t.Parallel()

	type pending struct {
		Email string `json:"email"`
	}

	m, err := cookie.New([]string{secretA})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, m.SetJSON(rec, "emailForSignIn", pending{Email: "a@b.co"}))
	var got pending
	require.NoError(t, m.GetJSON(replay(rec), "emailForSignIn", &got))
	assert.Equal(t, "a@b.co", got.Email)

	rec = httptest.NewRecorder()
	require.NoError(t, m.SetFlash(rec, "error", "Sign-in failed. Please try again."))

	out := httptest.NewRecorder()
	var msg string
	require.NoError(t, m.GetFlash(out, replay(rec), "error", &msg))
	assert.Equal(t, "Sign-in failed. Please try again.", msg)
	require.Len(t, out.Result().Cookies(), 1)
	assert.Equal(t, -1, out.Result().Cookies()[0].MaxAge)

	out = httptest.NewRecorder()
	err = m.GetFlash(out, httptest.NewRequest(http.MethodGet, "/", nil), "error", &msg)
	assert.ErrorIs(t, err, cookie.ErrCookieNotFound)
	assert.Empty(t, out.Result().Cookies())
}
