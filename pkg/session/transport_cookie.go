package session

import (
	"net/http"
	"time"

	"github.com/jernejc/at-fe-sub003/pkg/cookie"
)

// CookieTransport keeps the session token in an encrypted, HttpOnly cookie.
// Secure and Domain come from the cookie manager's defaults.
type CookieTransport struct {
	cookies    *cookie.Manager
	cookieName string
	options    []cookie.Option
}

// NewCookieTransport keeps the session token in an encrypted cookie.
func NewCookieTransport(cookies *cookie.Manager, cookieName string, opts ...cookie.Option) *CookieTransport {
	return &CookieTransport{
		cookies:    cookies,
		cookieName: cookieName,
		options:    opts,
	}
}

func (t *CookieTransport) GetToken(r *http.Request) (string, error) {
	token, err := t.cookies.GetEncrypted(r, t.cookieName)
	if err != nil || token == "" {
		return "", ErrSessionNotFound
	}
	return token, nil
}

// SetToken writes the cookie with Max-Age matching the token lifetime.
func (t *CookieTransport) SetToken(w http.ResponseWriter, token string, ttl time.Duration) error {
	opts := []cookie.Option{
		cookie.WithMaxAge(int(ttl.Seconds())),
		cookie.WithPath("/"),
		cookie.WithHTTPOnly(true),
		cookie.WithSameSite(http.SameSiteLaxMode),
	}
	opts = append(opts, t.options...)
	return t.cookies.SetEncrypted(w, t.cookieName, token, opts...)
}

func (t *CookieTransport) ClearToken(w http.ResponseWriter) error {
	t.cookies.Delete(w, t.cookieName)
	return nil
}
