package session

import (
	"net/http"
	"time"

	"github.com/jernejc/at-fe-sub003/pkg/cookie"
)

// Transport moves the session token between client and server.
type Transport interface {
	GetToken(r *http.Request) (string, error)
	SetToken(w http.ResponseWriter, token string, ttl time.Duration) error
	ClearToken(w http.ResponseWriter) error
}

// NewTransport builds the transport described by cfg: the encrypted cookie,
// plus the Authorization header when cfg.Bearer is set.
func NewTransport(cfg Config, cookies *cookie.Manager) Transport {
	name := cfg.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	ct := NewCookieTransport(cookies, name)
	if !cfg.Bearer {
		return ct
	}
	return NewCompositeTransport(ct, NewHeaderTransport("Authorization"))
}
