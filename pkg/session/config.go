package session

import (
	"fmt"
	"strings"
	"time"
)

// DefaultCookieName is the cookie the session token travels in.
const DefaultCookieName = "lookacross.session-token"

// Config controls how session tokens are minted.
type Config struct {
	Secret     string        `env:"SESSION_SECRET,required"`
	TTL        time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	Issuer     string        `env:"SESSION_ISSUER" envDefault:"lookacross"`
	Leeway     time.Duration `env:"SESSION_LEEWAY" envDefault:"30s"`
	CookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"lookacross.session-token"`
	// Bearer additionally accepts "Authorization: Bearer <token>" and returns
	// the token in that header on sign-in, for non-browser clients.
	Bearer bool `env:"SESSION_BEARER" envDefault:"false"`
}

// GateConfig decides which paths the Gate lets through.
type GateConfig struct {
	PublicPaths      []string `env:"SESSION_PUBLIC_PATHS" envDefault:"/signin,/api/auth,/static,/favicon.ico,/healthz,/readyz,/metrics" envSeparator:","`
	StaticExtensions []string `env:"SESSION_STATIC_EXTENSIONS" envDefault:".svg,.png,.jpg,.jpeg,.gif,.webp,.ico,.css,.js" envSeparator:","`
	SignInPath       string   `env:"SESSION_SIGNIN_PATH" envDefault:"/signin"`
	HomePath         string   `env:"SESSION_HOME_PATH" envDefault:"/"`
	// PDMOnlyPrefixes is empty as shipped; partner sessions requesting a
	// listed prefix are sent to HomePath.
	PDMOnlyPrefixes []string `env:"SESSION_PDM_ONLY_PREFIXES" envSeparator:","`
}

// DefaultGateConfig mirrors the envDefault tags.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		PublicPaths:      []string{"/signin", "/api/auth", "/static", "/favicon.ico", "/healthz", "/readyz", "/metrics"},
		StaticExtensions: []string{".svg", ".png", ".jpg", ".jpeg", ".gif", ".webp", ".ico", ".css", ".js"},
		SignInPath:       "/signin",
		HomePath:         "/",
	}
}

func (c GateConfig) validate() error {
	if !strings.HasPrefix(c.SignInPath, "/") {
		return fmt.Errorf("%w: sign-in path %q must be absolute", ErrInvalidGateConfig, c.SignInPath)
	}
	if !strings.HasPrefix(c.HomePath, "/") {
		return fmt.Errorf("%w: home path %q must be absolute", ErrInvalidGateConfig, c.HomePath)
	}
	if !matchPrefix(c.PublicPaths, c.SignInPath) {
		return fmt.Errorf("%w: sign-in path %q is not public", ErrInvalidGateConfig, c.SignInPath)
	}
	if matchPrefix(c.PDMOnlyPrefixes, c.HomePath) {
		return fmt.Errorf("%w: home path %q is restricted to pdm", ErrInvalidGateConfig, c.HomePath)
	}
	return nil
}

// matchPrefix reports whether p equals one of prefixes or lies below one of
// them on a segment boundary ("/api/auth" matches "/api/auth/session" but
// not "/api/authors").
func matchPrefix(prefixes []string, p string) bool {
	for _, prefix := range prefixes {
		prefix = strings.TrimSpace(prefix)
		if prefix == "" {
			continue
		}
		if prefix == "/" {
			return true
		}
		prefix = strings.TrimSuffix(prefix, "/")
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}
