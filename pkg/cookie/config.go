package cookie

import "net/http"

// Config holds the cookie secret and the defaults applied to every cookie.
type Config struct {
	// Secrets lists signing secrets, newest first. Older entries are only
	// used to read cookies written before a rotation.
	Secrets []string `env:"COOKIE_SECRETS,required" envSeparator:","`
	Domain  string   `env:"COOKIE_DOMAIN"`
	Secure  bool     `env:"COOKIE_SECURE" envDefault:"true"`
}

// NewFromConfig creates a Manager with HttpOnly, SameSite=Lax, Path=/ defaults.
func NewFromConfig(cfg Config, opts ...Option) (*Manager, error) {
	base := []Option{
		WithSecure(cfg.Secure),
		WithSameSite(http.SameSiteLaxMode),
	}
	if cfg.Domain != "" {
		base = append(base, WithDomain(cfg.Domain))
	}
	return New(cfg.Secrets, append(base, opts...)...)
}
