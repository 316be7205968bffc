package identity

import (
	"strings"
	"time"
)

// Config holds the public project settings used for provider REST calls and,
// optionally, service-account credentials for admin-only requests.
type Config struct {
	APIKey         string        `env:"FIREBASE_API_KEY"`
	AuthDomain     string        `env:"FIREBASE_AUTH_DOMAIN"`
	ProjectID      string        `env:"FIREBASE_PROJECT_ID"`
	ToolkitURL     string        `env:"IDENTITY_TOOLKIT_URL" envDefault:"https://identitytoolkit.googleapis.com/v1"`
	SecureTokenURL string        `env:"SECURE_TOKEN_URL" envDefault:"https://securetoken.googleapis.com/v1"`
	HTTPTimeout    time.Duration `env:"IDENTITY_HTTP_TIMEOUT" envDefault:"10s"`

	ClientEmail string `env:"FIREBASE_CLIENT_EMAIL"`
	PrivateKey  string `env:"FIREBASE_PRIVATE_KEY"`
}

// HasServiceAccount reports whether admin credentials are present.
func (c Config) HasServiceAccount() bool {
	return c.ClientEmail != "" && c.PrivateKey != ""
}

// NormalizePrivateKey turns escaped "\n" sequences, as commonly found in
// single-line environment values, into real newlines.
func NormalizePrivateKey(key string) string {
	return strings.ReplaceAll(key, `\n`, "\n")
}

// GoogleConfig configures the federated Google sign-in.
type GoogleConfig struct {
	ClientID     string        `env:"GOOGLE_OAUTH_CLIENT_ID"`
	ClientSecret string        `env:"GOOGLE_OAUTH_CLIENT_SECRET"`
	RedirectURL  string        `env:"GOOGLE_OAUTH_REDIRECT_URL" envDefault:"http://localhost:8080/api/auth/callback/google"`
	Scopes       []string      `env:"GOOGLE_OAUTH_SCOPES" envSeparator:"," envDefault:"openid,email,profile"`
	StateTTL     time.Duration `env:"GOOGLE_OAUTH_STATE_TTL" envDefault:"10m"`

	// Endpoint overrides, empty means Google's.
	AuthURL  string `env:"GOOGLE_OAUTH_AUTH_URL"`
	TokenURL string `env:"GOOGLE_OAUTH_TOKEN_URL"`
}
