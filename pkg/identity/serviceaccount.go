package identity

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
)

var adminScopes = []string{
	"https://www.googleapis.com/auth/identitytoolkit",
	"https://www.googleapis.com/auth/cloud-platform",
}

// ServiceAccount builds a token source from the service-account client email
// and private key. It returns nil when either is missing, which leaves the
// client in user-only mode.
func ServiceAccount(ctx context.Context, cfg Config) oauth2.TokenSource {
	if !cfg.HasServiceAccount() {
		return nil
	}
	conf := &jwt.Config{
		Email:      cfg.ClientEmail,
		PrivateKey: []byte(NormalizePrivateKey(cfg.PrivateKey)),
		Scopes:     adminScopes,
		TokenURL:   google.JWTTokenURL,
	}
	return oauth2.ReuseTokenSource(nil, conf.TokenSource(ctx))
}
