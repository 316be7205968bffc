package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ProviderGoogle is the provider id of Google accounts.
const ProviderGoogle = "google.com"

// Federated is the interactive Google sign-in. The browser is redirected to
// Google, comes back to the callback with an authorization code, and the
// resulting Google id_token is exchanged for a provider user.
type Federated struct {
	conf   *oauth2.Config
	client *Client
	http   *http.Client
}

// NewFederated builds the Google flow on top of client. httpClient is used
// for the authorization-code exchange; nil means http.DefaultClient.
func NewFederated(cfg GoogleConfig, client *Client, httpClient *http.Client) *Federated {
	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	return &Federated{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		client: client,
		http:   httpClient,
	}
}

// Enabled reports whether OAuth client credentials are configured.
func (f *Federated) Enabled() bool { return f.conf.ClientID != "" }

// AuthURL is where the browser goes to pick a Google account.
func (f *Federated) AuthURL(state string) string {
	return f.conf.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// SignIn exchanges the authorization code, signs the user in with the
// provider and forces one token refresh. The token issued by signInWithIdp
// may predate claim assignment, so the returned user already holds a
// refreshed one (User.Refreshed reports true).
func (f *Federated) SignIn(ctx context.Context, code string) (*User, error) {
	if !f.Enabled() {
		return nil, ErrNotConfigured
	}
	if f.http != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.http)
	}

	tok, err := f.conf.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < 500 {
			return nil, fmt.Errorf("%w: code exchange: %w", ErrProvider, err)
		}
		return nil, fmt.Errorf("%w: code exchange: %w", ErrProviderUnavailable, err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return nil, fmt.Errorf("%w: no id_token in google response", ErrProvider)
	}

	user, err := f.client.SignInWithIdp(ctx, ProviderGoogle, idToken, f.conf.RedirectURL)
	if err != nil {
		return nil, err
	}
	if _, err := user.IDToken(ctx, true); err != nil {
		return nil, err
	}
	return user, nil
}

// CallbackError interprets the "error" parameter of the OAuth callback.
// Declines and dismissals are ErrPopupClosedOrDenied.
func CallbackError(code string) error {
	switch code {
	case "":
		return nil
	case "access_denied", "user_cancelled_login", "user_cancelled_authorize",
		"interaction_required", "login_required", "consent_required":
		return ErrPopupClosedOrDenied
	case "temporarily_unavailable", "server_error":
		return ErrProviderUnavailable
	default:
		return fmt.Errorf("%w: %s", ErrProvider, code)
	}
}
