package identity

import (
	"context"
	"sync"
	"time"

	"github.com/jernejc/at-fe-sub003/pkg/idtoken"
)

// refreshMargin renews cached tokens slightly before they expire.
const refreshMargin = 5 * time.Minute

// User is a provider-authenticated user. It holds the current identity token
// and renews it on demand.
type User struct {
	UID       string
	Email     string
	IsNewUser bool

	client *Client

	mu        sync.Mutex
	token     Token
	refreshed bool
}

// IDToken returns the current identity token. The cached token is returned
// unless it is about to expire or forceRefresh is set, in which case a new
// token is fetched from the provider.
func (u *User) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !forceRefresh && u.token.IDToken != "" && u.client.now().Add(refreshMargin).Before(u.token.Expiry) {
		return u.token.IDToken, nil
	}

	tok, err := u.client.Refresh(ctx, u.token.RefreshToken)
	if err != nil {
		return "", err
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = u.token.RefreshToken
	}
	u.token = *tok
	u.refreshed = true
	return tok.IDToken, nil
}

// Refreshed reports whether the current token came from a refresh rather
// than from the sign-in response.
func (u *User) Refreshed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.refreshed
}

// TokenResult is an identity token with its decoded claims.
type TokenResult struct {
	Token  string
	Claims *idtoken.Claims
}

// IDTokenResult is IDToken plus an unverified decode of the claims. The
// signature is checked by whoever the token is presented to.
func (u *User) IDTokenResult(ctx context.Context, forceRefresh bool) (*TokenResult, error) {
	raw, err := u.IDToken(ctx, forceRefresh)
	if err != nil {
		return nil, err
	}
	claims, err := idtoken.Decode(raw)
	if err != nil {
		return nil, err
	}
	return &TokenResult{Token: raw, Claims: claims}, nil
}
