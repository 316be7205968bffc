// Package idtokentest issues identity tokens signed by a throwaway RSA key and
// serves the matching JWK set, for tests of code that verifies them.
package idtokentest

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MicahParks/jwkset"
	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/jernejc/at-fe-sub003/pkg/idtoken"
)

// KeyID is the kid of every token the Issuer signs.
const KeyID = "test-kid"

// Issuer plays the identity provider's signing side.
type Issuer struct {
	ProjectID string
	Server    *httptest.Server

	key        *rsa.PrivateKey
	keyFetches atomic.Int32
}

// NewIssuer starts the key set endpoint for a fresh signing key.
func NewIssuer(tb testing.TB, projectID string) *Issuer {
	tb.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("generate key: %v", err)
	}

	jwk, err := jwkset.NewJWKFromKey(&key.PublicKey, jwkset.JWKOptions{
		Metadata: jwkset.JWKMetadataOptions{ALG: jwkset.AlgRS256, KID: KeyID, USE: jwkset.UseSig},
	})
	if err != nil {
		tb.Fatalf("build jwk: %v", err)
	}
	set := jwkset.NewMemoryStorage()
	if err := set.KeyWrite(context.Background(), jwk); err != nil {
		tb.Fatalf("store jwk: %v", err)
	}
	body, err := set.JSONPublic(context.Background())
	if err != nil {
		tb.Fatalf("encode jwk set: %v", err)
	}

	iss := &Issuer{ProjectID: projectID, key: key}
	iss.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		iss.keyFetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	tb.Cleanup(iss.Server.Close)
	return iss
}

// Config points a verifier at this issuer.
func (i *Issuer) Config() idtoken.Config {
	return idtoken.Config{
		ProjectID:    i.ProjectID,
		KeysURL:      i.Server.URL,
		KeysRefresh:  time.Hour,
		IssuerPrefix: "https://securetoken.google.com/",
		ClockSkew:    5 * time.Second,
		HTTPTimeout:  5 * time.Second,
	}
}

// KeyFetches counts requests made to the key set endpoint.
func (i *Issuer) KeyFetches() int { return int(i.keyFetches.Load()) }

// Claims returns a valid claim set for uid and email. Extra entries are
// merged on top, so custom claims or overrides (e.g. "exp") can be supplied.
func (i *Issuer) Claims(uid, email string, extra map[string]any) gojwt.MapClaims {
	now := time.Now()
	c := gojwt.MapClaims{
		"iss":       "https://securetoken.google.com/" + i.ProjectID,
		"aud":       i.ProjectID,
		"sub":       uid,
		"user_id":   uid,
		"iat":       now.Add(-time.Minute).Unix(),
		"auth_time": now.Add(-time.Minute).Unix(),
		"exp":       now.Add(time.Hour).Unix(),
		"firebase":  map[string]any{"sign_in_provider": "password"},
	}
	if email != "" {
		c["email"] = email
		c["email_verified"] = true
	}
	for k, v := range extra {
		if v == nil {
			delete(c, k)
			continue
		}
		c[k] = v
	}
	return c
}

// Sign produces an RS256 token with the issuer's key id.
func (i *Issuer) Sign(tb testing.TB, claims gojwt.Claims) string {
	tb.Helper()
	t := gojwt.NewWithClaims(gojwt.SigningMethodRS256, claims)
	t.Header["kid"] = KeyID
	s, err := t.SignedString(i.key)
	if err != nil {
		tb.Fatalf("sign token: %v", err)
	}
	return s
}

// MustToken is Token for code running outside the test goroutine, such as
// fake servers. It panics if signing fails.
func (i *Issuer) MustToken(uid, email string, extra map[string]any) string {
	t := gojwt.NewWithClaims(gojwt.SigningMethodRS256, i.Claims(uid, email, extra))
	t.Header["kid"] = KeyID
	s, err := t.SignedString(i.key)
	if err != nil {
		panic("idtokentest: " + err.Error())
	}
	return s
}

// Token is shorthand for Sign(Claims(uid, email, extra)).
func (i *Issuer) Token(tb testing.TB, uid, email string, extra map[string]any) string {
	tb.Helper()
	return i.Sign(tb, i.Claims(uid, email, extra))
}

// ForeignToken signs valid-looking claims with a key the key set endpoint
// does not publish.
func (i *Issuer) ForeignToken(tb testing.TB, uid, email string) string {
	tb.Helper()
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("generate key: %v", err)
	}
	t := gojwt.NewWithClaims(gojwt.SigningMethodRS256, i.Claims(uid, email, nil))
	t.Header["kid"] = KeyID
	s, err := t.SignedString(other)
	if err != nil {
		tb.Fatalf("sign token: %v", err)
	}
	return s
}
