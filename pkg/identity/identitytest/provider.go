// Package identitytest runs an in-memory identity provider that speaks the
// subset of the REST API used by package identity.
package identitytest

import (
	"encoding/json"
	"maps"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jernejc/at-fe-sub003/pkg/identity"
	"github.com/jernejc/at-fe-sub003/pkg/idtoken/idtokentest"
)

const (
	APIKey = "test-api-key"

	// GoogleTokenPrefix marks fake Google id_tokens accepted by signInWithIdp:
	// "google:" followed by the account email.
	GoogleTokenPrefix = "google:"
)

// SentLink is a sign-in link the provider generated.
type SentLink struct {
	Email    string
	Link     string
	Returned bool
}

type user struct {
	uid     string
	email   string
	claims  map[string]any
	pending map[string]any
	seen    bool
}

type failure struct {
	code   string
	status int
}

// Provider is a fake identity provider backed by an idtokentest.Issuer, so
// the tokens it hands out verify against Issuer.Config().
type Provider struct {
	Server *httptest.Server
	Issuer *idtokentest.Issuer

	mu       sync.Mutex
	users    map[string]*user // by email
	codes    map[string]string
	refresh  map[string]string // refresh token -> email
	outbox   []SentLink
	failures map[string]failure
	calls    map[string]int
}

// New starts a fake provider that is closed when tb ends.
func New(tb testing.TB) *Provider {
	tb.Helper()

	p := &Provider{
		Issuer:   idtokentest.NewIssuer(tb, "lookacross-test"),
		users:    map[string]*user{},
		codes:    map[string]string{},
		refresh:  map[string]string{},
		failures: map[string]failure{},
		calls:    map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/accounts:sendOobCode", p.sendOobCode)
	mux.HandleFunc("POST /v1/accounts:signInWithEmailLink", p.signInWithEmailLink)
	mux.HandleFunc("POST /v1/accounts:signInWithIdp", p.signInWithIdp)
	mux.HandleFunc("POST /v1/token", p.token)
	p.Server = httptest.NewServer(p.guard(mux))
	tb.Cleanup(p.Server.Close)
	return p
}

// Config points an identity.Client at the fake.
func (p *Provider) Config() identity.Config {
	return identity.Config{
		APIKey:         APIKey,
		ProjectID:      p.Issuer.ProjectID,
		ToolkitURL:     p.Server.URL + "/v1",
		SecureTokenURL: p.Server.URL + "/v1",
		HTTPTimeout:    5 * time.Second,
	}
}

// SetClaims sets custom claims carried by every token issued to email from now on.
func (p *Provider) SetClaims(email string, claims map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.user(email).claims = claims
}

// SetPendingClaims sets custom claims that only appear on tokens obtained
// through a refresh, modelling claims that propagate after sign-in.
func (p *Provider) SetPendingClaims(email string, claims map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.user(email).pending = claims
}

// FailNext makes the next call to op ("accounts:sendOobCode", "token", ...)
// fail with the given provider error code and status.
func (p *Provider) FailNext(op, code string, status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op] = failure{code: code, status: status}
}

// Calls counts requests per op.
func (p *Provider) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// LastLink returns the most recent link generated for email.
func (p *Provider) LastLink(email string) (SentLink, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.outbox) - 1; i >= 0; i-- {
		if p.outbox[i].Email == email {
			return p.outbox[i], true
		}
	}
	return SentLink{}, false
}

// guard checks the API key, counts calls and applies queued failures.
func (p *Provider) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		op := strings.TrimPrefix(r.URL.Path, "/v1/")
		p.mu.Lock()
		p.calls[op]++
		f, failing := p.failures[op]
		delete(p.failures, op)
		p.mu.Unlock()

		if r.URL.Query().Get("key") != APIKey {
			writeError(w, http.StatusBadRequest, "API_KEY_INVALID")
			return
		}
		if failing {
			writeError(w, f.status, f.code)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *Provider) sendOobCode(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RequestType   string `json:"requestType"`
		Email         string `json:"email"`
		ContinueURL   string `json:"continueUrl"`
		ReturnOobLink bool   `json:"returnOobLink"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.RequestType != "EMAIL_SIGNIN" {
		writeError(w, http.StatusBadRequest, "INVALID_REQ_TYPE")
		return
	}
	if !strings.Contains(in.Email, "@") {
		writeError(w, http.StatusBadRequest, "INVALID_EMAIL")
		return
	}
	if in.ReturnOobLink && !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeError(w, http.StatusBadRequest, "INSUFFICIENT_PERMISSION")
		return
	}

	code := uuid.NewString()
	q := url.Values{}
	q.Set("apiKey", APIKey)
	q.Set("mode", "signIn")
	q.Set("oobCode", code)
	q.Set("continueUrl", in.ContinueURL)
	q.Set("lang", "en")
	link := p.Server.URL + "/__/auth/action?" + q.Encode()

	p.mu.Lock()
	p.codes[code] = in.Email
	p.outbox = append(p.outbox, SentLink{Email: in.Email, Link: link, Returned: in.ReturnOobLink})
	p.mu.Unlock()

	out := map[string]any{"kind": "identitytoolkit#GetOobConfirmationCodeResponse", "email": in.Email}
	if in.ReturnOobLink {
		out["oobLink"] = link
	}
	writeJSON(w, out)
}

func (p *Provider) signInWithEmailLink(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email   string `json:"email"`
		OOBCode string `json:"oobCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	email, ok := p.codes[in.OOBCode]
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_OOB_CODE")
		return
	}
	if !strings.EqualFold(email, in.Email) {
		writeError(w, http.StatusBadRequest, "INVALID_EMAIL")
		return
	}
	delete(p.codes, in.OOBCode)
	p.signedIn(w, email, "emailLink")
}

func (p *Provider) signInWithIdp(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PostBody   string `json:"postBody"`
		RequestURI string `json:"requestUri"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.RequestURI == "" {
		writeError(w, http.StatusBadRequest, "MISSING_REQUEST_URI")
		return
	}
	post, err := url.ParseQuery(in.PostBody)
	if err != nil || post.Get("providerId") != identity.ProviderGoogle {
		writeError(w, http.StatusBadRequest, "INVALID_PROVIDER_ID")
		return
	}
	email, ok := strings.CutPrefix(post.Get("id_token"), GoogleTokenPrefix)
	if !ok || email == "" {
		writeError(w, http.StatusBadRequest, "INVALID_IDP_RESPONSE")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.signedIn(w, email, identity.ProviderGoogle)
}

func (p *Provider) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "refresh_token" {
		writeError(w, http.StatusBadRequest, "INVALID_GRANT_TYPE")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	email, ok := p.refresh[r.PostForm.Get("refresh_token")]
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_REFRESH_TOKEN")
		return
	}
	u := p.users[email]
	claims := maps.Clone(u.claims)
	if claims == nil {
		claims = map[string]any{}
	}
	maps.Copy(claims, u.pending)

	writeJSON(w, map[string]any{
		"id_token":      p.Issuer.MustToken(u.uid, u.email, claims),
		"refresh_token": r.PostForm.Get("refresh_token"),
		"expires_in":    "3600",
		"token_type":    "Bearer",
		"user_id":       u.uid,
	})
}

// signedIn issues tokens for email. Callers hold p.mu.
func (p *Provider) signedIn(w http.ResponseWriter, email, method string) {
	u := p.user(email)
	isNew := !u.seen
	u.seen = true

	refresh := uuid.NewString()
	p.refresh[refresh] = email

	claims := maps.Clone(u.claims)
	if claims == nil {
		claims = map[string]any{}
	}
	claims["firebase"] = map[string]any{"sign_in_provider": method}

	writeJSON(w, map[string]any{
		"idToken":      p.Issuer.MustToken(u.uid, u.email, claims),
		"refreshToken": refresh,
		"expiresIn":    "3600",
		"localId":      u.uid,
		"email":        u.email,
		"isNewUser":    isNew,
	})
}

// user returns or creates the account for email. Callers hold p.mu.
func (p *Provider) user(email string) *user {
	u, ok := p.users[email]
	if !ok {
		u = &user{uid: "uid-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16], email: email}
		p.users[email] = u
	}
	return u
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": status, "message": code},
	})
}
