package account_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jernejc/at-fe-sub003/handler"
	"github.com/jernejc/at-fe-sub003/modules/account"
	"github.com/jernejc/at-fe-sub003/pkg/claims"
	"github.com/jernejc/at-fe-sub003/pkg/cookie"
	"github.com/jernejc/at-fe-sub003/pkg/emaillink"
	"github.com/jernejc/at-fe-sub003/pkg/identity"
	"github.com/jernejc/at-fe-sub003/pkg/identity/identitytest"
	"github.com/jernejc/at-fe-sub003/pkg/idtoken"
	"github.com/jernejc/at-fe-sub003/pkg/logger"
	"github.com/jernejc/at-fe-sub003/pkg/metrics"
	"github.com/jernejc/at-fe-sub003/pkg/session"
)

const opToken = "token"

type envelope[T any] struct {
	Data  T                    `json:"data"`
	Error *handler.ErrorDetail `json:"error"`
}

type harness struct {
	provider *identitytest.Provider
	metrics  *metrics.Metrics
	gate     *session.Gate
	router   http.Handler
}

// googleTokenEndpoint answers authorization-code exchanges. Code "good:<email>"
// yields a fake id_token for that email; anything else is invalid_grant.
func googleTokenEndpoint(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		code := r.PostForm.Get("code")
		w.Header().Set("Content-Type", "application/json")
		email, ok := strings.CutPrefix(code, "good:")
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "ya29.test",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     identitytest.GoogleTokenPrefix + email,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newHarness(t *testing.T, googleEnabled bool) *harness {
	t.Helper()

	p := identitytest.New(t)
	client := identity.New(p.Config())

	googleCfg := identity.GoogleConfig{
		RedirectURL: "https://app.lookacross.test" + account.CallbackPath,
		Scopes:      []string{"openid", "email"},
		StateTTL:    10 * time.Minute,
		AuthURL:     "https://accounts.test/o/oauth2/auth",
	}
	var httpClient *http.Client
	if googleEnabled {
		google := googleTokenEndpoint(t)
		googleCfg.ClientID = "client-id"
		googleCfg.ClientSecret = "secret"
		googleCfg.TokenURL = google.URL
		httpClient = google.Client()
	}
	fed := identity.NewFederated(googleCfg, client, httpClient)

	cookies, err := cookie.New([]string{strings.Repeat("k", 32)})
	require.NoError(t, err)

	sessionCfg := session.Config{
		Secret:     "session-secret-session-secret-32",
		TTL:        24 * time.Hour,
		Issuer:     "lookacross",
		Leeway:     5 * time.Second,
		CookieName: session.DefaultCookieName,
	}
	exchanger, err := session.NewExchanger(sessionCfg, idtoken.New(p.Issuer.Config()))
	require.NoError(t, err)
	transport := session.NewTransport(sessionCfg, cookies)

	gateCfg := session.DefaultGateConfig()
	gate, err := session.NewGate(gateCfg, exchanger, transport)
	require.NoError(t, err)

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	resolver := claims.NewResolver(claims.WithObserver(m.ClaimsResolved))
	completer := account.NewCompleter(resolver, exchanger, transport, account.WithObserver(m))

	linkCfg := emaillink.Config{
		AppURL:     "https://app.lookacross.test",
		VerifyPath: "/signin/verify",
		PendingTTL: time.Hour,
		Delivery:   emaillink.DeliveryProvider,
	}
	flow := emaillink.New(linkCfg, client, cookies)

	paths := account.PathsFromGate(gateCfg)
	errs := handler.NewErrorHandler(logger.Nop())

	return &harness{
		provider: p,
		metrics:  m,
		gate:     gate,
		router: account.Router(account.RouterOptions{
			SignIn:    account.NewSignInService(paths, cookies, fed.Enabled()),
			Session:   account.NewSessionService(paths, completer, transport, gate, errs, nil),
			Google:    account.NewGoogleService(paths, googleCfg, fed, cookies, completer, nil),
			EmailLink: account.NewEmailLinkService(paths, linkCfg, flow, cookies, completer, errs),
		}),
	}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

// session reads the session issued in rec, if any.
func (h *harness) session(rec *httptest.ResponseRecorder) (*session.Claims, bool) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	carry(rec, req)
	return h.gate.Load(req)
}

func (h *harness) signIns(method, outcome string) float64 {
	return testutil.ToFloat64(h.metrics.SignIns.WithLabelValues(method, outcome))
}

// carry copies live cookies set on rec onto req.
func carry(rec *httptest.ResponseRecorder, req *http.Request) {
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 && c.Value != "" {
			req.AddCookie(c)
		}
	}
}

func cleared(rec *httptest.ResponseRecorder, name string) bool {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name && c.MaxAge < 0 {
			return true
		}
	}
	return false
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env), rec.Body.String())
	return env
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// signInPage loads the sign-in page with the cookies left by rec.
func (h *harness) signInPage(t *testing.T, rec *httptest.ResponseRecorder) account.SignInPage {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/signin", nil)
	carry(rec, req)
	page := h.do(req)
	require.Equal(t, http.StatusOK, page.Code)
	return decode[account.SignInPage](t, page).Data
}

func TestSignInPage(t *testing.T) {
	t.Parallel()

	t.Run("lists methods and keeps a local callback", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, true)

		rec := h.do(httptest.NewRequest(http.MethodGet, "/signin?callbackUrl=%2Faccounts%2F42", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		page := decode[account.SignInPage](t, rec).Data
		assert.Equal(t, []string{"google", "email_link"}, page.Methods)
		assert.Equal(t, "/accounts/42", page.CallbackURL)
		assert.Empty(t, page.Message)
	})

	t.Run("foreign callback falls back to home", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, true)

		rec := h.do(httptest.NewRequest(http.MethodGet, "/signin?callbackUrl=https%3A%2F%2Fevil.test%2F", nil))
		page := decode[account.SignInPage](t, rec).Data
		assert.Equal(t, "/", page.CallbackURL)
	})

	t.Run("without google only email link is offered", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, false)

		rec := h.do(httptest.NewRequest(http.MethodGet, "/signin", nil))
		page := decode[account.SignInPage](t, rec).Data
		assert.Equal(t, []string{"email_link"}, page.Methods)
	})
}

func TestSessionService(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	partnerToken := h.provider.Issuer.Token(t, "uid-partner", "p@partner.example", map[string]any{
		"user_type":    "partner",
		"partner_id":   42,
		"partner_name": "Acme",
	})

	var issued *httptest.ResponseRecorder

	t.Run("exchange copies partner claims", func(t *testing.T) {
		rec := h.do(jsonRequest(http.MethodPost, "/api/auth/session", `{"idToken":"`+partnerToken+`"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		view := decode[account.SessionView](t, rec).Data
		assert.Equal(t, "uid-partner", view.UserID)
		assert.Equal(t, "p@partner.example", view.Email)
		assert.Equal(t, "partner", view.Role)
		require.NotNil(t, view.PartnerID)
		assert.Equal(t, int64(42), *view.PartnerID)
		require.NotNil(t, view.PartnerName)
		assert.Equal(t, "Acme", *view.PartnerName)
		assert.False(t, view.ExpiresAt.IsZero())

		claims, ok := h.session(rec)
		require.True(t, ok)
		assert.Equal(t, "partner", claims.Role)
		issued = rec
	})

	t.Run("form body is accepted", func(t *testing.T) {
		form := url.Values{"idToken": {partnerToken}}
		req := httptest.NewRequest(http.MethodPost, "/api/auth/session", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := h.do(req)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("invalid token is an opaque 401", func(t *testing.T) {
		for _, body := range []string{`{"idToken":"garbage"}`, `{"idToken":""}`, `{}`} {
			rec := h.do(jsonRequest(http.MethodPost, "/api/auth/session", body))
			require.Equal(t, http.StatusUnauthorized, rec.Code, body)
			env := decode[json.RawMessage](t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, "sign_in_failed", env.Error.Code)
		}
		foreign := h.provider.Issuer.ForeignToken(t, "uid-x", "x@example.com")
		rec := h.do(jsonRequest(http.MethodPost, "/api/auth/session", `{"idToken":"`+foreign+`"}`))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		rec := h.do(jsonRequest(http.MethodPost, "/api/auth/session", `{"idToken":"x","extra":1}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("current session", func(t *testing.T) {
		require.NotNil(t, issued)
		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		carry(issued, req)
		rec := h.do(req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "partner", decode[account.SessionView](t, rec).Data.Role)

		rec = h.do(httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthorized", decode[json.RawMessage](t, rec).Error.Code)
	})

	t.Run("sign out clears the cookie", func(t *testing.T) {
		require.NotNil(t, issued)
		req := httptest.NewRequest(http.MethodPost, "/api/auth/signout", nil)
		carry(issued, req)
		rec := h.do(req)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/signin", rec.Header().Get("Location"))
		assert.True(t, cleared(rec, session.DefaultCookieName))
	})

	assert.Equal(t, 2.0, h.signIns(metrics.MethodIDToken, metrics.OutcomeSuccess))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.SessionsIssued))
}

// startGoogle begins the federated flow and returns the state and the
// response carrying the state cookie.
func startGoogle(t *testing.T, h *harness, callbackURL string) (string, *httptest.ResponseRecorder) {
	t.Helper()
	rec := h.do(httptest.NewRequest(http.MethodGet, "/signin/google?callbackUrl="+url.QueryEscape(callbackURL), nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.test", loc.Host)
	assert.Equal(t, "client-id", loc.Query().Get("client_id"))
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	return state, rec
}

func googleCallback(h *harness, started *httptest.ResponseRecorder, query url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, account.CallbackPath+"?"+query.Encode(), nil)
	carry(started, req)
	return h.do(req)
}

func TestGoogleService(t *testing.T) {
	t.Parallel()

	t.Run("signs in and returns to the callback", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, true)
		h.provider.SetClaims("g@b.com", map[string]any{"user_type": "pdm"})

		state, started := startGoogle(t, h, "/accounts/42")
		rec := googleCallback(h, started, url.Values{"state": {state}, "code": {"good:g@b.com"}})
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/accounts/42", rec.Header().Get("Location"))
		assert.True(t, cleared(rec, account.StateCookie))

		claims, ok := h.session(rec)
		require.True(t, ok)
		assert.Equal(t, "g@b.com", claims.Email)
		assert.Equal(t, "pdm", claims.Role)
		assert.Equal(t, 1, h.provider.Calls(opToken))
		assert.Equal(t, 1.0, h.signIns(metrics.MethodGoogle, metrics.OutcomeSuccess))
		assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ClaimsRefresh.WithLabelValues("refreshed")))
		assert.Zero(t, testutil.ToFloat64(h.metrics.ClaimsRefresh.WithLabelValues("cached")))
	})

	t.Run("role on the sign-in token is replaced by the refreshed one", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, true)
		h.provider.SetClaims("g@b.com", map[string]any{"user_type": "pdm"})
		h.provider.SetPendingClaims("g@b.com", map[string]any{"user_type": "partner", "partner_id": 42})

		state, started := startGoogle(t, h, "")
		rec := googleCallback(h, started, url.Values{"state": {state}, "code": {"good:g@b.com"}})
		require.Equal(t, http.StatusSeeOther, rec.Code)

		claims, ok := h.session(rec)
		require.True(t, ok)
		assert.Equal(t, "partner", claims.Role)
		require.NotNil(t, claims.PartnerID)
		assert.Equal(t, int64(42), *claims.PartnerID)
		assert.Equal(t, 1, h.provider.Calls(opToken))
	})

	t.Run("late claims arrive after one refresh", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, true)
		h.provider.SetPendingClaims("g@b.com", map[string]any{"user_type": "partner", "partner_id": 7})

		state, started := startGoogle(t, h, "")
		rec := googleCallback(h, started, url.Values{"state": {state}, "code": {"good:g@b.com"}})
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))

		claims, ok := h.session(rec)
		require.True(t, ok)
		assert.Equal(t, "partner", claims.Role)
		require.NotNil(t, claims.PartnerID)
		assert.Equal(t, int64(7), *claims.PartnerID)
		assert.Equal(t, 1, h.provider.Calls(opToken))
		assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ClaimsRefresh.WithLabelValues("refreshed")))
	})

	t.Run("missing claims default to pdm", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, true)

		state, started := startGoogle(t, h, "")
		rec := googleCallback(h, started, url.Values{"state": {state}, "code": {"good:new@b.com"}})
		require.Equal(t, http.StatusSeeOther, rec.Code)

		claims, ok := h.session(rec)
		require.True(t, ok)
		assert.Equal(t, "pdm", claims.Role)
		assert.Nil(t, claims.PartnerID)
		assert.Equal(t, 1, h.provider.Calls(opToken))
		assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ClaimsRefresh.WithLabelValues("defaulted")))
	})

	t.Run("cancel returns silently", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, true)

		state, started := startGoogle(t, h, "/accounts/42")
		rec := googleCallback(h, started, url.Values{"state": {state}, "error": {"access_denied"}})
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/signin?callbackUrl=%2Faccounts%2F42", rec.Header().Get("Location"))
		_, ok := h.session(rec)
		assert.False(t, ok)

		assert.Empty(t, h.signInPage(t, rec).Message)
		assert.Equal(t, 1.0, h.signIns(metrics.MethodGoogle, metrics.OutcomeCancelled))
		assert.Zero(t, h.signIns(metrics.MethodGoogle, metrics.OutcomeFailure))
	})

	t.Run("state mismatch is rejected", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, true)

		_, started := startGoogle(t, h, "/accounts/42")
		rec := googleCallback(h, started, url.Values{"state": {"forged"}, "code": {"good:g@b.com"}})
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/signin", rec.Header().Get("Location"))
		_, ok := h.session(rec)
		assert.False(t, ok)
		assert.Equal(t, "Sign-in failed. Please try again.", h.signInPage(t, rec).Message)

		rec = googleCallback(h, httptest.NewRecorder(), url.Values{"state": {""}, "code": {"good:g@b.com"}})
		assert.Equal(t, "/signin", rec.Header().Get("Location"))
		assert.Equal(t, 2.0, h.signIns(metrics.MethodGoogle, metrics.OutcomeFailure))
	})

	t.Run("rejected code shows a message", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, true)

		state, started := startGoogle(t, h, "/accounts/42")
		rec := googleCallback(h, started, url.Values{"state": {state}, "code": {"bad"}})
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/signin?callbackUrl=%2Faccounts%2F42", rec.Header().Get("Location"))
		assert.Equal(t, "Sign-in failed. Please try again.", h.signInPage(t, rec).Message)
		assert.Equal(t, 1.0, h.signIns(metrics.MethodGoogle, metrics.OutcomeFailure))
	})

	t.Run("disabled provider", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, false)

		rec := h.do(httptest.NewRequest(http.MethodGet, "/signin/google", nil))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/signin", rec.Header().Get("Location"))
		assert.Equal(t, "The sign-in service is unavailable. Please try again.", h.signInPage(t, rec).Message)
	})
}

// verifyTarget is the verify endpoint as reached from an opened link.
func verifyTarget(t *testing.T, h *harness, email string) string {
	t.Helper()
	sent, ok := h.provider.LastLink(email)
	require.True(t, ok)
	u, err := url.Parse(sent.Link)
	require.NoError(t, err)
	return "/signin/verify?" + u.RawQuery
}

func sendLink(t *testing.T, h *harness, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := h.do(jsonRequest(http.MethodPost, "/signin/email", body))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	return rec
}

func TestEmailLinkService_SameDevice(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.provider.SetClaims("jane@example.com", map[string]any{
		"user_type":    "partner",
		"partner_id":   42,
		"partner_name": "Acme",
	})

	sent := sendLink(t, h, `{"email":"  Jane@Example.com ","callbackUrl":"/accounts/42"}`)
	resp := decode[account.SendLinkResponse](t, sent).Data
	assert.Equal(t, "jane@example.com", resp.Email)
	assert.True(t, resp.Sent)
	assert.Equal(t, 1.0, h.signIns(metrics.MethodEmailLink, metrics.OutcomeSent))

	req := httptest.NewRequest(http.MethodGet, verifyTarget(t, h, "jane@example.com"), nil)
	carry(sent, req)
	rec := h.do(req)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/accounts/42", rec.Header().Get("Location"))
	assert.True(t, cleared(rec, emaillink.PendingCookie))

	claims, ok := h.session(rec)
	require.True(t, ok)
	assert.Equal(t, "partner", claims.Role)
	require.NotNil(t, claims.PartnerName)
	assert.Equal(t, "Acme", *claims.PartnerName)
	assert.Equal(t, 1.0, h.signIns(metrics.MethodEmailLink, metrics.OutcomeSuccess))

	t.Run("reused link asks again and then fails", func(t *testing.T) {
		target := verifyTarget(t, h, "jane@example.com")
		rec := h.do(httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "needs-email", decode[account.VerifyPrompt](t, rec).Data.State)

		rec = h.do(jsonRequest(http.MethodPost, target, `{"email":"jane@example.com"}`))
		require.Equal(t, http.StatusGone, rec.Code)
		env := decode[json.RawMessage](t, rec)
		assert.Equal(t, "link_expired", env.Error.Code)
		assert.Equal(t, "This sign-in link has expired or already been used.", env.Error.Message)
	})
}

func TestEmailLinkService_CrossDevice(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	sendLink(t, h, `{"email":"jane@example.com"}`)
	target := verifyTarget(t, h, "jane@example.com")

	rec := h.do(httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "needs-email", decode[account.VerifyPrompt](t, rec).Data.State)

	rec = h.do(jsonRequest(http.MethodPost, target, `{"email":"john@example.com"}`))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decode[json.RawMessage](t, rec)
	assert.Equal(t, "email_mismatch", env.Error.Code)
	assert.Equal(t, "The email address doesn't match the original request.", env.Error.Message)

	form := url.Values{"email": {"JANE@example.com"}}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = h.do(req)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/", rec.Header().Get("Location"))

	claims, ok := h.session(rec)
	require.True(t, ok)
	assert.Equal(t, "jane@example.com", claims.Email)
	assert.Equal(t, "pdm", claims.Role)
}

func TestEmailLinkService_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		fail    func(p *identitytest.Provider)
		status  int
		code    string
		message string
	}{
		{
			name:    "invalid email",
			body:    `{"email":"jane"}`,
			status:  http.StatusUnprocessableEntity,
			code:    "invalid_email",
			message: "Please enter a valid email address.",
		},
		{
			name: "rate limited",
			body: `{"email":"jane@example.com"}`,
			fail: func(p *identitytest.Provider) {
				p.FailNext("accounts:sendOobCode", "TOO_MANY_ATTEMPTS_TRY_LATER", http.StatusBadRequest)
			},
			status:  http.StatusTooManyRequests,
			code:    "rate_limited",
			message: "Too many attempts. Please wait a moment and try again.",
		},
		{
			name: "provider down",
			body: `{"email":"jane@example.com"}`,
			fail: func(p *identitytest.Provider) {
				p.FailNext("accounts:sendOobCode", "INTERNAL", http.StatusInternalServerError)
			},
			status:  http.StatusServiceUnavailable,
			code:    "provider_unavailable",
			message: "The sign-in service is unavailable. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, true)
			if tt.fail != nil {
				tt.fail(h.provider)
			}

			rec := h.do(jsonRequest(http.MethodPost, "/signin/email", tt.body))
			require.Equal(t, tt.status, rec.Code)
			env := decode[json.RawMessage](t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.Equal(t, tt.message, env.Error.Message)
			assert.Equal(t, 1.0, h.signIns(metrics.MethodEmailLink, metrics.OutcomeFailure))
		})
	}

	t.Run("body in an unknown format binds nothing", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, true)

		req := httptest.NewRequest(http.MethodPost, "/signin/email", strings.NewReader("jane@example.com"))
		req.Header.Set("Content-Type", "text/plain")
		rec := h.do(req)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Zero(t, h.provider.Calls("accounts:sendOobCode"))
	})

	t.Run("not a sign-in link", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, true)

		rec := h.do(httptest.NewRequest(http.MethodGet, "/signin/verify?foo=bar", nil))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/signin", rec.Header().Get("Location"))
		assert.Equal(t, "Invalid or expired sign-in link.", h.signInPage(t, rec).Message)

		rec = h.do(jsonRequest(http.MethodPost, "/signin/verify", `{"email":"jane@example.com"}`))
		assert.Equal(t, http.StatusGone, rec.Code)
		body, _ := io.ReadAll(rec.Body)
		assert.Contains(t, string(body), "link_expired")
	})
}
