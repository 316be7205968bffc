package emaillink_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jernejc/at-fe-sub003/pkg/clientip"
	"github.com/jernejc/at-fe-sub003/pkg/cookie"
	"github.com/jernejc/at-fe-sub003/pkg/email"
	"github.com/jernejc/at-fe-sub003/pkg/emaillink"
	"github.com/jernejc/at-fe-sub003/pkg/identity"
	"github.com/jernejc/at-fe-sub003/pkg/identity/identitytest"
	"github.com/jernejc/at-fe-sub003/pkg/ratelimiter"
)

const opSendOobCode = "accounts:sendOobCode"

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendEmail(ctx context.Context, params email.SendEmailParams) error {
	return m.Called(ctx, params).Error(0)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	provider *identitytest.Provider
	flow     *emaillink.Flow
	clock    *clock
}

func testConfig() emaillink.Config {
	return emaillink.Config{
		AppURL:       "https://app.lookacross.test",
		VerifyPath:   "/signin/verify",
		PendingTTL:   time.Hour,
		Delivery:     emaillink.DeliveryProvider,
		RateCapacity: 3,
		RateInterval: time.Minute,
	}
}

func newHarness(t *testing.T, clientOpts []identity.Option, opts ...emaillink.Option) *harness {
	t.Helper()

	p := identitytest.New(t)
	cookies, err := cookie.New([]string{strings.Repeat("k", 32)})
	require.NoError(t, err)

	clk := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	opts = append([]emaillink.Option{emaillink.WithClock(clk.Now)}, opts...)

	return &harness{
		provider: p,
		flow:     emaillink.New(testConfig(), identity.New(p.Config(), clientOpts...), cookies, opts...),
		clock:    clk,
	}
}

// carry copies live cookies set on rec onto req.
func carry(rec *httptest.ResponseRecorder, req *http.Request) {
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 && c.Value != "" {
			req.AddCookie(c)
		}
	}
}

func pendingCleared(rec *httptest.ResponseRecorder) bool {
	for _, c := range rec.Result().Cookies() {
		if c.Name == emaillink.PendingCookie && c.MaxAge < 0 {
			return true
		}
	}
	return false
}

// verifyRequest simulates the provider redirecting the opened link to the
// verify endpoint with the action parameters.
func verifyRequest(t *testing.T, link string) *http.Request {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodGet, "/signin/verify?"+u.RawQuery, nil)
}

func TestFlow_SameDevice(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()

	sendRec := httptest.NewRecorder()
	pending, err := h.flow.Send(ctx, sendRec, "  Jane@Example.com ", "/accounts/42")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", pending.Email)
	assert.Equal(t, "/accounts/42", pending.CallbackURL)
	assert.Equal(t, h.clock.Now(), pending.RequestedAt)

	sent, ok := h.provider.LastLink("jane@example.com")
	require.True(t, ok)
	assert.False(t, sent.Returned)

	req := verifyRequest(t, sent.Link)
	carry(sendRec, req)

	v, err := h.flow.Begin(req)
	require.NoError(t, err)
	assert.Equal(t, emaillink.StateReady, v.State)
	require.NotNil(t, v.Pending)
	assert.Equal(t, "jane@example.com", v.Pending.Email)
	assert.Equal(t, "/accounts/42", v.Pending.CallbackURL)
	assert.True(t, strings.HasPrefix(v.Link, "https://app.lookacross.test/signin/verify?"))

	doneRec := httptest.NewRecorder()
	user, err := h.flow.Complete(ctx, doneRec, req, "", v.Link)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", user.Email)
	assert.True(t, user.IsNewUser)
	assert.True(t, pendingCleared(doneRec))

	t.Run("link cannot be reused", func(t *testing.T) {
		_, err := h.flow.Complete(ctx, httptest.NewRecorder(), req, "jane@example.com", v.Link)
		assert.ErrorIs(t, err, identity.ErrExpiredOrUsedLink)
	})
}

func TestFlow_CrossDevice(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.flow.Send(ctx, httptest.NewRecorder(), "jane@example.com", "")
	require.NoError(t, err)
	sent, ok := h.provider.LastLink("jane@example.com")
	require.True(t, ok)

	req := verifyRequest(t, sent.Link)
	v, err := h.flow.Begin(req)
	require.NoError(t, err)
	assert.Equal(t, emaillink.StateNeedsEmail, v.State)
	assert.Nil(t, v.Pending)

	_, err = h.flow.Complete(ctx, httptest.NewRecorder(), req, "", v.Link)
	assert.ErrorIs(t, err, identity.ErrInvalidEmail)

	_, err = h.flow.Complete(ctx, httptest.NewRecorder(), req, "john@example.com", v.Link)
	assert.ErrorIs(t, err, identity.ErrEmailMismatch)

	user, err := h.flow.Complete(ctx, httptest.NewRecorder(), req, "JANE@example.com", v.Link)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", user.Email)
}

func TestFlow_Send(t *testing.T) {
	t.Parallel()

	t.Run("invalid email never reaches the provider", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, nil)
		for _, addr := range []string{"", "jane", "jane@localhost", strings.Repeat("a", 250) + "@example.com"} {
			rec := httptest.NewRecorder()
			_, err := h.flow.Send(context.Background(), rec, addr, "")
			assert.ErrorIs(t, err, identity.ErrInvalidEmail, addr)
			assert.Empty(t, rec.Result().Cookies())
		}
		assert.Zero(t, h.provider.Calls(opSendOobCode))
	})

	t.Run("foreign callback is dropped", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, nil)
		for _, cb := range []string{"https://evil.example/", "//evil.example", "javascript:alert(1)"} {
			p, err := h.flow.Send(context.Background(), httptest.NewRecorder(), "jane@example.com", cb)
			require.NoError(t, err)
			assert.Empty(t, p.CallbackURL, cb)
		}
	})

	t.Run("provider rate limit", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, nil)
		h.provider.FailNext(opSendOobCode, "TOO_MANY_ATTEMPTS_TRY_LATER", http.StatusBadRequest)

		rec := httptest.NewRecorder()
		_, err := h.flow.Send(context.Background(), rec, "jane@example.com", "")
		assert.ErrorIs(t, err, identity.ErrRateLimited)
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("local rate limit per address", func(t *testing.T) {
		t.Parallel()

		clk := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
		store := ratelimiter.NewMemoryStore(ratelimiter.WithClock(clk.Now))
		t.Cleanup(store.Close)
		bucket, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 2, RefillRate: 1, RefillInterval: time.Minute})
		require.NoError(t, err)
		h := newHarness(t, nil, emaillink.WithRateLimiter(bucket), emaillink.WithClock(clk.Now))

		ctx := context.Background()
		for range 2 {
			_, err := h.flow.Send(ctx, httptest.NewRecorder(), "jane@example.com", "")
			require.NoError(t, err)
		}
		_, err = h.flow.Send(ctx, httptest.NewRecorder(), "Jane@example.com", "")
		assert.ErrorIs(t, err, identity.ErrRateLimited)
		assert.Equal(t, 2, h.provider.Calls(opSendOobCode))

		_, err = h.flow.Send(ctx, httptest.NewRecorder(), "john@example.com", "")
		assert.NoError(t, err)

		clk.Advance(time.Minute)
		_, err = h.flow.Send(ctx, httptest.NewRecorder(), "jane@example.com", "")
		assert.NoError(t, err)
	})

	t.Run("local rate limit per client address", func(t *testing.T) {
		t.Parallel()

		store := ratelimiter.NewMemoryStore()
		t.Cleanup(store.Close)
		bucket, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 2, RefillRate: 1, RefillInterval: time.Hour})
		require.NoError(t, err)
		var logs bytes.Buffer
		h := newHarness(t, nil,
			emaillink.WithIPRateLimiter(bucket),
			emaillink.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
		)

		ctx := clientip.WithContext(context.Background(), "198.51.100.4")
		for _, addr := range []string{"a@example.com", "b@example.com"} {
			_, err := h.flow.Send(ctx, httptest.NewRecorder(), addr, "")
			require.NoError(t, err)
		}
		_, err = h.flow.Send(ctx, httptest.NewRecorder(), "c@example.com", "")
		assert.ErrorIs(t, err, identity.ErrRateLimited)
		assert.Contains(t, logs.String(), "sign-in link rate limited")
		assert.Contains(t, logs.String(), "client_ip=198.51.100.4")
		assert.Contains(t, logs.String(), "component=emaillink")

		other := clientip.WithContext(context.Background(), "198.51.100.5")
		_, err = h.flow.Send(other, httptest.NewRecorder(), "c@example.com", "")
		assert.NoError(t, err)
	})
}

func TestFlow_AppDelivery(t *testing.T) {
	t.Parallel()

	admin := identity.WithServiceAccount(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "admin-token"}))

	t.Run("link is mailed by the app", func(t *testing.T) {
		t.Parallel()

		sender := &MockSender{}
		h := newHarness(t, []identity.Option{admin}, emaillink.WithSender(sender))

		var body string
		sender.On("SendEmail", mock.Anything, mock.MatchedBy(func(p email.SendEmailParams) bool {
			body = p.BodyHTML
			return p.SendTo == "jane@example.com" && p.Tag == "signin-link"
		})).Return(nil).Once()

		_, err := h.flow.Send(context.Background(), httptest.NewRecorder(), "jane@example.com", "")
		require.NoError(t, err)
		sender.AssertExpectations(t)

		sent, ok := h.provider.LastLink("jane@example.com")
		require.True(t, ok)
		assert.True(t, sent.Returned)

		u, err := url.Parse(sent.Link)
		require.NoError(t, err)
		assert.Contains(t, body, u.Query().Get("oobCode"))
		assert.Contains(t, body, "expires in 1 hour")
	})

	t.Run("missing sender", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, []identity.Option{admin})
		rec := httptest.NewRecorder()
		_, err := h.flow.Send(context.Background(), rec, "jane@example.com", "")
		assert.ErrorIs(t, err, emaillink.ErrNoSender)
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("delivery failure", func(t *testing.T) {
		t.Parallel()

		sender := &MockSender{}
		sender.On("SendEmail", mock.Anything, mock.Anything).Return(email.ErrFailedToSendEmail)
		h := newHarness(t, []identity.Option{admin}, emaillink.WithSender(sender))

		_, err := h.flow.Send(context.Background(), httptest.NewRecorder(), "jane@example.com", "")
		assert.ErrorIs(t, err, emaillink.ErrDeliveryFailed)
		assert.ErrorIs(t, err, email.ErrFailedToSendEmail)
	})
}

func TestFlow_Begin(t *testing.T) {
	t.Parallel()

	t.Run("not a sign-in link", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, nil)
		for _, target := range []string{"/signin/verify", "/signin/verify?mode=resetPassword&oobCode=x", "/signin/verify?mode=signIn"} {
			_, err := h.flow.Begin(httptest.NewRequest(http.MethodGet, target, nil))
			assert.ErrorIs(t, err, identity.ErrInvalidLink, target)
			assert.ErrorIs(t, err, identity.ErrExpiredOrUsedLink, target)
		}
	})

	t.Run("expired pending record is ignored", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, nil)
		rec := httptest.NewRecorder()
		_, err := h.flow.Send(context.Background(), rec, "jane@example.com", "/x")
		require.NoError(t, err)
		sent, _ := h.provider.LastLink("jane@example.com")

		h.clock.Advance(time.Hour + time.Second)

		req := verifyRequest(t, sent.Link)
		carry(rec, req)
		v, err := h.flow.Begin(req)
		require.NoError(t, err)
		assert.Equal(t, emaillink.StateNeedsEmail, v.State)
	})

	t.Run("tampered pending cookie is ignored", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, nil)
		req := httptest.NewRequest(http.MethodGet, "/signin/verify?mode=signIn&oobCode=abc", nil)
		req.AddCookie(&http.Cookie{Name: emaillink.PendingCookie, Value: "bm90LWVuY3J5cHRlZA"})

		v, err := h.flow.Begin(req)
		require.NoError(t, err)
		assert.Equal(t, emaillink.StateNeedsEmail, v.State)
	})
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ready", emaillink.StateReady.String())
	assert.Equal(t, "needs-email", emaillink.StateNeedsEmail.String())
	assert.Equal(t, "unknown", emaillink.State(0).String())
}
