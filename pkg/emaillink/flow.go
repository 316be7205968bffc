package emaillink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jernejc/at-fe-sub003/pkg/clientip"
	"github.com/jernejc/at-fe-sub003/pkg/cookie"
	"github.com/jernejc/at-fe-sub003/pkg/email"
	"github.com/jernejc/at-fe-sub003/pkg/email/templates"
	"github.com/jernejc/at-fe-sub003/pkg/identity"
	"github.com/jernejc/at-fe-sub003/pkg/logger"
	"github.com/jernejc/at-fe-sub003/pkg/ratelimiter"
	"github.com/jernejc/at-fe-sub003/pkg/sanitizer"
	"github.com/jernejc/at-fe-sub003/pkg/validator"
)

const maxEmailLength = 254

// Provider is the part of identity.Client the flow talks to.
type Provider interface {
	SendEmailLink(ctx context.Context, email, continueURL string) (*identity.LinkRequest, error)
	SignInWithEmailLink(ctx context.Context, email, link string) (*identity.User, error)
}

// State classifies an arriving verification request.
type State int

const (
	// StateReady means the pending record from this device supplies the email.
	StateReady State = iota + 1
	// StateNeedsEmail means the link was opened elsewhere and the user must
	// type the address again.
	StateNeedsEmail
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateNeedsEmail:
		return "needs-email"
	default:
		return "unknown"
	}
}

// Verification is the outcome of Begin.
type Verification struct {
	State   State
	Link    string
	Pending *PendingEmailLinkRequest
}

// Flow runs the two halves of email-link sign-in: sending a link and
// completing sign-in when it is opened.
type Flow struct {
	cfg      Config
	provider Provider
	cookies  *cookie.Manager
	limiter  *ratelimiter.Bucket
	ipLimit  *ratelimiter.Bucket
	sender   email.EmailSender
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Flow.
type Option func(*Flow)

// WithLogger sets the flow logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Flow) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithRateLimiter limits link requests per email address.
func WithRateLimiter(b *ratelimiter.Bucket) Option {
	return func(f *Flow) {
		f.limiter = b
	}
}

// WithIPRateLimiter also limits link requests per client address, as stored
// by clientip.Middleware.
func WithIPRateLimiter(b *ratelimiter.Bucket) Option {
	return func(f *Flow) {
		f.ipLimit = b
	}
}

// WithSender delivers links returned by the provider through s.
func WithSender(s email.EmailSender) Option {
	return func(f *Flow) {
		f.sender = s
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(f *Flow) {
		f.now = now
	}
}

// New builds the email-link flow. Without the rate limiter options requests
// are not limited.
func New(cfg Config, provider Provider, cookies *cookie.Manager, opts ...Option) *Flow {
	f := &Flow{
		cfg:      cfg,
		provider: provider,
		cookies:  cookies,
		logger:   logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(logger.Component("emaillink"))
	return f
}

// Send requests a sign-in link for addr and remembers the request on this
// device. callbackURL is kept only when it is a path on this site.
func (f *Flow) Send(ctx context.Context, w http.ResponseWriter, addr, callbackURL string) (*PendingEmailLinkRequest, error) {
	addr = sanitizer.NormalizeEmail(sanitizer.StripControl(addr))
	if err := validator.Apply(
		validator.RequiredString("email", addr),
		validator.MaxLenString("email", addr, maxEmailLength),
		validator.ValidEmail("email", addr),
	); err != nil {
		return nil, errors.Join(identity.ErrInvalidEmail, err)
	}

	callbackURL = strings.TrimSpace(callbackURL)
	if !validator.IsLocalPath(callbackURL) {
		callbackURL = ""
	}

	if err := f.allow(ctx, addr); err != nil {
		return nil, err
	}

	req, err := f.provider.SendEmailLink(ctx, addr, f.cfg.ContinueURL())
	if err != nil {
		f.logger.WarnContext(ctx, "sign-in link request failed", logger.Email(addr), logger.Error(err))
		return nil, err
	}

	if req.Link != "" {
		if err := f.deliver(ctx, addr, req.Link); err != nil {
			return nil, err
		}
	}

	pending := PendingEmailLinkRequest{
		Email:       addr,
		CallbackURL: callbackURL,
		RequestedAt: f.now().UTC(),
	}
	if err := f.cookies.SetJSON(w, PendingCookie, pending, cookie.WithMaxAge(int(f.cfg.PendingTTL.Seconds()))); err != nil {
		return nil, fmt.Errorf("store pending sign-in request: %w", err)
	}

	f.logger.InfoContext(ctx, "sign-in link sent",
		logger.Email(addr),
		slog.Bool("app_delivery", req.Link != ""),
	)
	return &pending, nil
}

// Begin inspects a request to the verify endpoint. The link is rebuilt from
// APP_URL and the request URI, never from the Host header.
func (f *Flow) Begin(r *http.Request) (*Verification, error) {
	link := f.linkFor(r)
	if !identity.IsSignInWithEmailLink(link) {
		return nil, identity.ErrInvalidLink
	}

	v := &Verification{State: StateNeedsEmail, Link: link}
	if p, err := f.Pending(r); err == nil {
		v.State = StateReady
		v.Pending = p
	}
	return v, nil
}

// Complete signs in with link on behalf of addr. An empty addr falls back to
// the pending record. The record is removed once the provider accepts the link.
func (f *Flow) Complete(ctx context.Context, w http.ResponseWriter, r *http.Request, addr, link string) (*identity.User, error) {
	addr = sanitizer.NormalizeEmail(sanitizer.StripControl(addr))
	if addr == "" {
		if p, err := f.Pending(r); err == nil {
			addr = p.Email
		}
	}
	if err := validator.Apply(
		validator.RequiredString("email", addr),
		validator.ValidEmail("email", addr),
	); err != nil {
		return nil, errors.Join(identity.ErrInvalidEmail, err)
	}

	user, err := f.provider.SignInWithEmailLink(ctx, addr, link)
	if err != nil {
		f.logger.WarnContext(ctx, "email link sign-in failed", logger.Email(addr), logger.Error(err))
		return nil, err
	}

	f.Discard(w)
	f.logger.InfoContext(ctx, "email link sign-in completed",
		logger.UserID(user.UID),
		slog.Bool("new_user", user.IsNewUser),
	)
	return user, nil
}

// Pending returns this device's unexpired pending request.
func (f *Flow) Pending(r *http.Request) (*PendingEmailLinkRequest, error) {
	var p PendingEmailLinkRequest
	if err := f.cookies.GetJSON(r, PendingCookie, &p); err != nil {
		if !errors.Is(err, cookie.ErrCookieNotFound) {
			f.logger.WarnContext(r.Context(), "unreadable pending sign-in cookie", logger.Error(err))
		}
		return nil, ErrPendingNotFound
	}
	if p.Email == "" || p.Expired(f.now(), f.cfg.PendingTTL) {
		return nil, ErrPendingNotFound
	}
	return &p, nil
}

// Discard removes the pending record.
func (f *Flow) Discard(w http.ResponseWriter) {
	f.cookies.Delete(w, PendingCookie)
}

func (f *Flow) allow(ctx context.Context, addr string) error {
	if err := f.take(ctx, f.limiter, "emaillink:"+addr, logger.Email(addr)); err != nil {
		return err
	}
	if ip := clientip.FromContext(ctx); ip != "" {
		return f.take(ctx, f.ipLimit, "emaillink:ip:"+ip, slog.String("client_ip", ip))
	}
	return nil
}

func (f *Flow) take(ctx context.Context, b *ratelimiter.Bucket, key string, subject slog.Attr) error {
	if b == nil {
		return nil
	}
	res, err := b.Allow(ctx, key)
	if err != nil {
		// Limiter outages fail open.
		f.logger.WarnContext(ctx, "rate limiter unavailable", logger.Error(err))
		return nil
	}
	if !res.Allowed() {
		f.logger.InfoContext(ctx, "sign-in link rate limited",
			subject,
			slog.Duration("retry_after", res.RetryAfter()),
		)
		return fmt.Errorf("%w: retry after %s", identity.ErrRateLimited, res.RetryAfter().Round(time.Second))
	}
	return nil
}

func (f *Flow) deliver(ctx context.Context, addr, link string) error {
	if f.sender == nil {
		return ErrNoSender
	}
	body, err := templates.Render(ctx, templates.SignInLink(addr, link, f.cfg.PendingTTL))
	if err != nil {
		return errors.Join(ErrDeliveryFailed, err)
	}
	if err := f.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   addr,
		Subject:  templates.SignInLinkSubject,
		BodyHTML: body,
		Tag:      "signin-link",
	}); err != nil {
		f.logger.ErrorContext(ctx, "sign-in link delivery failed", logger.Email(addr), logger.Error(err))
		return errors.Join(ErrDeliveryFailed, err)
	}
	return nil
}

func (f *Flow) linkFor(r *http.Request) string {
	base, err := url.Parse(f.cfg.AppURL)
	if err != nil || base.Host == "" {
		return r.URL.RequestURI()
	}
	u := *r.URL
	u.Scheme = base.Scheme
	u.Host = base.Host
	return u.String()
}
