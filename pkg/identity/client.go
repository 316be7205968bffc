package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/jernejc/at-fe-sub003/pkg/logger"
)

const (
	opSendOobCode         = "accounts:sendOobCode"
	opSignInWithEmailLink = "accounts:signInWithEmailLink"
	opSignInWithIdp       = "accounts:signInWithIdp"
	opRefresh             = "token"
)

const tracerName = "github.com/jernejc/at-fe-sub003/pkg/identity"

// Client talks to the identity provider's REST API on behalf of a user.
type Client struct {
	apiKey         string
	linkDomain     string
	toolkitURL     string
	secureTokenURL string

	http   *http.Client
	admin  oauth2.TokenSource
	log    *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for provider calls.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithLogger sets the logger for provider failures.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.log = l
		}
	}
}

// WithTracerProvider traces provider calls with tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cl *Client) {
		if tp != nil {
			cl.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithServiceAccount authorises admin requests. With it, SendEmailLink asks
// the provider to return the link instead of mailing it.
func WithServiceAccount(ts oauth2.TokenSource) Option {
	return func(cl *Client) { cl.admin = ts }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) {
		if now != nil {
			cl.now = now
		}
	}
}

// New returns a client for the provider REST API described by cfg.
func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		apiKey:         cfg.APIKey,
		linkDomain:     cfg.AuthDomain,
		toolkitURL:     strings.TrimRight(cfg.ToolkitURL, "/"),
		secureTokenURL: strings.TrimRight(cfg.SecureTokenURL, "/"),
		http:           &http.Client{Timeout: timeout},
		log:            logger.Nop(),
		tracer:         otel.Tracer(tracerName),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReturnsLinks reports whether SendEmailLink hands the link back to the caller
// for delivery rather than having the provider mail it.
func (c *Client) ReturnsLinks() bool { return c.admin != nil }

// LinkRequest describes a sign-in link that was requested.
type LinkRequest struct {
	Email string
	// Link is set only when the provider returned it for delivery by the caller.
	Link string
}

// SendEmailLink asks the provider for a one-time sign-in link that returns
// the user to continueURL.
func (c *Client) SendEmailLink(ctx context.Context, email, continueURL string) (*LinkRequest, error) {
	body := map[string]any{
		"requestType":        "EMAIL_SIGNIN",
		"email":              email,
		"continueUrl":        continueURL,
		"canHandleCodeInApp": true,
	}
	if c.linkDomain != "" {
		body["linkDomain"] = c.linkDomain
	}
	if c.admin != nil {
		body["returnOobLink"] = true
	}

	var out struct {
		Email   string `json:"email"`
		OOBLink string `json:"oobLink"`
	}
	if err := c.call(ctx, opSendOobCode, c.toolkitURL+"/"+opSendOobCode, body, &out, c.admin != nil); err != nil {
		return nil, err
	}

	if out.Email == "" {
		out.Email = email
	}
	return &LinkRequest{Email: out.Email, Link: out.OOBLink}, nil
}

// SignInWithEmailLink completes an email-link sign-in. email must be the
// address the link was sent to.
func (c *Client) SignInWithEmailLink(ctx context.Context, email, link string) (*User, error) {
	code := OOBCode(link)
	if code == "" {
		return nil, ErrInvalidLink
	}

	var out signInResponse
	body := map[string]any{"email": email, "oobCode": code}
	if err := c.call(ctx, opSignInWithEmailLink, c.toolkitURL+"/"+opSignInWithEmailLink, body, &out, false); err != nil {
		return nil, err
	}
	return c.newUser(out), nil
}

// SignInWithIdp signs in with a credential issued by a federated provider,
// e.g. a Google id_token obtained through the authorization code flow.
func (c *Client) SignInWithIdp(ctx context.Context, providerID, providerIDToken, requestURI string) (*User, error) {
	post := url.Values{}
	post.Set("id_token", providerIDToken)
	post.Set("providerId", providerID)

	var out signInResponse
	body := map[string]any{
		"postBody":          post.Encode(),
		"requestUri":        requestURI,
		"returnSecureToken": true,
	}
	if err := c.call(ctx, opSignInWithIdp, c.toolkitURL+"/"+opSignInWithIdp, body, &out, false); err != nil {
		return nil, err
	}
	return c.newUser(out), nil
}

// Token is an identity token together with the refresh token that renews it.
type Token struct {
	IDToken      string
	RefreshToken string
	Expiry       time.Time
}

// Refresh exchanges a refresh token for a newly signed identity token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	var out struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
	}
	if err := c.call(ctx, opRefresh, c.secureTokenURL+"/"+opRefresh, form, &out, false); err != nil {
		return nil, err
	}
	return &Token{
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		Expiry:       c.expiry(out.ExpiresIn),
	}, nil
}

type signInResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IsNewUser    bool   `json:"isNewUser"`
}

func (c *Client) newUser(r signInResponse) *User {
	return &User{
		UID:       r.LocalID,
		Email:     r.Email,
		IsNewUser: r.IsNewUser,
		client:    c,
		token: Token{
			IDToken:      r.IDToken,
			RefreshToken: r.RefreshToken,
			Expiry:       c.expiry(r.ExpiresIn),
		},
	}
}

func (c *Client) expiry(expiresIn string) time.Time {
	secs, err := strconv.Atoi(expiresIn)
	if err != nil || secs <= 0 {
		secs = 3600
	}
	return c.now().Add(time.Duration(secs) * time.Second)
}

// call POSTs in (JSON, or form values for the token endpoint) and decodes the
// response into out.
func (c *Client) call(ctx context.Context, op, endpoint string, in, out any, admin bool) (err error) {
	ctx, span := c.tracer.Start(ctx, "identity."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, op)
		}
		span.End()
	}()

	if c.apiKey == "" {
		return ErrNotConfigured
	}

	var (
		body        io.Reader
		contentType string
	)
	if form, ok := in.(url.Values); ok {
		body, contentType = strings.NewReader(form.Encode()), "application/x-www-form-urlencoded"
	} else {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("identity: %s: marshal: %w", op, err)
		}
		body, contentType = bytes.NewReader(data), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?key="+url.QueryEscape(c.apiKey), body)
	if err != nil {
		return fmt.Errorf("identity: %s: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)

	if admin {
		tok, err := c.admin.Token()
		if err != nil {
			c.log.ErrorContext(ctx, "service account token unavailable", logger.Component("identity"), logger.Error(err))
			return fmt.Errorf("%w: service account: %w", ErrProviderUnavailable, err)
		}
		tok.SetAuthHeader(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		c.log.WarnContext(ctx, "identity provider unreachable", logger.Component("identity"), slog.String("op", op), logger.Error(err))
		return fmt.Errorf("%w: %s: %w", ErrProviderUnavailable, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Op: op, Status: resp.StatusCode, Code: errorCode(resp.Body)}
		apiErr.kind = classify(op, apiErr.Code, resp.StatusCode)
		c.log.InfoContext(ctx, "identity provider rejected request",
			logger.Component("identity"),
			slog.String("op", op),
			slog.String("code", apiErr.Code),
			slog.Int("status", resp.StatusCode),
		)
		return apiErr
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decode: %w", ErrProviderUnavailable, op, err)
	}
	return nil
}

// errorCode extracts the provider's error code. Messages may carry a
// human-readable suffix ("TOO_MANY_ATTEMPTS_TRY_LATER : Try again later.").
func errorCode(r io.Reader) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&payload); err != nil {
		return "UNKNOWN"
	}
	code, _, _ := strings.Cut(payload.Error.Message, " ")
	if code == "" {
		return "UNKNOWN"
	}
	return code
}
