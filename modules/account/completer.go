package account

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jernejc/at-fe-sub003/pkg/claims"
	"github.com/jernejc/at-fe-sub003/pkg/identity"
	"github.com/jernejc/at-fe-sub003/pkg/logger"
	"github.com/jernejc/at-fe-sub003/pkg/metrics"
	"github.com/jernejc/at-fe-sub003/pkg/session"
)

// Observer receives sign-in outcomes. *metrics.Metrics implements it.
type Observer interface {
	SignIn(method, outcome string)
	SessionIssued()
}

type nopObserver struct{}

func (nopObserver) SignIn(string, string) {}
func (nopObserver) SessionIssued()        {}

// Paths are the local redirect targets used by the account handlers.
type Paths struct {
	SignIn string
	Home   string
}

// PathsFromGate takes the sign-in and home paths the gate redirects to.
func PathsFromGate(cfg session.GateConfig) Paths {
	return Paths{SignIn: cfg.SignInPath, Home: cfg.HomePath}
}

// Completer turns a provider-authenticated user into a session: it waits for
// the role claim (one forced refresh at most), exchanges the identity token
// and hands the session token to the transport.
type Completer struct {
	resolver  *claims.Resolver
	exchanger *session.Exchanger
	transport session.Transport
	observer  Observer
	log       *slog.Logger
}

// CompleterOption configures a Completer.
type CompleterOption func(*Completer)

// WithObserver records sign-in outcomes on o.
func WithObserver(o Observer) CompleterOption {
	return func(c *Completer) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLogger sets the logger for sign-in outcomes.
func WithLogger(l *slog.Logger) CompleterOption {
	return func(c *Completer) {
		if l != nil {
			c.log = l
		}
	}
}

// NewCompleter wires the claims resolver, the exchanger and the transport
// that carries issued sessions.
func NewCompleter(resolver *claims.Resolver, exchanger *session.Exchanger, transport session.Transport, opts ...CompleterOption) *Completer {
	c := &Completer{
		resolver:  resolver,
		exchanger: exchanger,
		transport: transport,
		observer:  nopObserver{},
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(logger.Component("account"))
	return c
}

// Complete issues the session for user and records the outcome under method.
func (c *Completer) Complete(ctx context.Context, w http.ResponseWriter, user *identity.User, method string) (*session.Token, error) {
	res, err := c.resolver.Resolve(ctx, user)
	if err != nil {
		c.fail(ctx, method, err)
		return nil, err
	}

	tok, err := c.exchanger.Exchange(ctx, res.Token)
	if err != nil {
		c.fail(ctx, method, err)
		return nil, err
	}
	if err := c.issue(w, tok); err != nil {
		c.fail(ctx, method, err)
		return nil, err
	}

	c.observer.SignIn(method, metrics.OutcomeSuccess)
	c.log.InfoContext(ctx, "signed in",
		logger.UserID(tok.Claims.UserID()),
		logger.Role(tok.Claims.Role),
		logger.PartnerID(tok.Claims.PartnerID),
		slog.String("method", method),
		slog.Bool("claims_defaulted", res.Defaulted),
	)
	return tok, nil
}

// Exchange issues a session for an identity token presented by the client.
func (c *Completer) Exchange(ctx context.Context, w http.ResponseWriter, idToken string) (*session.Token, error) {
	tok, err := c.exchanger.Exchange(ctx, idToken)
	if err != nil {
		c.observer.SignIn(metrics.MethodIDToken, metrics.OutcomeFailure)
		return nil, err
	}
	if err := c.issue(w, tok); err != nil {
		c.fail(ctx, metrics.MethodIDToken, err)
		return nil, err
	}
	c.observer.SignIn(metrics.MethodIDToken, metrics.OutcomeSuccess)
	return tok, nil
}

func (c *Completer) issue(w http.ResponseWriter, tok *session.Token) error {
	if err := c.transport.SetToken(w, tok.Value, c.exchanger.TTL()); err != nil {
		return err
	}
	c.observer.SessionIssued()
	return nil
}

// LinkSent records a sign-in link request the provider accepted.
func (c *Completer) LinkSent() {
	c.observer.SignIn(metrics.MethodEmailLink, metrics.OutcomeSent)
}

// Cancelled records a sign-in the user abandoned.
func (c *Completer) Cancelled(method string) {
	c.observer.SignIn(method, metrics.OutcomeCancelled)
}

// Failed records a sign-in that failed before a user was obtained.
func (c *Completer) Failed(ctx context.Context, method string, err error) {
	if errors.Is(err, identity.ErrPopupClosedOrDenied) || errors.Is(err, context.Canceled) {
		c.Cancelled(method)
		return
	}
	c.fail(ctx, method, err)
}

func (c *Completer) fail(ctx context.Context, method string, err error) {
	c.observer.SignIn(method, metrics.OutcomeFailure)
	c.log.WarnContext(ctx, "sign-in failed", slog.String("method", method), logger.Error(err))
}
