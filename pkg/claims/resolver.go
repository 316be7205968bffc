// Package claims decides which role a freshly authenticated user gets.
//
// Role claims are assigned by the backend after an account is created and
// reach identity tokens with a delay. Resolve reads the cached token first,
// forces exactly one refresh when user_type is missing, and falls back to the
// default role if the claim is still absent.
package claims

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jernejc/at-fe-sub003/pkg/idtoken"
	"github.com/jernejc/at-fe-sub003/pkg/logger"
)

// TokenSource yields the current identity token of a signed-in user.
// forceRefresh bypasses any cached token.
type TokenSource interface {
	IDToken(ctx context.Context, forceRefresh bool) (string, error)
}

// Fresh is implemented by token sources that know whether their current
// token has already been force-refreshed, like *identity.User after a
// federated sign-in.
type Fresh interface {
	Refreshed() bool
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	// Token is the identity token the claims were read from. It is the one to
	// exchange for a session.
	Token  string
	Claims *idtoken.Claims
	Role   string
	// Refreshed is set when the claims came from a force-refreshed token.
	Refreshed bool
	// Defaulted is set when user_type never arrived and Role is the default.
	Defaulted bool
}

// Observer is notified of each resolution outcome: "cached", "refreshed" or "defaulted".
type Observer func(outcome string)

// Resolver applies the refresh-then-default policy.
type Resolver struct {
	log     *slog.Logger
	observe Observer
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for the default-role warning.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// WithObserver registers fn for every resolution outcome.
func WithObserver(fn Observer) Option {
	return func(r *Resolver) { r.observe = fn }
}

// NewResolver returns a Resolver with a discard logger and no observer.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{log: logger.Nop(), observe: func(string) {}}
	for _, opt := range opts {
		opt(r)
	}
	if r.observe == nil {
		r.observe = func(string) {}
	}
	return r
}

// Resolve never loops: at most one forced refresh happens per call, and none
// when src reports that its token was already refreshed.
func (r *Resolver) Resolve(ctx context.Context, src TokenSource) (*Resolution, error) {
	res, err := read(ctx, src, false)
	if err != nil {
		return nil, err
	}
	if f, ok := src.(Fresh); ok && f.Refreshed() {
		res.Refreshed = true
	}

	if !res.Claims.HasUserType() && !res.Refreshed {
		res, err = read(ctx, src, true)
		if err != nil {
			return nil, err
		}
		res.Refreshed = true
	}

	switch {
	case !res.Claims.HasUserType():
		res.Defaulted = true
		r.observe("defaulted")
		r.log.WarnContext(ctx, "user_type claim missing after refresh, assuming default role",
			logger.Component("claims"),
			logger.UserID(res.Claims.UID()),
			logger.Role(res.Role),
		)
	case res.Refreshed:
		r.observe("refreshed")
		r.log.DebugContext(ctx, "user_type claim read from a refreshed token",
			logger.Component("claims"),
			logger.UserID(res.Claims.UID()),
			logger.Role(res.Role),
		)
	default:
		r.observe("cached")
	}
	return res, nil
}

func read(ctx context.Context, src TokenSource, force bool) (*Resolution, error) {
	raw, err := src.IDToken(ctx, force)
	if err != nil {
		return nil, fmt.Errorf("read identity token: %w", err)
	}
	c, err := idtoken.Decode(raw)
	if err != nil {
		return nil, err
	}
	return &Resolution{Token: raw, Claims: c, Role: c.Role()}, nil
}
