package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jernejc/at-fe-sub003/pkg/idtoken"
	"github.com/jernejc/at-fe-sub003/pkg/jwt"
	"github.com/jernejc/at-fe-sub003/pkg/logger"
)

const (
	tracerName      = "github.com/jernejc/at-fe-sub003/pkg/session"
	minSecretLength = 32
)

// Verifier checks identity tokens. *idtoken.Verifier implements it.
type Verifier interface {
	Verify(ctx context.Context, raw string) (*idtoken.Claims, error)
}

// Token is a freshly minted SessionToken.
type Token struct {
	Value     string
	Claims    *Claims
	ExpiresAt time.Time
}

// Exchanger turns identity tokens into session tokens and parses the
// session tokens it issued.
type Exchanger struct {
	verifier Verifier
	tokens   *jwt.Service
	ttl      time.Duration
	log      *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures an Exchanger.
type Option func(*Exchanger)

// WithLogger sets the logger that records rejection reasons.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exchanger) {
		if l != nil {
			e.log = l
		}
	}
}

// WithTracerProvider traces exchanges with tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Exchanger) {
		if tp != nil {
			e.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Exchanger) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExchanger fails when the session secret is too short.
func NewExchanger(cfg Config, verifier Verifier, opts ...Option) (*Exchanger, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf("%w: need at least %d characters", ErrMissingSecret, minSecretLength)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 720 * time.Hour
	}

	e := &Exchanger{
		verifier: verifier,
		ttl:      ttl,
		log:      logger.Nop(),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	tokens, err := jwt.NewFromString(cfg.Secret,
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithClock(e.now),
	)
	if err != nil {
		return nil, err
	}
	e.tokens = tokens
	e.log = e.log.With(logger.Component("session"))
	return e, nil
}

// TTL is the lifetime of minted tokens.
func (e *Exchanger) TTL() time.Duration { return e.ttl }

// Exchange verifies raw and mints a SessionToken carrying user_type,
// partner_id and partner_name exactly as issued. Any failure yields
// ErrSignInFailed; the reason is only logged.
//
// Exchanging the same identity token twice yields equivalent sessions.
func (e *Exchanger) Exchange(ctx context.Context, raw string) (_ *Token, err error) {
	ctx, span := e.tracer.Start(ctx, "session.Exchange")
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, "sign-in failed")
		}
		span.End()
	}()

	raw = strings.TrimSpace(raw)
	if raw == "" {
		e.reject(ctx, "missing identity token", nil)
		return nil, ErrSignInFailed
	}

	id, err := e.verifier.Verify(ctx, raw)
	if err != nil {
		e.reject(ctx, "identity token rejected", err)
		return nil, ErrSignInFailed
	}
	if strings.TrimSpace(id.Email) == "" {
		e.reject(ctx, "identity token has no email", nil, logger.UserID(id.UID()))
		return nil, ErrSignInFailed
	}

	if id.UnparsedPartnerID != "" {
		e.log.WarnContext(ctx, "partner_id claim is not an integer, issuing session without it",
			logger.UserID(id.UID()),
			slog.String("partner_id", id.UnparsedPartnerID),
		)
	}

	now := e.now()
	claims := &Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UID(),
			Issuer:    e.tokens.Issuer(),
			IssuedAt:  gojwt.NewNumericDate(now),
			NotBefore: gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(e.ttl)),
		},
		Email:       id.Email,
		Role:        id.Role(),
		PartnerID:   id.PartnerID,
		PartnerName: id.PartnerName,
		Name:        id.Name,
		Picture:     id.Picture,
	}

	value, err := e.tokens.Generate(claims)
	if err != nil {
		e.log.ErrorContext(ctx, "session token signing failed", logger.Error(err))
		return nil, ErrSignInFailed
	}

	span.SetAttributes(
		attribute.String("session.role", claims.Role),
		attribute.Bool("session.partner", claims.IsPartner()),
	)
	e.log.InfoContext(ctx, "session issued",
		logger.UserID(claims.Subject),
		logger.Role(claims.Role),
		logger.PartnerID(claims.PartnerID),
		slog.String("sign_in_provider", id.Provider.SignInProvider),
	)

	return &Token{Value: value, Claims: claims, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Parse verifies a SessionToken minted by Exchange.
func (e *Exchanger) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	if err := e.tokens.Parse(raw, claims); err != nil {
		return nil, errors.Join(ErrInvalidSession, err)
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, fmt.Errorf("%w: missing subject or email", ErrInvalidSession)
	}
	if claims.Role == "" {
		claims.Role = RolePDM
	}
	return claims, nil
}

func (e *Exchanger) reject(ctx context.Context, msg string, cause error, attrs ...slog.Attr) {
	if cause != nil {
		attrs = append(attrs, logger.Error(cause), slog.String("reason", reason(cause)))
	}
	e.log.LogAttrs(ctx, slog.LevelWarn, msg, attrs...)
}

// reason names the verification failure for logs only.
func reason(err error) string {
	switch {
	case errors.Is(err, idtoken.ErrNotConfigured):
		return "verifier_not_configured"
	case errors.Is(err, idtoken.ErrExpired):
		return "expired"
	case errors.Is(err, idtoken.ErrSignature):
		return "signature"
	case errors.Is(err, idtoken.ErrMalformed):
		return "malformed"
	case errors.Is(err, idtoken.ErrClaims):
		return "claims"
	case errors.Is(err, idtoken.ErrKeysUnavailable):
		return "keys_unavailable"
	default:
		return "unknown"
	}
}
