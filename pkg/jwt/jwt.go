// Package jwt signs and verifies HS256 tokens issued by this service.
//
// It is a thin layer over github.com/golang-jwt/jwt/v5 that pins the signing
// method, the issuer and the leeway, and translates library errors into the
// package's sentinel errors.
package jwt

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Service issues and parses HS256 tokens with a single symmetric key.
type Service struct {
	key    []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithIssuer stamps "iss" on generated tokens and requires it when parsing.
func WithIssuer(iss string) Option {
	return func(s *Service) { s.issuer = iss }
}

// WithLeeway tolerates clock drift on exp, nbf and iat.
func WithLeeway(d time.Duration) Option {
	return func(s *Service) { s.leeway = d }
}

// WithClock sets the time source used to validate exp, nbf and iat.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns an HS256 Service. The key must not be empty.
func New(key []byte, opts ...Option) (*Service, error) {
	if len(key) == 0 {
		return nil, ErrMissingSigningKey
	}
	s := &Service{key: key}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewFromString is New with a string key.
func NewFromString(key string, opts ...Option) (*Service, error) {
	return New([]byte(key), opts...)
}

// Issuer returns the configured issuer, if any.
func (s *Service) Issuer() string { return s.issuer }

// Generate signs claims. When the service has an issuer and claims embed
// RegisteredClaims, the caller is expected to have set Issuer already.
func (s *Service) Generate(claims gojwt.Claims) (string, error) {
	if claims == nil {
		return "", ErrMissingClaims
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("jwt: sign: %w", err)
	}
	return token, nil
}

// Parse verifies token and decodes it into claims.
func (s *Service) Parse(token string, claims gojwt.Claims) error {
	if claims == nil {
		return ErrMissingClaims
	}

	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
		gojwt.WithIssuedAt(),
	}
	if s.issuer != "" {
		opts = append(opts, gojwt.WithIssuer(s.issuer))
	}
	if s.leeway > 0 {
		opts = append(opts, gojwt.WithLeeway(s.leeway))
	}
	if s.now != nil {
		opts = append(opts, gojwt.WithTimeFunc(s.now))
	}

	_, err := gojwt.ParseWithClaims(token, claims, func(*gojwt.Token) (any, error) {
		return s.key, nil
	}, opts...)
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gojwt.ErrTokenExpired):
		return ErrExpiredToken
	case errors.Is(err, gojwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, gojwt.ErrTokenUnverifiable):
		return ErrUnexpectedSigningMethod
	case errors.Is(err, gojwt.ErrTokenInvalidIssuer):
		return ErrInvalidIssuer
	default:
		return errors.Join(ErrInvalidToken, err)
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
