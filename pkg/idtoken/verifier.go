package idtoken

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/jernejc/at-fe-sub003/pkg/logger"
)

// Config locates the provider project and its signing keys.
type Config struct {
	ProjectID    string        `env:"FIREBASE_PROJECT_ID"`
	KeysURL      string        `env:"IDTOKEN_KEYS_URL" envDefault:"https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"`
	KeysRefresh  time.Duration `env:"IDTOKEN_KEYS_REFRESH" envDefault:"1h"`
	IssuerPrefix string        `env:"IDTOKEN_ISSUER_PREFIX" envDefault:"https://securetoken.google.com/"`
	ClockSkew    time.Duration `env:"IDTOKEN_CLOCK_SKEW" envDefault:"30s"`
	HTTPTimeout  time.Duration `env:"IDTOKEN_HTTP_TIMEOUT" envDefault:"10s"`
}

// Verifier checks identity tokens issued for one provider project.
//
// A Verifier built without a project id is valid: it rejects every token with
// ErrNotConfigured, so a deployment missing credentials still starts.
//
// Signing keys are loaded on the first Verify and refreshed in the background
// every KeysRefresh until Close. A failed first load is retried on the next
// call.
type Verifier struct {
	cfg       Config
	projectID string
	issuer    string
	leeway    time.Duration
	client    *http.Client
	now       func() time.Time
	log       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	keys keyfunc.Keyfunc
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithLogger sets the logger for key refresh failures.
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.log = l
		}
	}
}

// WithHTTPClient sets the client used to download signing keys.
func WithHTTPClient(c *http.Client) Option {
	return func(v *Verifier) {
		if c != nil {
			v.client = c
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// New returns a Verifier for cfg. No network call happens until the first
// Verify.
func New(cfg Config, opts ...Option) *Verifier {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.KeysRefresh <= 0 {
		cfg.KeysRefresh = time.Hour
	}
	v := &Verifier{
		cfg:       cfg,
		projectID: cfg.ProjectID,
		issuer:    cfg.IssuerPrefix + cfg.ProjectID,
		leeway:    cfg.ClockSkew,
		client:    &http.Client{Timeout: cfg.HTTPTimeout},
		now:       time.Now,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.ctx, v.cancel = context.WithCancel(context.Background())
	if v.projectID == "" {
		v.log.Warn("identity token verifier has no project id, every exchange will fail",
			logger.Component("idtoken"))
	}
	return v
}

// Configured reports whether the verifier can accept tokens at all.
func (v *Verifier) Configured() bool { return v.projectID != "" }

// Close stops the background key refresh.
func (v *Verifier) Close() { v.cancel() }

// Verify checks the RS256 signature against the provider's published keys and
// validates issuer, audience, subject and token times.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	if !v.Configured() {
		return nil, ErrNotConfigured
	}
	kf, err := v.keySet(ctx)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	_, err = gojwt.ParseWithClaims(raw, claims, kf.Keyfunc,
		gojwt.WithValidMethods([]string{gojwt.SigningMethodRS256.Alg()}),
		gojwt.WithAudience(v.projectID),
		gojwt.WithIssuer(v.issuer),
		gojwt.WithExpirationRequired(),
		gojwt.WithIssuedAt(),
		gojwt.WithLeeway(v.leeway),
		gojwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, classify(err)
	}

	if claims.Subject == "" || len(claims.Subject) > 128 {
		return nil, fmt.Errorf("%w: subject", ErrClaims)
	}
	if claims.AuthTime > 0 && time.Unix(claims.AuthTime, 0).After(v.now().Add(v.leeway)) {
		return nil, fmt.Errorf("%w: auth_time in the future", ErrClaims)
	}
	return claims, nil
}

// keySet returns the key lookup, downloading the key set on first use.
func (v *Verifier) keySet(ctx context.Context) (keyfunc.Keyfunc, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.keys != nil {
		return v.keys, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	storage, err := jwkset.NewStorageFromHTTP(v.cfg.KeysURL, jwkset.HTTPClientStorageOptions{
		Client:          v.client,
		Ctx:             v.ctx,
		HTTPTimeout:     v.cfg.HTTPTimeout,
		RefreshInterval: v.cfg.KeysRefresh,
		RefreshErrorHandler: func(ctx context.Context, err error) {
			v.log.WarnContext(ctx, "identity token keys refresh failed",
				logger.Component("idtoken"), logger.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeysUnavailable, err)
	}
	kf, err := keyfunc.New(keyfunc.Options{Ctx: v.ctx, Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeysUnavailable, err)
	}
	v.keys = kf
	return kf, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrKeysUnavailable), errors.Is(err, ErrSignature):
		return err
	case errors.Is(err, gojwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	case errors.Is(err, gojwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	case errors.Is(err, gojwt.ErrTokenSignatureInvalid), errors.Is(err, gojwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrSignature, err)
	default:
		return fmt.Errorf("%w: %w", ErrClaims, err)
	}
}
