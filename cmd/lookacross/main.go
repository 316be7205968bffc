// Command lookacross serves sign-in and the session gate in front of the
// LookAcross pages.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/jernejc/at-fe-sub003/handler"
	"github.com/jernejc/at-fe-sub003/modules/account"
	"github.com/jernejc/at-fe-sub003/pkg/claims"
	"github.com/jernejc/at-fe-sub003/pkg/clientip"
	"github.com/jernejc/at-fe-sub003/pkg/config"
	"github.com/jernejc/at-fe-sub003/pkg/cookie"
	"github.com/jernejc/at-fe-sub003/pkg/email"
	"github.com/jernejc/at-fe-sub003/pkg/emaillink"
	"github.com/jernejc/at-fe-sub003/pkg/environment"
	"github.com/jernejc/at-fe-sub003/pkg/httpserver"
	"github.com/jernejc/at-fe-sub003/pkg/identity"
	"github.com/jernejc/at-fe-sub003/pkg/idtoken"
	"github.com/jernejc/at-fe-sub003/pkg/logger"
	"github.com/jernejc/at-fe-sub003/pkg/metrics"
	"github.com/jernejc/at-fe-sub003/pkg/ratelimiter"
	"github.com/jernejc/at-fe-sub003/pkg/redis"
	"github.com/jernejc/at-fe-sub003/pkg/requestid"
	"github.com/jernejc/at-fe-sub003/pkg/session"
)

type appConfig struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Name string `env:"APP_NAME" envDefault:"lookacross"`
}

func main() {
	_ = config.LoadEnv()

	var app appConfig
	config.MustLoad(&app)

	env := environment.Parse(app.Env)
	log := logger.New(
		logger.WithEnvironment(app.Env, app.Name),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			clientip.LoggerExtractor(),
			environment.LoggerExtractor(),
		),
	)

	if err := run(context.Background(), env, log); err != nil {
		log.Error("lookacross stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, env environment.Environment, log *slog.Logger) error {
	var (
		serverCfg  httpserver.Config
		identCfg   identity.Config
		googleCfg  identity.GoogleConfig
		tokenCfg   idtoken.Config
		sessionCfg session.Config
		gateCfg    session.GateConfig
		linkCfg    emaillink.Config
		cookieCfg  cookie.Config
		redisCfg   redis.Config
		emailCfg   email.Config
		ipCfg      clientip.Config
	)
	if err := errors.Join(
		config.Load(&serverCfg),
		config.Load(&identCfg),
		config.Load(&googleCfg),
		config.Load(&tokenCfg),
		config.Load(&sessionCfg),
		config.Load(&gateCfg),
		config.Load(&linkCfg),
		config.Load(&cookieCfg),
		config.Load(&redisCfg),
		config.Load(&emailCfg),
		config.Load(&ipCfg),
	); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	m := metrics.New()

	cookies, err := cookie.NewFromConfig(cookieCfg)
	if err != nil {
		return fmt.Errorf("cookies: %w", err)
	}

	var rdb *goredis.Client
	if redisCfg.Enabled() {
		rdb, err = redis.Connect(ctx, redisCfg)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer func() { _ = rdb.Close() }()
	}

	identityOpts := []identity.Option{identity.WithLogger(log)}
	if linkCfg.AppDelivery() {
		if ts := identity.ServiceAccount(ctx, identCfg); ts != nil {
			identityOpts = append(identityOpts, identity.WithServiceAccount(ts))
		} else {
			log.Warn("service account missing, the provider mails sign-in links itself")
		}
	}
	client := identity.New(identCfg, identityOpts...)
	fed := identity.NewFederated(googleCfg, client, nil)

	verifier := idtoken.New(tokenCfg, idtoken.WithLogger(log))
	defer verifier.Close()
	if !verifier.Configured() {
		log.Warn("FIREBASE_PROJECT_ID not set, every session exchange will be refused")
	}

	exchanger, err := session.NewExchanger(sessionCfg, verifier,
		session.WithLogger(log),
		session.WithTracerProvider(otel.GetTracerProvider()),
	)
	if err != nil {
		return err
	}
	transport := session.NewTransport(sessionCfg, cookies)
	gate, err := session.NewGate(gateCfg, exchanger, transport,
		session.WithGateLogger(log),
		session.WithDecisionObserver(m.GateDecision),
	)
	if err != nil {
		return err
	}

	flow, err := newEmailLinkFlow(linkCfg, emailCfg, client, cookies, rdb, log)
	if err != nil {
		return err
	}

	completer := account.NewCompleter(
		claims.NewResolver(claims.WithLogger(log), claims.WithObserver(m.ClaimsResolved)),
		exchanger,
		transport,
		account.WithObserver(m),
		account.WithLogger(log),
	)
	paths := account.PathsFromGate(gateCfg)
	errs := handler.NewErrorHandler(log)

	var checks []httpserver.Check
	if rdb != nil {
		checks = append(checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(rdb)})
	}

	r := chi.NewRouter()
	r.Use(
		requestid.Middleware,
		clientip.Middleware(ipCfg),
		environment.Middleware(env),
		gate.Middleware,
	)
	r.Get("/healthz", httpserver.Liveness())
	r.Get("/readyz", httpserver.Readiness(log, checks...))
	r.Method(http.MethodGet, "/metrics", m.Handler())

	app := account.Router(account.RouterOptions{
		SignIn:    account.NewSignInService(paths, cookies, fed.Enabled()),
		Session:   account.NewSessionService(paths, completer, transport, gate, errs, log),
		Google:    account.NewGoogleService(paths, googleCfg, fed, cookies, completer, log),
		EmailLink: account.NewEmailLinkService(paths, linkCfg, flow, cookies, completer, errs),
	})
	app.Get(gateCfg.HomePath, handler.Wrap(home))
	r.Mount("/", app)

	srv := httpserver.NewFromConfig(serverCfg,
		httpserver.WithLogger(log),
		httpserver.WithStopHook(func(l *slog.Logger) { l.Info("draining connections") }),
	)
	return srv.Run(ctx, r)
}

// newEmailLinkFlow wires link delivery and the per-address rate limit, kept in
// Redis when it is configured.
func newEmailLinkFlow(cfg emaillink.Config, emailCfg email.Config, client *identity.Client, cookies *cookie.Manager, rdb *goredis.Client, log *slog.Logger) (*emaillink.Flow, error) {
	var store ratelimiter.Store
	if rdb != nil {
		store = ratelimiter.NewRedisStore(rdb, ratelimiter.WithKeyPrefix("lookacross:ratelimit:"))
	} else {
		store = ratelimiter.NewMemoryStore()
	}
	perEmail, err := ratelimiter.NewBucket(store, ratelimiter.Config{
		Capacity:       cfg.RateCapacity,
		RefillRate:     1,
		RefillInterval: cfg.RateInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("email link rate limit: %w", err)
	}
	perIP, err := ratelimiter.NewBucket(store, ratelimiter.Config{
		Capacity:       cfg.IPRateCapacity,
		RefillRate:     1,
		RefillInterval: cfg.RateInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("email link rate limit: %w", err)
	}

	opts := []emaillink.Option{
		emaillink.WithLogger(log),
		emaillink.WithRateLimiter(perEmail),
		emaillink.WithIPRateLimiter(perIP),
	}
	if client.ReturnsLinks() {
		sender, err := email.NewFromConfig(emailCfg, log)
		if err != nil {
			return nil, fmt.Errorf("email: %w", err)
		}
		opts = append(opts, emaillink.WithSender(sender))
	}
	return emaillink.New(cfg, client, cookies, opts...), nil
}

// home is the landing page behind the gate. The pages themselves live in
// another service; this returns the session they are rendered for.
func home(ctx handler.Context, _ struct{}) handler.Response {
	c, ok := session.FromContext(ctx)
	if !ok {
		return handler.JSONError(handler.ErrUnauthorized)
	}
	return handler.JSON(account.NewSessionView(c))
}
