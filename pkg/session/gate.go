package session

import (
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/jernejc/at-fe-sub003/pkg/logger"
)

// Gate decisions reported to the observer.
const (
	DecisionPublic = "public"
	DecisionSignIn = "signin"
	DecisionRole   = "role"
	DecisionAllow  = "allow"
)

// Parser verifies a session token. *Exchanger implements it.
type Parser interface {
	Parse(raw string) (*Claims, error)
}

// Gate guards every non-public path. It keeps no state between requests:
// each one is judged by the token it carries, and every failure ends in a
// redirect.
type Gate struct {
	cfg       GateConfig
	parser    Parser
	transport Transport
	staticExt map[string]struct{}
	log       *slog.Logger
	observe   func(decision string)
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithGateLogger sets the logger for rejected sessions.
func WithGateLogger(l *slog.Logger) GateOption {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}

// WithDecisionObserver is called once per request with one of the Decision
// constants.
func WithDecisionObserver(fn func(decision string)) GateOption {
	return func(g *Gate) {
		if fn != nil {
			g.observe = fn
		}
	}
}

// NewGate validates cfg. The sign-in path must be reachable without a
// session.
func NewGate(cfg GateConfig, parser Parser, transport Transport, opts ...GateOption) (*Gate, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	g := &Gate{
		cfg:       cfg,
		parser:    parser,
		transport: transport,
		staticExt: make(map[string]struct{}, len(cfg.StaticExtensions)),
		log:       logger.Nop(),
		observe:   func(string) {},
	}
	for _, ext := range cfg.StaticExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		g.staticExt[ext] = struct{}{}
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With(logger.Component("gate"))
	return g, nil
}

// IsPublic reports whether p bypasses the session check.
func (g *Gate) IsPublic(p string) bool {
	if matchPrefix(g.cfg.PublicPaths, p) {
		return true
	}
	_, ok := g.staticExt[strings.ToLower(path.Ext(p))]
	return ok
}

// Middleware applies the gate to next.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path

		if g.IsPublic(p) {
			g.observe(DecisionPublic)
			next.ServeHTTP(w, r)
			return
		}

		claims, err := g.authenticate(r)
		if err != nil {
			g.log.DebugContext(r.Context(), "no valid session, redirecting to sign-in", logger.Path(p), logger.Error(err))
			g.observe(DecisionSignIn)
			http.Redirect(w, r, SignInURL(g.cfg.SignInPath, r.URL.RequestURI()), http.StatusFound)
			return
		}

		if claims.IsPartner() && matchPrefix(g.cfg.PDMOnlyPrefixes, p) {
			g.log.InfoContext(r.Context(), "partner session denied pdm-only path",
				logger.Path(p),
				logger.UserID(claims.Subject),
				logger.Role(claims.Role),
				logger.PartnerID(claims.PartnerID),
			)
			g.observe(DecisionRole)
			http.Redirect(w, r, g.cfg.HomePath, http.StatusFound)
			return
		}

		g.observe(DecisionAllow)
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// Load returns the verified session carried by r, without redirecting.
// Handlers on public paths use it to look at an optional session.
func (g *Gate) Load(r *http.Request) (*Claims, bool) {
	if c, ok := FromContext(r.Context()); ok {
		return c, true
	}
	c, err := g.authenticate(r)
	return c, err == nil
}

func (g *Gate) authenticate(r *http.Request) (*Claims, error) {
	raw, err := g.transport.GetToken(r)
	if err != nil {
		return nil, err
	}
	return g.parser.Parse(raw)
}

// SignInURL builds the sign-in redirect carrying the original destination.
func SignInURL(signInPath, requestURI string) string {
	if requestURI == "" {
		requestURI = "/"
	}
	return signInPath + "?callbackUrl=" + url.QueryEscape(requestURI)
}
