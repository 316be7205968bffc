package account

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jernejc/at-fe-sub003/handler"
	"github.com/jernejc/at-fe-sub003/pkg/binder"
	"github.com/jernejc/at-fe-sub003/pkg/logger"
	"github.com/jernejc/at-fe-sub003/pkg/session"
)

// Loader reads the session of a request. *session.Gate implements it.
type Loader interface {
	Load(r *http.Request) (*session.Claims, bool)
}

// SessionService is the session exchange endpoint plus session read and
// sign-out.
type SessionService struct {
	paths     Paths
	completer *Completer
	transport session.Transport
	loader    Loader
	errors    handler.ErrorHandler[handler.Context]
	log       *slog.Logger
}

// NewSessionService serves the exchange, current-session and sign-out
// endpoints.
func NewSessionService(paths Paths, completer *Completer, transport session.Transport, loader Loader, errorHandler handler.ErrorHandler[handler.Context], log *slog.Logger) *SessionService {
	if log == nil {
		log = logger.Nop()
	}
	return &SessionService{
		paths:     paths,
		completer: completer,
		transport: transport,
		loader:    loader,
		errors:    errorHandler,
		log:       log.With(logger.Component("account")),
	}
}

// Routes registers the session endpoints under /api/auth.
func (s *SessionService) Routes(r chi.Router) {
	r.Post("/api/auth/session", handler.Wrap(s.exchange,
		handler.WithBinders[handler.Context, ExchangeRequest](binder.JSON(), binder.Form()),
		handler.WithErrorHandler[handler.Context, ExchangeRequest](s.errors),
	))
	r.Get("/api/auth/session", handler.Wrap(s.current,
		handler.WithErrorHandler[handler.Context, struct{}](s.errors),
	))
	r.Post("/api/auth/signout", handler.Wrap(s.signOut,
		handler.WithErrorHandler[handler.Context, struct{}](s.errors),
	))
}

// ExchangeRequest carries an identity token obtained by the client.
type ExchangeRequest struct {
	IDToken string `json:"idToken" form:"idToken"`
}

// SessionView is the JSON form of a session.
type SessionView struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	PartnerID   *int64    `json:"partner_id"`
	PartnerName *string   `json:"partner_name"`
	Name        string    `json:"name,omitempty"`
	Picture     string    `json:"picture,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// NewSessionView flattens session claims for clients.
func NewSessionView(c *session.Claims) SessionView {
	v := SessionView{
		UserID:      c.UserID(),
		Email:       c.Email,
		Role:        c.Role,
		PartnerID:   c.PartnerID,
		PartnerName: c.PartnerName,
		Name:        c.Name,
		Picture:     c.Picture,
	}
	if c.ExpiresAt != nil {
		v.ExpiresAt = c.ExpiresAt.UTC()
	}
	return v
}

// exchange is the session exchange endpoint. Every failure is the same
// opaque 401; the cause is only logged by the exchanger.
func (s *SessionService) exchange(ctx handler.Context, req ExchangeRequest) handler.Response {
	tok, err := s.completer.Exchange(ctx, ctx.ResponseWriter(), req.IDToken)
	if err != nil {
		return handler.JSONError(ErrSignInFailed)
	}
	return handler.JSON(NewSessionView(tok.Claims))
}

func (s *SessionService) current(ctx handler.Context, _ struct{}) handler.Response {
	claims, ok := s.loader.Load(ctx.Request())
	if !ok {
		return handler.JSONError(handler.ErrUnauthorized)
	}
	return handler.JSON(NewSessionView(claims))
}

func (s *SessionService) signOut(ctx handler.Context, _ struct{}) handler.Response {
	if err := s.transport.ClearToken(ctx.ResponseWriter()); err != nil {
		s.log.WarnContext(ctx, "failed to clear session", logger.Error(err))
	}
	if claims, ok := s.loader.Load(ctx.Request()); ok {
		s.log.InfoContext(ctx, "signed out", logger.UserID(claims.UserID()))
	}
	return handler.Redirect(s.paths.SignIn)
}
