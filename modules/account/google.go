package account

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jernejc/at-fe-sub003/handler"
	"github.com/jernejc/at-fe-sub003/pkg/binder"
	"github.com/jernejc/at-fe-sub003/pkg/cookie"
	"github.com/jernejc/at-fe-sub003/pkg/identity"
	"github.com/jernejc/at-fe-sub003/pkg/logger"
	"github.com/jernejc/at-fe-sub003/pkg/metrics"
	"github.com/jernejc/at-fe-sub003/pkg/session"
)

// StateCookie binds an authorization response to the browser that started it.
const StateCookie = "lookacross.oauth-state"

// CallbackPath is where the provider sends the browser back.
const CallbackPath = "/api/auth/callback/google"

// GoogleService is the federated sign-in: a redirect to Google and back.
type GoogleService struct {
	paths     Paths
	fed       *identity.Federated
	cookies   *cookie.Manager
	completer *Completer
	stateTTL  time.Duration
	log       *slog.Logger
}

// NewGoogleService serves the Google redirect and its callback.
func NewGoogleService(paths Paths, cfg identity.GoogleConfig, fed *identity.Federated, cookies *cookie.Manager, completer *Completer, log *slog.Logger) *GoogleService {
	if log == nil {
		log = logger.Nop()
	}
	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &GoogleService{
		paths:     paths,
		fed:       fed,
		cookies:   cookies,
		completer: completer,
		stateTTL:  ttl,
		log:       log.With(logger.Component("account")),
	}
}

// Routes registers the start and callback endpoints.
func (s *GoogleService) Routes(r chi.Router) {
	r.Get(s.paths.SignIn+"/google", handler.Wrap(s.start,
		handler.WithBinders[handler.Context, GoogleStartRequest](binder.Query()),
	))
	r.Get(CallbackPath, handler.Wrap(s.callback,
		handler.WithBinders[handler.Context, GoogleCallbackRequest](binder.Query()),
	))
}

// GoogleStartRequest starts the flow, remembering where to return.
type GoogleStartRequest struct {
	CallbackURL string `query:"callbackUrl"`
}

// GoogleCallbackRequest is what Google appends to the callback URL.
type GoogleCallbackRequest struct {
	State string `query:"state"`
	Code  string `query:"code"`
	Error string `query:"error"`
}

type oauthState struct {
	State       string `json:"state"`
	CallbackURL string `json:"callback_url"`
}

func (s *GoogleService) start(ctx handler.Context, req GoogleStartRequest) handler.Response {
	callbackURL := session.SafeCallback(req.CallbackURL, "")
	if !s.fed.Enabled() {
		s.completer.Failed(ctx, metrics.MethodGoogle, identity.ErrNotConfigured)
		return backToSignIn(s.cookies, s.paths, callbackURL, identity.UserMessage(identity.ErrNotConfigured))
	}

	st := oauthState{State: uuid.NewString(), CallbackURL: callbackURL}
	return handler.ResponseFunc(func(w http.ResponseWriter, r *http.Request) error {
		if err := s.cookies.SetJSON(w, StateCookie, st, cookie.WithMaxAge(int(s.stateTTL.Seconds()))); err != nil {
			return err
		}
		http.Redirect(w, r, s.fed.AuthURL(st.State), http.StatusFound)
		return nil
	})
}

// callback finishes the federated flow. A dismissed or declined consent
// returns to the sign-in page without a message.
func (s *GoogleService) callback(ctx handler.Context, req GoogleCallbackRequest) handler.Response {
	w, r := ctx.ResponseWriter(), ctx.Request()

	var st oauthState
	stateErr := s.cookies.GetJSON(r, StateCookie, &st)
	s.cookies.Delete(w, StateCookie)

	if err := identity.CallbackError(req.Error); err != nil {
		s.completer.Failed(ctx, metrics.MethodGoogle, err)
		return backToSignIn(s.cookies, s.paths, st.CallbackURL, identity.UserMessage(err))
	}

	if stateErr != nil || req.State == "" ||
		subtle.ConstantTimeCompare([]byte(st.State), []byte(req.State)) != 1 {
		s.log.WarnContext(ctx, "oauth state mismatch", logger.Error(stateErr))
		s.completer.Failed(ctx, metrics.MethodGoogle, session.ErrSignInFailed)
		return backToSignIn(s.cookies, s.paths, "", identity.UserMessage(session.ErrSignInFailed))
	}

	user, err := s.fed.SignIn(ctx, req.Code)
	if err != nil {
		s.completer.Failed(ctx, metrics.MethodGoogle, err)
		return backToSignIn(s.cookies, s.paths, st.CallbackURL, identity.UserMessage(err))
	}

	if _, err := s.completer.Complete(ctx, w, user, metrics.MethodGoogle); err != nil {
		return backToSignIn(s.cookies, s.paths, st.CallbackURL, identity.UserMessage(err))
	}
	return handler.Redirect(session.SafeCallback(st.CallbackURL, s.paths.Home))
}
