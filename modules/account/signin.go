package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jernejc/at-fe-sub003/handler"
	"github.com/jernejc/at-fe-sub003/pkg/binder"
	"github.com/jernejc/at-fe-sub003/pkg/cookie"
	"github.com/jernejc/at-fe-sub003/pkg/session"
)

// SignInService describes the sign-in options to the client and carries the
// message of a failed redirect-based attempt.
type SignInService struct {
	paths   Paths
	cookies *cookie.Manager
	google  bool
}

// NewSignInService describes the sign-in page. googleEnabled controls
// whether Google is offered.
func NewSignInService(paths Paths, cookies *cookie.Manager, googleEnabled bool) *SignInService {
	return &SignInService{paths: paths, cookies: cookies, google: googleEnabled}
}

// Routes registers GET on the sign-in path.
func (s *SignInService) Routes(r chi.Router) {
	r.Get(s.paths.SignIn, handler.Wrap(s.show,
		handler.WithBinders[handler.Context, SignInRequest](binder.Query()),
	))
}

// SignInRequest is the sign-in page query.
type SignInRequest struct {
	CallbackURL string `query:"callbackUrl"`
}

// SignInPage is the data behind the sign-in screen.
type SignInPage struct {
	Methods     []string `json:"methods"`
	CallbackURL string   `json:"callbackUrl"`
	Message     string   `json:"message,omitempty"`
}

func (s *SignInService) show(ctx handler.Context, req SignInRequest) handler.Response {
	page := SignInPage{
		Methods:     []string{"email_link"},
		CallbackURL: session.SafeCallback(req.CallbackURL, s.paths.Home),
	}
	if s.google {
		page.Methods = []string{"google", "email_link"}
	}

	var msg string
	if err := s.cookies.GetFlash(ctx.ResponseWriter(), ctx.Request(), flashKey, &msg); err == nil {
		page.Message = msg
	}
	return handler.JSON(page)
}

// backToSignIn redirects to the sign-in page, keeping the callback and
// leaving msg for the next GET /signin. An empty msg redirects silently.
func backToSignIn(cookies *cookie.Manager, paths Paths, callbackURL, msg string) handler.Response {
	return handler.ResponseFunc(func(w http.ResponseWriter, r *http.Request) error {
		if msg != "" {
			if err := cookies.SetFlash(w, flashKey, msg); err != nil {
				return err
			}
		}
		target := paths.SignIn
		if cb := session.SafeCallback(callbackURL, ""); cb != "" {
			target = session.SignInURL(paths.SignIn, cb)
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return nil
	})
}
