package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jernejc/at-fe-sub003/handler"
	"github.com/jernejc/at-fe-sub003/pkg/binder"
	"github.com/jernejc/at-fe-sub003/pkg/cookie"
	"github.com/jernejc/at-fe-sub003/pkg/emaillink"
	"github.com/jernejc/at-fe-sub003/pkg/identity"
	"github.com/jernejc/at-fe-sub003/pkg/metrics"
	"github.com/jernejc/at-fe-sub003/pkg/session"
)

// EmailLinkService sends sign-in links and completes sign-in when one is
// opened.
type EmailLinkService struct {
	paths      Paths
	verifyPath string
	flow       *emaillink.Flow
	cookies    *cookie.Manager
	completer  *Completer
	errors     handler.ErrorHandler[handler.Context]
}

// NewEmailLinkService serves link requests under paths.SignIn and opened links
// at cfg.VerifyPath.
func NewEmailLinkService(paths Paths, cfg emaillink.Config, flow *emaillink.Flow, cookies *cookie.Manager, completer *Completer, errorHandler handler.ErrorHandler[handler.Context]) *EmailLinkService {
	verifyPath := cfg.VerifyPath
	if verifyPath == "" {
		verifyPath = paths.SignIn + "/verify"
	}
	return &EmailLinkService{
		paths:      paths,
		verifyPath: verifyPath,
		flow:       flow,
		cookies:    cookies,
		completer:  completer,
		errors:     errorHandler,
	}
}

// Routes registers the send, open and confirm endpoints.
func (s *EmailLinkService) Routes(r chi.Router) {
	r.Post(s.paths.SignIn+"/email", handler.Wrap(s.send,
		handler.WithBinders[handler.Context, SendLinkRequest](binder.JSON(), binder.Form()),
		handler.WithErrorHandler[handler.Context, SendLinkRequest](s.errors),
	))
	r.Get(s.verifyPath, handler.Wrap(s.open,
		handler.WithErrorHandler[handler.Context, struct{}](s.errors),
	))
	r.Post(s.verifyPath, handler.Wrap(s.confirm,
		handler.WithBinders[handler.Context, VerifyRequest](binder.JSON(), binder.Form()),
		handler.WithErrorHandler[handler.Context, VerifyRequest](s.errors),
	))
}

// SendLinkRequest asks for a sign-in link. CallbackURL is where to land after
// sign-in; only local paths are honoured.
type SendLinkRequest struct {
	Email       string `json:"email" form:"email"`
	CallbackURL string `json:"callbackUrl" form:"callbackUrl"`
}

// SendLinkResponse confirms the normalised address a link was sent to.
type SendLinkResponse struct {
	Email string `json:"email"`
	Sent  bool   `json:"sent"`
}

// VerifyRequest carries the address typed on a device that did not request
// the link.
type VerifyRequest struct {
	Email string `json:"email" form:"email"`
}

// VerifyPrompt asks the client for the address the link was sent to.
type VerifyPrompt struct {
	State string `json:"state"`
}

func (s *EmailLinkService) send(ctx handler.Context, req SendLinkRequest) handler.Response {
	pending, err := s.flow.Send(ctx, ctx.ResponseWriter(), req.Email, req.CallbackURL)
	if err != nil {
		s.completer.Failed(ctx, metrics.MethodEmailLink, err)
		return errorResponse(err)
	}
	s.completer.LinkSent()
	return handler.JSON(SendLinkResponse{Email: pending.Email, Sent: true},
		handler.WithJSONStatus(http.StatusAccepted))
}

// open handles the link itself. On the device that requested it sign-in
// completes straight away; elsewhere the client is asked for the address.
func (s *EmailLinkService) open(ctx handler.Context, _ struct{}) handler.Response {
	w, r := ctx.ResponseWriter(), ctx.Request()

	v, err := s.flow.Begin(r)
	if err != nil {
		s.completer.Failed(ctx, metrics.MethodEmailLink, err)
		return backToSignIn(s.cookies, s.paths, "", identity.UserMessage(err))
	}
	if v.State == emaillink.StateNeedsEmail {
		return handler.JSON(VerifyPrompt{State: v.State.String()})
	}

	callbackURL := v.Pending.CallbackURL
	user, err := s.flow.Complete(ctx, w, r, "", v.Link)
	if err != nil {
		s.completer.Failed(ctx, metrics.MethodEmailLink, err)
		return backToSignIn(s.cookies, s.paths, callbackURL, identity.UserMessage(err))
	}
	if _, err := s.completer.Complete(ctx, w, user, metrics.MethodEmailLink); err != nil {
		return backToSignIn(s.cookies, s.paths, callbackURL, identity.UserMessage(err))
	}
	return handler.Redirect(session.SafeCallback(callbackURL, s.paths.Home))
}

// confirm completes sign-in for a link opened on another device, with the
// address the user typed.
func (s *EmailLinkService) confirm(ctx handler.Context, req VerifyRequest) handler.Response {
	w, r := ctx.ResponseWriter(), ctx.Request()

	v, err := s.flow.Begin(r)
	if err != nil {
		s.completer.Failed(ctx, metrics.MethodEmailLink, err)
		return errorResponse(err)
	}
	var callbackURL string
	if v.Pending != nil {
		callbackURL = v.Pending.CallbackURL
	}

	user, err := s.flow.Complete(ctx, w, r, req.Email, v.Link)
	if err != nil {
		s.completer.Failed(ctx, metrics.MethodEmailLink, err)
		return errorResponse(err)
	}
	if _, err := s.completer.Complete(ctx, w, user, metrics.MethodEmailLink); err != nil {
		return errorResponse(err)
	}
	return handler.Redirect(session.SafeCallback(callbackURL, s.paths.Home))
}
