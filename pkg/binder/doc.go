// Package binder decodes HTTP requests into typed structs.
//
// Each binder has the signature func(r *http.Request, v any) error and is
// meant to be passed to handler.WithBinders. Binders for a request body
// return ErrBinderNotApplicable when the request carries a different media
// type, so one endpoint can accept both JSON and form posts:
//
//	type SendLinkRequest struct {
//		Email       string `json:"email" form:"email"`
//		CallbackURL string `json:"callbackUrl" form:"callbackUrl"`
//	}
//
//	r.Post("/signin/email", handler.Wrap(h.sendLink,
//		handler.WithBinders[handler.Context, SendLinkRequest](binder.JSON(), binder.Form()),
//	))
//
// Every bound string has control characters stripped. JSON decoding is strict:
// unknown fields and trailing data are rejected, and bodies are capped at
// MaxJSONSize.
package binder
