// Package handler provides type-safe HTTP request handling.
//
// Handlers are generic functions that receive a bound request struct and
// return a Response:
//
//	type ExchangeRequest struct {
//		IDToken string `json:"idToken"`
//	}
//
//	func exchange(ctx handler.Context, req ExchangeRequest) handler.Response {
//		tok, err := exchanger.Exchange(ctx, req.IDToken)
//		if err != nil {
//			return handler.JSONError(handler.NewHTTPError(http.StatusUnauthorized, "sign_in_failed"))
//		}
//		return handler.JSON(tok.Claims)
//	}
//
//	r.Post("/api/auth/session", handler.Wrap(exchange,
//		handler.WithBinders[handler.Context, ExchangeRequest](binder.JSON()),
//	))
//
// Binding and rendering errors are passed to an ErrorHandler. NewErrorHandler
// logs them (4xx at WARN, 5xx at ERROR) and answers with the JSON envelope:
//
//	{"error": {"code": "sign_in_failed", "message": "Unauthorized"}}
//
// Successful JSON responses use the same envelope with a "data" member.
package handler
