package account

import (
	"context"
	"errors"
	"net/http"

	"github.com/jernejc/at-fe-sub003/handler"
	"github.com/jernejc/at-fe-sub003/pkg/emaillink"
	"github.com/jernejc/at-fe-sub003/pkg/identity"
)

// flashKey holds the message shown on the next visit to the sign-in page.
const flashKey = "signin"

// Error keys returned in the JSON envelope.
var (
	ErrSignInFailed        = handler.NewHTTPError(http.StatusUnauthorized, "sign_in_failed")
	ErrInvalidEmail        = handler.NewHTTPError(http.StatusUnprocessableEntity, "invalid_email")
	ErrEmailMismatch       = handler.NewHTTPError(http.StatusUnprocessableEntity, "email_mismatch")
	ErrLinkExpired         = handler.NewHTTPError(http.StatusGone, "link_expired")
	ErrRateLimited         = handler.NewHTTPError(http.StatusTooManyRequests, "rate_limited")
	ErrUserDisabled        = handler.NewHTTPError(http.StatusForbidden, "user_disabled")
	ErrProviderUnavailable = handler.NewHTTPError(http.StatusServiceUnavailable, "provider_unavailable")
)

// httpError classifies a sign-in error for a JSON response. The message is the
// sentence shown to the user.
func httpError(err error) (handler.HTTPError, string) {
	msg := identity.UserMessage(err)
	switch {
	case errors.Is(err, identity.ErrInvalidEmail):
		return ErrInvalidEmail, msg
	case errors.Is(err, identity.ErrEmailMismatch):
		return ErrEmailMismatch, msg
	case errors.Is(err, identity.ErrExpiredOrUsedLink):
		return ErrLinkExpired, msg
	case errors.Is(err, identity.ErrRateLimited):
		return ErrRateLimited, msg
	case errors.Is(err, identity.ErrUserDisabled):
		return ErrUserDisabled, msg
	case errors.Is(err, identity.ErrProviderUnavailable),
		errors.Is(err, identity.ErrNotConfigured),
		errors.Is(err, emaillink.ErrNoSender),
		errors.Is(err, emaillink.ErrDeliveryFailed),
		errors.Is(err, context.DeadlineExceeded):
		return ErrProviderUnavailable, identity.UserMessage(identity.ErrProviderUnavailable)
	default:
		return ErrSignInFailed, msg
	}
}

// errorResponse renders a sign-in error in the JSON envelope.
func errorResponse(err error) handler.Response {
	httpErr, msg := httpError(err)
	return handler.JSONError(httpErr, handler.WithJSONMessage(msg))
}
