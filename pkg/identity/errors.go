package identity

import (
	"context"
	"errors"
	"fmt"
)

// User-facing outcomes of provider calls.
var (
	ErrPopupClosedOrDenied = errors.New("identity: sign-in cancelled or denied")
	ErrInvalidEmail        = errors.New("identity: invalid email")
	ErrRateLimited         = errors.New("identity: rate limited")
	ErrExpiredOrUsedLink   = errors.New("identity: link expired or already used")
	ErrEmailMismatch       = errors.New("identity: email does not match link")
	ErrUserDisabled        = errors.New("identity: user disabled")
)

// ErrInvalidLink is returned for URLs that are not provider sign-in links at all.
var ErrInvalidLink = fmt.Errorf("%w: not a sign-in link", ErrExpiredOrUsedLink)

// Infrastructure errors.
var (
	ErrProviderUnavailable = errors.New("identity: provider unavailable")
	ErrNotConfigured       = errors.New("identity: client not configured")
	ErrProvider            = errors.New("identity: provider rejected request")
)

// APIError is an error response from the provider's REST API. It unwraps to
// one of the package sentinels.
type APIError struct {
	Op     string
	Status int
	Code   string
	kind   error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity: %s: %s (%d)", e.Op, e.Code, e.Status)
}

func (e *APIError) Unwrap() error { return e.kind }

// classify maps a provider error code to a sentinel. The same code can mean
// different things depending on the operation: INVALID_EMAIL while completing
// a link means the address differs from the one the link was sent to.
func classify(op, code string, status int) error {
	switch code {
	case "INVALID_OOB_CODE", "EXPIRED_OOB_CODE":
		return ErrExpiredOrUsedLink
	case "INVALID_EMAIL", "MISSING_EMAIL":
		if op == opSignInWithEmailLink {
			return ErrEmailMismatch
		}
		return ErrInvalidEmail
	case "TOO_MANY_ATTEMPTS_TRY_LATER", "QUOTA_EXCEEDED", "RESET_PASSWORD_EXCEED_LIMIT":
		return ErrRateLimited
	case "USER_DISABLED":
		return ErrUserDisabled
	case "INVALID_IDP_RESPONSE", "INVALID_ID_TOKEN", "USER_CANCELLED":
		if op == opSignInWithIdp {
			return ErrPopupClosedOrDenied
		}
	}
	if status >= 500 {
		return ErrProviderUnavailable
	}
	return ErrProvider
}

// UserMessage converts an error from any sign-in step into a short sentence
// that can be shown to the user. Cancellation yields an empty string: the UI
// only resets its loading state.
func UserMessage(err error) string {
	switch {
	case err == nil,
		errors.Is(err, ErrPopupClosedOrDenied),
		errors.Is(err, context.Canceled):
		return ""
	case errors.Is(err, ErrInvalidEmail):
		return "Please enter a valid email address."
	case errors.Is(err, ErrRateLimited):
		return "Too many attempts. Please wait a moment and try again."
	case errors.Is(err, ErrInvalidLink):
		return "Invalid or expired sign-in link."
	case errors.Is(err, ErrExpiredOrUsedLink):
		return "This sign-in link has expired or already been used."
	case errors.Is(err, ErrEmailMismatch):
		return "The email address doesn't match the original request."
	case errors.Is(err, ErrUserDisabled):
		return "This account has been disabled."
	case errors.Is(err, ErrProviderUnavailable),
		errors.Is(err, ErrNotConfigured),
		errors.Is(err, context.DeadlineExceeded):
		return "The sign-in service is unavailable. Please try again."
	default:
		return "Sign-in failed. Please try again."
	}
}
