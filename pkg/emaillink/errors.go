package emaillink

import "errors"

var (
	ErrNoSender        = errors.New("emaillink: provider returned a link but no email sender is configured")
	ErrDeliveryFailed  = errors.New("emaillink: failed to deliver sign-in link")
	ErrPendingNotFound = errors.New("emaillink: no pending sign-in request")
)
