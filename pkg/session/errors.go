package session

import "errors"

var (
	// ErrSignInFailed is the only error Exchange returns. The cause is logged.
	ErrSignInFailed = errors.New("session.sign_in_failed")

	ErrSessionNotFound   = errors.New("session.not_found")
	ErrInvalidSession    = errors.New("session.invalid")
	ErrMissingSecret     = errors.New("session.missing_secret")
	ErrInvalidGateConfig = errors.New("session.invalid_gate_config")
)
