package idtoken

import "errors"

var (
	ErrNotConfigured   = errors.New("idtoken: verifier not configured")
	ErrMalformed       = errors.New("idtoken: malformed token")
	ErrExpired         = errors.New("idtoken: token expired")
	ErrSignature       = errors.New("idtoken: signature verification failed")
	ErrClaims          = errors.New("idtoken: invalid claims")
	ErrKeysUnavailable = errors.New("idtoken: public keys unavailable")
)
