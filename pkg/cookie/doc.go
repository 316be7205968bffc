// Package cookie manages HTTP cookies with optional HMAC signing and AES-GCM
// encryption.
//
// Secrets are never used directly as keys: each configured secret is
// expanded with HKDF into a MAC key and an encryption key. Listing more than
// one secret supports rotation, the first one writes and all of them read.
//
//	m, err := cookie.NewFromConfig(cfg)
//	if err := m.SetJSON(w, "emailForSignIn", pending, cookie.WithMaxAge(3600)); err != nil {
//		return err
//	}
//
// Errors use dotted keys (cookie.not_found, cookie.decryption_failed) so
// handlers can surface them as translation keys.
package cookie
