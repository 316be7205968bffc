// Package session mints, carries and enforces the application session.
//
// A session is a stateless HS256 JWT (SessionToken) minted by
// Exchanger.Exchange from a verified identity token. It carries the user id,
// email, role and optional partner affiliation copied verbatim from the
// identity token's custom claims. There is no server-side store: expiry is
// the only way a session ends, apart from the client dropping its cookie.
//
// The token travels in an encrypted HttpOnly cookie (CookieTransport), and
// optionally in the Authorization header for API clients.
//
// Gate is the per-request gatekeeper:
//
//	public path or static asset    -> pass through
//	missing or invalid token        -> 302 /signin?callbackUrl=<request URI>
//	partner on a pdm-only prefix    -> 302 home
//	otherwise                       -> pass through with FromContext set
//
// The pdm-only prefix list ships empty and is configured through
// SESSION_PDM_ONLY_PREFIXES.
package session
