package emaillink

import "time"

// PendingCookie is the fixed cookie name under which the in-flight request
// is kept between sending a link and opening it on the same device.
const PendingCookie = "emailForSignIn"

// PendingEmailLinkRequest remembers which address a link was sent to, so the
// user does not have to type it again when the link is opened.
type PendingEmailLinkRequest struct {
	Email       string    `json:"email"`
	CallbackURL string    `json:"callbackUrl,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Expired reports whether the record is older than ttl at now.
func (p PendingEmailLinkRequest) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.After(p.RequestedAt.Add(ttl))
}
