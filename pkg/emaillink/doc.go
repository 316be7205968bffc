// Package emaillink implements passwordless sign-in through one-time links.
//
// Send validates the address, applies a per-address rate limit, asks the
// identity provider for a link that returns to APP_URL + EMAIL_LINK_VERIFY_PATH
// and stores a PendingEmailLinkRequest in the encrypted "emailForSignIn"
// cookie. When the provider hands the link back (service-account delivery),
// the flow mails it itself through package email.
//
// When the link is opened, Begin reports StateReady if this device still has
// the pending record, or StateNeedsEmail when the user opened the link
// elsewhere and must confirm the address. Complete finishes sign-in with the
// provider and clears the record. Claims resolution and the session exchange
// are left to the caller.
package emaillink
