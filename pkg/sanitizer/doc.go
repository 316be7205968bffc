// Package sanitizer normalises user-supplied input before it is validated or
// forwarded to the identity provider.
package sanitizer
