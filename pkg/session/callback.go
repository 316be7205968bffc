package session

import (
	"strings"

	"github.com/jernejc/at-fe-sub003/pkg/validator"
)

// SafeCallback returns raw when it is a path on this site and fallback
// otherwise, so a callbackUrl can never send the user to another origin.
func SafeCallback(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !validator.IsLocalPath(raw) {
		return fallback
	}
	return raw
}
