package identity

import "net/url"

// IsSignInWithEmailLink reports whether link is an email sign-in link issued
// by the provider. Links wrapped by a redirect service carry the original in
// a "link" query parameter, which is checked as well.
func IsSignInWithEmailLink(link string) bool {
	return OOBCode(link) != ""
}

// OOBCode extracts the one-time code from a sign-in link, or returns "".
func OOBCode(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	q := u.Query()
	if q.Get("mode") == "signIn" && q.Get("oobCode") != "" {
		return q.Get("oobCode")
	}
	if nested := q.Get("link"); nested != "" && nested != link {
		return OOBCode(nested)
	}
	return ""
}
