package templates

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"
)

// SignInLinkSubject is the subject line of the sign-in link message.
const SignInLinkSubject = "Sign in to LookAcross"

// SignInLink renders the message carrying a one-time sign-in link.
// The link is passed through templ.URL so only http(s) targets survive.
func SignInLink(email, link string, ttl time.Duration) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		href := string(templ.URL(link))
		_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>%s</title></head>
<body style="font-family:Arial,Helvetica,sans-serif;color:#1f2933;background:#f5f7fa;padding:24px">
<table role="presentation" width="100%%" cellpadding="0" cellspacing="0" style="max-width:560px;margin:0 auto;background:#ffffff;border-radius:8px;padding:32px">
<tr><td>
<h1 style="font-size:20px;margin:0 0 16px">Sign in to LookAcross</h1>
<p style="margin:0 0 16px">We received a request to sign in as <strong>%s</strong>.</p>
<p style="margin:0 0 24px"><a href="%s" style="display:inline-block;background:#2563eb;color:#ffffff;text-decoration:none;padding:12px 20px;border-radius:6px">Sign in</a></p>
<p style="margin:0 0 8px;font-size:13px;color:#52606d">The link can be used once and expires in %s.</p>
<p style="margin:0;font-size:13px;color:#52606d">If you did not request it, you can ignore this email.</p>
</td></tr>
</table>
</body>
</html>`,
			templ.EscapeString(SignInLinkSubject),
			templ.EscapeString(email),
			templ.EscapeString(href),
			templ.EscapeString(humanDuration(ttl)),
		)
		return err
	})
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "a short time"
	case d%time.Hour == 0:
		if h := int(d / time.Hour); h != 1 {
			return fmt.Sprintf("%d hours", h)
		}
		return "1 hour"
	case d%time.Minute == 0:
		if m := int(d / time.Minute); m != 1 {
			return fmt.Sprintf("%d minutes", m)
		}
		return "1 minute"
	default:
		return d.String()
	}
}
