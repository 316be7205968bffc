// Package account mounts the sign-in and session endpoints.
//
// Each service is optional and registers its own routes:
//
//	paths := account.PathsFromGate(gateCfg)
//	completer := account.NewCompleter(resolver, exchanger, transport, account.WithObserver(m))
//	r.Mount("/", account.Router(account.RouterOptions{
//		SignIn:    account.NewSignInService(paths, cookies, fed.Enabled()),
//		Session:   account.NewSessionService(paths, completer, transport, gate, errs, log),
//		Google:    account.NewGoogleService(paths, googleCfg, fed, cookies, completer, log),
//		EmailLink: account.NewEmailLinkService(paths, linkCfg, flow, cookies, completer, errs),
//	}))
package account

import (
	"github.com/go-chi/chi/v5"
)

// Service registers its routes on a router.
type Service interface {
	Routes(r chi.Router)
}

// RouterOptions configures which services to mount in the account module.
type RouterOptions struct {
	SignIn    Service
	Session   Service
	Google    Service
	EmailLink Service
}

// Router creates the account router with the configured services.
func Router(opts RouterOptions) chi.Router {
	r := chi.NewRouter()
	for _, svc := range []Service{opts.SignIn, opts.Session, opts.Google, opts.EmailLink} {
		if svc != nil {
			svc.Routes(r)
		}
	}
	return r
}
