// Package httpserver runs an http.Handler with graceful shutdown.
//
// Run listens on the configured address, calls start hooks once the listener
// is open, and blocks until the context is cancelled or SIGINT/SIGTERM
// arrives. In-flight requests get ShutdownTimeout to finish.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
//
// Liveness and readiness checks are served by Liveness and Readiness:
//
//	r.Get("/healthz", httpserver.Liveness())
//	r.Get("/readyz", httpserver.Readiness(log, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(rdb)}))
package httpserver
