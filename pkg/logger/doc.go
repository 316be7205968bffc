// Package logger builds the service's slog.Logger.
//
// New picks JSON or text output, applies the environment defaults and wraps
// the handler so that attributes carried in a request context (request id,
// environment) are appended to every record logged with that context:
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, cfg.AppName),
//		logger.WithContextExtractors(requestid.LoggerExtractor(), environment.LoggerExtractor()),
//	)
//	log.InfoContext(r.Context(), "session issued", logger.UserID(uid), logger.Role(role))
//
// The attribute helpers return an empty slog.Attr for absent values, which
// slog drops.
package logger
