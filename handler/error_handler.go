package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jernejc/at-fe-sub003/pkg/binder"
	"github.com/jernejc/at-fe-sub003/pkg/logger"
	"github.com/jernejc/at-fe-sub003/pkg/requestid"
	"github.com/jernejc/at-fe-sub003/pkg/validator"
)

func isClientError(statusCode int) bool {
	return statusCode >= http.StatusBadRequest && statusCode < http.StatusInternalServerError
}

// determineLogLevel maps HTTP status codes to appropriate log levels
func determineLogLevel(statusCode int) slog.Level {
	if isClientError(statusCode) {
		return slog.LevelWarn
	}
	return slog.LevelError
}

// classifyError turns binder errors into HTTPErrors so the response carries
// the right status; everything else is passed through.
func classifyError(err error) error {
	switch {
	case validator.IsValidationError(err):
		return err
	case errors.Is(err, binder.ErrUnsupportedMediaType), errors.Is(err, binder.ErrMissingContentType):
		return errors.Join(ErrUnsupportedMediaType, err)
	case errors.Is(err, binder.ErrInvalidJSON),
		errors.Is(err, binder.ErrInvalidForm),
		errors.Is(err, binder.ErrInvalidQuery):
		return errors.Join(ErrBadRequest, err)
	}
	return err
}

// NewErrorHandler creates the error handler shared by all routes. It logs
// with request id, method and path, then renders the JSON error envelope.
func NewErrorHandler(log *slog.Logger) ErrorHandler[Context] {
	if log == nil {
		log = slog.Default()
	}

	return func(ctx Context, err error) {
		r := ctx.Request()
		resp := JSONError(classifyError(err)).(*jsonResponse)

		log.LogAttrs(r.Context(), determineLogLevel(resp.status), "request error",
			slog.String("request_id", requestid.FromContext(r.Context())),
			logger.Error(err),
			slog.Int("status_code", resp.status),
			slog.String("method", r.Method),
			logger.Path(r.URL.Path),
			logger.Component("error_handler"),
		)

		if renderErr := resp.Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.ErrorContext(r.Context(), "failed to render error response",
				logger.Error(renderErr),
				logger.Event("render_error"),
			)
		}
	}
}
