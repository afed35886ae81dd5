package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/lobbyrelay/internal/adapter/metrics"
	"github.com/pscheid92/lobbyrelay/internal/platform/correlation"
	apperrors "github.com/pscheid92/lobbyrelay/internal/platform/errors"
)

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := correlation.WithID(c.Request().Context(), correlation.NewID())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// ErrorHandlingMiddleware renders structured errors as JSON. Echo's own
// HTTPErrors pass through to the default handler. m may be nil.
func ErrorHandlingMiddleware(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			if httpErr, ok := errors.AsType[*echo.HTTPError](err); ok {
				m.RecordError(string(WrapHTTPError(httpErr).Type))
				return err
			}

			structuredErr := apperrors.AsStructuredError(err)
			m.RecordError(string(structuredErr.Type))
			logError(c, structuredErr)

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

func logError(c echo.Context, err *apperrors.Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	ctx := c.Request().Context()
	switch err.Type {
	case apperrors.TypeValidation, apperrors.TypeNotFound, apperrors.TypeForbidden:
		slog.InfoContext(ctx, "Request rejected", attrs...)
	case apperrors.TypeConflict, apperrors.TypeRateLimited, apperrors.TypeUnavailable:
		slog.WarnContext(ctx, "Request rejected", attrs...)
	default:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	}
}

// WrapHTTPError converts Echo's HTTPError to a structured error.
func WrapHTTPError(httpErr *echo.HTTPError) *apperrors.Error {
	message := http.StatusText(httpErr.Code)
	if msg, ok := httpErr.Message.(string); ok {
		message = msg
	}

	var err *apperrors.Error
	switch httpErr.Code {
	case http.StatusBadRequest:
		err = apperrors.ValidationError(message)
	case http.StatusForbidden:
		err = apperrors.ForbiddenError(message)
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		err = apperrors.NotFoundError(message)
	case http.StatusConflict:
		err = apperrors.ConflictError(message)
	case http.StatusTooManyRequests:
		err = apperrors.RateLimitedError(message)
	case http.StatusServiceUnavailable:
		err = apperrors.UnavailableError(message)
	default:
		err = apperrors.InternalError(message, nil)
	}
	err.Cause = httpErr.Internal
	return err
}
