package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = echo.HeaderXRequestID

type requestIDKey struct{}

// RequestIDFrom returns the id RequestLogger stored on ctx, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestLogger assigns every request an id (reusing a well-formed
// incoming X-Request-ID), echoes it on the response and logs one line
// per request once the handler returns.
func RequestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(HeaderRequestID)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			c.Response().Header().Set(HeaderRequestID, id)
			c.Set("request_id", id)
			c.SetRequest(req.WithContext(context.WithValue(req.Context(), requestIDKey{}, id)))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			attrs := []any{
				"request_id", id,
				"method", req.Method,
				"route", c.Path(),
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"user_id", currentUserID(c),
			}
			switch {
			case status >= 500:
				log.ErrorContext(c.Request().Context(), "http.request", attrs...)
			case status >= 400:
				log.WarnContext(c.Request().Context(), "http.request", attrs...)
			default:
				log.InfoContext(c.Request().Context(), "http.request", attrs...)
			}
			return nil
		}
	}
}
