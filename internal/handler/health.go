package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"log/slog"
	"net/http" // net/http provides status codes and response helpers
	"time"

	"github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Pinger is anything whose liveness can be probed (a *sql.DB via
// PingContext, a pgx pool via Ping).
type Pinger func(ctx context.Context) error

// Health returns a health‑check endpoint used by load balancers and
// monitoring systems.  It answers "ok" with 200 when every pinger
// succeeds within two seconds and "unavailable" with 503 otherwise.
func Health(log *slog.Logger, pingers ...Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		for _, ping := range pingers {
			if err := ping(ctx); err != nil {
				if log != nil {
					log.WarnContext(ctx, "health.ping_failed", "error", err)
				}
				return c.String(http.StatusServiceUnavailable, "unavailable")
			}
		}
		return c.String(http.StatusOK, "ok") // write "ok" with a 200 OK status; String writes plain text
	}
}
