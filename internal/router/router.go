package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/specialist-booking/internal/handler"
	"github.com/iliyamo/specialist-booking/internal/middleware"
)

// RegisterHealth exposes GET /healthz.  The handler is built by the
// caller so each binary can probe its own stores.
func RegisterHealth(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
}

// RegisterAppointments mounts the appointment API under /api/v1.  Every
// route requires a valid access token; limiter, when non-nil, runs after
// authentication so buckets can be keyed by user.  The two cascade
// endpoints are reserved for the admin and service roles because they
// act on other users' bookings.
func RegisterAppointments(e *echo.Echo, h *handler.AppointmentHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	mws := []echo.MiddlewareFunc{middleware.JWTAuth(jwtSecret)}
	if limiter != nil {
		mws = append(mws, limiter)
	}
	g := e.Group("/api/v1", mws...)

	g.POST("/appointments", h.Create)
	g.GET("/appointments", h.List)
	g.GET("/appointments/:id", h.Get)
	g.PUT("/appointments/:id", h.Reschedule)
	g.DELETE("/appointments/:id", h.Delete)

	privileged := middleware.RequireRole("admin", "service")
	g.DELETE("/appointments", h.DeleteBySpecialistAndTime, privileged)
	g.DELETE("/users/:id/appointments", h.DeleteUserAppointments, privileged)
}

// RegisterPayment mounts the simulated payment collaborator.  It is called
// by other services, not by end users, so no token is required.
func RegisterPayment(e *echo.Echo, h *handler.PaymentHandler) {
	g := e.Group("/api/v1")
	g.POST("/pay", h.Pay)
	g.GET("/transactions", h.Transactions)
}
