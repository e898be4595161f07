package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/specialist-booking/internal/booking"
)

// statusFor maps an orchestrator error kind to an HTTP status.
func statusFor(k booking.Kind) int {
	switch k {
	case booking.InvalidInput:
		return http.StatusBadRequest
	case booking.NotFound, booking.NotFoundOrForbidden:
		return http.StatusNotFound
	case booking.Forbidden:
		return http.StatusForbidden
	case booking.PaymentFailed:
		return http.StatusPaymentRequired
	case booking.SlotUnavailable:
		return http.StatusConflict
	case booking.ScheduleReservationFailed, booking.ScheduleUpdateFailed, booking.ScheduleDeletionFailed:
		return http.StatusBadGateway
	case booking.UpstreamUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Step    string `json:"step,omitempty"`
	Cause   string `json:"cause,omitempty"`
}

// writeError renders err as {"error": {...}}.  Non-orchestrator errors
// become a generic 500 so internals never leak.
func writeError(c echo.Context, err error) error {
	var be *booking.Error
	if !errors.As(err, &be) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": errorBody{
			Kind:    string(booking.InternalError),
			Message: "internal error",
		}})
	}
	return c.JSON(statusFor(be.Kind), echo.Map{"error": errorBody{
		Kind:    string(be.Kind),
		Message: be.Message,
		Step:    be.Step,
		Cause:   string(be.Cause()),
	}})
}

// badRequest renders an InvalidInput error raised before the orchestrator
// is reached (binding and validation).
func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": errorBody{
		Kind:    string(booking.InvalidInput),
		Message: msg,
	}})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": errorBody{Kind: "Unauthorized", Message: "unauthorized"}})
}
