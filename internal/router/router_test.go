package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/specialist-booking/internal/booking"
	"github.com/iliyamo/specialist-booking/internal/handler"
	"github.com/iliyamo/specialist-booking/internal/model"
	"github.com/iliyamo/specialist-booking/internal/utils"
)

const secret = "router-secret"

type stubBooking struct{ handler.Booking }

func (stubBooking) ListAppointments(context.Context, uint64) ([]model.Appointment, error) {
	return nil, nil
}

func (stubBooking) DeleteAppointmentsBySpecialistAndTime(context.Context, uint64, string) (int64, error) {
	return 1, nil
}

func (stubBooking) DeleteUserAppointments(context.Context, uint64) (booking.UserCleanup, error) {
	return booking.UserCleanup{}, nil
}

func server() *echo.Echo {
	e := echo.New()
	e.Validator = handler.NewRequestValidator()
	RegisterHealth(e, handler.Health(nil))
	RegisterAppointments(e, handler.NewAppointmentHandler(stubBooking{}, nil), secret, nil)
	return e
}

func call(t *testing.T, e *echo.Echo, method, path, role string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if role != "" {
		tok, err := utils.NewAccessToken(secret, 11, role, 5)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestRoutes(t *testing.T) {
	e := server()

	assert.Equal(t, http.StatusOK, call(t, e, http.MethodGet, "/healthz", ""))
	assert.Equal(t, http.StatusUnauthorized, call(t, e, http.MethodGet, "/api/v1/appointments", ""))
	assert.Equal(t, http.StatusOK, call(t, e, http.MethodGet, "/api/v1/appointments", "user"))

	cascade := "/api/v1/appointments?specialist_id=2&appointment_time=2030-01-01T09:00:00"
	assert.Equal(t, http.StatusForbidden, call(t, e, http.MethodDelete, cascade, "user"))
	assert.Equal(t, http.StatusOK, call(t, e, http.MethodDelete, cascade, "service"))

	assert.Equal(t, http.StatusForbidden, call(t, e, http.MethodDelete, "/api/v1/users/3/appointments", "user"))
	assert.Equal(t, http.StatusOK, call(t, e, http.MethodDelete, "/api/v1/users/3/appointments", "admin"))
}
