package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/specialist-booking/internal/booking"
	"github.com/iliyamo/specialist-booking/internal/logger"
	"github.com/iliyamo/specialist-booking/internal/model"
)

// Booking is the orchestrator surface the appointment endpoints use.
type Booking interface {
	CreateAppointment(ctx context.Context, req booking.CreateRequest) (*model.Appointment, error)
	RescheduleAppointment(ctx context.Context, appointmentID, userID uint64, newTime string) (*model.Appointment, error)
	DeleteAppointment(ctx context.Context, appointmentID, userID uint64) error
	DeleteAppointmentsBySpecialistAndTime(ctx context.Context, specialistID uint64, timeStr string) (int64, error)
	ListAppointments(ctx context.Context, userID uint64) ([]model.Appointment, error)
	GetAppointment(ctx context.Context, appointmentID, userID uint64) (*model.Appointment, error)
	DeleteUserAppointments(ctx context.Context, userID uint64) (booking.UserCleanup, error)
}

// AppointmentHandler serves /api/v1/appointments.  All methods assume
// JWTAuth already ran; the requester is always the token's subject.
type AppointmentHandler struct {
	svc Booking
	log *slog.Logger
}

func NewAppointmentHandler(svc Booking, log *slog.Logger) *AppointmentHandler {
	if svc == nil {
		panic("nil booking service passed to NewAppointmentHandler")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &AppointmentHandler{svc: svc, log: log}
}

// ----- DTOs -----

type createAppointmentReq struct {
	SpecialistID    uint64 `json:"specialist_id" validate:"required,gt=0"`
	AppointmentTime string `json:"appointment_time" validate:"required"`
	Service         string `json:"service" validate:"required"`
	CardNumber      string `json:"card_number" validate:"required,len=16,numeric"`
	CardCVV         string `json:"card_cvv" validate:"required,len=3,numeric"`
	CardExpiry      string `json:"card_expiry" validate:"required,card_expiry"`
}

type rescheduleReq struct {
	NewTime string `json:"new_time" validate:"required"`
}

type listResp struct {
	Items []model.Appointment `json:"items"`
	Count int                 `json:"count"`
}

// Create handles POST /appointments.
func (h *AppointmentHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req createAppointmentReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	a, err := h.svc.CreateAppointment(c.Request().Context(), booking.CreateRequest{
		UserID:       userID,
		SpecialistID: req.SpecialistID,
		Time:         req.AppointmentTime,
		Service:      req.Service,
		Card:         model.CardDetails{Number: req.CardNumber, CVV: req.CardCVV, Expiry: req.CardExpiry},
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

// List handles GET /appointments.
func (h *AppointmentHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	items, err := h.svc.ListAppointments(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	if items == nil {
		items = []model.Appointment{}
	}
	return c.JSON(http.StatusOK, listResp{Items: items, Count: len(items)})
}

// Get handles GET /appointments/:id.
func (h *AppointmentHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid appointment id")
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id, userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// Reschedule handles PUT /appointments/:id with {"new_time": ...}.
func (h *AppointmentHandler) Reschedule(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid appointment id")
	}
	var req rescheduleReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	a, err := h.svc.RescheduleAppointment(c.Request().Context(), id, userID, req.NewTime)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// Delete handles DELETE /appointments/:id.
func (h *AppointmentHandler) Delete(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid appointment id")
	}
	if err := h.svc.DeleteAppointment(c.Request().Context(), id, userID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"detail": "Appointment deleted"})
}

// DeleteBySpecialistAndTime handles
// DELETE /appointments?specialist_id=..&appointment_time=.., the cascade
// the directory calls when a specialist's slot disappears.
func (h *AppointmentHandler) DeleteBySpecialistAndTime(c echo.Context) error {
	specialistID, err := strconv.ParseUint(c.QueryParam("specialist_id"), 10, 64)
	if err != nil || specialistID == 0 {
		return badRequest(c, "specialist_id is required")
	}
	at := c.QueryParam("appointment_time")
	if at == "" {
		return badRequest(c, "appointment_time is required")
	}
	n, err := h.svc.DeleteAppointmentsBySpecialistAndTime(c.Request().Context(), specialistID, at)
	if err != nil {
		return writeError(c, err)
	}
	h.log.InfoContext(c.Request().Context(), "appointments.cascade_deleted", "specialist_id", specialistID, "deleted", n)
	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}

// DeleteUserAppointments handles DELETE /users/:id/appointments.
func (h *AppointmentHandler) DeleteUserAppointments(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	res, err := h.svc.DeleteUserAppointments(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
