package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ScheduleClient talks to the schedule owner.  Slots are addressed by
// (specialist_id, appointment_time) on every call.
type ScheduleClient struct {
	base
}

func NewScheduleClient(baseURL string, timeout time.Duration, log *slog.Logger) *ScheduleClient {
	return &ScheduleClient{base: newBase(baseURL, timeout, log)}
}

type reserveRequest struct {
	SpecialistID    uint64 `json:"specialist_id"`
	AppointmentTime string `json:"appointment_time"`
	Service         string `json:"service"`
}

type moveRequest struct {
	NewTime string `json:"new_time"`
}

func slotQuery(specialistID uint64, t time.Time) url.Values {
	return url.Values{
		"specialist_id":    {strconv.FormatUint(specialistID, 10)},
		"appointment_time": {FormatTime(t)},
	}
}

// Check asks whether the slot is free.  200 means free; 400 means taken
// (or rejected) and yields ErrSlotTaken.
func (c *ScheduleClient) Check(ctx context.Context, specialistID uint64, t time.Time) error {
	const op = "client.schedule.check"
	r, err := c.do(ctx, op, http.MethodGet, "/schedules/check", slotQuery(specialistID, t), nil)
	if err != nil {
		return err
	}
	switch r.status {
	case http.StatusOK:
		return nil
	case http.StatusBadRequest, http.StatusConflict:
		return fmt.Errorf("%s: %w: %s", op, ErrSlotTaken, r.detail())
	}
	return c.unexpected(op, r)
}

// Reserve creates the slot.  A 409 or 400 means someone else got there
// first and yields ErrSlotTaken.
func (c *ScheduleClient) Reserve(ctx context.Context, specialistID uint64, t time.Time, service string) error {
	const op = "client.schedule.reserve"
	body := reserveRequest{SpecialistID: specialistID, AppointmentTime: FormatTime(t), Service: service}
	r, err := c.do(ctx, op, http.MethodPost, "/schedules", nil, body)
	if err != nil {
		return err
	}
	switch r.status {
	case http.StatusCreated, http.StatusOK:
		c.log.InfoContext(ctx, op, "specialist_id", specialistID, "appointment_time", FormatTime(t))
		return nil
	case http.StatusConflict, http.StatusBadRequest:
		return fmt.Errorf("%s: %w: %s", op, ErrSlotTaken, r.detail())
	}
	return c.unexpected(op, r)
}

// Move re-times the slot at (specialistID, from) to to.
func (c *ScheduleClient) Move(ctx context.Context, specialistID uint64, from, to time.Time) error {
	const op = "client.schedule.move"
	r, err := c.do(ctx, op, http.MethodPut, "/schedules", slotQuery(specialistID, from), moveRequest{NewTime: FormatTime(to)})
	if err != nil {
		return err
	}
	switch r.status {
	case http.StatusOK, http.StatusNoContent:
		c.log.InfoContext(ctx, op,
			"specialist_id", specialistID,
			"from", FormatTime(from),
			"to", FormatTime(to))
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case http.StatusConflict, http.StatusBadRequest:
		return fmt.Errorf("%s: %w: %s", op, ErrSlotTaken, r.detail())
	}
	return c.unexpected(op, r)
}

// Release deletes the slot.  404 yields ErrNotFound.
func (c *ScheduleClient) Release(ctx context.Context, specialistID uint64, t time.Time) error {
	const op = "client.schedule.release"
	r, err := c.do(ctx, op, http.MethodDelete, "/schedules", slotQuery(specialistID, t), nil)
	if err != nil {
		return err
	}
	switch r.status {
	case http.StatusOK, http.StatusNoContent:
		c.log.InfoContext(ctx, op, "specialist_id", specialistID, "appointment_time", FormatTime(t))
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return c.unexpected(op, r)
}
