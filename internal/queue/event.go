// Package queue defines message payloads exchanged over the message broker
// and the publisher and consumer that move them.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/specialist-booking/internal/model"
)

// Routing keys on the appointments exchange.
const (
	EventCreated     = "appointment.created"
	EventRescheduled = "appointment.rescheduled"
	EventDeleted     = "appointment.deleted"
)

// AppointmentEvent is published after an appointment changes.  It carries
// enough for downstream consumers to log or notify without querying the
// appointment store.
type AppointmentEvent struct {
	EventID         string `json:"event_id"`
	Type            string `json:"type"`
	AppointmentID   uint64 `json:"appointment_id"`
	UserID          uint64 `json:"user_id"`
	SpecialistID    uint64 `json:"specialist_id"`
	AppointmentTime string `json:"appointment_time"`
	PreviousTime    string `json:"previous_time,omitempty"`
	Service         string `json:"service"`
	OccurredAt      string `json:"occurred_at"`
}

// NewAppointmentEvent builds an event of the given type for a.  Times are
// RFC3339 in UTC.
func NewAppointmentEvent(typ string, a model.Appointment) AppointmentEvent {
	return AppointmentEvent{
		EventID:         uuid.NewString(),
		Type:            typ,
		AppointmentID:   a.ID,
		UserID:          a.UserID,
		SpecialistID:    a.SpecialistID,
		AppointmentTime: a.AppointmentTime.UTC().Format(time.RFC3339),
		Service:         a.Service,
		OccurredAt:      time.Now().UTC().Format(time.RFC3339),
	}
}
