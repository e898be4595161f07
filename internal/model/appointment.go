package model

import "time"

// Appointment is a user's booked visit to a specialist.  It is owned by
// the appointment service and mirrors a slot held by the schedule owner
// at the same (SpecialistID, AppointmentTime).
//
// Fields:
//
//	ID              – primary key identifier.
//	UserID          – user who booked (the authenticated requester).
//	SpecialistID    – specialist being visited.
//	AppointmentTime – start of the visit, UTC, minute precision.
//	Service         – name of the booked service as offered by the specialist.
//	CreatedAt       – creation timestamp.
//	UpdatedAt       – last update timestamp.
type Appointment struct {
	ID              uint64    `json:"id"`               // appointments.id
	UserID          uint64    `json:"user_id"`          // appointments.user_id
	SpecialistID    uint64    `json:"specialist_id"`    // appointments.specialist_id
	AppointmentTime time.Time `json:"appointment_time"` // appointments.appointment_time
	Service         string    `json:"service"`          // appointments.service
	CreatedAt       time.Time `json:"created_at"`       // appointments.created_at
	UpdatedAt       time.Time `json:"updated_at"`       // appointments.updated_at
}

// CardDetails carries the card fields of a booking request straight
// through to the payment service.  They are never stored by the
// appointment service.
type CardDetails struct {
	Number string
	CVV    string
	Expiry string // MM/YYYY
}
