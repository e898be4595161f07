package model

import "time"

// Specialist is the subset of the directory's specialist record the
// booking flow reads.
type Specialist struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

// ServiceOffering is one entry of a specialist's price list.
type ServiceOffering struct {
	ID          uint64  `json:"id,omitempty"`
	ServiceName string  `json:"service_name"`
	Price       float64 `json:"price"`
}

// Slot is a reserved (specialist, time) pair as returned by the schedule
// owner.  Existence of a slot means the time is taken.
type Slot struct {
	ID              uint64    `json:"id"`
	SpecialistID    uint64    `json:"specialist_id"`
	AppointmentTime time.Time `json:"appointment_time"`
	Service         string    `json:"service"`
}
