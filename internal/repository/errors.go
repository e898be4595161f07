// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// booking orchestrator to distinguish between different failure
// scenarios. For example, ErrForbidden indicates that the current user
// is not allowed to touch an appointment owned by someone else, while
// ErrDuplicate signals that the (specialist, time) pair is already
// booked locally.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrAppointmentNotFound is returned when no appointment row matches.
var ErrAppointmentNotFound = errors.New("appointment not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrDuplicate is returned when an insert or update would violate the
// UNIQUE(specialist_id, appointment_time) key.
var ErrDuplicate = errors.New("duplicate appointment")

// isDuplicate reports whether err is MySQL error 1062 (ER_DUP_ENTRY).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
