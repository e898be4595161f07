package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/specialist-booking/internal/model"
)

// AppointmentRepo persists appointments in MySQL.  Times are written and
// read in UTC; the DSN sets loc=UTC and parseTime=true.
type AppointmentRepo struct {
	db *sql.DB
}

// NewAppointmentRepo constructs an AppointmentRepo with the given DB handle.
func NewAppointmentRepo(db *sql.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

const appointmentColumns = `id, user_id, specialist_id, appointment_time, service, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(s rowScanner) (*model.Appointment, error) {
	var a model.Appointment
	if err := s.Scan(&a.ID, &a.UserID, &a.SpecialistID, &a.AppointmentTime, &a.Service, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.AppointmentTime = a.AppointmentTime.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

// Create inserts a new appointment and populates the generated ID and
// timestamps on a.  A clash on (specialist_id, appointment_time) yields
// ErrDuplicate.
func (r *AppointmentRepo) Create(ctx context.Context, a *model.Appointment) error {
	const q = `INSERT INTO appointments (user_id, specialist_id, appointment_time, service) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, a.UserID, a.SpecialistID, a.AppointmentTime.UTC(), a.Service)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	got, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*a = *got
	return nil
}

// GetByID returns the appointment with the given id or ErrAppointmentNotFound.
func (r *AppointmentRepo) GetByID(ctx context.Context, id uint64) (*model.Appointment, error) {
	q := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = ?`
	a, err := scanAppointment(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment %d: %w", id, err)
	}
	return a, nil
}

// GetForUser loads an appointment and checks that userID owns it.  A row
// owned by someone else yields ErrForbidden.
func (r *AppointmentRepo) GetForUser(ctx context.Context, id, userID uint64) (*model.Appointment, error) {
	a, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, ErrForbidden
	}
	return a, nil
}

// ListByUser returns the user's appointments ordered by time.
func (r *AppointmentRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Appointment, error) {
	q := `SELECT ` + appointmentColumns + ` FROM appointments WHERE user_id = ? ORDER BY appointment_time, id`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	out := make([]model.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return out, nil
}

// UpdateTime moves an appointment to a new time.
func (r *AppointmentRepo) UpdateTime(ctx context.Context, id uint64, t time.Time) error {
	const q = `UPDATE appointments SET appointment_time = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, t.UTC(), id)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update appointment %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update appointment %d: %w", id, err)
	}
	if n == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// Delete removes a single appointment by id.
func (r *AppointmentRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete appointment %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete appointment %d: %w", id, err)
	}
	if n == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// DeleteBySpecialistAndTime removes every appointment at (specialistID, t)
// and reports how many rows went.  Used by the directory's cascade.
func (r *AppointmentRepo) DeleteBySpecialistAndTime(ctx context.Context, specialistID uint64, t time.Time) (int64, error) {
	const q = `DELETE FROM appointments WHERE specialist_id = ? AND appointment_time = ?`
	res, err := r.db.ExecContext(ctx, q, specialistID, t.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete appointments of specialist %d: %w", specialistID, err)
	}
	return res.RowsAffected()
}

// DeleteByUser removes all of a user's appointments.
func (r *AppointmentRepo) DeleteByUser(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete appointments of user %d: %w", userID, err)
	}
	return res.RowsAffected()
}
