// Package booking orchestrates appointment bookings across the specialist
// directory, the payment service, the schedule owner and the local store.
//
// Each operation is a saga: an ordered list of named steps with a
// compensation table.  When a step fails, the steps already completed are
// compensated in reverse order.  Some steps cannot be undone (a captured
// payment has no refund); those are recorded as gaps and logged as
// saga.compensation_gap.
//
//	create:     parse_time, lookup_specialist, resolve_service,
//	            charge_payment (gap), check_slot, reserve_slot (release),
//	            persist_appointment
//	reschedule: load_appointment, parse_time, check_slot,
//	            move_slot (move back), update_appointment
//	delete:     load_appointment, release_slot (re-reserve),
//	            delete_appointment
package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/specialist-booking/internal/client"
	"github.com/iliyamo/specialist-booking/internal/logger"
	"github.com/iliyamo/specialist-booking/internal/model"
	"github.com/iliyamo/specialist-booking/internal/queue"
	"github.com/iliyamo/specialist-booking/internal/repository"
)

// Step names, shared by logs, spans and Error.Step.
const (
	StepParseTime          = "parse_time"
	StepLookupSpecialist   = "lookup_specialist"
	StepResolveService     = "resolve_service"
	StepChargePayment      = "charge_payment"
	StepCheckSlot          = "check_slot"
	StepReserveSlot        = "reserve_slot"
	StepPersistAppointment = "persist_appointment"
	StepLoadAppointment    = "load_appointment"
	StepMoveSlot           = "move_slot"
	StepUpdateAppointment  = "update_appointment"
	StepReleaseSlot        = "release_slot"
	StepDeleteAppointment  = "delete_appointment"
	StepListAppointments   = "list_appointments"
	StepDeleteAppointments = "delete_appointments"
)

// GapPaymentNoRefund is the documented reason charge_payment cannot be
// compensated.
const GapPaymentNoRefund = "payment captured; collaborator exposes no refund"

// Config wires a Service.  Publisher, Logger and Tracer are optional.
type Config struct {
	Directory Directory
	Payments  Payments
	Schedule  Schedule
	Store     Store
	Publisher Publisher
	Logger    *slog.Logger
	Tracer    trace.Tracer
}

// Service is the appointment orchestrator.  It holds no mutable state and
// is safe for concurrent use.
type Service struct {
	dir    Directory
	pay    Payments
	sched  Schedule
	store  Store
	pub    Publisher
	log    *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewService panics if a required collaborator is missing.
func NewService(cfg Config) *Service {
	if cfg.Directory == nil || cfg.Payments == nil || cfg.Schedule == nil || cfg.Store == nil {
		panic("booking: nil collaborator passed to NewService")
	}
	s := &Service{
		dir:    cfg.Directory,
		pay:    cfg.Payments,
		sched:  cfg.Schedule,
		store:  cfg.Store,
		pub:    cfg.Publisher,
		log:    cfg.Logger,
		tracer: cfg.Tracer,
		now:    time.Now,
	}
	if s.log == nil {
		s.log = logger.Discard()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("github.com/iliyamo/specialist-booking/internal/booking")
	}
	return s
}

func (s *Service) saga(op string, attrs ...any) *saga {
	return &saga{op: op, log: s.log.With(attrs...), tracer: s.tracer}
}

func (s *Service) publish(ctx context.Context, ev queue.AppointmentEvent) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.log.WarnContext(ctx, "booking.event_publish_failed", "type", ev.Type, "appointment_id", ev.AppointmentID, "error", err)
	}
}

// CreateRequest is the input of CreateAppointment.  Card fields are passed
// to the payment service as-is.
type CreateRequest struct {
	UserID       uint64
	SpecialistID uint64
	Time         string
	Service      string
	Card         model.CardDetails
}

// CreateAppointment books a slot: it confirms the specialist and service,
// charges the card, reserves the slot and stores the appointment.
func (s *Service) CreateAppointment(ctx context.Context, req CreateRequest) (*model.Appointment, error) {
	sg := s.saga("create", "user_id", req.UserID, "specialist_id", req.SpecialistID)

	var (
		at    time.Time
		price float64
		appt  model.Appointment
	)
	steps := []step{
		{
			name: StepParseTime, kind: InvalidInput, msg: "Invalid datetime format",
			do: func(context.Context) (err error) {
				at, err = ParseTime(req.Time)
				return err
			},
		},
		{
			name: StepLookupSpecialist, kind: NotFound, msg: "Specialist not found",
			do: func(ctx context.Context) error {
				_, err := s.dir.GetSpecialist(ctx, req.SpecialistID)
				return err
			},
		},
		{
			name: StepResolveService, kind: InvalidInput, msg: "Service not found for this specialist",
			do: func(ctx context.Context) error {
				list, err := s.dir.ListServices(ctx, req.SpecialistID)
				if err != nil {
					return reject(InvalidInput, "Could not retrieve services for specialist", err)
				}
				var ok bool
				if price, ok = findPrice(list, req.Service); ok {
					return nil
				}
				r, canRefresh := s.dir.(ServiceRefresher)
				if !canRefresh {
					return errors.New("no service named " + req.Service)
				}
				if list, err = r.RefreshServices(ctx, req.SpecialistID); err != nil {
					return reject(InvalidInput, "Could not retrieve services for specialist", err)
				}
				if price, ok = findPrice(list, req.Service); !ok {
					return errors.New("no service named " + req.Service)
				}
				return nil
			},
		},
		{
			name: StepChargePayment, kind: PaymentFailed, msg: "Payment failed",
			do: func(ctx context.Context) error {
				_, err := s.pay.Charge(ctx, client.ChargeRequest{
					UserID:       req.UserID,
					SpecialistID: req.SpecialistID,
					ServiceName:  req.Service,
					Amount:       price,
					CardNumber:   req.Card.Number,
					CardCVV:      req.Card.CVV,
					CardExpiry:   req.Card.Expiry,
				})
				return err
			},
			gap: GapPaymentNoRefund,
		},
		{
			name: StepCheckSlot, kind: SlotUnavailable, msg: "Time slot is not available",
			do: func(ctx context.Context) error {
				return s.sched.Check(ctx, req.SpecialistID, at)
			},
		},
		{
			name: StepReserveSlot, kind: ScheduleReservationFailed, msg: "Failed to reserve schedule",
			do: func(ctx context.Context) error {
				err := s.sched.Reserve(ctx, req.SpecialistID, at, req.Service)
				if errors.Is(err, client.ErrSlotTaken) {
					return reject(SlotUnavailable, "Time slot is not available", err)
				}
				return err
			},
			undo: func(ctx context.Context) error {
				return s.sched.Release(ctx, req.SpecialistID, at)
			},
		},
		{
			name: StepPersistAppointment, kind: InternalError, msg: "Failed to save appointment",
			do: func(ctx context.Context) error {
				appt = model.Appointment{
					UserID:          req.UserID,
					SpecialistID:    req.SpecialistID,
					AppointmentTime: at,
					Service:         req.Service,
				}
				err := s.store.Create(ctx, &appt)
				if errors.Is(err, repository.ErrDuplicate) {
					return reject(SlotUnavailable, "Time slot is not available", err)
				}
				return err
			},
		},
	}
	for _, st := range steps {
		if err := sg.run(ctx, st); err != nil {
			return nil, err
		}
	}

	sg.log.InfoContext(ctx, "booking.create.succeeded", "appointment_id", appt.ID, "appointment_time", appt.AppointmentTime)
	s.publish(ctx, queue.NewAppointmentEvent(queue.EventCreated, appt))
	return &appt, nil
}

func findPrice(list []model.ServiceOffering, service string) (float64, bool) {
	for _, o := range list {
		if o.ServiceName == service {
			return o.Price, true
		}
	}
	return 0, false
}

// loadStep loads an appointment the requester owns.  Missing and foreign
// rows are indistinguishable to the caller.
func (s *Service) loadStep(appointmentID, userID uint64, into *model.Appointment) step {
	return step{
		name: StepLoadAppointment, kind: InternalError, msg: "Failed to load appointment",
		do: func(ctx context.Context) error {
			a, err := s.store.GetForUser(ctx, appointmentID, userID)
			if errors.Is(err, repository.ErrAppointmentNotFound) || errors.Is(err, repository.ErrForbidden) {
				return reject(NotFoundOrForbidden, "Appointment not found or access denied", err)
			}
			if err != nil {
				return err
			}
			*into = *a
			return nil
		},
	}
}

// RescheduleAppointment moves an appointment the requester owns to a new
// time.  Moving to the time it already has is a no-op.
func (s *Service) RescheduleAppointment(ctx context.Context, appointmentID, userID uint64, newTime string) (*model.Appointment, error) {
	sg := s.saga("reschedule", "appointment_id", appointmentID, "user_id", userID)

	var (
		appt model.Appointment
		to   time.Time
	)
	if err := sg.run(ctx, s.loadStep(appointmentID, userID, &appt)); err != nil {
		return nil, err
	}
	err := sg.run(ctx, step{
		name: StepParseTime, kind: InvalidInput, msg: "Invalid datetime format",
		do: func(context.Context) (err error) {
			to, err = ParseTime(newTime)
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	from := appt.AppointmentTime
	if to.Equal(from) {
		return &appt, nil
	}

	steps := []step{
		{
			name: StepCheckSlot, kind: SlotUnavailable, msg: "Time slot is not available",
			do: func(ctx context.Context) error {
				return s.sched.Check(ctx, appt.SpecialistID, to)
			},
		},
		{
			name: StepMoveSlot, kind: ScheduleUpdateFailed, msg: "Failed to update schedule",
			do: func(ctx context.Context) error {
				return s.sched.Move(ctx, appt.SpecialistID, from, to)
			},
			undo: func(ctx context.Context) error {
				return s.sched.Move(ctx, appt.SpecialistID, to, from)
			},
		},
		{
			name: StepUpdateAppointment, kind: InternalError, msg: "Failed to update appointment",
			do: func(ctx context.Context) error {
				err := s.store.UpdateTime(ctx, appt.ID, to)
				if errors.Is(err, repository.ErrDuplicate) {
					return reject(SlotUnavailable, "Time slot is not available", err)
				}
				return err
			},
		},
	}
	for _, st := range steps {
		if err := sg.run(ctx, st); err != nil {
			return nil, err
		}
	}

	appt.AppointmentTime = to
	appt.UpdatedAt = s.now().UTC()
	sg.log.InfoContext(ctx, "booking.reschedule.succeeded", "from", from, "to", to)
	ev := queue.NewAppointmentEvent(queue.EventRescheduled, appt)
	ev.PreviousTime = from.UTC().Format(time.RFC3339)
	s.publish(ctx, ev)
	return &appt, nil
}

// DeleteAppointment releases the slot and removes an appointment the
// requester owns.  If the schedule owner refuses, the local row is kept.
func (s *Service) DeleteAppointment(ctx context.Context, appointmentID, userID uint64) error {
	sg := s.saga("delete", "appointment_id", appointmentID, "user_id", userID)

	var appt model.Appointment
	steps := []step{
		s.loadStep(appointmentID, userID, &appt),
		{
			name: StepReleaseSlot, kind: ScheduleDeletionFailed, msg: "Failed to delete schedule",
			do: func(ctx context.Context) error {
				return s.sched.Release(ctx, appt.SpecialistID, appt.AppointmentTime)
			},
			undo: func(ctx context.Context) error {
				return s.sched.Reserve(ctx, appt.SpecialistID, appt.AppointmentTime, appt.Service)
			},
		},
		{
			name: StepDeleteAppointment, kind: InternalError, msg: "Failed to delete appointment",
			do: func(ctx context.Context) error {
				err := s.store.Delete(ctx, appt.ID)
				if errors.Is(err, repository.ErrAppointmentNotFound) {
					// Removed concurrently (cascade); the slot is gone too.
					return nil
				}
				return err
			},
		},
	}
	for _, st := range steps {
		if err := sg.run(ctx, st); err != nil {
			return err
		}
	}

	sg.log.InfoContext(ctx, "booking.delete.succeeded", "specialist_id", appt.SpecialistID)
	s.publish(ctx, queue.NewAppointmentEvent(queue.EventDeleted, appt))
	return nil
}

// DeleteAppointmentsBySpecialistAndTime is the directory's cascade: it
// drops local rows at (specialistID, time) without an ownership check and
// without calling the schedule owner.
func (s *Service) DeleteAppointmentsBySpecialistAndTime(ctx context.Context, specialistID uint64, timeStr string) (int64, error) {
	sg := s.saga("cascade", "specialist_id", specialistID)

	var (
		at time.Time
		n  int64
	)
	steps := []step{
		{
			name: StepParseTime, kind: InvalidInput, msg: "Invalid datetime format",
			do: func(context.Context) (err error) {
				at, err = ParseTime(timeStr)
				return err
			},
		},
		{
			name: StepDeleteAppointments, kind: InternalError, msg: "Failed to delete appointments",
			do: func(ctx context.Context) (err error) {
				n, err = s.store.DeleteBySpecialistAndTime(ctx, specialistID, at)
				return err
			},
		},
	}
	for _, st := range steps {
		if err := sg.run(ctx, st); err != nil {
			return 0, err
		}
	}
	sg.log.InfoContext(ctx, "booking.cascade.succeeded", "appointment_time", at, "deleted", n)
	return n, nil
}

// ListAppointments returns the user's appointments ordered by time.
func (s *Service) ListAppointments(ctx context.Context, userID uint64) ([]model.Appointment, error) {
	var out []model.Appointment
	err := s.saga("list", "user_id", userID).run(ctx, step{
		name: StepListAppointments, kind: InternalError, msg: "Failed to list appointments",
		do: func(ctx context.Context) (err error) {
			out, err = s.store.ListByUser(ctx, userID)
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetAppointment returns one appointment the requester owns.
func (s *Service) GetAppointment(ctx context.Context, appointmentID, userID uint64) (*model.Appointment, error) {
	var appt model.Appointment
	if err := s.saga("get", "appointment_id", appointmentID, "user_id", userID).run(ctx, s.loadStep(appointmentID, userID, &appt)); err != nil {
		return nil, err
	}
	return &appt, nil
}

// UserCleanup reports what DeleteUserAppointments did.
type UserCleanup struct {
	Deleted      int64 `json:"deleted"`
	SlotFailures int   `json:"slot_failures"`
}

// DeleteUserAppointments is the user-removal cascade.  Each appointment's
// slot is released best effort (a slot already gone counts as released),
// then all of the user's rows are deleted.
func (s *Service) DeleteUserAppointments(ctx context.Context, userID uint64) (UserCleanup, error) {
	sg := s.saga("delete_user", "user_id", userID)

	var (
		appts []model.Appointment
		res   UserCleanup
	)
	steps := []step{
		{
			name: StepListAppointments, kind: InternalError, msg: "Failed to list appointments",
			do: func(ctx context.Context) (err error) {
				appts, err = s.store.ListByUser(ctx, userID)
				return err
			},
		},
		{
			name: StepReleaseSlot, kind: InternalError, msg: "Failed to release slots",
			do: func(ctx context.Context) error {
				for _, a := range appts {
					err := s.sched.Release(ctx, a.SpecialistID, a.AppointmentTime)
					if err != nil && !errors.Is(err, client.ErrNotFound) {
						res.SlotFailures++
						sg.log.WarnContext(ctx, "booking.delete_user.release_failed",
							"appointment_id", a.ID,
							"specialist_id", a.SpecialistID,
							"error", err)
					}
				}
				return nil
			},
		},
		{
			name: StepDeleteAppointments, kind: InternalError, msg: "Failed to delete appointments",
			do: func(ctx context.Context) (err error) {
				res.Deleted, err = s.store.DeleteByUser(ctx, userID)
				return err
			},
		},
	}
	for _, st := range steps {
		if err := sg.run(ctx, st); err != nil {
			return UserCleanup{}, err
		}
	}
	for _, a := range appts {
		s.publish(ctx, queue.NewAppointmentEvent(queue.EventDeleted, a))
	}
	sg.log.InfoContext(ctx, "booking.delete_user.succeeded", "deleted", res.Deleted, "slot_failures", res.SlotFailures)
	return res, nil
}
