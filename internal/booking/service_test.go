package booking

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/iliyamo/specialist-booking/internal/client"
	"github.com/iliyamo/specialist-booking/internal/model"
	"github.com/iliyamo/specialist-booking/internal/queue"
)

const (
	drA      = uint64(1)
	consult  = "Consult"
	slotText = "2030-05-01T10:00:00"
)

var slot = time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)

type harness struct {
	dir   *fakeDirectory
	pay   *fakePayments
	sched *fakeSchedule
	store *fakeStore
	pub   *fakePublisher
	logs  *bytes.Buffer
	spans *tracetest.SpanRecorder
	svc   *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		dir:   &fakeDirectory{services: map[uint64][]model.ServiceOffering{drA: {{ServiceName: consult, Price: 50.0}, {ServiceName: "Checkup", Price: 20}}}},
		pay:   &fakePayments{},
		sched: newFakeSchedule(),
		store: newFakeStore(),
		pub:   &fakePublisher{},
		logs:  &bytes.Buffer{},
		spans: tracetest.NewSpanRecorder(),
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(h.spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	h.svc = NewService(Config{
		Directory: h.dir,
		Payments:  h.pay,
		Schedule:  h.sched,
		Store:     h.store,
		Publisher: h.pub,
		Logger:    slog.New(slog.NewJSONHandler(&syncWriter{w: h.logs}, &slog.HandlerOptions{Level: slog.LevelDebug})),
		Tracer:    tp.Tracer("booking-test"),
	})
	return h
}

type syncWriter struct {
	mu sync.Mutex
	w  *bytes.Buffer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func createReq(user uint64) CreateRequest {
	return CreateRequest{
		UserID:       user,
		SpecialistID: drA,
		Time:         slotText,
		Service:      consult,
		Card:         model.CardDetails{Number: "4532015112830366", CVV: "123", Expiry: "12/2030"},
	}
}

func asError(t *testing.T, err error) *Error {
	t.Helper()
	var be *Error
	require.ErrorAs(t, err, &be)
	return be
}

func (h *harness) spanNames() []string {
	var out []string
	for _, s := range h.spans.Ended() {
		out = append(out, s.Name())
	}
	return out
}

func TestCreateAppointment_HappyPath(t *testing.T) {
	h := newHarness(t)

	a, err := h.svc.CreateAppointment(context.Background(), createReq(7))
	require.NoError(t, err)

	assert.Equal(t, uint64(7), a.UserID)
	assert.Equal(t, slot, a.AppointmentTime)
	assert.Equal(t, consult, a.Service)
	assert.True(t, h.sched.has(drA, slot))
	require.Len(t, h.pay.charges, 1)
	assert.Equal(t, 50.0, h.pay.charges[0].Amount)
	assert.Equal(t, "4532015112830366", h.pay.charges[0].CardNumber)
	assert.Equal(t, []string{queue.EventCreated}, h.pub.types())
	assert.Equal(t, []string{
		"booking.create.parse_time",
		"booking.create.lookup_specialist",
		"booking.create.resolve_service",
		"booking.create.charge_payment",
		"booking.create.check_slot",
		"booking.create.reserve_slot",
		"booking.create.persist_appointment",
	}, h.spanNames())
}

// A local row exists only when directory, payment and schedule all succeed.
func TestCreateAppointment_CollaboratorMatrix(t *testing.T) {
	for mask := 0; mask < 8; mask++ {
		dirOK, payOK, schedOK := mask&1 != 0, mask&2 != 0, mask&4 != 0
		t.Run(fmt.Sprintf("dir=%v/pay=%v/sched=%v", dirOK, payOK, schedOK), func(t *testing.T) {
			h := newHarness(t)
			if !dirOK {
				h.dir.err = fmt.Errorf("dial: %w", client.ErrUnavailable)
			}
			if !payOK {
				h.pay.err = fmt.Errorf("charge: %w", client.ErrPaymentDeclined)
			}
			if !schedOK {
				h.sched.reserveErr = &client.StatusError{Op: "client.schedule.reserve", Code: 500}
			}

			a, err := h.svc.CreateAppointment(context.Background(), createReq(7))

			if dirOK && payOK && schedOK {
				require.NoError(t, err)
				assert.NotNil(t, a)
				assert.Equal(t, 1, h.store.size())
				return
			}
			require.Error(t, err)
			assert.Equal(t, 0, h.store.size())
			assert.Equal(t, 0, h.sched.size())
			assert.Empty(t, h.pub.types())
			switch {
			case !dirOK:
				assert.Equal(t, NotFound, KindOf(err))
				assert.Equal(t, 0, h.pay.count(), "no charge before the specialist is confirmed")
			case !payOK:
				assert.Equal(t, PaymentFailed, KindOf(err))
				assert.Equal(t, 0, h.sched.calls, "schedule untouched after a declined payment")
			default:
				assert.Equal(t, ScheduleReservationFailed, KindOf(err))
			}
		})
	}
}

func TestCreateAppointment_InputErrors(t *testing.T) {
	h := newHarness(t)

	req := createReq(7)
	req.Time = "tomorrow at ten"
	be := asError(t, mustFail(h.svc.CreateAppointment(context.Background(), req)))
	assert.Equal(t, InvalidInput, be.Kind)
	assert.Equal(t, StepParseTime, be.Step)

	req = createReq(7)
	req.SpecialistID = 99
	be = asError(t, mustFail(h.svc.CreateAppointment(context.Background(), req)))
	assert.Equal(t, NotFound, be.Kind)
	assert.Equal(t, "", string(be.Cause()))

	req = createReq(7)
	req.Service = "Surgery"
	be = asError(t, mustFail(h.svc.CreateAppointment(context.Background(), req)))
	assert.Equal(t, InvalidInput, be.Kind)
	assert.Equal(t, StepResolveService, be.Step)

	assert.Equal(t, 0, h.pay.count())
}

func TestCreateAppointment_StaleServiceListIsRefreshed(t *testing.T) {
	h := newHarness(t)
	dir := &refreshingDirectory{
		fakeDirectory: h.dir,
		fresh:         map[uint64][]model.ServiceOffering{drA: {{ServiceName: consult, Price: 80}, {ServiceName: "Followup", Price: 20}}},
	}
	h.svc.dir = dir

	req := createReq(7)
	req.Service = "Followup"
	_, err := h.svc.CreateAppointment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, dir.refreshes)
	require.Len(t, h.pay.charges, 1)
	assert.Equal(t, 20.0, h.pay.charges[0].Amount)

	req = createReq(8)
	req.Service = "Surgery"
	be := asError(t, mustFail(h.svc.CreateAppointment(context.Background(), req)))
	assert.Equal(t, InvalidInput, be.Kind)
	assert.Equal(t, StepResolveService, be.Step)
	assert.Equal(t, 2, dir.refreshes)
	assert.Equal(t, 1, h.pay.count())
}

func mustFail(_ *model.Appointment, err error) error { return err }

func TestCreateAppointment_UnreachableKeepsKindAddsCause(t *testing.T) {
	h := newHarness(t)
	h.sched.checkErr = fmt.Errorf("client.schedule.check: %w: i/o timeout", client.ErrUnavailable)

	_, err := h.svc.CreateAppointment(context.Background(), createReq(7))

	be := asError(t, err)
	assert.Equal(t, SlotUnavailable, be.Kind)
	assert.Equal(t, UpstreamUnavailable, be.Cause())
	assert.ErrorIs(t, err, client.ErrUnavailable)
}

func TestCreateAppointment_PersistFailureReleasesSlot(t *testing.T) {
	h := newHarness(t)
	h.store.createErr = errors.New("disk full")

	_, err := h.svc.CreateAppointment(context.Background(), createReq(7))

	be := asError(t, err)
	assert.Equal(t, InternalError, be.Kind)
	assert.Equal(t, StepPersistAppointment, be.Step)
	assert.False(t, h.sched.has(drA, slot), "reservation compensated")
	assert.Equal(t, []Compensation{
		{Step: StepReserveSlot, Outcome: Compensated},
		{Step: StepChargePayment, Outcome: CompensationGap, Reason: GapPaymentNoRefund},
	}, be.Compensations)
	assert.Contains(t, h.logs.String(), `"msg":"saga.compensation_gap"`)
	assert.Contains(t, h.logs.String(), `"msg":"saga.compensated"`)
	assert.Contains(t, h.spanNames(), "booking.create.compensate.reserve_slot")
}

func TestCreateAppointment_LocalDuplicateIsSlotUnavailable(t *testing.T) {
	h := newHarness(t)
	h.store.rows[99] = model.Appointment{ID: 99, UserID: 2, SpecialistID: drA, AppointmentTime: slot, Service: consult}

	_, err := h.svc.CreateAppointment(context.Background(), createReq(7))

	be := asError(t, err)
	assert.Equal(t, SlotUnavailable, be.Kind)
	assert.Equal(t, StepPersistAppointment, be.Step)
	assert.False(t, h.sched.has(drA, slot), "reservation compensated")
}

func TestCreateAppointment_CompensationFailureDoesNotMaskError(t *testing.T) {
	h := newHarness(t)
	h.store.createErr = errors.New("disk full")
	h.sched.releaseErr = errors.New("schedule down")

	_, err := h.svc.CreateAppointment(context.Background(), createReq(7))

	be := asError(t, err)
	assert.Equal(t, InternalError, be.Kind)
	require.Len(t, be.Compensations, 2)
	assert.Equal(t, CompensationFailed, be.Compensations[0].Outcome)
	assert.EqualError(t, be.Compensations[0].Err, "schedule down")
	assert.Contains(t, h.logs.String(), `"msg":"saga.compensation_failed"`)
}

func TestCreateAppointment_ReservationRaceIsSlotUnavailable(t *testing.T) {
	h := newHarness(t)
	h.sched.slots[slotKey{drA, slot}] = consult
	h.svc.sched = &racingSchedule{fakeSchedule: h.sched}

	_, err := h.svc.CreateAppointment(context.Background(), createReq(3))

	be := asError(t, err)
	assert.Equal(t, SlotUnavailable, be.Kind)
	assert.Equal(t, StepReserveSlot, be.Step)
	assert.ErrorIs(t, err, client.ErrSlotTaken)
	assert.Equal(t, []Compensation{{Step: StepChargePayment, Outcome: CompensationGap, Reason: GapPaymentNoRefund}}, be.Compensations)
	assert.True(t, h.sched.has(drA, slot), "the winner keeps its slot")
	assert.Equal(t, 1, h.pay.count(), "the loser was charged")
}

// racingSchedule always reports the slot free, as if another booking
// reserved it between check and reserve.
type racingSchedule struct{ *fakeSchedule }

func (r *racingSchedule) Check(context.Context, uint64, time.Time) error { return nil }

func TestCreateAppointment_ConcurrentSameSlot(t *testing.T) {
	h := newHarness(t)
	const n = 20

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.CreateAppointment(context.Background(), createReq(uint64(100+i)))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.Equal(t, SlotUnavailable, KindOf(err))
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, h.store.size())
	assert.Equal(t, 1, h.sched.size())
}

func TestEndToEnd_SecondUserRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.CreateAppointment(ctx, createReq(1))
	require.NoError(t, err)

	_, err = h.svc.CreateAppointment(ctx, createReq(2))
	assert.Equal(t, SlotUnavailable, KindOf(err))

	mine, err := h.svc.ListAppointments(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)

	theirs, err := h.svc.ListAppointments(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestDeleteAppointment_ThenListAndSlotFree(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, err := h.svc.CreateAppointment(ctx, createReq(1))
	require.NoError(t, err)

	require.NoError(t, h.svc.DeleteAppointment(ctx, a.ID, 1))

	list, err := h.svc.ListAppointments(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, h.sched.Check(ctx, drA, slot))
	assert.Equal(t, []string{queue.EventCreated, queue.EventDeleted}, h.pub.types())
}

func TestDeleteAppointment_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("not owner", func(t *testing.T) {
		h := newHarness(t)
		a, err := h.svc.CreateAppointment(ctx, createReq(1))
		require.NoError(t, err)

		err = h.svc.DeleteAppointment(ctx, a.ID, 2)
		assert.Equal(t, NotFoundOrForbidden, KindOf(err))
		err = h.svc.DeleteAppointment(ctx, a.ID+100, 1)
		assert.Equal(t, NotFoundOrForbidden, KindOf(err))
		assert.Equal(t, 1, h.store.size())
	})

	t.Run("schedule refuses keeps row", func(t *testing.T) {
		h := newHarness(t)
		a, err := h.svc.CreateAppointment(ctx, createReq(1))
		require.NoError(t, err)
		h.sched.releaseErr = &client.StatusError{Op: "client.schedule.release", Code: 500}

		err = h.svc.DeleteAppointment(ctx, a.ID, 1)

		be := asError(t, err)
		assert.Equal(t, ScheduleDeletionFailed, be.Kind)
		_, kept := h.store.get(a.ID)
		assert.True(t, kept)
	})

	t.Run("slot already gone keeps row", func(t *testing.T) {
		h := newHarness(t)
		a, err := h.svc.CreateAppointment(ctx, createReq(1))
		require.NoError(t, err)
		require.NoError(t, h.sched.Release(ctx, drA, slot))

		err = h.svc.DeleteAppointment(ctx, a.ID, 1)
		assert.Equal(t, ScheduleDeletionFailed, KindOf(err))
		assert.Equal(t, 1, h.store.size())
	})

	t.Run("local delete fails re-reserves slot", func(t *testing.T) {
		h := newHarness(t)
		a, err := h.svc.CreateAppointment(ctx, createReq(1))
		require.NoError(t, err)
		h.store.deleteErr = errors.New("lock wait timeout")

		err = h.svc.DeleteAppointment(ctx, a.ID, 1)

		be := asError(t, err)
		assert.Equal(t, InternalError, be.Kind)
		assert.Equal(t, []Compensation{{Step: StepReleaseSlot, Outcome: Compensated}}, be.Compensations)
		assert.True(t, h.sched.has(drA, slot))
	})
}

func TestRescheduleAppointment(t *testing.T) {
	ctx := context.Background()
	later := slot.Add(2 * time.Hour)

	t.Run("moves slot and row", func(t *testing.T) {
		h := newHarness(t)
		a, err := h.svc.CreateAppointment(ctx, createReq(1))
		require.NoError(t, err)

		got, err := h.svc.RescheduleAppointment(ctx, a.ID, 1, "2030-05-01T12:00:00Z")
		require.NoError(t, err)

		assert.Equal(t, later, got.AppointmentTime)
		assert.False(t, h.sched.has(drA, slot))
		assert.True(t, h.sched.has(drA, later))
		row, _ := h.store.get(a.ID)
		assert.Equal(t, later, row.AppointmentTime)
		require.Len(t, h.pub.events, 2)
		assert.Equal(t, queue.EventRescheduled, h.pub.events[1].Type)
		assert.Equal(t, "2030-05-01T10:00:00Z", h.pub.events[1].PreviousTime)
	})

	t.Run("occupied target leaves everything", func(t *testing.T) {
		h := newHarness(t)
		a, err := h.svc.CreateAppointment(ctx, createReq(1))
		require.NoError(t, err)
		other := createReq(2)
		other.Time = "2030-05-01T12:00"
		_, err = h.svc.CreateAppointment(ctx, other)
		require.NoError(t, err)

		_, err = h.svc.RescheduleAppointment(ctx, a.ID, 1, "2030-05-01T12:00")

		be := asError(t, err)
		assert.Equal(t, SlotUnavailable, be.Kind)
		assert.Equal(t, StepCheckSlot, be.Step)
		assert.True(t, h.sched.has(drA, slot))
		row, _ := h.store.get(a.ID)
		assert.Equal(t, slot, row.AppointmentTime)
	})

	t.Run("update failure moves slot back", func(t *testing.T) {
		h := newHarness(t)
		a, err := h.svc.CreateAppointment(ctx, createReq(1))
		require.NoError(t, err)
		h.store.updateErr = errors.New("deadlock")

		_, err = h.svc.RescheduleAppointment(ctx, a.ID, 1, "2030-05-01T12:00")

		be := asError(t, err)
		assert.Equal(t, InternalError, be.Kind)
		assert.Equal(t, []Compensation{{Step: StepMoveSlot, Outcome: Compensated}}, be.Compensations)
		assert.True(t, h.sched.has(drA, slot))
		assert.False(t, h.sched.has(drA, later))
	})

	t.Run("schedule update failure", func(t *testing.T) {
		h := newHarness(t)
		a, err := h.svc.CreateAppointment(ctx, createReq(1))
		require.NoError(t, err)
		h.sched.moveErr = &client.StatusError{Op: "client.schedule.move", Code: 500}

		_, err = h.svc.RescheduleAppointment(ctx, a.ID, 1, "2030-05-01T12:00")
		assert.Equal(t, ScheduleUpdateFailed, KindOf(err))
		row, _ := h.store.get(a.ID)
		assert.Equal(t, slot, row.AppointmentTime)
	})

	t.Run("same time is a no-op", func(t *testing.T) {
		h := newHarness(t)
		a, err := h.svc.CreateAppointment(ctx, createReq(1))
		require.NoError(t, err)
		before := h.sched.calls

		got, err := h.svc.RescheduleAppointment(ctx, a.ID, 1, "2030-05-01 10:00")
		require.NoError(t, err)
		assert.Equal(t, slot, got.AppointmentTime)
		assert.Equal(t, before, h.sched.calls)
	})

	t.Run("foreign or bad input", func(t *testing.T) {
		h := newHarness(t)
		a, err := h.svc.CreateAppointment(ctx, createReq(1))
		require.NoError(t, err)

		_, err = h.svc.RescheduleAppointment(ctx, a.ID, 2, "2030-05-01T12:00")
		assert.Equal(t, NotFoundOrForbidden, KindOf(err))
		_, err = h.svc.RescheduleAppointment(ctx, a.ID, 1, "noon")
		assert.Equal(t, InvalidInput, KindOf(err))
	})
}

func TestGetAppointment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, err := h.svc.CreateAppointment(ctx, createReq(1))
	require.NoError(t, err)

	got, err := h.svc.GetAppointment(ctx, a.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = h.svc.GetAppointment(ctx, a.ID, 2)
	assert.Equal(t, NotFoundOrForbidden, KindOf(err))
}

func TestDeleteAppointmentsBySpecialistAndTime(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.CreateAppointment(ctx, createReq(1))
	require.NoError(t, err)

	_, err = h.svc.DeleteAppointmentsBySpecialistAndTime(ctx, drA, "soon")
	assert.Equal(t, InvalidInput, KindOf(err))

	n, err := h.svc.DeleteAppointmentsBySpecialistAndTime(ctx, drA, "2030-05-01T10:00:00+00:00")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 0, h.store.size())
	assert.True(t, h.sched.has(drA, slot), "cascade never calls the schedule owner")
}

func TestDeleteUserAppointments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, at := range []string{"2030-05-01T10:00", "2030-05-01T11:00", "2030-05-01T12:00"} {
		req := createReq(1)
		req.Time = at
		_, err := h.svc.CreateAppointment(ctx, req)
		require.NoError(t, err)
	}
	require.NoError(t, h.sched.Release(ctx, drA, slot)) // already gone upstream

	res, err := h.svc.DeleteUserAppointments(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, UserCleanup{Deleted: 3, SlotFailures: 0}, res)
	assert.Equal(t, 0, h.sched.size())

	_, err = h.svc.CreateAppointment(ctx, createReq(2))
	require.NoError(t, err)
	h.sched.releaseErr = errors.New("down")
	res, err = h.svc.DeleteUserAppointments(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, UserCleanup{Deleted: 1, SlotFailures: 1}, res)
}

func TestListAppointments_StoreFailure(t *testing.T) {
	h := newHarness(t)
	h.store.listErr = errors.New("gone away")
	_, err := h.svc.ListAppointments(context.Background(), 1)
	be := asError(t, err)
	assert.Equal(t, InternalError, be.Kind)
	assert.Equal(t, StepListAppointments, be.Step)
}
