package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/specialist-booking/internal/client"
	"github.com/iliyamo/specialist-booking/internal/model"
	"github.com/iliyamo/specialist-booking/internal/queue"
	"github.com/iliyamo/specialist-booking/internal/repository"
)

type fakeDirectory struct {
	services map[uint64][]model.ServiceOffering
	err      error
}

func (d *fakeDirectory) GetSpecialist(_ context.Context, id uint64) (*model.Specialist, error) {
	if d.err != nil {
		return nil, d.err
	}
	if _, ok := d.services[id]; !ok {
		return nil, client.ErrNotFound
	}
	return &model.Specialist{ID: id}, nil
}

func (d *fakeDirectory) ListServices(_ context.Context, id uint64) ([]model.ServiceOffering, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.services[id], nil
}

// refreshingDirectory serves a stale list from ListServices until
// RefreshServices is called.
type refreshingDirectory struct {
	*fakeDirectory
	fresh     map[uint64][]model.ServiceOffering
	refreshes int
}

func (d *refreshingDirectory) RefreshServices(_ context.Context, id uint64) ([]model.ServiceOffering, error) {
	d.refreshes++
	if d.err != nil {
		return nil, d.err
	}
	return d.fresh[id], nil
}

type fakePayments struct {
	mu      sync.Mutex
	err     error
	charges []client.ChargeRequest
}

func (p *fakePayments) Charge(_ context.Context, req client.ChargeRequest) (*client.ChargeResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.charges = append(p.charges, req)
	return &client.ChargeResponse{Success: true, TransactionID: uint64(len(p.charges))}, nil
}

func (p *fakePayments) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.charges)
}

type slotKey struct {
	specialist uint64
	at         time.Time
}

// fakeSchedule behaves like the schedule owner: Reserve is first-wins on
// (specialist, time).
type fakeSchedule struct {
	mu         sync.Mutex
	slots      map[slotKey]string
	checkErr   error
	reserveErr error
	moveErr    error
	releaseErr error
	calls      int
}

func newFakeSchedule() *fakeSchedule { return &fakeSchedule{slots: map[slotKey]string{}} }

func (s *fakeSchedule) Check(_ context.Context, id uint64, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.checkErr != nil {
		return s.checkErr
	}
	if _, ok := s.slots[slotKey{id, t}]; ok {
		return fmt.Errorf("check: %w", client.ErrSlotTaken)
	}
	return nil
}

func (s *fakeSchedule) Reserve(_ context.Context, id uint64, t time.Time, service string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.reserveErr != nil {
		return s.reserveErr
	}
	k := slotKey{id, t}
	if _, ok := s.slots[k]; ok {
		return fmt.Errorf("reserve: %w", client.ErrSlotTaken)
	}
	s.slots[k] = service
	return nil
}

func (s *fakeSchedule) Move(_ context.Context, id uint64, from, to time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.moveErr != nil {
		return s.moveErr
	}
	svc, ok := s.slots[slotKey{id, from}]
	if !ok {
		return client.ErrNotFound
	}
	if _, taken := s.slots[slotKey{id, to}]; taken {
		return client.ErrSlotTaken
	}
	delete(s.slots, slotKey{id, from})
	s.slots[slotKey{id, to}] = svc
	return nil
}

func (s *fakeSchedule) Release(_ context.Context, id uint64, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.releaseErr != nil {
		return s.releaseErr
	}
	k := slotKey{id, t}
	if _, ok := s.slots[k]; !ok {
		return client.ErrNotFound
	}
	delete(s.slots, k)
	return nil
}

func (s *fakeSchedule) has(id uint64, t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slots[slotKey{id, t}]
	return ok
}

func (s *fakeSchedule) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

type fakeStore struct {
	mu        sync.Mutex
	rows      map[uint64]model.Appointment
	nextID    uint64
	createErr error
	updateErr error
	deleteErr error
	listErr   error
}

func newFakeStore() *fakeStore { return &fakeStore{rows: map[uint64]model.Appointment{}} }

func (s *fakeStore) Create(_ context.Context, a *model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	for _, r := range s.rows {
		if r.SpecialistID == a.SpecialistID && r.AppointmentTime.Equal(a.AppointmentTime) {
			return repository.ErrDuplicate
		}
	}
	s.nextID++
	a.ID = s.nextID
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	s.rows[a.ID] = *a
	return nil
}

func (s *fakeStore) GetForUser(_ context.Context, id, userID uint64) (*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrAppointmentNotFound
	}
	if a.UserID != userID {
		return nil, repository.ErrForbidden
	}
	return &a, nil
}

func (s *fakeStore) ListByUser(_ context.Context, userID uint64) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := []model.Appointment{}
	for _, a := range s.rows {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppointmentTime.Before(out[j].AppointmentTime) })
	return out, nil
}

func (s *fakeStore) UpdateTime(_ context.Context, id uint64, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	a, ok := s.rows[id]
	if !ok {
		return repository.ErrAppointmentNotFound
	}
	a.AppointmentTime = t
	s.rows[id] = a
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.rows[id]; !ok {
		return repository.ErrAppointmentNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *fakeStore) DeleteBySpecialistAndTime(_ context.Context, specialistID uint64, t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, a := range s.rows {
		if a.SpecialistID == specialistID && a.AppointmentTime.Equal(t) {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) DeleteByUser(_ context.Context, userID uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, a := range s.rows {
		if a.UserID == userID {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *fakeStore) get(id uint64) (model.Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.rows[id]
	return a, ok
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.AppointmentEvent
}

func (p *fakePublisher) Publish(_ context.Context, ev queue.AppointmentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}
