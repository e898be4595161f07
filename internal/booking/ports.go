package booking

import (
	"context"
	"time"

	"github.com/iliyamo/specialist-booking/internal/client"
	"github.com/iliyamo/specialist-booking/internal/model"
	"github.com/iliyamo/specialist-booking/internal/queue"
)

// Directory answers "does this specialist exist" and "what do they offer".
type Directory interface {
	GetSpecialist(ctx context.Context, id uint64) (*model.Specialist, error)
	ListServices(ctx context.Context, specialistID uint64) ([]model.ServiceOffering, error)
}

// ServiceRefresher is implemented by directories that cache service
// lists.  A list without the requested service is re-read through it
// before the booking is rejected.
type ServiceRefresher interface {
	RefreshServices(ctx context.Context, specialistID uint64) ([]model.ServiceOffering, error)
}

// Payments charges a card.  There is no refund.
type Payments interface {
	Charge(ctx context.Context, req client.ChargeRequest) (*client.ChargeResponse, error)
}

// Schedule owns slot reservations keyed by (specialist, time).  Reserve
// is the single point where concurrent bookings are serialised.
type Schedule interface {
	Check(ctx context.Context, specialistID uint64, t time.Time) error
	Reserve(ctx context.Context, specialistID uint64, t time.Time, service string) error
	Move(ctx context.Context, specialistID uint64, from, to time.Time) error
	Release(ctx context.Context, specialistID uint64, t time.Time) error
}

// Store is the local appointment table.
type Store interface {
	Create(ctx context.Context, a *model.Appointment) error
	GetForUser(ctx context.Context, id, userID uint64) (*model.Appointment, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Appointment, error)
	UpdateTime(ctx context.Context, id uint64, t time.Time) error
	Delete(ctx context.Context, id uint64) error
	DeleteBySpecialistAndTime(ctx context.Context, specialistID uint64, t time.Time) (int64, error)
	DeleteByUser(ctx context.Context, userID uint64) (int64, error)
}

// Publisher emits appointment events.  Failures never fail an operation.
type Publisher interface {
	Publish(ctx context.Context, ev queue.AppointmentEvent) error
}
