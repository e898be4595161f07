package booking

import (
	"errors"
	"fmt"

	"github.com/iliyamo/specialist-booking/internal/client"
)

// Kind classifies a failed booking operation.  Handlers map kinds to HTTP
// statuses; callers should switch on Kind rather than on messages.
type Kind string

const (
	InvalidInput              Kind = "InvalidInput"
	NotFound                  Kind = "NotFound"
	Forbidden                 Kind = "Forbidden"
	NotFoundOrForbidden       Kind = "NotFoundOrForbidden"
	PaymentFailed             Kind = "PaymentFailed"
	SlotUnavailable           Kind = "SlotUnavailable"
	ScheduleReservationFailed Kind = "ScheduleReservationFailed"
	ScheduleUpdateFailed      Kind = "ScheduleUpdateFailed"
	ScheduleDeletionFailed    Kind = "ScheduleDeletionFailed"
	UpstreamUnavailable       Kind = "UpstreamUnavailable"
	InternalError             Kind = "InternalError"
)

// Outcome of one compensation during rollback.
type Outcome string

const (
	Compensated        Outcome = "compensated"
	CompensationFailed Outcome = "failed"
	CompensationGap    Outcome = "gap"
)

// Compensation records what rollback did for one completed step.
type Compensation struct {
	Step    string
	Outcome Outcome
	Reason  string // gap reason, empty otherwise
	Err     error  // set when Outcome is CompensationFailed
}

// Error is returned by every Service operation that fails.  Step names the
// saga step that failed; Compensations lists what rollback did, most
// recent step first.
type Error struct {
	Kind          Kind
	Step          string
	Message       string
	Err           error
	Compensations []Compensation
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (%s at %s)", e.Message, e.Kind, e.Step)
	}
	return fmt.Sprintf("%s (%s at %s): %v", e.Message, e.Kind, e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Cause is UpstreamUnavailable when the failure came from a collaborator
// that could not be reached or timed out, and empty otherwise.  It does
// not change Kind.
func (e *Error) Cause() Kind {
	if errors.Is(e.Err, client.ErrUnavailable) {
		return UpstreamUnavailable
	}
	return ""
}

// KindOf extracts the Kind of err, or InternalError for foreign errors.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return InternalError
}
