package booking

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// step is one entry of a saga: what to do, what kind of failure it
// produces, and how to undo it.  A step with neither undo nor gap needs no
// compensation (reads, parsing).
type step struct {
	name string
	kind Kind
	msg  string
	do   func(ctx context.Context) error
	undo func(ctx context.Context) error
	gap  string
}

// stepError lets a step override its default kind and message.
type stepError struct {
	kind Kind
	msg  string
	err  error
}

func (e *stepError) Error() string { return e.msg }

func reject(kind Kind, msg string, err error) error {
	return &stepError{kind: kind, msg: msg, err: err}
}

// saga runs steps strictly in order and, when one fails, walks the
// completed ones back in reverse.  Compensations are best effort: their
// failures are logged and recorded but never replace the original error.
type saga struct {
	op     string
	log    *slog.Logger
	tracer trace.Tracer
	done   []step
}

func (sg *saga) run(ctx context.Context, st step) error {
	ctx, span := sg.tracer.Start(ctx, "booking."+sg.op+"."+st.name)
	defer span.End()

	err := st.do(ctx)
	if err == nil {
		sg.done = append(sg.done, st)
		return nil
	}

	kind, msg, cause := st.kind, st.msg, err
	var se *stepError
	if errors.As(err, &se) {
		kind, msg, cause = se.kind, se.msg, se.err
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	span.SetAttributes(attribute.String("booking.error_kind", string(kind)))

	be := &Error{Kind: kind, Step: st.name, Message: msg, Err: cause}
	if be.Cause() != "" {
		span.SetAttributes(attribute.String("booking.error_cause", string(be.Cause())))
	}
	sg.log.WarnContext(ctx, "booking."+sg.op+".failed",
		"step", st.name,
		"kind", string(kind),
		"cause", string(be.Cause()),
		"error", cause)
	be.Compensations = sg.rollback(ctx)
	return be
}

// rollback compensates completed steps, newest first.  It detaches from
// the request's cancellation so a client hanging up does not leave a slot
// reserved.
func (sg *saga) rollback(ctx context.Context) []Compensation {
	ctx = context.WithoutCancel(ctx)
	var out []Compensation
	for i := len(sg.done) - 1; i >= 0; i-- {
		st := sg.done[i]
		switch {
		case st.undo != nil:
			out = append(out, sg.compensate(ctx, st))
		case st.gap != "":
			sg.log.WarnContext(ctx, "saga.compensation_gap", "op", sg.op, "step", st.name, "reason", st.gap)
			out = append(out, Compensation{Step: st.name, Outcome: CompensationGap, Reason: st.gap})
		}
	}
	sg.done = nil
	return out
}

func (sg *saga) compensate(ctx context.Context, st step) Compensation {
	ctx, span := sg.tracer.Start(ctx, "booking."+sg.op+".compensate."+st.name)
	defer span.End()

	if err := st.undo(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "compensation failed")
		sg.log.ErrorContext(ctx, "saga.compensation_failed", "op", sg.op, "step", st.name, "error", err)
		return Compensation{Step: st.name, Outcome: CompensationFailed, Err: err}
	}
	sg.log.InfoContext(ctx, "saga.compensated", "op", sg.op, "step", st.name)
	return Compensation{Step: st.name, Outcome: Compensated}
}
