// Package client holds the HTTP clients for the booking collaborators: the
// specialist directory, the payment service and the schedule owner.
//
// Every call is bounded by a timeout.  Transport failures and timeouts are
// reported as ErrUnavailable so callers can tell "the collaborator said
// no" apart from "the collaborator could not be reached".
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/iliyamo/specialist-booking/internal/logger"
)

var (
	// ErrNotFound is returned when the collaborator answers 404.
	ErrNotFound = errors.New("not found")
	// ErrSlotTaken is returned when the schedule owner reports the slot as
	// occupied or rejects a reservation.
	ErrSlotTaken = errors.New("slot taken")
	// ErrUnavailable wraps transport errors and timeouts.
	ErrUnavailable = errors.New("collaborator unavailable")
	// ErrPaymentDeclined is returned for any non-successful charge.
	ErrPaymentDeclined = errors.New("payment declined")
)

// StatusError is an unexpected HTTP status from a collaborator.
type StatusError struct {
	Op     string
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Code, e.Detail)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Code)
}

// TimeLayout is how appointment times travel to collaborators: UTC,
// second precision, no offset.
const TimeLayout = "2006-01-02T15:04:05"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// DefaultTimeout bounds collaborator calls when none is configured.
const DefaultTimeout = 5 * time.Second

type base struct {
	http    *http.Client
	baseURL string
	timeout time.Duration
	log     *slog.Logger
}

func newBase(baseURL string, timeout time.Duration, log *slog.Logger) base {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Discard()
	}
	return base{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		log:     log,
	}
}

// response is a fully-read collaborator reply.
type response struct {
	status int
	body   []byte
}

// decode unmarshals the body into out.
func (r response) decode(out any) error {
	return json.Unmarshal(r.body, out)
}

// detail extracts a human message from common error shapes
// ({"detail": ...}, {"error": ...}, {"message": ...}).
func (r response) detail() string {
	var m map[string]any
	if json.Unmarshal(r.body, &m) != nil {
		return strings.TrimSpace(string(r.body))
	}
	for _, k := range []string{"detail", "error", "message"} {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			b, _ := json.Marshal(v)
			return string(b)
		}
	}
	return ""
}

// do performs one request.  Only transport failures are returned as
// errors (wrapped in ErrUnavailable); any HTTP status is a response.
func (b base) do(ctx context.Context, op, method, path string, query url.Values, body any) (response, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	u := b.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return response{}, fmt.Errorf("%s: encode request: %w", op, err)
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return response{}, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := b.http.Do(req)
	if err != nil {
		b.log.WarnContext(ctx, op+".unavailable", "method", method, "url", u, "error", err)
		return response{}, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		b.log.WarnContext(ctx, op+".unavailable", "method", method, "url", u, "error", err)
		return response{}, fmt.Errorf("%s: read response: %w: %v", op, ErrUnavailable, err)
	}
	b.log.DebugContext(ctx, op,
		"method", method,
		"url", u,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())
	return response{status: resp.StatusCode, body: raw}, nil
}

func (b base) unexpected(op string, r response) error {
	return &StatusError{Op: op, Code: r.status, Detail: r.detail()}
}
