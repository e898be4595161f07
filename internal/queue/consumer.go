package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/specialist-booking/internal/config"
	"github.com/iliyamo/specialist-booking/internal/logger"
)

// StartAuditConsumer binds cfg.AuditQueue to appointment.* on the exchange
// and appends one line per event to cfg.AuditLogPath.  It reconnects with
// exponential backoff until ctx is cancelled, then returns ctx.Err().
// Payloads that cannot be decoded are rejected without requeue so they do
// not loop.
func StartAuditConsumer(ctx context.Context, cfg config.QueueConfig, log *slog.Logger) error {
	if log == nil {
		log = logger.Discard()
	}
	log = log.With("component", "audit-consumer")
	backoff := time.Second
	for {
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			log.Warn("queue.consumer.dial_failed", "error", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, cfg, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("queue.consumer.loop_ended", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, cfg config.QueueConfig, log *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("queue.consumer.qos_failed", "error", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	q, err := ch.QueueDeclare(cfg.AuditQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, "appointment.*", cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	log.Info("queue.consumer.started", "queue", q.Name, "exchange", cfg.Exchange)
	for d := range msgs {
		if err := appendAudit(cfg.AuditLogPath, d.Body); err != nil {
			log.Warn("queue.consumer.handle_failed", "error", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func appendAudit(path string, body []byte) error {
	var ev AppointmentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	return writeAuditLine(f, ev)
}

func writeAuditLine(w io.Writer, ev AppointmentEvent) error {
	line := fmt.Sprintf("[%s] %s | appointment_id=%d | user_id=%d | specialist_id=%d | time=%s",
		ev.OccurredAt, ev.Type, ev.AppointmentID, ev.UserID, ev.SpecialistID, ev.AppointmentTime)
	if ev.PreviousTime != "" {
		line += " | previous_time=" + ev.PreviousTime
	}
	line += fmt.Sprintf(" | service=%q | event_id=%s\n", ev.Service, ev.EventID)
	if _, err := io.WriteString(w, line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
