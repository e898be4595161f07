package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/specialist-booking/internal/config"
	"github.com/iliyamo/specialist-booking/internal/logger"
)

var (
	ErrPublisherClosed = errors.New("queue: publisher closed")
	ErrBufferFull      = errors.New("queue: publish buffer full")
)

// redialBackoff is how long the worker drops events after a failed dial.
const redialBackoff = 5 * time.Second

// Publisher sends AppointmentEvents to a durable topic exchange.  A nil
// *Publisher is valid and drops every event, which is how publishing is
// disabled.
//
// Publish only enqueues.  A single worker goroutine owns the broker
// connection, dials it lazily with a bounded handshake and re-dials after
// the broker drops it, so a slow or silent broker never holds up a caller.
type Publisher struct {
	url      string
	exchange string
	timeout  time.Duration
	log      *slog.Logger

	events    chan AppointmentEvent
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// owned by run
	conn    *amqp.Connection
	ch      *amqp.Channel
	retryAt time.Time
}

// NewPublisher returns nil when cfg has no broker URL.  Otherwise it starts
// the worker; Close stops it.
func NewPublisher(cfg config.QueueConfig, log *slog.Logger) *Publisher {
	if cfg.URL == "" {
		return nil
	}
	if log == nil {
		log = logger.Discard()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	p := &Publisher{
		url:      cfg.URL,
		exchange: cfg.Exchange,
		timeout:  cfg.Timeout,
		log:      log,
		events:   make(chan AppointmentEvent, cfg.Buffer),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish queues ev for delivery with its Type as routing key.  It never
// blocks: a full buffer drops the event and returns ErrBufferFull.
func (p *Publisher) Publish(ctx context.Context, ev AppointmentEvent) error {
	if p == nil {
		return nil
	}
	select {
	case <-p.stop:
		return ErrPublisherClosed
	default:
	}
	select {
	case p.events <- ev:
		return nil
	default:
		p.log.WarnContext(ctx, "queue.publish_dropped", "type", ev.Type, "appointment_id", ev.AppointmentID, "reason", "buffer full")
		return ErrBufferFull
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	defer p.closeConn()
	for {
		select {
		case ev := <-p.events:
			p.send(ev)
		case <-p.stop:
			p.flush()
			return
		}
	}
}

// flush delivers what is still buffered, giving up once a timeout has
// passed.
func (p *Publisher) flush() {
	deadline := time.Now().Add(p.timeout)
	for {
		select {
		case ev := <-p.events:
			if time.Now().After(deadline) {
				p.log.Warn("queue.publish_dropped", "type", ev.Type, "appointment_id", ev.AppointmentID, "reason", "shutdown")
				continue
			}
			p.send(ev)
		default:
			return
		}
	}
}

func (p *Publisher) send(ev AppointmentEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("queue.publish_failed", "type", ev.Type, "appointment_id", ev.AppointmentID, "error", err)
		return
	}
	ch, err := p.channel()
	if err != nil {
		p.log.Warn("queue.publish_failed", "type", ev.Type, "appointment_id", ev.AppointmentID, "error", err)
		return
	}
	err = ch.PublishWithContext(ctx, p.exchange, ev.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.log.Warn("queue.publish_failed", "type", ev.Type, "appointment_id", ev.AppointmentID, "error", err)
		p.closeConn()
		return
	}
	p.log.Debug("queue.published", "type", ev.Type, "event_id", ev.EventID)
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.closeConn()
	if time.Now().Before(p.retryAt) {
		return nil, errors.New("broker unreachable, waiting to redial")
	}
	ch, err := p.open()
	if err != nil {
		p.retryAt = time.Now().Add(redialBackoff)
		return nil, err
	}
	p.ch = ch
	return ch, nil
}

func (p *Publisher) open() (*amqp.Channel, error) {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(p.timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	p.conn = conn
	return ch, nil
}

func (p *Publisher) closeConn() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close stops accepting events, flushes the buffer within the publish
// timeout and releases the broker connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.closeOnce.Do(func() { close(p.stop) })
	<-p.done
	return nil
}
