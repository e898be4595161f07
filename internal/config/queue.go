package config

import "time"

// QueueConfig describes the RabbitMQ topology used for appointment events.
// Publishing is best effort: an empty URL disables it entirely.
type QueueConfig struct {
	URL             string // amqp connection URL; empty disables publishing
	Exchange        string // topic exchange receiving appointment.* events
	AuditQueue      string // durable queue bound by the audit consumer
	AuditLogPath    string // file the audit consumer appends to
	ConsumerEnabled bool   // start the audit consumer inside the server process

	Timeout time.Duration // bounds each dial+handshake and each publish
	Buffer  int           // events queued before Publish starts dropping
}

// LoadQueueConfig reads RABBITMQ_URL (or AMQP_URL) and the QUEUE_* knobs.
func LoadQueueConfig() QueueConfig {
	url := envStr("RABBITMQ_URL", envStr("AMQP_URL", ""))
	return QueueConfig{
		URL:             url,
		Exchange:        envStr("QUEUE_EXCHANGE", "appointments.exchange"),
		AuditQueue:      envStr("QUEUE_AUDIT", "appointments.audit"),
		AuditLogPath:    envStr("QUEUE_AUDIT_LOG", "logs/appointments.log"),
		ConsumerEnabled: url != "" && envBool("QUEUE_CONSUMER_ENABLED", false),
		Timeout:         envDur("QUEUE_TIMEOUT", 2*time.Second),
		Buffer:          max(1, envInt("QUEUE_BUFFER", 256)),
	}
}

// TracingConfig configures the OTLP trace exporter.  Tracing is off when
// no endpoint is configured.
type TracingConfig struct {
	Endpoint    string
	ServiceName string
	Env         string
}

func LoadTracingConfig(service string) TracingConfig {
	return TracingConfig{
		Endpoint:    envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName: envStr("OTEL_SERVICE_NAME", service),
		Env:         envStr("APP_ENV", "dev"),
	}
}
