package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	ExchangeName = "medagenda.events"
	ExchangeType = "topic"
)

// Routing keys for domain events published to the events exchange.
const (
	EventAppointmentCreated       = "appointment.created"
	EventAppointmentStatusChanged = "appointment.status_changed"
	EventAppointmentDeleted       = "appointment.deleted"
	EventConsultationCreated      = "consultation.created"
	EventConsultationCompleted    = "consultation.completed"
	EventConsultationDeleted      = "consultation.deleted"
)

// Publisher emits domain events. Services treat event publication as
// best-effort: a broker outage must never fail the request that
// triggered the event.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
	Close() error
}

// Envelope is the wire shape of every published event.
type Envelope struct {
	EventID    string      `json:"event_id"`
	Event      string      `json:"event"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

type amqpPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   zerolog.Logger
}

// NewPublisher connects to RabbitMQ at amqpURL and declares the topic
// exchange. If amqpURL is empty a no-op publisher is returned, so event
// publication is optional in development.
func NewPublisher(amqpURL string, logger zerolog.Logger) (Publisher, error) {
	if amqpURL == "" {
		logger.Warn().Msg("AMQP_URL not set, domain events disabled")
		return &noopPublisher{}, nil
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		ExchangeName, // name
		ExchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", ExchangeName, err)
	}

	logger.Info().Str("exchange", ExchangeName).Msg("connected to rabbitmq")

	return &amqpPublisher{
		conn:     conn,
		channel:  channel,
		exchange: ExchangeName,
		logger:   logger,
	}, nil
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	env := Envelope{
		EventID:    uuid.NewString(),
		Event:      routingKey,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", routingKey, err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    env.OccurredAt,
			MessageId:    env.EventID,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event %s: %w", routingKey, err)
	}

	p.logger.Debug().Str("event", routingKey).Str("event_id", env.EventID).Msg("published event")
	return nil
}

func (p *amqpPublisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Error().Err(err).Msg("close rabbitmq channel")
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// noopPublisher discards all events.
type noopPublisher struct{}

func (*noopPublisher) Publish(context.Context, string, interface{}) error { return nil }
func (*noopPublisher) Close() error                                       { return nil }

// NewNoopPublisher returns a publisher that discards all events. Used in
// tests and when no broker is configured.
func NewNoopPublisher() Publisher { return &noopPublisher{} }
