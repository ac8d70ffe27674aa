package messaging

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/shared"
)

const amqpPublishTimeout = 3 * time.Second

// AMQPChannel is the part of *amqp.Channel the publisher uses
type AMQPChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes events to a durable topic exchange. The routing key
// is the event type, e.g. "order.placed".
type AMQPPublisher struct {
	ch         AMQPChannel
	conn       *amqp.Connection
	exchange   string
	serializer Serializer
	logger     *zap.Logger
}

// DialAMQP connects to url and returns a publisher on exchange
func DialAMQP(url, exchange string, serializer Serializer, logger *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	p, err := NewAMQPPublisher(ch, exchange, serializer, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewAMQPPublisher declares exchange on ch and returns a publisher using it
func NewAMQPPublisher(ch AMQPChannel, exchange string, serializer Serializer, logger *zap.Logger) (*AMQPPublisher, error) {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{
		ch:         ch,
		exchange:   exchange,
		serializer: serializer,
		logger:     logger.Named("amqp"),
	}, nil
}

// Publish sends each event as a persistent JSON message. It stops at the
// first failure.
func (p *AMQPPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, event := range events {
		body, err := p.serializer.Serialize(event)
		if err != nil {
			return fmt.Errorf("serialize %s: %w", event.EventType(), err)
		}

		pubCtx, cancel := context.WithTimeout(ctx, amqpPublishTimeout)
		err = p.ch.PublishWithContext(pubCtx, p.exchange, event.EventType(), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.EventID().String(),
			Timestamp:    event.OccurredAt(),
			Type:         event.EventType(),
			Body:         body,
		})
		cancel()
		if err != nil {
			return fmt.Errorf("publish %s: %w", event.EventType(), err)
		}

		p.logger.Debug("event published",
			zap.String("exchange", p.exchange),
			zap.String("routing_key", event.EventType()),
			zap.String("event_id", event.EventID().String()),
		)
	}
	return nil
}

// Close closes the channel and, when the publisher dialled it, the connection
func (p *AMQPPublisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

var _ shared.EventPublisher = (*AMQPPublisher)(nil)
