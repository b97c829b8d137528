package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/config"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/metrics"
	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

// EventHandler stores or forwards a consumed session event
type EventHandler interface {
	Record(ctx context.Context, event models.SessionEvent) error
}

// Consumer reads session events from a durable queue bound to the event
// exchange
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	logger  *logging.Logger
}

// NewConsumer connects to RabbitMQ, declares the exchange and binds the
// event queue to every session routing key
func NewConsumer(cfg config.QueueConfig, logger *logging.Logger) (*Consumer, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	url := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Vhost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	fail := func(step string, err error) (*Consumer, error) {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to %s: %w", step, err)
	}

	if err := channel.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fail("declare exchange", err)
	}

	_, err = channel.QueueDeclare(
		cfg.EventQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fail("declare queue", err)
	}

	if err := channel.QueueBind(cfg.EventQueue, RoutingKeyPrefix+"#", cfg.Exchange, false, nil); err != nil {
		return fail("bind queue", err)
	}

	prefetch := cfg.Prefetch
	if prefetch < 1 {
		prefetch = 1
	}
	if err := channel.Qos(prefetch, 0, false); err != nil {
		return fail("set QoS", err)
	}

	return &Consumer{
		conn:    conn,
		channel: channel,
		queue:   cfg.EventQueue,
		logger:  logger.WithComponent("queue"),
	}, nil
}

// Close closes the channel and connection
func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Consume delivers events to handler until ctx is cancelled or the broker
// closes the delivery channel
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	msgs, err := c.channel.ConsumeWithContext(ctx,
		c.queue,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	return Dispatch(ctx, msgs, handler, c.logger)
}

// Dispatch acknowledges every delivery handled successfully. Malformed
// messages are dropped; handler failures are requeued.
func Dispatch(ctx context.Context, msgs <-chan amqp.Delivery, handler EventHandler, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}

			var event models.SessionEvent
			if err := json.Unmarshal(msg.Body, &event); err != nil {
				logger.WithField("routing_key", msg.RoutingKey).WithError(err).Warn("dropping malformed session event")
				metrics.RecordError("queue", "malformed_event")
				msg.Nack(false, false)
				continue
			}

			if err := handler.Record(ctx, event); err != nil {
				logger.WithSessionID(event.SessionID).WithError(err).Warn("failed to handle session event")
				msg.Nack(false, true)
				continue
			}
			msg.Ack(false)
		}
	}
}
