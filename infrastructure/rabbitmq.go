// infrastructure/rabbitmq.go
package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Dispatcher is what subscribers hand each delivery body to.
type Dispatcher interface {
	Dispatch(ctx context.Context, body []byte) Disposition
}

var _ Dispatcher = (*MessageDispatcher)(nil)

// DialRabbitMQ connects, retrying while the broker comes up.
func DialRabbitMQ(ctx context.Context, url string, logger logrus.FieldLogger) (*amqp.Connection, error) {
	var err error
	for i := 1; i <= connectAttempts; i++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(url)
		if err == nil {
			logger.Info("connected to rabbitmq")
			return conn, nil
		}
		logger.WithError(err).Warnf("rabbitmq not reachable, retrying in %s (%d/%d)", connectDelay, i, connectAttempts)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectDelay):
		}
	}
	return nil, fmt.Errorf("failed to connect to rabbitmq after %d attempts: %w", connectAttempts, err)
}

func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
}

// RabbitMQSink publishes each message on a fresh channel to a durable
// queue on the default exchange.
type RabbitMQSink struct {
	conn  *amqp.Connection
	queue string
}

var _ MessageSink = (*RabbitMQSink)(nil)

func NewRabbitMQSink(conn *amqp.Connection, queue string) *RabbitMQSink {
	return &RabbitMQSink{conn: conn, queue: queue}
}

func (s *RabbitMQSink) Send(ctx context.Context, _ string, body []byte) error {
	ch, err := s.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open a channel: %w", err)
	}
	defer ch.Close()

	q, err := declareQueue(ch, s.queue)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", s.queue, err)
	}

	return ch.PublishWithContext(ctx, "", q.Name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// Ping reports whether a channel can still be opened.
func (s *RabbitMQSink) Ping(context.Context) error {
	if s.conn == nil || s.conn.IsClosed() {
		return errors.New("disconnected")
	}
	ch, err := s.conn.Channel()
	if err != nil {
		return err
	}
	return ch.Close()
}

// RabbitMQSubscriber consumes the inbound queue with manual acks.
type RabbitMQSubscriber struct {
	conn       *amqp.Connection
	queue      string
	prefetch   int
	dispatcher Dispatcher
	logger     logrus.FieldLogger
}

func NewRabbitMQSubscriber(conn *amqp.Connection, queue string, dispatcher Dispatcher, logger logrus.FieldLogger) *RabbitMQSubscriber {
	return &RabbitMQSubscriber{
		conn:       conn,
		queue:      queue,
		prefetch:   10,
		dispatcher: dispatcher,
		logger:     logger.WithField("queue", queue),
	}
}

// Run blocks until ctx is cancelled or the delivery channel closes.
func (s *RabbitMQSubscriber) Run(ctx context.Context) error {
	ch, err := s.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open a channel for consumer: %w", err)
	}
	defer ch.Close()

	q, err := declareQueue(ch, s.queue)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", s.queue, err)
	}
	if err := ch.Qos(s.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		q.Name,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}

	s.logger.Info("waiting for messages")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			s.handleDelivery(ctx, d)
		}
	}
}

func (s *RabbitMQSubscriber) handleDelivery(ctx context.Context, d amqp.Delivery) {
	var err error
	switch s.dispatcher.Dispatch(ctx, d.Body) {
	case Requeue:
		err = d.Nack(false, true)
	default:
		err = d.Ack(false)
	}
	if err != nil {
		s.logger.WithError(err).WithField("delivery_tag", d.DeliveryTag).Error("failed to settle delivery")
	}
}
