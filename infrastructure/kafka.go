// infrastructure/kafka.go
package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// errRequeue aborts a consumer group session without marking the
// current message so it is consumed again after a rebalance.
var errRequeue = errors.New("message requeued")

// NewKafkaClient builds one client shared by the producer and the
// consumer group.
func NewKafkaClient(brokers []string, clientID string) (sarama.Client, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Version = sarama.V2_8_1_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true

	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return client, nil
}

// KafkaSink publishes to one topic, keyed so events for the same video
// or owner stay ordered within a partition.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	logger   logrus.FieldLogger
}

var _ MessageSink = (*KafkaSink)(nil)

func NewKafkaSink(producer sarama.SyncProducer, topic string, logger logrus.FieldLogger) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic, logger: logger}
}

func (s *KafkaSink) Send(_ context.Context, key string, body []byte) error {
	partition, offset, err := s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		return fmt.Errorf("failed to send to topic %s: %w", s.topic, err)
	}
	s.logger.WithFields(logrus.Fields{"topic": s.topic, "partition": partition, "offset": offset}).Debug("kafka message sent")
	return nil
}

func (s *KafkaSink) Close() error {
	return s.producer.Close()
}

// KafkaPing reports whether the shared client still has brokers.
func KafkaPing(client sarama.Client) func(context.Context) error {
	return func(context.Context) error {
		if client.Closed() {
			return errors.New("client closed")
		}
		if len(client.Brokers()) == 0 {
			return errors.New("no brokers available")
		}
		return nil
	}
}

type KafkaSubscriber struct {
	group      sarama.ConsumerGroup
	topic      string
	dispatcher Dispatcher
	backoff    time.Duration
	logger     logrus.FieldLogger
}

func NewKafkaSubscriber(group sarama.ConsumerGroup, topic string, dispatcher Dispatcher, logger logrus.FieldLogger) *KafkaSubscriber {
	return &KafkaSubscriber{
		group:      group,
		topic:      topic,
		dispatcher: dispatcher,
		backoff:    5 * time.Second,
		logger:     logger.WithField("topic", topic),
	}
}

// Run consumes until ctx is cancelled. A requeued message ends the
// session; after the backoff the next session resumes from the last
// marked offset. sarama reports a ConsumeClaim error on Errors() and
// returns nil from Consume, so the handler flags requeues itself.
func (s *KafkaSubscriber) Run(ctx context.Context) error {
	handler := &kafkaGroupHandler{dispatcher: s.dispatcher, logger: s.logger}

	go func() {
		for err := range s.group.Errors() {
			if errors.Is(err, errRequeue) {
				continue
			}
			s.logger.WithError(err).Error("kafka consumer group error")
		}
	}()

	s.logger.Info("waiting for messages")
	for {
		err := s.group.Consume(ctx, []string{s.topic}, handler)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return err
		}

		requeued := handler.requeued.Swap(false)
		if err == nil && !requeued {
			continue
		}
		log := s.logger
		if err != nil {
			log = log.WithError(err)
		}
		log.WithField("requeued", requeued).Warnf("consumer session ended, resuming in %s", s.backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.backoff):
		}
	}
}

type kafkaGroupHandler struct {
	dispatcher Dispatcher
	logger     logrus.FieldLogger
	requeued   atomic.Bool
}

func (h *kafkaGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *kafkaGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *kafkaGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if h.dispatcher.Dispatch(session.Context(), msg.Value) == Requeue {
				h.logger.WithFields(logrus.Fields{"partition": msg.Partition, "offset": msg.Offset}).Warn("leaving message unmarked for redelivery")
				h.requeued.Store(true)
				return errRequeue
			}
			session.MarkMessage(msg, "")
		}
	}
}
