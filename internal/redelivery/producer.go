package redelivery

import (
	"context"
	"fmt"
	"time"

	"go-redeliver/internal/observability"
	"go-redeliver/pkg/models"

	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type PublisherConfig struct {
	Brokers      []string
	MaxAttempts  int
	WriteTimeout time.Duration
	Metrics      observability.MetricsCollector
	Logger       *logrus.Logger
}

// Publisher writes messages to explicit topic/partition destinations with
// acks=all so a nil return means the broker confirmed the write, not merely
// that it was enqueued. It is safe for concurrent use by partition workers.
type Publisher struct {
	writer  *kafka.Writer
	logger  *logrus.Logger
	metrics observability.MetricsCollector
}

// partitionPinner routes each message to the partition chosen by the
// dead-letter router. Falls back to the first partition when the destination
// topic has fewer partitions than expected.
type partitionPinner struct{}

func (partitionPinner) Balance(msg kafka.Message, partitions ...int) int {
	for _, p := range partitions {
		if p == msg.Partition {
			return p
		}
	}
	return partitions[0]
}

func NewPublisher(cfg PublisherConfig) *Publisher {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewInMemoryMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.GetLogger()
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &partitionPinner{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            cfg.MaxAttempts,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: false,
		Async:                  false,
	}

	return &Publisher{
		writer:  writer,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Publish writes one message to the given topic and partition and waits for
// broker acknowledgment.
func (p *Publisher) Publish(ctx context.Context, topic string, partition int, key, value []byte, headers map[string]string) error {
	msg := kafka.Message{
		Topic:     topic,
		Partition: partition,
		Key:       key,
		Value:     value,
		Time:      time.Now(),
	}

	if len(headers) > 0 {
		msg.Headers = make([]kafka.Header, 0, len(headers))
		for k, v := range headers {
			msg.Headers = append(msg.Headers, kafka.Header{
				Key:   k,
				Value: []byte(v),
			})
		}
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.IncPublishFailed()
		return &DeliveryError{Err: fmt.Errorf("publish to %s: %w", topic, err)}
	}

	p.metrics.IncPublished()
	p.logger.WithFields(logrus.Fields{
		"topic":     topic,
		"partition": partition,
	}).Debug("Message published")

	return nil
}

// PublishRecord publishes a dead-letter record to its routed destination.
func (p *Publisher) PublishRecord(ctx context.Context, rec *models.DeadLetterRecord) error {
	return p.Publish(ctx, rec.DestinationTopic, rec.DestinationPartition, rec.Original.Key, rec.Original.Value, rec.Headers)
}

// Close gracefully shuts down the publisher.
func (p *Publisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close publisher: %w", err)
	}
	return nil
}
