package redelivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-redeliver/internal/observability"
	"go-redeliver/pkg/models"

	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// messageReader is the slice of kafka.Reader the consumer loop depends on.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	GroupID       string
	Lanes         int
	FetchMinBytes int
	FetchMaxBytes int
	MaxWait       time.Duration
	Metrics       observability.MetricsCollector
	Logger        *logrus.Logger

	// Reader overrides the kafka.Reader, used by tests.
	Reader messageReader
}

// ConsumerLoop pulls messages from the source topic and drives each through
// the recovery coordinator. Messages from the same source partition are
// processed sequentially on one lane, preserving per-partition ordering;
// lanes run in parallel. Offsets are committed only after a terminal
// disposition, so nothing is lost on crash or rebalance.
//
// Ordering across a redelivered retry and newer messages on the same key is
// not preserved; that is accepted behavior of this design.
type ConsumerLoop struct {
	reader      messageReader
	coordinator *RecoveryCoordinator
	logger      *logrus.Logger
	metrics     observability.MetricsCollector
	lanes       int
}

func NewConsumerLoop(cfg ConsumerConfig, coordinator *RecoveryCoordinator) *ConsumerLoop {
	if cfg.Lanes <= 0 {
		cfg.Lanes = 4
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = 10 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewInMemoryMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.GetLogger()
	}

	reader := cfg.Reader
	if reader == nil {
		reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			Topic:          cfg.Topic,
			GroupID:        cfg.GroupID,
			MinBytes:       cfg.FetchMinBytes,
			MaxBytes:       cfg.FetchMaxBytes,
			MaxWait:        cfg.MaxWait,
			CommitInterval: 0, // manual commits
			StartOffset:    kafka.LastOffset,
		})
	}

	return &ConsumerLoop{
		reader:      reader,
		coordinator: coordinator,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		lanes:       cfg.Lanes,
	}
}

// Run consumes until ctx is cancelled. On shutdown, in-flight messages are
// abandoned without committing their offsets and redelivered after restart.
func (c *ConsumerLoop) Run(ctx context.Context, handler Handler) error {
	c.logger.WithField("lanes", c.lanes).Info("Starting consumer loop")

	lanes := make([]chan kafka.Message, c.lanes)
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 1)
	}

	g, ctx := errgroup.WithContext(ctx)

	for i := range lanes {
		lane := lanes[i]
		laneID := i
		g.Go(func() error {
			return c.worker(ctx, laneID, lane, handler)
		})
	}

	g.Go(func() error {
		defer func() {
			for _, lane := range lanes {
				close(lane)
			}
		}()
		return c.fetch(ctx, lanes)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// fetch reads messages and dispatches them to their partition's lane.
func (c *ConsumerLoop) fetch(ctx context.Context, lanes []chan kafka.Message) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("Fetcher stopping")
				return ctx.Err()
			}
			c.logger.WithError(err).Error("Failed to fetch message")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		c.metrics.IncReceived()

		lane := lanes[msg.Partition%len(lanes)]
		select {
		case lane <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// worker processes its lane sequentially, committing only after a terminal
// disposition.
func (c *ConsumerLoop) worker(ctx context.Context, id int, lane <-chan kafka.Message, handler Handler) error {
	logger := c.logger.WithField("lane", id)
	logger.Debug("Worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case kafkaMsg, ok := <-lane:
			if !ok {
				logger.Debug("Worker stopping, lane closed")
				return nil
			}

			msg := toEnvelope(kafkaMsg)
			disposition, err := c.coordinator.Process(ctx, msg, handler)
			if err != nil {
				if ctx.Err() != nil {
					// Abandoned in flight: no commit, broker redelivers.
					return ctx.Err()
				}
				logger.WithError(err).WithField("offset", kafkaMsg.Offset).
					Error("Message abandoned without terminal disposition")
				continue
			}

			c.commit(kafkaMsg, disposition)
		}
	}
}

// commit records the offset for a terminally-disposed message. Runs on its
// own context so a shutdown does not drop an already-earned commit.
func (c *ConsumerLoop) commit(msg kafka.Message, disposition Disposition) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).Error("Failed to commit message")
		return
	}

	c.logger.WithFields(logrus.Fields{
		"partition":   msg.Partition,
		"offset":      msg.Offset,
		"disposition": disposition.String(),
	}).Debug("Offset committed")
}

// Close gracefully shuts down the underlying reader.
func (c *ConsumerLoop) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close consumer: %w", err)
	}
	return nil
}

// toEnvelope converts a fetched kafka message to the internal envelope.
func toEnvelope(kafkaMsg kafka.Message) *models.Message {
	headers := make(map[string]string, len(kafkaMsg.Headers))
	for _, h := range kafkaMsg.Headers {
		headers[h.Key] = string(h.Value)
	}

	return &models.Message{
		Key:             kafkaMsg.Key,
		Value:           kafkaMsg.Value,
		SourceTopic:     kafkaMsg.Topic,
		SourcePartition: kafkaMsg.Partition,
		Offset:          kafkaMsg.Offset,
		Headers:         headers,
		Timestamp:       kafkaMsg.Time,
	}
}
