package redelivery

import (
	"context"
	"time"

	"go-redeliver/internal/observability"
	"go-redeliver/pkg/models"

	"github.com/sirupsen/logrus"
)

// Handler processes a consumed message. Errors returned from it never escape
// the coordinator; they are classified and routed.
type Handler func(ctx context.Context, msg *models.Message) error

// RecordPublisher publishes dead-letter records. Publish must be confirmed
// by the broker before returning nil.
type RecordPublisher interface {
	PublishRecord(ctx context.Context, rec *models.DeadLetterRecord) error
}

// Disposition is the terminal outcome of processing one message. The offset
// may be committed only once one of these is reached.
type Disposition int

const (
	Succeeded Disposition = iota
	DeadLettered
)

func (d Disposition) String() string {
	if d == DeadLettered {
		return "dead-lettered"
	}
	return "succeeded"
}

type CoordinatorConfig struct {
	Backoff BackoffSchedule
	// Delivery paces retries of failed dead-letter publishes. Its MaxRetries
	// is ignored: publish retries run until confirmed or cancelled.
	Delivery   BackoffSchedule
	Classifier *Classifier
	Router     *DeadLetterRouter
	Publisher  RecordPublisher
	States     StateStore
	Metrics    observability.MetricsCollector
	Logger     *logrus.Logger
}

// RecoveryCoordinator drives a message from Received through Processing to
// one of the terminal states. A retryable failure loops the message back
// through Processing after the scheduled delay; a terminal classification or
// an exhausted budget hands it to the dead-letter router.
type RecoveryCoordinator struct {
	cfg CoordinatorConfig
}

func NewRecoveryCoordinator(cfg CoordinatorConfig) *RecoveryCoordinator {
	if cfg.Backoff == (BackoffSchedule{}) {
		cfg.Backoff = DefaultBackoffSchedule()
	}
	if cfg.Delivery == (BackoffSchedule{}) {
		cfg.Delivery = BackoffSchedule{
			InitialInterval: 500 * time.Millisecond,
			Multiplier:      2.0,
			MaxInterval:     10 * time.Second,
		}
	}
	if cfg.Classifier == nil {
		cfg.Classifier = NewClassifier(nil)
	}
	if cfg.Router == nil {
		cfg.Router = NewDeadLetterRouter(RouterConfig{})
	}
	if cfg.States == nil {
		cfg.States = NewInMemoryStateStore(time.Hour)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewInMemoryMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.GetLogger()
	}

	return &RecoveryCoordinator{cfg: cfg}
}

// Process blocks until msg reaches a terminal disposition or ctx is
// cancelled. A non-nil error means no disposition was reached and the offset
// must not be committed; the broker will redeliver after a rebalance.
func (c *RecoveryCoordinator) Process(ctx context.Context, msg *models.Message, handler Handler) (Disposition, error) {
	logger := c.cfg.Logger.WithFields(logrus.Fields{
		"topic":     msg.SourceTopic,
		"partition": msg.SourcePartition,
		"offset":    msg.Offset,
	})

	for {
		err := c.invoke(ctx, msg, handler)
		if err == nil {
			c.cfg.Metrics.IncProcessed()
			if cerr := c.cfg.States.Clear(ctx, msg.ID()); cerr != nil {
				logger.WithError(cerr).Warn("Failed to clear retry state")
			}
			logger.Debug("Message processed successfully")
			return Succeeded, nil
		}

		c.cfg.Metrics.IncFailed()

		state, serr := c.cfg.States.RecordFailure(ctx, msg.ID(), err)
		if serr != nil {
			// The store is bookkeeping, not the source of truth for this
			// blocking loop; fall back to a synthetic state so a store
			// outage cannot stall the partition.
			logger.WithError(serr).Warn("Failed to record retry state")
			state = RetryState{MessageID: msg.ID(), AttemptCount: 1, FirstFailureAt: time.Now(), LastError: KindOf(err)}
		}

		classification := c.cfg.Classifier.Classify(err)
		delay, exhausted := c.cfg.Backoff.NextDelay(state.AttemptCount)

		logger.WithFields(logrus.Fields{
			"attempt":        state.AttemptCount,
			"classification": classification.String(),
			"error_kind":     string(KindOf(err)),
		}).WithError(err).Error("Message processing failed")

		if classification == Terminal || exhausted {
			if derr := c.deadLetter(ctx, msg, err, state.AttemptCount); derr != nil {
				return 0, derr
			}
			if cerr := c.cfg.States.Clear(ctx, msg.ID()); cerr != nil {
				logger.WithError(cerr).Warn("Failed to clear retry state")
			}
			return DeadLettered, nil
		}

		c.cfg.Metrics.IncRetried()
		logger.WithField("delay", delay.String()).Info("Scheduling retry")

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// invoke runs the handler, converting panics into classified failures.
func (c *RecoveryCoordinator) invoke(ctx context.Context, msg *models.Message, handler Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.cfg.Logger.WithFields(logrus.Fields{
				"topic":  msg.SourceTopic,
				"offset": msg.Offset,
				"panic":  r,
			}).Error("Panic in handler")
			err = &PanicError{Value: r}
		}
	}()
	return handler(ctx, msg)
}

// deadLetter publishes the record, retrying indefinitely on publish failure.
// Losing the message here would be strictly worse than delaying its offset
// commit, so only context cancellation breaks the loop. The record is built
// once so exactly one immutable record reaches the destination.
func (c *RecoveryCoordinator) deadLetter(ctx context.Context, msg *models.Message, cause error, attempts int) error {
	rec := c.cfg.Router.Route(msg, cause, attempts)

	logger := c.cfg.Logger.WithFields(logrus.Fields{
		"topic":                 msg.SourceTopic,
		"offset":                msg.Offset,
		"destination_topic":     rec.DestinationTopic,
		"destination_partition": rec.DestinationPartition,
		"attempts":              attempts,
	})

	for attempt := 1; ; attempt++ {
		err := c.cfg.Publisher.PublishRecord(ctx, rec)
		if err == nil {
			c.cfg.Metrics.IncDeadLettered()
			logger.Info("Message dead-lettered")
			return nil
		}

		logger.WithError(err).WithField("publish_attempt", attempt).
			Error("Failed to publish dead-letter record")

		delay, _ := c.cfg.Delivery.NextDelay(attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
