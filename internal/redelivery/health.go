package redelivery

import (
	"context"
	"fmt"

	"go-redeliver/internal/observability"

	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// HealthChecker verifies broker connectivity and topic existence. A missing
// dead-letter destination is an unrecoverable delivery failure, so it is
// checked at startup and surfaced to the operator instead of being
// discovered on the first failed message.
type HealthChecker struct {
	brokers []string
	logger  *logrus.Logger
}

func NewHealthChecker(brokers []string, logger *logrus.Logger) *HealthChecker {
	if logger == nil {
		logger = observability.GetLogger()
	}
	return &HealthChecker{
		brokers: brokers,
		logger:  logger,
	}
}

// Check verifies connectivity to the first reachable broker.
func (h *HealthChecker) Check(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", h.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ReadPartitions(); err != nil {
		return fmt.Errorf("failed to read partitions: %w", err)
	}

	return nil
}

// CheckTopic verifies that topic exists on the cluster.
func (h *HealthChecker) CheckTopic(ctx context.Context, topic string) error {
	conn, err := kafka.DialContext(ctx, "tcp", h.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(topic)
	if err != nil {
		return &DeliveryError{Err: fmt.Errorf("failed to read partitions for %s: %w", topic, err)}
	}
	if len(partitions) == 0 {
		return &DeliveryError{Err: fmt.Errorf("topic %s does not exist", topic)}
	}

	h.logger.WithFields(logrus.Fields{
		"topic":      topic,
		"partitions": len(partitions),
	}).Debug("Topic verified")

	return nil
}
