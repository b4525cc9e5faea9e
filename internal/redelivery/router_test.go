package redelivery

import (
	"errors"
	"testing"
	"time"

	"go-redeliver/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMessage() *models.Message {
	return &models.Message{
		Key:             []byte("U2"),
		Value:           []byte(`{"orderId":"U2","articleId":"A2","amount":-2}`),
		SourceTopic:     "orders",
		SourcePartition: 3,
		Offset:          1042,
		Headers: map[string]string{
			models.HeaderMessageID: "msg-abc",
			"trace-id":             "trace-123",
		},
		Timestamp: time.Now(),
	}
}

func TestDeadLetterRouter_Route_Provenance(t *testing.T) {
	router := NewDeadLetterRouter(RouterConfig{})
	msg := sampleMessage()
	cause := &ValidationError{Err: errors.New("amount must be positive, got -2")}

	rec := router.Route(msg, cause, 1)

	assert.Equal(t, "orders.dlt", rec.DestinationTopic)
	assert.Equal(t, 0, rec.DestinationPartition)

	assert.Equal(t, "orders", rec.Headers[models.HeaderOriginalTopic])
	assert.Equal(t, "3", rec.Headers[models.HeaderOriginalPartition])
	assert.Equal(t, "1042", rec.Headers[models.HeaderOriginalOffset])
	assert.Equal(t, "redelivery.ValidationError", rec.Headers[models.HeaderExceptionFQCN])
	assert.Contains(t, rec.Headers[models.HeaderExceptionMessage], "amount must be positive")
	assert.Equal(t, "1", rec.Headers[models.HeaderAttemptCount])
}

func TestDeadLetterRouter_Route_PreservesOriginal(t *testing.T) {
	router := NewDeadLetterRouter(RouterConfig{})
	msg := sampleMessage()

	rec := router.Route(msg, errors.New("failed"), 3)

	// Payload bytes are byte-identical to the original
	assert.Equal(t, msg.Value, rec.Original.Value)
	assert.Equal(t, msg.Key, rec.Original.Key)

	// Original headers are copied, never mutated or dropped
	assert.Equal(t, "msg-abc", rec.Headers[models.HeaderMessageID])
	assert.Equal(t, "trace-123", rec.Headers["trace-id"])
	assert.Len(t, msg.Headers, 2, "source message headers must stay untouched")
}

func TestDeadLetterRouter_Route_PartitionPolicies(t *testing.T) {
	msg := sampleMessage()
	cause := errors.New("failed")

	fixed := NewDeadLetterRouter(RouterConfig{PartitionPolicy: PartitionFixed, FixedPartition: 2})
	assert.Equal(t, 2, fixed.Route(msg, cause, 1).DestinationPartition)

	mirror := NewDeadLetterRouter(RouterConfig{PartitionPolicy: PartitionMirror})
	assert.Equal(t, msg.SourcePartition, mirror.Route(msg, cause, 1).DestinationPartition)
}

func TestDeadLetterRouter_Route_CustomSuffix(t *testing.T) {
	router := NewDeadLetterRouter(RouterConfig{Suffix: "-dead"})
	rec := router.Route(sampleMessage(), errors.New("failed"), 1)
	assert.Equal(t, "orders-dead", rec.DestinationTopic)
}

func TestStripProvenance_RoundTrip(t *testing.T) {
	router := NewDeadLetterRouter(RouterConfig{})
	msg := sampleMessage()

	rec := router.Route(msg, &ValidationError{Err: errors.New("bad")}, 2)
	stripped := StripProvenance(rec.Headers)

	// Republishing payload plus stripped headers reproduces the original
	assert.Equal(t, msg.Headers, stripped)
	assert.NotContains(t, stripped, models.HeaderOriginalTopic)
	assert.NotContains(t, stripped, models.HeaderAttemptCount)
}

func TestParsePartitionPolicy(t *testing.T) {
	policy, err := ParsePartitionPolicy("fixed")
	require.NoError(t, err)
	assert.Equal(t, PartitionFixed, policy)

	policy, err = ParsePartitionPolicy("MIRROR")
	require.NoError(t, err)
	assert.Equal(t, PartitionMirror, policy)

	policy, err = ParsePartitionPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PartitionFixed, policy)

	_, err = ParsePartitionPolicy("round-robin")
	assert.Error(t, err)
}
