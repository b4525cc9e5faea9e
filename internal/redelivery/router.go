package redelivery

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"go-redeliver/pkg/models"
)

// PartitionPolicy selects the destination partition for dead-letter records.
type PartitionPolicy int

const (
	// PartitionFixed routes every record to one fixed partition. Dead-letter
	// volume is expected to be low, so fewer partitions reduce broker
	// overhead; the original partition stays available as a header.
	PartitionFixed PartitionPolicy = iota
	// PartitionMirror routes to the same partition index as the source,
	// preserving per-partition ordering when the dead-letter topic is
	// provisioned with the same partition count.
	PartitionMirror
)

func ParsePartitionPolicy(s string) (PartitionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fixed":
		return PartitionFixed, nil
	case "mirror":
		return PartitionMirror, nil
	default:
		return PartitionFixed, fmt.Errorf("unknown partition policy %q", s)
	}
}

const DefaultDeadLetterSuffix = ".dlt"

type RouterConfig struct {
	Suffix          string
	PartitionPolicy PartitionPolicy
	FixedPartition  int
}

// DeadLetterRouter computes the destination of a failed message and builds
// the dead-letter record with full provenance.
type DeadLetterRouter struct {
	cfg RouterConfig
}

func NewDeadLetterRouter(cfg RouterConfig) *DeadLetterRouter {
	if cfg.Suffix == "" {
		cfg.Suffix = DefaultDeadLetterSuffix
	}
	return &DeadLetterRouter{cfg: cfg}
}

// Route builds the dead-letter record for msg. The original header set is
// copied untouched and augmented with the provenance headers; the payload
// bytes are the original value, unmodified.
func (r *DeadLetterRouter) Route(msg *models.Message, cause error, attempts int) *models.DeadLetterRecord {
	headers := make(map[string]string, len(msg.Headers)+6)
	for k, v := range msg.Headers {
		headers[k] = v
	}

	headers[models.HeaderOriginalTopic] = msg.SourceTopic
	headers[models.HeaderOriginalPartition] = strconv.Itoa(msg.SourcePartition)
	headers[models.HeaderOriginalOffset] = strconv.FormatInt(msg.Offset, 10)
	headers[models.HeaderExceptionFQCN] = exceptionName(cause)
	headers[models.HeaderExceptionMessage] = cause.Error()
	headers[models.HeaderAttemptCount] = strconv.Itoa(attempts)

	partition := r.cfg.FixedPartition
	if r.cfg.PartitionPolicy == PartitionMirror {
		partition = msg.SourcePartition
	}

	return &models.DeadLetterRecord{
		Original:             msg,
		Headers:              headers,
		DestinationTopic:     msg.SourceTopic + r.cfg.Suffix,
		DestinationPartition: partition,
	}
}

// StripProvenance returns a copy of headers without the provenance keys.
// Used by remediation flows that republish a dead-lettered payload back to
// its source topic.
func StripProvenance(headers map[string]string) map[string]string {
	stripped := make(map[string]string, len(headers))
	for k, v := range headers {
		switch k {
		case models.HeaderOriginalTopic,
			models.HeaderOriginalPartition,
			models.HeaderOriginalOffset,
			models.HeaderExceptionFQCN,
			models.HeaderExceptionMessage,
			models.HeaderAttemptCount:
			continue
		}
		stripped[k] = v
	}
	return stripped
}

// exceptionName renders the failure's concrete type, e.g.
// "redelivery.ValidationError".
func exceptionName(err error) string {
	t := reflect.TypeOf(err)
	if t == nil {
		return "error"
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.String() == "" {
		return "error"
	}
	return t.String()
}
