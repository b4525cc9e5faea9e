package models

import (
	"fmt"
	"time"
)

// Message is the immutable envelope handed to the redelivery pipeline.
// The consumer loop owns it until the message reaches a terminal disposition.
type Message struct {
	Key             []byte            `json:"key"`
	Value           []byte            `json:"value"`
	SourceTopic     string            `json:"sourceTopic"`
	SourcePartition int               `json:"sourcePartition"`
	Offset          int64             `json:"offset"`
	Headers         map[string]string `json:"headers"`
	Timestamp       time.Time         `json:"timestamp"`
}

// ID identifies one delivery of a message within its source topic.
func (m *Message) ID() string {
	return fmt.Sprintf("%s/%d/%d", m.SourceTopic, m.SourcePartition, m.Offset)
}

// DeadLetterRecord is a routed copy of a failed message, immutable once built.
// Headers carry the complete original header set plus the provenance headers.
type DeadLetterRecord struct {
	Original             *Message
	Headers              map[string]string
	DestinationTopic     string
	DestinationPartition int
}

// Header keys used across the pipeline. The provenance headers are part of
// the dead-letter record contract and are always string-encoded.
const (
	HeaderMessageID         = "message-id"
	HeaderOriginalTopic     = "original-topic"
	HeaderOriginalPartition = "original-partition"
	HeaderOriginalOffset    = "original-offset"
	HeaderExceptionFQCN     = "exception-fqcn"
	HeaderExceptionMessage  = "exception-message"
	HeaderAttemptCount      = "attempt-count"
)
