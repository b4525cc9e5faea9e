package observability

import (
	"sync/atomic"
)

// MetricsCollector provides hooks for metrics collection around the
// redelivery pipeline. Implementations must be safe for concurrent use.
type MetricsCollector interface {
	IncReceived()
	IncProcessed()
	IncFailed()
	IncRetried()
	IncDeadLettered()
	IncPublished()
	IncPublishFailed()
}

// InMemoryMetrics is a simple in-memory implementation used as the default
// collector and in tests.
type InMemoryMetrics struct {
	Received      atomic.Int64
	Processed     atomic.Int64
	Failed        atomic.Int64
	Retried       atomic.Int64
	DeadLettered  atomic.Int64
	Published     atomic.Int64
	PublishFailed atomic.Int64
}

func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{}
}

func (m *InMemoryMetrics) IncReceived() {
	m.Received.Add(1)
}

func (m *InMemoryMetrics) IncProcessed() {
	m.Processed.Add(1)
}

func (m *InMemoryMetrics) IncFailed() {
	m.Failed.Add(1)
}

func (m *InMemoryMetrics) IncRetried() {
	m.Retried.Add(1)
}

func (m *InMemoryMetrics) IncDeadLettered() {
	m.DeadLettered.Add(1)
}

func (m *InMemoryMetrics) IncPublished() {
	m.Published.Add(1)
}

func (m *InMemoryMetrics) IncPublishFailed() {
	m.PublishFailed.Add(1)
}

func (m *InMemoryMetrics) GetReceived() int64 {
	return m.Received.Load()
}

func (m *InMemoryMetrics) GetProcessed() int64 {
	return m.Processed.Load()
}

func (m *InMemoryMetrics) GetFailed() int64 {
	return m.Failed.Load()
}

func (m *InMemoryMetrics) GetRetried() int64 {
	return m.Retried.Load()
}

func (m *InMemoryMetrics) GetDeadLettered() int64 {
	return m.DeadLettered.Load()
}

func (m *InMemoryMetrics) GetPublished() int64 {
	return m.Published.Load()
}

func (m *InMemoryMetrics) GetPublishFailed() int64 {
	return m.PublishFailed.Load()
}
