package redelivery

import (
	"context"
	"fmt"
	"sync"

	"go-redeliver/pkg/models"

	kafka "github.com/segmentio/kafka-go"
)

// MockPublisher is a RecordPublisher for testing.
type MockPublisher struct {
	mu               sync.RWMutex
	PublishedRecords []*models.DeadLetterRecord
	PublishFunc      func(ctx context.Context, rec *models.DeadLetterRecord) error
	FailCount        int
	failureCounter   int
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		PublishedRecords: make([]*models.DeadLetterRecord, 0),
	}
}

func (m *MockPublisher) PublishRecord(ctx context.Context, rec *models.DeadLetterRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, rec)
	}

	// Simulate publish failures for testing the delivery retry loop
	if m.FailCount > 0 {
		m.failureCounter++
		if m.failureCounter <= m.FailCount {
			return &DeliveryError{Err: fmt.Errorf("simulated publish failure %d", m.failureCounter)}
		}
	}

	m.PublishedRecords = append(m.PublishedRecords, rec)
	return nil
}

func (m *MockPublisher) GetPublishedRecords() []*models.DeadLetterRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*models.DeadLetterRecord, len(m.PublishedRecords))
	copy(records, m.PublishedRecords)
	return records
}

func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PublishedRecords = make([]*models.DeadLetterRecord, 0)
	m.failureCounter = 0
}

// MockReader is a messageReader for testing the consumer loop. It serves a
// fixed set of messages and then blocks until the context is cancelled.
type MockReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	next      int
	Committed []kafka.Message
	closed    bool
}

func NewMockReader(messages ...kafka.Message) *MockReader {
	return &MockReader{
		messages:  messages,
		Committed: make([]kafka.Message, 0),
	}
}

func (r *MockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.next < len(r.messages) {
		msg := r.messages[r.next]
		r.next++
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *MockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Committed = append(r.Committed, msgs...)
	return nil
}

func (r *MockReader) GetCommitted() []kafka.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	committed := make([]kafka.Message, len(r.Committed))
	copy(committed, r.Committed)
	return committed
}

func (r *MockReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
